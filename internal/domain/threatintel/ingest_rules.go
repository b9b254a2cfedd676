package threatintel

import "strings"

// IngestKey derives the stored key for one string of a feed entry's hashes.
//
// Plaintext entries are digested here with the same Digest the lookup path
// queries with, so both sides compare digests:
//   - match=1 and the value contains "." or starts with "www.": a bare domain;
//     it gets the same host canonicalization as lookup (punycode for
//     internationalized names) and a leading "www." is removed before digesting.
//   - match=2 and the value contains "://" or starts with "www.": a URL; it is
//     normalized (with "http://" prepended when there is no scheme) and its
//     FullURL is digested. If normalization fails the trimmed value is digested.
//
// Anything else is taken to be a precomputed hex digest and is only lowercased.
// ok is false for values that are empty after trimming.
func IngestKey(match int, value string) (key string, ok bool) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", false
	}
	lower := strings.ToLower(v)

	switch {
	case match == MatchDomain && (strings.Contains(v, ".") || strings.HasPrefix(lower, "www.")):
		return Digest(strings.TrimPrefix(CanonicalDomain(v), "www.")), true

	case match == MatchURL && (strings.Contains(v, "://") || strings.HasPrefix(lower, "www.")):
		candidate := v
		if !strings.Contains(v, "://") {
			candidate = "http://" + v
		}
		n, err := ParseURL(candidate)
		if err != nil {
			return Digest(v), true
		}
		return Digest(n.FullURL), true

	default:
		return lower, true
	}
}
