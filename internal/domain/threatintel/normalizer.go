package threatintel

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"

	"threatcache/internal/errs"
)

// NormalizedURL holds the three hash inputs derived from a candidate URL.
type NormalizedURL struct {
	// Domain is the lowercase hostname without a leading "www.".
	Domain string
	// FullURL is Domain followed by path, query and fragment; scheme and
	// port are dropped.
	FullURL string
	// OriginalURL is the input lowercased, scheme retained.
	OriginalURL string

	// Scheme is empty when Parsed is false.
	Scheme string
	Parsed bool
}

// NormalizeURL never fails: input that does not parse as an absolute URL
// yields the lowercased input in all three fields.
func NormalizeURL(raw string) NormalizedURL {
	n, err := ParseURL(raw)
	if err != nil {
		lower := strings.ToLower(raw)
		return NormalizedURL{Domain: lower, FullURL: lower, OriginalURL: lower}
	}
	return n
}

// ParseURL is the strict form of NormalizeURL. Parse failures carry
// errs.KindParse.
func ParseURL(raw string) (NormalizedURL, error) {
	const op = "parse url"

	s := strings.TrimFunc(raw, func(r rune) bool { return r <= ' ' })
	if s == "" {
		return NormalizedURL{}, errs.Ef(errs.KindParse, op, "empty url")
	}

	u, err := url.Parse(s)
	if err != nil {
		return NormalizedURL{}, errs.E(errs.KindParse, op, err)
	}
	if u.Scheme == "" {
		return NormalizedURL{}, errs.Ef(errs.KindParse, op, "missing scheme in %q", s)
	}

	special := isSpecialScheme(u.Scheme)
	if special && u.Host == "" && u.Scheme != "file" {
		return NormalizedURL{}, errs.Ef(errs.KindParse, op, "missing host in %q", s)
	}

	host, err := canonicalHost(u)
	if err != nil {
		return NormalizedURL{}, errs.E(errs.KindParse, op, err)
	}
	domain := strings.TrimPrefix(host, "www.")

	path := u.Opaque
	if path == "" {
		// Resolving against an empty reference removes "." and ".." segments.
		path = u.ResolveReference(&url.URL{}).EscapedPath()
		if path == "" && special {
			path = "/"
		}
	}

	var b strings.Builder
	b.Grow(len(domain) + len(path) + len(u.RawQuery) + len(u.Fragment) + 2)
	b.WriteString(domain)
	b.WriteString(path)
	if u.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(u.RawQuery)
	}
	if u.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(u.EscapedFragment())
	}

	return NormalizedURL{
		Domain:      domain,
		FullURL:     b.String(),
		OriginalURL: strings.ToLower(raw),
		Scheme:      u.Scheme,
		Parsed:      true,
	}, nil
}

func isSpecialScheme(scheme string) bool {
	switch scheme {
	case "http", "https", "ws", "wss", "ftp", "file":
		return true
	default:
		return false
	}
}

// canonicalHost lowercases the hostname, drops the port, keeps IPv6
// brackets and converts internationalized names to their ASCII form.
func canonicalHost(u *url.URL) (string, error) {
	host := u.Hostname()
	if host == "" {
		return "", nil
	}
	if strings.Contains(host, ":") {
		return "[" + strings.ToLower(host) + "]", nil
	}

	if isASCII(host) {
		return strings.ToLower(host), nil
	}

	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", errs.Wrap(err, "idna")
	}
	return strings.ToLower(ascii), nil
}

// CanonicalDomain converts a bare hostname the way lookup does: lowercase,
// internationalized labels in their ASCII form. A name idna rejects is
// kept lowercased.
func CanonicalDomain(host string) string {
	lower := strings.ToLower(host)
	if isASCII(lower) {
		return lower
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return lower
	}
	return strings.ToLower(ascii)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// Digest is the hash primitive shared by ingestion and lookup: lowercase hex
// SHA-256 of the lowercased input.
func Digest(s string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(s)))
	return hex.EncodeToString(sum[:])
}
