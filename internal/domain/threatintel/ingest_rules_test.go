package threatintel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIngestKey(t *testing.T) {
	tests := []struct {
		name   string
		match  int
		value  string
		want   string
		wantOK bool
	}{
		{
			name:   "domain with www is stripped and digested",
			match:  MatchDomain,
			value:  "  www.Evil.example ",
			want:   Digest("evil.example"),
			wantOK: true,
		},
		{
			name:   "bare domain digested",
			match:  MatchDomain,
			value:  "evil.example",
			want:   Digest("evil.example"),
			wantOK: true,
		},
		{
			name:   "internationalized domain converted to punycode",
			match:  MatchDomain,
			value:  "www.ПрИмер.рф",
			want:   Digest("xn--e1afmkfd.xn--p1ai"),
			wantOK: true,
		},
		{
			name:   "precomputed domain digest kept lowercase",
			match:  MatchDomain,
			value:  "ABCDEF0123456789",
			want:   "abcdef0123456789",
			wantOK: true,
		},
		{
			name:   "url with scheme normalized",
			match:  MatchURL,
			value:  "https://WWW.Evil.example:443/a/../x?y=1",
			want:   Digest("evil.example/x?y=1"),
			wantOK: true,
		},
		{
			name:   "www url without scheme gets http prefix",
			match:  MatchURL,
			value:  "www.evil.example/path",
			want:   Digest("evil.example/path"),
			wantOK: true,
		},
		{
			name:   "unparseable url falls back to trimmed value",
			match:  MatchURL,
			value:  " http://%zz/x ",
			want:   Digest("http://%zz/x"),
			wantOK: true,
		},
		{
			name:   "url-level value without scheme is a digest",
			match:  MatchURL,
			value:  "evil.example/path",
			want:   "evil.example/path",
			wantOK: true,
		},
		{
			name:   "blank skipped",
			match:  MatchDomain,
			value:  " \t ",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := IngestKey(tt.match, tt.value)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Ingestion and lookup must derive identical keys for plaintext entries.
func TestIngestKeyMatchesLookupDigests(t *testing.T) {
	domainKey, _ := IngestKey(MatchDomain, "www.evil.example")
	assert.Equal(t, Digest(NormalizeURL("https://evil.example/x").Domain), domainKey)

	idnKey, _ := IngestKey(MatchDomain, "пример.рф")
	assert.Equal(t, Digest(NormalizeURL("https://www.пример.рф/x").Domain), idnKey)

	urlKey, _ := IngestKey(MatchURL, "http://evil.example/login?next=1")
	assert.Equal(t, Digest(NormalizeURL("https://www.evil.example/login?next=1").FullURL), urlKey)
}

func TestCollectionForMatch(t *testing.T) {
	assert.Equal(t, DomainHashes, CollectionForMatch(MatchDomain))
	assert.Equal(t, URLHashes, CollectionForMatch(MatchURL))
	assert.Equal(t, URLHashes, CollectionForMatch(7))
	assert.Equal(t, MatchDomain, MatchForCollection(DomainHashes))
	assert.Equal(t, MatchNone, MatchForCollection(Metadata))
}
