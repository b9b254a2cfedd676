package ports

import (
	"context"

	"threatcache/internal/domain/threatintel"
)

// FeedSource retrieves the raw blocklist document. Transport failures and
// non-2xx responses carry errs.KindFetch. No retry is performed.
type FeedSource interface {
	Fetch(ctx context.Context) ([]byte, error)
	// Location is safe to log (no path, query or credentials).
	Location() string
}

// FeedParser validates a fetched document. A wrong top-level shape carries
// errs.KindDataFormat; malformed entries are skipped and counted.
type FeedParser interface {
	Parse(body []byte) (entries []threatintel.FeedEntry, skipped int, err error)
}
