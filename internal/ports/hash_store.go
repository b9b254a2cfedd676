package ports

import (
	"context"
	"encoding/json"

	"threatcache/internal/domain/threatintel"
)

// Facet is a secondary-indexed HashRecord column usable for aggregation.
type Facet string

const (
	FacetType  Facet = "type"
	FacetLevel Facet = "level"
)

// HashStore persists the domain and URL hash collections. Every operation is
// scoped to a single collection; nothing spans collections atomically.
// Failures other than a missing key carry errs.KindStorage.
type HashStore interface {
	// Initialize creates collections and indexes if absent. Safe to call
	// repeatedly and concurrently; other methods run it on first use.
	Initialize(ctx context.Context) error
	Clear(ctx context.Context, c threatintel.Collection) error
	Put(ctx context.Context, c threatintel.Collection, rec threatintel.HashRecord) error
	PutMany(ctx context.Context, c threatintel.Collection, recs []threatintel.HashRecord) error
	// Get reports found=false with a nil error for a missing key.
	Get(ctx context.Context, c threatintel.Collection, hash string) (rec threatintel.HashRecord, found bool, err error)
	Count(ctx context.Context, c threatintel.Collection) (int, error)
	CountBy(ctx context.Context, c threatintel.Collection, f Facet) (map[int]int, error)
	Close() error
}

// MetadataStore is the key/value metadata collection. Values are stored as JSON.
type MetadataStore interface {
	Get(ctx context.Context, key string) (value json.RawMessage, found bool, err error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
}
