package threatintel

import "time"

// Collection names one of the three independently addressable stores.
type Collection string

const (
	DomainHashes Collection = "domain_hashes"
	URLHashes    Collection = "url_hashes"
	Metadata     Collection = "metadata"
)

func (c Collection) Valid() bool {
	switch c {
	case DomainHashes, URLHashes, Metadata:
		return true
	default:
		return false
	}
}

// IsHashCollection reports whether c holds HashRecords.
func (c Collection) IsHashCollection() bool {
	return c == DomainHashes || c == URLHashes
}

// Match discriminators as they appear in the feed document.
const (
	MatchNone   = 0
	MatchDomain = 1
	MatchURL    = 2
)

// CollectionForMatch returns where entries with the given match code live.
// Anything other than a domain-level match is stored as a URL hash.
func CollectionForMatch(match int) Collection {
	if match == MatchDomain {
		return DomainHashes
	}
	return URLHashes
}

// MatchForCollection is the inverse used when building verdicts.
func MatchForCollection(c Collection) int {
	switch c {
	case DomainHashes:
		return MatchDomain
	case URLHashes:
		return MatchURL
	default:
		return MatchNone
	}
}

// HashRecord is keyed by Hash alone; re-putting a hash overwrites Type and Level.
type HashRecord struct {
	Hash  string
	Type  int
	Level int
}

// FeedEntry is one element of the remote document's top-level array.
type FeedEntry struct {
	Hashes []string `json:"hashes" jsonschema:"required,description=Plaintext domains/URLs or lowercase hex SHA-256 digests"`
	Type   int      `json:"type" jsonschema:"required,description=Threat category code"`
	Match  int      `json:"match" jsonschema:"required,enum=1,enum=2,description=1 = domain-level and 2 = URL-level"`
	Level  int      `json:"level" jsonschema:"required,description=Severity or confidence tier"`
}

// MetaLastUpdate holds the epoch-millisecond time of the last successful ingestion.
const MetaLastUpdate = "lastUpdate"

// UpdateSummary is returned by a completed ingestion.
type UpdateSummary struct {
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// UpdateResult is what a staleness check reports. When Updated is false no
// network access happened and LastUpdate is the stored timestamp.
type UpdateResult struct {
	Updated    bool           `json:"updated"`
	Summary    *UpdateSummary `json:"summary,omitempty"`
	LastUpdate time.Time      `json:"lastUpdate"`
}

// Stats describes store contents.
type Stats struct {
	DomainHashes int            `json:"domain_hashes" yaml:"domain_hashes" toml:"domain_hashes"`
	URLHashes    int            `json:"url_hashes" yaml:"url_hashes" toml:"url_hashes"`
	ByType       map[string]int `json:"by_type" yaml:"by_type" toml:"by_type"`
	ByLevel      map[string]int `json:"by_level" yaml:"by_level" toml:"by_level"`
	LastUpdate   *time.Time     `json:"last_update,omitempty" yaml:"last_update,omitempty" toml:"last_update,omitempty"`
}

// FromEpochMillis converts the stored lastUpdate value.
func FromEpochMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
