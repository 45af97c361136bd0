package types

import "time"

// EntrySchemaVersion is the current ClassificationEntry format.
const EntrySchemaVersion = 1

// Verdict is the outcome of classifying a destination URL.
type Verdict string

const (
	VerdictAllowed Verdict = "allowed"
	VerdictBlocked Verdict = "blocked"
)

// ClassificationEntry records one analyzer verdict for a URL key. Entries
// are never mutated in place, only replaced; a later classification for the
// same key overwrites the earlier one.
type ClassificationEntry struct {
	SchemaVersion int       `json:"schema_version"`
	URLKey        string    `json:"url_key"`
	CanonicalURL  string    `json:"canonical_url"`
	Verdict       Verdict   `json:"verdict"`
	Reason        string    `json:"reason"`
	SearchQuery   string    `json:"search_query,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Migrate upgrades older entries; unknown future versions are dropped by
// the caller (treated as no cached verdict, which fails safe).
func (e *ClassificationEntry) Migrate() bool {
	switch e.SchemaVersion {
	case 0:
		e.SchemaVersion = EntrySchemaVersion
		return true
	case EntrySchemaVersion:
		return true
	default:
		return false
	}
}
