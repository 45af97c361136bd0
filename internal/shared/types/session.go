package types

import "time"

// SessionSchemaVersion is the current Session record format.
// Version 0 records (no schema_version field) predate versioning and are
// migrated on read.
const SessionSchemaVersion = 1

// SessionState represents session lifecycle states
type SessionState string

const (
	SessionActive   SessionState = "active"
	SessionInactive SessionState = "inactive"
)

// QA is a single question/answer pair from the session-setup flow.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Session is the authoritative record of a work session. It is written only
// by the session-setup flow; the gating engine reads it.
type Session struct {
	SchemaVersion int          `json:"schema_version"`
	ID            string       `json:"id"`
	State         SessionState `json:"state"`
	StartTime     time.Time    `json:"start_time"`
	EndTime       time.Time    `json:"end_time"`
	Domain        string       `json:"domain"`
	Context       []QA         `json:"context"`
}

// Active reports whether the session is effectively active. A session past
// its EndTime is inactive even if the stored record still says active
// (lazy expiry, not actively swept).
func (s *Session) Active(now time.Time) bool {
	if s == nil {
		return false
	}
	return s.State == SessionActive && now.Before(s.EndTime)
}

// Remaining returns the time left in the session window, or zero if lapsed.
func (s *Session) Remaining(now time.Time) time.Duration {
	if !s.Active(now) {
		return 0
	}
	return s.EndTime.Sub(now)
}

// Migrate upgrades older session records to the current schema. Records
// from an unknown future version are rejected so they are never misread.
func (s *Session) Migrate() bool {
	switch s.SchemaVersion {
	case 0:
		// Pre-versioning records stored state but no schema field.
		s.SchemaVersion = SessionSchemaVersion
		return true
	case SessionSchemaVersion:
		return true
	default:
		return false
	}
}
