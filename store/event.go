package store

import (
	"time"
)

// DefaultEventDuration is the store-level fallback applied when a
// create arrives without an end time. The interpreter supplies its own
// (shorter) default when it resolves a duration; this value is only
// used when the end is left unset all the way down to the store.
const DefaultEventDuration = time.Hour

// DefaultTitle is the placeholder title for events created without one.
const DefaultTitle = "untitled"

// Event is the canonical shape of a calendar event.
type Event struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Start     time.Time      `json:"start"`
	End       time.Time      `json:"end"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
}

// Clone returns a deep copy of the event. Projections hand out clones
// so callers can never mutate a log snapshot through the read surface.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Data != nil {
		clone.Data = make(map[string]any, len(e.Data))
		for k, v := range e.Data {
			clone.Data[k] = v
		}
	}
	return &clone
}

// LogKind is the kind of an operation log entry.
type LogKind string

const (
	// LogKindCreate records an event creation. The projection is a fold
	// over active create entries; there is no delete kind, a delete is
	// realized by deactivating the create entry it reverses.
	LogKindCreate LogKind = "create"
	// LogKindNoop records a mutation request that changed nothing.
	LogKindNoop LogKind = "noop"
)

// LogEntry is one record of the per-user operation log. Entries are
// immutable once appended except for the Active flag: undo and
// replay-to-timestamp deactivate (or reactivate) entries, nothing is
// ever physically removed. Retaining the full log is what makes
// repeated time-travel restorable.
type LogEntry struct {
	ID     int64     `json:"-"`
	UserID string    `json:"-"`
	Kind   LogKind   `json:"kind"`
	Event  *Event    `json:"event,omitempty"`
	Ts     time.Time `json:"ts"`
	Active bool      `json:"-"`
}

// FindLogEntry is the find condition for log entries.
type FindLogEntry struct {
	UserID     string
	ActiveOnly bool
	// NewestFirst reverses the natural append order.
	NewestFirst bool
	Limit       *int
}

// HistoryEntry is one item of a history query result.
type HistoryEntry struct {
	Kind  LogKind   `json:"kind"`
	Event *Event    `json:"event,omitempty"`
	Ts    time.Time `json:"ts"`
}

// History is the result of a history query. Items are newest-first.
type History struct {
	UserID string          `json:"user_id"`
	Limit  int             `json:"limit"`
	Items  []*HistoryEntry `json:"items"`
	Total  int             `json:"total"`
}
