package store

import (
	"context"
	"time"
)

// Driver is the storage backend contract for the per-user operation
// log. Both the in-memory and the sqlite backend satisfy it; the
// store logic never assumes a specific backing.
//
// The log is append-only. Undo and replay are expressed as flips of
// the Active flag so the full history survives and time-travel stays
// reversible.
type Driver interface {
	Close() error

	// AppendLogEntry appends an entry (Active=true) to the user's log
	// and returns it with its assigned id.
	AppendLogEntry(ctx context.Context, create *LogEntry) (*LogEntry, error)

	// ListLogEntries lists log entries matching the find condition.
	ListLogEntries(ctx context.Context, find *FindLogEntry) ([]*LogEntry, error)

	// CountLogEntries counts a user's log entries.
	CountLogEntries(ctx context.Context, userID string, activeOnly bool) (int, error)

	// DeactivateLastN deactivates the last n active entries of the
	// user's log and returns them newest-first. Fewer than n may be
	// returned when the active log is shorter.
	DeactivateLastN(ctx context.Context, userID string, n int) ([]*LogEntry, error)

	// DeactivateByEventID deactivates the active create entry holding
	// the given event id. Returns nil when no such entry exists.
	DeactivateByEventID(ctx context.Context, userID string, eventID string) (*LogEntry, error)

	// ReplayTo sets each entry's Active flag to (entry.Ts <= ts),
	// evaluated over the full log so entries past an earlier replay
	// point are restored by a later one.
	ReplayTo(ctx context.Context, userID string, ts time.Time) error

	// ListUsers lists all user ids with at least one log entry.
	ListUsers(ctx context.Context) ([]string, error)
}
