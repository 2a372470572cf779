// Package memory implements the operation-log driver on plain maps.
// It keeps exactly the same log semantics as the sqlite backend and is
// the default for demo mode and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/voicecal/voicecal/internal/profile"
	"github.com/voicecal/voicecal/store"
)

type DB struct {
	profile *profile.Profile

	mu     sync.RWMutex
	logs   map[string][]*store.LogEntry
	nextID int64
}

// NewDB creates a new in-memory driver.
func NewDB(profile *profile.Profile) store.Driver {
	return &DB{
		profile: profile,
		logs:    make(map[string][]*store.LogEntry),
		nextID:  1,
	}
}

func (d *DB) Close() error {
	return nil
}

func (d *DB) AppendLogEntry(ctx context.Context, create *store.LogEntry) (*store.LogEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry := cloneEntry(create)
	entry.ID = d.nextID
	d.nextID++
	entry.Active = true
	d.logs[entry.UserID] = append(d.logs[entry.UserID], entry)
	return cloneEntry(entry), nil
}

func (d *DB) ListLogEntries(ctx context.Context, find *store.FindLogEntry) ([]*store.LogEntry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	list := make([]*store.LogEntry, 0)
	for _, entry := range d.logs[find.UserID] {
		if find.ActiveOnly && !entry.Active {
			continue
		}
		list = append(list, cloneEntry(entry))
	}
	if find.NewestFirst {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].ID > list[j].ID
		})
	}
	if find.Limit != nil && len(list) > *find.Limit {
		list = list[:*find.Limit]
	}
	return list, nil
}

func (d *DB) CountLogEntries(ctx context.Context, userID string, activeOnly bool) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	count := 0
	for _, entry := range d.logs[userID] {
		if activeOnly && !entry.Active {
			continue
		}
		count++
	}
	return count, nil
}

func (d *DB) DeactivateLastN(ctx context.Context, userID string, n int) ([]*store.LogEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := make([]*store.LogEntry, 0, n)
	entries := d.logs[userID]
	for i := len(entries) - 1; i >= 0 && len(removed) < n; i-- {
		if !entries[i].Active {
			continue
		}
		entries[i].Active = false
		removed = append(removed, cloneEntry(entries[i]))
	}
	return removed, nil
}

func (d *DB) DeactivateByEventID(ctx context.Context, userID string, eventID string) (*store.LogEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries := d.logs[userID]
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		if !entry.Active || entry.Kind != store.LogKindCreate {
			continue
		}
		if entry.Event != nil && entry.Event.ID == eventID {
			entry.Active = false
			return cloneEntry(entry), nil
		}
	}
	return nil, nil
}

func (d *DB) ReplayTo(ctx context.Context, userID string, ts time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, entry := range d.logs[userID] {
		entry.Active = !entry.Ts.After(ts)
	}
	return nil
}

func (d *DB) ListUsers(ctx context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	users := make([]string, 0, len(d.logs))
	for userID := range d.logs {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users, nil
}

func cloneEntry(entry *store.LogEntry) *store.LogEntry {
	clone := *entry
	clone.Event = entry.Event.Clone()
	return &clone
}
