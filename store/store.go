// Package store implements the per-user calendar event store.
//
// The source of truth is an append-only operation log per user; the
// current event list is a projection derived from it (see Project).
// Undo and point-in-time replay are realized by deactivating log
// entries, never by discarding them, so history stays replayable.
package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/voicecal/voicecal/internal/profile"
	"github.com/voicecal/voicecal/internal/util"
	verrors "github.com/voicecal/voicecal/internal/errors"
)

const (
	// historyLimitMin and historyLimitMax clamp history query limits.
	historyLimitMin = 1
	historyLimitMax = 500
)

// Store provides access to every user's operation log and projection.
// Mutations on the same user are serialized by a per-user lock;
// different users never contend on a shared lock.
type Store struct {
	profile *profile.Profile
	driver  Driver

	mu    sync.Mutex
	users map[string]*userState
}

// userState holds the per-user lock and the cached projection.
// The projection is always recomputable from the log; the cache only
// avoids refolding on repeated reads.
type userState struct {
	mu         sync.Mutex
	projection []*Event
	valid      bool
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		profile: profile,
		driver:  driver,
		users:   make(map[string]*userState),
	}
}

// GetDriver returns the underlying storage driver.
func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// lockUser returns the user's state with its lock held. Users are
// created lazily on first access. Callers must Unlock.
func (s *Store) lockUser(userID string) *userState {
	s.mu.Lock()
	us, ok := s.users[userID]
	if !ok {
		us = &userState{}
		s.users[userID] = us
	}
	s.mu.Unlock()

	us.mu.Lock()
	return us
}

// List returns the current projection for the user. Read-only: it
// never mutates the log.
func (s *Store) List(ctx context.Context, userID string) ([]*Event, error) {
	us := s.lockUser(userID)
	defer us.mu.Unlock()
	return s.projectionLocked(ctx, us, userID)
}

// History returns the user's active log entries newest-first. The
// limit is clamped to [1, 500].
func (s *Store) History(ctx context.Context, userID string, limit int) (*History, error) {
	us := s.lockUser(userID)
	defer us.mu.Unlock()

	clamped := min(max(limit, historyLimitMin), historyLimitMax)
	entries, err := s.driver.ListLogEntries(ctx, &FindLogEntry{
		UserID:      userID,
		ActiveOnly:  true,
		NewestFirst: true,
		Limit:       &clamped,
	})
	if err != nil {
		return nil, err
	}
	total, err := s.driver.CountLogEntries(ctx, userID, true)
	if err != nil {
		return nil, err
	}

	items := make([]*HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		items = append(items, &HistoryEntry{
			Kind:  entry.Kind,
			Event: entry.Event.Clone(),
			Ts:    entry.Ts,
		})
	}
	return &History{UserID: userID, Limit: limit, Items: items, Total: total}, nil
}

// ApplyPayload parses a raw mutation payload and applies it.
// Unrecognized shapes become error results, never Go errors: only
// driver failures surface as errors from this method.
func (s *Store) ApplyPayload(ctx context.Context, userID string, payload []byte) (*Result, error) {
	req, err := ParseMutationRequest(payload)
	if err != nil {
		events, listErr := s.List(ctx, userID)
		if listErr != nil {
			return nil, listErr
		}
		return errorResult(verrors.GetCodeFromError(err, verrors.ErrCodeUnsupportedCommand), events), nil
	}
	return s.Apply(ctx, userID, req)
}

// Apply is the single mutation entry point. Every successful mutation
// touches the log exactly once and recomputes the projection before
// returning.
func (s *Store) Apply(ctx context.Context, userID string, req *MutationRequest) (*Result, error) {
	us := s.lockUser(userID)
	defer us.mu.Unlock()

	switch req.Op {
	case OpNoop:
		events, err := s.projectionLocked(ctx, us, userID)
		if err != nil {
			return nil, err
		}
		return okResult(&Diff{Type: DiffNoop}, events), nil
	case OpDeleteLast, OpUndoLast:
		return s.undoLocked(ctx, us, userID, 1, false)
	case OpUndoN, OpReplayN:
		return s.undoLocked(ctx, us, userID, req.N, true)
	case OpReplayToTs:
		return s.replayToLocked(ctx, us, userID, req.Ts)
	case OpCreateEvent:
		return s.createLocked(ctx, us, userID, req)
	default:
		events, err := s.projectionLocked(ctx, us, userID)
		if err != nil {
			return nil, err
		}
		return errorResult(verrors.ErrCodeUnsupportedCommand, events), nil
	}
}

// DeleteEvent removes the event with the given id by deactivating its
// create entry. Used by the pipeline once a target is resolved.
func (s *Store) DeleteEvent(ctx context.Context, userID string, eventID string) (*Result, error) {
	us := s.lockUser(userID)
	defer us.mu.Unlock()

	entry, err := s.driver.DeactivateByEventID(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	us.valid = false
	events, err := s.projectionLocked(ctx, us, userID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return errorResult(verrors.ErrCodeNotFound, events), nil
	}
	return okResult(&Diff{Type: DiffDelete, Event: entry.Event.Clone()}, events), nil
}

// EventPatch carries the fields an update may change. Nil fields are
// left untouched; Data is merged key by key.
type EventPatch struct {
	Title *string
	Start *time.Time
	End   *time.Time
	Data  map[string]any
}

// UpdateEvent replaces the event with a patched snapshot: the old
// create entry is deactivated and a fresh one appended, so the
// projection stays a pure fold. An undo after an update removes the
// updated event rather than restoring the previous snapshot.
func (s *Store) UpdateEvent(ctx context.Context, userID string, eventID string, patch *EventPatch) (*Result, error) {
	us := s.lockUser(userID)
	defer us.mu.Unlock()

	events, err := s.projectionLocked(ctx, us, userID)
	if err != nil {
		return nil, err
	}
	var existing *Event
	for _, ev := range events {
		if ev.ID == eventID {
			existing = ev
			break
		}
	}
	if existing == nil {
		return errorResult(verrors.ErrCodeNotFound, events), nil
	}

	updated := existing.Clone()
	if patch.Title != nil && strings.TrimSpace(*patch.Title) != "" {
		updated.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Start != nil {
		updated.Start = *patch.Start
	}
	if patch.End != nil {
		updated.End = *patch.End
	}
	if len(patch.Data) > 0 {
		if updated.Data == nil {
			updated.Data = make(map[string]any, len(patch.Data))
		}
		for k, v := range patch.Data {
			updated.Data[k] = v
		}
	}
	if !updated.End.IsZero() && updated.End.Before(updated.Start) {
		return errorResult(verrors.ErrCodeInvalidArgument, events), nil
	}

	if _, err := s.driver.DeactivateByEventID(ctx, userID, eventID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if _, err := s.driver.AppendLogEntry(ctx, &LogEntry{
		UserID: userID,
		Kind:   LogKindCreate,
		Event:  updated,
		Ts:     now,
		Active: true,
	}); err != nil {
		return nil, err
	}
	us.valid = false
	events, err = s.projectionLocked(ctx, us, userID)
	if err != nil {
		return nil, err
	}
	return okResult(&Diff{Type: DiffUpdate, Event: updated.Clone()}, events), nil
}

// createLocked appends a create entry after applying the store-level
// defaults: missing start is now (UTC), missing end is start plus one
// hour, missing title is the placeholder.
func (s *Store) createLocked(ctx context.Context, us *userState, userID string, req *MutationRequest) (*Result, error) {
	now := time.Now().UTC()

	start := now
	if req.Start != nil {
		start = *req.Start
	}
	end := start.Add(DefaultEventDuration)
	if req.End != nil {
		end = *req.End
	}
	if end.Before(start) {
		events, err := s.projectionLocked(ctx, us, userID)
		if err != nil {
			return nil, err
		}
		return errorResult(verrors.ErrCodeInvalidArgument, events), nil
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = DefaultTitle
	}
	data := req.Data
	if data == nil {
		data = map[string]any{}
	}

	ev := &Event{
		ID:        util.GenUUID(),
		Title:     title,
		Start:     start,
		End:       end,
		Data:      data,
		CreatedAt: now,
	}
	if _, err := s.driver.AppendLogEntry(ctx, &LogEntry{
		UserID: userID,
		Kind:   LogKindCreate,
		Event:  ev,
		Ts:     now,
		Active: true,
	}); err != nil {
		return nil, err
	}

	us.valid = false
	events, err := s.projectionLocked(ctx, us, userID)
	if err != nil {
		return nil, err
	}
	return okResult(&Diff{Type: DiffCreate, Event: ev.Clone()}, events), nil
}

// undoLocked deactivates the last n active entries and reports the
// reversed diffs most-recent-first. batch selects the undo_batch diff
// shape used by undo_n/replay_n.
func (s *Store) undoLocked(ctx context.Context, us *userState, userID string, n int, batch bool) (*Result, error) {
	if n <= 0 {
		events, err := s.projectionLocked(ctx, us, userID)
		if err != nil {
			return nil, err
		}
		return okResult(&Diff{Type: DiffUndoBatch, Count: 0, Diffs: []*Diff{}}, events), nil
	}

	removed, err := s.driver.DeactivateLastN(ctx, userID, n)
	if err != nil {
		return nil, err
	}
	us.valid = false
	events, err := s.projectionLocked(ctx, us, userID)
	if err != nil {
		return nil, err
	}

	if !batch {
		if len(removed) == 0 {
			return okResult(&Diff{Type: DiffUndo, UndoOf: "noop"}, events), nil
		}
		return okResult(&Diff{
			Type:   DiffUndo,
			UndoOf: string(removed[0].Kind),
			Event:  removed[0].Event.Clone(),
		}, events), nil
	}

	diffs := make([]*Diff, 0, len(removed))
	for _, entry := range removed {
		diffs = append(diffs, &Diff{
			Type:   DiffUndo,
			UndoOf: string(entry.Kind),
			Event:  entry.Event.Clone(),
		})
	}
	return okResult(&Diff{Type: DiffUndoBatch, Count: len(removed), Diffs: diffs}, events), nil
}

// replayToLocked restores the state as of ts. Evaluated against the
// full log: entries past an earlier replay point come back when a
// later timestamp is requested.
func (s *Store) replayToLocked(ctx context.Context, us *userState, userID string, ts time.Time) (*Result, error) {
	if ts.IsZero() {
		events, err := s.projectionLocked(ctx, us, userID)
		if err != nil {
			return nil, err
		}
		return errorResult(verrors.ErrCodeInvalidArgument, events), nil
	}

	if err := s.driver.ReplayTo(ctx, userID, ts); err != nil {
		return nil, err
	}
	us.valid = false
	events, err := s.projectionLocked(ctx, us, userID)
	if err != nil {
		return nil, err
	}
	return okResult(&Diff{Type: DiffReplay, ToTs: ts.Format(time.RFC3339)}, events), nil
}

// projectionLocked returns the user's projection, refolding from the
// log when the cache is stale. Caller holds the user lock.
func (s *Store) projectionLocked(ctx context.Context, us *userState, userID string) ([]*Event, error) {
	if !us.valid {
		entries, err := s.driver.ListLogEntries(ctx, &FindLogEntry{UserID: userID, ActiveOnly: true})
		if err != nil {
			return nil, err
		}
		us.projection = Project(entries)
		us.valid = true
	}

	events := make([]*Event, 0, len(us.projection))
	for _, ev := range us.projection {
		events = append(events, ev.Clone())
	}
	return events, nil
}
