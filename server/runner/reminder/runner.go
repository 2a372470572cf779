// Package reminder periodically scans projections and pushes due
// reminders to each user's room.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/voicecal/voicecal/server/broadcast"
	"github.com/voicecal/voicecal/store"
)

// DefaultSpec scans once a minute.
const DefaultSpec = "* * * * *"

// dueWindow is how far past its fire time a reminder is still
// delivered. Wider than the scan interval so a slow tick cannot skip
// reminders.
const dueWindow = 2 * time.Minute

// Runner drives the reminder scan on a cron schedule.
type Runner struct {
	store       *store.Store
	broadcaster broadcast.Broadcaster
	cron        *cron.Cron
	spec        string

	mu    sync.Mutex
	fired map[string]bool
}

// NewRunner creates a reminder runner. spec is a standard cron
// expression; empty means every minute.
func NewRunner(st *store.Store, broadcaster broadcast.Broadcaster, spec string) *Runner {
	if spec == "" {
		spec = DefaultSpec
	}
	return &Runner{
		store:       st,
		broadcaster: broadcaster,
		cron:        cron.New(),
		spec:        spec,
		fired:       make(map[string]bool),
	}
}

// Start schedules the scan and begins ticking.
func (r *Runner) Start() error {
	if _, err := r.cron.AddFunc(r.spec, func() {
		r.Scan(context.Background(), time.Now().UTC())
	}); err != nil {
		return fmt.Errorf("failed to schedule reminder scan: %w", err)
	}
	r.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running scan to finish.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
}

// Scan walks every user's projection and broadcasts reminders whose
// fire time falls within the due window before now. Each reminder
// fires at most once per process lifetime.
func (r *Runner) Scan(ctx context.Context, now time.Time) {
	users, err := r.store.GetDriver().ListUsers(ctx)
	if err != nil {
		slog.Error("reminder scan failed to list users", "error", err)
		return
	}

	for _, userID := range users {
		events, err := r.store.List(ctx, userID)
		if err != nil {
			slog.Error("reminder scan failed to list events", "user_id", userID, "error", err)
			continue
		}
		for _, event := range events {
			for _, minutes := range reminderMinutes(event.Data["reminders"]) {
				fireAt := event.Start.Add(-time.Duration(minutes) * time.Minute)
				if fireAt.After(now) || now.Sub(fireAt) > dueWindow {
					continue
				}
				key := fmt.Sprintf("%s/%d", event.ID, minutes)
				r.mu.Lock()
				already := r.fired[key]
				if !already {
					r.fired[key] = true
				}
				r.mu.Unlock()
				if already {
					continue
				}
				r.broadcaster.Broadcast(userID, map[string]any{
					"type":    "reminder",
					"event":   event,
					"minutes": minutes,
				})
			}
		}
	}
}

// reminderMinutes extracts the minute offsets from the reminders
// stored in an event's data bag, tolerating the shapes produced by
// fresh commands and by JSON round-trips.
func reminderMinutes(v any) []int {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	minutes := make([]int, 0, len(list))
	for _, item := range list {
		switch r := item.(type) {
		case map[string]any:
			switch m := r["minutes"].(type) {
			case float64:
				minutes = append(minutes, int(m))
			case int:
				minutes = append(minutes, m)
			}
		}
	}
	return minutes
}
