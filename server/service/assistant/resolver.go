package assistant

import (
	"context"
	"strings"
	"time"

	"github.com/voicecal/voicecal/store"
)

// resolveWindow bounds how far ahead text matching looks. Events in
// the past or beyond the window are never candidates.
const resolveWindow = 90 * 24 * time.Hour

// maxCandidates caps how many ambiguous matches are offered back.
const maxCandidates = 5

// resolveByText finds upcoming events whose title contains the query,
// case-insensitively. An empty query matches every upcoming event,
// which the caller reports as ambiguous rather than guessing.
func (s *Service) resolveByText(ctx context.Context, userID, query string, now time.Time) ([]*store.Event, error) {
	events, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	horizon := now.Add(resolveWindow)

	matches := make([]*store.Event, 0)
	for _, ev := range events {
		if ev.Start.Before(now) || ev.Start.After(horizon) {
			continue
		}
		if strings.Contains(strings.ToLower(ev.Title), needle) {
			matches = append(matches, ev)
		}
	}
	return matches, nil
}
