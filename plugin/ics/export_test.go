package ics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voicecal/voicecal/store"
)

func TestExport(t *testing.T) {
	start := time.Date(2026, 9, 3, 12, 0, 0, 0, time.UTC)
	events := []*store.Event{
		{
			ID:        "ev-1",
			Title:     "Lunch with Sam",
			Start:     start,
			End:       start.Add(30 * time.Minute),
			CreatedAt: start.Add(-time.Hour),
			Data: map[string]any{
				"location":  "Cafe Luna",
				"attendees": []any{"sam@example.com"},
			},
		},
		{
			ID:        "ev-2",
			Title:     "Weekly sync",
			Start:     start.Add(24 * time.Hour),
			End:       start.Add(25 * time.Hour),
			CreatedAt: start,
			Data: map[string]any{
				"recurrence": "FREQ=WEEKLY;BYDAY=TH",
			},
		},
	}

	out := Export(events, "alice")
	require.Contains(t, out, "BEGIN:VCALENDAR")
	require.Contains(t, out, "END:VCALENDAR")
	require.Contains(t, out, "SUMMARY:Lunch with Sam")
	require.Contains(t, out, "SUMMARY:Weekly sync")
	require.Contains(t, out, "LOCATION:Cafe Luna")
	require.Contains(t, out, "RRULE:FREQ=WEEKLY;BYDAY=TH")
	require.Contains(t, out, "sam@example.com")
	require.Equal(t, 2, strings.Count(out, "BEGIN:VEVENT"))
}

func TestExportEmptyProjection(t *testing.T) {
	out := Export(nil, "")
	require.Contains(t, out, "BEGIN:VCALENDAR")
	require.NotContains(t, out, "BEGIN:VEVENT")
}
