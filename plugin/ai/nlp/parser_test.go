package nlp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voicecal/voicecal/plugin/ai"
)

// Wednesday, fixed anchor for relative-date tests.
var anchor = time.Date(2026, 9, 2, 8, 30, 0, 0, time.UTC)

func TestParseIntentClassification(t *testing.T) {
	tests := []struct {
		text string
		want Intent
	}{
		{"add lunch tomorrow", IntentAdd},
		{"create a meeting", IntentAdd},
		{"schedule dentist friday", IntentAdd},
		{"set up a call", IntentAdd},
		{"book dinner", IntentAdd},
		{"i have yoga monday", IntentAdd},
		{"delete lunch", IntentDelete},
		{"remove the standup", IntentDelete},
		{"cancel dinner", IntentDelete},
		{"list my events", IntentList},
		{"show me tomorrow", IntentList},
		{"what is on friday", IntentList},
		{"view calendar", IntentList},
		{"hello there", IntentUnknown},
		// Add family wins when several families match.
		{"add back the meeting i canceled... cancel nothing", IntentAdd},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			require.Equal(t, tt.want, Parse(tt.text, anchor).Intent)
		})
	}
}

func TestParseRelativeDates(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantDay time.Time
	}{
		{"today", "add lunch today", anchor},
		{"tomorrow", "add lunch tomorrow", anchor.AddDate(0, 0, 1)},
		{"friday this week", "add lunch friday", anchor.AddDate(0, 0, 2)},
		{"monday rolls forward", "add lunch monday", anchor.AddDate(0, 0, 5)},
		{"same weekday rolls a full week", "add lunch wednesday", anchor.AddDate(0, 0, 7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Parse(tt.text, anchor)
			require.NotNil(t, result.Start)
			y, m, d := tt.wantDay.Date()
			gy, gm, gd := result.Start.Date()
			require.Equal(t, y, gy)
			require.Equal(t, m, gm)
			require.Equal(t, d, gd)
		})
	}
}

func TestParseClockTimes(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantHour   int
		wantMinute int
	}{
		{"defaults to nine", "add lunch today", 9, 0},
		{"plain hour", "add lunch today at 3", 3, 0},
		{"pm adds twelve", "add lunch today at 3pm", 15, 0},
		{"noon stays noon", "add lunch today at 12pm", 12, 0},
		{"midnight wraps", "add standup today at 12am", 0, 0},
		{"minutes preserved", "add lunch today at 12:45", 12, 45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Parse(tt.text, anchor)
			require.NotNil(t, result.Start)
			require.Equal(t, tt.wantHour, result.Start.Hour())
			require.Equal(t, tt.wantMinute, result.Start.Minute())
		})
	}
}

func TestParseTitleExtraction(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"add lunch with sam tomorrow at 12:30pm", "Lunch With Sam"},
		{"schedule dentist friday at 3pm", "Dentist"},
		{"cancel dinner", "Dinner"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			require.Equal(t, tt.want, Parse(tt.text, anchor).Title)
		})
	}
}

func TestParseWithoutDateHasNoStart(t *testing.T) {
	result := Parse("add lunch with sam", anchor)
	require.Equal(t, IntentAdd, result.Intent)
	require.Nil(t, result.Start)
}

func TestInterpretAdd(t *testing.T) {
	cmd, err := NewInterpreter().Interpret(context.Background(), "add lunch tomorrow at 1pm", "UTC")
	require.NoError(t, err)
	require.Equal(t, ai.ActionCreateEvent, cmd.Action)
	require.Equal(t, "Lunch", cmd.Params.Title)
	require.False(t, cmd.NeedsClarification)

	start, err := time.Parse(time.RFC3339, cmd.Params.Start)
	require.NoError(t, err)
	end, err := time.Parse(time.RFC3339, cmd.Params.End)
	require.NoError(t, err)
	require.Equal(t, 13, start.Hour())
	require.Equal(t, 30*time.Minute, end.Sub(start))
}

func TestInterpretAddWithoutTitle(t *testing.T) {
	cmd, err := NewInterpreter().Interpret(context.Background(), "schedule today at 5pm", "UTC")
	require.NoError(t, err)
	require.Equal(t, ai.ActionCreateEvent, cmd.Action)
	require.Equal(t, DefaultTitle, cmd.Params.Title)
}

func TestInterpretDelete(t *testing.T) {
	cmd, err := NewInterpreter().Interpret(context.Background(), "cancel lunch", "UTC")
	require.NoError(t, err)
	require.Equal(t, ai.ActionDeleteEvent, cmd.Action)
	require.Equal(t, "Lunch", cmd.Target.MatchByText)
	require.Empty(t, cmd.Target.MatchByID)
}

func TestInterpretList(t *testing.T) {
	cmd, err := NewInterpreter().Interpret(context.Background(), "show my week", "UTC")
	require.NoError(t, err)
	require.Equal(t, ai.ActionListEvents, cmd.Action)
}

func TestInterpretUnknownNeverErrors(t *testing.T) {
	cmd, err := NewInterpreter().Interpret(context.Background(), "quux", "Not/AZone")
	require.NoError(t, err)
	require.True(t, cmd.NeedsClarification)
	require.NotEmpty(t, cmd.ClarificationQuestion)
	require.Zero(t, cmd.Confidence)
}
