package ai

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequireConfirmation(t *testing.T) {
	tests := []struct {
		name        string
		cmd         *Command
		wantClarify bool
	}{
		{
			name:        "low confidence delete by text",
			cmd:         &Command{Action: ActionDeleteEvent, Target: Target{MatchByText: "lunch"}, Confidence: 0.5},
			wantClarify: true,
		},
		{
			name:        "low confidence move without target",
			cmd:         &Command{Action: ActionMoveEvent, Confidence: 0.79},
			wantClarify: true,
		},
		{
			name:        "delete pinned by id",
			cmd:         &Command{Action: ActionDeleteEvent, Target: Target{MatchByID: "abc"}, Confidence: 0.1},
			wantClarify: false,
		},
		{
			name:        "confident delete by text",
			cmd:         &Command{Action: ActionDeleteEvent, Target: Target{MatchByText: "lunch"}, Confidence: 0.8},
			wantClarify: false,
		},
		{
			name:        "create is never risky",
			cmd:         &Command{Action: ActionCreateEvent, Confidence: 0.0},
			wantClarify: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RequireConfirmation(tt.cmd)
			require.Equal(t, tt.wantClarify, got.NeedsClarification)
			if tt.wantClarify {
				require.NotEmpty(t, got.ClarificationQuestion)
			}
		})
	}
}

func TestCommandValidate(t *testing.T) {
	cmd := &Command{Action: ActionCreateEvent}
	require.NoError(t, cmd.Validate())

	cmd = &Command{Action: Action("explode")}
	require.Error(t, cmd.Validate())

	cmd = &Command{Action: ActionCreateEvent, Params: Params{Recurrence: "FREQ=WEEKLY;BYDAY=MO"}}
	require.NoError(t, cmd.Validate())

	cmd = &Command{Action: ActionCreateEvent, Params: Params{Recurrence: "EVERY=FULLMOON"}}
	require.Error(t, cmd.Validate())

	cmd = &Command{Action: ActionSetReminder, Params: Params{Reminders: []Reminder{{Method: "popup", Minutes: 10}}}}
	require.NoError(t, cmd.Validate())

	cmd = &Command{Action: ActionSetReminder, Params: Params{Reminders: []Reminder{{Method: "carrier_pigeon", Minutes: 10}}}}
	require.Error(t, cmd.Validate())
}
