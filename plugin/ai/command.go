// Package ai defines the calendar command vocabulary produced by the
// interpreters and the confirmation policy applied before execution.
package ai

import (
	"fmt"

	"github.com/teambition/rrule-go"

	verrors "github.com/voicecal/voicecal/internal/errors"
)

// Action is the closed set of things a command may ask for.
type Action string

const (
	ActionCreateEvent     Action = "create_event"
	ActionUpdateEvent     Action = "update_event"
	ActionDeleteEvent     Action = "delete_event"
	ActionMoveEvent       Action = "move_event"
	ActionInviteAttendees Action = "invite_attendees"
	ActionSetReminder     Action = "set_reminder"
	ActionUndo            Action = "undo"
	// ActionListEvents is a read-only action emitted by the keyword
	// interpreter for "list"/"show" utterances.
	ActionListEvents Action = "list_events"
)

// knownActions guards the closed vocabulary. Anything else coming out
// of an interpreter is rejected, never guessed at.
var knownActions = map[Action]bool{
	ActionCreateEvent:     true,
	ActionUpdateEvent:     true,
	ActionDeleteEvent:     true,
	ActionMoveEvent:       true,
	ActionInviteAttendees: true,
	ActionSetReminder:     true,
	ActionUndo:            true,
	ActionListEvents:      true,
}

// TimeWindow narrows a target to a time range.
type TimeWindow struct {
	Date  string `json:"date,omitempty"`
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
	Tz    string `json:"tz,omitempty"`
}

// Target identifies which event a command refers to. MatchByID is
// exact; MatchByText triggers fuzzy resolution against upcoming events.
type Target struct {
	Calendar    string      `json:"calendar,omitempty"`
	MatchByID   string      `json:"match_by_id,omitempty"`
	MatchByText string      `json:"match_by_text,omitempty"`
	MatchByTime *TimeWindow `json:"match_by_time,omitempty"`
}

// Reminder is a notification attached to an event.
type Reminder struct {
	Method  string `json:"method"`
	Minutes int    `json:"minutes"`
}

// Params carries the payload of a command. Times are ISO 8601 strings
// as produced by the interpreter; the pipeline parses them.
type Params struct {
	Title      string     `json:"title,omitempty"`
	Start      string     `json:"start,omitempty"`
	End        string     `json:"end,omitempty"`
	Location   string     `json:"location,omitempty"`
	Attendees  []string   `json:"attendees,omitempty"`
	Recurrence string     `json:"recurrence,omitempty"`
	Reminders  []Reminder `json:"reminders,omitempty"`
}

// Command is the structured interpretation of one utterance.
type Command struct {
	Action                Action  `json:"action"`
	Target                Target  `json:"target"`
	Params                Params  `json:"params"`
	Confidence            float64 `json:"confidence"`
	NeedsClarification    bool    `json:"needs_clarification"`
	ClarificationQuestion string  `json:"clarification_question,omitempty"`
}

// SetsTime reports whether the action places an event on the timeline
// and therefore needs start/end resolved.
func (c *Command) SetsTime() bool {
	switch c.Action {
	case ActionCreateEvent, ActionUpdateEvent, ActionMoveEvent:
		return true
	}
	return false
}

// Validate checks the command against the closed vocabulary and
// rejects malformed recurrence rules before anything reaches the store.
func (c *Command) Validate() error {
	if !knownActions[c.Action] {
		return verrors.UnsupportedCommand(fmt.Sprintf("unknown action %q", c.Action))
	}
	if c.Params.Recurrence != "" {
		if _, err := rrule.StrToRRule(c.Params.Recurrence); err != nil {
			return verrors.Wrap(err, verrors.ErrCodeInvalidArgument, "invalid recurrence rule")
		}
	}
	for _, r := range c.Params.Reminders {
		if r.Method != "popup" && r.Method != "email" {
			return verrors.InvalidArgument(fmt.Sprintf("unknown reminder method %q", r.Method))
		}
		if r.Minutes < 0 {
			return verrors.InvalidArgument("reminder minutes must be non-negative")
		}
	}
	return nil
}
