// Package nlp is the rule-based fallback interpreter. It is fully
// deterministic and needs no credentials, so it always works: when no
// LLM is configured (or the bypass flag is set) every utterance goes
// through here.
package nlp

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/voicecal/voicecal/plugin/ai"
)

// Intent is the coarse classification of an utterance.
type Intent string

const (
	IntentAdd     Intent = "add"
	IntentDelete  Intent = "delete"
	IntentList    Intent = "list"
	IntentUnknown Intent = "unknown"
)

// Keyword families checked in order: add wins over delete wins over
// list when an utterance contains words from more than one family.
var (
	addKeywords    = []string{"add", "create", "schedule", "set up", "book", "i have"}
	deleteKeywords = []string{"delete", "remove", "cancel"}
	listKeywords   = []string{"list", "show", "what", "view"}
)

// weekdays indexed Monday=0, matching the roll-forward arithmetic.
var weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

var timeRe = regexp.MustCompile(`(?i)(?:at\s+)?(\d{1,2})(?::(\d{2}))?\s*(am|pm)?`)

// DefaultEventDuration is assumed when the utterance gives only a
// start time.
const DefaultEventDuration = 30 * time.Minute

// DefaultTitle is used when stripping keywords leaves nothing behind.
const DefaultTitle = "Untitled Event"

var titleCaser = cases.Title(language.English)

// ParseResult is the raw outcome of parsing one utterance.
type ParseResult struct {
	Intent Intent
	Title  string
	// Start is nil when the utterance carries no date reference.
	Start *time.Time
}

// Parse classifies the utterance and extracts title and start time.
// now anchors relative date references and must already be in the
// user's timezone.
func Parse(text string, now time.Time) *ParseResult {
	t := strings.ToLower(strings.TrimSpace(text))

	intent := IntentUnknown
	switch {
	case containsAny(t, addKeywords):
		intent = IntentAdd
	case containsAny(t, deleteKeywords):
		intent = IntentDelete
	case containsAny(t, listKeywords):
		intent = IntentList
	}

	var startDay *time.Time
	if strings.Contains(t, "today") {
		startDay = &now
	} else if strings.Contains(t, "tomorrow") {
		d := now.AddDate(0, 0, 1)
		startDay = &d
	} else {
		for idx, name := range weekdays {
			if strings.Contains(t, name) {
				d := nextWeekday(now, idx)
				startDay = &d
				break
			}
		}
	}

	hour, minute := 9, 0
	if m := timeRe.FindStringSubmatch(t); m != nil {
		hour, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		switch strings.ToLower(m[3]) {
		case "pm":
			if hour < 12 {
				hour += 12
			}
		case "am":
			if hour == 12 {
				hour = 0
			}
		}
	}

	title := t
	for _, phrase := range [][]string{addKeywords, deleteKeywords, listKeywords} {
		for _, kw := range phrase {
			title = strings.ReplaceAll(title, kw, "")
		}
	}
	for _, word := range append([]string{"today", "tomorrow"}, weekdays...) {
		title = strings.ReplaceAll(title, word, "")
	}
	title = timeRe.ReplaceAllString(title, "")
	title = strings.TrimSpace(strings.Join(strings.Fields(title), " "))
	title = titleCaser.String(title)

	var start *time.Time
	if startDay != nil {
		s := time.Date(startDay.Year(), startDay.Month(), startDay.Day(), hour, minute, 0, 0, now.Location())
		start = &s
	}

	return &ParseResult{Intent: intent, Title: title, Start: start}
}

// nextWeekday returns the next occurrence of the weekday strictly
// after now: if today already is that weekday, roll a full week.
func nextWeekday(now time.Time, targetIdx int) time.Time {
	// time.Weekday counts from Sunday; the table counts from Monday.
	todayIdx := (int(now.Weekday()) + 6) % 7
	daysAhead := (targetIdx - todayIdx + 7) % 7
	if daysAhead == 0 {
		daysAhead = 7
	}
	return now.AddDate(0, 0, daysAhead)
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// Interpreter adapts Parse to the interpreter contract. It never
// fails: utterances it cannot classify come back as low-confidence
// clarifications instead of errors.
type Interpreter struct{}

// NewInterpreter creates the keyword interpreter.
func NewInterpreter() *Interpreter {
	return &Interpreter{}
}

func (i *Interpreter) Interpret(ctx context.Context, text string, tz string) (*ai.Command, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	result := Parse(text, time.Now().In(loc))

	cmd := &ai.Command{Target: ai.Target{Calendar: "primary"}}
	switch result.Intent {
	case IntentAdd:
		cmd.Action = ai.ActionCreateEvent
		cmd.Confidence = 0.9
		cmd.Params.Title = result.Title
		if cmd.Params.Title == "" {
			cmd.Params.Title = DefaultTitle
		}
		if result.Start != nil {
			end := result.Start.Add(DefaultEventDuration)
			cmd.Params.Start = result.Start.Format(time.RFC3339)
			cmd.Params.End = end.Format(time.RFC3339)
		}
	case IntentDelete:
		cmd.Action = ai.ActionDeleteEvent
		cmd.Confidence = 0.85
		cmd.Target.MatchByText = result.Title
	case IntentList:
		cmd.Action = ai.ActionListEvents
		cmd.Confidence = 0.9
	default:
		cmd.Action = ai.ActionCreateEvent
		cmd.Confidence = 0
		cmd.NeedsClarification = true
		cmd.ClarificationQuestion = "I didn't catch that. Try something like \"add lunch tomorrow at noon\"."
	}
	return cmd, nil
}
