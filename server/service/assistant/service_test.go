package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voicecal/voicecal/internal/profile"
	"github.com/voicecal/voicecal/plugin/ai"
	"github.com/voicecal/voicecal/plugin/ai/nlp"
	"github.com/voicecal/voicecal/server/broadcast"
	verrors "github.com/voicecal/voicecal/internal/errors"
	"github.com/voicecal/voicecal/store"
	"github.com/voicecal/voicecal/store/db/memory"
)

// fakeInterpreter returns a canned command or error.
type fakeInterpreter struct {
	cmd *ai.Command
	err error
}

func (f *fakeInterpreter) Interpret(ctx context.Context, text, tz string) (*ai.Command, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.cmd, nil
}

func newTestService(t *testing.T, llm ai.Interpreter) (*Service, *store.Store, *broadcast.Hub) {
	t.Helper()
	p := &profile.Profile{Mode: "demo", Driver: "memory", DefaultTimezone: "UTC"}
	st := store.New(memory.NewDB(p), p)
	t.Cleanup(func() {
		require.NoError(t, st.Close())
	})
	hub := broadcast.NewHub()
	return NewService(p, st, llm, nlp.NewInterpreter(), hub), st, hub
}

func seedEvent(t *testing.T, st *store.Store, userID, title string, start time.Time) *store.Event {
	t.Helper()
	end := start.Add(30 * time.Minute)
	result, err := st.Apply(context.Background(), userID, &store.MutationRequest{
		Op:    store.OpCreateEvent,
		Title: title,
		Start: &start,
		End:   &end,
	})
	require.NoError(t, err)
	require.Equal(t, "ok", result.Status)
	return result.Diff.Event
}

func TestHandleTextCreatesEvent(t *testing.T) {
	svc, st, _ := newTestService(t, nil)
	ctx := context.Background()

	outcome, err := svc.HandleText(ctx, "alice", "add lunch tomorrow at 1pm", "UTC")
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome.Status)
	require.Equal(t, store.DiffCreate, outcome.Result.Diff.Type)
	require.Equal(t, "Lunch", outcome.Result.Diff.Event.Title)

	events, err := st.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestHandleTextUnknownUtteranceAsksClarification(t *testing.T) {
	svc, st, _ := newTestService(t, nil)

	outcome, err := svc.HandleText(context.Background(), "alice", "blorp", "UTC")
	require.NoError(t, err)
	require.Equal(t, OutcomeClarification, outcome.Status)
	require.NotEmpty(t, outcome.Question)

	events, err := st.List(context.Background(), "alice")
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestLowConfidenceDeleteRequiresConfirmation(t *testing.T) {
	llm := &fakeInterpreter{cmd: &ai.Command{
		Action:     ai.ActionDeleteEvent,
		Target:     ai.Target{MatchByText: "lunch"},
		Confidence: 0.5,
	}}
	svc, st, _ := newTestService(t, llm)

	seedEvent(t, st, "alice", "Lunch", time.Now().UTC().Add(24*time.Hour))

	outcome, err := svc.HandleText(context.Background(), "alice", "delete lunch", "UTC")
	require.NoError(t, err)
	require.Equal(t, OutcomeClarification, outcome.Status)
	require.Equal(t, "Which event do you mean? Title or time?", outcome.Question)

	// Nothing was applied.
	events, err := st.List(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestConfidentDeleteByIDSkipsConfirmation(t *testing.T) {
	svc, st, _ := newTestService(t, nil)
	ev := seedEvent(t, st, "alice", "Lunch", time.Now().UTC().Add(24*time.Hour))

	llmCmd := &ai.Command{
		Action:     ai.ActionDeleteEvent,
		Target:     ai.Target{MatchByID: ev.ID},
		Confidence: 0.3,
	}
	outcome, err := svc.Execute(context.Background(), "alice", ai.RequireConfirmation(llmCmd))
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome.Status)
	require.Equal(t, store.DiffDelete, outcome.Result.Diff.Type)
}

func TestAdapterUnavailableFallsBackToKeywords(t *testing.T) {
	llm := &fakeInterpreter{err: verrors.AdapterUnavailable("connection refused", nil)}
	svc, st, _ := newTestService(t, llm)

	outcome, err := svc.HandleText(context.Background(), "alice", "add standup tomorrow at 9am", "UTC")
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome.Status)

	events, err := st.List(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "Standup", events[0].Title)
}

func TestResolveDecisionTable(t *testing.T) {
	now := time.Now().UTC()
	llm := &fakeInterpreter{}
	svc, st, _ := newTestService(t, llm)

	seedEvent(t, st, "alice", "Lunch with Sam", now.Add(24*time.Hour))
	seedEvent(t, st, "alice", "Lunch review", now.Add(48*time.Hour))
	seedEvent(t, st, "alice", "Dentist", now.Add(72*time.Hour))
	// Outside the forward window: never a candidate.
	seedEvent(t, st, "alice", "Lunch retrospective", now.Add(120*24*time.Hour))

	deleteByText := func(text string) *Outcome {
		llm.cmd = &ai.Command{
			Action:     ai.ActionDeleteEvent,
			Target:     ai.Target{MatchByText: text},
			Confidence: 0.95,
		}
		outcome, err := svc.HandleText(context.Background(), "alice", "delete "+text, "UTC")
		require.NoError(t, err)
		return outcome
	}

	// No match: report not found, nothing mutated.
	outcome := deleteByText("quux")
	require.Equal(t, OutcomeError, outcome.Status)
	require.Equal(t, "NOT_FOUND", outcome.ErrorCode)

	// Several matches: clarify with candidates, nothing mutated.
	outcome = deleteByText("lunch")
	require.Equal(t, OutcomeClarification, outcome.Status)
	require.Len(t, outcome.Candidates, 2)
	events, err := st.List(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, events, 4)

	// Exactly one match: applied.
	outcome = deleteByText("dentist")
	require.Equal(t, OutcomeApplied, outcome.Status)
	events, err = st.List(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, events, 3)
}

func TestResolveCapsCandidates(t *testing.T) {
	now := time.Now().UTC()
	llm := &fakeInterpreter{cmd: &ai.Command{
		Action:     ai.ActionDeleteEvent,
		Target:     ai.Target{MatchByText: "lunch"},
		Confidence: 0.95,
	}}
	svc, st, _ := newTestService(t, llm)

	for i := 0; i < 8; i++ {
		seedEvent(t, st, "alice", fmt.Sprintf("Lunch %d", i), now.Add(time.Duration(i+1)*time.Hour))
	}

	outcome, err := svc.HandleText(context.Background(), "alice", "delete lunch", "UTC")
	require.NoError(t, err)
	require.Equal(t, OutcomeClarification, outcome.Status)
	require.Len(t, outcome.Candidates, 5)
}

func TestUpdateMovesEvent(t *testing.T) {
	now := time.Now().UTC()
	svc, st, _ := newTestService(t, nil)
	ev := seedEvent(t, st, "alice", "Sync", now.Add(24*time.Hour))

	newStart := now.Add(48 * time.Hour).Truncate(time.Second)
	outcome, err := svc.Execute(context.Background(), "alice", &ai.Command{
		Action:     ai.ActionMoveEvent,
		Target:     ai.Target{MatchByID: ev.ID},
		Params:     ai.Params{Start: newStart.Format(time.RFC3339), End: newStart.Add(30 * time.Minute).Format(time.RFC3339)},
		Confidence: 0.9,
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome.Status)
	require.Equal(t, store.DiffUpdate, outcome.Result.Diff.Type)
	require.True(t, outcome.Result.Diff.Event.Start.Equal(newStart))
}

func TestSetReminderMergesIntoEventData(t *testing.T) {
	now := time.Now().UTC()
	svc, st, _ := newTestService(t, nil)
	ev := seedEvent(t, st, "alice", "Dentist", now.Add(24*time.Hour))

	outcome, err := svc.Execute(context.Background(), "alice", &ai.Command{
		Action:     ai.ActionSetReminder,
		Target:     ai.Target{MatchByID: ev.ID},
		Params:     ai.Params{Reminders: []ai.Reminder{{Method: "popup", Minutes: 15}}},
		Confidence: 0.9,
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome.Status)

	events, err := st.List(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Contains(t, events[0].Data, "reminders")
	require.Equal(t, "Dentist", events[0].Title)
}

func TestInviteAttendees(t *testing.T) {
	now := time.Now().UTC()
	svc, st, _ := newTestService(t, nil)
	ev := seedEvent(t, st, "alice", "Planning", now.Add(24*time.Hour))

	outcome, err := svc.Execute(context.Background(), "alice", &ai.Command{
		Action:     ai.ActionInviteAttendees,
		Target:     ai.Target{MatchByID: ev.ID},
		Params:     ai.Params{Attendees: []string{"sam@example.com"}},
		Confidence: 0.9,
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome.Status)

	outcome, err = svc.Execute(context.Background(), "alice", &ai.Command{
		Action:     ai.ActionInviteAttendees,
		Target:     ai.Target{MatchByID: ev.ID},
		Confidence: 0.9,
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeError, outcome.Status)
	require.Equal(t, "INVALID_ARGUMENT", outcome.ErrorCode)
}

func TestUndoAction(t *testing.T) {
	now := time.Now().UTC()
	svc, st, _ := newTestService(t, nil)
	seedEvent(t, st, "alice", "Oops", now.Add(24*time.Hour))

	outcome, err := svc.Execute(context.Background(), "alice", &ai.Command{Action: ai.ActionUndo, Confidence: 1})
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome.Status)
	require.Equal(t, store.DiffUndo, outcome.Result.Diff.Type)

	events, err := st.List(context.Background(), "alice")
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestListEventsAction(t *testing.T) {
	now := time.Now().UTC()
	svc, st, _ := newTestService(t, nil)
	seedEvent(t, st, "alice", "Brunch", now.Add(24*time.Hour))

	outcome, err := svc.Execute(context.Background(), "alice", &ai.Command{Action: ai.ActionListEvents, Confidence: 0.9})
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome.Status)
	require.Len(t, outcome.Events, 1)
	require.Nil(t, outcome.Result)

	events, err := st.List(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestMutationsAreBroadcast(t *testing.T) {
	svc, _, hub := newTestService(t, nil)
	sub := hub.Subscribe("alice")
	defer sub.Close()

	outcome, err := svc.HandleText(context.Background(), "alice", "add demo today at 4pm", "UTC")
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome.Status)

	select {
	case data := <-sub.C:
		var msg map[string]any
		require.NoError(t, json.Unmarshal(data, &msg))
		require.Equal(t, "mutation", msg["type"])
	case <-time.After(time.Second):
		t.Fatal("no broadcast received")
	}
}
