// Package assistant orchestrates the path from an utterance to a
// store mutation: interpret, confirm, resolve the target, apply,
// broadcast the diff.
package assistant

import (
	"context"
	"log/slog"
	"time"

	"github.com/voicecal/voicecal/internal/profile"
	"github.com/voicecal/voicecal/plugin/ai"
	"github.com/voicecal/voicecal/server/broadcast"
	verrors "github.com/voicecal/voicecal/internal/errors"
	"github.com/voicecal/voicecal/server/internal/observability"
	"github.com/voicecal/voicecal/store"
)

// Outcome statuses.
const (
	OutcomeApplied       = "applied"
	OutcomeClarification = "clarification"
	OutcomeError         = "error"
)

// Candidate is one possible target offered back to the user when a
// text match is ambiguous.
type Candidate struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Start time.Time `json:"start"`
}

// Outcome is what one assistant turn produced: an applied mutation, a
// clarification question, or a domain error. Never a panic and never a
// Go error for domain failures.
type Outcome struct {
	Status     string        `json:"status"`
	Command    *ai.Command   `json:"command,omitempty"`
	Result     *store.Result `json:"result,omitempty"`
	Question   string        `json:"question,omitempty"`
	Candidates []*Candidate  `json:"candidates,omitempty"`
	ErrorCode  string        `json:"error,omitempty"`
	Events     []*store.Event `json:"events,omitempty"`
}

// Service wires the interpreters, the store and the broadcaster into
// the assistant pipeline.
type Service struct {
	profile     *profile.Profile
	store       *store.Store
	llm         ai.Interpreter
	fallback    ai.Interpreter
	broadcaster broadcast.Broadcaster
}

// NewService creates the assistant service. llm may be nil; every
// interpretation then goes through the keyword fallback.
func NewService(profile *profile.Profile, st *store.Store, llm ai.Interpreter, fallback ai.Interpreter, broadcaster broadcast.Broadcaster) *Service {
	return &Service{
		profile:     profile,
		store:       st,
		llm:         llm,
		fallback:    fallback,
		broadcaster: broadcaster,
	}
}

// HandleText runs one assistant turn for the utterance. The
// interpretation call happens before any store lock is taken; only the
// final apply serializes on the user.
func (s *Service) HandleText(ctx context.Context, userID, text, tz string) (*Outcome, error) {
	rc := observability.FromContext(ctx)
	if tz == "" {
		tz = s.profile.DefaultTimezone
	}

	cmd, err := s.interpret(ctx, text, tz)
	if err != nil {
		code := verrors.GetCodeFromError(err, verrors.ErrCodeAdapterUnavailable)
		rc.Warn("interpretation failed",
			slog.String(observability.LogFieldErrorCode, string(code)),
			slog.String("error", err.Error()))
		return &Outcome{Status: OutcomeError, ErrorCode: string(code)}, nil
	}

	ai.RequireConfirmation(cmd)
	if cmd.NeedsClarification {
		rc.Info("clarification requested",
			slog.String(observability.LogFieldAction, string(cmd.Action)))
		return &Outcome{
			Status:   OutcomeClarification,
			Command:  cmd,
			Question: cmd.ClarificationQuestion,
		}, nil
	}

	return s.Execute(ctx, userID, cmd)
}

// interpret picks the LLM when configured and falls back to the
// keyword interpreter when the adapter is unreachable or bypassed.
func (s *Service) interpret(ctx context.Context, text, tz string) (*ai.Command, error) {
	if s.llm == nil || s.profile.InterpreterBypass {
		return s.fallback.Interpret(ctx, text, tz)
	}
	cmd, err := s.llm.Interpret(ctx, text, tz)
	if err != nil {
		if verrors.IsCode(err, verrors.ErrCodeAdapterUnavailable) {
			observability.FromContext(ctx).Warn("llm adapter unavailable, using keyword fallback",
				slog.String("error", err.Error()))
			return s.fallback.Interpret(ctx, text, tz)
		}
		return nil, err
	}
	return cmd, nil
}

// Execute applies an already-confirmed command against the store.
func (s *Service) Execute(ctx context.Context, userID string, cmd *ai.Command) (*Outcome, error) {
	if err := cmd.Validate(); err != nil {
		return &Outcome{
			Status:    OutcomeError,
			Command:   cmd,
			ErrorCode: string(verrors.GetCodeFromError(err, verrors.ErrCodeUnsupportedCommand)),
		}, nil
	}

	switch cmd.Action {
	case ai.ActionCreateEvent:
		return s.executeCreate(ctx, userID, cmd)
	case ai.ActionDeleteEvent:
		return s.executeOnTarget(ctx, userID, cmd, func(ctx context.Context, eventID string) (*store.Result, error) {
			return s.store.DeleteEvent(ctx, userID, eventID)
		})
	case ai.ActionUpdateEvent, ai.ActionMoveEvent:
		patch, errOutcome := patchFromParams(cmd)
		if errOutcome != nil {
			return errOutcome, nil
		}
		return s.executeOnTarget(ctx, userID, cmd, func(ctx context.Context, eventID string) (*store.Result, error) {
			return s.store.UpdateEvent(ctx, userID, eventID, patch)
		})
	case ai.ActionSetReminder:
		return s.executeOnTarget(ctx, userID, cmd, func(ctx context.Context, eventID string) (*store.Result, error) {
			return s.store.UpdateEvent(ctx, userID, eventID, &store.EventPatch{
				Data: map[string]any{"reminders": remindersData(cmd.Params.Reminders)},
			})
		})
	case ai.ActionInviteAttendees:
		if len(cmd.Params.Attendees) == 0 {
			return &Outcome{Status: OutcomeError, Command: cmd, ErrorCode: string(verrors.ErrCodeInvalidArgument)}, nil
		}
		return s.executeOnTarget(ctx, userID, cmd, func(ctx context.Context, eventID string) (*store.Result, error) {
			return s.store.UpdateEvent(ctx, userID, eventID, &store.EventPatch{
				Data: map[string]any{"attendees": cmd.Params.Attendees},
			})
		})
	case ai.ActionUndo:
		result, err := s.store.Apply(ctx, userID, &store.MutationRequest{Op: store.OpUndoLast})
		if err != nil {
			return nil, err
		}
		return s.outcomeFromResult(userID, cmd, result), nil
	case ai.ActionListEvents:
		events, err := s.store.List(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &Outcome{Status: OutcomeApplied, Command: cmd, Events: events}, nil
	default:
		return &Outcome{Status: OutcomeError, Command: cmd, ErrorCode: string(verrors.ErrCodeUnsupportedCommand)}, nil
	}
}

func (s *Service) executeCreate(ctx context.Context, userID string, cmd *ai.Command) (*Outcome, error) {
	req := &store.MutationRequest{Op: store.OpCreateEvent, Title: cmd.Params.Title}

	if cmd.Params.Start != "" {
		start, err := time.Parse(time.RFC3339, cmd.Params.Start)
		if err != nil {
			return &Outcome{Status: OutcomeError, Command: cmd, ErrorCode: string(verrors.ErrCodeInvalidArgument)}, nil
		}
		req.Start = &start
	}
	if cmd.Params.End != "" {
		end, err := time.Parse(time.RFC3339, cmd.Params.End)
		if err != nil {
			return &Outcome{Status: OutcomeError, Command: cmd, ErrorCode: string(verrors.ErrCodeInvalidArgument)}, nil
		}
		req.End = &end
	}

	data := map[string]any{}
	if cmd.Params.Location != "" {
		data["location"] = cmd.Params.Location
	}
	if len(cmd.Params.Attendees) > 0 {
		data["attendees"] = cmd.Params.Attendees
	}
	if cmd.Params.Recurrence != "" {
		data["recurrence"] = cmd.Params.Recurrence
	}
	if len(cmd.Params.Reminders) > 0 {
		data["reminders"] = remindersData(cmd.Params.Reminders)
	}
	req.Data = data

	result, err := s.store.Apply(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	return s.outcomeFromResult(userID, cmd, result), nil
}

// executeOnTarget resolves the command's target to exactly one event
// and runs the mutation on it. An exact id wins; a text match goes
// through the bounded-window resolver and its 0/1/many decision table.
func (s *Service) executeOnTarget(ctx context.Context, userID string, cmd *ai.Command, mutate func(ctx context.Context, eventID string) (*store.Result, error)) (*Outcome, error) {
	if id := cmd.Target.MatchByID; id != "" {
		result, err := mutate(ctx, id)
		if err != nil {
			return nil, err
		}
		return s.outcomeFromResult(userID, cmd, result), nil
	}

	matches, err := s.resolveByText(ctx, userID, cmd.Target.MatchByText, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return &Outcome{Status: OutcomeError, Command: cmd, ErrorCode: string(verrors.ErrCodeNotFound)}, nil
	case 1:
		result, err := mutate(ctx, matches[0].ID)
		if err != nil {
			return nil, err
		}
		return s.outcomeFromResult(userID, cmd, result), nil
	default:
		candidates := make([]*Candidate, 0, maxCandidates)
		for _, ev := range matches {
			if len(candidates) == maxCandidates {
				break
			}
			candidates = append(candidates, &Candidate{ID: ev.ID, Title: ev.Title, Start: ev.Start})
		}
		return &Outcome{
			Status:     OutcomeClarification,
			Command:    cmd,
			Question:   "I found several matching events. Which one do you mean?",
			Candidates: candidates,
		}, nil
	}
}

// outcomeFromResult converts a store result and broadcasts the diff to
// the user's room when the mutation succeeded.
func (s *Service) outcomeFromResult(userID string, cmd *ai.Command, result *store.Result) *Outcome {
	if result.Status != "ok" {
		return &Outcome{Status: OutcomeError, Command: cmd, Result: result, ErrorCode: result.ErrorCode}
	}
	if s.broadcaster != nil && result.Diff != nil && result.Diff.Type != store.DiffNoop {
		s.broadcaster.Broadcast(userID, map[string]any{
			"type":   "mutation",
			"diff":   result.Diff,
			"events": result.Events,
		})
	}
	return &Outcome{Status: OutcomeApplied, Command: cmd, Result: result}
}

// remindersData stores reminders in the JSON-native shape so memory
// and sqlite backends expose the same data bag to readers.
func remindersData(reminders []ai.Reminder) []any {
	out := make([]any, 0, len(reminders))
	for _, r := range reminders {
		out = append(out, map[string]any{"method": r.Method, "minutes": r.Minutes})
	}
	return out
}

// patchFromParams builds the store patch for update/move commands.
func patchFromParams(cmd *ai.Command) (*store.EventPatch, *Outcome) {
	patch := &store.EventPatch{}
	if cmd.Params.Title != "" {
		title := cmd.Params.Title
		patch.Title = &title
	}
	if cmd.Params.Start != "" {
		start, err := time.Parse(time.RFC3339, cmd.Params.Start)
		if err != nil {
			return nil, &Outcome{Status: OutcomeError, Command: cmd, ErrorCode: string(verrors.ErrCodeInvalidArgument)}
		}
		patch.Start = &start
	}
	if cmd.Params.End != "" {
		end, err := time.Parse(time.RFC3339, cmd.Params.End)
		if err != nil {
			return nil, &Outcome{Status: OutcomeError, Command: cmd, ErrorCode: string(verrors.ErrCodeInvalidArgument)}
		}
		patch.End = &end
	}

	data := map[string]any{}
	if cmd.Params.Location != "" {
		data["location"] = cmd.Params.Location
	}
	if cmd.Params.Recurrence != "" {
		data["recurrence"] = cmd.Params.Recurrence
	}
	if len(data) > 0 {
		patch.Data = data
	}
	return patch, nil
}
