package store

import (
	"encoding/json"
	"fmt"
	"time"

	verrors "github.com/voicecal/voicecal/internal/errors"
)

// MutationOp is the tag of a MutationRequest.
type MutationOp string

const (
	OpNoop        MutationOp = "noop"
	OpDeleteLast  MutationOp = "delete_last"
	OpUndoLast    MutationOp = "undo_last"
	OpUndoN       MutationOp = "undo_n"
	OpReplayN     MutationOp = "replay_n"
	OpReplayToTs  MutationOp = "replay_to_ts"
	OpCreateEvent MutationOp = "create_event"
)

// MutationRequest is the tagged union of mutation payloads the store
// accepts. Exactly one constructor per recognized wire shape; unknown
// shapes are rejected at the boundary by ParseMutationRequest.
type MutationRequest struct {
	Op MutationOp

	// undo_n / replay_n
	N int

	// replay_to_ts; zero when the payload carried no timestamp.
	Ts time.Time

	// create_event
	Title string
	Start *time.Time
	End   *time.Time
	Data  map[string]any
}

// rawMutation mirrors the accepted wire shapes, both the op-keyed
// legacy dialect and the type-keyed create dialect.
type rawMutation struct {
	Op    string         `json:"op"`
	Type  string         `json:"type"`
	N     *int           `json:"n"`
	Ts    string         `json:"ts"`
	Title string         `json:"title"`
	Start *string        `json:"start"`
	End   *string        `json:"end"`
	Data  map[string]any `json:"data"`
}

// ParseMutationRequest parses a raw JSON payload into a
// MutationRequest. The vocabulary is closed: anything not recognized
// yields an UNSUPPORTED_COMMAND error here, never deeper in the store.
func ParseMutationRequest(payload []byte) (*MutationRequest, error) {
	var raw rawMutation
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, verrors.Wrap(err, verrors.ErrCodeUnsupportedCommand, "malformed mutation payload")
	}

	switch raw.Op {
	case "noop":
		return &MutationRequest{Op: OpNoop}, nil
	case "delete_last":
		return &MutationRequest{Op: OpDeleteLast}, nil
	case "undo_last":
		return &MutationRequest{Op: OpUndoLast}, nil
	case "undo_n", "replay_n":
		n := 1
		if raw.N != nil {
			n = *raw.N
		}
		op := OpUndoN
		if raw.Op == "replay_n" {
			op = OpReplayN
		}
		return &MutationRequest{Op: op, N: n}, nil
	case "replay_to_ts":
		req := &MutationRequest{Op: OpReplayToTs}
		if raw.Ts != "" {
			ts, err := time.Parse(time.RFC3339, raw.Ts)
			if err != nil {
				return nil, verrors.Wrap(err, verrors.ErrCodeInvalidArgument, "invalid replay timestamp")
			}
			req.Ts = ts
		}
		return req, nil
	case "":
		// Fall through to the type-keyed dialect.
	default:
		return nil, verrors.UnsupportedCommand(fmt.Sprintf("unknown op %q", raw.Op))
	}

	if raw.Type == "create_event" {
		req := &MutationRequest{Op: OpCreateEvent, Title: raw.Title, Data: raw.Data}
		if raw.Start != nil && *raw.Start != "" {
			start, err := time.Parse(time.RFC3339, *raw.Start)
			if err != nil {
				return nil, verrors.Wrap(err, verrors.ErrCodeInvalidArgument, "invalid start time")
			}
			req.Start = &start
		}
		if raw.End != nil && *raw.End != "" {
			end, err := time.Parse(time.RFC3339, *raw.End)
			if err != nil {
				return nil, verrors.Wrap(err, verrors.ErrCodeInvalidArgument, "invalid end time")
			}
			req.End = &end
		}
		return req, nil
	}

	return nil, verrors.UnsupportedCommand("unsupported command shape")
}

// DiffType describes what a single store mutation changed.
type DiffType string

const (
	DiffCreate    DiffType = "create"
	DiffDelete    DiffType = "delete"
	DiffUpdate    DiffType = "update"
	DiffUndo      DiffType = "undo"
	DiffUndoBatch DiffType = "undo_batch"
	DiffReplay    DiffType = "replay"
	DiffNoop      DiffType = "noop"
)

// Diff describes exactly what one mutation changed. Returned to
// callers so deltas can be broadcast to connected clients.
type Diff struct {
	Type   DiffType `json:"type"`
	Event  *Event   `json:"event,omitempty"`
	UndoOf string   `json:"undo_of,omitempty"`
	Count  int      `json:"count,omitempty"`
	Diffs  []*Diff  `json:"diffs,omitempty"`
	ToTs   string   `json:"to_ts,omitempty"`
}

// Result is the envelope every store mutation returns. Domain
// failures are carried as Status "error" plus a stable ErrorCode;
// they never escape the store as Go errors.
type Result struct {
	Status    string   `json:"status"`
	ErrorCode string   `json:"error,omitempty"`
	Diff      *Diff    `json:"diff"`
	Events    []*Event `json:"events"`
}

func okResult(diff *Diff, events []*Event) *Result {
	return &Result{Status: "ok", Diff: diff, Events: events}
}

func errorResult(code verrors.ErrorCode, events []*Event) *Result {
	return &Result{Status: "error", ErrorCode: string(code), Events: events}
}
