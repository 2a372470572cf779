package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	verrors "github.com/voicecal/voicecal/internal/errors"
)

func TestParseMutationRequest(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    *MutationRequest
		wantErr verrors.ErrorCode
	}{
		{
			name:    "noop",
			payload: `{"op":"noop"}`,
			want:    &MutationRequest{Op: OpNoop},
		},
		{
			name:    "delete last",
			payload: `{"op":"delete_last"}`,
			want:    &MutationRequest{Op: OpDeleteLast},
		},
		{
			name:    "undo last",
			payload: `{"op":"undo_last"}`,
			want:    &MutationRequest{Op: OpUndoLast},
		},
		{
			name:    "undo n",
			payload: `{"op":"undo_n","n":3}`,
			want:    &MutationRequest{Op: OpUndoN, N: 3},
		},
		{
			name:    "undo n defaults to one",
			payload: `{"op":"undo_n"}`,
			want:    &MutationRequest{Op: OpUndoN, N: 1},
		},
		{
			name:    "replay n",
			payload: `{"op":"replay_n","n":2}`,
			want:    &MutationRequest{Op: OpReplayN, N: 2},
		},
		{
			name:    "replay to ts",
			payload: `{"op":"replay_to_ts","ts":"2026-09-01T10:00:00Z"}`,
			want: &MutationRequest{
				Op: OpReplayToTs,
				Ts: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
			},
		},
		{
			name:    "replay to ts without timestamp",
			payload: `{"op":"replay_to_ts"}`,
			want:    &MutationRequest{Op: OpReplayToTs},
		},
		{
			name:    "create event",
			payload: `{"type":"create_event","title":"Lunch","start":"2026-09-01T12:00:00Z"}`,
			want: &MutationRequest{
				Op:    OpCreateEvent,
				Title: "Lunch",
				Start: timePtr(time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)),
			},
		},
		{
			name:    "create event bare",
			payload: `{"type":"create_event"}`,
			want:    &MutationRequest{Op: OpCreateEvent},
		},
		{
			name:    "unknown op",
			payload: `{"op":"compact_log"}`,
			wantErr: verrors.ErrCodeUnsupportedCommand,
		},
		{
			name:    "unknown type",
			payload: `{"type":"create_task"}`,
			wantErr: verrors.ErrCodeUnsupportedCommand,
		},
		{
			name:    "empty object",
			payload: `{}`,
			wantErr: verrors.ErrCodeUnsupportedCommand,
		},
		{
			name:    "malformed json",
			payload: `{`,
			wantErr: verrors.ErrCodeUnsupportedCommand,
		},
		{
			name:    "bad replay timestamp",
			payload: `{"op":"replay_to_ts","ts":"yesterday"}`,
			wantErr: verrors.ErrCodeInvalidArgument,
		},
		{
			name:    "bad start time",
			payload: `{"type":"create_event","start":"noonish"}`,
			wantErr: verrors.ErrCodeInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMutationRequest([]byte(tt.payload))
			if tt.wantErr != "" {
				require.Error(t, err)
				require.Equal(t, tt.wantErr, verrors.GetCodeFromError(err, ""))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
