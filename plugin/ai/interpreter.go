package ai

import (
	"context"
)

// Interpreter turns one natural-language utterance into a Command.
// tz is the user's IANA timezone, used to resolve relative dates.
//
// Implementations return an ADAPTER_UNAVAILABLE error when the backing
// service cannot be reached; callers fall back to the keyword
// interpreter in that case.
type Interpreter interface {
	Interpret(ctx context.Context, text string, tz string) (*Command, error)
}
