package llm

import (
	"context"
	"errors"
)

// ErrEmptyCompletion is returned by a backend that answered without any
// choices.
var ErrEmptyCompletion = errors.New("completion returned no choices")

// Completer is a stateless chat completion backend: one ordered list of turns
// in, one reply out. Implementations do not stream and do not retry.
type Completer interface {
	Complete(ctx context.Context, turns []Turn) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, turns []Turn) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, turns []Turn) (string, error) {
	return f(ctx, turns)
}
