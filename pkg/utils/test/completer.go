package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/banter/pkg/llm"
)

// StubCompleter is an llm.Completer that returns a fixed reply (or error)
// and records every conversation it was sent.
type StubCompleter struct {
	Reply string
	Err   error

	mu       sync.Mutex
	received [][]llm.Turn
}

func NewStubCompleter(reply string) *StubCompleter {
	return &StubCompleter{Reply: reply}
}

func (s *StubCompleter) Complete(_ context.Context, turns []llm.Turn) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.received = append(s.received, append([]llm.Turn(nil), turns...))
	if s.Err != nil {
		return "", s.Err
	}
	return s.Reply, nil
}

// Calls returns the number of Complete calls.
func (s *StubCompleter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

// Last returns the turns sent on the most recent call.
func (s *StubCompleter) Last() []llm.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.received) == 0 {
		return nil
	}
	return s.received[len(s.received)-1]
}
