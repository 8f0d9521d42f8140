// Package eventstream defines the events banter emits after each completed
// exchange and the publishers that deliver them.
package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/banter/pkg/llm"
	"github.com/papercomputeco/banter/pkg/persona"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeExchangeCompleted is emitted after the assistant reply of an
	// exchange has been produced.
	EventTypeExchangeCompleted = "banter.exchange.completed"
)

// ExchangeCompletedEvent is a transport-neutral event payload for one user
// message and the reply it got.
type ExchangeCompletedEvent struct {
	SchemaVersion int             `json:"schema_version"`
	EventType     string          `json:"event_type"`
	EventID       string          `json:"event_id"`
	EmittedAt     time.Time       `json:"emitted_at"`
	UserID        string          `json:"user_id"`
	Persona       persona.Persona `json:"persona"`
	User          llm.Turn        `json:"user"`
	Assistant     llm.Turn        `json:"assistant"`
	DurationMs    int64           `json:"duration_ms"`
}

// NewExchangeCompleted builds an event with a fresh id and the current time.
func NewExchangeCompleted(userID string, p persona.Persona, userText, reply string, took time.Duration) *ExchangeCompletedEvent {
	return &ExchangeCompletedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeExchangeCompleted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		UserID:        userID,
		Persona:       p,
		User:          llm.NewTurn(llm.RoleUser, userText),
		Assistant:     llm.NewTurn(llm.RoleAssistant, reply),
		DurationMs:    took.Milliseconds(),
	}
}
