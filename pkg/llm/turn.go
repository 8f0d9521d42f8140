// Package llm holds the provider-agnostic conversation types exchanged with a
// chat completion backend.
package llm

import (
	"encoding/json"
	"fmt"
)

// Message roles understood by every completion backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message in a conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewTurn creates a turn with the given role and content.
func NewTurn(role, content string) Turn {
	return Turn{Role: role, Content: content}
}

// Encode serializes the turn into the JSON form kept in the transcript cache.
func (t Turn) Encode() (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("encoding turn: %w", err)
	}
	return string(data), nil
}

// DecodeTurn parses a turn previously produced by Encode.
func DecodeTurn(raw string) (Turn, error) {
	var t Turn
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return Turn{}, fmt.Errorf("decoding turn: %w", err)
	}
	if t.Role == "" {
		return Turn{}, fmt.Errorf("decoding turn: missing role in %q", raw)
	}
	return t, nil
}
