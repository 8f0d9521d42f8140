// Package persona defines the response styles a user can select for the bot.
//
// A Persona is persisted by name (STRICT, NEUTRAL, CASUAL) in both the
// profile store and the fast cache, so the names are part of the storage
// format and must not change.
package persona

import (
	"errors"
	"fmt"
	"strings"
)

// Persona is a response style selected per user.
// The zero value is Neutral, which is also the default for unknown users.
type Persona uint8

const (
	Neutral Persona = iota
	Strict
	Casual
)

// ErrUnknown is returned when parsing a name that is not a persona.
var ErrUnknown = errors.New("unknown persona")

// All returns every persona in display order.
func All() []Persona {
	return []Persona{Strict, Neutral, Casual}
}

// String returns the persisted enum name.
func (p Persona) String() string {
	switch p {
	case Strict:
		return "STRICT"
	case Neutral:
		return "NEUTRAL"
	case Casual:
		return "CASUAL"
	default:
		return fmt.Sprintf("Persona(%d)", uint8(p))
	}
}

// Label returns the human readable name shown to users.
func (p Persona) Label() string {
	switch p {
	case Strict:
		return "Strict / Formal"
	case Neutral:
		return "Neutral / Balanced"
	case Casual:
		return "Casual / Friendly"
	default:
		return p.String()
	}
}

// Instruction returns the fixed system prompt for the persona.
// Values outside the enum get the Neutral prompt.
func (p Persona) Instruction() string {
	switch p {
	case Strict:
		return strictInstruction
	case Neutral:
		return neutralInstruction
	case Casual:
		return casualInstruction
	default:
		return neutralInstruction
	}
}

// Valid reports whether p is one of the defined personas.
func (p Persona) Valid() bool {
	switch p {
	case Strict, Neutral, Casual:
		return true
	default:
		return false
	}
}

// Parse resolves a persona from its enum name, case-insensitively.
// The short forms used in chat commands ("strict", "neutral", "casual") are
// the same names in lower case.
func Parse(s string) (Persona, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "STRICT":
		return Strict, nil
	case "NEUTRAL":
		return Neutral, nil
	case "CASUAL":
		return Casual, nil
	default:
		return Neutral, fmt.Errorf("%w: %q", ErrUnknown, s)
	}
}

// MarshalText encodes the persona as its enum name.
func (p Persona) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknown, uint8(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText decodes a persona from its enum name.
func (p *Persona) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
