// Package storage defines the durable profile store.
package storage

import (
	"context"
	"time"

	"github.com/papercomputeco/banter/pkg/persona"
)

// Profile is the durable record kept for each user of the bot.
type Profile struct {
	// ID is the store's surrogate key.
	ID int64 `json:"id"`

	// ExternalID identifies the user on the messaging platform.
	ExternalID string `json:"external_id"`

	DisplayName string          `json:"display_name"`
	Persona     persona.Persona `json:"persona"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Driver defines the interface for persisting and retrieving user profiles.
// The durable store is authoritative for the persona; caches in front of it
// may be stale.
type Driver interface {
	// FindByExternalID returns the profile for the given external id, or a
	// NotFoundError when no profile exists.
	FindByExternalID(ctx context.Context, externalID string) (*Profile, error)

	// Create inserts a profile with the Neutral persona. Create is idempotent:
	// when the external id is already registered the existing profile is
	// returned unchanged and created is false.
	Create(ctx context.Context, externalID, displayName string) (profile *Profile, created bool, err error)

	// UpdatePersona sets the persona on an existing profile. It never creates
	// a profile and returns a NotFoundError when none exists.
	UpdatePersona(ctx context.Context, externalID string, p persona.Persona) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close closes the store and releases any resources.
	Close() error
}
