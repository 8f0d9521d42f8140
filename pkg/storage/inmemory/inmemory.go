// Package inmemory provides a map-backed profile store for tests and
// throwaway local sessions.
package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/papercomputeco/banter/pkg/persona"
	"github.com/papercomputeco/banter/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu is a read write sync mutex for locking the mapping of profiles
	mu sync.RWMutex

	// profiles is keyed by external id
	profiles map[string]*storage.Profile

	nextID int64
}

// NewDriver creates a new in-memory profile store.
func NewDriver() *Driver {
	return &Driver{
		profiles: make(map[string]*storage.Profile),
	}
}

// FindByExternalID returns a copy of the stored profile.
func (s *Driver) FindByExternalID(_ context.Context, externalID string) (*storage.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[externalID]
	if !ok {
		return nil, storage.NotFoundError{ExternalID: externalID}
	}

	cp := *p
	return &cp, nil
}

// Create inserts a Neutral profile unless externalID is already registered.
func (s *Driver) Create(_ context.Context, externalID, displayName string) (*storage.Profile, bool, error) {
	if externalID == "" {
		return nil, false, errors.New("external id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.profiles[externalID]; ok {
		cp := *p
		return &cp, false, nil
	}

	s.nextID++
	now := time.Now().UTC()
	p := &storage.Profile{
		ID:          s.nextID,
		ExternalID:  externalID,
		DisplayName: displayName,
		Persona:     persona.Neutral,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.profiles[externalID] = p

	cp := *p
	return &cp, true, nil
}

// UpdatePersona sets the persona on an existing profile.
func (s *Driver) UpdatePersona(_ context.Context, externalID string, p persona.Persona) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %d", persona.ErrUnknown, uint8(p))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[externalID]
	if !ok {
		return storage.NotFoundError{ExternalID: externalID}
	}

	profile.Persona = p
	profile.UpdatedAt = time.Now().UTC()
	return nil
}

// Ping always succeeds.
func (s *Driver) Ping(context.Context) error {
	return nil
}

// Close is a no-op for the in-memory driver.
func (s *Driver) Close() error {
	return nil
}

// Count returns the number of stored profiles.
func (s *Driver) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}
