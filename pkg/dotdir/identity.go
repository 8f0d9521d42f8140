package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const identityFile = "identity.json"

// Identity is who "banter chat" talks to the bot as. Persisting it keeps the
// same profile, persona and transcript across chat sessions.
type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// LoadIdentity loads the identity from a target .banter/identity.json.
// Returns nil, nil if no identity has been saved yet.
func (m *Manager) LoadIdentity(overrideDir string) (*Identity, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, identityFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading identity: %w", err)
	}

	id := &Identity{}
	if err := json.Unmarshal(data, id); err != nil {
		return nil, fmt.Errorf("parsing identity: %w", err)
	}
	if id.UserID == "" {
		return nil, errors.New("parsing identity: missing user_id")
	}

	return id, nil
}

// SaveIdentity persists the identity to a target .banter/identity.json.
func (m *Manager) SaveIdentity(id *Identity, overrideDir string) error {
	if id == nil || id.UserID == "" {
		return errors.New("cannot save identity without a user id")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling identity: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, identityFile), data, 0o600); err != nil {
		return fmt.Errorf("writing identity: %w", err)
	}

	return nil
}
