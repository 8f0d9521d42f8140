// Package dotdir manages the .banter/ and ~/.banter directories.
//
// The directory holds config.toml, the default SQLite profile database and
// the identity "banter chat" talks to the bot as.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DirName is the name of the banter directory.
	DirName = ".banter"

	// SQLiteFile is the default profile database inside the directory.
	SQLiteFile = "banter.sqlite"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .banter/ directory.
// Order of precedence is as follows:
//  1. Provided override
//  2. Local ./.banter/ dir
//  3. Home ~/.banter/ dir, created if missing
func (m *Manager) Target(overrideDir string) (string, error) {
	var dir string

	switch {
	case overrideDir != "":
		dir = overrideDir

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, DirName)

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, DirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating banter directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// SQLitePath returns configured when set, otherwise the default database
// path inside the resolved directory.
func (m *Manager) SQLitePath(configured, overrideDir string) (string, error) {
	if configured != "" {
		return configured, nil
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SQLiteFile), nil
}

// localDirExists checks whether a .banter/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, DirName))
	return err == nil && info.IsDir()
}
