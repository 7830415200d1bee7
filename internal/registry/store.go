package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/swarmkeep/swarmkeep/internal/util"
)

// ErrCorrupt marks a registry file that could not be parsed. Load recovers by
// returning an empty registry alongside this error; callers must surface the
// data loss to the user but keep going.
var ErrCorrupt = errors.New("registry file is corrupt")

// DefaultPath returns the registry file location.
// Uses XDG_DATA_HOME if set, otherwise ~/.local/share/swarmkeep/sessions.json.
// Falls back to the temp directory when no home is available.
func DefaultPath() string {
	if env := os.Getenv("SWARMKEEP_REGISTRY"); env != "" {
		return env
	}
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			return filepath.Join(os.TempDir(), "swarmkeep", "sessions.json")
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "swarmkeep", "sessions.json")
}

// Store reads and writes the registry snapshot. One process owns one registry
// file at a time; the atomic replace on Save is the only durability boundary.
type Store struct {
	path string
}

// NewStore creates a store for the given file path. An empty path uses
// DefaultPath.
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultPath()
	}
	return &Store{path: path}
}

// Path returns the backing file path.
func (st *Store) Path() string {
	return st.path
}

// Load reads the registry snapshot. A missing file yields an empty registry.
// An unparsable file yields an empty registry and an error wrapping
// ErrCorrupt, so the caller can warn without aborting.
func (st *Store) Load() (*Registry, error) {
	data, err := os.ReadFile(st.path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("reading registry: %w", err)
	}

	reg := New()
	if len(data) == 0 {
		return reg, nil
	}
	if err := json.Unmarshal(data, reg); err != nil {
		return New(), fmt.Errorf("%w: %s: %v", ErrCorrupt, st.path, err)
	}
	return reg, nil
}

// Save replaces the snapshot atomically (write-to-temp then rename), so a
// concurrent reader or a crash never observes a half-written file.
func (st *Store) Save(reg *Registry) error {
	if err := os.MkdirAll(filepath.Dir(st.path), 0700); err != nil {
		return fmt.Errorf("creating registry directory: %w", err)
	}

	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing registry: %w", err)
	}

	if err := util.AtomicWriteFile(st.path, data, 0600); err != nil {
		return fmt.Errorf("writing registry: %w", err)
	}
	return nil
}
