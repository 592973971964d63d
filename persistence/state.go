// Package persistence saves accumulated energy to a JSON file so it survives restarts.
package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// State is the content of the state file.
type State struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`

	// Accumulators holds the energy of every group, keyed by group id.
	Accumulators map[string]Accumulated `json:"accumulators"`
}

// Accumulated is the energy of one group.
type Accumulated struct {
	// Today is the energy in kWh since LastReset.
	Today float64 `json:"today"`
	// Total is the energy in kWh since the group was created.
	Total     float64   `json:"total"`
	LastReset time.Time `json:"last_reset"`
}

// Store reads and writes a State file. It is safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore constructs a Store for the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Save writes state, setting its version. SavedAt is filled in with the current time if it is zero. The file is
// replaced atomically.
func (s *Store) Save(state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	state.Version = StateVersion
	if state.SavedAt.IsZero() {
		state.SavedAt = time.Now()
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	return nil
}

// Load reads the state file. It returns nil, nil if the file does not exist.
func (s *Store) Load() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	if state.Version > StateVersion {
		return nil, fmt.Errorf("load state: unsupported version %d", state.Version)
	}

	return &state, nil
}

// Clear removes the state file. Removing a missing file is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}
