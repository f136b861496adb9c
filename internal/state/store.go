// Package state persists rollout state documents to disk. One JSON
// document per rollout, written atomically, guarded by a sibling lock
// file so exactly one supervisor may hold write access per rollout id.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"stagewatch/internal/rollout"
)

// ErrNotFound reports that no state document exists for a rollout id.
var ErrNotFound = errors.New("rollout state not found")

// Store reads and writes rollout state documents under Dir.
type Store struct {
	Dir string

	// StaleAfter is the lock-abandonment threshold. Defaults to 5 minutes.
	StaleAfter time.Duration

	// Now is a test seam; defaults to time.Now.
	Now func() time.Time
}

// NewStore returns a Store rooted at dir with default staleness policy.
func NewStore(dir string) *Store {
	return &Store{Dir: dir, StaleAfter: DefaultStaleAfter, Now: time.Now}
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Path returns the state document location for a rollout id.
func (s *Store) Path(rolloutID string) string {
	return filepath.Join(s.Dir, rolloutID+".json")
}

// Read loads the state document for a rollout id. A missing document
// yields ErrNotFound; an unreadable or corrupt one is an error the
// caller must treat as fatal (no silent reset).
func (s *Store) Read(rolloutID string) (*rollout.State, error) {
	data, err := os.ReadFile(s.Path(rolloutID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("rollout %s: %w", rolloutID, ErrNotFound)
		}
		return nil, fmt.Errorf("read state for rollout %s: %w", rolloutID, err)
	}

	var st rollout.State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("state file for rollout %s is corrupt: %w", rolloutID, err)
	}
	return &st, nil
}

// Write persists a state document atomically: the JSON is written to a
// temp file in the same directory and renamed into place, so a partially
// written document is never observable.
func (s *Store) Write(st *rollout.State) error {
	if st == nil || st.RolloutID == "" {
		return errors.New("write state: rollout id is required")
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state for rollout %s: %w", st.RolloutID, err)
	}

	tmp, err := os.CreateTemp(s.Dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path(st.RolloutID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file for rollout %s: %w", st.RolloutID, err)
	}
	return nil
}

// Archive moves a completed rollout's document into the archive
// subdirectory. Failed and cancelled documents stay in place for
// post-mortem and are never archived by the supervisor.
func (s *Store) Archive(rolloutID string) error {
	archiveDir := filepath.Join(s.Dir, "archive")
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	src := s.Path(rolloutID)
	dst := filepath.Join(archiveDir, rolloutID+".json")
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("archive state for rollout %s: %w", rolloutID, err)
	}
	return nil
}
