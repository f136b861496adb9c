package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// DefaultStaleAfter is the age past which an unreleased lock is treated
// as abandoned by a crashed run and may be force-cleared.
const DefaultStaleAfter = 5 * time.Minute

// BusyError reports that another live supervisor holds the lock.
// Contention is fatal-to-invocation: callers fail fast, never queue.
type BusyError struct {
	RolloutID  string
	Owner      string
	AcquiredAt time.Time
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("rollout %s is locked by %s since %s: another instance is running",
		e.RolloutID, e.Owner, e.AcquiredAt.Format(time.RFC3339))
}

// Lock is a held mutual-exclusion handle for one rollout id.
type Lock struct {
	RolloutID  string
	Owner      string
	AcquiredAt time.Time

	path string
}

type lockRecord struct {
	Owner      string    `json:"owner"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// DefaultOwner builds an owner identity for this process.
func DefaultOwner() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown-host"
	}
	return fmt.Sprintf("%s/%d/%s", host, os.Getpid(), uuid.NewString()[:8])
}

func (s *Store) lockPath(rolloutID string) string {
	return filepath.Join(s.Dir, rolloutID+".lock")
}

// Acquire takes the per-rollout lock via exclusive file creation. A held
// lock younger than StaleAfter yields a BusyError; an older one is
// treated as abandoned, cleared with a logged warning, and re-acquired.
// This force-clear is the sole crash-recovery mechanism for locks.
func (s *Store) Acquire(rolloutID, owner string) (*Lock, error) {
	if owner == "" {
		return nil, errors.New("acquire lock: owner is required")
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	lock, err := s.tryCreateLock(rolloutID, owner)
	if err == nil {
		return lock, nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return nil, fmt.Errorf("acquire lock for rollout %s: %w", rolloutID, err)
	}

	existing, readErr := s.readLockRecord(rolloutID)
	switch {
	case errors.Is(readErr, fs.ErrNotExist):
		// Holder released between our create and read; one more try.
	case readErr != nil:
		// Unreadable record cannot prove freshness; treat as abandoned.
		slog.Warn("clearing unreadable lock", "rollout_id", rolloutID, "err", readErr)
	case s.now().Sub(existing.AcquiredAt) < s.staleAfter():
		return nil, &BusyError{RolloutID: rolloutID, Owner: existing.Owner, AcquiredAt: existing.AcquiredAt}
	default:
		slog.Warn("clearing stale lock",
			"rollout_id", rolloutID,
			"owner", existing.Owner,
			"acquired_at", existing.AcquiredAt,
			"age", s.now().Sub(existing.AcquiredAt).Round(time.Second))
	}

	if readErr == nil || !errors.Is(readErr, fs.ErrNotExist) {
		if err := os.Remove(s.lockPath(rolloutID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("clear stale lock for rollout %s: %w", rolloutID, err)
		}
	}

	lock, err = s.tryCreateLock(rolloutID, owner)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			// Lost the re-acquire race to another process.
			if existing, rerr := s.readLockRecord(rolloutID); rerr == nil {
				return nil, &BusyError{RolloutID: rolloutID, Owner: existing.Owner, AcquiredAt: existing.AcquiredAt}
			}
			return nil, &BusyError{RolloutID: rolloutID}
		}
		return nil, fmt.Errorf("acquire lock for rollout %s: %w", rolloutID, err)
	}
	return lock, nil
}

func (s *Store) staleAfter() time.Duration {
	if s.StaleAfter > 0 {
		return s.StaleAfter
	}
	return DefaultStaleAfter
}

func (s *Store) tryCreateLock(rolloutID, owner string) (*Lock, error) {
	path := s.lockPath(rolloutID)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}

	acquiredAt := s.now()
	data, err := json.Marshal(lockRecord{Owner: owner, AcquiredAt: acquiredAt})
	if err == nil {
		_, err = f.Write(append(data, '\n'))
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write lock record: %w", err)
	}

	return &Lock{RolloutID: rolloutID, Owner: owner, AcquiredAt: acquiredAt, path: path}, nil
}

func (s *Store) readLockRecord(rolloutID string) (lockRecord, error) {
	var rec lockRecord
	data, err := os.ReadFile(s.lockPath(rolloutID))
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("parse lock record: %w", err)
	}
	return rec, nil
}

// Release removes the lock file if this handle still owns it. A handle
// that lost the lock to a stale-clear reports an error instead of
// removing another owner's lock.
func (l *Lock) Release() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("release lock for rollout %s: %w", l.RolloutID, err)
	}

	var rec lockRecord
	if err := json.Unmarshal(data, &rec); err == nil && rec.Owner != l.Owner {
		return fmt.Errorf("release lock for rollout %s: now held by %s", l.RolloutID, rec.Owner)
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("release lock for rollout %s: %w", l.RolloutID, err)
	}
	return nil
}

// IsStale reports whether a lock record of the given age would be
// considered abandoned under this store's policy.
func (s *Store) IsStale(acquiredAt time.Time) bool {
	return s.now().Sub(acquiredAt) >= s.staleAfter()
}
