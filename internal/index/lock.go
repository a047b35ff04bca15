package index

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ScanLock is a per-project advisory file lock that serializes scans
// (spec.md §5's "cross-process safety": a per-project advisory file
// lock serializes scans; queries never block on it). Adapted from the
// teacher's embed.FileLock, re-scoped from protecting a model download
// to protecting a project's scan.
type ScanLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewScanLock creates a scan lock rooted at <dataDir>/.scan.lock.
func NewScanLock(dataDir string) *ScanLock {
	lockPath := filepath.Join(dataDir, ".scan.lock")
	return &ScanLock{path: lockPath, flock: flock.New(lockPath)}
}

// Lock blocks until the exclusive lock is acquired.
func (l *ScanLock) Lock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create scan lock directory: %w", err)
	}
	if err := l.flock.Lock(); err != nil {
		return fmt.Errorf("acquire scan lock: %w", err)
	}
	l.locked = true
	return nil
}

// TryLock attempts to acquire the lock without blocking, returning
// false if another process already holds it (a concurrent scan on the
// same project is already running).
func (l *ScanLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("create scan lock directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire scan lock: %w", err)
	}
	l.locked = acquired
	return acquired, nil
}

// Unlock releases the lock. Safe to call on an unlocked ScanLock.
func (l *ScanLock) Unlock() error {
	if !l.locked {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release scan lock: %w", err)
	}
	l.locked = false
	return nil
}
