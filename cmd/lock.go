package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockFileName = ".canvas-sync.lock"

// InstanceLock guards an output directory against a second concurrent sync
type InstanceLock struct {
	flock *flock.Flock
	path  string
}

// AcquireLock tries to lock dir, creating it when missing.
// It returns (nil, false, nil) when another instance holds the lock.
func AcquireLock(dir string) (*InstanceLock, bool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, false, fmt.Errorf("failed to create output dir: %w", err)
	}

	lockPath := filepath.Join(dir, lockFileName)
	fileLock := flock.New(lockPath)

	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("failed to try lock: %w", err)
	}
	if !locked {
		return nil, false, nil
	}
	return &InstanceLock{flock: fileLock, path: lockPath}, true, nil
}

// Release unlocks the directory. The lock file stays on disk.
func (l *InstanceLock) Release() error {
	if l == nil || l.flock == nil {
		return nil
	}
	return l.flock.Unlock()
}
