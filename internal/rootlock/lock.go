// Package rootlock serializes reorganization runs per root directory across
// processes using advisory file locks kept outside the root.
package rootlock

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked indicates another process holds the lock for the root.
var ErrLocked = errors.New("root is being reorganized by another reshard process")

// Lock is a held root lock.
type Lock struct {
	root string
	path string
	lock *flock.Flock
}

// PathFor returns the lock file used for root inside lockDir. Roots are
// hashed so lock files never collide with path separators.
func PathFor(lockDir, root string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(root)))
	return filepath.Join(lockDir, hex.EncodeToString(sum[:8])+".lock")
}

// Acquire takes the lock for root without blocking.
func Acquire(lockDir, root string) (*Lock, error) {
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	path := PathFor(lockDir, root)
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w (lock %s)", root, ErrLocked, path)
	}
	// The lock file names the root it guards for anyone inspecting the directory.
	_ = os.WriteFile(path, []byte(root+"\n"), 0o644)
	return &Lock{root: root, path: path, lock: fl}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Release unlocks. The lock file is left in place for reuse.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	return nil
}
