package gitrepos

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// RunLockFilename is the lock file created in the working directory for the
// duration of a run.
const RunLockFilename = ".repoguard.lock"

// ErrLockHeld indicates another repoguard process holds the run lock.
var ErrLockHeld = errors.New("another run holds the lock")

// FileLock is an exclusive flock(2) lock. It coordinates processes sharing a
// working directory and is released by the kernel if the process dies.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock creates a lock at path. The file and its parent directories are
// created on first use.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// TryLock attempts to acquire the lock without blocking. It returns
// ErrLockHeld when another process owns it.
func (l *FileLock) TryLock() error {
	if l.file != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = file.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return fmt.Errorf("%w: %s", ErrLockHeld, l.path)
		}
		return fmt.Errorf("flock failed: %w", err)
	}

	l.file = file
	return nil
}

// Unlock releases the lock. Unlocking an unlocked FileLock is a no-op.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}

	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	if err != nil {
		return fmt.Errorf("flock unlock failed: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("close failed: %w", closeErr)
	}
	return nil
}

// IsLocked returns true if the lock is currently held by this instance.
func (l *FileLock) IsLocked() bool {
	return l.file != nil
}

// Path returns the path to the lock file.
func (l *FileLock) Path() string {
	return l.path
}
