package state

import (
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/spotsync/internal/shared"
)

// FileLock is an advisory lock guarding a state file against concurrent processes.
//
// The lock lives at path + ".lock". The file stays on disk after Unlock: removing it would let
// a waiter holding the old inode and a newcomer locking a fresh file both believe they own it.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock creates a file lock. Nothing is acquired until [FileLock.Lock].
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path + ".lock"}
}

// Lock acquires an exclusive lock, polling until timeout.
//
// Returns [shared.ErrStateLocked] when another process holds the lock.
func (l *FileLock) Lock(timeout time.Duration) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("%w: open lock %s: %v", shared.ErrPersistence, l.path, err)
	}

	deadline := time.Now().Add(timeout)
	for {
		if err := lockFile(f); err == nil {
			l.file = f
			return nil
		}
		if time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	f.Close()
	return fmt.Errorf("%w: %s", shared.ErrStateLocked, l.path)
}

// Unlock releases the lock. Calling it on an unheld lock is a no-op.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}
	err := unlockFile(l.file)
	l.file.Close()
	l.file = nil
	return err
}
