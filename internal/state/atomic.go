package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// AtomicWriter writes a file through a temp file in the same directory followed by a rename,
// so the target path never holds partial content.
type AtomicWriter struct {
	path    string
	tmpPath string
	file    *os.File
	done    bool
}

// NewAtomicWriter creates the temp file next to path. pattern is passed to [os.CreateTemp].
func NewAtomicWriter(path, pattern string) (*AtomicWriter, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	return &AtomicWriter{path: path, tmpPath: tmp.Name(), file: tmp}, nil
}

// Write writes to the temp file.
func (w *AtomicWriter) Write(p []byte) (int, error) {
	return w.file.Write(p)
}

// TempPath is the path of the uncommitted file, for collaborators that edit it in place.
func (w *AtomicWriter) TempPath() string {
	return w.tmpPath
}

// Path is the final destination.
func (w *AtomicWriter) Path() string {
	return w.path
}

// Close flushes and closes the temp file without committing it.
//
// Safe to call before [AtomicWriter.Commit] when the temp file needs to be reopened by path.
func (w *AtomicWriter) Close() error {
	if w.file == nil {
		return nil
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	err := w.file.Close()
	w.file = nil
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// Commit renames the temp file over the target.
func (w *AtomicWriter) Commit() error {
	if err := w.Close(); err != nil {
		w.Abort()
		return err
	}
	if err := os.Rename(w.tmpPath, w.path); err != nil {
		w.Abort()
		return fmt.Errorf("rename: %w", err)
	}
	w.done = true
	return nil
}

// Abort discards the temp file. It is a no-op after a successful Commit.
func (w *AtomicWriter) Abort() error {
	if w.done {
		return nil
	}
	if w.file != nil {
		w.file.Close()
		w.file = nil
	}
	w.done = true
	if err := os.Remove(w.tmpPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
