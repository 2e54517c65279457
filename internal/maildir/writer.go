package maildir

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Writer is the handle returned by Spool.NewMessage. Exactly one of
// Commit or Abort has observable effect; both are idempotent, and Commit
// after Abort fails with ErrWriterMisuse.
type Writer struct {
	mu      sync.Mutex
	file    *os.File
	tmpPath string
	newPath string
	closed  bool
	aborted bool
}

// Write appends data to the tmp file. It may be called repeatedly before
// Commit or Abort.
func (w *Writer) Write(data []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, fmt.Errorf("maildir: write after commit/abort")
	}
	return w.file.Write(data)
}

// WriteLines writes each element of lines in order.
func (w *Writer) WriteLines(lines [][]byte) error {
	for _, line := range lines {
		if _, err := w.Write(line); err != nil {
			return err
		}
	}
	return nil
}

// ReadFrom streams r into the tmp file, satisfying io.ReaderFrom so callers
// can copy a message body without buffering it twice.
func (w *Writer) ReadFrom(r io.Reader) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, fmt.Errorf("maildir: write after commit/abort")
	}
	return io.Copy(w.file, r)
}

// Commit flushes, closes, and atomically renames tmp/<key> to new/<key>.
// Idempotent: a second Commit call is a no-op. Commit after Abort returns
// ErrWriterMisuse.
func (w *Writer) Commit() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed && w.aborted {
		return ErrWriterMisuse
	}
	if w.closed {
		return nil
	}

	w.closed = true
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("maildir: sync %s: %w", w.tmpPath, err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("maildir: close %s: %w", w.tmpPath, err)
	}
	if err := os.Rename(w.tmpPath, w.newPath); err != nil {
		return fmt.Errorf("maildir: commit rename %s -> %s: %w", w.tmpPath, w.newPath, err)
	}
	return nil
}

// Abort closes and unlinks the tmp file. Idempotent: a second Abort call,
// or an Abort after a successful Commit, is a no-op.
func (w *Writer) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	w.aborted = true
	_ = w.file.Close()
	if err := os.Remove(w.tmpPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("maildir: abort unlink %s: %w", w.tmpPath, err)
	}
	return nil
}

// NewPath returns the target new/<key> path this writer will commit to.
func (w *Writer) NewPath() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.newPath
}
