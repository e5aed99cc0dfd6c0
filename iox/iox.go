// Package iox provides I/O helpers for resource cleanup and shared writers.
package iox

import (
	"io"
	"sync"
)

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a cleanup function that closes c.
// Designed for t.Cleanup registration:
//
//	t.Cleanup(iox.CloseFunc(client))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr calls fn and discards the returned error.
// Use for non-Close cleanup calls (e.g. os.RemoveAll) where errors are unactionable:
//
//	defer iox.DiscardErr(func() error { return os.RemoveAll(dir) })
func DiscardErr(fn func() error) { _ = fn() }

// LockedWriter serializes writes to an underlying writer.
// Each Write call reaches the underlying writer whole, so concurrent
// producers never interleave inside a single chunk.
type LockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLockedWriter wraps w. A nil w discards all writes.
func NewLockedWriter(w io.Writer) *LockedWriter {
	if w == nil {
		w = io.Discard
	}
	return &LockedWriter{w: w}
}

// Write implements io.Writer.
func (l *LockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
