// Package testing holds helpers shared by parser and loader tests.
package testing

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"
)

// NewTestLogger returns a debug level logger and the buffer it writes to, so
// tests can assert on emitted records.
func NewTestLogger(t testing.TB) (*slog.Logger, *SyncBuffer) {
	t.Helper()

	buf := &SyncBuffer{}
	handler := slog.NewTextHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	logger := slog.New(handler)
	return logger, buf
}

// SyncBuffer is a bytes.Buffer safe for loggers used from several goroutines.
type SyncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
