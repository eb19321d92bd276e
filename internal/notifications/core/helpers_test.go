package core

import (
	"sync"
	"time"

	"buildalert/internal/types"
)

// mockLogger records error messages so tests can assert on logged failures.
type mockLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *mockLogger) Info(msg string, args ...any) {}
func (l *mockLogger) Warn(msg string, args ...any) {}
func (l *mockLogger) Error(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}
func (l *mockLogger) With(args ...any) types.Logger { return l }

type mockClock struct {
	now time.Time
}

func (c *mockClock) Now() time.Time { return c.now }
