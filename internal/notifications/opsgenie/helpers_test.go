package opsgenie

import (
	"fmt"
	"sync"
	"time"

	"buildalert/internal/types"
)

// logEntry is one captured log call.
type logEntry struct {
	level string
	msg   string
	args  []any
}

// mockLogger captures log calls. With returns the same logger so captured
// entries are shared.
type mockLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *mockLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *mockLogger) Info(msg string, args ...any)  { l.record("info", msg, args) }
func (l *mockLogger) Error(msg string, args ...any) { l.record("error", msg, args) }
func (l *mockLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args) }
func (l *mockLogger) With(args ...any) types.Logger { return l }

func (l *mockLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level {
			n++
		}
	}
	return n
}

// dump renders every entry, for asserting that secrets never reach the log.
func (l *mockLogger) dump() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fmt.Sprint(l.entries)
}

// recordingConsole captures console lines.
type recordingConsole struct {
	lines []string
}

func (c *recordingConsole) Println(msg string) {
	c.lines = append(c.lines, msg)
}

type mockClock struct {
	now time.Time
}

func (c *mockClock) Now() time.Time { return c.now }
