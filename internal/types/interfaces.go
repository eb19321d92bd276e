package types

import (
	"fmt"
	"io"
	"time"
)

// Validator is implemented by entities to self-validate.
type Validator interface {
	Validate() error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// Logger defines the structured logging interface used throughout the module.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}

// Console is the operator-visible output stream, e.g. the build log of the
// CI job that triggered the notification.
type Console interface {
	Println(msg string)
}

// WriterConsole writes console lines to an io.Writer.
type WriterConsole struct {
	W io.Writer
}

// Println writes msg followed by a newline. Write errors are dropped.
func (c WriterConsole) Println(msg string) {
	_, _ = fmt.Fprintln(c.W, msg)
}

// LoggerConsole forwards console lines to a structured logger, for
// environments without an attached build log (Lambda, relay service).
type LoggerConsole struct {
	Logger Logger
}

// Println logs msg at info level.
func (c LoggerConsole) Println(msg string) {
	c.Logger.Info(msg, "stream", "console")
}

// NopConsole discards all output.
type NopConsole struct{}

// Println does nothing.
func (NopConsole) Println(string) {}
