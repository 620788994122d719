// Package logging is the tool host's structured logger. It wraps a single
// process-wide bolt logger; callers build lines with the field helpers in
// fields.go, e.g.
//
//	logging.Info().Add(logging.ToolName("add")).Add(logging.Version(2)).Msg("tool registered")
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/felixgeelhaar/bolt/v3"
)

var (
	defaultLogger *bolt.Logger
	once          sync.Once
)

// levels maps configuration names to bolt levels.
var levels = map[string]bolt.Level{
	"trace": bolt.TRACE,
	"debug": bolt.DEBUG,
	"info":  bolt.INFO,
	"warn":  bolt.WARN,
	"error": bolt.ERROR,
}

// Config selects level, encoding and destination of host logs.
type Config struct {
	// Level is one of trace, debug, info, warn or error.
	Level string

	// Format is "json" for one object per line; anything else is console.
	Format string

	// Output receives log lines. Stdout carries tool results and the serve
	// protocol, so logs default to stderr.
	Output io.Writer
}

// DefaultConfig logs info and above to stderr in console form.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "console",
		Output: os.Stderr,
	}
}

// ValidLevel reports whether s names a supported level.
func ValidLevel(s string) bool {
	_, ok := levels[s]
	return ok
}

// parseLevel falls back to info for unknown names.
func parseLevel(s string) bolt.Level {
	if l, ok := levels[s]; ok {
		return l
	}
	return bolt.INFO
}

// Init configures the process logger. Only the first call picks the
// output and format; use SetLevel to change verbosity afterwards.
func Init(config Config) {
	once.Do(func() {
		output := config.Output
		if output == nil {
			output = os.Stderr
		}

		var handler bolt.Handler = bolt.NewConsoleHandler(output)
		if config.Format == "json" {
			handler = bolt.NewJSONHandler(output)
		}
		defaultLogger = bolt.New(handler).SetLevel(parseLevel(config.Level))
	})
}

// Get returns the process logger, installing DefaultConfig on first use.
func Get() *bolt.Logger {
	Init(DefaultConfig())
	return defaultLogger
}

// SetLevel changes the verbosity of the process logger.
func SetLevel(level string) {
	Get().SetLevel(parseLevel(level))
}

// LogEvent chains Fields onto one pending log line.
type LogEvent struct {
	event *bolt.Event
}

// NewEvent wraps e, typically from a logger other than the process one.
func NewEvent(e *bolt.Event) *LogEvent {
	return &LogEvent{event: e}
}

// Add applies f and returns the event for chaining.
func (l *LogEvent) Add(f Field) *LogEvent {
	l.event = f(l.event)
	return l
}

// Msg writes the line with msg.
func (l *LogEvent) Msg(msg string) {
	l.event.Msg(msg)
}

// Send writes the line without a message.
func (l *LogEvent) Send() {
	l.event.Send()
}

// Debug, Info, Warn and Error start a line on the process logger.

func Debug() *LogEvent { return NewEvent(Get().Debug()) }

func Info() *LogEvent { return NewEvent(Get().Info()) }

func Warn() *LogEvent { return NewEvent(Get().Warn()) }

func Error() *LogEvent { return NewEvent(Get().Error()) }
