package logging

import (
	"time"

	"github.com/felixgeelhaar/bolt/v3"
)

// Field is a function that applies structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

// Common field constructors for tool host logging.

// ToolName adds a tool name field.
func ToolName(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("tool", name)
	}
}

// Version adds a descriptor version field.
func Version(v uint64) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("version", int64(v)) // #nosec G115 -- versions stay far below MaxInt64
	}
}

// Origin adds a tool source field.
func Origin(origin string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("origin", origin)
	}
}

// InvocationID adds an invocation ID field.
func InvocationID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("invocation_id", id)
	}
}

// Caller adds a caller identity field.
func Caller(caller string) Field {
	return func(e *bolt.Event) *bolt.Event {
		if caller == "" {
			return e
		}
		return e.Str("caller", caller)
	}
}

// Phase adds a hook phase field.
func Phase(phase string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("phase", phase)
	}
}

// Hook adds a hook name field.
func Hook(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("hook", name)
	}
}

// Outcome adds a dispatch outcome field.
func Outcome(outcome string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("outcome", outcome)
	}
}

// Count adds an integer count field with a custom key.
func Count(key string, n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int(key, n)
	}
}

// Duration adds a duration field in milliseconds.
func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ms", d.Milliseconds())
	}
}

// ErrorField adds an error field.
func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}

// Reason adds a reason field.
func Reason(reason string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("reason", reason)
	}
}

// Component adds a component field for categorization.
func Component(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("component", name)
	}
}

// Str adds a string field with custom key.
func Str(key, value string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str(key, value)
	}
}

// Bool adds a boolean field with custom key.
func Bool(key string, value bool) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Bool(key, value)
	}
}

// None adds nothing; it stands in for an optional field.
func None() Field {
	return func(e *bolt.Event) *bolt.Event {
		return e
	}
}
