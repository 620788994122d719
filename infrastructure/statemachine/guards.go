package statemachine

import (
	"github.com/felixgeelhaar/statekit"
)

// guardHasVersion admits RESOLVE only for a registered descriptor.
// Guards receive the context by value; ours is already a pointer.
func guardHasVersion(_ *Context, event statekit.Event) bool {
	payload, ok := event.Payload.(Payload)
	return ok && payload.Version > 0
}
