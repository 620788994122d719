package statemachine

import (
	"time"

	"github.com/felixgeelhaar/statekit"
)

// Payload carries data with a lifecycle event.
type Payload struct {
	From    State
	To      State
	Version uint64
}

// targets maps each event to the state it leads to from its source state.
var targets = map[statekit.EventType]State{
	EventResolve:  StateResolved,
	EventMissing:  StateNotFound,
	EventReject:   StateRejected,
	EventHooks:    StateBeforeHooks,
	EventVeto:     StateVetoed,
	EventProceed:  StateExecuting,
	EventSucceed:  StateSucceeded,
	EventFail:     StateFailed,
	EventObserve:  StateAfterHooks,
	EventComplete: StateDone,
}

// recordTransition appends the step to the trail and pins the resolved
// version.
// Actions receive a pointer to the context, hence **Context.
func recordTransition(ctx **Context, event statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}
	c := *ctx

	var from State
	if payload, ok := event.Payload.(Payload); ok {
		from = payload.From
		if payload.Version > 0 {
			c.Version = payload.Version
		}
	}
	c.Trail = append(c.Trail, Transition{
		From:  from,
		To:    targets[event.Type],
		Event: event.Type,
		At:    time.Now(),
	})
}
