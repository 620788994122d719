// Package statemachine provides the statekit integration for the per-call
// dispatch lifecycle.
package statemachine

import (
	"time"

	"github.com/felixgeelhaar/statekit"
)

// State is a dispatch lifecycle state.
type State string

// Dispatch lifecycle states.
const (
	StateResolving   State = "resolving"
	StateNotFound    State = "not_found"
	StateResolved    State = "resolved"
	StateRejected    State = "rejected"
	StateBeforeHooks State = "before_hooks"
	StateVetoed      State = "vetoed"
	StateExecuting   State = "executing"
	StateSucceeded   State = "succeeded"
	StateFailed      State = "failed"
	StateAfterHooks  State = "after_hooks"
	StateDone        State = "done"
)

// Events that drive the lifecycle.
const (
	EventResolve  statekit.EventType = "RESOLVE"
	EventMissing  statekit.EventType = "MISSING"
	EventReject   statekit.EventType = "REJECT"
	EventHooks    statekit.EventType = "HOOKS"
	EventVeto     statekit.EventType = "VETO"
	EventProceed  statekit.EventType = "PROCEED"
	EventSucceed  statekit.EventType = "SUCCEED"
	EventFail     statekit.EventType = "FAIL"
	EventObserve  statekit.EventType = "OBSERVE"
	EventComplete statekit.EventType = "COMPLETE"
)

// Transition records one lifecycle step.
type Transition struct {
	From  State
	To    State
	Event statekit.EventType
	At    time.Time
}

// Context carries one dispatch through the machine.
type Context struct {
	InvocationID string
	Tool         string
	Version      uint64
	Trail        []Transition
}

// NewContext creates a new machine context.
func NewContext(invocationID, toolName string) *Context {
	return &Context{
		InvocationID: invocationID,
		Tool:         toolName,
	}
}

func sid(s State) statekit.StateID { return statekit.StateID(s) }

// NewDispatchMachine creates the dispatch lifecycle statechart:
// resolving → (not_found | resolved) → (rejected | before_hooks) →
// (vetoed | executing) → (succeeded | failed) → after_hooks → done.
func NewDispatchMachine() (*statekit.MachineConfig[*Context], error) {
	return statekit.NewMachine[*Context]("dispatch").
		WithInitial(sid(StateResolving)).
		WithContext(&Context{}).
		WithAction("record", recordTransition).
		WithGuard("hasVersion", guardHasVersion).
		State(sid(StateResolving)).
			On(EventResolve).Target(sid(StateResolved)).Guard("hasVersion").Do("record").
			On(EventMissing).Target(sid(StateNotFound)).Do("record").
			Done().
		State(sid(StateNotFound)).
			Final().
			Done().
		State(sid(StateResolved)).
			On(EventHooks).Target(sid(StateBeforeHooks)).Do("record").
			On(EventReject).Target(sid(StateRejected)).Do("record").
			Done().
		State(sid(StateRejected)).
			Final().
			Done().
		State(sid(StateBeforeHooks)).
			On(EventProceed).Target(sid(StateExecuting)).Do("record").
			On(EventVeto).Target(sid(StateVetoed)).Do("record").
			Done().
		State(sid(StateVetoed)).
			On(EventObserve).Target(sid(StateAfterHooks)).Do("record").
			Done().
		State(sid(StateExecuting)).
			On(EventSucceed).Target(sid(StateSucceeded)).Do("record").
			On(EventFail).Target(sid(StateFailed)).Do("record").
			Done().
		State(sid(StateSucceeded)).
			On(EventObserve).Target(sid(StateAfterHooks)).Do("record").
			Done().
		State(sid(StateFailed)).
			On(EventObserve).Target(sid(StateAfterHooks)).Do("record").
			Done().
		State(sid(StateAfterHooks)).
			On(EventComplete).Target(sid(StateDone)).Do("record").
			Done().
		State(sid(StateDone)).
			Final().
			Done().
		Build()
}
