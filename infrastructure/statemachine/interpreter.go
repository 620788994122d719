package statemachine

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// ErrInvalidTransition indicates an event the current state does not accept.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

// Interpreter wraps the statekit interpreter for one dispatch.
type Interpreter struct {
	interp *statekit.Interpreter[*Context]
	ctx    *Context
}

// NewInterpreter creates an interpreter bound to ctx. The machine config
// is shared; each dispatch gets its own interpreter.
func NewInterpreter(machine *statekit.MachineConfig[*Context], ctx *Context) *Interpreter {
	interp := statekit.NewInterpreter(machine)
	interp.UpdateContext(func(c **Context) {
		*c = ctx
	})
	return &Interpreter{
		interp: interp,
		ctx:    ctx,
	}
}

// Start enters the initial state.
func (i *Interpreter) Start() {
	i.interp.Start()
}

// Stop stops the interpreter.
func (i *Interpreter) Stop() {
	i.interp.Stop()
}

// State returns the current state.
func (i *Interpreter) State() State {
	return State(i.interp.State().Value)
}

// Fire sends event and reports ErrInvalidTransition when the machine
// did not move.
func (i *Interpreter) Fire(event statekit.EventType) error {
	return i.send(event, 0)
}

// Resolve moves to resolved, pinning the descriptor version.
func (i *Interpreter) Resolve(version uint64) error {
	return i.send(EventResolve, version)
}

func (i *Interpreter) send(event statekit.EventType, version uint64) (err error) {
	from := i.State()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s on %s: %v", ErrInvalidTransition, event, from, r)
		}
	}()
	i.interp.Send(statekit.Event{
		Type:    event,
		Payload: Payload{From: from, To: targets[event], Version: version},
	})
	if to := i.State(); to == from {
		return fmt.Errorf("%w: %s on %s", ErrInvalidTransition, event, from)
	}
	return nil
}

// IsTerminal returns true if the interpreter is in a final state.
func (i *Interpreter) IsTerminal() bool {
	return i.interp.Done()
}

// Trail returns the recorded transitions.
func (i *Interpreter) Trail() []Transition {
	return append([]Transition(nil), i.ctx.Trail...)
}

// Path returns the visited states, starting with the initial one.
func (i *Interpreter) Path() []State {
	path := []State{StateResolving}
	for _, t := range i.ctx.Trail {
		path = append(path, t.To)
	}
	return path
}

// Context returns the interpreter context.
func (i *Interpreter) Context() *Context {
	return i.ctx
}
