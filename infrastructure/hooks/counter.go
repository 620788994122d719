package hooks

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/felixgeelhaar/toolhost/domain/hook"
)

// Counts are per-tool invocation totals.
type Counts struct {
	Calls     int64
	Successes int64
	Failures  int64
	Vetoes    int64
	Timeouts  int64
}

type counts struct {
	calls, successes, failures, vetoes, timeouts atomic.Int64
}

// Counter keeps per-tool invocation counts in memory.
type Counter struct {
	mu    sync.RWMutex
	tools map[string]*counts
}

// NewCounter creates a counting hook provider.
func NewCounter() *Counter {
	return &Counter{tools: make(map[string]*counts)}
}

// RegisterHooks implements hook.Provider.
func (c *Counter) RegisterHooks(p *hook.Pipeline) {
	p.OnBefore("count", func(_ context.Context, ev *hook.BeforeEvent) error {
		c.get(ev.Invocation.Tool).calls.Add(1)
		return nil
	})
	p.OnAfter("count", func(_ context.Context, ev hook.AfterEvent) error {
		c.get(ev.Invocation.Tool).successes.Add(1)
		return nil
	})
	p.OnFailure("count", func(_ context.Context, ev hook.FailureEvent) error {
		n := c.get(ev.Invocation.Tool)
		switch OutcomeOf(ev.Cause) {
		case OutcomeVetoed:
			n.vetoes.Add(1)
		case OutcomeTimeout:
			n.timeouts.Add(1)
		default:
			n.failures.Add(1)
		}
		return nil
	})
}

func (c *Counter) get(name string) *counts {
	c.mu.RLock()
	n, ok := c.tools[name]
	c.mu.RUnlock()
	if ok {
		return n
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok = c.tools[name]; !ok {
		n = &counts{}
		c.tools[name] = n
	}
	return n
}

// Get returns the counts for a tool.
func (c *Counter) Get(name string) Counts {
	c.mu.RLock()
	n, ok := c.tools[name]
	c.mu.RUnlock()
	if !ok {
		return Counts{}
	}
	return Counts{
		Calls:     n.calls.Load(),
		Successes: n.successes.Load(),
		Failures:  n.failures.Load(),
		Vetoes:    n.vetoes.Load(),
		Timeouts:  n.timeouts.Load(),
	}
}

// Tools lists the tools seen so far.
func (c *Counter) Tools() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.tools))
	for name := range c.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
