package hook_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/toolhost/domain/hook"
	"github.com/felixgeelhaar/toolhost/domain/tool"
)

func newInvocation(args tool.Arguments) *hook.Invocation {
	d := tool.Descriptor{Name: "login", Version: 3}
	return hook.NewInvocation("inv-1", d, args, "tester")
}

func TestPipeline_RunsInRegistrationOrder(t *testing.T) {
	t.Parallel()

	p := hook.NewPipeline()
	var order []string
	for _, name := range []string{"first", "second", "third"} {
		p.OnBefore(name, func(_ context.Context, _ *hook.BeforeEvent) error {
			order = append(order, name)
			return nil
		})
	}

	if veto := p.RunBefore(context.Background(), newInvocation(nil)); veto != nil {
		t.Fatalf("RunBefore() veto = %v", veto)
	}
	if want := []string{"first", "second", "third"}; !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestPipeline_MaskThenLog(t *testing.T) {
	t.Parallel()

	p := hook.NewPipeline()
	p.OnBefore("mask", func(_ context.Context, ev *hook.BeforeEvent) error {
		ev.Invocation.Mask("password", "********")
		return nil
	})

	var logged tool.Arguments
	p.OnBefore("log", func(_ context.Context, ev *hook.BeforeEvent) error {
		logged = ev.Invocation.Arguments.Clone()
		return nil
	})

	inv := newInvocation(tool.Arguments{"password": "hunter2"})
	p.RunBefore(context.Background(), inv)

	if want := (tool.Arguments{"password": "********"}); !reflect.DeepEqual(logged, want) {
		t.Errorf("logging hook saw %v, want %v", logged, want)
	}
	if got := inv.HandlerArguments()["password"]; got != "hunter2" {
		t.Errorf("handler receives %v, want original value", got)
	}

	var observed tool.Arguments
	p.OnAfter("observe", func(_ context.Context, ev hook.AfterEvent) error {
		observed = ev.Invocation.Arguments
		return nil
	})
	p.RunAfter(context.Background(), inv, "ok", time.Millisecond)
	if observed["password"] != "********" {
		t.Errorf("after hook saw %v, want placeholder", observed["password"])
	}
}

func TestPipeline_NestedMask(t *testing.T) {
	t.Parallel()

	inv := newInvocation(tool.Arguments{
		"device": map[string]any{"host": "r1", "secret": "s3cr3t"},
	})
	if !inv.MaskPath([]string{"device", "secret"}, "***") {
		t.Fatal("MaskPath() = false")
	}
	if inv.MaskPath([]string{"device", "missing"}, "***") {
		t.Error("MaskPath() on a missing key should report false")
	}

	nested := inv.Arguments["device"].(map[string]any)
	if nested["secret"] != "***" || nested["host"] != "r1" {
		t.Errorf("observed device = %v", nested)
	}
	handler := inv.HandlerArguments()["device"].(map[string]any)
	if handler["secret"] != "s3cr3t" {
		t.Errorf("handler device secret = %v", handler["secret"])
	}
}

func TestPipeline_ArrayIndexMask(t *testing.T) {
	t.Parallel()

	inv := newInvocation(tool.Arguments{
		"devices": []any{
			map[string]any{"host": "r1", "password": "p1"},
			map[string]any{"host": "r2", "password": "p2"},
		},
		"keys": []any{"k0", "k1"},
	})

	tests := []struct {
		path []string
		want bool
	}{
		{[]string{"devices", "1", "password"}, true},
		{[]string{"keys", "0"}, true},
		{[]string{"devices", "2", "password"}, false},
		{[]string{"devices", "-1", "password"}, false},
		{[]string{"devices", "first", "password"}, false},
		{[]string{"keys", "0", "nested"}, false},
	}
	for _, tt := range tests {
		if got := inv.MaskPath(tt.path, "***"); got != tt.want {
			t.Errorf("MaskPath(%v) = %v, want %v", tt.path, got, tt.want)
		}
	}

	observed := inv.Arguments["devices"].([]any)
	if observed[0].(map[string]any)["password"] != "p1" || observed[1].(map[string]any)["password"] != "***" {
		t.Errorf("observed devices = %v", observed)
	}
	if keys := inv.Arguments["keys"].([]any); keys[0] != "***" || keys[1] != "k1" {
		t.Errorf("observed keys = %v", keys)
	}

	handler := inv.HandlerArguments()
	if got := handler["devices"].([]any)[1].(map[string]any)["password"]; got != "p2" {
		t.Errorf("handler password = %v, want p2", got)
	}
	if got := handler["keys"].([]any)[0]; got != "k0" {
		t.Errorf("handler key = %v, want k0", got)
	}
	if inv.Arguments["devices"].([]any)[1].(map[string]any)["password"] != "***" {
		t.Error("HandlerArguments() restored the observed copy")
	}
}

func TestPipeline_RewriteReachesHandler(t *testing.T) {
	t.Parallel()

	p := hook.NewPipeline()
	p.OnBefore("normalize", func(_ context.Context, ev *hook.BeforeEvent) error {
		ev.Invocation.Arguments["host"] = "r1.example.net"
		return nil
	})

	inv := newInvocation(tool.Arguments{"host": "r1"})
	p.RunBefore(context.Background(), inv)

	if got := inv.HandlerArguments()["host"]; got != "r1.example.net" {
		t.Errorf("handler host = %v, want rewritten value", got)
	}
}

func TestPipeline_VetoShortCircuits(t *testing.T) {
	t.Parallel()

	p := hook.NewPipeline()
	var ranAfterVeto bool
	p.OnBefore("policy", func(_ context.Context, _ *hook.BeforeEvent) error {
		return hook.Deny("not today")
	})
	p.OnBefore("later", func(_ context.Context, _ *hook.BeforeEvent) error {
		ranAfterVeto = true
		return nil
	})

	veto := p.RunBefore(context.Background(), newInvocation(nil))
	if veto == nil {
		t.Fatal("RunBefore() should return a veto")
	}
	if veto.Hook != "policy" || veto.Reason != "not today" {
		t.Errorf("veto = %+v", veto)
	}
	if !errors.Is(veto, tool.ErrVetoed) {
		t.Error("veto should match ErrVetoed")
	}
	if ranAfterVeto {
		t.Error("hooks after a veto must not run")
	}
}

func TestPipeline_ContainsHookFailures(t *testing.T) {
	t.Parallel()

	p := hook.NewPipeline()
	var (
		mu       sync.Mutex
		reported []*tool.HookError
	)
	p.OnError(func(_ context.Context, err *tool.HookError) {
		mu.Lock()
		defer mu.Unlock()
		reported = append(reported, err)
	})

	var reachedLast bool
	p.OnBefore("erroring", func(_ context.Context, _ *hook.BeforeEvent) error {
		return errors.New("disk full")
	})
	p.OnBefore("panicking", func(_ context.Context, _ *hook.BeforeEvent) error {
		panic("nil map")
	})
	p.OnBefore("last", func(_ context.Context, _ *hook.BeforeEvent) error {
		reachedLast = true
		return nil
	})
	p.OnFailure("broken-observer", func(_ context.Context, _ hook.FailureEvent) error {
		return errors.New("cannot write")
	})

	inv := newInvocation(nil)
	if veto := p.RunBefore(context.Background(), inv); veto != nil {
		t.Fatalf("hook errors must not veto, got %v", veto)
	}
	if !reachedLast {
		t.Error("pipeline should continue after a failing hook")
	}
	p.RunFailure(context.Background(), inv, &tool.HandlerError{Tool: "login", Err: errors.New("x")}, 0)

	if len(reported) != 3 {
		t.Fatalf("reported %d hook errors, want 3", len(reported))
	}
	for _, err := range reported {
		if !errors.Is(err, tool.ErrHook) {
			t.Errorf("reported error %v should match ErrHook", err)
		}
	}
	if reported[1].Hook != "panicking" || reported[2].Phase != string(hook.PhaseFailure) {
		t.Errorf("unexpected reports: %v / %v", reported[1], reported[2])
	}
}

func TestPipeline_AfterHooksCannotAlterValue(t *testing.T) {
	t.Parallel()

	p := hook.NewPipeline()
	p.OnAfter("vandal", func(_ context.Context, ev hook.AfterEvent) error {
		ev.Value.(map[string]any)["sum"] = 0
		ev.Invocation.Arguments["a"] = 0
		return nil
	})

	value := map[string]any{"sum": 12}
	inv := newInvocation(tool.Arguments{"a": 5})
	p.RunAfter(context.Background(), inv, value, time.Millisecond)

	if value["sum"] != 12 {
		t.Errorf("value mutated to %v", value["sum"])
	}
	if inv.Arguments["a"] != 5 {
		t.Errorf("invocation arguments mutated to %v", inv.Arguments["a"])
	}
}

func TestPipeline_FailureEventCarriesCause(t *testing.T) {
	t.Parallel()

	p := hook.NewPipeline()
	var got hook.FailureEvent
	p.OnFailure("capture", func(_ context.Context, ev hook.FailureEvent) error {
		got = ev
		return nil
	})

	veto := &tool.VetoError{Hook: "policy", Reason: "no"}
	p.RunFailure(context.Background(), newInvocation(nil), veto, 0)

	if !got.Vetoed() {
		t.Error("Vetoed() = false for a veto cause")
	}
	if got.Invocation.Tool != "login" || got.Invocation.Version != 3 {
		t.Errorf("invocation = %+v", got.Invocation)
	}
}

func TestPipeline_Add(t *testing.T) {
	t.Parallel()

	p := hook.NewPipeline()

	tests := []struct {
		name    string
		phase   hook.Phase
		fn      any
		wantErr bool
	}{
		{"before func literal", hook.PhaseBefore, func(context.Context, *hook.BeforeEvent) error { return nil }, false},
		{"named after func", hook.PhaseAfter, hook.AfterFunc(func(context.Context, hook.AfterEvent) error { return nil }), false},
		{"failure func literal", hook.PhaseFailure, func(context.Context, hook.FailureEvent) error { return nil }, false},
		{"after func in before phase", hook.PhaseBefore, func(context.Context, hook.AfterEvent) error { return nil }, true},
		{"nil callback", hook.PhaseAfter, nil, true},
		{"unknown phase", hook.Phase("during"), func(context.Context, *hook.BeforeEvent) error { return nil }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Add(tt.phase, tt.name, tt.fn)
			if (err != nil) != tt.wantErr {
				t.Errorf("Add() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if p.Len(hook.PhaseBefore) != 1 || p.Len(hook.PhaseAfter) != 1 || p.Len(hook.PhaseFailure) != 1 {
		t.Errorf("Len() = %d/%d/%d, want 1/1/1",
			p.Len(hook.PhaseBefore), p.Len(hook.PhaseAfter), p.Len(hook.PhaseFailure))
	}
}

type pairProvider struct{ calls *[]string }

func (pp pairProvider) RegisterHooks(p *hook.Pipeline) {
	p.OnBefore("pair.before", func(context.Context, *hook.BeforeEvent) error {
		*pp.calls = append(*pp.calls, "before")
		return nil
	})
	p.OnAfter("pair.after", func(context.Context, hook.AfterEvent) error {
		*pp.calls = append(*pp.calls, "after")
		return nil
	})
}

func TestPipeline_Install(t *testing.T) {
	t.Parallel()

	var calls []string
	p := hook.NewPipeline()
	p.Install(pairProvider{calls: &calls})

	inv := newInvocation(nil)
	p.RunBefore(context.Background(), inv)
	p.RunAfter(context.Background(), inv, nil, 0)

	if want := []string{"before", "after"}; !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestPipeline_ConcurrentRegistrationAndRuns(t *testing.T) {
	t.Parallel()

	p := hook.NewPipeline()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			p.OnAfter("noop", func(context.Context, hook.AfterEvent) error { return nil })
		}()
		go func() {
			defer wg.Done()
			p.RunAfter(context.Background(), newInvocation(tool.Arguments{"a": 1}), 1, 0)
		}()
	}
	wg.Wait()

	if p.Len(hook.PhaseAfter) != 20 {
		t.Errorf("Len(after) = %d, want 20", p.Len(hook.PhaseAfter))
	}
}
