package handler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	domainconfig "github.com/felixgeelhaar/toolhost/domain/config"
)

// answerModule is a minimal module exporting "run" () -> i32 returning 42.
func answerModule() []byte {
	return []byte{
		0x00, 0x61, 0x73, 0x6d, // magic
		0x01, 0x00, 0x00, 0x00, // version

		0x01, 0x05, 0x01, 0x60, 0x00, 0x01, 0x7f, // type: () -> i32
		0x03, 0x02, 0x01, 0x00, // function 0 has type 0
		0x07, 0x07, 0x01, 0x03, 0x72, 0x75, 0x6e, 0x00, 0x00, // export "run"
		0x0a, 0x06, 0x01, 0x04, 0x00, 0x41, 0x2a, 0x0b, // i32.const 42
	}
}

func newTestRuntime(t *testing.T) *WASMRuntime {
	t.Helper()
	rt, err := NewWASMRuntime(context.Background(), 16)
	if err != nil {
		t.Fatalf("NewWASMRuntime() error = %v", err)
	}
	t.Cleanup(func() { _ = rt.Close(context.Background()) })
	return rt
}

func TestWASMModule_Call(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(t)
	mod, err := rt.Compile(context.Background(), "answer", answerModule(), "")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		got, err := mod.Call(context.Background(), nil)
		if err != nil {
			t.Fatalf("Call() #%d error = %v", i, err)
		}
		if want := map[string]any{"result": int64(42)}; !reflect.DeepEqual(got, want) {
			t.Errorf("Call() = %#v, want %#v", got, want)
		}
	}
}

func TestWASMRuntime_CompileErrors(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(t)

	if _, err := rt.Compile(context.Background(), "x", []byte("not wasm"), ""); err == nil {
		t.Error("Compile() should reject invalid bytes")
	}
	if _, err := rt.Compile(context.Background(), "x", answerModule(), "main"); !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("Compile() with missing entry error = %v, want ErrInvalidSpec", err)
	}
	if _, err := rt.Load(context.Background(), "x", filepath.Join(t.TempDir(), "missing.wasm"), ""); err == nil {
		t.Error("Load() should fail for a missing file")
	}
}

func TestFactory_Build(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "answer.wasm"), answerModule(), 0o600); err != nil {
		t.Fatal(err)
	}

	f := NewFactory(WithWASMMemoryPages(16))
	t.Cleanup(func() { _ = f.Close(context.Background()) })

	t.Run("wasm artifact", func(t *testing.T) {
		built, err := f.Build(context.Background(), domainconfig.ToolManifest{
			Name:    "answer",
			Handler: domainconfig.ToolHandlerConfig{Type: "wasm", Path: "answer.wasm"},
		}, dir)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if !reflect.DeepEqual(built.Artifact, answerModule()) {
			t.Error("Artifact should hold the module bytes")
		}
		if _, err := built.Handler(context.Background(), nil); err != nil {
			t.Errorf("Handler() error = %v", err)
		}
	})

	t.Run("http breaker is shared per url", func(t *testing.T) {
		m := domainconfig.ToolManifest{
			Name:    "remote",
			Handler: domainconfig.ToolHandlerConfig{Type: "http", URL: "http://127.0.0.1:1/run"},
		}
		if _, err := f.Build(context.Background(), m, dir); err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if f.BreakerState("http://127.0.0.1:1/run") == "unknown" {
			t.Error("Build() should create a breaker for the endpoint")
		}
		if f.BreakerState("http://example.invalid") != "unknown" {
			t.Error("BreakerState() for an unused url should be unknown")
		}
	})

	t.Run("errors", func(t *testing.T) {
		tests := []struct {
			spec    domainconfig.ToolHandlerConfig
			wantErr error
		}{
			{domainconfig.ToolHandlerConfig{Type: "grpc"}, ErrUnsupportedType},
			{domainconfig.ToolHandlerConfig{Type: "exec"}, ErrInvalidSpec},
			{domainconfig.ToolHandlerConfig{Type: "http"}, ErrInvalidSpec},
			{domainconfig.ToolHandlerConfig{Type: "wasm"}, ErrInvalidSpec},
		}
		for _, tt := range tests {
			_, err := f.Build(context.Background(), domainconfig.ToolManifest{Name: "x", Handler: tt.spec}, dir)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Build(%s) error = %v, want %v", tt.spec.Type, err, tt.wantErr)
			}
		}
	})
}
