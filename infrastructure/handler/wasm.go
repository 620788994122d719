package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/felixgeelhaar/toolhost/domain/tool"
)

// DefaultEntry is the exported function called when a spec names none.
const DefaultEntry = "run"

// WASMRuntime compiles and runs WebAssembly tool modules with wazero.
type WASMRuntime struct {
	runtime wazero.Runtime
}

// NewWASMRuntime creates a runtime with WASI available and guest memory
// capped at memoryPages 64KiB pages.
func NewWASMRuntime(ctx context.Context, memoryPages uint32) (*WASMRuntime, error) {
	cfg := wazero.NewRuntimeConfig()
	if memoryPages > 0 {
		cfg = cfg.WithMemoryLimitPages(memoryPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}
	return &WASMRuntime{runtime: rt}, nil
}

// Load reads and compiles the module at path, verifying entry is exported.
func (r *WASMRuntime) Load(ctx context.Context, name, path, entry string) (*WASMModule, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: wasm handler requires a path", ErrInvalidSpec)
	}
	code, err := os.ReadFile(path) // #nosec G304 -- path comes from a trusted manifest
	if err != nil {
		return nil, fmt.Errorf("read wasm module: %w", err)
	}
	return r.Compile(ctx, name, code, entry)
}

// Compile compiles module bytes, verifying entry is exported.
func (r *WASMRuntime) Compile(ctx context.Context, name string, code []byte, entry string) (*WASMModule, error) {
	if entry == "" {
		entry = DefaultEntry
	}
	compiled, err := r.runtime.CompileModule(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to compile WASM module: %w", err)
	}
	if _, ok := compiled.ExportedFunctions()[entry]; !ok {
		_ = compiled.Close(ctx)
		return nil, fmt.Errorf("%w: entry point function %q not exported", ErrInvalidSpec, entry)
	}
	return &WASMModule{
		runtime:  r.runtime,
		compiled: compiled,
		name:     name,
		entry:    entry,
		code:     code,
	}, nil
}

// Close releases the runtime and every module compiled by it.
func (r *WASMRuntime) Close(ctx context.Context) error {
	return r.runtime.Close(ctx)
}

// WASMModule is a compiled tool module. Each call runs in a fresh instance,
// so concurrent calls share no guest state.
type WASMModule struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	name     string
	entry    string
	code     []byte
}

// Bytes returns the module binary.
func (m *WASMModule) Bytes() []byte {
	return m.code
}

// Call instantiates the module and invokes the entry point. When the
// module exports malloc, the JSON arguments are written to guest memory and
// passed as (ptr, len); a (ptr, len) result is read back as the output.
// Otherwise the entry is called without input and a numeric result is
// returned as {"result": n}.
func (m *WASMModule) Call(ctx context.Context, args tool.Arguments) (any, error) {
	// Anonymous instances may coexist; a named one would collide across calls.
	mod, err := m.runtime.InstantiateModule(ctx, m.compiled, wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions())
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate WASM module %s: %w", m.name, err)
	}
	defer mod.Close(ctx)

	fn := mod.ExportedFunction(m.entry)
	if fn == nil {
		return nil, fmt.Errorf("entry point function %q not found", m.entry)
	}

	malloc := mod.ExportedFunction("malloc")
	if malloc == nil {
		results, err := fn.Call(ctx)
		if err != nil {
			return nil, fmt.Errorf("WASM execution failed: %w", err)
		}
		if len(results) == 0 {
			return nil, nil
		}
		return map[string]any{"result": decodeScalar(fn.Definition(), results[0])}, nil
	}

	input, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode arguments: %w", err)
	}
	inputLen := uint64(len(input))

	allocResults, err := malloc.Call(ctx, inputLen)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate memory: %w", err)
	}
	inputPtr := allocResults[0]

	memory := mod.Memory()
	if memory == nil {
		return nil, errors.New("module has no memory")
	}
	if !memory.Write(uint32(inputPtr), input) { // #nosec G115 -- guest pointers are 32-bit
		return nil, errors.New("failed to write input to memory")
	}

	results, err := fn.Call(ctx, inputPtr, inputLen)
	if err != nil {
		return nil, fmt.Errorf("WASM execution failed: %w", err)
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return map[string]any{"result": decodeScalar(fn.Definition(), results[0])}, nil
	default:
		out, ok := memory.Read(uint32(results[0]), uint32(results[1])) // #nosec G115 -- guest pointers are 32-bit
		if !ok {
			return nil, errors.New("failed to read result from memory")
		}
		return decodeOutput(out), nil
	}
}

// decodeScalar converts the first raw result according to its declared type.
func decodeScalar(def api.FunctionDefinition, raw uint64) any {
	types := def.ResultTypes()
	if len(types) == 0 {
		return raw
	}
	switch types[0] {
	case api.ValueTypeI32:
		return int64(api.DecodeI32(raw))
	case api.ValueTypeI64:
		return int64(raw) // #nosec G115 -- reinterpreting the guest's i64
	case api.ValueTypeF32:
		return float64(api.DecodeF32(raw))
	case api.ValueTypeF64:
		return api.DecodeF64(raw)
	default:
		return raw
	}
}
