// Package handler builds tool handlers from manifest handler specs.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"

	domainconfig "github.com/felixgeelhaar/toolhost/domain/config"
	"github.com/felixgeelhaar/toolhost/domain/tool"
)

// Handler errors.
var (
	// ErrUnsupportedType indicates an unknown handler type.
	ErrUnsupportedType = errors.New("unsupported handler type")

	// ErrInvalidSpec indicates a handler spec is missing required fields.
	ErrInvalidSpec = errors.New("invalid handler spec")

	// ErrExitStatus indicates an exec handler exited non-zero.
	ErrExitStatus = errors.New("command exited with non-zero status")

	// ErrRemoteStatus indicates an http handler got a non-2xx response.
	ErrRemoteStatus = errors.New("remote returned error status")

	// ErrOutputTooLarge indicates handler output exceeded the configured limit.
	ErrOutputTooLarge = errors.New("handler output too large")
)

// Built is a handler compiled from a manifest.
type Built struct {
	// Handler executes the tool.
	Handler tool.Handler
	// Artifact holds bytes the handler was built from beyond the manifest
	// itself (the WASM module), for change detection.
	Artifact []byte
}

// Config configures a Factory.
type Config struct {
	// HTTPTimeout bounds a single HTTP attempt.
	HTTPTimeout time.Duration
	// HTTPRetries is the attempt count for idempotent HTTP tools.
	HTTPRetries int
	// BreakerThreshold is consecutive failures before an endpoint's circuit opens.
	BreakerThreshold int
	// BreakerTimeout is how long an open circuit rejects calls.
	BreakerTimeout time.Duration
	// MaxOutput caps exec stdout and HTTP response bodies in bytes.
	MaxOutput int64
	// WASMMemoryPages caps guest memory in 64KiB pages.
	WASMMemoryPages uint32
}

// DefaultConfig returns sensible handler defaults.
func DefaultConfig() Config {
	return Config{
		HTTPTimeout:      30 * time.Second,
		HTTPRetries:      3,
		BreakerThreshold: 5,
		BreakerTimeout:   30 * time.Second,
		MaxOutput:        1 << 20,
		WASMMemoryPages:  1024, // 64MiB
	}
}

// Option configures a Factory.
type Option func(*Config)

// WithHTTPTimeout sets the per-attempt HTTP timeout.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *Config) { c.HTTPTimeout = d }
}

// WithHTTPRetries sets the attempt count for idempotent HTTP tools.
func WithHTTPRetries(n int) Option {
	return func(c *Config) { c.HTTPRetries = n }
}

// WithMaxOutput sets the output cap in bytes.
func WithMaxOutput(n int64) Option {
	return func(c *Config) { c.MaxOutput = n }
}

// WithWASMMemoryPages sets the guest memory limit.
func WithWASMMemoryPages(pages uint32) Option {
	return func(c *Config) { c.WASMMemoryPages = pages }
}

// Factory builds handlers for manifests. It owns the shared HTTP client,
// per-endpoint circuit breakers and the WASM runtime.
type Factory struct {
	config Config
	client *http.Client

	mu       sync.RWMutex
	breakers map[string]circuitbreaker.CircuitBreaker[any]

	wasmOnce sync.Once
	wasm     *WASMRuntime
	wasmErr  error
}

// NewFactory creates a handler factory.
func NewFactory(opts ...Option) *Factory {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Factory{
		config:   cfg,
		client:   &http.Client{Timeout: cfg.HTTPTimeout},
		breakers: make(map[string]circuitbreaker.CircuitBreaker[any]),
	}
}

// Build compiles the handler described by m. Relative paths in the spec
// resolve against baseDir.
func (f *Factory) Build(ctx context.Context, m domainconfig.ToolManifest, baseDir string) (Built, error) {
	spec := m.Handler
	switch spec.Type {
	case "exec":
		h, err := NewExec(ExecConfig{
			Command:   spec.Command,
			Args:      spec.Args,
			Env:       spec.Env,
			Dir:       spec.Dir,
			BaseDir:   baseDir,
			MaxOutput: f.config.MaxOutput,
		})
		if err != nil {
			return Built{}, err
		}
		return Built{Handler: h.Call}, nil

	case "http":
		h, err := NewHTTP(HTTPConfig{
			URL:        spec.URL,
			Method:     spec.Method,
			Headers:    spec.Headers,
			Idempotent: m.Annotations.Idempotent || m.Annotations.ReadOnly,
			Retries:    f.config.HTTPRetries,
			MaxOutput:  f.config.MaxOutput,
		}, f.client, f.breaker(spec.URL))
		if err != nil {
			return Built{}, err
		}
		return Built{Handler: h.Call}, nil

	case "wasm":
		rt, err := f.runtime()
		if err != nil {
			return Built{}, err
		}
		mod, err := rt.Load(ctx, m.Name, resolvePath(spec.Path, baseDir), spec.Entry)
		if err != nil {
			return Built{}, err
		}
		return Built{Handler: mod.Call, Artifact: mod.Bytes()}, nil

	default:
		return Built{}, fmt.Errorf("%w: %q", ErrUnsupportedType, spec.Type)
	}
}

// BreakerState returns the circuit breaker state for an HTTP endpoint.
func (f *Factory) BreakerState(url string) string {
	f.mu.RLock()
	breaker, ok := f.breakers[url]
	f.mu.RUnlock()

	if !ok {
		return "unknown"
	}
	return breaker.State().String()
}

// Close releases the WASM runtime if one was created.
func (f *Factory) Close(ctx context.Context) error {
	if f.wasm == nil {
		return nil
	}
	return f.wasm.Close(ctx)
}

func (f *Factory) runtime() (*WASMRuntime, error) {
	f.wasmOnce.Do(func() {
		f.wasm, f.wasmErr = NewWASMRuntime(context.Background(), f.config.WASMMemoryPages)
	})
	return f.wasm, f.wasmErr
}

// breaker returns the circuit breaker for an endpoint, creating one if needed.
func (f *Factory) breaker(url string) circuitbreaker.CircuitBreaker[any] {
	f.mu.RLock()
	breaker, ok := f.breakers[url]
	f.mu.RUnlock()
	if ok {
		return breaker
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if breaker, ok = f.breakers[url]; ok {
		return breaker
	}

	threshold := f.config.BreakerThreshold
	if threshold <= 0 {
		threshold = 5
	}
	breaker = circuitbreaker.New[any](circuitbreaker.Config{
		MaxRequests: 1,
		Interval:    f.config.BreakerTimeout,
		Timeout:     f.config.BreakerTimeout,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(threshold) // #nosec G115 -- threshold is positive
		},
	})
	f.breakers[url] = breaker
	return breaker
}
