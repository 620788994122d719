package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/felixgeelhaar/toolhost/application"
	domainconfig "github.com/felixgeelhaar/toolhost/domain/config"
	infraconfig "github.com/felixgeelhaar/toolhost/infrastructure/config"
	"github.com/felixgeelhaar/toolhost/infrastructure/logging"
)

// loadConfig reads --config, or the defaults when no file is given. The
// returned directory anchors relative paths in the file.
func (a *App) loadConfig() (*domainconfig.HostConfig, string, error) {
	if a.global.configPath == "" {
		return infraconfig.DefaultConfig(), "", nil
	}
	cfg, err := infraconfig.NewLoader().LoadFile(a.global.configPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, filepath.Dir(a.global.configPath), nil
}

// initLogging sets up the process logger on stderr, keeping stdout for
// command output.
func (a *App) initLogging(cfg *domainconfig.HostConfig) error {
	level := cfg.Logging.Level
	if a.global.logLevel != "" {
		if !logging.ValidLevel(a.global.logLevel) {
			return fmt.Errorf("unknown log level %q", a.global.logLevel)
		}
		level = a.global.logLevel
	}
	if level == "" {
		level = "warn"
	}
	logging.Init(logging.Config{Level: level, Format: cfg.Logging.Format, Output: a.stderr})
	logging.SetLevel(level)
	return nil
}

// openHost builds and starts a host. The background watcher runs only when
// watch is set and the configuration enables it.
func (a *App) openHost(ctx context.Context, watch bool, opts ...application.HostOption) (*application.Host, error) {
	cfg, baseDir, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	if err := a.initLogging(cfg); err != nil {
		return nil, err
	}
	if !watch {
		cfg.Tools.Watch = false
	}

	hostOpts := []application.HostOption{application.WithVersion(Version)}
	if baseDir != "" {
		hostOpts = append(hostOpts, application.WithBaseDir(baseDir))
	}
	if a.global.toolsDir != "" {
		hostOpts = append(hostOpts, application.WithToolsDir(a.global.toolsDir))
	}
	hostOpts = append(hostOpts, opts...)

	h, err := application.NewHost(ctx, cfg, hostOpts...)
	if err != nil {
		return nil, err
	}
	if err := h.Start(ctx); err != nil {
		_ = h.Close(context.WithoutCancel(ctx))
		return nil, err
	}
	return h, nil
}

// reportLoadErrors prints failing sources to stderr.
func (a *App) reportLoadErrors(h *application.Host) {
	for _, lerr := range h.LoadErrors() {
		_, _ = fmt.Fprintf(a.stderr, "load error: %v\n", lerr)
	}
}
