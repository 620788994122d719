package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	domainconfig "github.com/felixgeelhaar/toolhost/domain/config"
)

// Sink names accepted by Open.
const (
	SinkMemory   = "memory"
	SinkFile     = "file"
	SinkSQLite   = "sqlite"
	SinkPostgres = "postgres"
	SinkBadger   = "badger"
	SinkRedis    = "redis"
)

// Open builds the sink named by cfg.Sink. An empty sink selects memory.
func Open(ctx context.Context, cfg domainconfig.AuditConfig) (Logger, error) {
	switch cfg.Sink {
	case "", SinkMemory:
		return NewMemoryLogger(), nil
	case SinkFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("audit sink %q requires a path", cfg.Sink)
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) // #nosec G304 -- path comes from host configuration
		if err != nil {
			return nil, fmt.Errorf("open audit file: %w", err)
		}
		return NewJSONLogger(f), nil
	case SinkSQLite:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("audit sink %q requires a dsn", cfg.Sink)
		}
		return NewSQLiteLogger(cfg.DSN)
	case SinkPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("audit sink %q requires a dsn", cfg.Sink)
		}
		return NewPostgresLogger(ctx, cfg.DSN, "")
	case SinkBadger:
		return NewBadgerLogger(cfg.Path)
	case SinkRedis:
		return NewRedisLogger(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSink, cfg.Sink)
	}
}
