package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLogger persists events to a PostgreSQL table.
type PostgresLogger struct {
	pool   *pgxpool.Pool
	schema string
	owned  bool
}

// NewPostgresLogger connects to dsn and creates the audit table if needed.
func NewPostgresLogger(ctx context.Context, dsn, schema string) (*PostgresLogger, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres audit log: %w", err)
	}
	l := NewPostgresLoggerFromPool(pool, schema)
	l.owned = true
	if err := l.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return l, nil
}

// NewPostgresLoggerFromPool uses an existing pool. The caller runs Migrate.
func NewPostgresLoggerFromPool(pool *pgxpool.Pool, schema string) *PostgresLogger {
	if schema == "" {
		schema = "public"
	}
	return &PostgresLogger{pool: pool, schema: schema}
}

func (l *PostgresLogger) tableName() string {
	return fmt.Sprintf("%s.audit_events", l.schema)
}

// Migrate creates the audit table.
func (l *PostgresLogger) Migrate(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			invocation_id TEXT NOT NULL,
			tool TEXT NOT NULL,
			event_type TEXT NOT NULL,
			success BOOLEAN NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			payload JSONB NOT NULL
		)`, l.tableName()))
	if err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	return nil
}

// Log inserts an event.
func (l *PostgresLogger) Log(ctx context.Context, event Event) error {
	event = stamp(event)
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (invocation_id, tool, event_type, success, timestamp, payload)
			VALUES ($1, $2, $3, $4, $5, $6)`, l.tableName()),
		event.InvocationID, event.Tool, string(event.EventType), event.Success, event.Timestamp, payload,
	)
	return err
}

// Query returns matching events in insertion order.
func (l *PostgresLogger) Query(ctx context.Context, filter Filter) ([]Event, error) {
	query := fmt.Sprintf("SELECT payload FROM %s", l.tableName())
	var args []any
	if filter.Tool != "" {
		query += " WHERE tool = $1"
		args = append(args, filter.Tool)
	}
	query += " ORDER BY id"

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var e Event
		if err := json.Unmarshal(payload, &e); err != nil {
			continue
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return collect(events, filter), nil
}

// Close closes the pool when the logger opened it.
func (l *PostgresLogger) Close() error {
	if l.owned {
		l.pool.Close()
	}
	return nil
}
