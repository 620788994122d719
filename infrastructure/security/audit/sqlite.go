package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// ErrMigrationFailed indicates the audit table could not be created.
var ErrMigrationFailed = errors.New("audit: migration failed")

// SQLiteLogger persists events to a SQLite table.
type SQLiteLogger struct {
	db *sql.DB
}

// NewSQLiteLogger opens dsn and creates the audit table if needed.
func NewSQLiteLogger(dsn string) (*SQLiteLogger, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite audit log: %w", err)
	}
	db.SetMaxOpenConns(1)

	l, err := NewSQLiteLoggerFromDB(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// NewSQLiteLoggerFromDB uses an existing connection.
func NewSQLiteLoggerFromDB(db *sql.DB) (*SQLiteLogger, error) {
	l := &SQLiteLogger{db: db}
	if err := l.migrate(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *SQLiteLogger) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			invocation_id TEXT NOT NULL,
			tool TEXT NOT NULL,
			event_type TEXT NOT NULL,
			success INTEGER NOT NULL,
			timestamp INTEGER NOT NULL,
			data BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_audit_tool ON audit_events(tool);
		CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_events(timestamp);
	`
	if _, err := l.db.Exec(schema); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	return nil
}

// Log inserts an event.
func (l *SQLiteLogger) Log(ctx context.Context, event Event) error {
	event = stamp(event)
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO audit_events (invocation_id, tool, event_type, success, timestamp, data)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.InvocationID, event.Tool, string(event.EventType), event.Success,
		event.Timestamp.UnixNano(), data,
	)
	return err
}

// Query returns matching events in insertion order.
func (l *SQLiteLogger) Query(ctx context.Context, filter Filter) ([]Event, error) {
	query := "SELECT data FROM audit_events"
	var args []any
	if filter.Tool != "" {
		query += " WHERE tool = ?"
		args = append(args, filter.Tool)
	}
	query += " ORDER BY id"

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var e Event
		if err := json.Unmarshal(data, &e); err != nil {
			continue
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return collect(events, filter), nil
}

// Close closes the database.
func (l *SQLiteLogger) Close() error {
	return l.db.Close()
}
