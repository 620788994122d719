package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	domainconfig "github.com/felixgeelhaar/toolhost/domain/config"
)

func sampleEvents() []Event {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return []Event{
		{Timestamp: base, EventType: EventToolExecution, InvocationID: "inv-1", Tool: "add", Caller: "alice", Success: true},
		{Timestamp: base.Add(time.Second), EventType: EventToolFailure, InvocationID: "inv-2", Tool: "add", Caller: "bob", Error: "boom"},
		{Timestamp: base.Add(2 * time.Second), EventType: EventToolRejection, InvocationID: "inv-3", Tool: "deploy", Caller: "alice", Error: "denied"},
	}
}

func TestMemoryLogger(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	logger := NewMemoryLogger()

	if err := logger.Log(ctx, Event{EventType: EventToolExecution, Tool: "add", Success: true}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events := logger.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Tool != "add" {
		t.Errorf("expected tool add, got %s", events[0].Tool)
	}
	if events[0].Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestMemoryLoggerMaxEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	logger := NewMemoryLogger(WithMaxEvents(5))

	for i := 0; i < 10; i++ {
		_ = logger.Log(ctx, Event{EventType: EventToolExecution, Tool: "add"})
	}

	if got := len(logger.Events()); got != 5 {
		t.Errorf("expected 5 events, got %d", got)
	}
}

func TestFilter(t *testing.T) {
	t.Parallel()

	events := sampleEvents()
	failed := false
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"empty", Filter{}, []string{"inv-1", "inv-2", "inv-3"}},
		{"tool", Filter{Tool: "add"}, []string{"inv-1", "inv-2"}},
		{"caller", Filter{Caller: "alice"}, []string{"inv-1", "inv-3"}},
		{"invocation", Filter{InvocationID: "inv-2"}, []string{"inv-2"}},
		{"types", Filter{EventTypes: []EventType{EventToolRejection}}, []string{"inv-3"}},
		{"success", Filter{Success: &failed}, []string{"inv-2", "inv-3"}},
		{"start", Filter{StartTime: events[1].Timestamp}, []string{"inv-2", "inv-3"}},
		{"end", Filter{EndTime: events[0].Timestamp}, []string{"inv-1"}},
		{"limit", Filter{Limit: 2}, []string{"inv-1", "inv-2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ids(collect(events, tt.filter))
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("collect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJSONLogger(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf)

	err := logger.Log(context.Background(), Event{
		EventType: EventToolExecution,
		Tool:      "add",
		Arguments: map[string]any{"password": "********"},
		Success:   true,
	})
	if err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	var decoded Event
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Tool != "add" || decoded.Arguments["password"] != "********" {
		t.Errorf("decoded = %+v", decoded)
	}
}

type failingLogger struct{ MemoryLogger }

func (*failingLogger) Log(context.Context, Event) error { return errors.New("sink down") }

func TestMultiLogger(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a := NewMemoryLogger()
	b := NewMemoryLogger()
	multi := NewMultiLogger(&failingLogger{}, a, b)

	err := multi.Log(ctx, Event{EventType: EventToolExecution, Tool: "add"})
	if err == nil || !strings.Contains(err.Error(), "sink down") {
		t.Errorf("Log() error = %v, want sink down", err)
	}
	if len(a.Events()) != 1 || len(b.Events()) != 1 {
		t.Errorf("expected the event in both healthy sinks")
	}

	events, err := NewMultiLogger(a, b).Query(ctx, Filter{Tool: "add"})
	if err != nil || len(events) != 1 {
		t.Errorf("Query() = %v, %v", events, err)
	}
	if err := multi.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestDurableSinks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		open func(t *testing.T) Logger
	}{
		{"sqlite", func(t *testing.T) Logger {
			l, err := NewSQLiteLogger(filepath.Join(t.TempDir(), "audit.db"))
			if err != nil {
				t.Fatalf("NewSQLiteLogger: %v", err)
			}
			return l
		}},
		{"badger", func(t *testing.T) Logger {
			l, err := NewBadgerLogger(t.TempDir())
			if err != nil {
				t.Fatalf("NewBadgerLogger: %v", err)
			}
			return l
		}},
		{"badger in memory", func(t *testing.T) Logger {
			l, err := NewBadgerLogger("")
			if err != nil {
				t.Fatalf("NewBadgerLogger: %v", err)
			}
			return l
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			logger := tt.open(t)
			defer func() { _ = logger.Close() }()

			for _, e := range sampleEvents() {
				if err := logger.Log(ctx, e); err != nil {
					t.Fatalf("Log: %v", err)
				}
			}

			all, err := logger.Query(ctx, Filter{})
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if got := strings.Join(ids(all), ","); got != "inv-1,inv-2,inv-3" {
				t.Errorf("Query(all) = %s", got)
			}

			add, err := logger.Query(ctx, Filter{Tool: "add", Limit: 1})
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if got := strings.Join(ids(add), ","); got != "inv-1" {
				t.Errorf("Query(add, limit 1) = %s", got)
			}
		})
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     domainconfig.AuditConfig
		wantErr string
	}{
		{name: "default memory", cfg: domainconfig.AuditConfig{}},
		{name: "file", cfg: domainconfig.AuditConfig{Sink: SinkFile, Path: filepath.Join(dir, "logs", "audit.jsonl")}},
		{name: "file without path", cfg: domainconfig.AuditConfig{Sink: SinkFile}, wantErr: "requires a path"},
		{name: "sqlite", cfg: domainconfig.AuditConfig{Sink: SinkSQLite, DSN: filepath.Join(dir, "audit.db")}},
		{name: "sqlite without dsn", cfg: domainconfig.AuditConfig{Sink: SinkSQLite}, wantErr: "requires a dsn"},
		{name: "postgres without dsn", cfg: domainconfig.AuditConfig{Sink: SinkPostgres}, wantErr: "requires a dsn"},
		{name: "badger", cfg: domainconfig.AuditConfig{Sink: SinkBadger, Path: filepath.Join(dir, "badger")}},
		{name: "unknown", cfg: domainconfig.AuditConfig{Sink: "kafka"}, wantErr: "unknown audit sink"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := Open(ctx, tt.cfg)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Open() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if err := logger.Log(ctx, Event{EventType: EventToolExecution, Tool: "add"}); err != nil {
				t.Errorf("Log() error = %v", err)
			}
			if err := logger.Close(); err != nil {
				t.Errorf("Close() error = %v", err)
			}
		})
	}

	if _, err := os.Stat(filepath.Join(dir, "logs", "audit.jsonl")); err != nil {
		t.Errorf("file sink did not create its file: %v", err)
	}
}

func TestRedisLoggerFromClient(t *testing.T) {
	t.Parallel()

	l := NewRedisLoggerFromClient(nil, "", 100)
	if l.stream != DefaultStream {
		t.Errorf("stream = %s, want %s", l.stream, DefaultStream)
	}
	args := l.addArgs([]byte(`{}`))
	if args.MaxLen != 100 || !args.Approx {
		t.Errorf("addArgs() = %+v, want approximate trim at 100", args)
	}
	if l := NewRedisLoggerFromClient(nil, "custom", 0); l.addArgs(nil).MaxLen != 0 {
		t.Error("unbounded stream should not trim")
	}
}

func TestPostgresLoggerFromPool(t *testing.T) {
	t.Parallel()

	if got := NewPostgresLoggerFromPool(nil, "").tableName(); got != "public.audit_events" {
		t.Errorf("tableName() = %s", got)
	}
	if got := NewPostgresLoggerFromPool(nil, "ops").tableName(); got != "ops.audit_events" {
		t.Errorf("tableName() = %s", got)
	}
}

func ids(events []Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.InvocationID
	}
	return out
}
