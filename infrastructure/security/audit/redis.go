package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	domainconfig "github.com/felixgeelhaar/toolhost/domain/config"
)

// DefaultStream is the stream key used when none is configured.
const DefaultStream = "toolhost:audit"

// RedisLogger appends events to a Redis stream.
type RedisLogger struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisLogger connects using cfg and verifies the connection.
func NewRedisLogger(ctx context.Context, cfg domainconfig.RedisConfig) (*RedisLogger, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis audit log: %w", err)
	}
	return NewRedisLoggerFromClient(client, cfg.Stream, cfg.MaxLen), nil
}

// NewRedisLoggerFromClient uses an existing client.
func NewRedisLoggerFromClient(client *redis.Client, stream string, maxLen int64) *RedisLogger {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisLogger{client: client, stream: stream, maxLen: maxLen}
}

func (l *RedisLogger) addArgs(data []byte) *redis.XAddArgs {
	args := &redis.XAddArgs{
		Stream: l.stream,
		Values: map[string]any{"event": data},
	}
	if l.maxLen > 0 {
		args.MaxLen = l.maxLen
		args.Approx = true
	}
	return args
}

// Log appends an event to the stream.
func (l *RedisLogger) Log(ctx context.Context, event Event) error {
	data, err := json.Marshal(stamp(event))
	if err != nil {
		return err
	}
	return l.client.XAdd(ctx, l.addArgs(data)).Err()
}

// Query reads the stream from the start.
func (l *RedisLogger) Query(ctx context.Context, filter Filter) ([]Event, error) {
	msgs, err := l.client.XRange(ctx, l.stream, "-", "+").Result()
	if err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(msgs))
	for _, msg := range msgs {
		raw, ok := msg.Values["event"].(string)
		if !ok {
			continue
		}
		var e Event
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		events = append(events, e)
	}
	return collect(events, filter), nil
}

// Close closes the client.
func (l *RedisLogger) Close() error {
	return l.client.Close()
}
