package audit

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const badgerPrefix = "audit:"

// BadgerLogger persists events in a BadgerDB keyspace ordered by write.
type BadgerLogger struct {
	db  *badger.DB
	seq atomic.Uint64
}

// NewBadgerLogger opens (or creates) a database in dir. An empty dir keeps
// the log in memory.
func NewBadgerLogger(dir string) (*BadgerLogger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger audit log: %w", err)
	}
	return NewBadgerLoggerFromDB(db), nil
}

// NewBadgerLoggerFromDB uses an existing database.
func NewBadgerLoggerFromDB(db *badger.DB) *BadgerLogger {
	l := &BadgerLogger{db: db}
	l.seq.Store(uint64(time.Now().UnixNano()))
	return l
}

// Key format: audit:<8-byte big-endian sequence>
func (l *BadgerLogger) key() []byte {
	seq := make([]byte, 8)
	binary.BigEndian.PutUint64(seq, l.seq.Add(1))
	return append([]byte(badgerPrefix), seq...)
}

// Log stores an event.
func (l *BadgerLogger) Log(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(stamp(event))
	if err != nil {
		return err
	}
	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(l.key(), data)
	})
}

// Query scans events in write order.
func (l *BadgerLogger) Query(ctx context.Context, filter Filter) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var events []Event
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var e Event
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				continue
			}
			if matchesFilter(e, filter) {
				events = append(events, e)
				if filter.Limit > 0 && len(events) >= filter.Limit {
					break
				}
			}
		}
		return nil
	})
	return events, err
}

// Close closes the database.
func (l *BadgerLogger) Close() error {
	return l.db.Close()
}
