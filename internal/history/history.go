// Package history keeps a local record of finished transcription runs.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"go.aimuz.me/whisperia/internal/pipeline"
)

// ErrNotFound is returned when no entry has the requested ID.
var ErrNotFound = errors.New("history entry not found")

const keyPrefix = "run:"

// Entry is one recorded run.
type Entry struct {
	ID         string    `msgpack:"id" json:"id"`
	StartedAt  time.Time `msgpack:"started_at" json:"startedAt"`
	DurationMs int64     `msgpack:"duration_ms" json:"durationMs"`
	Text       string    `msgpack:"text,omitempty" json:"text,omitempty"`
	Language   string    `msgpack:"language,omitempty" json:"language,omitempty"`
	Model      string    `msgpack:"model,omitempty" json:"model,omitempty"`
	Error      string    `msgpack:"error,omitempty" json:"error,omitempty"`
	InjectErr  string    `msgpack:"inject_error,omitempty" json:"injectError,omitempty"`

	Clip *Clip `msgpack:"clip,omitempty" json:"-"`
}

// HasAudio reports whether the entry carries a recorded clip.
func (e Entry) HasAudio() bool { return e.Clip != nil && len(e.Clip.Packets) > 0 }

// Options configures a Store.
type Options struct {
	// Dir holds the database files. Ignored when InMemory is set.
	Dir      string
	InMemory bool

	// Retention expires entries after this long. Zero keeps them forever.
	Retention time.Duration
	// KeepAudio stores an Opus-encoded copy of each clip.
	KeepAudio bool
}

// Store is a badger-backed run history.
type Store struct {
	db   *badger.DB
	opts Options
}

// Open opens or creates the history database.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("history: dir is required")
	}
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{})
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true).WithLogger(badgerLogger{})
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return &Store{db: db, opts: opts}, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a finished run. It satisfies pipeline.Recorder.
func (s *Store) Record(ctx context.Context, o pipeline.Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id := o.RunID
	if id == "" {
		u, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate id: %w", err)
		}
		id = u.String()
	}

	e := Entry{
		ID:         id,
		StartedAt:  o.StartedAt,
		DurationMs: o.Duration.Milliseconds(),
		Text:       o.Text,
		Language:   o.Language,
		Model:      o.Model,
		Error:      o.Err,
		InjectErr:  o.InjectErr,
	}
	if s.opts.KeepAudio && len(o.Audio) > 0 {
		clip, err := EncodeClip(o.Audio)
		if err != nil {
			slog.Warn("encode history clip", "id", id, "error", err)
		} else {
			e.Clip = clip
		}
	}

	data, err := msgpack.Marshal(&e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		be := badger.NewEntry([]byte(keyPrefix+id), data)
		if s.opts.Retention > 0 {
			be = be.WithTTL(s.opts.Retention)
		}
		return txn.SetEntry(be)
	})
}

// Get returns the entry with the given ID.
func (s *Store) Get(id string) (Entry, error) {
	var e Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &e)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// List returns up to limit entries, newest first. A limit of zero or less
// returns everything.
func (s *Store) List(limit int) ([]Entry, error) {
	var out []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Run IDs are UUIDv7, so key order is start order.
		seek := append([]byte(keyPrefix), 0xff)
		for it.Seek(seek); it.ValidForPrefix(opts.Prefix); it.Next() {
			var e Entry
			err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &e)
			})
			if err != nil {
				slog.Warn("skip history entry", "key", string(it.Item().Key()), "error", err)
				continue
			}
			out = append(out, e)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return out, nil
}

// Delete removes an entry. Missing IDs are not an error.
func (s *Store) Delete(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + id))
	})
}

// Clear removes every entry.
func (s *Store) Clear() error {
	return s.db.DropPrefix([]byte(keyPrefix))
}

var _ pipeline.Recorder = (*Store)(nil)

type badgerLogger struct{}

func (badgerLogger) Errorf(f string, v ...any)   { slog.Error(fmt.Sprintf("badger: "+f, v...)) }
func (badgerLogger) Warningf(f string, v ...any) { slog.Warn(fmt.Sprintf("badger: "+f, v...)) }
func (badgerLogger) Infof(string, ...any)        {}
func (badgerLogger) Debugf(string, ...any)       {}
