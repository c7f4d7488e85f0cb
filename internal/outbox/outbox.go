// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/personafeed/internal/logging"
	"github.com/tomtom215/personafeed/internal/metrics"
)

const (
	prefixPending   = "pending:"
	prefixConfirmed = "confirmed:"
	prefixDead      = "dead:"
)

// Entry is one event waiting to be published.
type Entry struct {
	ID        string `json:"id"`
	Topic     string `json:"topic"`
	MessageID string `json:"message_id"`

	// Payload is the serialized event.
	Payload json.RawMessage `json:"payload"`

	CreatedAt     time.Time  `json:"created_at"`
	Attempts      int        `json:"attempts"`
	LastAttemptAt time.Time  `json:"last_attempt_at,omitempty"`
	NextAttemptAt time.Time  `json:"next_attempt_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
}

// Due reports whether the entry may be retried at now.
func (e *Entry) Due(now time.Time) bool {
	return e.NextAttemptAt.IsZero() || !now.Before(e.NextAttemptAt)
}

// Stats contains outbox counters for monitoring.
type Stats struct {
	Pending      int64
	Writes       int64
	Confirms     int64
	Retries      int64
	DeadLettered int64
}

// Outbox stores events in BadgerDB until they are confirmed as published.
type Outbox struct {
	db  *badger.DB
	cfg Config

	pending      atomic.Int64
	writes       atomic.Int64
	confirms     atomic.Int64
	retries      atomic.Int64
	deadLettered atomic.Int64

	mu     sync.RWMutex
	closed bool

	// claims holds entry IDs currently being published so the retry loop
	// and the immediate publish path never work on the same entry.
	claims sync.Map

	now func() time.Time
}

// Open opens (or creates) the outbox described by cfg.
//
//nolint:gocritic // hugeParam: cfg passed by value for immutability
func Open(cfg Config) (*Outbox, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid outbox config: %w", err)
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
		opts.SyncWrites = cfg.SyncWrites
		opts.Compression = options.Snappy
	}
	opts.NumCompactors = 2
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	o := &Outbox{db: db, cfg: cfg, now: time.Now}

	n, err := o.countPrefix(prefixPending)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("count pending entries: %w", err)
	}
	o.pending.Store(n)
	metrics.OutboxPending.Set(float64(n))

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Int64("pending", n).
		Msg("Outbox opened")
	return o, nil
}

// Claim marks id as in flight. It returns false if another caller holds it.
func (o *Outbox) Claim(id string) bool {
	_, loaded := o.claims.LoadOrStore(id, struct{}{})
	return !loaded
}

// Release drops a claim taken with Claim.
func (o *Outbox) Release(id string) {
	o.claims.Delete(id)
}

// Config returns the configuration the outbox was opened with.
func (o *Outbox) Config() Config {
	return o.cfg
}

func (o *Outbox) checkOpen() error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return ErrClosed
	}
	return nil
}

// Write persists payload for topic and returns the entry ID. messageID is
// the idempotency key carried to the bus; an empty value uses the entry ID.
func (o *Outbox) Write(ctx context.Context, topic, messageID string, payload []byte) (string, error) {
	if err := o.checkOpen(); err != nil {
		return "", err
	}
	if topic == "" {
		return "", ErrEmptyTopic
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	if messageID == "" {
		messageID = id
	}
	entry := &Entry{
		ID:        id,
		Topic:     topic,
		MessageID: messageID,
		Payload:   payload,
		CreatedAt: o.now().UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("marshal entry: %w", err)
	}

	err = o.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixPending+id), data)
	})
	if err != nil {
		return "", fmt.Errorf("write to BadgerDB: %w", err)
	}

	o.writes.Add(1)
	metrics.OutboxPending.Set(float64(o.pending.Add(1)))
	return id, nil
}

// Confirm marks the entry as published. Confirmed entries expire after
// Retention.
func (o *Outbox) Confirm(ctx context.Context, id string) error {
	if err := o.checkOpen(); err != nil {
		return err
	}
	if id == "" {
		return ErrEmptyEntryID
	}

	err := o.db.Update(func(txn *badger.Txn) error {
		entry, err := getEntry(txn, prefixPending+id)
		if err != nil {
			return err
		}
		now := o.now().UTC()
		entry.ConfirmedAt = &now
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal confirmed entry: %w", err)
		}
		if o.cfg.Retention > 0 {
			e := badger.NewEntry([]byte(prefixConfirmed+id), data).WithTTL(o.cfg.Retention)
			if err := txn.SetEntry(e); err != nil {
				return fmt.Errorf("set confirmed entry: %w", err)
			}
		}
		return txn.Delete([]byte(prefixPending + id))
	})
	if err != nil {
		return err
	}

	o.confirms.Add(1)
	metrics.OutboxPending.Set(float64(o.pending.Add(-1)))
	return nil
}

// RecordFailure bumps the attempt count of a pending entry and schedules the
// next attempt. Once MaxRetries is reached the entry is dead-lettered and
// deadLettered is true.
func (o *Outbox) RecordFailure(ctx context.Context, id string, cause error) (deadLettered bool, err error) {
	if err := o.checkOpen(); err != nil {
		return false, err
	}

	err = o.db.Update(func(txn *badger.Txn) error {
		deadLettered = false
		entry, err := getEntry(txn, prefixPending+id)
		if err != nil {
			return err
		}
		now := o.now().UTC()
		entry.Attempts++
		entry.LastAttemptAt = now
		entry.NextAttemptAt = now.Add(o.cfg.backoff(entry.Attempts))
		if cause != nil {
			entry.LastError = cause.Error()
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}
		if entry.Attempts >= o.cfg.MaxRetries {
			deadLettered = true
			if err := txn.Set([]byte(prefixDead+id), data); err != nil {
				return err
			}
			return txn.Delete([]byte(prefixPending + id))
		}
		return txn.Set([]byte(prefixPending+id), data)
	})
	if err != nil {
		return false, err
	}

	o.retries.Add(1)
	if deadLettered {
		o.deadLettered.Add(1)
		metrics.OutboxPending.Set(float64(o.pending.Add(-1)))
	}
	return deadLettered, nil
}

// GetPending returns all unconfirmed entries from a consistent snapshot.
func (o *Outbox) GetPending(ctx context.Context) ([]*Entry, error) {
	return o.list(ctx, prefixPending)
}

// GetDeadLettered returns entries that exhausted their retries.
func (o *Outbox) GetDeadLettered(ctx context.Context) ([]*Entry, error) {
	return o.list(ctx, prefixDead)
}

func (o *Outbox) list(ctx context.Context, prefix string) ([]*Entry, error) {
	if err := o.checkOpen(); err != nil {
		return nil, err
	}

	var entries []*Entry
	err := o.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var entry Entry
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("Outbox skipped malformed entry")
				continue
			}
			entries = append(entries, &entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate %s entries: %w", prefix, err)
	}
	return entries, nil
}

func (o *Outbox) countPrefix(prefix string) (int64, error) {
	var n int64
	err := o.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Stats returns a snapshot of the outbox counters.
func (o *Outbox) Stats() Stats {
	return Stats{
		Pending:      o.pending.Load(),
		Writes:       o.writes.Load(),
		Confirms:     o.confirms.Load(),
		Retries:      o.retries.Load(),
		DeadLettered: o.deadLettered.Load(),
	}
}

// Close runs value log GC once and closes BadgerDB.
func (o *Outbox) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.mu.Unlock()

	if !o.cfg.InMemory {
		// ErrNoRewrite just means there was nothing to collect.
		if err := o.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
			logging.Debug().Err(err).Msg("Outbox value log GC skipped")
		}
	}
	if err := o.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	logging.Info().Msg("Outbox closed")
	return nil
}

func getEntry(txn *badger.Txn, key string) (*Entry, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	var entry Entry
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &entry)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal entry: %w", err)
	}
	return &entry, nil
}
