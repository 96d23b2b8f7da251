// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const (
	prefixEvent   = "event:"
	prefixOutbox  = "outbox:"
	prefixExample = "example:"
	prefixAgg     = "agg:"
	prefixView    = "view:"
	keyCheckpoint = "meta:checkpoint"
)

// Record is an accepted event as stored in the log.
type Record struct {
	// Key is the log key; the batch checkpoint refers to it.
	Key        string    `json:"-"`
	Event      Event     `json:"event"`
	ReceivedAt time.Time `json:"received_at"`
}

// OutboxEntry is an event waiting to be forwarded.
type OutboxEntry struct {
	Key           string    `json:"-"`
	Event         Event     `json:"event"`
	CreatedAt     time.Time `json:"created_at"`
	Attempts      int       `json:"attempts"`
	LastAttemptAt time.Time `json:"last_attempt_at,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
}

// Example is one labeled training example: an item shown to a user and
// whether the user engaged with it before the view was finalized.
type Example struct {
	UserID        string    `json:"user_id"`
	ItemID        string    `json:"item_id"`
	ContextBucket string    `json:"context_bucket,omitempty"`
	ViewedAt      time.Time `json:"viewed_at"`
	Engaged       bool      `json:"engaged"`
}

// PendingView is a view still waiting for an engagement by the same user.
// SeenAt is when the view was accepted.
type PendingView struct {
	Example
	SeenAt time.Time `json:"seen_at"`
}

// viewKey identifies the pending view of a (user, item) pair. Identifiers
// never contain '/'.
func viewKey(userID, itemID string) string {
	return prefixView + userID + "/" + itemID
}

// BatchUpdate is what one batch step commits together.
type BatchUpdate struct {
	Examples []Example
	Deltas   map[string]*Aggregate
	// Views holds pending view changes by key; a nil value deletes the view.
	Views      map[string]*PendingView
	Checkpoint string
}

// Aggregate holds cumulative per-item counters.
type Aggregate struct {
	ItemID      string    `json:"item_id"`
	Impressions int64     `json:"impressions"`
	Engagements int64     `json:"engagements"`
	FirstSeen   time.Time `json:"first_seen"`
	LastEventAt time.Time `json:"last_event_at"`
}

func (a *Aggregate) merge(d *Aggregate) {
	a.Impressions += d.Impressions
	a.Engagements += d.Engagements
	if a.FirstSeen.IsZero() || (!d.FirstSeen.IsZero() && d.FirstSeen.Before(a.FirstSeen)) {
		a.FirstSeen = d.FirstSeen
	}
	if d.LastEventAt.After(a.LastEventAt) {
		a.LastEventAt = d.LastEventAt
	}
}

// LogStats is a snapshot of the event log.
type LogStats struct {
	Appended       int64  `json:"appended"`
	Forwarded      int64  `json:"forwarded"`
	Dropped        int64  `json:"dropped"`
	PendingForward int64  `json:"pending_forward"`
	Checkpoint     string `json:"checkpoint,omitempty"`
	DBSizeBytes    int64  `json:"db_size_bytes"`
}

// EventLog is the BadgerDB-backed interaction store. It is safe for
// concurrent use.
type EventLog struct {
	db     *badger.DB
	logger zerolog.Logger

	appended  atomic.Int64
	forwarded atomic.Int64
	dropped   atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// OpenEventLog opens (or creates) the log at cfg.LogPath.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func OpenEventLog(cfg *Config, logger zerolog.Logger) (*EventLog, error) {
	if cfg.LogPath == "" {
		return nil, fmt.Errorf("feedback: log path is required")
	}

	opts := badger.DefaultOptions(cfg.LogPath)
	opts.SyncWrites = cfg.SyncWrites
	opts.Compression = options.Snappy
	opts.MemTableSize = 16 << 20
	opts.ValueLogFileSize = 64 << 20
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}

	l := &EventLog{
		db:     db,
		logger: logger.With().Str("component", "feedback-log").Logger(),
	}
	l.logger.Info().
		Str("path", cfg.LogPath).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("event log opened")
	return l, nil
}

func (l *EventLog) checkOpen() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrLogClosed
	}
	return nil
}

// keySuffix orders records by acceptance time; the id keeps keys unique.
func keySuffix(receivedAt time.Time, id string) string {
	return fmt.Sprintf("%020d:%s", receivedAt.UnixNano(), id)
}

// eventBound returns a key that sorts after every event accepted strictly
// before t and before every event accepted at or after t.
func eventBound(t time.Time) string {
	return fmt.Sprintf("%s%020d", prefixEvent, t.UnixNano())
}

// Append durably records an event. When forward is set the event is also
// queued in the outbox in the same transaction.
//
//nolint:gocritic // hugeParam: ev passed by value for immutability
func (l *EventLog) Append(ctx context.Context, ev Event, receivedAt time.Time, forward bool) (string, error) {
	if err := l.checkOpen(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	receivedAt = receivedAt.UTC()
	suffix := keySuffix(receivedAt, ev.ID)
	rec, err := json.Marshal(&Record{Event: ev, ReceivedAt: receivedAt})
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	var outbox []byte
	if forward {
		outbox, err = json.Marshal(&OutboxEntry{Event: ev, CreatedAt: receivedAt})
		if err != nil {
			return "", fmt.Errorf("marshal outbox entry: %w", err)
		}
	}

	err = l.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(prefixEvent+suffix), rec); err != nil {
			return err
		}
		if outbox != nil {
			return txn.Set([]byte(prefixOutbox+suffix), outbox)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("append event: %w", err)
	}

	l.appended.Add(1)
	return prefixEvent + suffix, nil
}

// Events returns up to limit records with keys strictly after the after key
// and strictly before the upto key, in key order. An empty after starts at
// the beginning of the log; an empty upto has no upper bound.
func (l *EventLog) Events(ctx context.Context, after, upto string, limit int) ([]Record, error) {
	if err := l.checkOpen(); err != nil {
		return nil, err
	}

	var records []Record
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixEvent)
		it := txn.NewIterator(opts)
		defer it.Close()

		start := prefixEvent
		if after != "" {
			start = after
		}
		for it.Seek([]byte(start)); it.ValidForPrefix(opts.Prefix) && len(records) < limit; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			key := string(item.Key())
			if key == after {
				continue
			}
			if upto != "" && key >= upto {
				break
			}

			var rec Record
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				l.logger.Warn().Err(err).Str("key", key).Msg("skipping unreadable event")
				continue
			}
			rec.Key = key
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return records, nil
}

// Checkpoint returns the key of the last event consumed by the batch, or
// "" if the batch never ran.
func (l *EventLog) Checkpoint() (string, error) {
	if err := l.checkOpen(); err != nil {
		return "", err
	}

	var checkpoint string
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyCheckpoint))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		checkpoint = string(val)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("read checkpoint: %w", err)
	}
	return checkpoint, nil
}

// SaveBatch stores the examples, merges the aggregate deltas, applies the
// pending view changes and advances the checkpoint in a single transaction.
func (l *EventLog) SaveBatch(ctx context.Context, update BatchUpdate) error {
	if err := l.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	examples := update.Examples
	err := l.db.Update(func(txn *badger.Txn) error {
		for i := range examples {
			ex := &examples[i]
			data, err := json.Marshal(ex)
			if err != nil {
				return fmt.Errorf("marshal example: %w", err)
			}
			key := fmt.Sprintf("%s%020d:%s:%s", prefixExample, ex.ViewedAt.UnixNano(), ex.UserID, ex.ItemID)
			if err := txn.Set([]byte(key), data); err != nil {
				return err
			}
		}

		for key, view := range update.Views {
			if view == nil {
				if err := txn.Delete([]byte(key)); err != nil {
					return err
				}
				continue
			}
			data, err := json.Marshal(view)
			if err != nil {
				return fmt.Errorf("marshal pending view: %w", err)
			}
			if err := txn.Set([]byte(key), data); err != nil {
				return err
			}
		}

		for itemID, delta := range update.Deltas {
			key := []byte(prefixAgg + itemID)
			agg := Aggregate{ItemID: itemID}
			item, err := txn.Get(key)
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
			case err != nil:
				return err
			default:
				if err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &agg)
				}); err != nil {
					return fmt.Errorf("unmarshal aggregate %s: %w", itemID, err)
				}
			}
			agg.merge(delta)
			data, err := json.Marshal(&agg)
			if err != nil {
				return fmt.Errorf("marshal aggregate: %w", err)
			}
			if err := txn.Set(key, data); err != nil {
				return err
			}
		}

		return txn.Set([]byte(keyCheckpoint), []byte(update.Checkpoint))
	})
	if err != nil {
		return fmt.Errorf("save batch: %w", err)
	}
	return nil
}

// Aggregates returns every item aggregate ordered by item id.
func (l *EventLog) Aggregates(ctx context.Context) ([]Aggregate, error) {
	var out []Aggregate
	err := l.scan(ctx, prefixAgg, 0, func(key string, val []byte) error {
		var agg Aggregate
		if err := json.Unmarshal(val, &agg); err != nil {
			l.logger.Warn().Err(err).Str("key", key).Msg("skipping unreadable aggregate")
			return nil
		}
		out = append(out, agg)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate aggregates: %w", err)
	}
	return out, nil
}

// PendingViews returns every view still waiting for an engagement, keyed
// by pending view key.
func (l *EventLog) PendingViews(ctx context.Context) (map[string]*PendingView, error) {
	out := make(map[string]*PendingView)
	err := l.scan(ctx, prefixView, 0, func(key string, val []byte) error {
		var view PendingView
		if err := json.Unmarshal(val, &view); err != nil {
			l.logger.Warn().Err(err).Str("key", key).Msg("skipping unreadable pending view")
			return nil
		}
		out[key] = &view
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate pending views: %w", err)
	}
	return out, nil
}

// Examples returns up to limit labeled examples ordered by view time. A
// limit of 0 returns all of them.
func (l *EventLog) Examples(ctx context.Context, limit int) ([]Example, error) {
	var out []Example
	err := l.scan(ctx, prefixExample, limit, func(key string, val []byte) error {
		var ex Example
		if err := json.Unmarshal(val, &ex); err != nil {
			l.logger.Warn().Err(err).Str("key", key).Msg("skipping unreadable example")
			return nil
		}
		out = append(out, ex)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate examples: %w", err)
	}
	return out, nil
}

// Pending returns up to limit outbox entries, oldest first.
func (l *EventLog) Pending(ctx context.Context, limit int) ([]OutboxEntry, error) {
	var out []OutboxEntry
	err := l.scan(ctx, prefixOutbox, limit, func(key string, val []byte) error {
		var entry OutboxEntry
		if err := json.Unmarshal(val, &entry); err != nil {
			l.logger.Warn().Err(err).Str("key", key).Msg("skipping unreadable outbox entry")
			return nil
		}
		entry.Key = key
		out = append(out, entry)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return out, nil
}

func (l *EventLog) scan(ctx context.Context, prefix string, limit int, fn func(key string, val []byte) error) error {
	if err := l.checkOpen(); err != nil {
		return err
	}
	return l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		n := 0
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if limit > 0 && n >= limit {
				return nil
			}
			item := it.Item()
			key := string(item.Key())
			if err := item.Value(func(val []byte) error {
				return fn(key, val)
			}); err != nil {
				return err
			}
			n++
		}
		return nil
	})
}

// Confirm removes a forwarded entry from the outbox.
func (l *EventLog) Confirm(ctx context.Context, key string) error {
	if err := l.removeOutbox(ctx, key); err != nil {
		return err
	}
	l.forwarded.Add(1)
	return nil
}

// Drop removes an entry that exhausted its forwarding attempts. The event
// itself stays in the log.
func (l *EventLog) Drop(ctx context.Context, key string) error {
	if err := l.removeOutbox(ctx, key); err != nil {
		return err
	}
	l.dropped.Add(1)
	return nil
}

func (l *EventLog) removeOutbox(ctx context.Context, key string) error {
	if err := l.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !strings.HasPrefix(key, prefixOutbox) {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, key)
	}
	return l.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(key)); errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrEntryNotFound, key)
		} else if err != nil {
			return err
		}
		return txn.Delete([]byte(key))
	})
}

// UpdateAttempt records a failed forwarding attempt and returns the updated
// entry.
func (l *EventLog) UpdateAttempt(ctx context.Context, key string, cause error) (OutboxEntry, error) {
	if err := l.checkOpen(); err != nil {
		return OutboxEntry{}, err
	}
	if err := ctx.Err(); err != nil {
		return OutboxEntry{}, err
	}

	var entry OutboxEntry
	err := l.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrEntryNotFound, key)
		}
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		}); err != nil {
			return fmt.Errorf("unmarshal outbox entry: %w", err)
		}

		entry.Attempts++
		entry.LastAttemptAt = time.Now().UTC()
		if cause != nil {
			entry.LastError = cause.Error()
		}
		data, err := json.Marshal(&entry)
		if err != nil {
			return fmt.Errorf("marshal outbox entry: %w", err)
		}
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return OutboxEntry{}, err
	}
	entry.Key = key
	return entry, nil
}

// Stats returns counters and the current outbox depth.
func (l *EventLog) Stats() LogStats {
	stats := LogStats{
		Appended:  l.appended.Load(),
		Forwarded: l.forwarded.Load(),
		Dropped:   l.dropped.Load(),
	}
	if l.checkOpen() != nil {
		return stats
	}

	if err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixOutbox)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			stats.PendingForward++
		}
		return nil
	}); err != nil {
		l.logger.Warn().Err(err).Msg("counting outbox entries failed")
	}

	if cp, err := l.Checkpoint(); err == nil {
		stats.Checkpoint = cp
	}
	lsm, vlog := l.db.Size()
	stats.DBSizeBytes = lsm + vlog
	return stats
}

// RunGC reclaims value log space until nothing is left to rewrite.
func (l *EventLog) RunGC(ratio float64) error {
	if err := l.checkOpen(); err != nil {
		return err
	}
	for {
		err := l.db.RunValueLogGC(ratio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run value log gc: %w", err)
		}
	}
}

// Close flushes and closes the database.
func (l *EventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("close event log: %w", err)
	}
	l.logger.Info().Msg("event log closed")
	return nil
}
