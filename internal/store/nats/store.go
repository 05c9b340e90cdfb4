// Package nats keeps party records in a JetStream key/value bucket and uses
// KV watchers to push changes to observers.
package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/sharetube/watchparty/internal/store"
)

const (
	DefaultBucket = "parties"

	maxCASAttempts = 10
)

type Config struct {
	Bucket string
	TTL    time.Duration
}

type subscription struct {
	observer *store.Observer
	watcher  jetstream.KeyWatcher
}

type repo struct {
	kv     jetstream.KeyValue
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[string]*subscription
	closed bool
}

// NewStore creates (or updates) the bucket and returns a store over it.
func NewStore(ctx context.Context, nc *nats.Conn, cfg *Config, logger *slog.Logger) (*repo, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = DefaultBucket
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  bucket,
		TTL:     cfg.TTL,
		History: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}

	return &repo{
		kv:     kv,
		logger: logger,
		subs:   make(map[string]*subscription),
	}, nil
}

func (r *repo) getKey(record string) string {
	return strings.ReplaceAll(record, "/", ".")
}

func decodeEntry(entry jetstream.KeyValueEntry) (any, error) {
	if entry == nil {
		return nil, nil
	}

	op := entry.Operation()
	if op == jetstream.KeyValueDelete || op == jetstream.KeyValuePurge || len(entry.Value()) == 0 {
		return nil, nil
	}

	var doc any
	if err := json.Unmarshal(entry.Value(), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", entry.Key(), err)
	}

	return doc, nil
}

func (r *repo) read(ctx context.Context, key string) (any, uint64, error) {
	entry, err := r.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, 0, nil
		}
		return nil, 0, err
	}

	doc, err := decodeEntry(entry)
	if err != nil {
		return nil, 0, err
	}

	return doc, entry.Revision(), nil
}

// mutate applies fn with a revision check, retrying when another writer got
// there first.
func (r *repo) mutate(ctx context.Context, record string, fn func(doc any) (any, error)) error {
	key := r.getKey(record)

	var lastErr error
	for i := 0; i < maxCASAttempts; i++ {
		doc, revision, err := r.read(ctx, key)
		if err != nil {
			return err
		}

		next, err := fn(doc)
		if err != nil {
			return err
		}

		switch {
		case next == nil && doc == nil:
			return nil
		case next == nil:
			lastErr = r.kv.Delete(ctx, key, jetstream.LastRevision(revision))
		case revision == 0:
			payload, err := json.Marshal(next)
			if err != nil {
				return fmt.Errorf("failed to encode %s: %w", key, err)
			}
			_, lastErr = r.kv.Create(ctx, key, payload)
		default:
			payload, err := json.Marshal(next)
			if err != nil {
				return fmt.Errorf("failed to encode %s: %w", key, err)
			}
			_, lastErr = r.kv.Update(ctx, key, payload, revision)
		}

		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.DebugContext(ctx, "revision conflict", "key", key, "attempt", i+1, "error", lastErr)
	}

	return fmt.Errorf("failed to commit %s: %w", key, lastErr)
}

func (r *repo) checkOpen() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return store.ErrClosed
	}

	return nil
}
