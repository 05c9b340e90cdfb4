// Package redis stores every party record as one JSON document and uses
// pub/sub to push changes to observers.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/store"
)

const (
	keyPrefix     = "watchparty:"
	channelPrefix = "watchparty:changed:"
	maxTxAttempts = 10
)

type subscription struct {
	observer *store.Observer
	pubsub   *redis.PubSub
	key      string
}

type repo struct {
	rc             *redis.Client
	expireDuration time.Duration
	logger         *slog.Logger

	mu     sync.Mutex
	subs   map[string]*subscription
	closed bool
}

func NewRepo(rc *redis.Client, expireDuration time.Duration, logger *slog.Logger) *repo {
	return &repo{
		rc:             rc,
		expireDuration: expireDuration,
		logger:         logger,
		subs:           make(map[string]*subscription),
	}
}

func (r *repo) getRecordKey(record string) string {
	return keyPrefix + strings.ReplaceAll(record, "/", ":")
}

func (r *repo) getVersionKey(record string) string {
	return r.getRecordKey(record) + ":version"
}

func (r *repo) getChannel(record string) string {
	return channelPrefix + strings.ReplaceAll(record, "/", ":")
}

// change is published on every mutation. Version grows by one per mutation
// of the record and restarts only after the record sat idle for a whole TTL.
type change struct {
	Version int64 `json:"version"`
	Doc     any   `json:"doc"`
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *repo) readDoc(ctx context.Context, c getter, key string) (any, error) {
	return decodeDoc(key, c.Get(ctx, key))
}

func decodeDoc(key string, cmd *redis.StringCmd) (any, error) {
	b, err := cmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}

	return doc, nil
}

func readVersion(cmd *redis.StringCmd) (int64, error) {
	version, err := cmd.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}

	return version, nil
}

// readVersioned reads the record and its version atomically.
func (r *repo) readVersioned(ctx context.Context, record string) (any, int64, error) {
	var versionCmd, docCmd *redis.StringCmd
	if _, err := r.rc.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		versionCmd = pipe.Get(ctx, r.getVersionKey(record))
		docCmd = pipe.Get(ctx, r.getRecordKey(record))
		return nil
	}); err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, err
	}

	version, err := readVersion(versionCmd)
	if err != nil {
		return nil, 0, err
	}

	doc, err := decodeDoc(r.getRecordKey(record), docCmd)
	if err != nil {
		return nil, 0, err
	}

	return doc, version, nil
}

// mutate applies fn to the record document inside an optimistic transaction
// and publishes the new document with its version in the same transaction.
func (r *repo) mutate(ctx context.Context, record string, fn func(doc any) (any, error)) error {
	key := r.getRecordKey(record)
	versionKey := r.getVersionKey(record)
	channel := r.getChannel(record)

	txf := func(tx *redis.Tx) error {
		doc, err := r.readDoc(ctx, tx, key)
		if err != nil {
			return err
		}

		version, err := readVersion(tx.Get(ctx, versionKey))
		if err != nil {
			return err
		}

		next, err := fn(doc)
		if err != nil {
			return err
		}

		var payload []byte
		if next != nil {
			if payload, err = json.Marshal(next); err != nil {
				return fmt.Errorf("failed to encode %s: %w", key, err)
			}
		}

		message, err := json.Marshal(change{Version: version + 1, Doc: next})
		if err != nil {
			return fmt.Errorf("failed to encode change of %s: %w", key, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil {
				pipe.Del(ctx, key)
			} else {
				pipe.Set(ctx, key, payload, r.expireDuration)
			}
			pipe.Set(ctx, versionKey, version+1, r.expireDuration)
			pipe.Publish(ctx, channel, message)
			return nil
		})

		return err
	}

	for i := 0; i < maxTxAttempts; i++ {
		err := r.rc.Watch(ctx, txf, key, versionKey)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			r.logger.DebugContext(ctx, "transaction conflict", "key", key, "attempt", i+1)
			continue
		}

		return err
	}

	return fmt.Errorf("failed to commit %s: %w", key, redis.TxFailedErr)
}

func (r *repo) checkOpen() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return store.ErrClosed
	}

	return nil
}
