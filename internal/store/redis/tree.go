package redis

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/store"
)

func (r *repo) Write(ctx context.Context, path string, value any) error {
	r.logger.DebugContext(ctx, "called", "path", path)
	if err := r.checkOpen(); err != nil {
		return err
	}

	record, rel, err := store.SplitRecord(path)
	if err != nil {
		return err
	}

	normalized, err := store.Normalize(value)
	if err != nil {
		return err
	}

	if err := r.mutate(ctx, record, func(doc any) (any, error) {
		return store.Set(doc, rel, normalized), nil
	}); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

func (r *repo) Update(ctx context.Context, path string, fields map[string]any) error {
	r.logger.DebugContext(ctx, "called", "path", path, "fields", len(fields))
	if err := r.checkOpen(); err != nil {
		return err
	}

	record, rel, err := store.SplitRecord(path)
	if err != nil {
		return err
	}

	if err := store.CheckFields(fields); err != nil {
		return err
	}

	if err := r.mutate(ctx, record, func(doc any) (any, error) {
		return store.Merge(doc, rel, fields)
	}); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to update %s: %w", path, err)
	}

	return nil
}

func (r *repo) UpdateIfExists(ctx context.Context, path, guard string, fields map[string]any) error {
	r.logger.DebugContext(ctx, "called", "path", path, "guard", guard, "fields", len(fields))
	if err := r.checkOpen(); err != nil {
		return err
	}

	record, rel, guardRel, err := store.SplitGuarded(path, guard)
	if err != nil {
		return err
	}

	if err := store.CheckFields(fields); err != nil {
		return err
	}

	if err := r.mutate(ctx, record, func(doc any) (any, error) {
		if store.Lookup(doc, guardRel) == nil {
			return nil, store.ErrGuardMissing
		}
		return store.Merge(doc, rel, fields)
	}); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to update %s: %w", path, err)
	}

	return nil
}

func (r *repo) Get(ctx context.Context, path string) (store.Snapshot, error) {
	if err := r.checkOpen(); err != nil {
		return store.Snapshot{}, err
	}

	record, rel, err := store.SplitRecord(path)
	if err != nil {
		return store.Snapshot{}, err
	}

	doc, err := r.readDoc(ctx, r.rc, r.getRecordKey(record))
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("failed to get %s: %w", path, err)
	}

	return store.Snapshot{Path: path, Value: store.Lookup(doc, rel)}, nil
}

func (r *repo) Observe(path string, fn func(store.Snapshot)) (store.Subscription, error) {
	if err := r.checkOpen(); err != nil {
		return store.Subscription{}, err
	}

	record, rel, err := store.SplitRecord(path)
	if err != nil {
		return store.Subscription{}, err
	}

	ctx := context.Background()
	sub := &subscription{
		observer: store.NewObserver(path, rel, fn),
		pubsub:   r.rc.Subscribe(ctx, r.getChannel(record)),
		key:      r.getRecordKey(record),
	}

	// wait for the subscription to be confirmed so no change between the
	// initial read and the first message is lost
	if _, err := sub.pubsub.Receive(ctx); err != nil {
		sub.pubsub.Close()
		return store.Subscription{}, fmt.Errorf("failed to subscribe to %s: %w", path, err)
	}

	doc, version, err := r.readVersioned(ctx, record)
	if err != nil {
		sub.pubsub.Close()
		return store.Subscription{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	sub.observer.Notify(doc)

	r.mu.Lock()
	r.subs[sub.observer.Subscription().ID] = sub
	r.mu.Unlock()

	go r.listen(sub, version)

	return sub.observer.Subscription(), nil
}

// listen delivers every published document in order. Changes already
// covered by the initial read are skipped.
func (r *repo) listen(sub *subscription, version int64) {
	for msg := range sub.pubsub.Channel(redis.WithChannelSize(16)) {
		var c change
		if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
			r.logger.Info("failed to decode change", "key", sub.key, "error", err)
			continue
		}

		if c.Version <= version {
			continue
		}
		version = c.Version
		sub.observer.Notify(c.Doc)
	}
}

func (r *repo) Unsubscribe(s store.Subscription) error {
	r.mu.Lock()
	sub, ok := r.subs[s.ID]
	delete(r.subs, s.ID)
	r.mu.Unlock()

	if !ok {
		return store.ErrNotFound
	}

	sub.observer.Stop()
	return sub.pubsub.Close()
}

func (r *repo) Close() error {
	r.mu.Lock()
	subs := r.subs
	r.subs = make(map[string]*subscription)
	r.closed = true
	r.mu.Unlock()

	for _, sub := range subs {
		sub.observer.Stop()
		sub.pubsub.Close()
	}

	return nil
}

var _ store.Store = (*repo)(nil)
