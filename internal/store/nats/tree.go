package nats

import (
	"context"
	"fmt"

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

	doc, _, err := r.read(ctx, r.getKey(record))
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

	w, err := r.kv.Watch(context.Background(), r.getKey(record))
	if err != nil {
		return store.Subscription{}, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	sub := &subscription{
		observer: store.NewObserver(path, rel, fn),
		watcher:  w,
	}

	// the watcher replays the current value and then sends a nil marker
	if err := r.initial(sub); err != nil {
		w.Stop()
		return store.Subscription{}, err
	}

	r.mu.Lock()
	r.subs[sub.observer.Subscription().ID] = sub
	r.mu.Unlock()

	go r.listen(sub)

	return sub.observer.Subscription(), nil
}

func (r *repo) initial(sub *subscription) error {
	var doc any
	for entry := range sub.watcher.Updates() {
		if entry == nil {
			sub.observer.Notify(doc)
			return nil
		}

		var err error
		if doc, err = decodeEntry(entry); err != nil {
			return err
		}
	}

	return fmt.Errorf("watcher for %s stopped", sub.observer.Subscription().Path)
}

func (r *repo) listen(sub *subscription) {
	for entry := range sub.watcher.Updates() {
		if entry == nil {
			continue
		}

		doc, err := decodeEntry(entry)
		if err != nil {
			r.logger.Info("failed to decode observed record", "key", entry.Key(), "error", err)
			continue
		}
		sub.observer.Notify(doc)
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
	return sub.watcher.Stop()
}

func (r *repo) Close() error {
	r.mu.Lock()
	subs := r.subs
	r.subs = make(map[string]*subscription)
	r.closed = true
	r.mu.Unlock()

	for _, sub := range subs {
		sub.observer.Stop()
		sub.watcher.Stop()
	}

	return nil
}

var _ store.Store = (*repo)(nil)
