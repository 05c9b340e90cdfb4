// Package memory is an in-process store.Store used for tests and the
// single-process demo mode.
package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sharetube/watchparty/internal/store"
)

type repo struct {
	mu        sync.Mutex
	root      any
	observers map[string]*store.Observer
	closed    bool
	logger    *slog.Logger
}

func NewStore(logger *slog.Logger) *repo {
	return &repo{
		observers: make(map[string]*store.Observer),
		logger:    logger,
	}
}

func (r *repo) Write(ctx context.Context, path string, value any) error {
	r.logger.DebugContext(ctx, "called", "path", path)
	segments, err := store.SplitPath(path)
	if err != nil {
		return err
	}

	normalized, err := store.Normalize(value)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return store.ErrClosed
	}

	r.root = store.Set(r.root, segments, normalized)
	r.notifyLocked()

	return nil
}

func (r *repo) Update(ctx context.Context, path string, fields map[string]any) error {
	r.logger.DebugContext(ctx, "called", "path", path, "fields", len(fields))
	segments, err := store.SplitPath(path)
	if err != nil {
		return err
	}

	if err := store.CheckFields(fields); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return store.ErrClosed
	}

	root, err := store.Merge(store.Clone(r.root), segments, fields)
	if err != nil {
		return err
	}

	r.root = root
	r.notifyLocked()

	return nil
}

func (r *repo) UpdateIfExists(ctx context.Context, path, guard string, fields map[string]any) error {
	r.logger.DebugContext(ctx, "called", "path", path, "guard", guard, "fields", len(fields))
	if _, _, _, err := store.SplitGuarded(path, guard); err != nil {
		return err
	}

	if err := store.CheckFields(fields); err != nil {
		return err
	}

	segments, _ := store.SplitPath(path)
	guardSegments, _ := store.SplitPath(guard)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return store.ErrClosed
	}

	if store.Lookup(r.root, guardSegments) == nil {
		return store.ErrGuardMissing
	}

	root, err := store.Merge(store.Clone(r.root), segments, fields)
	if err != nil {
		return err
	}

	r.root = root
	r.notifyLocked()

	return nil
}

func (r *repo) Get(ctx context.Context, path string) (store.Snapshot, error) {
	segments, err := store.SplitPath(path)
	if err != nil {
		return store.Snapshot{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return store.Snapshot{}, store.ErrClosed
	}

	return store.Snapshot{
		Path:  path,
		Value: store.Clone(store.Lookup(r.root, segments)),
	}, nil
}

func (r *repo) Observe(path string, fn func(store.Snapshot)) (store.Subscription, error) {
	segments, err := store.SplitPath(path)
	if err != nil {
		return store.Subscription{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return store.Subscription{}, store.ErrClosed
	}

	o := store.NewObserver(path, segments, fn)
	r.observers[o.Subscription().ID] = o
	o.Notify(r.root)

	return o.Subscription(), nil
}

func (r *repo) Unsubscribe(sub store.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.observers[sub.ID]
	if !ok {
		return store.ErrNotFound
	}

	o.Stop()
	delete(r.observers, sub.ID)

	return nil
}

func (r *repo) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, o := range r.observers {
		o.Stop()
		delete(r.observers, id)
	}
	r.closed = true

	return nil
}

func (r *repo) notifyLocked() {
	for _, o := range r.observers {
		o.Notify(r.root)
	}
}

var _ store.Store = (*repo)(nil)
