package store

import (
	"sync"

	"github.com/google/uuid"
)

// Observer delivers snapshots of one path, skipping values identical to the
// last delivery. It is safe for concurrent use.
type Observer struct {
	sub Subscription
	rel []string
	fn  func(Snapshot)

	mu        sync.Mutex
	delivered bool
	last      any
	stopped   bool
}

// NewObserver creates an observer for path. rel is the part of the path that
// Notify resolves inside the document it is handed.
func NewObserver(path string, rel []string, fn func(Snapshot)) *Observer {
	return &Observer{
		sub: Subscription{ID: uuid.NewString(), Path: path},
		rel: rel,
		fn:  fn,
	}
}

func (o *Observer) Subscription() Subscription {
	return o.sub
}

// Notify resolves the observed path inside doc and delivers it if it changed.
func (o *Observer) Notify(doc any) {
	value := Clone(Lookup(doc, o.rel))

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stopped {
		return
	}
	if o.delivered && Equal(o.last, value) {
		return
	}

	o.delivered = true
	o.last = value
	o.fn(Snapshot{Path: o.sub.Path, Value: Clone(value)})
}

// Stop prevents any further delivery.
func (o *Observer) Stop() {
	o.mu.Lock()
	o.stopped = true
	o.mu.Unlock()
}
