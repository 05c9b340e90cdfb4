// Package store defines the realtime keyed-tree store the watch party client
// is built on, plus helpers shared by the backends.
package store

import (
	"context"
	"errors"
)

var (
	ErrInvalidPath = errors.New("invalid path")
	ErrClosed      = errors.New("store closed")
	ErrNotFound    = errors.New("subscription not found")
	// ErrGuardMissing is returned by UpdateIfExists when its guard path is empty.
	ErrGuardMissing = errors.New("guard path does not exist")
)

// Store is a hierarchical key/value store with push-style subscriptions.
//
// Observe callbacks may run on any goroutine. They must not block and must
// not call back into the store synchronously.
type Store interface {
	// Write replaces the subtree at path. A nil value deletes it.
	Write(ctx context.Context, path string, value any) error
	// Update merges fields into the subtree at path without touching siblings.
	// A nil field value deletes that child.
	Update(ctx context.Context, path string, fields map[string]any) error
	// UpdateIfExists is Update applied only while something is stored at
	// guard, checked atomically with the merge. guard must lie in the same
	// record as path.
	UpdateIfExists(ctx context.Context, path, guard string, fields map[string]any) error
	// Get reads the subtree at path once.
	Get(ctx context.Context, path string) (Snapshot, error)
	// Observe delivers the current value of path and then every change to it.
	Observe(path string, fn func(Snapshot)) (Subscription, error)
	Unsubscribe(sub Subscription) error
	Close() error
}

// Subscription identifies an Observe registration.
type Subscription struct {
	ID   string
	Path string
}

// ObserveOnce reads path once and hands the snapshot to fn.
func ObserveOnce(ctx context.Context, s Store, path string, fn func(Snapshot)) error {
	snap, err := s.Get(ctx, path)
	if err != nil {
		return err
	}

	fn(snap)
	return nil
}
