package memory

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/sharetube/watchparty/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	snaps []store.Snapshot
}

func (r *recorder) record(s store.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) all() []store.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]store.Snapshot(nil), r.snaps...)
}

func TestWriteUpdateGet(t *testing.T) {
	s := NewStore(slog.Default())
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "parties/ABC123", map[string]any{
		"partyLink": "link",
		"videoSetting": map[string]any{
			"isPlaying": false,
			"url":       "https://example.com/video.m3u8",
		},
	}))

	require.NoError(t, s.Update(ctx, "parties/ABC123/videoSetting", map[string]any{
		"isPlaying":            true,
		"currentTimeInSeconds": 12.75,
	}))

	snap, err := s.Get(ctx, "parties/ABC123/videoSetting")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"isPlaying":            true,
		"currentTimeInSeconds": 12.75,
		"url":                  "https://example.com/video.m3u8",
	}, snap.Value)

	require.NoError(t, s.Write(ctx, "parties/ABC123", nil))
	snap, err = s.Get(ctx, "parties/ABC123")
	require.NoError(t, err)
	assert.False(t, snap.Exists())
}

func TestObserve(t *testing.T) {
	s := NewStore(slog.Default())
	ctx := context.Background()
	rec := &recorder{}

	sub, err := s.Observe("parties/ABC123/videoSetting/isPlaying", rec.record)
	require.NoError(t, err)

	require.NoError(t, s.Write(ctx, "parties/ABC123/videoSetting", map[string]any{"isPlaying": false}))
	require.NoError(t, s.Update(ctx, "parties/ABC123", map[string]any{"partyLink": "unrelated"}))
	require.NoError(t, s.Update(ctx, "parties/ABC123/videoSetting", map[string]any{"isPlaying": true}))
	require.NoError(t, s.Update(ctx, "parties/ABC123/videoSetting", map[string]any{"isPlaying": true}))

	require.NoError(t, s.Unsubscribe(sub))
	require.NoError(t, s.Update(ctx, "parties/ABC123/videoSetting", map[string]any{"isPlaying": false}))

	got := rec.all()
	require.Len(t, got, 3)
	assert.Nil(t, got[0].Value)
	assert.Equal(t, false, got[1].Value)
	assert.Equal(t, true, got[2].Value)

	assert.ErrorIs(t, s.Unsubscribe(sub), store.ErrNotFound)
}

func TestSnapshotsAreCopies(t *testing.T) {
	s := NewStore(slog.Default())
	ctx := context.Background()
	require.NoError(t, s.Write(ctx, "parties/ABC123/participants/u1", map[string]any{"username": "host"}))

	snap, err := s.Get(ctx, "parties/ABC123/participants")
	require.NoError(t, err)
	snap.Value.(map[string]any)["u1"].(map[string]any)["username"] = "mutated"

	snap, err = s.Get(ctx, "parties/ABC123/participants/u1/username")
	require.NoError(t, err)
	assert.Equal(t, "host", snap.Value)
}

func TestObserveOnce(t *testing.T) {
	s := NewStore(slog.Default())
	ctx := context.Background()
	require.NoError(t, s.Write(ctx, "parties/ABC123/partyLink", "link"))

	var got store.Snapshot
	require.NoError(t, store.ObserveOnce(ctx, s, "parties/ABC123/partyLink", func(snap store.Snapshot) {
		got = snap
	}))
	assert.Equal(t, "link", got.Value)
}

func TestClosed(t *testing.T) {
	s := NewStore(slog.Default())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Write(context.Background(), "a/b", 1), store.ErrClosed)
	_, err := s.Observe("a/b", func(store.Snapshot) {})
	assert.ErrorIs(t, err, store.ErrClosed)
}

func TestInvalidPath(t *testing.T) {
	s := NewStore(slog.Default())
	assert.ErrorIs(t, s.Write(context.Background(), "", 1), store.ErrInvalidPath)
	assert.ErrorIs(t, s.Update(context.Background(), "a", map[string]any{"": 1}), store.ErrInvalidPath)
}

func TestUpdateIfExists(t *testing.T) {
	s := NewStore(slog.Default())
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "parties/ABC123", map[string]any{"partyLink": "link"}))
	require.NoError(t, s.UpdateIfExists(ctx, "parties/ABC123/participants", "parties/ABC123/partyLink", map[string]any{
		"guestUser001": map[string]any{"username": "bob"},
	}))

	require.NoError(t, s.Write(ctx, "parties/ABC123", nil))
	err := s.UpdateIfExists(ctx, "parties/ABC123/participants", "parties/ABC123/partyLink", map[string]any{
		"guestUser002": map[string]any{"username": "carol"},
	})
	assert.ErrorIs(t, err, store.ErrGuardMissing)

	snap, err := s.Get(ctx, "parties/ABC123")
	require.NoError(t, err)
	assert.False(t, snap.Exists())

	err = s.UpdateIfExists(ctx, "parties/ABC123/participants", "parties/XYZ789/partyLink", map[string]any{"a": 1})
	assert.ErrorIs(t, err, store.ErrInvalidPath)
}
