package redis

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*repo, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rc.Close() })

	r := NewRepo(rc, time.Hour, slog.Default())
	t.Cleanup(func() { r.Close() })

	return r, s
}

func TestWriteUpdateGet(t *testing.T) {
	r, s := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Write(ctx, "parties/ABC123", map[string]any{
		"partyLink": "link",
		"participants": map[string]any{
			"u1": map[string]any{"username": "host", "type": "Host"},
		},
	}))
	require.NoError(t, r.Update(ctx, "parties/ABC123/participants", map[string]any{
		"u2": map[string]any{"username": "guest", "type": "Participant"},
	}))

	snap, err := r.Get(ctx, "parties/ABC123/participants")
	require.NoError(t, err)
	assert.Len(t, snap.Value, 2)

	assert.True(t, s.Exists("watchparty:parties:ABC123"))
	assert.Equal(t, time.Hour, s.TTL("watchparty:parties:ABC123"))

	require.NoError(t, r.Update(ctx, "parties/ABC123/participants", map[string]any{"u2": nil}))
	snap, err = r.Get(ctx, "parties/ABC123/participants/u2")
	require.NoError(t, err)
	assert.False(t, snap.Exists())

	require.NoError(t, r.Write(ctx, "parties/ABC123", nil))
	assert.False(t, s.Exists("watchparty:parties:ABC123"))
}

func TestRecordPathRequired(t *testing.T) {
	r, _ := newTestRepo(t)
	assert.ErrorIs(t, r.Write(context.Background(), "parties", 1), store.ErrInvalidPath)
	_, err := r.Observe("parties", func(store.Snapshot) {})
	assert.ErrorIs(t, err, store.ErrInvalidPath)
}

func TestObserve(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	var mu sync.Mutex
	var got []any
	sub, err := r.Observe("parties/ABC123/videoSetting/isPlaying", func(s store.Snapshot) {
		mu.Lock()
		got = append(got, s.Value)
		mu.Unlock()
	})
	require.NoError(t, err)

	values := func() []any {
		mu.Lock()
		defer mu.Unlock()
		return append([]any(nil), got...)
	}

	assert.Equal(t, []any{nil}, values())

	require.NoError(t, r.Update(ctx, "parties/ABC123/videoSetting", map[string]any{"isPlaying": true}))
	assert.Eventually(t, func() bool { return len(values()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, true, values()[1])

	require.NoError(t, r.Update(ctx, "parties/ABC123", map[string]any{"partyLink": "sibling"}))
	require.NoError(t, r.Update(ctx, "parties/ABC123/videoSetting", map[string]any{"isPlaying": false}))
	assert.Eventually(t, func() bool { return len(values()) == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, false, values()[2])

	require.NoError(t, r.Unsubscribe(sub))
	assert.ErrorIs(t, r.Unsubscribe(sub), store.ErrNotFound)
}

func TestClosed(t *testing.T) {
	r, _ := newTestRepo(t)
	require.NoError(t, r.Close())
	assert.ErrorIs(t, r.Write(context.Background(), "parties/ABC123", 1), store.ErrClosed)
}

func TestUpdateIfExists(t *testing.T) {
	r, s := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Write(ctx, "parties/ABC123", map[string]any{"partyLink": "link"}))
	require.NoError(t, r.UpdateIfExists(ctx, "parties/ABC123/participants", "parties/ABC123/partyLink", map[string]any{
		"guestUser001": map[string]any{"username": "bob"},
	}))

	snap, err := r.Get(ctx, "parties/ABC123/participants/guestUser001/username")
	require.NoError(t, err)
	assert.Equal(t, "bob", snap.Value)

	require.NoError(t, r.Write(ctx, "parties/ABC123", nil))
	err = r.UpdateIfExists(ctx, "parties/ABC123/participants", "parties/ABC123/partyLink", map[string]any{
		"guestUser002": map[string]any{"username": "carol"},
	})
	assert.ErrorIs(t, err, store.ErrGuardMissing)
	assert.False(t, s.Exists("watchparty:parties:ABC123"))
}

func TestObserveDeliversEveryChange(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	var mu sync.Mutex
	var got []any
	_, err := r.Observe("parties/ABC123/videoSetting/isPlaying", func(s store.Snapshot) {
		mu.Lock()
		got = append(got, s.Value)
		mu.Unlock()
	})
	require.NoError(t, err)

	for _, isPlaying := range []bool{true, false, true} {
		require.NoError(t, r.Update(ctx, "parties/ABC123/videoSetting", map[string]any{"isPlaying": isPlaying}))
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 4
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []any{nil, true, false, true}, got)
}
