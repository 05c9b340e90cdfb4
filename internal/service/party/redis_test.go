package party

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	redisstore "github.com/sharetube/watchparty/internal/store/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartyOverRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	newStore := func() *recordingStore {
		rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { rc.Close() })
		s := redisstore.NewRepo(rc, time.Hour, slog.Default())
		t.Cleanup(func() { _ = s.Close() })
		return &recordingStore{Store: s}
	}

	host := newHost(t, newStore(), "ABC123", 42.5, Config{})
	guest, _ := newParticipant(t, newStore(), "ABC123", "bob", Config{})

	assert.Eventually(t, func() bool {
		return guest.player.CurrentTime() == 42.5
	}, waitFor, tick)
	assert.Eventually(t, func() bool {
		names, err := host.svc.FetchParticipants(ctx)
		return err == nil && len(names) == 2
	}, waitFor, tick)

	require.NoError(t, host.svc.TogglePlayPause(ctx))
	assert.Eventually(t, func() bool { return guest.player.IsPlaying() }, waitFor, tick)

	require.NoError(t, host.svc.LeaveParty(ctx))
	assert.Eventually(t, func() bool {
		return guest.events.count(EventPartyEnded) == 1
	}, waitFor, tick)
	assert.False(t, mr.Exists("watchparty:parties:ABC123"))
	assert.False(t, guest.player.IsPlaying())
}
