package party

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sharetube/watchparty/internal/player"
	partyrepo "github.com/sharetube/watchparty/internal/repository/party"
	"github.com/sharetube/watchparty/internal/store"
	"github.com/sharetube/watchparty/internal/store/memory"
	"github.com/sharetube/watchparty/pkg/randstr"
	"github.com/stretchr/testify/require"
)

var (
	testMedia = player.Media{
		Title:    "Big Buck Bunny",
		Subtitle: "Blender Foundation",
		URL:      "https://example.com/bbb/master.m3u8",
	}
	frozen = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

// recordingStore counts the mutations one client sends to the shared store.
type recordingStore struct {
	store.Store
	mu    sync.Mutex
	paths []string
}

func (r *recordingStore) Write(ctx context.Context, path string, value any) error {
	r.record(path)
	return r.Store.Write(ctx, path, value)
}

func (r *recordingStore) Update(ctx context.Context, path string, fields map[string]any) error {
	r.record(path)
	return r.Store.Update(ctx, path, fields)
}

func (r *recordingStore) UpdateIfExists(ctx context.Context, path, guard string, fields map[string]any) error {
	r.record(path)
	return r.Store.UpdateIfExists(ctx, path, guard, fields)
}

func (r *recordingStore) record(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recordingStore) writesTo(fragment string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, p := range r.paths {
		if strings.Contains(p, fragment) {
			n++
		}
	}

	return n
}

// deletingStore removes record right after the first read of path, as if
// the host left between that read and the next write.
type deletingStore struct {
	store.Store
	path   string
	record string
	once   sync.Once
}

func (d *deletingStore) Get(ctx context.Context, path string) (store.Snapshot, error) {
	snap, err := d.Store.Get(ctx, path)
	if path == d.path {
		d.once.Do(func() {
			_ = d.Store.Write(ctx, d.record, nil)
		})
	}

	return snap, err
}

type countingPlayer struct {
	*player.Sim
	plays  atomic.Int32
	pauses atomic.Int32
}

func (p *countingPlayer) Play() {
	p.plays.Add(1)
	p.Sim.Play()
}

func (p *countingPlayer) Pause() {
	p.pauses.Add(1)
	p.Sim.Pause()
}

type fixedGenerator struct {
	partyID string
	n       atomic.Int32
}

func (g *fixedGenerator) GenerateRandomString(length int) (string, error) {
	if length == randstr.PartyIDLength {
		return g.partyID, nil
	}

	return fmt.Sprintf("hostuser%04d", g.n.Add(1)), nil
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) count(kind EventKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, e := range l.events {
		if e.Kind == kind {
			n++
		}
	}

	return n
}

func (l *eventLog) seconds() []float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []float64
	for _, e := range l.events {
		if e.Kind == EventTimeChanged {
			out = append(out, e.Seconds)
		}
	}

	return out
}

type client struct {
	svc    *service
	player *countingPlayer
	store  *recordingStore
	events *eventLog
}

func newSharedStore(t *testing.T) store.Store {
	t.Helper()
	s := memory.NewStore(slog.Default())
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func newClient(t *testing.T, shared store.Store, cfg Config) *client {
	t.Helper()
	rec := &recordingStore{Store: shared}
	p := &countingPlayer{Sim: player.NewSim(player.WithClock(func() time.Time { return frozen }))}

	cfg.WriteRetryDelay = time.Millisecond
	svc := NewService(partyrepo.NewRepo(rec, slog.Default()), p, slog.Default(), cfg)

	events := &eventLog{}
	go func() {
		for e := range svc.Events() {
			events.mu.Lock()
			events.events = append(events.events, e)
			events.mu.Unlock()
		}
	}()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Close(ctx)
	})

	return &client{svc: svc, player: p, store: rec, events: events}
}

// newHost returns a client that hosted partyID with the test media paused at startAt.
func newHost(t *testing.T, shared store.Store, partyID string, startAt float64, cfg Config) *client {
	t.Helper()
	host := newClient(t, shared, cfg)
	host.svc.generator = &fixedGenerator{partyID: partyID}
	host.player.Load(testMedia, 600)
	host.player.Seek(startAt)

	resp, err := host.svc.HostParty(context.Background(), &HostPartyParams{Username: "alice"})
	require.NoError(t, err)
	require.Equal(t, partyID, resp.PartyID)
	settle(t, host)

	return host
}

func newParticipant(t *testing.T, shared store.Store, partyID, username string, cfg Config) (*client, JoinPartyResponse) {
	t.Helper()
	cfg.PartyID = partyID
	c := newClient(t, shared, cfg)
	c.player.Load(testMedia, 600)

	resp, err := c.svc.JoinParty(context.Background(), &JoinPartyParams{Username: username})
	require.NoError(t, err)

	return c, resp
}

// settle lets queued writes and the notifications they cause run to completion.
func settle(t *testing.T, clients ...*client) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		for _, c := range clients {
			require.NoError(t, c.svc.writer.flush(ctx))
			require.NoError(t, c.svc.loop.Do(ctx, func() {}))
		}
	}
}
