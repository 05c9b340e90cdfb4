package controller

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/sharetube/watchparty/internal/player"
	"github.com/sharetube/watchparty/internal/repository/connection/inmemory"
	partyrepo "github.com/sharetube/watchparty/internal/repository/party"
	"github.com/sharetube/watchparty/internal/service/party"
	"github.com/sharetube/watchparty/internal/store"
	"github.com/sharetube/watchparty/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testApp struct {
	srv    *httptest.Server
	player *player.Sim
}

func newTestApp(t *testing.T, shared store.Store, withMedia bool) *testApp {
	t.Helper()
	logger := slog.Default()
	sim := player.NewSim()
	if withMedia {
		sim.Load(player.Media{
			Title:    "Big Buck Bunny",
			Subtitle: "Blender Foundation",
			URL:      "https://example.com/bbb/master.m3u8",
		}, 600)
	}

	svc := party.NewService(partyrepo.NewRepo(shared, logger), sim, logger, party.Config{})
	c := NewController(svc, sim, inmemory.NewRepo(logger), logger, Config{MediaDuration: 600})

	ctx, cancel := context.WithCancel(context.Background())
	go c.ForwardEvents(ctx)

	srv := httptest.NewServer(c.GetMux())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		_ = svc.Close(closeCtx)
	})

	return &testApp{srv: srv, player: sim}
}

func (a *testApp) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, a.srv.URL+path, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)

	return resp.StatusCode, out
}

func TestHealthz(t *testing.T) {
	a := newTestApp(t, memory.NewStore(slog.Default()), false)

	resp, err := http.Get(a.srv.URL + "/api/v1/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(a.srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPartyLifecycle(t *testing.T) {
	shared := memory.NewStore(slog.Default())
	host := newTestApp(t, shared, true)
	guest := newTestApp(t, shared, false)

	status, body := host.do(t, http.MethodPost, "/api/v1/party/host", map[string]any{"username": "alice"})
	require.Equal(t, http.StatusCreated, status)
	data := body["data"].(map[string]any)
	link := data["party_link"].(string)
	assert.Contains(t, link, "party_id="+data["party_id"].(string))

	status, _ = host.do(t, http.MethodPost, "/api/v1/party/host", map[string]any{"username": "alice"})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = host.do(t, http.MethodPost, "/api/v1/player/seek", map[string]any{"seconds": 90.5})
	require.Equal(t, http.StatusOK, status)

	status, body = guest.do(t, http.MethodPost, "/api/v1/party/join", map[string]any{"username": "bob", "link": link})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, data["party_id"], body["data"].(map[string]any)["party_id"])

	assert.Eventually(t, func() bool {
		return guest.player.CurrentTime() == 90.5
	}, 2*time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		status, body := host.do(t, http.MethodGet, "/api/v1/party/participants", nil)
		return status == http.StatusOK && len(body["data"].(map[string]any)) == 2
	}, 2*time.Second, 5*time.Millisecond)

	status, body = guest.do(t, http.MethodGet, "/api/v1/party", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "participant", body["data"].(map[string]any)["role"])

	status, _ = host.do(t, http.MethodPost, "/api/v1/party/leave", nil)
	assert.Equal(t, http.StatusNoContent, status)

	assert.Eventually(t, func() bool {
		_, body := guest.do(t, http.MethodGet, "/api/v1/party", nil)
		return body["data"].(map[string]any)["role"] == "unset"
	}, 2*time.Second, 5*time.Millisecond)

	status, _ = host.do(t, http.MethodPost, "/api/v1/party/leave", nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestRequestValidation(t *testing.T) {
	a := newTestApp(t, memory.NewStore(slog.Default()), false)

	status, _ := a.do(t, http.MethodPost, "/api/v1/party/host", map[string]any{"username": "alice"})
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = a.do(t, http.MethodPost, "/api/v1/party/host", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = a.do(t, http.MethodPost, "/api/v1/party/host", map[string]any{"username": "alice", "extra": 1})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = a.do(t, http.MethodPost, "/api/v1/party/join", map[string]any{"username": "bob"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = a.do(t, http.MethodPost, "/api/v1/party/join", map[string]any{"username": "bob", "link": "https://example.com"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = a.do(t, http.MethodPost, "/api/v1/party/join", map[string]any{"username": "bob", "party_id": "NOPE00"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = a.do(t, http.MethodPost, "/api/v1/player/toggle", nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestEventStream(t *testing.T) {
	a := newTestApp(t, memory.NewStore(slog.Default()), true)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(a.srv.URL, "http")+"/api/v1/ws/events", nil)
	require.NoError(t, err)
	defer ws.Close()

	read := func() Output {
		t.Helper()
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, b, err := ws.ReadMessage()
		require.NoError(t, err)
		var out Output
		require.NoError(t, json.Unmarshal(b, &out))
		return out
	}

	assert.Equal(t, "STATE", read().Type)

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "TOGGLE"}))
	out := read()
	assert.Equal(t, string(party.EventPlayStateChanged), out.Type)
	assert.Equal(t, true, out.Payload.(map[string]any)["is_playing"])

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "SEEK", "payload": map[string]any{"seconds": 30}}))
	out = read()
	assert.Equal(t, string(party.EventTimeChanged), out.Type)
	assert.Equal(t, "00:30", out.Payload.(map[string]any)["time_text"])

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "SEEK", "payload": map[string]any{}}))
	assert.Equal(t, "ERROR", read().Type)

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "UNKNOWN"}))
	assert.Equal(t, "ERROR", read().Type)
}
