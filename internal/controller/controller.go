package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sharetube/watchparty/internal/player"
	"github.com/sharetube/watchparty/internal/repository/connection"
	partyrepo "github.com/sharetube/watchparty/internal/repository/party"
	"github.com/sharetube/watchparty/internal/service/party"
	"github.com/sharetube/watchparty/pkg/validator"
	"github.com/sharetube/watchparty/pkg/wsrouter"
)

type iPartyService interface {
	HostParty(context.Context, *party.HostPartyParams) (party.HostPartyResponse, error)
	JoinParty(context.Context, *party.JoinPartyParams) (party.JoinPartyResponse, error)
	LeaveParty(context.Context) error
	FetchParticipants(context.Context) ([]string, error)
	FetchRoster(context.Context) (map[string]partyrepo.Participant, error)
	FetchVideoSetting(ctx context.Context, partyID string) (partyrepo.VideoSetting, error)
	SetPendingParty(ctx context.Context, partyID string) error
	OpenLink(ctx context.Context, link string) (string, error)
	Session() party.Session
	Events() <-chan party.Event
	// player
	TogglePlayPause(context.Context) error
	SeekTo(ctx context.Context, seconds float64) error
	SeekForward(context.Context) error
	SeekBackward(context.Context) error
	PlayerReady(context.Context) error
}

type iPlayer interface {
	player.Player
	Load(media player.Media, duration float64)
}

type iConnRepo interface {
	Add(*connection.Conn) error
	Remove(string) error
	GetConns() []*connection.Conn
}

type Config struct {
	// MediaDuration is used when a joiner loads the party video.
	MediaDuration float64
}

type controller struct {
	partyService iPartyService
	player       iPlayer
	connRepo     iConnRepo
	upgrader     websocket.Upgrader
	validate     *validator.Validator
	wsmux        *wsrouter.WSRouter
	logger       *slog.Logger
	cfg          Config
}

func NewController(partyService iPartyService, p iPlayer, connRepo iConnRepo, logger *slog.Logger, cfg Config) *controller {
	c := controller{
		partyService: partyService,
		player:       p,
		connRepo:     connRepo,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		validate: validator.NewValidator(),
		logger:   logger,
		cfg:      cfg,
	}
	c.wsmux = c.getWSRouter()

	return &c
}
