// Package party keeps a local player in sync with a shared watch party record.
package party

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sharetube/watchparty/internal/loop"
	"github.com/sharetube/watchparty/internal/player"
	partyrepo "github.com/sharetube/watchparty/internal/repository/party"
	"github.com/sharetube/watchparty/internal/store"
	"github.com/sharetube/watchparty/pkg/deeplink"
	"github.com/sharetube/watchparty/pkg/randstr"
	"github.com/sharetube/watchparty/pkg/validator"
)

var (
	ErrNothingToHost  = errors.New("nothing to host")
	ErrAlreadyInParty = errors.New("already in a party")
	ErrNoPendingParty = errors.New("no party to join")
	ErrNotInParty     = errors.New("not in a party")
	ErrPlayerNotReady = errors.New("player not ready")
	ErrInvalidParams  = errors.New("invalid params")
)

type iPartyRepo interface {
	SetParty(context.Context, *partyrepo.SetPartyParams) error
	IsPartyExists(context.Context, string) (bool, error)
	RemoveParty(context.Context, string) error
	AddParticipant(context.Context, *partyrepo.AddParticipantParams) error
	RemoveParticipant(context.Context, *partyrepo.RemoveParticipantParams) error
	GetParticipants(context.Context, string) (map[string]partyrepo.Participant, error)
	GetVideoSetting(context.Context, string) (partyrepo.VideoSetting, error)
	UpdateVideoSetting(context.Context, *partyrepo.UpdateVideoSettingParams) error
	// observers
	ObserveParty(partyID string, fn func(exists bool)) (store.Subscription, error)
	ObserveIsPlaying(partyID string, fn func(isPlaying bool, ok bool)) (store.Subscription, error)
	ObserveCurrentTime(partyID string, fn func(t partyrepo.CurrentTime, ok bool)) (store.Subscription, error)
	ObserveParticipants(partyID string, fn func(map[string]partyrepo.Participant)) (store.Subscription, error)
	Unsubscribe(store.Subscription) error
}

type iGenerator interface {
	GenerateRandomString(length int) (string, error)
}

type Config struct {
	// PartyID is the party to join, usually taken from a deep link.
	PartyID    string
	LinkScheme string
	// AllowParticipantControl lets participants write play state and time.
	AllowParticipantControl bool
	EventBuffer             int
	WriteAttempts           int
	WriteRetryDelay         time.Duration
	WriteTimeout            time.Duration
	BreakerTimeout          time.Duration
}

func (c *Config) setDefaults() {
	if c.LinkScheme == "" {
		c.LinkScheme = deeplink.DefaultScheme
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 64
	}
	if c.WriteAttempts <= 0 {
		c.WriteAttempts = 3
	}
	if c.WriteRetryDelay <= 0 {
		c.WriteRetryDelay = 100 * time.Millisecond
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = 30 * time.Second
	}
}

// Session is the local view of the party membership.
type Session struct {
	PartyID   string `json:"party_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	PartyLink string `json:"party_link,omitempty"`
	Role      Role   `json:"-"`
}

func (s Session) Active() bool {
	return s.PartyID != ""
}

type service struct {
	partyRepo iPartyRepo
	player    player.Player
	generator iGenerator
	validate  *validator.Validator
	logger    *slog.Logger
	cfg       Config
	loop      *loop.Loop
	writer    *writer
	events    chan Event
	published atomic.Pointer[Session]
	closeOnce sync.Once

	// owned by the loop
	session        Session
	pendingPartyID string
	membership     *membership
}

func NewService(partyRepo iPartyRepo, p player.Player, logger *slog.Logger, cfg Config) *service {
	cfg.setDefaults()
	s := service{
		partyRepo:      partyRepo,
		player:         p,
		generator:      randstr.New([]byte(randstr.DefaultAlphabet)),
		validate:       validator.NewValidator(),
		logger:         logger,
		cfg:            cfg,
		loop:           loop.New(),
		writer:         newWriter(&cfg, logger),
		events:         make(chan Event, cfg.EventBuffer),
		pendingPartyID: cfg.PartyID,
	}
	s.published.Store(&Session{})

	return &s
}

// Events delivers notifications for the presentation layer. The channel is
// closed by Close.
func (s *service) Events() <-chan Event {
	return s.events
}

// Session returns a copy of the local session.
func (s *service) Session() Session {
	return *s.published.Load()
}

func (s *service) setSession(sess Session) {
	s.session = sess
	s.published.Store(&sess)
}

// Close leaves the active party, waits for pending remote operations and
// stops the service.
func (s *service) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		doErr := s.loop.Do(ctx, func() {
			if s.session.Active() {
				s.leaveParty()
			}
		})
		flushErr := s.writer.flush(ctx)
		s.loop.Stop()
		s.writer.stop()
		close(s.events)
		err = errors.Join(doErr, flushErr)
	})

	return err
}

// do runs fn on the loop and returns its error.
func (s *service) do(ctx context.Context, fn func() error) error {
	var err error
	if doErr := s.loop.Do(ctx, func() { err = fn() }); doErr != nil {
		return doErr
	}

	return err
}
