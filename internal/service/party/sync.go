package party

import (
	"context"
	"log/slog"
	"math"

	"github.com/sharetube/watchparty/internal/metrics"
	"github.com/sharetube/watchparty/internal/player"
	partyrepo "github.com/sharetube/watchparty/internal/repository/party"
	"github.com/sharetube/watchparty/internal/store"
)

// echoTolerance is how close an observed time must be to one of our own
// writes to be treated as its echo.
const echoTolerance = 0.001

// membership is the sync state of one party membership. Callbacks carry the
// membership they were registered for and are ignored once it is replaced.
type membership struct {
	partyID string
	subs    []store.Subscription
	logger  *slog.Logger

	seenPresent bool
	ended       bool

	// remote state observed while the player was not ready
	pendingIsPlaying *bool
	pendingTime      *float64

	// own writes not seen back yet, oldest first
	unechoedTimes      []float64
	unechoedPlayStates []bool

	// last values delivered by the store
	observedTime      *float64
	observedIsPlaying *bool
}

func sameTime(a, b float64) bool {
	return math.Abs(a-b) < echoTolerance
}

func sameBool(a, b bool) bool {
	return a == b
}

// expect queues v as an own write about to be sent. A write that leaves the
// stored value unchanged is not delivered back, so it is not queued.
func expect[T any](queue *[]T, observed *T, v T, same func(a, b T) bool) bool {
	switch {
	case len(*queue) > 0:
		if same((*queue)[len(*queue)-1], v) {
			return false
		}
	case observed != nil:
		if same(*observed, v) {
			return false
		}
	}

	*queue = append(*queue, v)
	return true
}

// takeEcho reports whether v is the echo of a queued own write. That write
// and any older ones, whose echoes the store may have merged, are dropped.
func takeEcho[T any](queue *[]T, v T, same func(a, b T) bool) bool {
	for i, w := range *queue {
		if same(w, v) {
			*queue = (*queue)[i+1:]
			return true
		}
	}

	return false
}

// forget drops one queued own write equal to v after it failed.
func forget[T any](queue *[]T, v T, same func(a, b T) bool) {
	for i, w := range *queue {
		if same(w, v) {
			*queue = append((*queue)[:i:i], (*queue)[i+1:]...)
			return
		}
	}
}

func formatTime(seconds float64) string {
	return player.FormatTime(seconds)
}

// enter starts a membership and registers its four subscriptions.
func (s *service) enter(partyID string) *membership {
	m := &membership{
		partyID: partyID,
		logger:  s.logger.With("party_id", partyID),
	}
	s.membership = m

	s.subscribe(m, "observe_party", func() (store.Subscription, error) {
		return s.partyRepo.ObserveParty(partyID, func(exists bool) {
			s.loop.Post(func() { s.onPartyExistence(m, exists) })
		})
	})
	s.subscribe(m, "observe_is_playing", func() (store.Subscription, error) {
		return s.partyRepo.ObserveIsPlaying(partyID, func(isPlaying bool, ok bool) {
			s.loop.Post(func() { s.onIsPlaying(m, isPlaying, ok) })
		})
	})
	s.subscribe(m, "observe_current_time", func() (store.Subscription, error) {
		return s.partyRepo.ObserveCurrentTime(partyID, func(t partyrepo.CurrentTime, ok bool) {
			s.loop.Post(func() { s.onCurrentTime(m, t, ok) })
		})
	})
	s.subscribe(m, "observe_participants", func() (store.Subscription, error) {
		return s.partyRepo.ObserveParticipants(partyID, func(participants map[string]partyrepo.Participant) {
			s.loop.Post(func() { s.onParticipants(m, participants) })
		})
	})

	return m
}

// subscribe registers an observer on the writer so that it is in place
// before any write enqueued after it.
func (s *service) subscribe(m *membership, op string, observe func() (store.Subscription, error)) {
	s.writer.enqueue(op, func(ctx context.Context) error {
		sub, err := observe()
		if err != nil {
			return err
		}

		s.loop.Post(func() {
			if s.membership != m {
				s.unsubscribe([]store.Subscription{sub})
				return
			}
			m.subs = append(m.subs, sub)
		})

		return nil
	})
}

func (s *service) unsubscribe(subs []store.Subscription) {
	if len(subs) == 0 {
		return
	}

	s.writer.enqueue("unsubscribe", func(ctx context.Context) error {
		var firstErr error
		for _, sub := range subs {
			if err := s.partyRepo.Unsubscribe(sub); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	})
}

// exit clears the local session and drops the current membership.
func (s *service) exit() {
	m := s.membership
	s.membership = nil
	s.setSession(Session{})

	if m != nil {
		s.unsubscribe(m.subs)
		m.subs = nil
	}
}

func (s *service) current(m *membership) bool {
	return m != nil && s.membership == m
}

// canWrite reports whether local changes are published to the party.
func (s *service) canWrite() bool {
	if !s.session.Active() {
		return false
	}

	return s.session.Role == RoleHost || s.cfg.AllowParticipantControl
}

// followsRemote reports whether observed play state and time are applied
// locally. A host is the only author unless participants may write.
func (s *service) followsRemote() bool {
	return s.session.Role != RoleHost || s.cfg.AllowParticipantControl
}

func (s *service) onPartyExistence(m *membership, exists bool) {
	if !s.current(m) {
		return
	}

	if exists {
		m.seenPresent = true
		return
	}

	if !m.seenPresent || m.ended || s.session.Role == RoleHost {
		return
	}

	m.ended = true
	m.logger.Info("party ended by host")
	s.exit()
	if s.player.IsReady() {
		s.player.Pause()
	}

	metrics.PartiesEnded.Inc()
	s.emit(Event{Kind: EventPartyEnded, PartyID: m.partyID})
}

func (s *service) onIsPlaying(m *membership, isPlaying bool, ok bool) {
	if !s.current(m) || !ok {
		return
	}

	m.observedIsPlaying = &isPlaying
	echo := takeEcho(&m.unechoedPlayStates, isPlaying, sameBool)
	// a value older than our queued writes is about to be overwritten by them
	if echo || len(m.unechoedPlayStates) > 0 || !s.followsRemote() {
		return
	}

	if !s.player.IsReady() {
		m.pendingIsPlaying = &isPlaying
		return
	}

	s.applyIsPlaying(isPlaying)
}

// applyIsPlaying converges the local player to the observed play state. It
// never writes back.
func (s *service) applyIsPlaying(isPlaying bool) {
	if s.player.IsPlaying() == isPlaying {
		return
	}

	if isPlaying {
		s.player.Play()
	} else {
		s.player.Pause()
	}

	metrics.RemoteApplied.WithLabelValues("isPlaying").Inc()
	s.emit(Event{Kind: EventPlayStateChanged, PartyID: s.session.PartyID, IsPlaying: isPlaying})
}

func (s *service) onCurrentTime(m *membership, t partyrepo.CurrentTime, ok bool) {
	if !s.current(m) || !ok {
		return
	}

	seconds := t.Seconds
	m.observedTime = &seconds
	echo := takeEcho(&m.unechoedTimes, seconds, sameTime)
	if echo || len(m.unechoedTimes) > 0 || !s.followsRemote() {
		return
	}

	if !s.player.IsReady() {
		m.pendingTime = &seconds
		return
	}

	s.applyTime(seconds)
}

// applyTime seeks the local player to the observed time. Seeking to the
// current position is harmless.
func (s *service) applyTime(seconds float64) {
	s.player.Seek(seconds)

	metrics.RemoteApplied.WithLabelValues("currentTime").Inc()
	s.emit(Event{
		Kind:     EventTimeChanged,
		PartyID:  s.session.PartyID,
		Seconds:  seconds,
		TimeText: formatTime(seconds),
	})
}

func (s *service) onParticipants(m *membership, participants map[string]partyrepo.Participant) {
	if !s.current(m) {
		return
	}

	var names []string
	if participants != nil {
		names = displayNames(participants)
	}
	s.emit(Event{Kind: EventParticipantsChanged, PartyID: m.partyID, Participants: names})

	// late joiners get a fresh position from the host
	if s.session.Role == RoleHost && participants != nil && s.player.IsReady() {
		s.publishTime(m, s.player.CurrentTime())
	}
}

// expectOwnWrite queues the echoes of a write of seconds and, when not nil,
// isPlaying. The returned func takes them back if the write fails.
func (s *service) expectOwnWrite(m *membership, seconds float64, isPlaying *bool) func(error) {
	timeQueued := expect(&m.unechoedTimes, m.observedTime, seconds, sameTime)
	playQueued := isPlaying != nil && expect(&m.unechoedPlayStates, m.observedIsPlaying, *isPlaying, sameBool)

	return func(error) {
		s.loop.Post(func() {
			if timeQueued {
				forget(&m.unechoedTimes, seconds, sameTime)
			}
			if playQueued {
				forget(&m.unechoedPlayStates, *isPlaying, sameBool)
			}
		})
	}
}

func (s *service) publishTime(m *membership, seconds float64) {
	text := formatTime(seconds)
	s.writer.submit("update_time", func(ctx context.Context) error {
		return s.partyRepo.UpdateVideoSetting(ctx, &partyrepo.UpdateVideoSettingParams{
			PartyID:                 m.partyID,
			CurrentTimeInSeconds:    &seconds,
			CurrentTimeDurationText: &text,
		})
	}, s.expectOwnWrite(m, seconds, nil))
}

func (s *service) publishPlayState(m *membership, isPlaying bool, seconds float64) {
	text := formatTime(seconds)
	s.writer.submit("update_play_state", func(ctx context.Context) error {
		return s.partyRepo.UpdateVideoSetting(ctx, &partyrepo.UpdateVideoSettingParams{
			PartyID:                 m.partyID,
			IsPlaying:               &isPlaying,
			CurrentTimeInSeconds:    &seconds,
			CurrentTimeDurationText: &text,
		})
	}, s.expectOwnWrite(m, seconds, &isPlaying))
}

// TogglePlayPause is the user toggling playback. The new state is published
// when this client may write to the party.
func (s *service) TogglePlayPause(ctx context.Context) error {
	return s.do(ctx, func() error {
		if !s.player.IsReady() {
			return ErrPlayerNotReady
		}

		isPlaying := !s.player.IsPlaying()
		if isPlaying {
			s.player.Play()
		} else {
			s.player.Pause()
		}
		s.emit(Event{Kind: EventPlayStateChanged, PartyID: s.session.PartyID, IsPlaying: isPlaying})

		if s.canWrite() {
			s.publishPlayState(s.membership, isPlaying, s.player.CurrentTime())
		}

		return nil
	})
}

// SeekTo is the user releasing the seek bar at seconds.
func (s *service) SeekTo(ctx context.Context, seconds float64) error {
	return s.do(ctx, func() error {
		return s.seek(func(_, duration float64) float64 {
			return clamp(seconds, duration)
		})
	})
}

// SeekForward jumps player.SeekStep seconds ahead, capped at the duration.
func (s *service) SeekForward(ctx context.Context) error {
	return s.do(ctx, func() error {
		return s.seek(player.ForwardTime)
	})
}

// SeekBackward jumps player.SeekStep seconds back, floored at zero.
func (s *service) SeekBackward(ctx context.Context) error {
	return s.do(ctx, func() error {
		return s.seek(func(current, _ float64) float64 {
			return player.BackwardTime(current)
		})
	})
}

func (s *service) seek(target func(current, duration float64) float64) error {
	if !s.player.IsReady() {
		return ErrPlayerNotReady
	}

	seconds := target(s.player.CurrentTime(), s.player.Duration())
	s.player.Seek(seconds)
	s.emit(Event{
		Kind:     EventTimeChanged,
		PartyID:  s.session.PartyID,
		Seconds:  seconds,
		TimeText: formatTime(seconds),
	})

	if s.canWrite() {
		s.publishTime(s.membership, seconds)
	}

	return nil
}

// PlayerReady applies remote state observed while the player was loading.
func (s *service) PlayerReady(ctx context.Context) error {
	return s.do(ctx, func() error {
		m := s.membership
		if m == nil || !s.player.IsReady() {
			return nil
		}

		if m.pendingTime != nil {
			seconds := *m.pendingTime
			m.pendingTime = nil
			s.applyTime(seconds)
		}
		if m.pendingIsPlaying != nil {
			isPlaying := *m.pendingIsPlaying
			m.pendingIsPlaying = nil
			s.applyIsPlaying(isPlaying)
		}

		return nil
	})
}

func clamp(seconds, duration float64) float64 {
	if math.IsNaN(seconds) || seconds < 0 {
		return 0
	}
	if duration > 0 && seconds > duration {
		return duration
	}

	return seconds
}
