package player

import (
	"sync"
	"time"
)

// Sim is an in-memory Player. The position advances with the clock while playing.
type Sim struct {
	mu        sync.Mutex
	now       func() time.Time
	media     *Media
	duration  float64
	ready     bool
	playing   bool
	basePos   float64
	startedAt time.Time
}

type SimOption func(*Sim)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) SimOption {
	return func(s *Sim) {
		s.now = now
	}
}

func NewSim(opts ...SimOption) *Sim {
	s := &Sim{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Load replaces the current media, pauses at zero and marks the player ready.
func (s *Sim) Load(media Media, duration float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.media = &media
	s.duration = duration
	s.playing = false
	s.basePos = 0
	s.ready = true
}

func (s *Sim) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ready = ready
}

func (s *Sim) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.playing {
		return
	}
	s.startedAt = s.now()
	s.playing = true
}

func (s *Sim) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.playing {
		return
	}
	s.basePos = s.positionLocked()
	s.playing = false
}

func (s *Sim) Seek(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seconds < 0 {
		seconds = 0
	}
	if s.duration > 0 && seconds > s.duration {
		seconds = s.duration
	}

	s.basePos = seconds
	s.startedAt = s.now()
}

func (s *Sim) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.positionLocked()
}

func (s *Sim) Duration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.duration
}

func (s *Sim) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.playing
}

func (s *Sim) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ready
}

func (s *Sim) Media() (Media, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.media == nil {
		return Media{}, false
	}

	return *s.media, true
}

func (s *Sim) positionLocked() float64 {
	if !s.playing {
		return s.basePos
	}

	pos := s.basePos + s.now().Sub(s.startedAt).Seconds()
	if s.duration > 0 && pos > s.duration {
		return s.duration
	}

	return pos
}

var _ Player = (*Sim)(nil)
