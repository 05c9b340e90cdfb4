package party

import (
	"github.com/sharetube/watchparty/internal/metrics"
)

type EventKind string

const (
	EventPartyEntered        EventKind = "PARTY_ENTERED"
	EventPartyExited         EventKind = "PARTY_EXITED"
	EventPartyEnded          EventKind = "PARTY_ENDED"
	EventPlayStateChanged    EventKind = "PLAY_STATE_CHANGED"
	EventTimeChanged         EventKind = "TIME_CHANGED"
	EventParticipantsChanged EventKind = "PARTICIPANTS_CHANGED"
)

// Event is a notification for the presentation layer. Only the fields
// relevant to Kind are set.
type Event struct {
	Kind         EventKind
	PartyID      string
	Role         Role
	IsPlaying    bool
	Seconds      float64
	TimeText     string
	Participants []string
}

// emit never blocks; events are dropped when the consumer falls behind.
func (s *service) emit(e Event) {
	select {
	case s.events <- e:
	default:
		metrics.EventsDropped.Inc()
		s.logger.Warn("event dropped, consumer is not keeping up", "kind", e.Kind)
	}
}
