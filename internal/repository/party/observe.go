package party

import (
	"github.com/sharetube/watchparty/internal/store"
)

// ObserveParty reports whether the party record exists, on registration and on every change.
func (r repo) ObserveParty(partyID string, fn func(exists bool)) (store.Subscription, error) {
	return r.store.Observe(store.JoinPath(r.getPartyPath(partyID), "partyLink"), func(s store.Snapshot) {
		fn(s.Exists())
	})
}

// ObserveIsPlaying reports videoSetting.isPlaying; ok is false when the field is missing.
func (r repo) ObserveIsPlaying(partyID string, fn func(isPlaying bool, ok bool)) (store.Subscription, error) {
	return r.store.Observe(store.JoinPath(r.getVideoSettingPath(partyID), "isPlaying"), func(s store.Snapshot) {
		isPlaying, ok := s.Value.(bool)
		fn(isPlaying, ok)
	})
}

// ObserveCurrentTime reports videoSetting.currentTimeInSeconds; ok is false when the field is missing.
func (r repo) ObserveCurrentTime(partyID string, fn func(t CurrentTime, ok bool)) (store.Subscription, error) {
	return r.store.Observe(store.JoinPath(r.getVideoSettingPath(partyID), "currentTimeInSeconds"), func(s store.Snapshot) {
		seconds, ok := s.Value.(float64)
		fn(CurrentTime{Seconds: seconds}, ok)
	})
}

// ObserveParticipants reports the roster on every change; a missing roster is delivered as nil.
func (r repo) ObserveParticipants(partyID string, fn func(map[string]Participant)) (store.Subscription, error) {
	return r.store.Observe(r.getParticipantsPath(partyID), func(s store.Snapshot) {
		participants, err := r.decodeParticipants(s)
		if err != nil {
			fn(nil)
			return
		}
		fn(participants)
	})
}

func (r repo) Unsubscribe(sub store.Subscription) error {
	return r.store.Unsubscribe(sub)
}
