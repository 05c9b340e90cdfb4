package party

import "errors"

var (
	ErrPartyNotFound        = errors.New("party not found")
	ErrParticipantsNotFound = errors.New("participants not found")
	ErrVideoSettingNotFound = errors.New("video setting not found")
	ErrInvalidParty         = errors.New("invalid party")
	ErrEmptyUpdate          = errors.New("nothing to update")
)
