package party

type ParticipantType string

const (
	ParticipantTypeHost        ParticipantType = "Host"
	ParticipantTypeParticipant ParticipantType = "Participant"
)

type Participant struct {
	Username string          `json:"username" validate:"required"`
	Type     ParticipantType `json:"type" validate:"required,oneof=Host Participant"`
}

type VideoSetting struct {
	IsPlaying               bool    `json:"isPlaying"`
	CurrentTimeDurationText string  `json:"currentTimeDurationText"`
	CurrentTimeInSeconds    float64 `json:"currentTimeInSeconds" validate:"gte=0"`
	URL                     string  `json:"url" validate:"required"`
	Title                   string  `json:"title"`
	Subtitle                string  `json:"subtitle" validate:"required"`
}

// Party is the shared record stored at parties/{partyId}.
type Party struct {
	PartyLink    string                 `json:"partyLink" validate:"required"`
	Participants map[string]Participant `json:"participants" validate:"required,min=1,dive"`
	VideoSetting VideoSetting           `json:"videoSetting"`
}

type SetPartyParams struct {
	PartyID      string
	PartyLink    string
	HostID       string
	HostUsername string
	VideoSetting VideoSetting
}

type AddParticipantParams struct {
	PartyID  string
	UserID   string
	Username string
}

type RemoveParticipantParams struct {
	PartyID string
	UserID  string
}

// UpdateVideoSettingParams holds a partial update; nil fields are left untouched.
type UpdateVideoSettingParams struct {
	PartyID                 string
	IsPlaying               *bool
	CurrentTimeInSeconds    *float64
	CurrentTimeDurationText *string
}

type CurrentTime struct {
	Seconds float64
}
