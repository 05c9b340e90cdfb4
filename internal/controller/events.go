package controller

import (
	"context"

	"github.com/sharetube/watchparty/internal/service/party"
)

type partyPayload struct {
	PartyID string `json:"party_id"`
	Role    string `json:"role,omitempty"`
}

type playStatePayload struct {
	IsPlaying bool `json:"is_playing"`
}

type timePayload struct {
	Seconds  float64 `json:"seconds"`
	TimeText string  `json:"time_text"`
}

type participantsPayload struct {
	Participants []string `json:"participants"`
}

func eventOutput(e party.Event) *Output {
	switch e.Kind {
	case party.EventPlayStateChanged:
		return &Output{Type: string(e.Kind), Payload: playStatePayload{IsPlaying: e.IsPlaying}}
	case party.EventTimeChanged:
		return &Output{Type: string(e.Kind), Payload: timePayload{Seconds: e.Seconds, TimeText: e.TimeText}}
	case party.EventParticipantsChanged:
		return &Output{Type: string(e.Kind), Payload: participantsPayload{Participants: e.Participants}}
	case party.EventPartyEnded:
		return &Output{Type: string(e.Kind), Payload: partyPayload{PartyID: e.PartyID}}
	default:
		return &Output{Type: string(e.Kind), Payload: partyPayload{PartyID: e.PartyID, Role: e.Role.String()}}
	}
}

func (c controller) broadcast(ctx context.Context, output *Output) {
	for _, conn := range c.connRepo.GetConns() {
		if err := conn.WriteJSON(output); err != nil {
			c.logger.DebugContext(ctx, "failed to write event", "conn_id", conn.ID, "error", err)
		}
	}
}

// ForwardEvents sends every party event to the connected websockets until
// the event stream is closed or ctx is done.
func (c controller) ForwardEvents(ctx context.Context) {
	events := c.partyService.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			c.broadcast(ctx, eventOutput(e))
		}
	}
}
