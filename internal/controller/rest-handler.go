package controller

import (
	"errors"
	"net/http"

	"github.com/sharetube/watchparty/internal/player"
	"github.com/sharetube/watchparty/internal/service/party"
	"github.com/sharetube/watchparty/pkg/rest"
)

type playerState struct {
	IsReady     bool    `json:"is_ready"`
	IsPlaying   bool    `json:"is_playing"`
	CurrentTime float64 `json:"current_time"`
	TimeText    string  `json:"time_text"`
	Duration    float64 `json:"duration"`
}

type partyState struct {
	party.Session
	Role   string      `json:"role"`
	Player playerState `json:"player"`
}

func (c controller) getPlayerState() playerState {
	currentTime := c.player.CurrentTime()
	return playerState{
		IsReady:     c.player.IsReady(),
		IsPlaying:   c.player.IsPlaying(),
		CurrentTime: currentTime,
		TimeText:    player.FormatTime(currentTime),
		Duration:    c.player.Duration(),
	}
}

func (c controller) getParty(w http.ResponseWriter, r *http.Request) {
	sess := c.partyService.Session()
	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": partyState{
		Session: sess,
		Role:    sess.Role.String(),
		Player:  c.getPlayerState(),
	}})
}

type hostPartyRequest struct {
	Username string `json:"username" validate:"required,max=64"`
}

func (c controller) hostParty(w http.ResponseWriter, r *http.Request) {
	var req hostPartyRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	resp, err := c.partyService.HostParty(r.Context(), &party.HostPartyParams{
		Username: req.Username,
	})
	// hosting with no video loaded is a no-op
	if errors.Is(err, party.ErrNothingToHost) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": resp})
}

type joinPartyRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Link     string `json:"link" validate:"required_without=PartyID"`
	PartyID  string `json:"party_id" validate:"required_without=Link"`
}

func (c controller) joinParty(w http.ResponseWriter, r *http.Request) {
	var req joinPartyRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	ctx := r.Context()
	partyID := req.PartyID
	if req.Link != "" {
		var err error
		if partyID, err = c.partyService.OpenLink(ctx, req.Link); err != nil {
			c.writeError(w, r, err)
			return
		}
	} else if err := c.partyService.SetPendingParty(ctx, partyID); err != nil {
		c.writeError(w, r, err)
		return
	}

	// a joiner plays whatever the host published
	if _, loaded := c.player.Media(); !loaded {
		videoSetting, err := c.partyService.FetchVideoSetting(ctx, partyID)
		if err != nil {
			c.writeError(w, r, err)
			return
		}

		c.player.Load(player.Media{
			Title:    videoSetting.Title,
			Subtitle: videoSetting.Subtitle,
			URL:      videoSetting.URL,
		}, c.cfg.MediaDuration)
	}

	resp, err := c.partyService.JoinParty(ctx, &party.JoinPartyParams{
		Username: req.Username,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	if err := c.partyService.PlayerReady(ctx); err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": resp})
}

func (c controller) leaveParty(w http.ResponseWriter, r *http.Request) {
	if err := c.partyService.LeaveParty(r.Context()); err != nil {
		c.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (c controller) getParticipants(w http.ResponseWriter, r *http.Request) {
	roster, err := c.partyService.FetchRoster(r.Context())
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": roster})
}

func (c controller) togglePlayPause(w http.ResponseWriter, r *http.Request) {
	if err := c.partyService.TogglePlayPause(r.Context()); err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": c.getPlayerState()})
}

type seekRequest struct {
	Seconds *float64 `json:"seconds" validate:"required,gte=0"`
}

func (c controller) seek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	if err := c.partyService.SeekTo(r.Context(), *req.Seconds); err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": c.getPlayerState()})
}

func (c controller) seekForward(w http.ResponseWriter, r *http.Request) {
	if err := c.partyService.SeekForward(r.Context()); err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": c.getPlayerState()})
}

func (c controller) seekBackward(w http.ResponseWriter, r *http.Request) {
	if err := c.partyService.SeekBackward(r.Context()); err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": c.getPlayerState()})
}
