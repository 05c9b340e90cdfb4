package controller

import (
	"errors"
	"net/http"

	partyrepo "github.com/sharetube/watchparty/internal/repository/party"
	"github.com/sharetube/watchparty/internal/service/party"
	"github.com/sharetube/watchparty/pkg/deeplink"
	"github.com/sharetube/watchparty/pkg/rest"
)

func statusFromError(err error) int {
	switch {
	case errors.Is(err, party.ErrInvalidParams),
		errors.Is(err, deeplink.ErrInvalidLink):
		return http.StatusBadRequest
	case errors.Is(err, partyrepo.ErrVideoSettingNotFound):
		return http.StatusNotFound
	case errors.Is(err, party.ErrAlreadyInParty),
		errors.Is(err, party.ErrNoPendingParty),
		errors.Is(err, party.ErrNotInParty),
		errors.Is(err, party.ErrPlayerNotReady):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (c controller) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFromError(err)
	if status == http.StatusInternalServerError {
		c.logger.ErrorContext(r.Context(), "request failed", "error", err)
	} else {
		c.logger.DebugContext(r.Context(), "request rejected", "error", err)
	}

	rest.WriteJSON(w, status, rest.Envelope{"error": err.Error()})
}
