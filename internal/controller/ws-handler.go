package controller

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/sharetube/watchparty/internal/repository/connection"
	"github.com/sharetube/watchparty/pkg/wsrouter"
)

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Error string `json:"error"`
}

// subscribeEvents streams party events over a websocket and accepts player
// commands from it.
func (c controller) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	ws, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}

	conn := connection.NewConn(uuid.NewString(), ws)
	if err := c.connRepo.Add(conn); err != nil {
		c.logger.WarnContext(r.Context(), "failed to add connection", "error", err)
		conn.Close()
		return
	}
	defer c.connRepo.Remove(conn.ID)

	ctx := context.WithValue(r.Context(), connIdCtxKey, conn.ID)

	sess := c.partyService.Session()
	if err := conn.WriteJSON(&Output{
		Type: "STATE",
		Payload: partyState{
			Session: sess,
			Role:    sess.Role.String(),
			Player:  c.getPlayerState(),
		},
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to write json", "conn_id", conn.ID, "error", err)
		return
	}

	if err := c.wsmux.ServeConn(ctx, conn); err != nil {
		c.logger.DebugContext(ctx, "connection closed", "conn_id", conn.ID, "error", err)
	}
}

type EmptyInput struct{}

func (c controller) handleAlive(_ context.Context, _ wsrouter.Conn, _ EmptyInput) error {
	return nil
}

func (c controller) handleToggle(ctx context.Context, _ wsrouter.Conn, _ EmptyInput) error {
	if err := c.partyService.TogglePlayPause(ctx); err != nil {
		return fmt.Errorf("failed to toggle playback: %w", err)
	}

	return nil
}

type SeekInput struct {
	Seconds *float64 `json:"seconds" validate:"required,gte=0"`
}

func (c controller) handleSeek(ctx context.Context, _ wsrouter.Conn, input SeekInput) error {
	if validationErrors, ok := c.validate.Validate(input); !ok {
		return fmt.Errorf("invalid seek: %v", validationErrors)
	}

	if err := c.partyService.SeekTo(ctx, *input.Seconds); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}

	return nil
}
