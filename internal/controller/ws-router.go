package controller

import (
	"context"

	"github.com/sharetube/watchparty/pkg/wsrouter"
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()
	mux.Use(c.wsRequestIdMw(), c.wsLoggerMw())
	mux.OnError(func(ctx context.Context, conn wsrouter.Conn, err error) {
		c.logger.DebugContext(ctx, "websocket message failed", "error", err)
		if err := conn.WriteJSON(&Output{
			Type:    "ERROR",
			Payload: errorPayload{Error: err.Error()},
		}); err != nil {
			c.logger.DebugContext(ctx, "failed to write error", "error", err)
		}
	})

	wsrouter.Handle(mux, "ALIVE", c.handleAlive)
	// player
	wsrouter.Handle(mux, "TOGGLE", c.handleToggle)
	wsrouter.Handle(mux, "SEEK", c.handleSeek)

	return mux
}
