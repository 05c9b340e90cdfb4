package wsrouter

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

var ErrUnknownMessageType = errors.New("unknown message type")

// Conn is the part of a websocket connection the router needs.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v any) error
}

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type HandlerFunc[T any] func(ctx context.Context, conn Conn, payload T) error

type Middleware func(next HandlerFunc[any]) HandlerFunc[any]

// ErrorHandler is called when a message cannot be routed or its handler fails.
type ErrorHandler func(ctx context.Context, conn Conn, err error)

type route struct {
	decode  func(json.RawMessage) (any, error)
	handler HandlerFunc[any]
}

type WSRouter struct {
	routes      map[string]route
	middlewares []Middleware
	onError     ErrorHandler
}

func New() *WSRouter {
	return &WSRouter{
		routes: make(map[string]route),
		onError: func(_ context.Context, conn Conn, err error) {
			conn.WriteJSON(map[string]string{"error": err.Error()})
		},
	}
}

func (r *WSRouter) Use(mw ...Middleware) {
	r.middlewares = append(r.middlewares, mw...)
}

func (r *WSRouter) OnError(h ErrorHandler) {
	r.onError = h
}

// Handle registers handler for messageType. The payload is decoded into T.
func Handle[T any](r *WSRouter, messageType string, handler HandlerFunc[T]) {
	r.routes[messageType] = route{
		decode: func(raw json.RawMessage) (any, error) {
			var payload T
			if len(raw) == 0 || string(raw) == "null" {
				return payload, nil
			}
			if err := json.Unmarshal(raw, &payload); err != nil {
				return nil, fmt.Errorf("failed to decode payload: %w", err)
			}
			return payload, nil
		},
		handler: func(ctx context.Context, conn Conn, payload any) error {
			return handler(ctx, conn, payload.(T))
		},
	}
}

// ServeConn routes messages from conn until reading fails.
func (r *WSRouter) ServeConn(ctx context.Context, conn Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			r.onError(ctx, conn, fmt.Errorf("failed to decode message: %w", err))
			continue
		}

		rt, ok := r.routes[msg.Type]
		if !ok {
			r.onError(ctx, conn, fmt.Errorf("%w: %s", ErrUnknownMessageType, msg.Type))
			continue
		}

		payload, err := rt.decode(msg.Payload)
		if err != nil {
			r.onError(ctx, conn, err)
			continue
		}

		handler := rt.handler
		for i := len(r.middlewares) - 1; i >= 0; i-- {
			handler = r.middlewares[i](handler)
		}

		msgCtx := context.WithValue(ctx, messageTypeKey, msg.Type)
		if err := handler(msgCtx, conn, payload); err != nil {
			r.onError(msgCtx, conn, err)
		}
	}
}
