package connection

import (
	"errors"
	"sync"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// Conn is a websocket connection that is safe for concurrent writers.
type Conn struct {
	ID string
	ws *websocket.Conn
	mu sync.Mutex
}

func NewConn(id string, ws *websocket.Conn) *Conn {
	return &Conn{ID: id, ws: ws}
}

func (c *Conn) ReadMessage() (int, []byte, error) {
	return c.ws.ReadMessage()
}

func (c *Conn) WriteJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ws.WriteMessage(websocket.TextMessage, b)
}

func (c *Conn) Close() error {
	return c.ws.Close()
}
