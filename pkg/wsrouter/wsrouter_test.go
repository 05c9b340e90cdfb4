package wsrouter

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	in  [][]byte
	out []any
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	if len(c.in) == 0 {
		return 0, nil, io.EOF
	}
	msg := c.in[0]
	c.in = c.in[1:]
	return 1, msg, nil
}

func (c *fakeConn) WriteJSON(v any) error {
	c.out = append(c.out, v)
	return nil
}

type seekInput struct {
	Seconds float64 `json:"seconds"`
}

func TestServeConn(t *testing.T) {
	conn := &fakeConn{in: [][]byte{
		[]byte(`{"type":"SEEK","payload":{"seconds":12.5}}`),
		[]byte(`{"type":"ALIVE"}`),
		[]byte(`{"type":"NOPE"}`),
		[]byte(`not json`),
		[]byte(`{"type":"FAIL"}`),
	}}

	var seeks []float64
	var types []string
	r := New()
	r.Use(func(next HandlerFunc[any]) HandlerFunc[any] {
		return func(ctx context.Context, conn Conn, payload any) error {
			types = append(types, GetMessageTypeFromCtx(ctx))
			return next(ctx, conn, payload)
		}
	})
	Handle(r, "SEEK", func(_ context.Context, _ Conn, in seekInput) error {
		seeks = append(seeks, in.Seconds)
		return nil
	})
	Handle(r, "ALIVE", func(_ context.Context, _ Conn, _ struct{}) error {
		return nil
	})
	Handle(r, "FAIL", func(_ context.Context, _ Conn, _ struct{}) error {
		return errors.New("boom")
	})

	err := r.ServeConn(context.Background(), conn)
	require.ErrorIs(t, err, io.EOF)

	assert.Equal(t, []float64{12.5}, seeks)
	assert.Equal(t, []string{"SEEK", "ALIVE", "FAIL"}, types)
	require.Len(t, conn.out, 3)
	assert.Equal(t, map[string]string{"error": "unknown message type: NOPE"}, conn.out[0])
	assert.Equal(t, map[string]string{"error": "boom"}, conn.out[2])
}
