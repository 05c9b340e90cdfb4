package party

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sharetube/watchparty/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWriter(t *testing.T) *writer {
	t.Helper()
	cfg := Config{WriteRetryDelay: time.Millisecond}
	cfg.setDefaults()
	w := newWriter(&cfg, slog.Default())
	t.Cleanup(w.stop)

	return w
}

func TestWriterRetries(t *testing.T) {
	w := newTestWriter(t)

	var calls atomic.Int32
	w.enqueue("flaky", func(ctx context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	require.NoError(t, w.flush(context.Background()))

	assert.Equal(t, int32(3), calls.Load())
}

func TestWriterGivesUp(t *testing.T) {
	w := newTestWriter(t)

	var calls, after atomic.Int32
	w.enqueue("broken", func(ctx context.Context) error {
		calls.Add(1)
		return errors.New("connection refused")
	})
	w.enqueue("next", func(ctx context.Context) error {
		after.Add(1)
		return nil
	})
	require.NoError(t, w.flush(context.Background()))

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, int32(1), after.Load())
}

func TestWriterPermanentError(t *testing.T) {
	w := newTestWriter(t)

	var calls atomic.Int32
	w.enqueue("closed", func(ctx context.Context) error {
		calls.Add(1)
		return store.ErrClosed
	})
	require.NoError(t, w.flush(context.Background()))

	assert.Equal(t, int32(1), calls.Load())
}

func TestWriterKeepsOrder(t *testing.T) {
	w := newTestWriter(t)

	var order []int
	for i := 0; i < 10; i++ {
		w.enqueue("ordered", func(ctx context.Context) error {
			order = append(order, i)
			return nil
		})
	}
	require.NoError(t, w.flush(context.Background()))

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestWriterAfterStop(t *testing.T) {
	w := newTestWriter(t)
	w.stop()

	var calls atomic.Int32
	w.enqueue("late", func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})

	assert.Zero(t, calls.Load())
	assert.Error(t, w.flush(context.Background()))
}
