package party

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sharetube/watchparty/internal/loop"
	"github.com/sharetube/watchparty/internal/metrics"
	partyrepo "github.com/sharetube/watchparty/internal/repository/party"
	"github.com/sharetube/watchparty/internal/store"
	"github.com/sony/gobreaker/v2"
)

const writerBreakerName = "party-writer"

// writer applies remote operations one at a time in the order they were
// enqueued. Failures are retried, then logged and counted.
type writer struct {
	queue      *loop.Loop
	cb         *gobreaker.CircuitBreaker[struct{}]
	attempts   int
	retryDelay time.Duration
	timeout    time.Duration
	logger     *slog.Logger
}

func newWriter(cfg *Config, logger *slog.Logger) *writer {
	metrics.CircuitBreakerState.WithLabelValues(writerBreakerName).Set(float64(gobreaker.StateClosed))

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        writerBreakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isPermanent(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	return &writer{
		queue:      loop.New(),
		cb:         cb,
		attempts:   cfg.WriteAttempts,
		retryDelay: cfg.WriteRetryDelay,
		timeout:    cfg.WriteTimeout,
		logger:     logger,
	}
}

// isPermanent reports errors that retrying cannot fix.
func isPermanent(err error) bool {
	return errors.Is(err, store.ErrClosed) ||
		errors.Is(err, store.ErrInvalidPath) ||
		errors.Is(err, partyrepo.ErrInvalidParty) ||
		errors.Is(err, partyrepo.ErrPartyNotFound) ||
		errors.Is(err, partyrepo.ErrEmptyUpdate)
}

func (w *writer) enqueue(op string, fn func(ctx context.Context) error) {
	w.submit(op, fn, nil)
}

// submit queues fn like enqueue. onFailure runs on the writer goroutine when
// fn is given up on or dropped.
func (w *writer) submit(op string, fn func(ctx context.Context) error, onFailure func(error)) {
	if !w.queue.Post(func() {
		if err := w.execute(op, fn); err != nil && onFailure != nil {
			onFailure(err)
		}
	}) {
		metrics.RemoteWrites.WithLabelValues(op, "dropped").Inc()
		w.logger.Warn("writer stopped, dropping remote operation", "op", op)
		if onFailure != nil {
			onFailure(loop.ErrStopped)
		}
	}
}

func (w *writer) execute(op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= w.attempts; attempt++ {
		_, err = w.cb.Execute(func() (struct{}, error) {
			ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
			defer cancel()
			return struct{}{}, fn(ctx)
		})
		if err == nil {
			metrics.RemoteWrites.WithLabelValues(op, "success").Inc()
			return nil
		}

		if isPermanent(err) || errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}

		w.logger.Debug("remote operation failed", "op", op, "attempt", attempt, "error", err)
		if attempt < w.attempts {
			time.Sleep(w.retryDelay)
		}
	}

	metrics.RemoteWrites.WithLabelValues(op, "error").Inc()
	w.logger.Error("failed to apply remote operation", "op", op, "error", err)
	return err
}

// flush waits until everything enqueued so far has been applied.
func (w *writer) flush(ctx context.Context) error {
	return w.queue.Do(ctx, func() {})
}

func (w *writer) stop() {
	w.queue.Stop()
}
