package completion

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the provider's breaker is open.
var ErrCircuitOpen = errors.New("completion provider circuit open")

// BreakerSettings configures WithBreaker.
type BreakerSettings struct {
	// MaxFailures consecutive failures open the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before a probe.
	OpenTimeout time.Duration
}

// Breaker stops calling a provider after repeated consecutive failures.
type Breaker struct {
	inner Client
	cb    *gobreaker.CircuitBreaker
}

// WithBreaker wraps c with a circuit breaker.
func WithBreaker(c Client, s BreakerSettings, logger *slog.Logger) *Breaker {
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    c.Name(),
		Timeout: s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Completion circuit breaker state change",
				"provider", name, "from", from.String(), "to", to.String())
		},
	})
	return &Breaker{inner: c, cb: cb}
}

func (b *Breaker) Name() string { return b.inner.Name() }

func (b *Breaker) Complete(ctx context.Context, req Request) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Complete(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", ErrCircuitOpen
	}
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// State reports the breaker state, for diagnostics.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
