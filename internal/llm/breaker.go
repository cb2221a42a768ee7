package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Brent1981/AIProject/internal/metrics"
)

// BreakerConfig controls when a provider is taken out of rotation.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the
	// breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before letting a
	// probe request through.
	OpenTimeout time.Duration
}

// Breaker wraps a Client with a circuit breaker so a dead provider fails
// fast instead of holding every request for its full timeout.
type Breaker struct {
	name   string
	client Client
	cb     *gobreaker.CircuitBreaker
}

// NewBreaker wraps client. Breaker transitions are logged and exported
// as the axiom_llm_breaker_state gauge.
func NewBreaker(name string, client Client, cfg BreakerConfig, m *metrics.Metrics, logger *slog.Logger) *Breaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &Breaker{name: name, client: client}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		// Context expiry on the caller's side says nothing about the
		// provider's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("model provider breaker state changed",
				"provider", name, "from", from.String(), "to", to.String())
			m.BreakerState(name, int(to))
		},
	})
	return b
}

// Generate runs the wrapped client's Generate through the breaker.
func (b *Breaker) Generate(ctx context.Context, req Request) (string, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.client.Generate(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", &ConnectError{Provider: b.name, URL: "(circuit open)", Err: err}
		}
		return "", err
	}
	return out.(string), nil
}

// Ping bypasses the breaker.
func (b *Breaker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx)
}

// State reports the breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
