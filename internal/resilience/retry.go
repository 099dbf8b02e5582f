package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Backoff configures retries with exponential delay and jitter.
type Backoff struct {
	// Attempts is the total number of tries including the first. Default 3.
	Attempts int `yaml:"attempts" mapstructure:"attempts"`
	// Initial is the delay before the first retry. Default 500ms.
	Initial time.Duration `yaml:"initial" mapstructure:"initial"`
	// Max caps any single delay. Default 10s.
	Max time.Duration `yaml:"max" mapstructure:"max"`
	// Jitter is the +/- fraction applied to each delay. Default 0.25.
	Jitter float64 `yaml:"jitter" mapstructure:"jitter"`
}

// DefaultBackoff is used by upstream clients that do not configure one.
func DefaultBackoff() Backoff {
	return Backoff{Attempts: 3, Initial: 500 * time.Millisecond, Max: 10 * time.Second, Jitter: 0.25}
}

func (b Backoff) withDefaults() Backoff {
	d := DefaultBackoff()
	if b.Attempts <= 0 {
		b.Attempts = d.Attempts
	}
	if b.Initial <= 0 {
		b.Initial = d.Initial
	}
	if b.Max <= 0 {
		b.Max = d.Max
	}
	if b.Jitter < 0 {
		b.Jitter = 0
	}
	return b
}

// delay returns the sleep before retry number attempt (0-based).
func (b Backoff) delay(attempt int) time.Duration {
	d := float64(b.Initial) * math.Pow(2, float64(attempt))
	if d > float64(b.Max) {
		d = float64(b.Max)
	}
	if b.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * b.Jitter
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// Retry runs fn until it succeeds, returns a non-transient error, runs out
// of attempts, or ctx is done. The last error is returned.
func Retry[T any](ctx context.Context, b Backoff, service string, fn func(context.Context) (T, error)) (T, error) {
	b = b.withDefaults()

	var zero T
	var err error
	for attempt := 0; attempt < b.Attempts; attempt++ {
		var v T
		v, err = fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !IsTransient(err) || attempt == b.Attempts-1 {
			break
		}

		wait := b.delay(attempt)
		zap.L().Warn("retrying upstream call",
			zap.String("service", service),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
	return zero, err
}
