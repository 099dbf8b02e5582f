package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// State is a circuit breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return "unknown"
}

// ErrCircuitOpen is returned without calling upstream while a breaker is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// BreakerConfig controls when a breaker opens and how long it stays open.
type BreakerConfig struct {
	Threshold  int           `yaml:"threshold" mapstructure:"threshold"`
	ResetAfter time.Duration `yaml:"reset_after" mapstructure:"reset_after"`
}

// Breaker opens after Threshold consecutive transient failures and lets a
// single probe through once ResetAfter has elapsed.
type Breaker struct {
	name string
	cfg  BreakerConfig

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool

	now func() time.Time
}

// NewBreaker returns a closed breaker for the named service.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.ResetAfter <= 0 {
		cfg.ResetAfter = 30 * time.Second
	}
	return &Breaker{name: name, cfg: cfg, now: time.Now}
}

// State returns the current state, reporting HalfOpen once the reset window
// has passed even if no probe has run yet.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.now().Sub(b.openedAt) >= b.cfg.ResetAfter {
		return HalfOpen
	}
	return b.state
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.cfg.ResetAfter {
			return eris.Wrap(ErrCircuitOpen, b.name)
		}
		b.setState(HalfOpen)
		b.probing = true
		return nil
	case HalfOpen:
		if b.probing {
			return eris.Wrap(ErrCircuitOpen, b.name)
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false

	if !IsTransient(err) {
		b.failures = 0
		if b.state != Closed {
			b.setState(Closed)
		}
		return
	}

	b.failures++
	if b.state == HalfOpen || b.failures >= b.cfg.Threshold {
		b.openedAt = b.now()
		if b.state != Open {
			b.setState(Open)
		}
	}
}

func (b *Breaker) setState(to State) {
	zap.L().Info("circuit breaker state change",
		zap.String("service", b.name),
		zap.Stringer("from", b.state),
		zap.Stringer("to", to),
	)
	b.state = to
}

// Policy is the retry and breaker pair applied to one upstream service.
type Policy struct {
	Service string
	Backoff Backoff
	Breaker *Breaker
}

// NewPolicy builds a Policy with its own breaker.
func NewPolicy(service string, backoff Backoff, breaker BreakerConfig) *Policy {
	return &Policy{Service: service, Backoff: backoff, Breaker: NewBreaker(service, breaker)}
}

// Call runs fn under p. Each attempt passes through the breaker, so an
// opening breaker stops the remaining retries. A nil policy calls fn once.
func Call[T any](ctx context.Context, p *Policy, fn func(context.Context) (T, error)) (T, error) {
	if p == nil {
		return fn(ctx)
	}
	return Retry(ctx, p.Backoff, p.Service, func(ctx context.Context) (T, error) {
		if p.Breaker == nil {
			return fn(ctx)
		}
		if err := p.Breaker.allow(); err != nil {
			var zero T
			return zero, err
		}
		v, err := fn(ctx)
		p.Breaker.record(err)
		return v, err
	})
}
