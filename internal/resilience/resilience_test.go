package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastBackoff = Backoff{Attempts: 3, Initial: time.Millisecond, Max: 2 * time.Millisecond}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", NewTransientError(errors.New("busy"), 503), true},
		{"wrapped", fmt.Errorf("call: %w", NewTransientError(errors.New("slow down"), 429)), true},
		{"conn reset", fmt.Errorf("write: %w", syscall.ECONNRESET), true},
		{"conn refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"string match", errors.New("read tcp: i/o timeout"), true},
		{"plain", errors.New("bad request"), false},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestStatusError(t *testing.T) {
	err := StatusError("gemini", http.StatusServiceUnavailable, []byte("overloaded"))
	assert.True(t, IsTransient(err))
	assert.Contains(t, err.Error(), "503")

	err = StatusError("gemini", http.StatusBadRequest, []byte(" bad key "))
	assert.False(t, IsTransient(err))
	assert.Contains(t, err.Error(), "bad key")
}

func TestRetry_SucceedsAfterTransient(t *testing.T) {
	calls := 0
	v, err := Retry(context.Background(), fastBackoff, "test", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(errors.New("busy"), 503)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnPermanent(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastBackoff, "test", func(context.Context) (int, error) {
		calls++
		return 0, errors.New("invalid")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastBackoff, "test", func(context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("busy"), 500)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Retry(ctx, Backoff{Attempts: 5, Initial: time.Hour}, "test", func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewTransientError(errors.New("busy"), 500)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoff_DelayCapped(t *testing.T) {
	b := Backoff{Initial: time.Second, Max: 3 * time.Second}.withDefaults()
	b.Jitter = 0
	assert.Equal(t, time.Second, b.delay(0))
	assert.Equal(t, 2*time.Second, b.delay(1))
	assert.Equal(t, 3*time.Second, b.delay(5))
}

func TestBreaker_OpensAndRecovers(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker("gen", BreakerConfig{Threshold: 2, ResetAfter: time.Minute})
	b.now = func() time.Time { return now }
	p := &Policy{Service: "gen", Backoff: Backoff{Attempts: 1}, Breaker: b}

	fail := func(context.Context) (int, error) { return 0, NewTransientError(errors.New("down"), 502) }
	for i := 0; i < 2; i++ {
		_, err := Call(context.Background(), p, fail)
		require.Error(t, err)
	}
	assert.Equal(t, Open, b.State())

	called := false
	_, err := Call(context.Background(), p, func(context.Context) (int, error) {
		called = true
		return 1, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, HalfOpen, b.State())
	v, err := Call(context.Background(), p, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker("gen", BreakerConfig{Threshold: 1, ResetAfter: time.Second})
	b.now = func() time.Time { return now }
	p := &Policy{Service: "gen", Backoff: Backoff{Attempts: 1}, Breaker: b}
	fail := func(context.Context) (int, error) { return 0, NewTransientError(errors.New("down"), 503) }

	_, _ = Call(context.Background(), p, fail)
	require.Equal(t, Open, b.State())

	now = now.Add(2 * time.Second)
	_, _ = Call(context.Background(), p, fail)
	assert.Equal(t, Open, b.State())
}

func TestBreaker_PermanentErrorsDoNotTrip(t *testing.T) {
	p := NewPolicy("gen", Backoff{Attempts: 1}, BreakerConfig{Threshold: 1})
	for i := 0; i < 3; i++ {
		_, _ = Call(context.Background(), p, func(context.Context) (int, error) { return 0, errors.New("bad input") })
	}
	assert.Equal(t, Closed, p.Breaker.State())
}

func TestCall_NilPolicy(t *testing.T) {
	v, err := Call(context.Background(), nil, func(context.Context) (string, error) { return "x", nil })
	require.NoError(t, err)
	assert.Equal(t, "x", v)
}
