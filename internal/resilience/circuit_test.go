package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})
	fail := func(ctx context.Context) error { return eris.New("down") }

	_ = cb.Execute(context.Background(), fail)
	assert.Equal(t, CircuitClosed, cb.State())

	_ = cb.Execute(context.Background(), fail)
	assert.Equal(t, CircuitOpen, cb.State())

	err := cb.Execute(context.Background(), fail)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Second})
	cb.nowFunc = func() time.Time { return now }

	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return eris.New("down") })
	require.Equal(t, CircuitOpen, cb.State())

	// Before the reset timeout: still rejecting.
	err := cb.Execute(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)

	// After the reset timeout: one probe allowed, success closes the circuit.
	now = now.Add(11 * time.Second)
	err = cb.Execute(context.Background(), func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Second})
	cb.nowFunc = func() time.Time { return now }

	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return eris.New("down") })
	now = now.Add(11 * time.Second)

	err := cb.Execute(context.Background(), func(ctx context.Context) error { return eris.New("still down") })
	require.Error(t, err)
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestExecuteVal(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})

	val, err := ExecuteVal(context.Background(), cb, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, val)

	_, err = ExecuteVal(context.Background(), cb, func(ctx context.Context) (int, error) {
		return 0, eris.New("down")
	})
	require.Error(t, err)

	_, err = ExecuteVal(context.Background(), cb, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return eris.New("down") })
	assert.Equal(t, []string{"closed->open"}, transitions)
}
