package circuit

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/rzzdr/options-engine/pkg/utils/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerTripsAfterFailureRatio(t *testing.T) {
	var transitions []State
	cb := NewCircuitBreaker("test", Config{
		MinRequests:  3,
		FailureRatio: 0.5,
		Timeout:      time.Hour,
		OnStateChange: func(_ string, _, to State) {
			transitions = append(transitions, to)
		},
	})

	boom := stderrors.New("upstream down")
	for i := 0; i < 3; i++ {
		_, err := cb.Execute(func() (interface{}, error) { return nil, boom })
		assert.ErrorIs(t, err, boom)
	}

	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, []State{StateOpen}, transitions)

	called := false
	_, err := cb.Execute(func() (interface{}, error) {
		called = true
		return nil, nil
	})
	assert.False(t, called)
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
	assert.True(t, errors.IsType(err, errors.ErrorTypeResourceExhausted))
}

func TestDoKeepsResultType(t *testing.T) {
	cb := NewCircuitBreaker("typed", DefaultConfig())

	n, err := Do(context.Background(), cb, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, n)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, "typed", cb.Name())
}

func TestExecuteWithCanceledContext(t *testing.T) {
	cb := NewCircuitBreaker("ctx", DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, cb, func(ctx context.Context) (string, error) {
		t.Fatal("must not run")
		return "", nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsSuccessfulIgnoresErrors(t *testing.T) {
	notFound := errors.NotFound("symbol")
	cb := NewCircuitBreaker("lenient", Config{
		MinRequests:  1,
		FailureRatio: 0.1,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.IsType(err, errors.ErrorTypeNotFound)
		},
	})

	for i := 0; i < 5; i++ {
		_, err := cb.Execute(func() (interface{}, error) { return nil, notFound })
		assert.Error(t, err)
	}
	assert.Equal(t, StateClosed, cb.State())
}
