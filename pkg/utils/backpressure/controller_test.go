package backpressure

import (
	"context"
	"testing"
	"time"

	"github.com/rzzdr/options-engine/pkg/utils/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilControllerAdmitsEverything(t *testing.T) {
	c := NewController(Config{Name: "none"})
	assert.Nil(t, c)

	release, err := c.Acquire(context.Background())
	require.NoError(t, err)
	release()
	assert.Zero(t, c.InFlight())
}

func TestRejectStrategy(t *testing.T) {
	var rejectedBy string
	c := NewController(Config{
		Name:          "pricing",
		MaxConcurrent: 1,
		Strategy:      Reject,
		OnReject:      func(name string) { rejectedBy = name },
	})

	release, err := c.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.InFlight())

	_, err = c.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrOverloaded)
	assert.True(t, errors.IsType(err, errors.ErrorTypeResourceExhausted))
	assert.Equal(t, int64(1), c.Rejected())
	assert.Equal(t, "pricing", rejectedBy)

	release()
	release() // second call is a no-op
	assert.Zero(t, c.InFlight())

	release, err = c.Acquire(context.Background())
	require.NoError(t, err)
	release()
}

func TestBlockStrategyHonoursContext(t *testing.T) {
	c := NewController(Config{Name: "pricing", MaxConcurrent: 1, Strategy: Block})

	release, err := c.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	done := make(chan struct{})
	go func() {
		r, err := c.Acquire(context.Background())
		if err == nil {
			r()
		}
		close(done)
	}()
	release()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("blocked acquire was not released")
	}
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("Reject")
	require.NoError(t, err)
	assert.Equal(t, Reject, s)

	s, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, Block, s)

	_, err = ParseStrategy("drop")
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument))
}
