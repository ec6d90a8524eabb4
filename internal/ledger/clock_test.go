package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualClock(t *testing.T) {
	c := NewManualClock(10)
	assert.Equal(t, uint64(10), c.Slot())
	assert.Equal(t, uint64(15), c.Advance(5))

	c.Set(12)
	assert.Equal(t, uint64(15), c.Slot(), "clock must not move backwards")

	c.Set(20)
	assert.Equal(t, uint64(20), c.Slot())
}

func TestFollowClock(t *testing.T) {
	c := NewFollowClock(0)
	slots := make(chan uint64, 4)
	slots <- 100
	slots <- 99
	slots <- 101
	close(slots)

	require.NoError(t, c.Follow(context.Background(), slots))
	assert.Equal(t, uint64(101), c.Slot())
}

func TestTickerClock(t *testing.T) {
	c := NewTickerClock(1, 5*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	err := c.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, c.Slot(), uint64(1))
}
