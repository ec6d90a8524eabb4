package ledger

import (
	"context"
	"sync/atomic"
	"time"
)

// Clock supplies the current slot. Implementations must be monotonic.
type Clock interface {
	Slot() uint64
}

// ManualClock is advanced explicitly. Used by tests and offline simulations.
type ManualClock struct {
	slot atomic.Uint64
}

// NewManualClock returns a clock starting at slot.
func NewManualClock(slot uint64) *ManualClock {
	c := &ManualClock{}
	c.slot.Store(slot)
	return c
}

// Slot returns the current slot.
func (c *ManualClock) Slot() uint64 { return c.slot.Load() }

// Advance moves the clock forward by n slots and returns the new slot.
func (c *ManualClock) Advance(n uint64) uint64 { return c.slot.Add(n) }

// Set moves the clock to slot. Moving backwards is ignored.
func (c *ManualClock) Set(slot uint64) {
	for {
		cur := c.slot.Load()
		if slot <= cur || c.slot.CompareAndSwap(cur, slot) {
			return
		}
	}
}

// TickerClock advances one slot per interval while Run is active.
type TickerClock struct {
	ManualClock
	interval time.Duration
}

// NewTickerClock returns a clock starting at slot that ticks every interval.
func NewTickerClock(slot uint64, interval time.Duration) *TickerClock {
	c := &TickerClock{interval: interval}
	c.slot.Store(slot)
	return c
}

// Run ticks until ctx is cancelled.
func (c *TickerClock) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Advance(1)
		}
	}
}

// FollowClock tracks slots observed from an external source, such as a
// cluster's slot subscription. Regressions are ignored.
type FollowClock struct {
	ManualClock
}

// NewFollowClock returns a clock starting at slot.
func NewFollowClock(slot uint64) *FollowClock {
	c := &FollowClock{}
	c.slot.Store(slot)
	return c
}

// Observe records a slot notification.
func (c *FollowClock) Observe(slot uint64) { c.Set(slot) }

// Follow consumes slots until the channel closes or ctx is cancelled.
func (c *FollowClock) Follow(ctx context.Context, slots <-chan uint64) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case slot, ok := <-slots:
			if !ok {
				return nil
			}
			c.Observe(slot)
		}
	}
}
