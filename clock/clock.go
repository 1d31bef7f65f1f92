// Package clock provides logical clocks used to stamp claims.
package clock

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/poexist/poe/logging"
)

// Source is anything producing logical time.
type Source interface {
	Now() uint64
}

// Height mimics a block height: it stays constant until advanced.
type Height struct {
	height atomic.Uint64
}

func NewHeight(start uint64) *Height {
	h := &Height{}
	h.height.Store(start)
	return h
}

func (h *Height) Now() uint64 {
	return h.height.Load()
}

// Advance moves to the next height and returns it.
func (h *Height) Advance() uint64 {
	return h.height.Add(1)
}

// Run advances the height every interval until ctx is done.
func (h *Height) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("non-positive height interval %v", interval)
	}
	logger := logging.FromContext(ctx).Named("height")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			logger.Debug("height advanced", zap.Uint64("height", h.Advance()))
		}
	}
}

// Counter is a logical clock that ticks on every reading,
// so no two readings are equal.
type Counter struct {
	last atomic.Uint64
}

// NewCounter returns a counter whose first reading is after+1.
func NewCounter(after uint64) *Counter {
	c := &Counter{}
	c.last.Store(after)
	return c
}

func (c *Counter) Now() uint64 {
	return c.last.Add(1)
}

// MonotonicClock never returns a value lower than one it returned before,
// even if its source goes backwards.
type MonotonicClock struct {
	src  Source
	last atomic.Uint64
}

func Monotonic(src Source) *MonotonicClock {
	return MonotonicFrom(src, 0)
}

// MonotonicFrom is like Monotonic but never returns less than floor.
func MonotonicFrom(src Source, floor uint64) *MonotonicClock {
	m := &MonotonicClock{src: src}
	m.last.Store(floor)
	return m
}

func (m *MonotonicClock) Now() uint64 {
	for {
		prev := m.last.Load()
		now := m.src.Now()
		if now < prev {
			now = prev
		}
		if m.last.CompareAndSwap(prev, now) {
			return now
		}
	}
}
