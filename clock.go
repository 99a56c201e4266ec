package gatekit

import (
	"sync/atomic"
	"time"
)

// Clock is the wall-clock source the rate limiter consumes. It must be
// monotonic with respect to the accesses it timestamps.
type Clock interface {
	Now() time.Time
}

// BlockSource is the monotonic block-height source the rate limiter
// consumes.
type BlockSource interface {
	Height() int64
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is a Clock backed by time.Now.
var SystemClock Clock = systemClock{}

// IntervalBlockSource derives a monotonic block height from elapsed wall
// time since a genesis instant, one block per interval. It needs no
// background goroutine; the height is computed on read.
type IntervalBlockSource struct {
	genesis  time.Time
	interval time.Duration
	clock    Clock
}

// NewIntervalBlockSource creates an IntervalBlockSource. The interval must
// be positive.
func NewIntervalBlockSource(genesis time.Time, interval time.Duration) *IntervalBlockSource {
	if interval <= 0 {
		interval = time.Second
	}
	return &IntervalBlockSource{genesis: genesis, interval: interval, clock: SystemClock}
}

// WithClock substitutes the wall clock, for deterministic tests.
func (s *IntervalBlockSource) WithClock(clock Clock) *IntervalBlockSource {
	s.clock = clock
	return s
}

// Height returns the current block height. Heights before genesis clamp
// to zero.
func (s *IntervalBlockSource) Height() int64 {
	elapsed := s.clock.Now().Sub(s.genesis)
	if elapsed < 0 {
		return 0
	}
	return int64(elapsed / s.interval)
}

// CounterBlockSource is a BlockSource advanced explicitly by the embedding
// environment, for hosts that already own a block or sequence counter.
type CounterBlockSource struct {
	height atomic.Int64
}

// NewCounterBlockSource creates a CounterBlockSource starting at the given
// height.
func NewCounterBlockSource(start int64) *CounterBlockSource {
	s := &CounterBlockSource{}
	s.height.Store(start)
	return s
}

// Advance moves the height forward by n blocks and returns the new height.
func (s *CounterBlockSource) Advance(n int64) int64 {
	return s.height.Add(n)
}

// Height returns the current block height.
func (s *CounterBlockSource) Height() int64 {
	return s.height.Load()
}
