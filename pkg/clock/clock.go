// Package clock provides the monotonic millisecond time source used
// throughout the balancer and control loop. It wraps benbjohnson/clock so
// that tests can drive intervals deterministically with a mock clock
// instead of sleeping in real time.
package clock

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Clock is the monotonic time source consumed by the balancer runner and
// the control loop. Zero is a valid sentinel meaning "not yet observed".
type Clock interface {
	NowMS() uint64
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	NewTicker(d time.Duration) *clock.Ticker
	Sleep(d time.Duration)
}

type realClock struct {
	clock.Clock
	epoch time.Time
}

// New returns a Clock backed by the real wall/monotonic clock.
func New() Clock {
	return &realClock{Clock: clock.New(), epoch: time.Now()}
}

func (c *realClock) NowMS() uint64 {
	return uint64(c.Now().Sub(c.epoch).Milliseconds())
}

func (c *realClock) NewTicker(d time.Duration) *clock.Ticker {
	return c.Clock.Ticker(d)
}

// NewMock returns a Clock whose time only advances when explicitly told to,
// for deterministic tests of rate-limited decisions (incr/decr intervals,
// stall detection, ACK timeout).
func NewMock() *Mock {
	m := clock.NewMock()
	return &Mock{Mock: m, epoch: m.Now()}
}

// Mock is a test double: advancing it deterministically moves NowMS.
type Mock struct {
	*clock.Mock
	epoch time.Time
}

func (m *Mock) NowMS() uint64 {
	return uint64(m.Now().Sub(m.epoch).Milliseconds())
}

func (m *Mock) NewTicker(d time.Duration) *clock.Ticker {
	return m.Mock.Ticker(d)
}
