// Package clock supplies the ledger's notion of "now" in unix seconds.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current timestamp. Implementations must be monotonic.
type Clock interface {
	Now() uint64
}

// System reads the wall clock.
type System struct{}

func (System) Now() uint64 { return uint64(time.Now().Unix()) }

// Manual is a clock that only moves when told to.
type Manual struct {
	mu  sync.Mutex
	now uint64
}

func NewManual(start uint64) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to t. Moving backwards is ignored.
func (m *Manual) Set(t uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t > m.now {
		m.now = t
	}
}

// Advance moves the clock forward by d seconds and returns the new time.
func (m *Manual) Advance(d uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += d
	return m.now
}
