package pkgclock

import (
	"sync"
	"time"
)

// Clock supplies timestamps. Implementations must never go backwards.
type Clock interface {
	Now() time.Time
}

// Real reads the system clock.
type Real struct{}

// Now returns time.Now.
func (Real) Now() time.Time {
	return time.Now()
}

// Sequence replays a fixed list of readings, one per Now call, and keeps
// returning the last reading once the list is exhausted. It is safe for
// concurrent use.
type Sequence struct {
	mu       sync.Mutex
	readings []time.Time
	calls    int
}

// NewSequence builds a Sequence from absolute readings.
func NewSequence(readings ...time.Time) *Sequence {
	return &Sequence{readings: readings}
}

// NewSequenceAt builds a Sequence from offsets relative to base.
func NewSequenceAt(base time.Time, offsets ...time.Duration) *Sequence {
	readings := make([]time.Time, len(offsets))
	for i, off := range offsets {
		readings[i] = base.Add(off)
	}
	return NewSequence(readings...)
}

// Now returns the next reading.
func (s *Sequence) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.readings) == 0 {
		return time.Time{}
	}

	idx := s.calls
	if idx >= len(s.readings) {
		idx = len(s.readings) - 1
	}
	s.calls++

	return s.readings[idx]
}

// Calls returns how many times Now has been called.
func (s *Sequence) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Manual is a clock that only moves when told to.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual returns a Manual clock set to start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the current reading.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d. Negative durations are ignored.
func (m *Manual) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}
