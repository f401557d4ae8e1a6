package store

import (
	"sync"
	"time"

	"pumphub/internal/telemetry"
)

// RingBuffer retains the most recent readings in memory with FIFO eviction.
// It backs the sink's degraded mode and the latest-reading projection, so it
// is populated on every write regardless of the durable path's health.
type RingBuffer struct {
	mu       sync.RWMutex
	buf      []telemetry.SensorReading
	capacity int
}

// NewRingBuffer creates a buffer holding at most capacity readings.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1
	}

	return &RingBuffer{
		buf:      make([]telemetry.SensorReading, 0, capacity),
		capacity: capacity,
	}
}

// Push appends r, evicting the oldest reading on overflow.
func (b *RingBuffer) Push(r telemetry.SensorReading) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.buf) >= b.capacity {
		b.buf = b.buf[1:]
	}

	b.buf = append(b.buf, r)
}

// Latest returns the most recently pushed reading.
func (b *RingBuffer) Latest() (telemetry.SensorReading, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.buf) == 0 {
		return telemetry.SensorReading{}, false
	}

	return b.buf[len(b.buf)-1], true
}

// Since returns a copy of all retained readings captured at or after t,
// oldest first.
func (b *RingBuffer) Since(t time.Time) []telemetry.SensorReading {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []telemetry.SensorReading

	for _, r := range b.buf {
		if !r.Timestamp.Before(t) {
			result = append(result, r)
		}
	}

	return result
}

// Len returns the number of retained readings.
func (b *RingBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.buf)
}
