package store

import (
	"testing"
	"time"

	"pumphub/internal/telemetry"
)

func readingAt(ts time.Time, level float64) telemetry.SensorReading {
	return telemetry.SensorReading{
		DeviceID:   "pump-01",
		Timestamp:  ts,
		WaterLevel: level,
	}
}

func TestRingBufferEviction(t *testing.T) {
	t.Parallel()

	b := NewRingBuffer(3)
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		b.Push(readingAt(base.Add(time.Duration(i)*time.Minute), float64(i)))
	}

	if got := b.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}

	latest, ok := b.Latest()
	if !ok {
		t.Fatal("Latest() empty after pushes")
	}

	if latest.WaterLevel != 4 {
		t.Errorf("Latest().WaterLevel = %v, want 4", latest.WaterLevel)
	}

	// Oldest two evicted; everything retained is >= base+2m.
	all := b.Since(base)
	if len(all) != 3 || all[0].WaterLevel != 2 {
		t.Errorf("Since(base) = %v readings starting at level %v, want 3 starting at 2",
			len(all), all[0].WaterLevel)
	}
}

func TestRingBufferLatestEmpty(t *testing.T) {
	t.Parallel()

	b := NewRingBuffer(3)

	if _, ok := b.Latest(); ok {
		t.Error("Latest() on empty buffer reported ok")
	}
}

func TestRingBufferSince(t *testing.T) {
	t.Parallel()

	b := NewRingBuffer(10)
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		b.Push(readingAt(base.Add(time.Duration(i)*time.Minute), float64(i)))
	}

	tests := []struct {
		name  string
		since time.Time
		want  int
	}{
		{name: "window covers everything", since: base, want: 5},
		{name: "cutoff is inclusive", since: base.Add(2 * time.Minute), want: 3},
		{name: "window past the newest reading", since: base.Add(time.Hour), want: 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := b.Since(tt.since)
			if len(got) != tt.want {
				t.Errorf("Since() returned %d readings, want %d", len(got), tt.want)
			}

			// Oldest first.
			for i := 1; i < len(got); i++ {
				if got[i].Timestamp.Before(got[i-1].Timestamp) {
					t.Errorf("Since() out of order at index %d", i)
				}
			}
		})
	}
}

func TestRingBufferMinimumCapacity(t *testing.T) {
	t.Parallel()

	b := NewRingBuffer(0)
	b.Push(readingAt(time.Now(), 42))
	b.Push(readingAt(time.Now(), 43))

	if got := b.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1 for clamped capacity", got)
	}
}
