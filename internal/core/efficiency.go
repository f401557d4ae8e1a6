package core

import (
	"math"

	"pumphub/internal/telemetry"
)

// Nominal electrical constants for the monitored pump.
const (
	idealPowerWatts = 180.0
	lineVoltage     = 220.0
	idleCurrentAmps = 0.1
	nominalTempC    = 27.5
	tempLowBound    = 15.0
	tempHighBound   = 40.0
)

// instantEfficiency scores one reading in [0, 100]. An idle pump scores a
// flat 100: with no load there is nothing to misjudge.
func instantEfficiency(r telemetry.SensorReading) float64 {
	if !r.PumpOn || r.Current <= idleCurrentAmps {
		return 100.0
	}

	eff := idealPowerWatts / (r.Current * lineVoltage) * 100.0

	if r.Vibration.RMS > 1.0 {
		eff -= (r.Vibration.RMS - 1.0) * 10.0
	}

	if r.Temperature < tempLowBound || r.Temperature > tempHighBound {
		eff -= math.Abs(r.Temperature-nominalTempC) * 0.5
	}

	return math.Min(100.0, math.Max(0.0, eff))
}

// updateEfficiency appends the instantaneous score to the bounded history and
// returns the running mean, smoothing out single-sample sensor noise.
// Caller holds the state mutex.
func (c *Core) updateEfficiency(r telemetry.SensorReading) float64 {
	c.history.Push(instantEfficiency(r))

	return c.history.Mean()
}

// efficiencyHistory is a bounded FIFO of recent efficiency scores.
type efficiencyHistory struct {
	values   []float64
	capacity int
}

func newEfficiencyHistory(capacity int) *efficiencyHistory {
	return &efficiencyHistory{
		values:   make([]float64, 0, capacity),
		capacity: capacity,
	}
}

// Push appends v, evicting the oldest entry on overflow.
func (h *efficiencyHistory) Push(v float64) {
	if len(h.values) >= h.capacity {
		h.values = h.values[1:]
	}

	h.values = append(h.values, v)
}

// Mean returns the arithmetic mean of the current window, or 0 when empty.
func (h *efficiencyHistory) Mean() float64 {
	if len(h.values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range h.values {
		sum += v
	}

	return sum / float64(len(h.values))
}

// Len returns the number of retained samples.
func (h *efficiencyHistory) Len() int {
	return len(h.values)
}
