package core

import (
	"time"

	"pumphub/internal/telemetry"
)

// StatusReport composes the read-only status projection. When no reading has
// ever arrived it reports the offline state instead of failing; it never
// mutates core state.
func (c *Core) StatusReport() telemetry.StatusReport {
	c.mu.Lock()
	r := c.lastReading
	hasReading := c.hasReading
	cfg := c.cfg
	mean := c.history.Mean()
	c.mu.Unlock()

	if !hasReading {
		return telemetry.StatusReport{
			Offline:   true,
			Connected: c.commander.Connected(),
			Mode:      modeLabel(cfg.AutoMode),
		}
	}

	return telemetry.StatusReport{
		Offline:       false,
		Connected:     c.commander.Connected(),
		StoreDegraded: c.sink.Degraded(),
		DeviceID:      r.DeviceID,
		WaterLevel:    r.WaterLevel,
		Temperature:   r.Temperature,
		Current:       r.Current,
		FlowRate:      r.FlowRate,
		PumpOn:        r.PumpOn,
		VibrationRMS:  r.Vibration.RMS,
		Efficiency:    mean,
		Mode:          modeLabel(cfg.AutoMode),
		UptimeMinutes: r.UptimeSeconds / 60,
		UptimeSeconds: r.UptimeSeconds % 60,
		FreeHeapKB:    r.FreeHeapBytes / 1024,
		RSSI:          r.RSSI,
		Timestamp:     r.Timestamp,
		LocalTime:     r.Timestamp.Local().Format(time.DateTime),
	}
}

func modeLabel(auto bool) string {
	if auto {
		return "automatic"
	}

	return "manual"
}
