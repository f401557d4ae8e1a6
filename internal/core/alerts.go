package core

import (
	"fmt"
	"time"

	"pumphub/internal/telemetry"
)

// criticalLowWaterLevel is the absolute floor below which the tank is
// considered critically empty regardless of the configured pump-on threshold.
const criticalLowWaterLevel = 10.0

// evaluateAlerts runs every rule against one reading and returns the alerts
// that pass their cooldown gate. Rules are independent: one rule firing or
// being under cooldown never suppresses another. Caller holds the state
// mutex; the cooldown timestamp is recorded here, at decision time, so a
// later delivery failure still counts as fired.
func (c *Core) evaluateAlerts(r telemetry.SensorReading, now time.Time) []telemetry.Alert {
	var alerts []telemetry.Alert

	fire := func(kind telemetry.AlertKind, sev telemetry.Severity, msg string) {
		if last, ok := c.cooldowns[kind]; ok && now.Sub(last) <= c.tuning.AlertCooldown {
			return
		}

		c.cooldowns[kind] = now
		alerts = append(alerts, telemetry.Alert{
			Kind:      kind,
			Severity:  sev,
			Message:   msg,
			DeviceID:  r.DeviceID,
			Level:     r.WaterLevel,
			Current:   r.Current,
			Vibration: r.Vibration.RMS,
			PumpOn:    r.PumpOn,
			Timestamp: now,
		})
	}

	if c.hasPrev && !r.PumpOn {
		if drop := c.prevLevel - r.WaterLevel; drop > c.tuning.LeakDropThreshold {
			fire(telemetry.AlertLeakDetection, telemetry.SeverityCritical,
				fmt.Sprintf("possible leak: level dropped %.1f%% with pump off", drop))
		}
	}

	if r.WaterLevel < criticalLowWaterLevel {
		fire(telemetry.AlertLowWaterCritical, telemetry.SeverityCritical,
			fmt.Sprintf("water level critically low: %.1f%%", r.WaterLevel))
	}

	if c.cfg.AutoMode && !r.PumpOn && r.WaterLevel < c.cfg.LowWaterThreshold {
		fire(telemetry.AlertLowWaterPumpFail, telemetry.SeverityWarning,
			fmt.Sprintf("level %.1f%% below pump-on threshold but pump is off", r.WaterLevel))
	}

	if r.Vibration.RMS > c.tuning.VibrationLimit {
		fire(telemetry.AlertHighVibration, telemetry.SeverityWarning,
			fmt.Sprintf("vibration RMS %.2f exceeds limit %.2f", r.Vibration.RMS, c.tuning.VibrationLimit))
	}

	if r.Current > c.tuning.CurrentLimit {
		fire(telemetry.AlertHighCurrent, telemetry.SeverityWarning,
			fmt.Sprintf("current draw %.2fA exceeds limit %.2fA", r.Current, c.tuning.CurrentLimit))
	}

	return alerts
}
