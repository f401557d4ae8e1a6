package core

import "pumphub/internal/telemetry"

// autoControl applies the threshold policy to one reading. Pure decision
// logic, caller holds the state mutex. The low/high pair is the only
// hysteresis; rapid level swings between the thresholds re-issuing commands
// is accepted policy.
func (c *Core) autoControl(r telemetry.SensorReading) (telemetry.PumpCommand, bool) {
	if !c.cfg.AutoMode {
		return telemetry.PumpCommand{}, false
	}

	switch {
	case r.WaterLevel <= c.cfg.LowWaterThreshold && !r.PumpOn:
		return telemetry.PumpCommand{
			Action:   telemetry.ActionOn,
			Source:   telemetry.SourceAuto,
			DeviceID: r.DeviceID,
		}, true

	case r.WaterLevel >= c.cfg.HighWaterThreshold && r.PumpOn:
		return telemetry.PumpCommand{
			Action:   telemetry.ActionOff,
			Source:   telemetry.SourceAuto,
			DeviceID: r.DeviceID,
		}, true
	}

	return telemetry.PumpCommand{}, false
}
