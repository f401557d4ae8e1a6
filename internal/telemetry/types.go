// Package telemetry defines the data model shared by the ingress adapter,
// orchestration core, sinks and gateways: sensor readings, alerts, pump
// commands and the fan-out event envelope.
package telemetry

import "time"

// Vibration holds one tri-axial vibration sample plus its derived RMS magnitude.
type Vibration struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Z   float64 `json:"z"`
	RMS float64 `json:"rms"`
}

// SensorReading is one normalized telemetry event from the pump device.
// Efficiency is absent on the wire; the orchestration core attaches it.
// A reading is immutable once constructed.
type SensorReading struct {
	// DeviceID is the identifier of the reporting device
	DeviceID string `json:"device"`
	// Timestamp is when the device captured the sample
	Timestamp time.Time `json:"timestamp"`
	// WaterLevel is the tank fill level in percent
	WaterLevel float64 `json:"level"`
	// Temperature in degrees Celsius
	Temperature float64 `json:"temperature"`
	// Current is the pump motor current draw in amperes
	Current float64 `json:"current"`
	// FlowRate in liters per minute
	FlowRate float64 `json:"flowRate"`
	// PumpOn reports whether the device sees the pump running
	PumpOn bool `json:"pump"`
	// Vibration is the tri-axial accelerometer sample
	Vibration Vibration `json:"vibration"`
	// UptimeSeconds is the device uptime
	UptimeSeconds int64 `json:"runtime"`
	// FreeHeapBytes is the device free memory
	FreeHeapBytes int64 `json:"heap"`
	// RSSI is the radio signal strength in dBm
	RSSI int `json:"rssi"`
	// Efficiency is the moving-average efficiency score, attached by the core
	Efficiency float64 `json:"efficiency"`
}

// PumpAction is a control action for the pump or its operating mode.
type PumpAction string

const (
	ActionOn     PumpAction = "on"
	ActionOff    PumpAction = "off"
	ActionAuto   PumpAction = "auto"
	ActionManual PumpAction = "manual"
)

// Valid reports whether a is one of the known actions.
func (a PumpAction) Valid() bool {
	switch a {
	case ActionOn, ActionOff, ActionAuto, ActionManual:
		return true
	}

	return false
}

// Token returns the plain-text command token published to the device.
func (a PumpAction) Token() string {
	switch a {
	case ActionOn:
		return "ON"
	case ActionOff:
		return "OFF"
	case ActionAuto:
		return "AUTO"
	case ActionManual:
		return "MANUAL"
	}

	return ""
}

// CommandSource attributes who issued a pump command.
type CommandSource string

const (
	SourceAuto   CommandSource = "auto"
	SourceManual CommandSource = "manual"
	SourceRemote CommandSource = "remote"
)

// PumpCommand is a transient control command headed for the device.
type PumpCommand struct {
	Action   PumpAction    `json:"action"`
	Source   CommandSource `json:"source"`
	DeviceID string        `json:"device"`
}

// Severity classifies alerts.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AlertKind is the stable cooldown key of an alert rule.
type AlertKind string

const (
	AlertLeakDetection    AlertKind = "leak_detection"
	AlertLowWaterCritical AlertKind = "low_water_critical"
	AlertLowWaterPumpFail AlertKind = "low_water_pump_fail"
	AlertHighVibration    AlertKind = "high_vibration"
	AlertHighCurrent      AlertKind = "high_current"
)

// Alert is a transient alert dispatched to the notification channel and the
// fan-out gateway; the hub keeps no alert history of its own.
type Alert struct {
	Kind      AlertKind `json:"kind"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	DeviceID  string    `json:"device"`
	Level     float64   `json:"level"`
	Current   float64   `json:"current"`
	Vibration float64   `json:"vibration"`
	PumpOn    bool      `json:"pump"`
	Timestamp time.Time `json:"timestamp"`
}

// EventType enumerates fan-out broadcast envelope kinds.
type EventType string

const (
	EventSensorData   EventType = "sensorData"
	EventPumpStatus   EventType = "pumpStatus"
	EventSystemAlert  EventType = "systemAlert"
	EventSystemConfig EventType = "systemConfig"
	EventPing         EventType = "ping"
)

// Event is the broadcast envelope delivered to dashboard subscribers.
type Event struct {
	Type      EventType `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent stamps an envelope with the current time.
func NewEvent(t EventType, data any) Event {
	return Event{Type: t, Data: data, Timestamp: time.Now()}
}

// OperatingConfig is a snapshot of the mutable process-wide control state.
type OperatingConfig struct {
	// AutoMode reports whether threshold-based pump control is active
	AutoMode bool `json:"autoMode"`
	// LowWaterThreshold is the pump-on level in percent
	LowWaterThreshold float64 `json:"lowThreshold"`
	// HighWaterThreshold is the pump-off level in percent
	HighWaterThreshold float64 `json:"highThreshold"`
	// LastCommandSource attributes the most recent pump command
	LastCommandSource CommandSource `json:"lastCommandSource,omitempty"`
}

// CommandResult reports remote-command handling back to the originator.
type CommandResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// StatusReport is the read-only status projection served to the chat bot and
// the HTTP API. Offline is true when no reading has ever been received.
type StatusReport struct {
	Offline       bool      `json:"offline"`
	Connected     bool      `json:"connected"`
	StoreDegraded bool      `json:"storeDegraded"`
	DeviceID      string    `json:"device,omitempty"`
	WaterLevel    float64   `json:"level"`
	Temperature   float64   `json:"temperature"`
	Current       float64   `json:"current"`
	FlowRate      float64   `json:"flowRate"`
	PumpOn        bool      `json:"pump"`
	VibrationRMS  float64   `json:"vibrationRMS"`
	Efficiency    float64   `json:"efficiency"`
	Mode          string    `json:"mode"`
	UptimeMinutes int64     `json:"uptimeMinutes"`
	UptimeSeconds int64     `json:"uptimeSeconds"`
	FreeHeapKB    int64     `json:"freeHeapKB"`
	RSSI          int       `json:"rssi"`
	Timestamp     time.Time `json:"timestamp"`
	LocalTime     string    `json:"localTime,omitempty"`
}
