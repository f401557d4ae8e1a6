// Package core is the orchestration layer of the hub. It consumes normalized
// sensor readings, runs the automatic pump-control policy, evaluates alert
// rules with cooldown de-duplication, maintains the moving-average efficiency
// estimate and drives the downstream sinks. All propagation is best effort:
// a failing sink is logged and skipped for that reading, never retried and
// never allowed to block the other sinks.
package core

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"pumphub/internal/telemetry"
	"pumphub/pkg/utils"
)

// Commander publishes control commands to the device transport.
type Commander interface {
	PublishCommand(ctx context.Context, action telemetry.PumpAction) error
	Connected() bool
}

// Sink is the durable write path for readings.
type Sink interface {
	Write(ctx context.Context, r telemetry.SensorReading) error
	Degraded() bool
}

// Notifier delivers alerts to the remote notification channel.
type Notifier interface {
	SendAlert(ctx context.Context, a telemetry.Alert) error
}

// Broadcaster fans events out to connected dashboard subscribers.
type Broadcaster interface {
	Broadcast(ev telemetry.Event)
}

// Tuning holds the alert calibration parameters. The thresholds carry no
// stated calibration rationale upstream, so they stay configurable rather
// than baked in.
type Tuning struct {
	LeakDropThreshold float64
	VibrationLimit    float64
	CurrentLimit      float64
	AlertCooldown     time.Duration
}

// Options configures a Core at construction time.
type Options struct {
	AutoMode           bool
	LowWaterThreshold  float64
	HighWaterThreshold float64
	Tuning             Tuning
}

// Core owns the hub's mutable state: operating config, efficiency history,
// alert cooldowns and the previous-level sample for leak detection. State is
// guarded by a single mutex; decision logic runs under it, sink I/O does not.
type Core struct {
	l           *slog.Logger
	commander   Commander
	sink        Sink
	notifier    Notifier
	broadcaster Broadcaster

	tuning Tuning
	now    func() time.Time

	mu          sync.Mutex
	cfg         telemetry.OperatingConfig
	history     *efficiencyHistory
	cooldowns   map[telemetry.AlertKind]time.Time
	prevLevel   float64
	hasPrev     bool
	lastReading telemetry.SensorReading
	hasReading  bool
}

// efficiencyHistoryCapacity bounds the moving-average window.
const efficiencyHistoryCapacity = 20

// New wires a Core to its collaborators. All four are required; the
// composition root fails fast on a nil collaborator instead of guarding
// every call site.
func New(l *slog.Logger, opts Options, commander Commander, sink Sink, notifier Notifier, broadcaster Broadcaster) *Core {
	if commander == nil || sink == nil || notifier == nil || broadcaster == nil {
		panic("core: all collaborators must be non-nil")
	}

	return &Core{
		l:           l.With(slog.String("component", "core")),
		commander:   commander,
		sink:        sink,
		notifier:    notifier,
		broadcaster: broadcaster,
		tuning:      opts.Tuning,
		now:         time.Now,
		cfg: telemetry.OperatingConfig{
			AutoMode:           opts.AutoMode,
			LowWaterThreshold:  opts.LowWaterThreshold,
			HighWaterThreshold: opts.HighWaterThreshold,
		},
		history:   newEfficiencyHistory(efficiencyHistoryCapacity),
		cooldowns: make(map[telemetry.AlertKind]time.Time),
	}
}

// HandleReading processes one inbound telemetry event. Side effects run in a
// fixed sequence: automatic control, alert evaluation, efficiency update,
// durable write, fan-out broadcast, previous-level update. The durable write
// runs on its own goroutine so a slow database never stalls ingestion; the
// broadcast is issued inline because Hub.Broadcast only enqueues, which keeps
// fan-out envelopes in arrival order across consecutive readings.
func (c *Core) HandleReading(ctx context.Context, r telemetry.SensorReading) {
	now := c.now()

	c.mu.Lock()

	cmd, hasCmd := c.autoControl(r)
	alerts := c.evaluateAlerts(r, now)
	r.Efficiency = c.updateEfficiency(r)

	c.prevLevel = r.WaterLevel
	c.hasPrev = true
	c.lastReading = r
	c.hasReading = true

	c.mu.Unlock()

	if hasCmd {
		c.issueCommand(ctx, cmd)
	}

	for _, alert := range alerts {
		c.dispatchAlert(ctx, alert)
	}

	go func() {
		if err := c.sink.Write(ctx, r); err != nil {
			c.l.Error("durable write failed", slog.String("device", r.DeviceID), utils.ErrAttr(err))
		}
	}()

	c.broadcaster.Broadcast(telemetry.NewEvent(telemetry.EventSensorData, r))
}

// issueCommand publishes a pump command to the device. Failures are logged
// and abandoned; the next reading gets a fresh attempt.
func (c *Core) issueCommand(ctx context.Context, cmd telemetry.PumpCommand) {
	if err := c.commander.PublishCommand(ctx, cmd.Action); err != nil {
		c.l.Error("pump command publish failed",
			slog.String("action", string(cmd.Action)),
			slog.String("source", string(cmd.Source)),
			utils.ErrAttr(err))

		return
	}

	c.mu.Lock()
	c.cfg.LastCommandSource = cmd.Source
	c.mu.Unlock()

	c.l.Info("pump command issued",
		slog.String("action", string(cmd.Action)),
		slog.String("source", string(cmd.Source)))
}

// dispatchAlert delivers one alert to the notification channel and the
// fan-out gateway. The cooldown timestamp was already recorded during
// evaluation, so a delivery failure cannot cause an alert storm. Only the
// notification send runs on its own goroutine; the broadcast enqueue is
// cheap and keeping it inline preserves envelope order.
func (c *Core) dispatchAlert(ctx context.Context, alert telemetry.Alert) {
	go func() {
		if err := c.notifier.SendAlert(ctx, alert); err != nil {
			c.l.Error("alert notification failed", slog.String("kind", string(alert.Kind)), utils.ErrAttr(err))
		}
	}()

	c.broadcaster.Broadcast(telemetry.NewEvent(telemetry.EventSystemAlert, alert))
}

// Config returns a snapshot of the operating config.
func (c *Core) Config() telemetry.OperatingConfig {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.cfg
}

// LatestReading returns the most recent reading, if any has arrived.
func (c *Core) LatestReading() (telemetry.SensorReading, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lastReading, c.hasReading
}
