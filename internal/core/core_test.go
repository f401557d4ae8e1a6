package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"pumphub/internal/telemetry"
)

type fakeCommander struct {
	mu        sync.Mutex
	published []telemetry.PumpAction
	err       error
	connected bool
}

func (f *fakeCommander) PublishCommand(_ context.Context, a telemetry.PumpAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}

	f.published = append(f.published, a)

	return nil
}

func (f *fakeCommander) Connected() bool { return f.connected }

func (f *fakeCommander) actions() []telemetry.PumpAction {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]telemetry.PumpAction, len(f.published))
	copy(out, f.published)

	return out
}

type fakeSink struct {
	writes   chan telemetry.SensorReading
	degraded bool
	err      error
}

func newFakeSink() *fakeSink {
	return &fakeSink{writes: make(chan telemetry.SensorReading, 16)}
}

func (f *fakeSink) Write(_ context.Context, r telemetry.SensorReading) error {
	f.writes <- r

	return f.err
}

func (f *fakeSink) Degraded() bool { return f.degraded }

type fakeNotifier struct {
	alerts chan telemetry.Alert
	err    error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{alerts: make(chan telemetry.Alert, 16)}
}

func (f *fakeNotifier) SendAlert(_ context.Context, a telemetry.Alert) error {
	f.alerts <- a

	return f.err
}

type fakeBroadcaster struct {
	events chan telemetry.Event
}

type nopSink struct{}

func (nopSink) Write(_ context.Context, _ telemetry.SensorReading) error { return nil }
func (nopSink) Degraded() bool                                           { return false }

// recordingBroadcaster captures every envelope in call order.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (b *recordingBroadcaster) Broadcast(ev telemetry.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, ev)
}

func (b *recordingBroadcaster) recorded() []telemetry.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]telemetry.Event, len(b.events))
	copy(out, b.events)

	return out
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{events: make(chan telemetry.Event, 16)}
}

func (f *fakeBroadcaster) Broadcast(ev telemetry.Event) {
	f.events <- ev
}

type testRig struct {
	core        *Core
	commander   *fakeCommander
	sink        *fakeSink
	notifier    *fakeNotifier
	broadcaster *fakeBroadcaster
}

func defaultOptions() Options {
	return Options{
		AutoMode:           true,
		LowWaterThreshold:  20,
		HighWaterThreshold: 95,
		Tuning: Tuning{
			LeakDropThreshold: 1.0,
			VibrationLimit:    2.5,
			CurrentLimit:      5.0,
			AlertCooldown:     10 * time.Minute,
		},
	}
}

func newTestRig(opts Options) *testRig {
	rig := &testRig{
		commander:   &fakeCommander{connected: true},
		sink:        newFakeSink(),
		notifier:    newFakeNotifier(),
		broadcaster: newFakeBroadcaster(),
	}

	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	rig.core = New(l, opts, rig.commander, rig.sink, rig.notifier, rig.broadcaster)

	return rig
}

func recv[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}

	var zero T

	return zero
}

// recvEventOfType drains the broadcast channel until an event of the wanted
// type arrives, skipping unrelated fan-out traffic.
func recvEventOfType(t *testing.T, ch <-chan telemetry.Event, want telemetry.EventType) telemetry.Event {
	t.Helper()

	deadline := time.After(time.Second)

	for {
		select {
		case ev := <-ch:
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", want)
		}
	}
}

func healthyReading() telemetry.SensorReading {
	return telemetry.SensorReading{
		DeviceID:    "pump-01",
		Timestamp:   time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		WaterLevel:  50,
		Temperature: 25,
		Current:     0,
		FlowRate:    0,
		PumpOn:      false,
		Vibration:   telemetry.Vibration{RMS: 0.2},
	}
}

func TestAutoControl(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		autoMode   bool
		level      float64
		pumpOn     bool
		wantAction telemetry.PumpAction
		wantCmd    bool
	}{
		{
			name:       "low level pump off switches on",
			autoMode:   true,
			level:      15,
			pumpOn:     false,
			wantAction: telemetry.ActionOn,
			wantCmd:    true,
		},
		{
			name:       "high level pump on switches off",
			autoMode:   true,
			level:      96,
			pumpOn:     true,
			wantAction: telemetry.ActionOff,
			wantCmd:    true,
		},
		{
			name:     "mid level leaves pump alone",
			autoMode: true,
			level:    50,
			pumpOn:   false,
			wantCmd:  false,
		},
		{
			name:     "low level pump already on is a no-op",
			autoMode: true,
			level:    15,
			pumpOn:   true,
			wantCmd:  false,
		},
		{
			name:     "high level pump already off is a no-op",
			autoMode: true,
			level:    96,
			pumpOn:   false,
			wantCmd:  false,
		},
		{
			name:     "manual mode never commands",
			autoMode: false,
			level:    15,
			pumpOn:   false,
			wantCmd:  false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts := defaultOptions()
			opts.AutoMode = tt.autoMode
			rig := newTestRig(opts)

			r := healthyReading()
			r.WaterLevel = tt.level
			r.PumpOn = tt.pumpOn

			rig.core.HandleReading(context.Background(), r)

			got := rig.commander.actions()
			if tt.wantCmd {
				if len(got) != 1 || got[0] != tt.wantAction {
					t.Errorf("published actions = %v, want [%s]", got, tt.wantAction)
				}

				return
			}

			if len(got) != 0 {
				t.Errorf("published actions = %v, want none", got)
			}
		})
	}
}

func TestAutoControlThresholdBoundaries(t *testing.T) {
	t.Parallel()

	// Both thresholds are inclusive.
	rig := newTestRig(defaultOptions())

	r := healthyReading()
	r.WaterLevel = 20

	rig.core.HandleReading(context.Background(), r)

	if got := rig.commander.actions(); len(got) != 1 || got[0] != telemetry.ActionOn {
		t.Errorf("level at low threshold: actions = %v, want [on]", got)
	}
}

func TestHandleCommandUnknownAction(t *testing.T) {
	t.Parallel()

	rig := newTestRig(defaultOptions())

	res := rig.core.HandleCommand(context.Background(), "reverse", telemetry.SourceRemote)
	if res.Success {
		t.Error("HandleCommand() with unknown action succeeded, want failure")
	}

	if len(rig.commander.actions()) != 0 {
		t.Error("unknown action reached the commander")
	}
}

func TestManualToggleRejectedInAutoMode(t *testing.T) {
	t.Parallel()

	rig := newTestRig(defaultOptions())

	res := rig.core.HandleCommand(context.Background(), telemetry.ActionOn, telemetry.SourceRemote)
	if res.Success {
		t.Error("manual toggle in auto mode succeeded, want rejection")
	}

	if len(rig.commander.actions()) != 0 {
		t.Errorf("rejected toggle still published %v", rig.commander.actions())
	}
}

func TestManualToggle(t *testing.T) {
	t.Parallel()

	opts := defaultOptions()
	opts.AutoMode = false
	rig := newTestRig(opts)

	res := rig.core.HandleCommand(context.Background(), telemetry.ActionOn, telemetry.SourceRemote)
	if !res.Success {
		t.Fatalf("manual toggle failed: %s", res.Message)
	}

	if res.Message != "pump switched on" {
		t.Errorf("Message = %q, want %q", res.Message, "pump switched on")
	}

	if got := rig.commander.actions(); len(got) != 1 || got[0] != telemetry.ActionOn {
		t.Errorf("published actions = %v, want [on]", got)
	}

	ev := recvEventOfType(t, rig.broadcaster.events, telemetry.EventPumpStatus)

	cmd, ok := ev.Data.(telemetry.PumpCommand)
	if !ok {
		t.Fatalf("pumpStatus payload is %T, want PumpCommand", ev.Data)
	}

	if cmd.Action != telemetry.ActionOn || cmd.Source != telemetry.SourceRemote {
		t.Errorf("broadcast command = %+v", cmd)
	}
}

func TestManualTogglePublishFailure(t *testing.T) {
	t.Parallel()

	opts := defaultOptions()
	opts.AutoMode = false
	rig := newTestRig(opts)
	rig.commander.err = errors.New("broker unreachable")

	res := rig.core.HandleCommand(context.Background(), telemetry.ActionOff, telemetry.SourceRemote)
	if res.Success {
		t.Error("toggle succeeded despite publish failure")
	}
}

func TestSetMode(t *testing.T) {
	t.Parallel()

	rig := newTestRig(defaultOptions())

	res := rig.core.HandleCommand(context.Background(), telemetry.ActionManual, telemetry.SourceRemote)
	if !res.Success {
		t.Fatalf("mode change failed: %s", res.Message)
	}

	if cfg := rig.core.Config(); cfg.AutoMode {
		t.Error("AutoMode still true after switching to manual")
	}

	ev := recvEventOfType(t, rig.broadcaster.events, telemetry.EventSystemConfig)

	cfg, ok := ev.Data.(telemetry.OperatingConfig)
	if !ok {
		t.Fatalf("systemConfig payload is %T, want OperatingConfig", ev.Data)
	}

	if cfg.AutoMode {
		t.Error("broadcast config still reports auto mode")
	}
}

func TestSetModeSurvivesPublishFailure(t *testing.T) {
	t.Parallel()

	rig := newTestRig(defaultOptions())
	rig.commander.err = errors.New("broker unreachable")

	res := rig.core.HandleCommand(context.Background(), telemetry.ActionManual, telemetry.SourceRemote)
	if !res.Success {
		t.Errorf("mode change failed on publish error: %s", res.Message)
	}

	if cfg := rig.core.Config(); cfg.AutoMode {
		t.Error("AutoMode unchanged after mode command")
	}
}

func TestHandleReadingWritesAndBroadcasts(t *testing.T) {
	t.Parallel()

	rig := newTestRig(defaultOptions())

	rig.core.HandleReading(context.Background(), healthyReading())

	written := recv(t, rig.sink.writes, "sink write")
	if written.DeviceID != "pump-01" {
		t.Errorf("written DeviceID = %q, want pump-01", written.DeviceID)
	}

	if written.Efficiency != 100 {
		t.Errorf("written Efficiency = %.1f, want 100 for idle pump", written.Efficiency)
	}

	ev := recvEventOfType(t, rig.broadcaster.events, telemetry.EventSensorData)
	if _, ok := ev.Data.(telemetry.SensorReading); !ok {
		t.Errorf("sensorData payload is %T, want SensorReading", ev.Data)
	}
}

func TestHandleReadingBroadcastOrder(t *testing.T) {
	t.Parallel()

	broadcaster := &recordingBroadcaster{}
	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := New(l, defaultOptions(), &fakeCommander{connected: true}, nopSink{}, newFakeNotifier(), broadcaster)

	const n = 500

	// Dashboards must see readings in arrival order; a newer level followed
	// by an older one would make the chart jump backwards.
	for i := 0; i < n; i++ {
		r := healthyReading()
		r.UptimeSeconds = int64(i)

		c.HandleReading(context.Background(), r)
	}

	events := broadcaster.recorded()
	if len(events) != n {
		t.Fatalf("recorded %d events, want %d", len(events), n)
	}

	for i, ev := range events {
		if ev.Type != telemetry.EventSensorData {
			t.Fatalf("event[%d].Type = %s, want sensorData", i, ev.Type)
		}

		r, ok := ev.Data.(telemetry.SensorReading)
		if !ok {
			t.Fatalf("event[%d] payload is %T, want SensorReading", i, ev.Data)
		}

		if r.UptimeSeconds != int64(i) {
			t.Fatalf("event[%d] carries reading %d: broadcasts out of arrival order", i, r.UptimeSeconds)
		}
	}
}

func TestHandleReadingSinkFailureIsIsolated(t *testing.T) {
	t.Parallel()

	rig := newTestRig(defaultOptions())
	rig.sink.err = errors.New("connection refused")

	rig.core.HandleReading(context.Background(), healthyReading())

	// The broadcast still goes out when the durable write fails.
	recvEventOfType(t, rig.broadcaster.events, telemetry.EventSensorData)

	if _, ok := rig.core.LatestReading(); !ok {
		t.Error("LatestReading() empty after a handled reading")
	}
}

func TestInstantEfficiency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		reading telemetry.SensorReading
		want    float64
	}{
		{
			name:    "pump off scores flat 100",
			reading: telemetry.SensorReading{PumpOn: false, Current: 3.0},
			want:    100,
		},
		{
			name:    "idle current scores flat 100",
			reading: telemetry.SensorReading{PumpOn: true, Current: 0.1, Temperature: 25},
			want:    100,
		},
		{
			name:    "nominal load",
			reading: telemetry.SensorReading{PumpOn: true, Current: 1.0, Temperature: 25},
			want:    180.0 / 220.0 * 100.0,
		},
		{
			name: "vibration penalty",
			reading: telemetry.SensorReading{
				PumpOn: true, Current: 1.0, Temperature: 25,
				Vibration: telemetry.Vibration{RMS: 2.0},
			},
			want: 180.0/220.0*100.0 - 10.0,
		},
		{
			name:    "hot pump penalty",
			reading: telemetry.SensorReading{PumpOn: true, Current: 1.0, Temperature: 50},
			want:    180.0/220.0*100.0 - 11.25,
		},
		{
			name:    "temperature inside band carries no penalty",
			reading: telemetry.SensorReading{PumpOn: true, Current: 1.0, Temperature: 40},
			want:    180.0 / 220.0 * 100.0,
		},
		{
			name:    "clamped to 100 at light load",
			reading: telemetry.SensorReading{PumpOn: true, Current: 0.5, Temperature: 25},
			want:    100,
		},
		{
			name: "clamped to 0 under heavy penalties",
			reading: telemetry.SensorReading{
				PumpOn: true, Current: 20, Temperature: 90,
				Vibration: telemetry.Vibration{RMS: 8},
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := instantEfficiency(tt.reading)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("instantEfficiency() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEfficiencyHistoryWindow(t *testing.T) {
	t.Parallel()

	h := newEfficiencyHistory(20)

	if got := h.Mean(); got != 0 {
		t.Errorf("empty Mean() = %v, want 0", got)
	}

	for i := 0; i < 21; i++ {
		h.Push(float64(i))
	}

	if got := h.Len(); got != 20 {
		t.Errorf("Len() after 21 pushes = %d, want 20", got)
	}

	// Oldest sample (0) evicted; window now holds 1..20.
	want := (1.0 + 20.0) / 2.0
	if got := h.Mean(); math.Abs(got-want) > 1e-9 {
		t.Errorf("Mean() = %v, want %v", got, want)
	}
}

func TestEfficiencySmoothing(t *testing.T) {
	t.Parallel()

	rig := newTestRig(defaultOptions())

	idle := healthyReading()
	rig.core.HandleReading(context.Background(), idle)

	loaded := healthyReading()
	loaded.PumpOn = true
	loaded.Current = 1.0

	rig.core.HandleReading(context.Background(), loaded)

	r, ok := rig.core.LatestReading()
	if !ok {
		t.Fatal("LatestReading() empty")
	}

	want := (100.0 + 180.0/220.0*100.0) / 2.0
	if math.Abs(r.Efficiency-want) > 1e-9 {
		t.Errorf("smoothed Efficiency = %v, want %v", r.Efficiency, want)
	}
}

func TestAlertRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(r *telemetry.SensorReading)
		want    []telemetry.AlertKind
		wantSev telemetry.Severity
	}{
		{
			name:   "healthy reading raises nothing",
			mutate: func(_ *telemetry.SensorReading) {},
		},
		{
			name: "critically low water",
			mutate: func(r *telemetry.SensorReading) {
				r.WaterLevel = 5
				r.PumpOn = true
			},
			want:    []telemetry.AlertKind{telemetry.AlertLowWaterCritical},
			wantSev: telemetry.SeverityCritical,
		},
		{
			name: "low water with pump off in auto mode",
			mutate: func(r *telemetry.SensorReading) {
				r.WaterLevel = 15
			},
			want:    []telemetry.AlertKind{telemetry.AlertLowWaterPumpFail},
			wantSev: telemetry.SeverityWarning,
		},
		{
			name: "critically low pump off raises both low-water rules",
			mutate: func(r *telemetry.SensorReading) {
				r.WaterLevel = 5
			},
			want: []telemetry.AlertKind{
				telemetry.AlertLowWaterCritical,
				telemetry.AlertLowWaterPumpFail,
			},
		},
		{
			name: "high vibration",
			mutate: func(r *telemetry.SensorReading) {
				r.Vibration.RMS = 3.0
			},
			want:    []telemetry.AlertKind{telemetry.AlertHighVibration},
			wantSev: telemetry.SeverityWarning,
		},
		{
			name: "high current",
			mutate: func(r *telemetry.SensorReading) {
				r.Current = 6.0
				r.PumpOn = true
			},
			want:    []telemetry.AlertKind{telemetry.AlertHighCurrent},
			wantSev: telemetry.SeverityWarning,
		},
		{
			name: "vibration at the limit stays quiet",
			mutate: func(r *telemetry.SensorReading) {
				r.Vibration.RMS = 2.5
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rig := newTestRig(defaultOptions())

			r := healthyReading()
			tt.mutate(&r)

			alerts := rig.core.evaluateAlerts(r, time.Now())

			if len(alerts) != len(tt.want) {
				t.Fatalf("evaluateAlerts() raised %d alerts (%v), want %d", len(alerts), alerts, len(tt.want))
			}

			for i, kind := range tt.want {
				if alerts[i].Kind != kind {
					t.Errorf("alert[%d].Kind = %s, want %s", i, alerts[i].Kind, kind)
				}
			}

			if tt.wantSev != "" && len(alerts) == 1 && alerts[0].Severity != tt.wantSev {
				t.Errorf("Severity = %s, want %s", alerts[0].Severity, tt.wantSev)
			}
		})
	}
}

func TestLeakDetection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		prevLevel float64
		level     float64
		pumpOn    bool
		want      bool
	}{
		{
			name:      "drop beyond threshold with pump off fires",
			prevLevel: 50,
			level:     48.5,
			pumpOn:    false,
			want:      true,
		},
		{
			name:      "drop within threshold stays quiet",
			prevLevel: 50,
			level:     49.5,
			pumpOn:    false,
			want:      false,
		},
		{
			name:      "drop at exactly the threshold stays quiet",
			prevLevel: 50,
			level:     49,
			pumpOn:    false,
			want:      false,
		},
		{
			name:      "drop with pump running stays quiet",
			prevLevel: 50,
			level:     48,
			pumpOn:    true,
			want:      false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rig := newTestRig(defaultOptions())
			rig.core.prevLevel = tt.prevLevel
			rig.core.hasPrev = true

			r := healthyReading()
			r.WaterLevel = tt.level
			r.PumpOn = tt.pumpOn

			alerts := rig.core.evaluateAlerts(r, time.Now())

			fired := false
			for _, a := range alerts {
				if a.Kind == telemetry.AlertLeakDetection {
					fired = true
				}
			}

			if fired != tt.want {
				t.Errorf("leak alert fired = %v, want %v (alerts: %v)", fired, tt.want, alerts)
			}
		})
	}
}

func TestLeakDetectionNeedsPreviousSample(t *testing.T) {
	t.Parallel()

	rig := newTestRig(defaultOptions())

	r := healthyReading()
	r.WaterLevel = 30 // would be a huge drop if a previous level existed

	if alerts := rig.core.evaluateAlerts(r, time.Now()); len(alerts) != 0 {
		t.Errorf("first ever reading raised %v, want none", alerts)
	}
}

func TestAlertCooldown(t *testing.T) {
	t.Parallel()

	rig := newTestRig(defaultOptions())

	r := healthyReading()
	r.Vibration.RMS = 3.0

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	if alerts := rig.core.evaluateAlerts(r, base); len(alerts) != 1 {
		t.Fatalf("first evaluation raised %d alerts, want 1", len(alerts))
	}

	// Identical condition inside the cooldown window is suppressed.
	if alerts := rig.core.evaluateAlerts(r, base.Add(5*time.Minute)); len(alerts) != 0 {
		t.Errorf("evaluation at +5m raised %v, want none", alerts)
	}

	// At exactly the cooldown boundary it is still suppressed.
	if alerts := rig.core.evaluateAlerts(r, base.Add(10*time.Minute)); len(alerts) != 0 {
		t.Errorf("evaluation at +10m raised %v, want none", alerts)
	}

	// Past the window the rule fires again.
	if alerts := rig.core.evaluateAlerts(r, base.Add(10*time.Minute+time.Second)); len(alerts) != 1 {
		t.Errorf("evaluation past cooldown raised %d alerts, want 1", len(alerts))
	}
}

func TestCooldownIsPerRule(t *testing.T) {
	t.Parallel()

	rig := newTestRig(defaultOptions())
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	vib := healthyReading()
	vib.Vibration.RMS = 3.0

	if alerts := rig.core.evaluateAlerts(vib, base); len(alerts) != 1 {
		t.Fatalf("vibration evaluation raised %d alerts, want 1", len(alerts))
	}

	// A different rule fires independently inside the vibration cooldown.
	cur := healthyReading()
	cur.Current = 6.0
	cur.PumpOn = true

	alerts := rig.core.evaluateAlerts(cur, base.Add(time.Minute))
	if len(alerts) != 1 || alerts[0].Kind != telemetry.AlertHighCurrent {
		t.Errorf("current evaluation raised %v, want one high_current", alerts)
	}
}

func TestAlertDispatch(t *testing.T) {
	t.Parallel()

	rig := newTestRig(defaultOptions())

	r := healthyReading()
	r.Vibration.RMS = 3.0

	rig.core.HandleReading(context.Background(), r)

	alert := recv(t, rig.notifier.alerts, "notifier alert")
	if alert.Kind != telemetry.AlertHighVibration {
		t.Errorf("notified Kind = %s, want high_vibration", alert.Kind)
	}

	ev := recvEventOfType(t, rig.broadcaster.events, telemetry.EventSystemAlert)
	if _, ok := ev.Data.(telemetry.Alert); !ok {
		t.Errorf("systemAlert payload is %T, want Alert", ev.Data)
	}
}

func TestStatusReportOffline(t *testing.T) {
	t.Parallel()

	rig := newTestRig(defaultOptions())

	s := rig.core.StatusReport()
	if !s.Offline {
		t.Error("StatusReport() before any reading is not offline")
	}

	if !s.Connected {
		t.Error("Connected = false, want commander state")
	}

	if s.Mode != "automatic" {
		t.Errorf("Mode = %q, want automatic", s.Mode)
	}
}

func TestStatusReport(t *testing.T) {
	t.Parallel()

	rig := newTestRig(defaultOptions())
	rig.sink.degraded = true

	r := healthyReading()
	r.UptimeSeconds = 125
	r.FreeHeapBytes = 49152
	r.RSSI = -61

	rig.core.HandleReading(context.Background(), r)

	s := rig.core.StatusReport()

	if s.Offline {
		t.Fatal("StatusReport() offline after a reading")
	}

	if s.DeviceID != "pump-01" || s.WaterLevel != 50 {
		t.Errorf("status snapshot = %+v", s)
	}

	if s.UptimeMinutes != 2 || s.UptimeSeconds != 5 {
		t.Errorf("uptime = %dm %ds, want 2m 5s", s.UptimeMinutes, s.UptimeSeconds)
	}

	if s.FreeHeapKB != 48 {
		t.Errorf("FreeHeapKB = %d, want 48", s.FreeHeapKB)
	}

	if !s.StoreDegraded {
		t.Error("StoreDegraded = false, want sink state")
	}

	if s.Efficiency != 100 {
		t.Errorf("Efficiency = %.1f, want 100", s.Efficiency)
	}
}
