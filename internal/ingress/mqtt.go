// Package ingress adapts the MQTT transport to the orchestration core. It
// normalizes inbound telemetry payloads into typed sensor readings and owns
// the outbound publish path for plain-text pump command tokens. Reconnection
// is delegated to the paho client; the adapter resubscribes on every
// (re)connect and exposes the connection state.
package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"pumphub/internal/telemetry"
	"pumphub/pkg/utils"
)

const (
	connectTimeout       = 5 * time.Second
	connectRetryInterval = 5 * time.Second
	maxReconnectInterval = 15 * time.Second
	keepAlive            = 30 * time.Second
	publishTimeout       = 5 * time.Second

	telemetryQoS = 1
	controlQoS   = 1
)

// ErrNotConnected is returned when a publish is attempted while the broker
// connection is down.
var ErrNotConnected = errors.New("ingress: not connected to broker")

// ReadingHandler receives every successfully decoded telemetry event.
type ReadingHandler interface {
	HandleReading(ctx context.Context, r telemetry.SensorReading)
}

// Options configures the MQTT adapter.
type Options struct {
	BrokerURL      string
	ClientID       string
	Username       string
	Password       string
	TelemetryTopic string
	ControlTopic   string
}

// Adapter is the telemetry ingress and device command egress.
type Adapter struct {
	l       *slog.Logger
	client  pahomqtt.Client
	opts    Options
	handler ReadingHandler

	connected atomic.Bool
}

// New creates the adapter. The handler must be set before Connect via
// SetHandler; construction fails on incomplete options rather than guarding
// at runtime.
func New(l *slog.Logger, opts Options) (*Adapter, error) {
	if opts.BrokerURL == "" {
		return nil, errors.New("broker URL is required")
	}

	if opts.TelemetryTopic == "" || opts.ControlTopic == "" {
		return nil, errors.New("telemetry and control topics are required")
	}

	if opts.ClientID == "" {
		opts.ClientID = "pumphub"
	}

	a := &Adapter{
		l:    l.With(slog.String("component", "ingress")),
		opts: opts,
	}

	clientOpts := pahomqtt.NewClientOptions()
	clientOpts.AddBroker(opts.BrokerURL)
	clientOpts.SetClientID(opts.ClientID + "-" + uuid.New().String()[:8])

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}

	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}

	clientOpts.SetAutoReconnect(true)
	clientOpts.SetConnectRetry(true)
	clientOpts.SetConnectTimeout(connectTimeout)
	clientOpts.SetConnectRetryInterval(connectRetryInterval)
	clientOpts.SetMaxReconnectInterval(maxReconnectInterval)
	clientOpts.SetKeepAlive(keepAlive)

	clientOpts.SetOnConnectHandler(a.onConnect)
	clientOpts.SetConnectionLostHandler(a.onConnectionLost)
	clientOpts.SetReconnectingHandler(a.onReconnecting)

	a.client = pahomqtt.NewClient(clientOpts)

	return a, nil
}

// SetHandler installs the reading handler. Must be called before Connect.
func (a *Adapter) SetHandler(h ReadingHandler) {
	a.handler = h
}

// Connect establishes the broker connection and blocks until the first
// connect attempt resolves. Subscriptions are installed by the onConnect
// callback so they survive reconnects.
func (a *Adapter) Connect() error {
	if a.handler == nil {
		return errors.New("ingress: reading handler not set")
	}

	token := a.client.Connect()
	token.Wait()

	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	return nil
}

// Disconnect closes the broker connection with a short grace period.
func (a *Adapter) Disconnect() {
	if !a.client.IsConnected() {
		return
	}

	a.client.Disconnect(250)
	a.connected.Store(false)
	a.l.Info("disconnected from MQTT broker")
}

// Connected reports the current transport connection state.
func (a *Adapter) Connected() bool {
	return a.connected.Load()
}

// PublishCommand sends the plain-text command token to the control topic.
func (a *Adapter) PublishCommand(_ context.Context, action telemetry.PumpAction) error {
	if !a.connected.Load() {
		return ErrNotConnected
	}

	tok := action.Token()
	if tok == "" {
		return fmt.Errorf("ingress: no device token for action %q", string(action))
	}

	token := a.client.Publish(a.opts.ControlTopic, controlQoS, false, []byte(tok))
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("ingress: publish to %s timed out", a.opts.ControlTopic)
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("ingress: publish to %s failed: %w", a.opts.ControlTopic, err)
	}

	return nil
}

// onConnect subscribes to the telemetry topic on every (re)connect.
func (a *Adapter) onConnect(client pahomqtt.Client) {
	a.connected.Store(true)
	a.l.Info("connected to MQTT broker", slog.String("broker", a.opts.BrokerURL))

	token := client.Subscribe(a.opts.TelemetryTopic, telemetryQoS, a.onTelemetry)
	token.Wait()

	if err := token.Error(); err != nil {
		a.l.Error("telemetry subscribe failed", slog.String("topic", a.opts.TelemetryTopic), utils.ErrAttr(err))

		return
	}

	a.l.Info("subscribed", slog.String("topic", a.opts.TelemetryTopic))
}

func (a *Adapter) onConnectionLost(_ pahomqtt.Client, err error) {
	a.connected.Store(false)
	a.l.Warn("connection to MQTT broker lost", utils.ErrAttr(err))
}

func (a *Adapter) onReconnecting(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
	a.l.Info("reconnecting to MQTT broker", slog.String("broker", a.opts.BrokerURL))
}

// onTelemetry decodes one inbound message and forwards it to the core.
// Malformed payloads are dropped with a log entry; they never crash the
// pipeline.
func (a *Adapter) onTelemetry(_ pahomqtt.Client, msg pahomqtt.Message) {
	reading, err := DecodeReading(msg.Payload())
	if err != nil {
		a.l.Warn("dropping malformed telemetry payload",
			slog.String("topic", msg.Topic()),
			slog.Int("bytes", len(msg.Payload())),
			utils.ErrAttr(err))

		return
	}

	a.handler.HandleReading(context.Background(), reading)
}

// DecodeReading normalizes one raw telemetry payload. A missing capture
// timestamp is stamped with arrival time.
func DecodeReading(payload []byte) (telemetry.SensorReading, error) {
	if len(payload) == 0 {
		return telemetry.SensorReading{}, errors.New("empty payload")
	}

	var reading telemetry.SensorReading
	if err := json.Unmarshal(payload, &reading); err != nil {
		return telemetry.SensorReading{}, fmt.Errorf("decode telemetry: %w", err)
	}

	if reading.DeviceID == "" {
		return telemetry.SensorReading{}, errors.New("telemetry payload missing device identifier")
	}

	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now()
	}

	return reading, nil
}
