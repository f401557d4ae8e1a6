// Package notify is the remote notification channel: outbound alert delivery
// and an inbound command stream over a Telegram bot. Long-poll retry and
// backoff belong to the bot library; this package only decides what to send
// and who is allowed to talk to it.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"pumphub/internal/telemetry"
	"pumphub/pkg/utils"
)

const longPollTimeout = 30 // seconds

// CommandHandler processes inbound remote commands.
type CommandHandler interface {
	HandleCommand(ctx context.Context, action telemetry.PumpAction, source telemetry.CommandSource) telemetry.CommandResult
}

// StatusProvider answers status queries.
type StatusProvider interface {
	StatusReport() telemetry.StatusReport
}

// Bot is the Telegram notification channel. Only the configured chat
// identity may issue commands; everyone else is ignored without a reply so
// the set of authorized identities is not discoverable by probing.
type Bot struct {
	l        *slog.Logger
	api      *tgbotapi.BotAPI
	chatID   int64
	commands CommandHandler
	status   StatusProvider
}

// New authenticates the bot against the Telegram API. Bind must be called
// before Run; alerts can be sent as soon as New returns.
func New(l *slog.Logger, token string, chatID int64) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot auth: %w", err)
	}

	return &Bot{
		l:      l.With(slog.String("component", "notify")),
		api:    api,
		chatID: chatID,
	}, nil
}

// Bind installs the command and status collaborators. Separate from New
// because the core and the bot reference each other.
func (b *Bot) Bind(commands CommandHandler, status StatusProvider) {
	b.commands = commands
	b.status = status
}

// Run long-polls for inbound commands until ctx is canceled.
func (b *Bot) Run(ctx context.Context) {
	if b.commands == nil || b.status == nil {
		panic("notify: bot not bound to a command handler")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = longPollTimeout

	updates := b.api.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	b.l.Info("telegram command stream started", slog.String("bot", b.api.Self.UserName))

	for update := range updates {
		if update.Message == nil {
			continue
		}

		if update.Message.Chat.ID != b.chatID {
			b.l.Warn("ignoring command from unauthorized chat",
				slog.Int64("chat_id", update.Message.Chat.ID))

			continue
		}

		b.handleMessage(ctx, update.Message)
	}

	b.l.Info("telegram command stream stopped")
}

// handleMessage maps one authorized chat message to a core operation.
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	cmd := strings.ToLower(strings.TrimSpace(msg.Text))
	if msg.IsCommand() {
		cmd = "/" + msg.Command()
	}

	switch cmd {
	case "/status":
		b.sendText(b.formatStatus(b.status.StatusReport()))

	case "/help", "/start":
		b.sendText(helpText)

	case "/auto":
		result := b.commands.HandleCommand(ctx, telemetry.ActionAuto, telemetry.SourceRemote)
		b.sendText(result.Message)

	case "/manual":
		result := b.commands.HandleCommand(ctx, telemetry.ActionManual, telemetry.SourceRemote)
		b.sendText(result.Message)

	case "/on":
		result := b.commands.HandleCommand(ctx, telemetry.ActionOn, telemetry.SourceRemote)
		b.sendText(result.Message)

	case "/off":
		result := b.commands.HandleCommand(ctx, telemetry.ActionOff, telemetry.SourceRemote)
		b.sendText(result.Message)

	default:
		b.sendText("unknown command, try /help")
	}
}

// SendAlert delivers one alert to the authorized chat.
func (b *Bot) SendAlert(_ context.Context, a telemetry.Alert) error {
	text := fmt.Sprintf("[%s] %s\nlevel %.1f%% | current %.2fA | vibration %.2f | pump %s\n%s",
		strings.ToUpper(string(a.Severity)), a.Message,
		a.Level, a.Current, a.Vibration, onOff(a.PumpOn),
		a.Timestamp.Local().Format("2006-01-02 15:04:05"))

	if _, err := b.api.Send(tgbotapi.NewMessage(b.chatID, text)); err != nil {
		return fmt.Errorf("send alert: %w", err)
	}

	return nil
}

func (b *Bot) sendText(text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(b.chatID, text)); err != nil {
		b.l.Error("telegram send failed", utils.ErrAttr(err))
	}
}

// formatStatus renders the status projection as chat text.
func (b *Bot) formatStatus(s telemetry.StatusReport) string {
	if s.Offline {
		return "pump station offline: no telemetry received yet\nbroker connected: " + yesNo(s.Connected)
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "pump station %s\n", s.DeviceID)
	fmt.Fprintf(&sb, "broker connected: %s\n", yesNo(s.Connected))
	fmt.Fprintf(&sb, "water level: %.1f%%\n", s.WaterLevel)
	fmt.Fprintf(&sb, "temperature: %.1f C\n", s.Temperature)
	fmt.Fprintf(&sb, "current: %.2f A | flow: %.1f L/min\n", s.Current, s.FlowRate)
	fmt.Fprintf(&sb, "pump: %s | mode: %s\n", onOff(s.PumpOn), s.Mode)
	fmt.Fprintf(&sb, "efficiency: %.1f%%\n", s.Efficiency)
	fmt.Fprintf(&sb, "vibration RMS: %.2f\n", s.VibrationRMS)
	fmt.Fprintf(&sb, "uptime: %dm %ds | heap: %d KB | rssi: %d dBm\n",
		s.UptimeMinutes, s.UptimeSeconds, s.FreeHeapKB, s.RSSI)

	if s.StoreDegraded {
		sb.WriteString("warning: history store degraded, serving from memory\n")
	}

	fmt.Fprintf(&sb, "last reading: %s", s.LocalTime)

	return sb.String()
}

const helpText = `pump hub commands:
/status - current sensor snapshot
/auto - enable automatic pump control
/manual - disable automatic pump control
/on - switch pump on (manual mode only)
/off - switch pump off (manual mode only)
/help - this message`

func yesNo(v bool) string {
	if v {
		return "yes"
	}

	return "no"
}

func onOff(v bool) string {
	if v {
		return "on"
	}

	return "off"
}
