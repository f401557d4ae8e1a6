package notify

import (
	"context"
	"log/slog"

	"pumphub/internal/telemetry"
)

// Discard satisfies the core's notifier when no Telegram token is
// configured. Alerts still land in the log so the channel's absence is
// visible, but nothing leaves the process.
type Discard struct {
	l *slog.Logger
}

// NewDiscard creates a logging-only notifier.
func NewDiscard(l *slog.Logger) *Discard {
	return &Discard{l: l.With(slog.String("component", "notify"))}
}

// SendAlert logs the alert and reports success.
func (d *Discard) SendAlert(_ context.Context, a telemetry.Alert) error {
	d.l.Info("alert raised (notification channel disabled)",
		slog.String("kind", string(a.Kind)),
		slog.String("severity", string(a.Severity)),
		slog.String("message", a.Message))

	return nil
}
