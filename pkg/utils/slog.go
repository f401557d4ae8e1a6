package utils

import (
	"log/slog"
	"strings"
	"time"
)

// ErrAttr wraps an error as a slog attribute with the conventional "error" key.
func ErrAttr(err error) slog.Attr {
	return slog.Any("error", err)
}

// SlogReplacer normalizes time and duration attributes to short human-readable strings.
func SlogReplacer(_ []string, a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindTime:
		a.Value = slog.StringValue(a.Value.Time().Format(time.DateTime))
	case slog.KindDuration:
		a.Value = slog.StringValue(a.Value.Duration().String())
	default:
	}

	return a
}

// LogWriter adapts a slog.Logger to io.Writer for libraries that expect
// a plain log sink.
type LogWriter struct {
	logger *slog.Logger
}

// NewSlogWriter creates a LogWriter around l.
func NewSlogWriter(l *slog.Logger) *LogWriter {
	return &LogWriter{logger: l}
}

// Write logs each non-empty line of p at info level.
func (w *LogWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(string(p), "\n") {
		if line == "" {
			continue
		}

		w.logger.Info(line)
	}

	return len(p), nil
}
