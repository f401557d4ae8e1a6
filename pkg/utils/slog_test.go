package utils

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestErrAttr(t *testing.T) {
	t.Parallel()

	err := errors.New("broker unreachable")

	attr := ErrAttr(err)
	if attr.Key != "error" {
		t.Errorf("Key = %q, want error", attr.Key)
	}

	if got := attr.Value.Any(); got != err {
		t.Errorf("Value = %v, want the original error", got)
	}
}

func TestSlogReplacer(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		attr slog.Attr
		want string
	}{
		{
			name: "time becomes short form",
			attr: slog.Time("at", ts),
			want: "2026-03-14 09:30:00",
		},
		{
			name: "duration becomes string",
			attr: slog.Duration("took", 1500*time.Millisecond),
			want: "1.5s",
		},
		{
			name: "other kinds pass through",
			attr: slog.String("name", "pump-01"),
			want: "pump-01",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := SlogReplacer(nil, tt.attr)
			if got.Value.String() != tt.want {
				t.Errorf("SlogReplacer() value = %q, want %q", got.Value.String(), tt.want)
			}
		})
	}
}

func TestLogWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	l := slog.New(slog.NewTextHandler(&buf, nil))
	w := NewSlogWriter(l)

	input := "first line\n\nsecond line\n"

	n, err := w.Write([]byte(input))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if n != len(input) {
		t.Errorf("Write() = %d, want %d", n, len(input))
	}

	out := buf.String()
	if !strings.Contains(out, "first line") || !strings.Contains(out, "second line") {
		t.Errorf("log output missing lines:\n%s", out)
	}

	// The blank line between the two must not produce an empty record.
	if got := strings.Count(out, "msg="); got != 2 {
		t.Errorf("log records = %d, want 2", got)
	}
}
