package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pumphub/internal/telemetry"
)

// Core is the slice of the orchestration core the API needs.
type Core interface {
	StatusReport() telemetry.StatusReport
	Config() telemetry.OperatingConfig
	LatestReading() (telemetry.SensorReading, bool)
	HandleCommand(ctx context.Context, action telemetry.PumpAction, source telemetry.CommandSource) telemetry.CommandResult
}

// History is the read side of the time-series sink.
type History interface {
	Recent(ctx context.Context, window time.Duration) ([]telemetry.SensorReading, error)
	Available(ctx context.Context) bool
	Degraded() bool
}

// Transport reports the device transport connection state.
type Transport interface {
	Connected() bool
}

// Subscriber upgrades HTTP requests into fan-out subscriptions.
type Subscriber interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

// Handler serves the hub's HTTP API.
type Handler struct {
	l         *slog.Logger
	core      Core
	history   History
	transport Transport
	gateway   Subscriber
}

// NewHandler creates the API handler.
func NewHandler(l *slog.Logger, core Core, history History, transport Transport, gateway Subscriber) *Handler {
	return &Handler{
		l:         l.With(slog.String("component", "api")),
		core:      core,
		history:   history,
		transport: transport,
		gateway:   gateway,
	}
}

// Router builds the chi router with the shared middleware stack.
func (h *Handler) Router() *chi.Mux {
	mw := NewMiddlewareHandler(h.l)

	r := chi.NewRouter()
	r.Use(mw.RequestIDMiddleware)
	r.Use(mw.LoggerMiddleware)
	r.Use(mw.RecoveryMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", ErrorHandler(h.Ping))
		r.Get("/version", ErrorHandler(h.Version))
		r.Get("/health", ErrorHandler(h.Health))
		r.Get("/status", ErrorHandler(h.Status))
		r.Get("/config", ErrorHandler(h.OperatingConfig))
		r.Get("/readings/latest", ErrorHandler(h.LatestReading))
		r.Get("/readings", ErrorHandler(h.Readings))
		r.Post("/pump", ErrorHandler(h.ControlPump))
	})

	r.Get("/ws", h.gateway.ServeWS)

	return r
}
