package api

import (
	"net/http"
	"strconv"
	"time"

	"pumphub/internal/telemetry"
	"pumphub/pkg/utils"
)

const (
	defaultHistoryMinutes = 60
	maxHistoryMinutes     = 24 * 60
)

// PingResponse is the liveness reply.
type PingResponse struct {
	Message string `json:"message"`
}

// HealthResponse reports collaborator health.
type HealthResponse struct {
	Database      bool `json:"database"`
	MQTT          bool `json:"mqtt"`
	StoreDegraded bool `json:"storeDegraded"`
}

// LatestReadingResponse wraps the latest reading; Available is false when no
// telemetry has arrived yet, mirroring the offline status projection.
type LatestReadingResponse struct {
	Available bool                     `json:"available"`
	Reading   *telemetry.SensorReading `json:"reading,omitempty"`
}

// ReadingsResponse is a bounded history window.
type ReadingsResponse struct {
	WindowMinutes int                       `json:"windowMinutes"`
	Degraded      bool                      `json:"degraded"`
	Readings      []telemetry.SensorReading `json:"readings"`
}

// PumpControlRequest is the control endpoint body.
type PumpControlRequest struct {
	Action string `json:"action"`
}

func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) error {
	RespondJSON(w, r, http.StatusOK, PingResponse{Message: "Pong"})

	return nil
}

func (h *Handler) Version(w http.ResponseWriter, r *http.Request) error {
	RespondJSON(w, r, http.StatusOK, utils.GetBuildInfo())

	return nil
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) error {
	resp := HealthResponse{
		Database:      h.history.Available(r.Context()),
		MQTT:          h.transport.Connected(),
		StoreDegraded: h.history.Degraded(),
	}

	code := http.StatusOK
	if !resp.Database || !resp.MQTT {
		code = http.StatusServiceUnavailable
	}

	RespondJSON(w, r, code, resp)

	return nil
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) error {
	RespondJSON(w, r, http.StatusOK, h.core.StatusReport())

	return nil
}

func (h *Handler) OperatingConfig(w http.ResponseWriter, r *http.Request) error {
	RespondJSON(w, r, http.StatusOK, h.core.Config())

	return nil
}

func (h *Handler) LatestReading(w http.ResponseWriter, r *http.Request) error {
	reading, ok := h.core.LatestReading()
	if !ok {
		// Empty projection instead of an error when nothing has arrived.
		RespondJSON(w, r, http.StatusOK, LatestReadingResponse{Available: false})

		return nil
	}

	RespondJSON(w, r, http.StatusOK, LatestReadingResponse{Available: true, Reading: utils.Ptr(reading)})

	return nil
}

func (h *Handler) Readings(w http.ResponseWriter, r *http.Request) error {
	minutes := defaultHistoryMinutes

	if raw := r.URL.Query().Get("minutes"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return NewError(http.StatusBadRequest, "minutes must be a positive integer")
		}

		minutes = min(parsed, maxHistoryMinutes)
	}

	readings, err := h.history.Recent(r.Context(), time.Duration(minutes)*time.Minute)
	if err != nil {
		return err
	}

	if readings == nil {
		readings = []telemetry.SensorReading{}
	}

	RespondJSON(w, r, http.StatusOK, ReadingsResponse{
		WindowMinutes: minutes,
		Degraded:      h.history.Degraded(),
		Readings:      readings,
	})

	return nil
}

func (h *Handler) ControlPump(w http.ResponseWriter, r *http.Request) error {
	req, err := DecodeJSON[PumpControlRequest](r)
	if err != nil {
		return err
	}

	result := h.core.HandleCommand(r.Context(), telemetry.PumpAction(req.Action), telemetry.SourceRemote)

	code := http.StatusOK
	if !result.Success {
		code = http.StatusConflict
	}

	RespondJSON(w, r, code, result)

	return nil
}
