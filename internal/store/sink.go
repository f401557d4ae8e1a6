// Package store is the time-series write path for sensor readings: a
// Postgres table via pgx with an in-memory ring buffer that keeps status and
// history queries answering when the database is unreachable. Degraded mode
// is entered on the first failed write and left on the next successful one;
// the flag is surfaced through health and status reporting.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"pumphub/internal/telemetry"
	"pumphub/pkg/utils"
)

const schema = `
CREATE TABLE IF NOT EXISTS sensor_readings (
	id             BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	device_id      TEXT NOT NULL,
	captured_at    TIMESTAMPTZ NOT NULL,
	water_level    DOUBLE PRECISION NOT NULL,
	temperature    DOUBLE PRECISION NOT NULL,
	current_draw   DOUBLE PRECISION NOT NULL,
	flow_rate      DOUBLE PRECISION NOT NULL,
	pump_on        BOOLEAN NOT NULL,
	vibration_x    DOUBLE PRECISION NOT NULL,
	vibration_y    DOUBLE PRECISION NOT NULL,
	vibration_z    DOUBLE PRECISION NOT NULL,
	vibration_rms  DOUBLE PRECISION NOT NULL,
	uptime_seconds BIGINT NOT NULL,
	free_heap      BIGINT NOT NULL,
	rssi           INTEGER NOT NULL,
	efficiency     DOUBLE PRECISION NOT NULL
);
CREATE INDEX IF NOT EXISTS sensor_readings_captured_at_idx
	ON sensor_readings (captured_at DESC);
`

const insertReading = `
INSERT INTO sensor_readings (
	device_id, captured_at, water_level, temperature, current_draw, flow_rate,
	pump_on, vibration_x, vibration_y, vibration_z, vibration_rms,
	uptime_seconds, free_heap, rssi, efficiency
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
`

const selectSince = `
SELECT device_id, captured_at, water_level, temperature, current_draw, flow_rate,
	pump_on, vibration_x, vibration_y, vibration_z, vibration_rms,
	uptime_seconds, free_heap, rssi, efficiency
FROM sensor_readings
WHERE captured_at >= $1
ORDER BY captured_at ASC
`

// Sink writes readings durably and answers bounded history queries.
type Sink struct {
	l    *slog.Logger
	pool *pgxpool.Pool
	ring *RingBuffer

	degraded atomic.Bool
}

// New creates a sink over the given pool. The ring buffer is always
// populated so the latest-reading projection works even before the first
// durable write succeeds.
func New(l *slog.Logger, pool *pgxpool.Pool, ringCapacity int) *Sink {
	return &Sink{
		l:    l.With(slog.String("component", "store")),
		pool: pool,
		ring: NewRingBuffer(ringCapacity),
	}
}

// EnsureSchema creates the readings table and index if missing.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure sensor_readings schema: %w", err)
	}

	return nil
}

// Write stores one reading. The ring buffer is updated first so a durable
// failure still leaves the reading queryable; the error is returned for
// logging but the caller treats it as best effort.
func (s *Sink) Write(ctx context.Context, r telemetry.SensorReading) error {
	s.ring.Push(r)

	_, err := s.pool.Exec(ctx, insertReading,
		r.DeviceID, r.Timestamp, r.WaterLevel, r.Temperature, r.Current, r.FlowRate,
		r.PumpOn, r.Vibration.X, r.Vibration.Y, r.Vibration.Z, r.Vibration.RMS,
		r.UptimeSeconds, r.FreeHeapBytes, r.RSSI, r.Efficiency,
	)
	if err != nil {
		if s.degraded.CompareAndSwap(false, true) {
			s.l.Warn("durable store unavailable, serving from ring buffer", utils.ErrAttr(err))
		}

		return fmt.Errorf("insert reading: %w", err)
	}

	if s.degraded.CompareAndSwap(true, false) {
		s.l.Info("durable store recovered")
	}

	return nil
}

// Recent returns readings captured within the given window, oldest first.
// In degraded mode, or when the query itself fails, it serves the ring
// buffer instead of failing outright.
func (s *Sink) Recent(ctx context.Context, window time.Duration) ([]telemetry.SensorReading, error) {
	since := time.Now().Add(-window)

	if s.degraded.Load() {
		return s.ring.Since(since), nil
	}

	rows, err := s.pool.Query(ctx, selectSince, since)
	if err != nil {
		s.l.Warn("history query failed, serving from ring buffer", utils.ErrAttr(err))

		return s.ring.Since(since), nil
	}
	defer rows.Close()

	var result []telemetry.SensorReading

	for rows.Next() {
		var r telemetry.SensorReading

		err := rows.Scan(&r.DeviceID, &r.Timestamp, &r.WaterLevel, &r.Temperature,
			&r.Current, &r.FlowRate, &r.PumpOn,
			&r.Vibration.X, &r.Vibration.Y, &r.Vibration.Z, &r.Vibration.RMS,
			&r.UptimeSeconds, &r.FreeHeapBytes, &r.RSSI, &r.Efficiency)
		if err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}

		result = append(result, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate readings: %w", err)
	}

	return result, nil
}

// Latest returns the most recent reading seen by the sink.
func (s *Sink) Latest() (telemetry.SensorReading, bool) {
	return s.ring.Latest()
}

// Available reports whether the durable store answers a ping.
func (s *Sink) Available(ctx context.Context) bool {
	return s.pool.Ping(ctx) == nil
}

// Degraded reports whether writes are currently falling back to memory.
func (s *Sink) Degraded() bool {
	return s.degraded.Load()
}
