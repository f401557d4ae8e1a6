package core

import (
	"context"
	"fmt"
	"log/slog"

	"pumphub/internal/telemetry"
	"pumphub/pkg/utils"
)

// HandleCommand processes one remote control command, regardless of whether
// it arrived from the chat bot, a dashboard subscriber or the HTTP API.
// The result is always returned to the originator; nothing is thrown past
// this boundary.
//
// Two gating rules apply uniformly: a manual pump toggle while auto mode is
// active is rejected without side effects, and a mode change always succeeds
// even if the corresponding device command cannot be delivered.
func (c *Core) HandleCommand(ctx context.Context, action telemetry.PumpAction, source telemetry.CommandSource) telemetry.CommandResult {
	if !action.Valid() {
		return telemetry.CommandResult{
			Success: false,
			Message: fmt.Sprintf("unknown action %q", string(action)),
		}
	}

	switch action {
	case telemetry.ActionAuto, telemetry.ActionManual:
		return c.setMode(ctx, action, source)
	default:
		return c.manualToggle(ctx, action, source)
	}
}

// setMode switches auto mode on or off, relays the mode to the device and
// broadcasts the updated config to dashboard subscribers.
func (c *Core) setMode(ctx context.Context, action telemetry.PumpAction, source telemetry.CommandSource) telemetry.CommandResult {
	auto := action == telemetry.ActionAuto

	c.mu.Lock()
	c.cfg.AutoMode = auto
	c.cfg.LastCommandSource = source
	cfg := c.cfg
	c.mu.Unlock()

	if err := c.commander.PublishCommand(ctx, action); err != nil {
		// Mode is hub state; the device command is best effort.
		c.l.Error("mode command publish failed", slog.String("action", string(action)), utils.ErrAttr(err))
	}

	c.broadcaster.Broadcast(telemetry.NewEvent(telemetry.EventSystemConfig, cfg))

	c.l.Info("operating mode changed",
		slog.Bool("autoMode", auto),
		slog.String("source", string(source)))

	mode := "manual"
	if auto {
		mode = "automatic"
	}

	return telemetry.CommandResult{
		Success: true,
		Message: "mode set to " + mode,
	}
}

// manualToggle handles an explicit on/off request.
func (c *Core) manualToggle(ctx context.Context, action telemetry.PumpAction, source telemetry.CommandSource) telemetry.CommandResult {
	c.mu.Lock()
	autoMode := c.cfg.AutoMode
	c.mu.Unlock()

	if autoMode {
		return telemetry.CommandResult{
			Success: false,
			Message: "pump is under automatic control; switch to manual mode first",
		}
	}

	if err := c.commander.PublishCommand(ctx, action); err != nil {
		c.l.Error("manual pump command failed", slog.String("action", string(action)), utils.ErrAttr(err))

		return telemetry.CommandResult{
			Success: false,
			Message: "failed to deliver command to device",
		}
	}

	c.mu.Lock()
	c.cfg.LastCommandSource = source
	c.mu.Unlock()

	c.broadcaster.Broadcast(telemetry.NewEvent(telemetry.EventPumpStatus, telemetry.PumpCommand{
		Action: action,
		Source: source,
	}))

	c.l.Info("manual pump command issued",
		slog.String("action", string(action)),
		slog.String("source", string(source)))

	return telemetry.CommandResult{
		Success: true,
		Message: "pump switched " + string(action),
	}
}
