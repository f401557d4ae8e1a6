package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqttbroker "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"

	"github.com/jackc/pgx/v5/pgxpool"

	"pumphub/internal/api"
	"pumphub/internal/config"
	"pumphub/internal/core"
	"pumphub/internal/gateway"
	"pumphub/internal/ingress"
	"pumphub/internal/notify"
	"pumphub/internal/store"
	"pumphub/pkg/utils"
)

const (
	shutdownTimeout   = 30 * time.Second
	readHeaderTimeout = 5 * time.Second
	schemaTimeout     = 10 * time.Second
)

func main() {
	sigCtx, sigCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer sigCancel()

	cfg, err := config.New()
	if err != nil {
		fatalIfErr(slog.Default(), fmt.Errorf("failed to create config: %w", err))
	}

	defer func() {
		if err := cfg.Close(); err != nil {
			slog.Default().Error("failed to close config", utils.ErrAttr(err))
		}
	}()

	logger := getLogger(cfg)
	logger.Info("starting pump hub", slog.String("build", utils.GetBuildVersion()))

	// Embedded MQTT broker (bench mode, no external infrastructure needed)
	var broker *mqttbroker.Server

	if cfg.MQTTEmbedded {
		mqttAddr := fmt.Sprintf(":%d", cfg.MQTTBrokerPort)

		broker, err = getMQTTServer(logger, mqttAddr)
		fatalIfErr(logger, err)

		go func() {
			logger.Info("embedded MQTT broker listening", slog.String("address", mqttAddr))

			if err := broker.Serve(); err != nil {
				logger.Error("embedded MQTT broker failed", utils.ErrAttr(err))
				sigCancel()
			}
		}()
	}

	// Time-series sink
	pool, err := pgxpool.New(sigCtx, cfg.Database)
	fatalIfErr(logger, err)

	defer pool.Close()

	sink := store.New(logger, pool, cfg.RingCapacity)

	schemaCtx, schemaCancel := context.WithTimeout(sigCtx, schemaTimeout)
	if err := sink.EnsureSchema(schemaCtx); err != nil {
		// The sink degrades to its ring buffer; the hub still starts.
		logger.Warn("could not ensure database schema, starting degraded", utils.ErrAttr(err))
	}

	schemaCancel()

	// Device transport
	adapter, err := ingress.New(logger, ingress.Options{
		BrokerURL:      cfg.MQTTBroker,
		ClientID:       cfg.MQTTClientID,
		Username:       cfg.MQTTUsername,
		Password:       cfg.MQTTPassword,
		TelemetryTopic: cfg.MQTTTelemetryTopic,
		ControlTopic:   cfg.MQTTControlTopic,
	})
	fatalIfErr(logger, err)

	// Notification channel
	var notifier core.Notifier = notify.NewDiscard(logger)

	var bot *notify.Bot

	if cfg.TelegramToken != "" {
		bot, err = notify.New(logger, cfg.TelegramToken, cfg.TelegramChatID)
		fatalIfErr(logger, err)

		notifier = bot
	}

	// Fan-out gateway and orchestration core
	hub := gateway.NewHub(logger)

	orchestrator := core.New(logger, core.Options{
		AutoMode:           cfg.AutoMode,
		LowWaterThreshold:  cfg.LowWaterThreshold,
		HighWaterThreshold: cfg.HighWaterThreshold,
		Tuning: core.Tuning{
			LeakDropThreshold: cfg.LeakDropThreshold,
			VibrationLimit:    cfg.VibrationLimit,
			CurrentLimit:      cfg.CurrentLimit,
			AlertCooldown:     cfg.AlertCooldown,
		},
	}, adapter, sink, notifier, hub)

	hub.SetHandler(orchestrator)
	adapter.SetHandler(orchestrator)

	if bot != nil {
		bot.Bind(orchestrator, orchestrator)

		go bot.Run(sigCtx)
	}

	go hub.Run(sigCtx)

	go func() {
		if err := adapter.Connect(); err != nil {
			logger.Error("failed to connect to MQTT broker", utils.ErrAttr(err))
		}
	}()

	// HTTP server
	apiHandler := api.NewHandler(logger, orchestrator, sink, adapter, hub)

	httpAddr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           apiHandler.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          log.New(utils.NewSlogWriter(logger.With(slog.String("component", "http"))), "", 0),
	}

	go func() {
		logger.Info("http server listening", slog.String("address", httpAddr))

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", utils.ErrAttr(err))
			sigCancel()
		}
	}()

	// Wait for signal (either OS or some failure)
	<-sigCtx.Done()
	logger.Info("received signal, shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", utils.ErrAttr(err))
	}

	logger.Info("disconnecting from MQTT broker...")
	adapter.Disconnect()

	if broker != nil {
		logger.Info("embedded MQTT broker shutting down...")

		if err := broker.Close(); err != nil {
			logger.Error("embedded MQTT broker shutdown failed", utils.ErrAttr(err))
		}
	}

	logger.Info("hub exited gracefully")
}

func getMQTTServer(l *slog.Logger, addr string) (*mqttbroker.Server, error) {
	server := mqttbroker.New(&mqttbroker.Options{
		Logger: l.With(slog.String("component", "mqtt-broker")),
	})
	tcp := listeners.NewTCP(listeners.Config{ID: "tcp", Address: addr})

	if err := server.AddListener(tcp); err != nil {
		return nil, err
	}

	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, err
	}

	return server, nil
}

func getLogger(cfg *config.Config) *slog.Logger {
	logOptions := slog.HandlerOptions{
		Level:       cfg.LogLevel,
		ReplaceAttr: utils.SlogReplacer,
	}

	handler := slog.NewJSONHandler(cfg.LogOutput, &logOptions)

	return slog.New(handler).With(slog.String("version", utils.GetVersionShort()))
}

func fatalIfErr(l *slog.Logger, err error) {
	if err == nil {
		return
	}

	l.Error("error", utils.ErrAttr(err))
	os.Exit(1)
}
