package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type EnvKey string

const (
	EnvPort      EnvKey = "PORT"
	EnvDataDir   EnvKey = "DATA_DIR"
	EnvLogLevel  EnvKey = "LOG_LEVEL"
	EnvLogToFile EnvKey = "LOG_TO_FILE"

	EnvDBHost    EnvKey = "DB_HOST"
	EnvDBPort    EnvKey = "DB_PORT"
	EnvDBName    EnvKey = "DB_NAME"
	EnvDBUser    EnvKey = "DB_USER"
	EnvDBPass    EnvKey = "DB_PASSWORD"
	EnvDBSSLMode EnvKey = "DB_SSLMODE"

	EnvMQTTEmbedded   EnvKey = "MQTT_EMBEDDED"
	EnvMQTTBrokerPort EnvKey = "MQTT_SERVER_PORT"

	EnvMQTTBroker         EnvKey = "MQTT_BROKER"
	EnvMQTTClientID       EnvKey = "MQTT_CLIENT_ID"
	EnvMQTTUsername       EnvKey = "MQTT_USERNAME"
	EnvMQTTPassword       EnvKey = "MQTT_PASSWORD"
	EnvMQTTTelemetryTopic EnvKey = "MQTT_TELEMETRY_TOPIC"
	EnvMQTTControlTopic   EnvKey = "MQTT_CONTROL_TOPIC"

	EnvTelegramToken  EnvKey = "TELEGRAM_TOKEN"
	EnvTelegramChatID EnvKey = "TELEGRAM_CHAT_ID"

	EnvAutoMode      EnvKey = "AUTO_MODE"
	EnvLowWater      EnvKey = "LOW_WATER_THRESHOLD"
	EnvHighWater     EnvKey = "HIGH_WATER_THRESHOLD"
	EnvLeakDrop      EnvKey = "LEAK_DROP_THRESHOLD"
	EnvVibrationLim  EnvKey = "VIBRATION_LIMIT"
	EnvCurrentLim    EnvKey = "CURRENT_LIMIT"
	EnvAlertCooldown EnvKey = "ALERT_COOLDOWN"
	EnvRingCapacity  EnvKey = "RING_CAPACITY"
)

// Config holds all process configuration, resolved once at startup.
type Config struct {
	Port      int
	DataDir   string
	Database  string
	LogLevel  slog.Leveler
	LogOutput io.Writer

	// Embedded MQTT broker (bench mode)
	MQTTEmbedded   bool
	MQTTBrokerPort int

	// MQTT client configuration
	MQTTBroker         string
	MQTTClientID       string
	MQTTUsername       string
	MQTTPassword       string
	MQTTTelemetryTopic string
	MQTTControlTopic   string

	// Telegram bot configuration; empty token disables the channel
	TelegramToken  string
	TelegramChatID int64

	// Control and alert tuning
	AutoMode           bool
	LowWaterThreshold  float64
	HighWaterThreshold float64
	LeakDropThreshold  float64
	VibrationLimit     float64
	CurrentLimit       float64
	AlertCooldown      time.Duration
	RingCapacity       int
}

func New() (*Config, error) {
	dataDir := getStringEnv(EnvDataDir, "data")

	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	var logOutput io.Writer = os.Stdout

	if getBoolEnv(EnvLogToFile, false) {
		logPath := filepath.Join(dataDir, "hub.log")

		f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}

		logOutput = f
	}

	host := getStringEnv(EnvDBHost, "localhost")
	port := getIntEnv(EnvDBPort, 5432)
	dbName := getStringEnv(EnvDBName, "pumphub")
	user := getStringEnv(EnvDBUser, "pumphub")
	password := getStringEnv(EnvDBPass, "")
	sslmode := getStringEnv(EnvDBSSLMode, "disable")

	dbConnString := fmt.Sprintf(
		"postgresql://%s:%s@%s/%s?sslmode=%s",
		url.QueryEscape(user),
		url.QueryEscape(password),
		net.JoinHostPort(host, strconv.Itoa(port)),
		dbName, sslmode,
	)

	cfg := &Config{
		Port:      getIntEnv(EnvPort, 8080),
		DataDir:   dataDir,
		Database:  dbConnString,
		LogLevel:  getLogLevelEnv(EnvLogLevel, slog.LevelInfo),
		LogOutput: logOutput,

		MQTTEmbedded:   getBoolEnv(EnvMQTTEmbedded, false),
		MQTTBrokerPort: getIntEnv(EnvMQTTBrokerPort, 1883),

		MQTTBroker:         getStringEnv(EnvMQTTBroker, "tcp://127.0.0.1:1883"),
		MQTTClientID:       getStringEnv(EnvMQTTClientID, "pumphub"),
		MQTTUsername:       getStringEnv(EnvMQTTUsername, ""),
		MQTTPassword:       getStringEnv(EnvMQTTPassword, ""),
		MQTTTelemetryTopic: getStringEnv(EnvMQTTTelemetryTopic, "pump/telemetry"),
		MQTTControlTopic:   getStringEnv(EnvMQTTControlTopic, "pump/control"),

		TelegramToken:  getStringEnv(EnvTelegramToken, ""),
		TelegramChatID: getInt64Env(EnvTelegramChatID, 0),

		AutoMode:           getBoolEnv(EnvAutoMode, true),
		LowWaterThreshold:  getFloatEnv(EnvLowWater, 20),
		HighWaterThreshold: getFloatEnv(EnvHighWater, 95),
		LeakDropThreshold:  getFloatEnv(EnvLeakDrop, 1.0),
		VibrationLimit:     getFloatEnv(EnvVibrationLim, 2.5),
		CurrentLimit:       getFloatEnv(EnvCurrentLim, 5.0),
		AlertCooldown:      getDurationEnv(EnvAlertCooldown, 10*time.Minute),
		RingCapacity:       getIntEnv(EnvRingCapacity, 300),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.LowWaterThreshold >= c.HighWaterThreshold {
		return fmt.Errorf("low water threshold %.1f must be below high threshold %.1f",
			c.LowWaterThreshold, c.HighWaterThreshold)
	}

	if c.LeakDropThreshold <= 0 {
		return errors.New("leak drop threshold must be positive")
	}

	if c.AlertCooldown <= 0 {
		return errors.New("alert cooldown must be positive")
	}

	if c.RingCapacity <= 0 {
		return errors.New("ring capacity must be positive")
	}

	if c.TelegramToken != "" && c.TelegramChatID == 0 {
		return errors.New("TELEGRAM_CHAT_ID is required when TELEGRAM_TOKEN is set")
	}

	return nil
}

func (c *Config) Close() error {
	if f, ok := c.LogOutput.(*os.File); ok {
		if f != os.Stdout && f != os.Stderr {
			return f.Close()
		}
	}

	return nil
}

func getStringEnv(key EnvKey, defaultVal string) string {
	val, exists := os.LookupEnv(string(key))
	if !exists {
		return defaultVal
	}

	return val
}

func getBoolEnv(key EnvKey, defaultVal bool) bool {
	val, exists := os.LookupEnv(string(key))
	if !exists {
		return defaultVal
	}

	switch strings.ToLower(val) {
	case "true", "1":
		return true
	default:
		return false
	}
}

func getIntEnv(key EnvKey, defaultVal int) int {
	val, exists := os.LookupEnv(string(key))
	if !exists {
		return defaultVal
	}

	if intVal, err := strconv.Atoi(val); err == nil {
		return intVal
	}

	return defaultVal
}

func getInt64Env(key EnvKey, defaultVal int64) int64 {
	val, exists := os.LookupEnv(string(key))
	if !exists {
		return defaultVal
	}

	if intVal, err := strconv.ParseInt(val, 10, 64); err == nil {
		return intVal
	}

	return defaultVal
}

func getFloatEnv(key EnvKey, defaultVal float64) float64 {
	val, exists := os.LookupEnv(string(key))
	if !exists {
		return defaultVal
	}

	if floatVal, err := strconv.ParseFloat(val, 64); err == nil {
		return floatVal
	}

	return defaultVal
}

func getDurationEnv(key EnvKey, defaultVal time.Duration) time.Duration {
	val, exists := os.LookupEnv(string(key))
	if !exists {
		return defaultVal
	}

	if d, err := time.ParseDuration(val); err == nil {
		return d
	}

	return defaultVal
}

func getLogLevelEnv(key EnvKey, defaultVal slog.Leveler) slog.Leveler {
	val, exists := os.LookupEnv(string(key))
	if !exists {
		return defaultVal
	}

	switch strings.ToUpper(val) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}

	return defaultVal
}
