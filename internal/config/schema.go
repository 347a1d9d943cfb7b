// Package config provides configuration loading and validation for gurucore.
// It supports TOML configuration files with environment variable expansion,
// default values, and validation.
//
// Configuration structure:
//   - [logging]: Logging level, format, and output
//   - [scheduler]: Default timezone for automation triggers
//   - [bridge]: Worker subprocess command and supervision settings
//   - [gateway]: HTTP listen address
//   - [decision]: Decision engine factor weights
//   - [workers]: Worker pool sizing
//   - [channels]: Channel configurations (Telegram)
//
// Environment variables can be referenced using ${VAR} or ${VAR:default}
// syntax, e.g. token = "${TELEGRAM_BOT_TOKEN}".
package config

import "github.com/floguru/gurucore/internal/decision"

// Config represents the main application configuration.
type Config struct {
	Logging     LoggingConfig      `toml:"logging"`
	Scheduler   SchedulerConfig    `toml:"scheduler"`
	Bridge      BridgeConfig       `toml:"bridge"`
	Gateway     GatewayConfig      `toml:"gateway"`
	Decision    DecisionConfig     `toml:"decision"`
	Workers     WorkersConfig      `toml:"workers"`
	Channels    ChannelsConfig     `toml:"channels"`
	Automations []AutomationConfig `toml:"automations"`
}

// AutomationConfig declares one scheduled automation.
type AutomationConfig struct {
	ID       string   `toml:"id"`
	Name     string   `toml:"name"`
	Guru     string   `toml:"guru"`
	Task     string   `toml:"task"`
	Time     string   `toml:"time"`
	Days     []string `toml:"days"`
	Timezone string   `toml:"timezone"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// SchedulerConfig configures the automation scheduler.
type SchedulerConfig struct {
	DefaultTimezone string `toml:"default_timezone"`
}

// BridgeConfig configures the worker subprocess bridge.
type BridgeConfig struct {
	Command                 string   `toml:"command"`
	Args                    []string `toml:"args"`
	ExecuteTimeoutSeconds   int      `toml:"execute_timeout_seconds"`
	Restart                 bool     `toml:"restart"`
	RestartMaxAttempts      int      `toml:"restart_max_attempts"`
	RestartInitialBackoffMS int      `toml:"restart_initial_backoff_ms"`
	RestartMaxBackoffMS     int      `toml:"restart_max_backoff_ms"`
}

// GatewayConfig configures the HTTP surface.
type GatewayConfig struct {
	ListenAddr     string `toml:"listen_addr"`
	MetricsEnabled bool   `toml:"metrics_enabled"`
}

// DecisionConfig overrides the decision engine factor weights. A zero value
// leaves the built-in weights in place.
type DecisionConfig struct {
	Weights decision.Weights `toml:"weights"`
}

// WorkersConfig configures the worker pool.
type WorkersConfig struct {
	PoolSize  int `toml:"pool_size"`
	QueueSize int `toml:"queue_size"`
}

// ChannelsConfig holds per-channel configuration.
type ChannelsConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

// TelegramConfig configures the Telegram channel.
type TelegramConfig struct {
	Enabled            bool     `toml:"enabled"`
	Token              string   `toml:"token"`
	AllowedUsers       []string `toml:"allowed_users"`
	SendTimeoutSeconds int      `toml:"send_timeout_seconds"`
}
