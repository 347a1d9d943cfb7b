package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Load reads and parses the TOML configuration file, applying defaults and
// expanding environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	expandEnvVars(&cfg)

	return &cfg, nil
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() []error {
	var errs []error

	if c.Logging.Level != "" {
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[strings.ToLower(c.Logging.Level)] {
			errs = append(errs, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
		}
	}
	if c.Logging.Format != "" {
		validFormats := map[string]bool{"json": true, "text": true}
		if !validFormats[strings.ToLower(c.Logging.Format)] {
			errs = append(errs, fmt.Errorf("invalid logging.format: %s (expected: json, text)", c.Logging.Format))
		}
	}

	if c.Scheduler.DefaultTimezone != "" {
		if _, err := time.LoadLocation(c.Scheduler.DefaultTimezone); err != nil {
			errs = append(errs, fmt.Errorf("invalid scheduler.default_timezone: %s", c.Scheduler.DefaultTimezone))
		}
	}

	if c.Bridge.Command == "" {
		errs = append(errs, fmt.Errorf("bridge.command is required"))
	}
	if c.Bridge.ExecuteTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("bridge.execute_timeout_seconds must be >= 0"))
	}
	if c.Bridge.Restart {
		if c.Bridge.RestartMaxAttempts < 1 {
			errs = append(errs, fmt.Errorf("bridge.restart_max_attempts must be >= 1 when bridge.restart=true"))
		}
		if c.Bridge.RestartInitialBackoffMS < 1 {
			errs = append(errs, fmt.Errorf("bridge.restart_initial_backoff_ms must be >= 1 when bridge.restart=true"))
		}
		if c.Bridge.RestartMaxBackoffMS < c.Bridge.RestartInitialBackoffMS {
			errs = append(errs, fmt.Errorf("bridge.restart_max_backoff_ms must be >= bridge.restart_initial_backoff_ms"))
		}
	}

	if c.Gateway.ListenAddr == "" {
		errs = append(errs, fmt.Errorf("gateway.listen_addr is required"))
	}

	if w := c.Decision.Weights; !w.IsZero() {
		sum := w.SkillSufficiency + w.TaskComplexity + w.RecentSuccessRate + w.ToolBenefit + w.Confidence
		if sum < 0.999 || sum > 1.001 {
			errs = append(errs, fmt.Errorf("decision.weights must sum to 1.0 (got %.3f)", sum))
		}
	}

	if c.Workers.PoolSize < 0 {
		errs = append(errs, fmt.Errorf("workers.pool_size must be >= 0"))
	}
	if c.Workers.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("workers.queue_size must be >= 0"))
	}

	seen := make(map[string]bool, len(c.Automations))
	for i, a := range c.Automations {
		if a.ID == "" {
			errs = append(errs, fmt.Errorf("automations[%d].id is required", i))
			continue
		}
		if seen[a.ID] {
			errs = append(errs, fmt.Errorf("duplicate automation id: %s", a.ID))
		}
		seen[a.ID] = true
		if a.Time == "" {
			errs = append(errs, fmt.Errorf("automations[%d] (%s): time is required", i, a.ID))
		}
		if len(a.Days) == 0 {
			errs = append(errs, fmt.Errorf("automations[%d] (%s): days is required", i, a.ID))
		}
	}

	if c.Channels.Telegram.Enabled {
		if c.Channels.Telegram.Token == "" {
			errs = append(errs, fmt.Errorf("channels.telegram.token is required when telegram is enabled"))
		} else if err := validateTelegramToken(c.Channels.Telegram.Token); err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}

func validateTelegramToken(token string) error {
	parts := strings.Split(token, ":")
	if len(parts) != 2 {
		return fmt.Errorf("telegram token has invalid format (expected <bot_id>:<token>, got: %s)", maskSecret(token))
	}

	botID := parts[0]
	if len(botID) < 3 || len(botID) > 15 {
		return fmt.Errorf("telegram token has invalid bot ID length (expected 3-15 digits, got %d)", len(botID))
	}
	for _, r := range botID {
		if r < '0' || r > '9' {
			return fmt.Errorf("telegram token has invalid bot ID (expected digits only, got: %s)", botID)
		}
	}

	if n := len(parts[1]); n < 10 || n > 50 {
		return fmt.Errorf("telegram token has invalid secret length (expected 10-50 characters, got %d)", n)
	}

	return nil
}

func applyDefaults(c *Config) {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.Scheduler.DefaultTimezone == "" {
		c.Scheduler.DefaultTimezone = "UTC"
	}

	if c.Bridge.Command == "" {
		c.Bridge.Command = "guruworker"
	}
	if c.Bridge.ExecuteTimeoutSeconds == 0 {
		c.Bridge.ExecuteTimeoutSeconds = 120
	}
	if c.Bridge.Restart {
		if c.Bridge.RestartMaxAttempts == 0 {
			c.Bridge.RestartMaxAttempts = 5
		}
		if c.Bridge.RestartInitialBackoffMS == 0 {
			c.Bridge.RestartInitialBackoffMS = 500
		}
		if c.Bridge.RestartMaxBackoffMS == 0 {
			c.Bridge.RestartMaxBackoffMS = 30000
		}
	}

	if c.Gateway.ListenAddr == "" {
		c.Gateway.ListenAddr = ":8080"
	}

	if c.Workers.PoolSize == 0 {
		c.Workers.PoolSize = 5
	}
	if c.Workers.QueueSize == 0 {
		c.Workers.QueueSize = 100
	}

	if c.Channels.Telegram.SendTimeoutSeconds == 0 {
		c.Channels.Telegram.SendTimeoutSeconds = 10
	}
}

func expandEnvVars(c *Config) {
	if strings.HasPrefix(c.Channels.Telegram.Token, "${") {
		c.Channels.Telegram.Token = expandEnv(c.Channels.Telegram.Token)
	}
	if strings.HasPrefix(c.Bridge.Command, "${") {
		c.Bridge.Command = expandEnv(c.Bridge.Command)
	}
	if strings.HasPrefix(c.Logging.Output, "${") {
		c.Logging.Output = expandEnv(c.Logging.Output)
	}
}

// expandEnv expands a ${VAR} or ${VAR:default} reference.
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") {
		return s
	}

	end := strings.Index(s, "}")
	if end == -1 {
		return s
	}

	content := s[2:end]
	if parts := strings.SplitN(content, ":", 2); len(parts) == 2 {
		if val := os.Getenv(parts[0]); val != "" {
			return val
		}
		return parts[1]
	}

	return os.Getenv(content)
}
