package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/titanous/json5"
)

// Load reads config from a json5 file, then overlays env vars. A missing
// file is not an error: the defaults plus env are a complete configuration.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	// Secrets are env-only.
	envStr("PAGEBOT_PAGE_ACCESS_TOKEN", &c.Messenger.PageAccessToken)
	envStr("PAGEBOT_VERIFY_TOKEN", &c.Messenger.VerifyToken)
	envStr("PAGEBOT_GEMINI_API_KEY", &c.AI.APIKey)
	envStr("PAGEBOT_POSTGRES_DSN", &c.Store.PostgresDSN)
	envStr("PAGEBOT_TELEGRAM_TOKEN", &c.Telegram.Token)
	envStr("PAGEBOT_GATEWAY_TOKEN", &c.Gateway.Token)

	envStr("PAGEBOT_HOST", &c.Gateway.Host)
	if v := os.Getenv("PAGEBOT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Gateway.Port = port
		}
	}
	envStr("PAGEBOT_STORE_BACKEND", &c.Store.Backend)
	envStr("PAGEBOT_STORE_PATH", &c.Store.Path)

	// Auto-enable the Telegram channel when a token arrives via env.
	if c.Telegram.Token != "" {
		c.Telegram.Enabled = true
	}

	// A DSN implies the postgres backend unless the file backend was
	// requested explicitly.
	if c.Store.PostgresDSN != "" && c.Store.Backend == "" {
		c.Store.Backend = "postgres"
	}
}

// Validate checks cross-field requirements before startup.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "", "file":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the file backend")
		}
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("PAGEBOT_POSTGRES_DSN is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port %d out of range", c.Gateway.Port)
	}
	return nil
}
