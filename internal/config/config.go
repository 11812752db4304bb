// Package config holds the pagebot runtime configuration: a json5 config
// file overlaid with environment variables. Secrets (tokens, API keys,
// DSNs) are env-only and never serialized back to disk.
package config

import "time"

// Config is the root configuration for the pagebot gateway.
type Config struct {
	Gateway   GatewayConfig   `json:"gateway"`
	Messenger MessengerConfig `json:"messenger"`
	Telegram  TelegramConfig  `json:"telegram,omitempty"`
	AI        AIConfig        `json:"ai"`
	Store     StoreConfig     `json:"store"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
}

// GatewayConfig configures the HTTP listener.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`

	// Token protects the dashboard API (bearer auth). Empty = open (dev).
	// From env PAGEBOT_GATEWAY_TOKEN only.
	Token string `json:"-"`

	// RateLimitRPS bounds webhook POSTs per remote address.
	// 0 = default, negative = disabled.
	RateLimitRPS float64 `json:"rate_limit_rps,omitempty"`
}

// MessengerConfig configures the Facebook Page channel.
type MessengerConfig struct {
	// PageAccessToken authenticates Graph API sends.
	// From env PAGEBOT_PAGE_ACCESS_TOKEN only.
	PageAccessToken string `json:"-"`

	// VerifyToken is matched against hub.verify_token on webhook GETs.
	// From env PAGEBOT_VERIFY_TOKEN only.
	VerifyToken string `json:"-"`

	// GraphBase overrides the Graph API base URL (tests, API version bumps).
	GraphBase string `json:"graph_base,omitempty"`

	// PacingMS is the delay between successive reply parts to one recipient.
	PacingMS int `json:"pacing_ms,omitempty"`
}

// TelegramConfig configures the optional Telegram mirror channel.
// The channel starts only when a token is present.
type TelegramConfig struct {
	// From env PAGEBOT_TELEGRAM_TOKEN only.
	Token string `json:"-"`

	Enabled bool `json:"enabled,omitempty"`
}

// AIConfig configures the generative fallback endpoint.
type AIConfig struct {
	// From env PAGEBOT_GEMINI_API_KEY only.
	APIKey string `json:"-"`

	APIBase    string `json:"api_base,omitempty"`
	Model      string `json:"model,omitempty"`
	TimeoutSec int    `json:"timeout_sec,omitempty"`

	// Apology copy returned to chat users when the upstream call degrades.
	ApologyUnavailable string `json:"apology_unavailable,omitempty"`
	ApologyMalformed   string `json:"apology_malformed,omitempty"`
}

// Timeout returns the fallback call ceiling as a duration.
func (a AIConfig) Timeout() time.Duration {
	sec := a.TimeoutSec
	if sec <= 0 {
		sec = 15
	}
	return time.Duration(sec) * time.Second
}

// StoreConfig selects the knowledge persistence backend.
type StoreConfig struct {
	// Backend is "file" (default) or "postgres".
	Backend string `json:"backend,omitempty"`

	// Path locates the local JSON document (file backend).
	Path string `json:"path,omitempty"`

	// WatchFile reloads the knowledge mirror when the document changes on
	// disk (external dashboard edits). File backend only.
	WatchFile bool `json:"watch_file,omitempty"`

	// From env PAGEBOT_POSTGRES_DSN only.
	PostgresDSN string `json:"-"`
}

// TelemetryConfig configures OpenTelemetry OTLP trace export.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`
	Endpoint    string            `json:"endpoint,omitempty"`     // e.g. "localhost:4317"
	Protocol    string            `json:"protocol,omitempty"`     // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`     // skip TLS (local collectors)
	ServiceName string            `json:"service_name,omitempty"` // default "pagebot"
	Headers     map[string]string `json:"headers,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			RateLimitRPS: 10,
		},
		Messenger: MessengerConfig{
			GraphBase: "https://graph.facebook.com/v19.0",
			PacingMS:  500,
		},
		AI: AIConfig{
			APIBase:            "https://generativelanguage.googleapis.com/v1beta",
			Model:              "gemini-1.5-flash-latest",
			TimeoutSec:         15,
			ApologyUnavailable: "Sorry, I can't reach my assistant right now. Please try again in a moment.",
			ApologyMalformed:   "Sorry, I couldn't come up with an answer for that. Please try rephrasing.",
		},
		Store: StoreConfig{
			Backend:   "file",
			Path:      "pagebot.json",
			WatchFile: true,
		},
	}
}
