// Package config assembles the console client settings from defaults, an
// optional JSON file and command-line flags, in that order of precedence.
package config

import "time"

// Config holds runtime settings for the console client.
type Config struct {
	// ServerBaseURL is the HTTP API root, including the /api base path.
	ServerBaseURL string
	// RealtimeURL is the websocket push endpoint.
	RealtimeURL string

	RequestTimeout       time.Duration
	HeartbeatInterval    time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int

	// StorePath is the sqlite file holding the persisted session.
	StorePath string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerBaseURL = "http://127.0.0.1:8080/api"
	c.RealtimeURL = "ws://127.0.0.1:8080/ws/message"
	c.RequestTimeout = 30 * time.Second
	c.HeartbeatInterval = 30 * time.Second
	c.ReconnectDelay = 3 * time.Second
	c.MaxReconnectAttempts = 5
	c.StorePath = "console.db"
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present). Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
