package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/zyx3721/ops-integrated-admin-console/internal/flagx"
	"github.com/zyx3721/ops-integrated-admin-console/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "3s"
// or as integer nanoseconds.
type JsonConfig struct {
	ServerBaseURL        string         `json:"server_base_url"`
	RealtimeURL          string         `json:"realtime_url"`
	RequestTimeout       timex.Duration `json:"request_timeout"`
	HeartbeatInterval    timex.Duration `json:"heartbeat_interval"`
	ReconnectDelay       timex.Duration `json:"reconnect_delay"`
	MaxReconnectAttempts int            `json:"max_reconnect_attempts"`
	StorePath            string         `json:"store_path"`
}

// parseJson overlays cfg with values from the JSON file named by -c/-config.
// Absent fields keep their defaults; a missing flag means no JSON is loaded
// at all. Read or unmarshal errors panic, matching the flag-parsing path.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerBaseURL != "" {
		cfg.ServerBaseURL = jc.ServerBaseURL
	}
	if jc.RealtimeURL != "" {
		cfg.RealtimeURL = jc.RealtimeURL
	}
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = time.Duration(jc.RequestTimeout.Duration)
	}
	if jc.HeartbeatInterval.Duration > 0 {
		cfg.HeartbeatInterval = time.Duration(jc.HeartbeatInterval.Duration)
	}
	if jc.ReconnectDelay.Duration > 0 {
		cfg.ReconnectDelay = time.Duration(jc.ReconnectDelay.Duration)
	}
	if jc.MaxReconnectAttempts > 0 {
		cfg.MaxReconnectAttempts = jc.MaxReconnectAttempts
	}
	if jc.StorePath != "" {
		cfg.StorePath = jc.StorePath
	}
}
