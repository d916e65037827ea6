// Package config defines service configuration structures and loading hooks.
package config

import "runtime"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DatabaseURL is the Postgres connection string for devices/telemetry.
	DatabaseURL string `koanf:"database_url"`

	// AuthURL and AuthAPIKey configure the token-verification service.
	AuthURL    string `koanf:"auth_url"`
	AuthAPIKey string `koanf:"auth_api_key"`

	// GeminiAPIKey credentials the generative upstream. Empty disables inference.
	GeminiAPIKey string `koanf:"gemini_api_key"`

	// GeminiEndpoint overrides the generative upstream base URL.
	GeminiEndpoint string `koanf:"gemini_endpoint"`

	// GeminiTimeoutS bounds one generation attempt, in seconds.
	GeminiTimeoutS int `koanf:"gemini_timeout_s"`

	// FallbackModels is the ordered model chain tried after the requested one.
	FallbackModels []string `koanf:"fallback_models"`

	// ImageFetchTimeoutS bounds one image download, in seconds.
	ImageFetchTimeoutS int `koanf:"image_fetch_timeout_s"`

	// ImageRetention is how many stored images a device keeps after a read.
	ImageRetention int `koanf:"image_retention"`

	// DefaultLeaderboardLimit and MaxLeaderboardLimit bound GET /users/leaderboard?limit.
	DefaultLeaderboardLimit int `koanf:"default_leaderboard_limit"`
	MaxLeaderboardLimit     int `koanf:"max_leaderboard_limit"`

	// MQTTBroker enables the MQTT ingest bridge when non-empty.
	MQTTBroker string `koanf:"mqtt_broker"`

	// MQTTTopic is the telemetry subscription filter.
	MQTTTopic string `koanf:"mqtt_topic"`

	// QueueSize bounds the in-memory ingest queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of ingest workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the redelivery cache.
	DedupeSize int `koanf:"dedupe_size"`

	// BlobConnectionString and BlobContainer configure device image storage.
	BlobConnectionString string `koanf:"blob_connection_string"`
	BlobContainer        string `koanf:"blob_container"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                "info",
		Addr:                    ":8080",
		GeminiTimeoutS:          45,
		ImageFetchTimeoutS:      30,
		ImageRetention:          5,
		DefaultLeaderboardLimit: 20,
		MaxLeaderboardLimit:     100,
		MQTTTopic:               "roost/telemetry/+",
		QueueSize:               10000,
		WorkerCount:             runtime.NumCPU(),
		DedupeSize:              50000,
		BlobContainer:           "images",
	}
}
