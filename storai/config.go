package storai

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all server and provider settings, loaded from the
// environment (see .env for local development).
type Config struct {
	Port string `envconfig:"PORT" default:"5001"`

	// Gemini text generation
	GeminiAPIKey      string        `envconfig:"GEMINI_APIKEY"`
	GeminiBaseURL     string        `envconfig:"GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com"`
	GeminiModel       string        `envconfig:"GEMINI_MODEL" default:"gemini-1.5-flash"`
	GeminiTimeout     time.Duration `envconfig:"GEMINI_TIMEOUT" default:"60s"`
	GeminiMaxAttempts int           `envconfig:"GEMINI_MAX_ATTEMPTS" default:"5"`
	GeminiRetryDelay  time.Duration `envconfig:"GEMINI_RETRY_DELAY" default:"2s"`

	// Sogni image generation
	SogniUsername     string        `envconfig:"SOGNI_USERNAME"`
	SogniPassword     string        `envconfig:"SOGNI_PASSWORD"`
	SogniBaseURL      string        `envconfig:"SOGNI_BASE_URL" default:"https://api.sogni.ai"`
	SogniNetwork      string        `envconfig:"SOGNI_NETWORK" default:"fast"` // "fast" or "relaxed"
	SogniTimeout      time.Duration `envconfig:"SOGNI_TIMEOUT" default:"120s"`
	SogniPollInterval time.Duration `envconfig:"SOGNI_POLL_INTERVAL" default:"2s"`

	// Stories are held in memory only and are wiped wholesale on this
	// interval. Nothing survives longer than one sweep.
	StoryClearInterval time.Duration `envconfig:"STORY_CLEAR_INTERVAL" default:"24h"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if cfg.SogniNetwork != "fast" && cfg.SogniNetwork != "relaxed" {
		return nil, fmt.Errorf("SOGNI_NETWORK must be \"fast\" or \"relaxed\", got %q", cfg.SogniNetwork)
	}
	return &cfg, nil
}
