// Package config loads and validates the publish daemon settings from the
// process environment.
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Clamp ranges for numeric settings. A malformed or out-of-range value
// degrades to the nearest safe value instead of crashing the daemon.
const (
	MinPollInterval = 250 * time.Millisecond
	MaxPollInterval = 10 * time.Second

	MinBatchSize = 1
	MaxBatchSize = 10

	MinRequestTimeout = time.Second
	MaxRequestTimeout = 60 * time.Second
)

// rawConfig mirrors the environment. Numeric knobs are read as strings so a
// malformed value falls back to its default instead of failing the parse.
type rawConfig struct {
	APIBaseURL          string   `env:"PUBLISH_DAEMON_API_BASE_URL" envDefault:"http://localhost:3000"`
	APIPassword         string   `env:"DAEMON_API_PASSWORD"`
	DaemonID            string   `env:"PUBLISH_DAEMON_ID" envDefault:"publish-daemon"`
	PollIntervalMs      string   `env:"PUBLISH_DAEMON_POLL_INTERVAL_MS" envDefault:"1000"`
	BatchSize           string   `env:"PUBLISH_DAEMON_BATCH_SIZE" envDefault:"3"`
	RequestTimeoutMs    string   `env:"PUBLISH_DAEMON_REQUEST_TIMEOUT_MS" envDefault:"15000"`
	AllowedMediaHosts   []string `env:"PUBLISH_DAEMON_ALLOWED_MEDIA_HOSTS"`
	YouTubeClientID     string   `env:"YOUTUBE_CLIENT_ID"`
	YouTubeClientSecret string   `env:"YOUTUBE_CLIENT_SECRET"`
	HealthAddr          string   `env:"PUBLISH_DAEMON_HEALTH_ADDR"`
	Silent              bool     `env:"PUBLISH_DAEMON_SILENT"`
	Debug               bool     `env:"PUBLISH_DAEMON_DEBUG"`
}

// Config is the validated, immutable daemon configuration.
type Config struct {
	APIBaseURL  string
	APIPassword string
	DaemonID    string

	PollInterval   time.Duration
	BatchSize      int
	RequestTimeout time.Duration

	// AllowedMediaHosts is the lowercase hostname allowlist the daemon may
	// download source video from.
	AllowedMediaHosts []string

	YouTubeClientID     string
	YouTubeClientSecret string

	// HealthAddr is the listen address for the health endpoint; empty
	// disables it.
	HealthAddr string

	Silent bool
	Debug  bool
}

// Load reads the environment and returns a validated Config. It fails fast
// on a missing secret, an insecure API base URL off loopback, or an empty
// media host allowlist.
func Load() (*Config, error) {
	var raw rawConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg := &Config{
		APIBaseURL:          strings.TrimSpace(raw.APIBaseURL),
		APIPassword:         strings.TrimSpace(raw.APIPassword),
		DaemonID:            strings.TrimSpace(raw.DaemonID),
		PollInterval:        clampDuration(raw.PollIntervalMs, 1000, MinPollInterval, MaxPollInterval),
		BatchSize:           clampInt(raw.BatchSize, 3, MinBatchSize, MaxBatchSize),
		RequestTimeout:      clampDuration(raw.RequestTimeoutMs, 15000, MinRequestTimeout, MaxRequestTimeout),
		AllowedMediaHosts:   normalizeHosts(raw.AllowedMediaHosts),
		YouTubeClientID:     strings.TrimSpace(raw.YouTubeClientID),
		YouTubeClientSecret: strings.TrimSpace(raw.YouTubeClientSecret),
		HealthAddr:          strings.TrimSpace(raw.HealthAddr),
		Silent:              raw.Silent,
		Debug:               raw.Debug,
	}

	if cfg.APIPassword == "" {
		return nil, fmt.Errorf("DAEMON_API_PASSWORD is required")
	}
	if cfg.DaemonID == "" {
		return nil, fmt.Errorf("PUBLISH_DAEMON_ID must not be blank")
	}
	if err := validateBaseURL(cfg.APIBaseURL); err != nil {
		return nil, err
	}
	if len(cfg.AllowedMediaHosts) == 0 {
		return nil, fmt.Errorf("PUBLISH_DAEMON_ALLOWED_MEDIA_HOSTS must list at least one hostname")
	}

	return cfg, nil
}

// LogLevel maps the verbosity toggles onto a logger level.
func (c *Config) LogLevel() string {
	switch {
	case c.Silent:
		return "error"
	case c.Debug:
		return "debug"
	default:
		return "info"
	}
}

// AllowsMediaHost reports whether hostname is on the download allowlist.
// Matching is case-insensitive.
func (c *Config) AllowsMediaHost(hostname string) bool {
	hostname = strings.ToLower(strings.TrimSpace(hostname))
	for _, h := range c.AllowedMediaHosts {
		if h == hostname {
			return true
		}
	}
	return false
}

// loopbackHosts are the only hosts allowed to use plain HTTP, to support
// local development against a scheduler on the same machine.
var loopbackHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"::1":       true,
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("PUBLISH_DAEMON_API_BASE_URL is not a valid URL: %w", err)
	}

	switch u.Scheme {
	case "https":
		return nil
	case "http":
		if loopbackHosts[strings.ToLower(u.Hostname())] {
			return nil
		}
		return fmt.Errorf("PUBLISH_DAEMON_API_BASE_URL must use https for non-loopback host %q", u.Hostname())
	default:
		return fmt.Errorf("PUBLISH_DAEMON_API_BASE_URL has unsupported scheme %q", u.Scheme)
	}
}

func normalizeHosts(hosts []string) []string {
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}

func clampInt(raw string, def, min, max int) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		v = def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampDuration(rawMs string, defMs int, min, max time.Duration) time.Duration {
	v, err := strconv.Atoi(strings.TrimSpace(rawMs))
	if err != nil {
		v = defMs
	}
	d := time.Duration(v) * time.Millisecond
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}
