package config

import (
	"strings"
	"testing"
	"time"
)

// setBaseEnv provides the minimum required environment for Load to succeed.
func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DAEMON_API_PASSWORD", "secret")
	t.Setenv("PUBLISH_DAEMON_ALLOWED_MEDIA_HOSTS", "storage.example.com")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIBaseURL != "http://localhost:3000" {
		t.Errorf("expected default base URL, got %q", cfg.APIBaseURL)
	}
	if cfg.DaemonID != "publish-daemon" {
		t.Errorf("expected default daemon id, got %q", cfg.DaemonID)
	}
	if cfg.PollInterval != time.Second {
		t.Errorf("expected default poll interval 1s, got %s", cfg.PollInterval)
	}
	if cfg.BatchSize != 3 {
		t.Errorf("expected default batch size 3, got %d", cfg.BatchSize)
	}
	if cfg.RequestTimeout != 15*time.Second {
		t.Errorf("expected default request timeout 15s, got %s", cfg.RequestTimeout)
	}
}

func TestLoadRequiresPassword(t *testing.T) {
	t.Setenv("DAEMON_API_PASSWORD", "")
	t.Setenv("PUBLISH_DAEMON_ALLOWED_MEDIA_HOSTS", "storage.example.com")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DAEMON_API_PASSWORD is missing")
	}
}

func TestLoadRequiresAllowedHosts(t *testing.T) {
	t.Setenv("DAEMON_API_PASSWORD", "secret")
	t.Setenv("PUBLISH_DAEMON_ALLOWED_MEDIA_HOSTS", " , ")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when the media host allowlist is empty")
	}
}

func TestLoadBaseURLScheme(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{"https anywhere", "https://scheduler.example.com", false},
		{"http localhost", "http://localhost:3000", false},
		{"http 127.0.0.1", "http://127.0.0.1:8080", false},
		{"http ipv6 loopback", "http://[::1]:3000", false},
		{"http off loopback", "http://scheduler.example.com", true},
		{"http uppercase host off loopback", "http://Scheduler.Example.com", true},
		{"ftp scheme", "ftp://scheduler.example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv("PUBLISH_DAEMON_API_BASE_URL", tt.baseURL)

			cfg, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.baseURL)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error for %q: %v", tt.baseURL, err)
			}
			if cfg.APIBaseURL != tt.baseURL {
				t.Errorf("expected base URL preserved, got %q", cfg.APIBaseURL)
			}
		})
	}
}

func TestLoadNormalizesAllowedHosts(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PUBLISH_DAEMON_ALLOWED_MEDIA_HOSTS", "storage.example.com, Media.Test.com ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"storage.example.com", "media.test.com"}
	if len(cfg.AllowedMediaHosts) != len(want) {
		t.Fatalf("expected %d hosts, got %v", len(want), cfg.AllowedMediaHosts)
	}
	for i, h := range want {
		if cfg.AllowedMediaHosts[i] != h {
			t.Errorf("host %d: expected %q, got %q", i, h, cfg.AllowedMediaHosts[i])
		}
	}
}

func TestLoadClampsNumericSettings(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "poll interval below minimum",
			env:  map[string]string{"PUBLISH_DAEMON_POLL_INTERVAL_MS": "50"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.PollInterval != MinPollInterval {
					t.Errorf("expected %s, got %s", MinPollInterval, cfg.PollInterval)
				}
			},
		},
		{
			name: "poll interval above maximum",
			env:  map[string]string{"PUBLISH_DAEMON_POLL_INTERVAL_MS": "600000"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.PollInterval != MaxPollInterval {
					t.Errorf("expected %s, got %s", MaxPollInterval, cfg.PollInterval)
				}
			},
		},
		{
			name: "batch size above maximum",
			env:  map[string]string{"PUBLISH_DAEMON_BATCH_SIZE": "99"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.BatchSize != MaxBatchSize {
					t.Errorf("expected %d, got %d", MaxBatchSize, cfg.BatchSize)
				}
			},
		},
		{
			name: "batch size below minimum",
			env:  map[string]string{"PUBLISH_DAEMON_BATCH_SIZE": "0"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.BatchSize != MinBatchSize {
					t.Errorf("expected %d, got %d", MinBatchSize, cfg.BatchSize)
				}
			},
		},
		{
			name: "malformed value degrades to default",
			env:  map[string]string{"PUBLISH_DAEMON_REQUEST_TIMEOUT_MS": "soon"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.RequestTimeout != 15*time.Second {
					t.Errorf("expected default 15s, got %s", cfg.RequestTimeout)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestAllowsMediaHost(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PUBLISH_DAEMON_ALLOWED_MEDIA_HOSTS", "storage.example.com,cdn.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !cfg.AllowsMediaHost("storage.example.com") {
		t.Error("expected allowlisted host to match")
	}
	if !cfg.AllowsMediaHost("Storage.Example.COM") {
		t.Error("expected match to be case-insensitive")
	}
	if cfg.AllowsMediaHost("evil.example.com") {
		t.Error("expected unknown host to be rejected")
	}
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		silent, debug bool
		want          string
	}{
		{false, false, "info"},
		{true, false, "error"},
		{false, true, "debug"},
		{true, true, "error"},
	}

	for _, tt := range tests {
		cfg := &Config{Silent: tt.silent, Debug: tt.debug}
		if got := cfg.LogLevel(); got != tt.want {
			t.Errorf("silent=%v debug=%v: expected %q, got %q", tt.silent, tt.debug, tt.want, got)
		}
	}
}

func TestLoadTrimsSecrets(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DAEMON_API_PASSWORD", "  secret  ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(cfg.APIPassword, " ") {
		t.Errorf("expected trimmed password, got %q", cfg.APIPassword)
	}
}
