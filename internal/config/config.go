package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.kanux/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile"`

	Remote RemoteConfig `toml:"remote"`
	Sync   SyncConfig   `toml:"sync"`
	Net    NetConfig    `toml:"net"`
	Server ServerConfig `toml:"server"`
}

// RemoteConfig configures the hosted backend the daemon syncs against.
type RemoteConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// SyncConfig configures the pending-queue drain behavior.
type SyncConfig struct {
	SweepIntervalSeconds int `toml:"sweep_interval_seconds"`
	// MaxAttempts bounds retries for operations the backend rejects
	// outright. Network failures are retried without a bound.
	MaxAttempts     int `toml:"max_attempts"`
	MessagePageSize int `toml:"message_page_size"`
	TicketPageSize  int `toml:"ticket_page_size"`
}

// NetConfig configures the connectivity monitor.
type NetConfig struct {
	ProbeIntervalSeconds int `toml:"probe_interval_seconds"`
}

// ServerConfig configures the localhost API consumed by the UI shell.
type ServerConfig struct {
	ListenAddr     string   `toml:"listen_addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DefaultProfile: "main",
		Remote: RemoteConfig{
			TimeoutSeconds: 10,
		},
		Sync: SyncConfig{
			SweepIntervalSeconds: 5,
			MaxAttempts:          5,
			MessagePageSize:      50,
			TicketPageSize:       50,
		},
		Net: NetConfig{
			ProbeIntervalSeconds: 5,
		},
		Server: ServerConfig{
			ListenAddr:     "127.0.0.1:7870",
			AllowedOrigins: []string{"*"},
		},
	}
}

// Load reads config from the given path, layering file values over defaults
// and environment variables over both. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// RemoteTimeout returns the remote HTTP timeout as a duration.
func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.Remote.TimeoutSeconds) * time.Second
}

// SweepInterval returns the sync safety-net sweep cadence.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Sync.SweepIntervalSeconds) * time.Second
}

// ProbeInterval returns the connectivity probe cadence.
func (c *Config) ProbeInterval() time.Duration {
	return time.Duration(c.Net.ProbeIntervalSeconds) * time.Second
}

func (c *Config) applyEnv() {
	if v := os.Getenv("KANUX_REMOTE_URL"); v != "" {
		c.Remote.BaseURL = v
	}
	if v := os.Getenv("KANUX_API_KEY"); v != "" {
		c.Remote.APIKey = v
	}
	if v := os.Getenv("KANUX_LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("KANUX_PROFILE"); v != "" {
		c.DefaultProfile = v
	}
	if v := os.Getenv("KANUX_SYNC_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Sync.MaxAttempts = n
		}
	}
}
