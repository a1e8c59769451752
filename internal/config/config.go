package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	DefaultTimeoutSec      = 10
	DefaultReconnectSec    = 5
	DefaultStatsRefreshSec = 60
	DefaultSessionCheckSec = 300
	DefaultLanguage        = "en"
	DefaultStateDirName    = ".portalctl"
	DefaultProbeTimeoutSec = 5
)

// DefaultSTUNServers are queried when diag has no servers configured.
var DefaultSTUNServers = []string{"stun.l.google.com:19302"}

// Config holds both portal and diagnostics settings.
type Config struct {
	Portal *PortalConfig `yaml:"portal,omitempty"`
	Diag   *DiagConfig   `yaml:"diag,omitempty"`
}

// PortalConfig describes the backend to talk to and how the local
// client behaves.
type PortalConfig struct {
	BaseURL         string `yaml:"base_url"`
	StateDir        string `yaml:"state_dir"`
	Language        string `yaml:"language"`
	TimeoutSec      int    `yaml:"timeout_sec"`
	ReconnectSec    int    `yaml:"reconnect_sec"`
	StatsRefreshSec int    `yaml:"stats_refresh_sec"`
	SessionCheckSec int    `yaml:"session_check_sec"`
	MetricsPath     string `yaml:"metrics_path"`
}

// DiagConfig tunes the endpoint diagnosis helpers.
type DiagConfig struct {
	STUNServers     []string `yaml:"stun_servers"`
	ProbeTimeoutSec int      `yaml:"probe_timeout_sec"`
}

// Load reads and parses a YAML config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}

	ApplyDefaults(&cfg)
	return cfg, nil
}

// Save writes a YAML config file to disk.
func Save(path string, cfg Config) error {
	ApplyDefaults(&cfg)
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate performs minimal validation for required fields.
func Validate(cfg Config) error {
	if cfg.Portal == nil {
		return fmt.Errorf("config must contain a portal section")
	}
	if cfg.Portal.BaseURL == "" {
		return fmt.Errorf("portal.base_url is required")
	}
	u, err := url.Parse(cfg.Portal.BaseURL)
	if err != nil {
		return fmt.Errorf("portal.base_url is invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("portal.base_url must use http or https")
	}
	return nil
}

// ApplyDefaults fills in default values when empty.
func ApplyDefaults(cfg *Config) {
	if cfg.Portal != nil {
		if cfg.Portal.StateDir == "" {
			if home, err := os.UserHomeDir(); err == nil {
				cfg.Portal.StateDir = filepath.Join(home, DefaultStateDirName)
			}
		}
		if cfg.Portal.Language == "" {
			cfg.Portal.Language = DefaultLanguage
		}
		if cfg.Portal.TimeoutSec == 0 {
			cfg.Portal.TimeoutSec = DefaultTimeoutSec
		}
		if cfg.Portal.ReconnectSec == 0 {
			cfg.Portal.ReconnectSec = DefaultReconnectSec
		}
		if cfg.Portal.StatsRefreshSec == 0 {
			cfg.Portal.StatsRefreshSec = DefaultStatsRefreshSec
		}
		if cfg.Portal.SessionCheckSec == 0 {
			cfg.Portal.SessionCheckSec = DefaultSessionCheckSec
		}
	}

	if cfg.Diag != nil {
		if len(cfg.Diag.STUNServers) == 0 {
			cfg.Diag.STUNServers = append([]string(nil), DefaultSTUNServers...)
		}
		if cfg.Diag.ProbeTimeoutSec == 0 {
			cfg.Diag.ProbeTimeoutSec = DefaultProbeTimeoutSec
		}
	}
}
