// Package config loads the daemon settings (TOML) and the project file (YAML).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultSettingsPath is used when SCENED_CONFIG is not set.
const DefaultSettingsPath = "config/settings.toml"

type Settings struct {
	Engine   EngineConfig   `toml:"engine"`
	Backend  BackendConfig  `toml:"backend"`
	API      APIConfig      `toml:"api"`
	MQTT     MQTTConfig     `toml:"mqtt"`
	Database DatabaseConfig `toml:"database"`
	Alerts   AlertsConfig   `toml:"alerts"`
	Logging  LoggingConfig  `toml:"logging"`
}

type EngineConfig struct {
	ID              string `toml:"id"`
	CheckDuplicates bool   `toml:"check_duplicates"`
	LoadPriority    string `toml:"load_priority"` // low, below_normal, normal, high
	UnloadUnused    bool   `toml:"unload_unused"`
	DefaultScene    string `toml:"default_scene"`
	Project         string `toml:"project"`
	RestoreLimit    int    `toml:"restore_limit"`
}

type BackendConfig struct {
	Mode      string        `toml:"mode"` // "simulate"
	StepDelay time.Duration `toml:"step_delay"`
	Steps     int           `toml:"steps"`
}

type APIConfig struct {
	Enabled bool   `toml:"enabled"`
	Port    int    `toml:"port"`
	TLSCert string `toml:"tls_cert"`
	TLSKey  string `toml:"tls_key"`
}

type MQTTConfig struct {
	Enabled     bool   `toml:"enabled"`
	URL         string `toml:"url"`
	ClientID    string `toml:"client_id"`
	TopicPrefix string `toml:"topic_prefix"`
}

type DatabaseConfig struct {
	Enabled bool   `toml:"enabled"`
	DSN     string `toml:"dsn"`
}

// AlertsConfig configures the connection-loss webhook. An empty URL only logs.
type AlertsConfig struct {
	WebhookURL    string        `toml:"webhook_url"`
	Delay         time.Duration `toml:"delay"`
	CheckInterval time.Duration `toml:"check_interval"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// SettingsPath returns the settings file path: SCENED_CONFIG or the default.
func SettingsPath() string {
	if p := os.Getenv("SCENED_CONFIG"); p != "" {
		return p
	}
	return DefaultSettingsPath
}

// LoadSettings reads path and overlays it onto the defaults.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Defaults returns the settings used when no file is present.
func Defaults() *Settings {
	cfg := defaults()
	cfg.applyEnv()
	return cfg
}

func defaults() *Settings {
	return &Settings{
		Engine: EngineConfig{
			ID:              "scened",
			CheckDuplicates: true,
			LoadPriority:    "normal",
			Project:         "config/project.yaml",
			RestoreLimit:    1000,
		},
		Backend: BackendConfig{
			Mode:      "simulate",
			StepDelay: 50 * time.Millisecond,
			Steps:     4,
		},
		API: APIConfig{
			Enabled: true,
			Port:    8080,
		},
		MQTT: MQTTConfig{
			ClientID:    "scened",
			TopicPrefix: "scenes",
		},
		Database: DatabaseConfig{
			DSN: "postgres://scened@localhost:5432/scened?sslmode=disable",
		},
		Alerts: AlertsConfig{
			Delay:         30 * time.Second,
			CheckInterval: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// applyEnv fills values that may come from the environment.
func (s *Settings) applyEnv() {
	if s.MQTT.URL == "" {
		s.MQTT.URL = os.Getenv("MQTT_URL")
	}
	if s.MQTT.URL == "" {
		s.MQTT.URL = "tcp://localhost:1883"
	}
	if s.API.TLSCert == "" {
		s.API.TLSCert = os.Getenv("SCENED_TLS_CERT")
	}
	if s.API.TLSKey == "" {
		s.API.TLSKey = os.Getenv("SCENED_TLS_KEY")
	}
	if s.Alerts.WebhookURL == "" {
		s.Alerts.WebhookURL = os.Getenv("SCENED_ALERT_WEBHOOK_URL")
	}
}

// Validate checks enumerated values and ranges.
func (s *Settings) Validate() error {
	switch s.Engine.LoadPriority {
	case "", "low", "below_normal", "normal", "high":
	default:
		return fmt.Errorf("engine.load_priority: unknown priority %q", s.Engine.LoadPriority)
	}
	if s.Backend.Mode != "simulate" {
		return fmt.Errorf("backend.mode: unsupported mode %q", s.Backend.Mode)
	}
	if s.Backend.Steps < 1 {
		return fmt.Errorf("backend.steps: must be at least 1")
	}
	if s.API.Port <= 0 || s.API.Port > 65535 {
		return fmt.Errorf("api.port: %d out of range", s.API.Port)
	}
	if (s.API.TLSCert == "") != (s.API.TLSKey == "") {
		return fmt.Errorf("api: tls_cert and tls_key must be set together")
	}
	if s.Alerts.CheckInterval <= 0 {
		return fmt.Errorf("alerts.check_interval: must be positive")
	}
	return nil
}

// DatabasePassword resolves SCENED_PG_PASSWORD, honoring the _FILE variant.
func (s *Settings) DatabasePassword() (string, error) {
	return ResolveSecret("SCENED_PG_PASSWORD")
}
