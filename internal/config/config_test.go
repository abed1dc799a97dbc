package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadSettingsOverlaysDefaults(t *testing.T) {
	t.Setenv("MQTT_URL", "")
	path := writeFile(t, "settings.toml", `
[engine]
id = "stage-left"
load_priority = "high"
default_scene = "boot"

[backend]
step_delay = "10ms"

[mqtt]
enabled = true
url = "tcp://broker:1883"
`)

	cfg, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Engine.ID != "stage-left" || cfg.Engine.LoadPriority != "high" || cfg.Engine.DefaultScene != "boot" {
		t.Errorf("engine section not applied: %+v", cfg.Engine)
	}
	if !cfg.Engine.CheckDuplicates {
		t.Error("check_duplicates should default to true")
	}
	if cfg.Backend.StepDelay != 10*time.Millisecond || cfg.Backend.Steps != 4 {
		t.Errorf("unexpected backend settings %+v", cfg.Backend)
	}
	if cfg.API.Port != 8080 || !cfg.API.Enabled {
		t.Errorf("api defaults lost: %+v", cfg.API)
	}
	if cfg.MQTT.URL != "tcp://broker:1883" || cfg.MQTT.TopicPrefix != "scenes" {
		t.Errorf("unexpected mqtt settings %+v", cfg.MQTT)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "console" {
		t.Errorf("unexpected logging defaults %+v", cfg.Logging)
	}
}

func TestLoadSettingsMQTTURLFromEnv(t *testing.T) {
	t.Setenv("MQTT_URL", "tcp://env-broker:1883")
	cfg, err := LoadSettings(writeFile(t, "settings.toml", "[mqtt]\nenabled = true\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MQTT.URL != "tcp://env-broker:1883" {
		t.Errorf("expected url from MQTT_URL, got %q", cfg.MQTT.URL)
	}
}

func TestLoadSettingsRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"priority", "[engine]\nload_priority = \"urgent\"\n", "load_priority"},
		{"mode", "[backend]\nmode = \"unity\"\n", "backend.mode"},
		{"port", "[api]\nport = 70000\n", "api.port"},
		{"tls", "[api]\ntls_cert = \"cert.pem\"\n", "tls_cert"},
		{"syntax", "[engine\n", "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SCENED_TLS_CERT", "")
			t.Setenv("SCENED_TLS_KEY", "")
			_, err := LoadSettings(writeFile(t, "settings.toml", tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestSettingsPath(t *testing.T) {
	t.Setenv("SCENED_CONFIG", "")
	if SettingsPath() != DefaultSettingsPath {
		t.Errorf("expected default path, got %q", SettingsPath())
	}
	t.Setenv("SCENED_CONFIG", "/etc/scened.toml")
	if SettingsPath() != "/etc/scened.toml" {
		t.Errorf("expected env path, got %q", SettingsPath())
	}
}
