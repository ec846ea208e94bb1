package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfigFile(t, "site:\n  id: campus-test\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Site.Timezone != "Asia/Kolkata" {
		t.Errorf("default timezone = %q, want Asia/Kolkata", cfg.Site.Timezone)
	}
	if cfg.Engine.MotionWindowMinutes != 5 {
		t.Errorf("default motion window = %d, want 5", cfg.Engine.MotionWindowMinutes)
	}
	if cfg.MQTT.QoS != 1 {
		t.Errorf("default QoS = %d, want 1", cfg.MQTT.QoS)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
site:
  id: campus-blr
  timezone: Europe/London
engine:
  motion_window_minutes: 10
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Site.Timezone != "Europe/London" {
		t.Errorf("timezone = %q, want Europe/London", cfg.Site.Timezone)
	}
	if got := cfg.Engine.MotionWindow(); got != 10*time.Minute {
		t.Errorf("MotionWindow() = %v, want 10m", got)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, "database:\n  path: /from/file.db\n")
	t.Setenv("CLASSPOWER_DATABASE_PATH", "/from/env.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "/from/env.db" {
		t.Errorf("database path = %q, want /from/env.db", cfg.Database.Path)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			name:    "bad timezone",
			mutate:  func(c *Config) { c.Site.Timezone = "Mars/Olympus" },
			wantMsg: "site.timezone",
		},
		{
			name:    "bad mqtt port",
			mutate:  func(c *Config) { c.MQTT.Broker.Port = 0 },
			wantMsg: "mqtt.broker.port",
		},
		{
			name:    "bad qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantMsg: "mqtt.qos",
		},
		{
			name:    "zero motion window",
			mutate:  func(c *Config) { c.Engine.MotionWindowMinutes = 0 },
			wantMsg: "motion_window_minutes",
		},
		{
			name: "influx enabled without url",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.URL = ""
			},
			wantMsg: "influxdb.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	if err := defaultConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}
