package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

const validConfig = `
site:
  name: "test-home"
  location:
    latitude: 51.5
    longitude: -0.12
mqtt:
  broker:
    host: "broker.local"
    port: 1883
  topic_prefix: "house"
automations:
  - name: front
    sensor: binary_sensor.front_door
    duration: 90
    turn_on:
      - switch.porch
      - entity: light.hall
        data:
          brightness: 255
          rgb_color: [255, 0, 0]
          effect: colorloop
          transition: true
  - sensor: binary_sensor.back_door
    sundown: false
    log_level: INFO
    turn_on:
      - light.garden
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.Name != "test-home" {
		t.Errorf("Site.Name = %q, want %q", cfg.Site.Name, "test-home")
	}
	if cfg.Site.Location.Latitude != 51.5 {
		t.Errorf("Site.Location.Latitude = %v, want 51.5", cfg.Site.Location.Latitude)
	}
	if cfg.Host.Backend != BackendMQTT {
		t.Errorf("Host.Backend = %q, want %q", cfg.Host.Backend, BackendMQTT)
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if cfg.MQTT.TopicPrefix != "house" {
		t.Errorf("MQTT.TopicPrefix = %q, want %q", cfg.MQTT.TopicPrefix, "house")
	}
	if len(cfg.Automations) != 2 {
		t.Fatalf("len(Automations) = %d, want 2", len(cfg.Automations))
	}

	front := cfg.Automations[0]
	if front.Sensor != "binary_sensor.front_door" {
		t.Errorf("front.Sensor = %q", front.Sensor)
	}
	if got := front.RestoreAfter(); got != 90*time.Second {
		t.Errorf("front.RestoreAfter() = %v, want 90s", got)
	}
	if got := front.ClearOverridesAfter(); got != 90*time.Second {
		t.Errorf("front.ClearOverridesAfter() = %v, want 90s", got)
	}
	if !front.UseSundown() {
		t.Error("front.UseSundown() = false, want true")
	}
	if got := front.Level(); got != "debug" {
		t.Errorf("front.Level() = %q, want %q", got, "debug")
	}
	if len(front.TurnOn) != 2 {
		t.Fatalf("len(front.TurnOn) = %d, want 2", len(front.TurnOn))
	}
	if !reflect.DeepEqual(front.TurnOn[0], EntityConfig{Entity: "switch.porch"}) {
		t.Errorf("front.TurnOn[0] = %+v", front.TurnOn[0])
	}
	if front.TurnOn[1].Entity != "light.hall" {
		t.Errorf("front.TurnOn[1].Entity = %q", front.TurnOn[1].Entity)
	}
	wantData := map[string]any{
		"brightness": 255,
		"rgb_color":  []any{255, 0, 0},
		"effect":     "colorloop",
		"transition": true,
	}
	if !reflect.DeepEqual(front.TurnOn[1].Data, wantData) {
		t.Errorf("front.TurnOn[1].Data = %v, want %v", front.TurnOn[1].Data, wantData)
	}

	back := cfg.Automations[1]
	if got := back.RestoreAfter(); got != DefaultDuration*time.Second {
		t.Errorf("back.RestoreAfter() = %v, want %v", got, DefaultDuration*time.Second)
	}
	if back.UseSundown() {
		t.Error("back.UseSundown() = true, want false")
	}
	if got := back.Level(); got != "info" {
		t.Errorf("back.Level() = %q, want %q", got, "info")
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
automations:
  - sensor: binary_sensor.door
    turn_on: [light.a]
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want localhost", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.QoS != 1 {
		t.Errorf("MQTT.QoS = %d, want 1", cfg.MQTT.QoS)
	}
	if cfg.MQTT.TopicPrefix != "home" {
		t.Errorf("MQTT.TopicPrefix = %q, want home", cfg.MQTT.TopicPrefix)
	}
	if cfg.Database.Enabled {
		t.Error("Database.Enabled = true, want false")
	}
	if got := cfg.GetRetention(); got != 30*24*time.Hour {
		t.Errorf("GetRetention() = %v, want 720h", got)
	}
	if got := cfg.GetRequestTimeout(); got != 10*time.Second {
		t.Errorf("GetRequestTimeout() = %v, want 10s", got)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if cfg.API.Enabled {
		t.Error("API.Enabled = true, want false")
	}
	if got := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port); got != "127.0.0.1:8089" {
		t.Errorf("API address = %q, want 127.0.0.1:8089", got)
	}
	if got := cfg.GetReadTimeout(); got != 10*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 10s", got)
	}
	if got := cfg.GetWriteTimeout(); got != 10*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 10s", got)
	}
	if got := cfg.GetIdleTimeout(); got != time.Minute {
		t.Errorf("GetIdleTimeout() = %v, want 1m", got)
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "..", "configs", "config.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Automations) != 2 {
		t.Fatalf("len(Automations) = %d, want 2", len(cfg.Automations))
	}
	garage := cfg.Automations[1]
	if got := garage.ClearOverridesAfter(); got != 600*time.Second {
		t.Errorf("garage.ClearOverridesAfter() = %v, want 10m", got)
	}
	if garage.UseSundown() {
		t.Error("garage.UseSundown() = true, want false")
	}
	if got := garage.Level(); got != "info" {
		t.Errorf("garage.Level() = %q, want info", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_UnknownKeysRejected(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "top level",
			content: "bogus: 1\n",
		},
		{
			name: "automation",
			content: `
automations:
  - sensor: binary_sensor.door
    turn_on: [light.a]
    delay: 5
`,
		},
		{
			name: "turn_on entry",
			content: `
automations:
  - sensor: binary_sensor.door
    turn_on:
      - entity: light.a
        brightness: 10
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("Load() expected error for unknown key, got nil")
			}
		})
	}
}

func TestLoad_ValidationCollectsAllErrors(t *testing.T) {
	_, err := Load(writeConfig(t, `
mqtt:
  qos: 3
automations:
  - duration: 0
    log_level: trace
    turn_on:
      - entity: light.a
        data:
          brightness: 0.5
`))
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}

	msg := err.Error()
	for _, want := range []string{
		"mqtt.qos",
		"automations[0].sensor is required",
		"automations[0].duration must be at least 1",
		"automations[0].log_level",
		"automations[0].turn_on[0].data.brightness",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %q", msg, want)
		}
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := defaultConfig()
		cfg.Automations = []AutomationConfig{{
			Sensor: "binary_sensor.door",
			TurnOn: []EntityConfig{{Entity: "light.a"}},
		}}
		return cfg
	}
	zero := 0

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "valid", modify: func(*Config) {}},
		{
			name:    "no automations",
			modify:  func(c *Config) { c.Automations = nil },
			wantErr: "at least one automation",
		},
		{
			name:    "unknown backend",
			modify:  func(c *Config) { c.Host.Backend = "zigbee" },
			wantErr: "host.backend",
		},
		{
			name:    "home assistant without token",
			modify:  func(c *Config) { c.Host.Backend = BackendHomeAssistant },
			wantErr: "homeassistant.token",
		},
		{
			name: "home assistant with token",
			modify: func(c *Config) {
				c.Host.Backend = BackendHomeAssistant
				c.HomeAssistant.Token = "secret"
			},
		},
		{
			name: "api port out of range",
			modify: func(c *Config) {
				c.API.Enabled = true
				c.API.Port = 70000
			},
			wantErr: "api.port",
		},
		{
			name:   "api port ignored when disabled",
			modify: func(c *Config) { c.API.Port = 0 },
		},
		{
			name:    "empty entity",
			modify:  func(c *Config) { c.Automations[0].TurnOn = []EntityConfig{{}} },
			wantErr: "turn_on[0].entity",
		},
		{
			name:    "zero override clear",
			modify:  func(c *Config) { c.Automations[0].OverrideClear = &zero },
			wantErr: "override_clear",
		},
		{
			name: "duplicate names",
			modify: func(c *Config) {
				c.Automations[0].Name = "x"
				c.Automations = append(c.Automations, c.Automations[0])
			},
			wantErr: "not unique",
		},
		{
			name:    "latitude out of range",
			modify:  func(c *Config) { c.Site.Location.Latitude = 91 },
			wantErr: "latitude",
		},
		{
			name: "influx without bucket",
			modify: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.URL = "http://localhost:8086"
			},
			wantErr: "influxdb.bucket",
		},
		{
			name: "database without path",
			modify: func(c *Config) {
				c.Database.Enabled = true
				c.Database.Path = ""
			},
			wantErr: "database.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ILLUMINATE_HOST_BACKEND", BackendHomeAssistant)
	t.Setenv("ILLUMINATE_HA_TOKEN", "env-token")
	t.Setenv("ILLUMINATE_MQTT_HOST", "env-broker")
	t.Setenv("ILLUMINATE_MQTT_PORT", "8883")
	t.Setenv("ILLUMINATE_LATITUDE", "40.7")
	t.Setenv("ILLUMINATE_LOG_LEVEL", "debug")
	t.Setenv("ILLUMINATE_API_PORT", "9090")

	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Host.Backend != BackendHomeAssistant {
		t.Errorf("Host.Backend = %q, want %q", cfg.Host.Backend, BackendHomeAssistant)
	}
	if cfg.HomeAssistant.Token != "env-token" {
		t.Errorf("HomeAssistant.Token = %q, want env-token", cfg.HomeAssistant.Token)
	}
	if cfg.MQTT.Broker.Host != "env-broker" {
		t.Errorf("MQTT.Broker.Host = %q, want env-broker", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if cfg.Site.Location.Latitude != 40.7 {
		t.Errorf("Site.Location.Latitude = %v, want 40.7", cfg.Site.Location.Latitude)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
}

func TestEnvOverrides_BadNumber(t *testing.T) {
	t.Setenv("ILLUMINATE_MQTT_PORT", "not-a-port")

	_, err := Load(writeConfig(t, validConfig))
	if err == nil || !strings.Contains(err.Error(), "ILLUMINATE_MQTT_PORT") {
		t.Errorf("Load() error = %v, want it to name ILLUMINATE_MQTT_PORT", err)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	path := writeConfig(t, validConfig)
	env := "ILLUMINATE_INFLUXDB_TOKEN=from-dotenv\n"
	if err := os.WriteFile(filepath.Join(filepath.Dir(path), ".env"), []byte(env), 0600); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	t.Setenv("ILLUMINATE_INFLUXDB_TOKEN", "")
	os.Unsetenv("ILLUMINATE_INFLUXDB_TOKEN")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.InfluxDB.Token != "from-dotenv" {
		t.Errorf("InfluxDB.Token = %q, want from-dotenv", cfg.InfluxDB.Token)
	}
}

func TestAutomationConfig_ClearOverridesAfter(t *testing.T) {
	d, c := 30, 300
	a := AutomationConfig{Duration: &d, OverrideClear: &c}

	if got := a.RestoreAfter(); got != 30*time.Second {
		t.Errorf("RestoreAfter() = %v, want 30s", got)
	}
	if got := a.ClearOverridesAfter(); got != 300*time.Second {
		t.Errorf("ClearOverridesAfter() = %v, want 5m", got)
	}
}
