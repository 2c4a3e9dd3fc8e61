package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Host backends.
const (
	BackendMQTT          = "mqtt"
	BackendHomeAssistant = "homeassistant"
)

// Automation defaults.
const (
	DefaultDuration = 120 // seconds
	DefaultLogLevel = "debug"
)

// Config is the root configuration structure for illuminate-door.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site          SiteConfig          `yaml:"site"`
	Host          HostConfig          `yaml:"host"`
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	Database      DatabaseConfig      `yaml:"database"`
	InfluxDB      InfluxDBConfig      `yaml:"influxdb"`
	API           APIConfig           `yaml:"api"`
	Logging       LoggingConfig       `yaml:"logging"`
	Automations   []AutomationConfig  `yaml:"automations"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	Name     string         `yaml:"name"`
	Timezone string         `yaml:"timezone"`
	Location LocationConfig `yaml:"location"`
}

// LocationConfig contains geographic coordinates for sunrise and sunset.
type LocationConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// HostConfig selects where entity state comes from and commands go to.
type HostConfig struct {
	Backend string `yaml:"backend"`
}

// HomeAssistantConfig contains Home Assistant websocket API settings.
type HomeAssistantConfig struct {
	URL            string `yaml:"url"`
	Token          string `yaml:"token"`
	RequestTimeout int    `yaml:"request_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// DatabaseConfig contains SQLite activity log settings.
type DatabaseConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	WALMode       bool   `yaml:"wal_mode"`
	BusyTimeout   int    `yaml:"busy_timeout"`
	RetentionDays int    `yaml:"retention_days"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains the read-only status server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// AutomationConfig configures one door automation.
type AutomationConfig struct {
	Name               string         `yaml:"name"`
	Sensor             string         `yaml:"sensor"`
	TurnOn             []EntityConfig `yaml:"turn_on"`
	Duration           *int           `yaml:"duration"`
	OverrideClear      *int           `yaml:"override_clear"`
	Sundown            *bool          `yaml:"sundown"`
	LogLevel           string         `yaml:"log_level"`
	AttributeTolerance float64        `yaml:"attribute_tolerance"`
}

// RestoreAfter returns the restore delay, defaulting to DefaultDuration.
func (a AutomationConfig) RestoreAfter() time.Duration {
	if a.Duration == nil {
		return DefaultDuration * time.Second
	}
	return time.Duration(*a.Duration) * time.Second
}

// ClearOverridesAfter returns the override clear delay. It follows the
// restore delay unless set explicitly.
func (a AutomationConfig) ClearOverridesAfter() time.Duration {
	if a.OverrideClear == nil {
		return a.RestoreAfter()
	}
	return time.Duration(*a.OverrideClear) * time.Second
}

// UseSundown reports whether the automation only runs while the sun is down.
func (a AutomationConfig) UseSundown() bool {
	return a.Sundown == nil || *a.Sundown
}

// Level returns the normalised trace level.
func (a AutomationConfig) Level() string {
	if a.LogLevel == "" {
		return DefaultLogLevel
	}
	return strings.ToLower(a.LogLevel)
}

// EntityConfig is a controlled entity. In YAML it is either a bare entity
// id or a mapping with "entity" and an optional "data" attribute map.
type EntityConfig struct {
	Entity string
	Data   map[string]any
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *EntityConfig) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&e.Entity)
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			switch key.Value {
			case "entity":
				if err := value.Decode(&e.Entity); err != nil {
					return err
				}
			case "data":
				if err := value.Decode(&e.Data); err != nil {
					return err
				}
			default:
				return fmt.Errorf("line %d: unknown turn_on key %q", key.Line, key.Value)
			}
		}
		return nil
	default:
		return fmt.Errorf("line %d: turn_on entry must be an entity id or a mapping", node.Line)
	}
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. A .env file next to the config file, if present
//  4. Environment variables (override file values)
//
// Environment variables follow the pattern: ILLUMINATE_SECTION_KEY
// For example: ILLUMINATE_MQTT_HOST, ILLUMINATE_HA_TOKEN
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML on top of the defaults. Unknown keys are rejected.
// The result is not validated.
func Parse(data []byte) (*Config, error) {
	cfg := defaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
// Variables already set in the environment win.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			Name:     "home",
			Timezone: "UTC",
		},
		Host: HostConfig{
			Backend: BackendMQTT,
		},
		HomeAssistant: HomeAssistantConfig{
			URL:            "ws://localhost:8123/api/websocket",
			RequestTimeout: 10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "illuminate-door",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "home",
		},
		Database: DatabaseConfig{
			Path:          "./data/illuminate-door.db",
			WALMode:       true,
			BusyTimeout:   5,
			RetentionDays: 30,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8089,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: ILLUMINATE_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	// Site
	if err := envFloat("ILLUMINATE_LATITUDE", &cfg.Site.Location.Latitude); err != nil {
		return err
	}
	if err := envFloat("ILLUMINATE_LONGITUDE", &cfg.Site.Location.Longitude); err != nil {
		return err
	}

	// Host
	if v := os.Getenv("ILLUMINATE_HOST_BACKEND"); v != "" {
		cfg.Host.Backend = v
	}

	// Home Assistant
	if v := os.Getenv("ILLUMINATE_HA_URL"); v != "" {
		cfg.HomeAssistant.URL = v
	}
	if v := os.Getenv("ILLUMINATE_HA_TOKEN"); v != "" {
		cfg.HomeAssistant.Token = v
	}

	// MQTT
	if v := os.Getenv("ILLUMINATE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ILLUMINATE_MQTT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ILLUMINATE_MQTT_PORT: %w", err)
		}
		cfg.MQTT.Broker.Port = port
	}
	if v := os.Getenv("ILLUMINATE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("ILLUMINATE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Database
	if v := os.Getenv("ILLUMINATE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("ILLUMINATE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// API
	if v := os.Getenv("ILLUMINATE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("ILLUMINATE_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ILLUMINATE_API_PORT: %w", err)
		}
		cfg.API.Port = port
	}

	// Logging
	if v := os.Getenv("ILLUMINATE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return nil
}

func envFloat(key string, dst *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

// Validate checks the configuration for errors.
//
// Every problem is collected so a single run reports all of them.
func (c *Config) Validate() error {
	var errs []string

	// Site validation
	if c.Site.Location.Latitude < -90 || c.Site.Location.Latitude > 90 {
		errs = append(errs, "site.location.latitude must be between -90 and 90")
	}
	if c.Site.Location.Longitude < -180 || c.Site.Location.Longitude > 180 {
		errs = append(errs, "site.location.longitude must be between -180 and 180")
	}

	// Host validation
	switch c.Host.Backend {
	case BackendMQTT:
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required")
		}
		if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
		if c.MQTT.TopicPrefix == "" {
			errs = append(errs, "mqtt.topic_prefix is required")
		}
	case BackendHomeAssistant:
		if c.HomeAssistant.URL == "" {
			errs = append(errs, "homeassistant.url is required")
		}
		if c.HomeAssistant.Token == "" {
			errs = append(errs, "homeassistant.token is required (set ILLUMINATE_HA_TOKEN environment variable)")
		}
	default:
		errs = append(errs, fmt.Sprintf("host.backend must be %q or %q", BackendMQTT, BackendHomeAssistant))
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// Database validation
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database is enabled")
	}
	if c.Database.RetentionDays < 0 {
		errs = append(errs, "database.retention_days cannot be negative")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Automation validation
	if len(c.Automations) == 0 {
		errs = append(errs, "at least one automation is required")
	}
	names := make(map[string]bool, len(c.Automations))
	for i, a := range c.Automations {
		errs = append(errs, a.validate(fmt.Sprintf("automations[%d]", i))...)
		if a.Name != "" {
			if names[a.Name] {
				errs = append(errs, fmt.Sprintf("automations[%d].name %q is not unique", i, a.Name))
			}
			names[a.Name] = true
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (a AutomationConfig) validate(prefix string) []string {
	var errs []string

	if a.Sensor == "" {
		errs = append(errs, prefix+".sensor is required")
	}
	if len(a.TurnOn) == 0 {
		errs = append(errs, prefix+".turn_on must list at least one entity")
	}
	for j, e := range a.TurnOn {
		field := fmt.Sprintf("%s.turn_on[%d]", prefix, j)
		if e.Entity == "" {
			errs = append(errs, field+".entity is required")
		}
		for k, v := range e.Data {
			if !validDataValue(v) {
				errs = append(errs, fmt.Sprintf("%s.data.%s must be an int, string, bool, list or map", field, k))
			}
		}
	}
	if a.Duration != nil && *a.Duration < 1 {
		errs = append(errs, prefix+".duration must be at least 1")
	}
	if a.OverrideClear != nil && *a.OverrideClear < 1 {
		errs = append(errs, prefix+".override_clear must be at least 1")
	}
	switch a.Level() {
	case "debug", "info":
	default:
		errs = append(errs, prefix+".log_level must be INFO or DEBUG")
	}
	if a.AttributeTolerance < 0 {
		errs = append(errs, prefix+".attribute_tolerance cannot be negative")
	}

	return errs
}

// validDataValue accepts the value types an entity data map may hold.
func validDataValue(v any) bool {
	switch v.(type) {
	case int, string, bool, []any, map[string]any:
		return true
	default:
		return false
	}
}

// GetRequestTimeout returns the Home Assistant request timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.HomeAssistant.RequestTimeout) * time.Second
}

// GetRetention returns how long activity log entries are kept.
// Zero means forever.
func (c *Config) GetRetention() time.Duration {
	return time.Duration(c.Database.RetentionDays) * 24 * time.Hour
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
