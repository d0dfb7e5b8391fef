package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Exposition modes.
const (
	// ExpositionSingle exposes exactly one unnamed thing.
	ExpositionSingle = "single"

	// ExpositionMultiple exposes several things under a collection name.
	ExpositionMultiple = "multiple"
)

// Sensor sources.
const (
	// SensorSourceSimulated uses the built-in simulated BME680.
	SensorSourceSimulated = "simulated"

	// SensorSourceMQTT consumes readings published by an external driver process.
	SensorSourceMQTT = "mqtt"
)

// Reading fields a property can be bound to.
const (
	FieldTemperature   = "temperature"
	FieldHumidity      = "humidity"
	FieldPressure      = "pressure"
	FieldGasResistance = "gas_resistance"
)

var readingFields = []string{FieldTemperature, FieldHumidity, FieldPressure, FieldGasResistance}

// ReadingFields returns every bindable reading field name.
func ReadingFields() []string {
	return append([]string(nil), readingFields...)
}

// IsReadingField reports whether name is a bindable reading field.
func IsReadingField(name string) bool {
	for _, f := range readingFields {
		if f == name {
			return true
		}
	}
	return false
}

// Config is the root configuration structure for Gray Logic Things.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	Exposition ExpositionConfig `yaml:"exposition"`
	Sensor     SensorConfig     `yaml:"sensor"`
	Things     []ThingConfig    `yaml:"things"`
	Notify     NotifyConfig     `yaml:"notify"`
	Actions    ActionsConfig    `yaml:"actions"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// APIConfig contains HTTP server settings for the thing transport.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// ExpositionConfig selects how things are exposed by the transport.
// The mode is fixed for the lifetime of the process.
type ExpositionConfig struct {
	// Mode is "single" or "multiple".
	Mode string `yaml:"mode"`

	// Name is the collection name, required in multiple mode.
	Name string `yaml:"name"`
}

// SensorConfig configures the reading producer shared by all update loops.
type SensorConfig struct {
	// Source is "simulated" or "mqtt".
	Source string `yaml:"source"`

	// ID identifies the sensor in MQTT topics (graylogic/sensor/{id}/reading).
	ID string `yaml:"id"`

	// Interval is the cadence between update cycle starts.
	// Default: 5m
	Interval time.Duration `yaml:"interval"`

	// MaxAge is how old an MQTT-delivered reading may be before it is
	// reported as stale. Zero disables the check.
	MaxAge time.Duration `yaml:"max_age"`

	// FaultRate is the probability (0-1) that a simulated read fails.
	FaultRate float64 `yaml:"fault_rate"`

	// Seed seeds the simulated sensor. Zero picks a random seed.
	Seed uint64 `yaml:"seed"`

	// LegacyHumidity makes the simulated sensor draw humidity from the
	// 0-35% noise sequence used by early prototypes.
	LegacyHumidity bool `yaml:"legacy_humidity"`

	// ReadOnStart runs one cycle immediately instead of waiting a full interval.
	ReadOnStart bool `yaml:"read_on_start"`
}

// ThingConfig describes one exposed thing and its sensor-backed properties.
type ThingConfig struct {
	ID          string           `yaml:"id"`
	Title       string           `yaml:"title"`
	Types       []string         `yaml:"types"`
	Description string           `yaml:"description"`
	Properties  []PropertyConfig `yaml:"properties"`
}

// PropertyConfig describes one property and the reading field that feeds it.
type PropertyConfig struct {
	Name         string   `yaml:"name"`
	SemanticType string   `yaml:"semantic_type"`
	Title        string   `yaml:"title"`
	Description  string   `yaml:"description"`
	Type         string   `yaml:"type"`
	Unit         string   `yaml:"unit"`
	Minimum      *float64 `yaml:"minimum,omitempty"`
	Maximum      *float64 `yaml:"maximum,omitempty"`

	// Writable allows external write requests. Sensor properties are
	// read-only unless this is set.
	Writable bool `yaml:"writable"`

	// Initial is the cached value before the first reading arrives.
	Initial float64 `yaml:"initial"`

	// Field selects the reading field: temperature, humidity, pressure, gas_resistance.
	Field string `yaml:"field"`

	// Scale multiplies the raw reading. Zero means 1.
	Scale float64 `yaml:"scale"`

	// Offset is added after scaling.
	Offset float64 `yaml:"offset"`

	// Unclamped disables clamping to [minimum, maximum].
	Unclamped bool `yaml:"unclamped"`
}

// NotifyConfig configures the property change delivery queue.
type NotifyConfig struct {
	QueueSize int `yaml:"queue_size"`
}

// ActionsConfig configures action request handling.
type ActionsConfig struct {
	// Refresh enables the "refresh" action, which runs an immediate update
	// cycle. With it disabled no actions are recognised.
	Refresh bool `yaml:"refresh"`

	// MaxRecords bounds the number of remembered action requests.
	MaxRecords int `yaml:"max_records"`

	// Timeout bounds a single action.
	Timeout time.Duration `yaml:"timeout"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// HistoryRetention is how long property history rows are kept.
	// Zero keeps them forever.
	HistoryRetention time.Duration `yaml:"history_retention"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
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

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
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

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_DATABASE_PATH, GRAYLOGIC_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration, with environment overrides
// applied. It is used when no configuration file exists.
func Default() (*Config, error) {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
// The default thing set is the BME680 temperature and humidity pair.
func defaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8888,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Exposition: ExpositionConfig{
			Mode: ExpositionMultiple,
			Name: "TemperatureHumidityPressureAndVOC",
		},
		Sensor: SensorConfig{
			Source:   SensorSourceSimulated,
			ID:       "bme680",
			Interval: 5 * time.Minute,
			MaxAge:   15 * time.Minute,
		},
		Things: []ThingConfig{
			{
				ID:          "temperature-sensor",
				Title:       "Temperature Sensor",
				Types:       []string{"MultiLevelSensor"},
				Description: "A web connected temperature sensor",
				Properties: []PropertyConfig{{
					Name:         "level",
					SemanticType: "LevelProperty",
					Title:        "Temperature",
					Description:  "The current temperature",
					Type:         "number",
					Unit:         "degree celsius",
					Minimum:      float64Ptr(-40),
					Maximum:      float64Ptr(85),
					Field:        FieldTemperature,
				}},
			},
			{
				ID:          "humidity-sensor",
				Title:       "Humidity Sensor",
				Types:       []string{"MultiLevelSensor"},
				Description: "A web connected humidity sensor",
				Properties: []PropertyConfig{{
					Name:         "level",
					SemanticType: "LevelProperty",
					Title:        "Humidity",
					Description:  "The current humidity in %",
					Type:         "number",
					Unit:         "percent",
					Minimum:      float64Ptr(0),
					Maximum:      float64Ptr(100),
					Field:        FieldHumidity,
				}},
			},
		},
		Notify: NotifyConfig{
			QueueSize: 256,
		},
		Actions: ActionsConfig{
			MaxRecords: 100,
			Timeout:    30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:             "./data/graythings.db",
			WALMode:          true,
			BusyTimeout:      5,
			HistoryRetention: 30 * 24 * time.Hour,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-things",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func float64Ptr(v float64) *float64 {
	return &v
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("GRAYLOGIC_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_API_PORT"); v != "" {
		// An unparsable port is left for Validate to report.
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		} else {
			cfg.API.Port = -1
		}
	}

	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("GRAYLOGIC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("GRAYLOGIC_SENSOR_SOURCE"); v != "" {
		cfg.Sensor.Source = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Database.HistoryRetention < 0 {
		errs = append(errs, "database.history_retention must not be negative")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Notify.QueueSize < 1 {
		errs = append(errs, "notify.queue_size must be at least 1")
	}

	if c.Actions.MaxRecords < 1 {
		errs = append(errs, "actions.max_records must be at least 1")
	}
	if c.Actions.Timeout <= 0 {
		errs = append(errs, "actions.timeout must be positive")
	}

	errs = append(errs, c.validateSensor()...)
	errs = append(errs, c.validateExposition()...)
	errs = append(errs, c.validateThings()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (c *Config) validateSensor() []string {
	var errs []string

	switch c.Sensor.Source {
	case SensorSourceSimulated:
	case SensorSourceMQTT:
		if !c.MQTT.Enabled {
			errs = append(errs, "sensor.source mqtt requires mqtt.enabled")
		}
		if c.Sensor.ID == "" {
			errs = append(errs, "sensor.id is required for the mqtt source")
		}
	default:
		errs = append(errs, fmt.Sprintf("sensor.source %q must be simulated or mqtt", c.Sensor.Source))
	}

	if c.Sensor.Interval <= 0 {
		errs = append(errs, "sensor.interval must be positive")
	}
	if c.Sensor.MaxAge < 0 {
		errs = append(errs, "sensor.max_age must not be negative")
	}
	if c.Sensor.FaultRate < 0 || c.Sensor.FaultRate > 1 {
		errs = append(errs, "sensor.fault_rate must be between 0 and 1")
	}

	return errs
}

func (c *Config) validateExposition() []string {
	switch c.Exposition.Mode {
	case ExpositionSingle:
		if len(c.Things) != 1 {
			return []string{fmt.Sprintf("exposition.mode single requires exactly one thing, got %d", len(c.Things))}
		}
	case ExpositionMultiple:
		if c.Exposition.Name == "" {
			return []string{"exposition.name is required in multiple mode"}
		}
	default:
		return []string{fmt.Sprintf("exposition.mode %q must be single or multiple", c.Exposition.Mode)}
	}
	return nil
}

func (c *Config) validateThings() []string {
	var errs []string

	if len(c.Things) == 0 {
		errs = append(errs, "at least one thing is required")
	}

	thingIDs := make(map[string]bool, len(c.Things))
	for i, t := range c.Things {
		prefix := fmt.Sprintf("things[%d]", i)
		if t.ID == "" {
			errs = append(errs, prefix+".id is required")
		} else if thingIDs[t.ID] {
			errs = append(errs, fmt.Sprintf("%s.id %q is duplicated", prefix, t.ID))
		}
		thingIDs[t.ID] = true

		if t.Title == "" {
			errs = append(errs, prefix+".title is required")
		}
		if len(t.Properties) == 0 {
			errs = append(errs, prefix+" needs at least one property")
		}

		names := make(map[string]bool, len(t.Properties))
		for j, p := range t.Properties {
			pp := fmt.Sprintf("%s.properties[%d]", prefix, j)
			if p.Name == "" {
				errs = append(errs, pp+".name is required")
			} else if names[p.Name] {
				errs = append(errs, fmt.Sprintf("%s.name %q is duplicated", pp, p.Name))
			}
			names[p.Name] = true

			if !IsReadingField(p.Field) {
				errs = append(errs, fmt.Sprintf("%s.field %q is not a reading field", pp, p.Field))
			}

			switch p.Type {
			case "", "number", "integer":
			default:
				errs = append(errs, fmt.Sprintf("%s.type %q must be number or integer", pp, p.Type))
			}

			if p.Minimum != nil && p.Maximum != nil && *p.Minimum > *p.Maximum {
				errs = append(errs, pp+".minimum must not exceed maximum")
			}
		}
	}

	return errs
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
