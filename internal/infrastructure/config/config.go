package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the camera bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	Cameras   CamerasConfig   `yaml:"cameras"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
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

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains the bearer token settings for the API's mutating
// routes. Tokens are HS256-signed with Secret.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes, for tokens minted by `graycam token`
}

// TokenTTL returns the access token lifetime as a Duration.
func (j JWTConfig) TokenTTL() time.Duration {
	return time.Duration(j.AccessTokenTTL) * time.Minute
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// CamerasConfig contains the camera bridge settings.
//
// Credentials are process-wide: every camera is accessed with the same
// user and password. Intervals and timeouts are in seconds.
type CamerasConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	// FastPollInterval drives motion re-queries and pending write retries.
	FastPollInterval int `yaml:"fast_poll_interval"`

	// SlowPollInterval drives reachability probes and full state refreshes.
	SlowPollInterval int `yaml:"slow_poll_interval"`

	RequestTimeout     int `yaml:"request_timeout"`
	MaxConcurrentPolls int `yaml:"max_concurrent_polls"`
	HealthInterval     int `yaml:"health_interval"`

	Notifications NotificationConfig `yaml:"notifications"`

	// Static lists cameras that cannot be discovered on the network.
	Static []StaticCameraConfig `yaml:"static"`
}

// NotificationConfig contains the motion notification listener settings.
// Port 0 lets the kernel pick a free port.
type NotificationConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StaticCameraConfig describes a manually configured camera.
type StaticCameraConfig struct {
	Type string `yaml:"type"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Auth optionally pins the HTTP authentication mode ("basic" or "digest").
	Auth string `yaml:"auth,omitempty"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_DATABASE_PATH, GRAYLOGIC_CAMERAS_PASSWORD
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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Gray Logic",
		},
		Database: DatabaseConfig{
			Path:        "./data/graycam.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-cameras",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
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
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 1440,
			},
		},
		Cameras: CamerasConfig{
			User:               "admin",
			FastPollInterval:   10,
			SlowPollInterval:   60,
			RequestTimeout:     5,
			MaxConcurrentPolls: 8,
			HealthInterval:     30,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("GRAYLOGIC_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - JWT secret (always set it from the environment in production)
	if v := os.Getenv("GRAYLOGIC_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}

	// Cameras
	if v := os.Getenv("GRAYLOGIC_CAMERAS_USER"); v != "" {
		cfg.Cameras.User = v
	}
	if v := os.Getenv("GRAYLOGIC_CAMERAS_PASSWORD"); v != "" {
		cfg.Cameras.Password = v
	}
	if v := os.Getenv("GRAYLOGIC_CAMERAS_NOTIFY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Cameras.Notifications.Port = port
		}
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set GRAYLOGIC_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}
	if c.Security.JWT.AccessTokenTTL < 1 {
		errs = append(errs, "security.jwt.access_token_ttl must be at least 1 minute")
	}

	errs = append(errs, c.Cameras.validate()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (c *CamerasConfig) validate() []string {
	var errs []string

	if c.User == "" {
		errs = append(errs, "cameras.user is required")
	}
	if c.FastPollInterval < 1 {
		errs = append(errs, "cameras.fast_poll_interval must be at least 1 second")
	}
	if c.SlowPollInterval < c.FastPollInterval {
		errs = append(errs, "cameras.slow_poll_interval must not be shorter than fast_poll_interval")
	}
	if c.RequestTimeout < 1 {
		errs = append(errs, "cameras.request_timeout must be at least 1 second")
	}
	if c.MaxConcurrentPolls < 1 {
		errs = append(errs, "cameras.max_concurrent_polls must be at least 1")
	}
	if c.Notifications.Port < 0 || c.Notifications.Port > 65535 {
		errs = append(errs, "cameras.notifications.port must be between 0 and 65535")
	}

	// Static entries with missing fields are skipped at runtime, but a bad
	// auth override is an operator typo worth failing on.
	for i, s := range c.Static {
		switch strings.ToLower(s.Auth) {
		case "", "basic", "digest":
		default:
			errs = append(errs, fmt.Sprintf("cameras.static[%d].auth must be basic or digest", i))
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

// FastPoll returns the fast poll interval as a Duration.
func (c *CamerasConfig) FastPoll() time.Duration {
	return time.Duration(c.FastPollInterval) * time.Second
}

// SlowPoll returns the slow poll interval as a Duration.
func (c *CamerasConfig) SlowPoll() time.Duration {
	return time.Duration(c.SlowPollInterval) * time.Second
}

// Timeout returns the per-request camera timeout as a Duration.
func (c *CamerasConfig) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// Health returns the health report interval as a Duration.
func (c *CamerasConfig) Health() time.Duration {
	return time.Duration(c.HealthInterval) * time.Second
}
