package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for lumenctl.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Cloud     CloudConfig     `yaml:"cloud"`
	Local     LocalConfig     `yaml:"local"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Keys      KeysConfig      `yaml:"keys"`
	Cache     CacheConfig     `yaml:"cache"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CloudConfig contains relay API settings.
type CloudConfig struct {
	// Environment selects the deployment: "prod", "test" or "dev".
	// Production resolves to the well-known relay host; the others
	// require an explicit Host.
	Environment string `yaml:"environment"`

	// Host overrides the relay base URL for any environment.
	Host string `yaml:"host"`

	// Token is the bearer credential from the account flow.
	// Usually supplied via LUMEN_CLOUD_TOKEN rather than the file.
	Token string `yaml:"token"`
}

// LocalConfig contains local transport settings.
type LocalConfig struct {
	// DevicePort is the TCP port devices accept commands on.
	DevicePort int `yaml:"device_port"`

	// DialTimeout is the TCP connect budget (seconds).
	DialTimeout int `yaml:"dial_timeout"`
}

// DiscoveryConfig contains local discovery settings.
type DiscoveryConfig struct {
	// BroadcastAddr is where probes are sent.
	BroadcastAddr string `yaml:"broadcast_addr"`

	// WindowMS is the reply-collection window (milliseconds).
	WindowMS int `yaml:"window_ms"`
}

// DispatchConfig contains dispatcher tuning.
type DispatchConfig struct {
	// Strategy is "local", "cloud" or "try-local-then-cloud".
	Strategy string `yaml:"strategy"`

	// Attempts is the retry budget per transport per device.
	Attempts int `yaml:"attempts"`

	// BackoffMS is the fixed pause between retries (milliseconds).
	BackoffMS int `yaml:"backoff_ms"`

	// AttemptTimeout bounds one attempt (seconds).
	AttemptTimeout int `yaml:"attempt_timeout"`

	// GlobalTimeout bounds the whole dispatch call (seconds). 0 disables.
	GlobalTimeout int `yaml:"global_timeout"`

	// MaxInFlight bounds concurrent device sessions.
	MaxInFlight int `yaml:"max_in_flight"`

	// Freshness is the reachability age that triggers a discovery
	// refresh (seconds).
	Freshness int `yaml:"freshness"`
}

// KeysConfig contains AES key material sources.
// Keys live in memory only and are never written to the cache.
type KeysConfig struct {
	// AESKey is a hex-encoded 16-byte key overriding every device's key.
	AESKey string `yaml:"aes_key"`

	// Passphrase derives an override key when AESKey is empty.
	Passphrase string `yaml:"passphrase"`

	// PerDevice maps unit ids to hex-encoded device keys.
	PerDevice map[string]string `yaml:"per_device"`
}

// CacheConfig contains the on-disk device cache settings.
type CacheConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains the optional dispatch-outcome publisher settings.
type MQTTConfig struct {
	Enabled bool           `yaml:"enabled"`
	Broker  MQTTBroker     `yaml:"broker"`
	Auth    MQTTAuthConfig `yaml:"auth"`
	QoS     int            `yaml:"qos"`
}

// MQTTBroker contains broker connection details.
type MQTTBroker struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains broker credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// TelemetryConfig contains the optional InfluxDB latency writer settings.
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration and applies environment variable overrides.
//
// The loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults); an empty path skips the file
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: LUMEN_SECTION_KEY
// For example: LUMEN_CLOUD_TOKEN, LUMEN_CACHE_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for defaults+env
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
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
		Cloud: CloudConfig{
			Environment: "prod",
		},
		Local: LocalConfig{
			DevicePort:  3333,
			DialTimeout: 2,
		},
		Discovery: DiscoveryConfig{
			WindowMS: 2500,
		},
		Dispatch: DispatchConfig{
			Strategy:       "try-local-then-cloud",
			Attempts:       3,
			BackoffMS:      200,
			AttemptTimeout: 2,
			GlobalTimeout:  30,
			MaxInFlight:    16,
			Freshness:      60,
		},
		Cache: CacheConfig{
			Enabled:     true,
			Path:        "./data/lumen-devices.db",
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBroker{
				Host:     "localhost",
				Port:     1883,
				ClientID: "lumenctl",
			},
			QoS: 1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
	}
}

// applyEnvOverrides applies environment variable overrides.
// Environment variables follow the pattern: LUMEN_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Cloud
	if v := os.Getenv("LUMEN_CLOUD_ENVIRONMENT"); v != "" {
		cfg.Cloud.Environment = v
	}
	if v := os.Getenv("LUMEN_CLOUD_HOST"); v != "" {
		cfg.Cloud.Host = v
	}
	if v := os.Getenv("LUMEN_CLOUD_TOKEN"); v != "" {
		cfg.Cloud.Token = v
	}

	// Keys (prefer env to keep material out of files)
	if v := os.Getenv("LUMEN_AES_KEY"); v != "" {
		cfg.Keys.AESKey = v
	}
	if v := os.Getenv("LUMEN_PASSPHRASE"); v != "" {
		cfg.Keys.Passphrase = v
	}

	// Dispatch
	if v := os.Getenv("LUMEN_DISPATCH_STRATEGY"); v != "" {
		cfg.Dispatch.Strategy = v
	}

	// Cache
	if v := os.Getenv("LUMEN_CACHE_PATH"); v != "" {
		cfg.Cache.Path = v
	}

	// MQTT
	if v := os.Getenv("LUMEN_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("LUMEN_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("LUMEN_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Telemetry
	if v := os.Getenv("LUMEN_TELEMETRY_TOKEN"); v != "" {
		cfg.Telemetry.Token = v
	}

	// Logging
	if v := os.Getenv("LUMEN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	switch c.Cloud.Environment {
	case "prod":
	case "test", "dev":
		if c.Cloud.Host == "" {
			errs = append(errs, fmt.Sprintf("cloud.host is required for the %q environment", c.Cloud.Environment))
		}
	default:
		errs = append(errs, "cloud.environment must be prod, test or dev")
	}

	switch c.Dispatch.Strategy {
	case "local", "cloud", "try-local-then-cloud":
	default:
		errs = append(errs, "dispatch.strategy must be local, cloud or try-local-then-cloud")
	}

	if c.Local.DevicePort < 1 || c.Local.DevicePort > 65535 {
		errs = append(errs, "local.device_port must be between 1 and 65535")
	}
	if c.Discovery.WindowMS <= 0 {
		errs = append(errs, "discovery.window_ms must be positive")
	}
	if c.Dispatch.Attempts < 1 {
		errs = append(errs, "dispatch.attempts must be at least 1")
	}
	if c.Dispatch.MaxInFlight < 1 {
		errs = append(errs, "dispatch.max_in_flight must be at least 1")
	}

	if c.Keys.AESKey != "" {
		if err := validateHexKey(c.Keys.AESKey); err != nil {
			errs = append(errs, fmt.Sprintf("keys.aes_key: %v", err))
		}
	}
	for unitID, key := range c.Keys.PerDevice {
		if err := validateHexKey(key); err != nil {
			errs = append(errs, fmt.Sprintf("keys.per_device[%s]: %v", unitID, err))
		}
	}

	if c.Cache.Enabled && c.Cache.Path == "" {
		errs = append(errs, "cache.path is required when the cache is enabled")
	}
	if c.MQTT.Enabled && (c.MQTT.QoS < 0 || c.MQTT.QoS > 2) {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.Telemetry.Enabled {
		if c.Telemetry.URL == "" {
			errs = append(errs, "telemetry.url is required when telemetry is enabled")
		}
		if c.Telemetry.Token == "" {
			errs = append(errs, "telemetry.token is required when telemetry is enabled (set LUMEN_TELEMETRY_TOKEN)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateHexKey checks that a string decodes to exactly 16 bytes of hex.
func validateHexKey(s string) error {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("not valid hex: %w", err)
	}
	if len(raw) != 16 {
		return fmt.Errorf("must decode to 16 bytes, got %d", len(raw))
	}
	return nil
}

// GetDiscoveryWindow returns the discovery window as a Duration.
func (c *Config) GetDiscoveryWindow() time.Duration {
	return time.Duration(c.Discovery.WindowMS) * time.Millisecond
}

// GetDialTimeout returns the local dial timeout as a Duration.
func (c *Config) GetDialTimeout() time.Duration {
	return time.Duration(c.Local.DialTimeout) * time.Second
}

// GetBackoff returns the retry backoff as a Duration.
func (c *Config) GetBackoff() time.Duration {
	return time.Duration(c.Dispatch.BackoffMS) * time.Millisecond
}

// GetAttemptTimeout returns the per-attempt timeout as a Duration.
func (c *Config) GetAttemptTimeout() time.Duration {
	return time.Duration(c.Dispatch.AttemptTimeout) * time.Second
}

// GetGlobalTimeout returns the global dispatch deadline as a Duration.
func (c *Config) GetGlobalTimeout() time.Duration {
	return time.Duration(c.Dispatch.GlobalTimeout) * time.Second
}

// GetFreshness returns the reachability freshness threshold as a Duration.
func (c *Config) GetFreshness() time.Duration {
	return time.Duration(c.Dispatch.Freshness) * time.Second
}
