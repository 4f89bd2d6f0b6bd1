package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for authgate.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Security SecurityConfig `yaml:"security"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
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

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// RedisConfig contains settings for the Redis-backed token revocation store.
// When disabled, revocation is tracked in an in-process store instead —
// sufficient for single-instance deployments.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// DialTimeout is the connection timeout in seconds.
	DialTimeout int `yaml:"dial_timeout"`
}

// InfluxDBConfig contains settings for the optional auth-event metrics sink.
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

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT          JWTConfig          `yaml:"jwt"`
	Registration RegistrationConfig `yaml:"registration"`
}

// JWTConfig contains JWT token settings.
//
// Access and refresh tokens are signed with independent keys so a leaked
// access-token key cannot be used to forge refresh tokens.
type JWTConfig struct {
	AccessKey  string `yaml:"access_key"`
	RefreshKey string `yaml:"refresh_key"`

	// AccessTokenTTL is the access token lifetime in minutes.
	AccessTokenTTL int `yaml:"access_token_ttl"`

	// RefreshTokenTTL is the refresh token lifetime in minutes.
	RefreshTokenTTL int `yaml:"refresh_token_ttl"`

	// ClockSkewLeeway is the tolerance window applied to time-based claim
	// validation (exp, nbf, iat). Zero by default; set only when cross-host
	// clock drift is expected in deployment.
	ClockSkewLeeway time.Duration `yaml:"clock_skew_leeway"`
}

// RegistrationConfig controls the signup policy.
type RegistrationConfig struct {
	// Open allows self-service signup. When false, POST /auth/signup
	// returns 403.
	Open bool `yaml:"open"`

	// OpenActivation makes new accounts active immediately. When false,
	// accounts are created inactive and an administrator must activate
	// them before guarded requests succeed.
	OpenActivation bool `yaml:"open_activation"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: AUTHGATE_SECTION_KEY
// For example: AUTHGATE_DATABASE_PATH, AUTHGATE_JWT_ACCESS_KEY
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default TTLs: 15-minute access tokens, 7-day refresh tokens.
const (
	defaultAccessTokenTTL  = 15
	defaultRefreshTokenTTL = 10080
)

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/authgate.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			DialTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL:  defaultAccessTokenTTL,
				RefreshTokenTTL: defaultRefreshTokenTTL,
			},
			Registration: RegistrationConfig{
				Open:           true,
				OpenActivation: true,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides following the
// AUTHGATE_SECTION_KEY pattern. A variable that is unset or fails to parse
// leaves the file value in place; Validate catches anything nonsensical
// afterwards.
func applyEnvOverrides(cfg *Config) {
	// API
	envString("AUTHGATE_API_HOST", &cfg.API.Host)
	envInt("AUTHGATE_API_PORT", &cfg.API.Port)

	// Database
	envString("AUTHGATE_DATABASE_PATH", &cfg.Database.Path)
	envBool("AUTHGATE_DATABASE_WAL_MODE", &cfg.Database.WALMode)
	envInt("AUTHGATE_DATABASE_BUSY_TIMEOUT", &cfg.Database.BusyTimeout)

	// Redis
	envBool("AUTHGATE_REDIS_ENABLED", &cfg.Redis.Enabled)
	envString("AUTHGATE_REDIS_ADDR", &cfg.Redis.Addr)
	envString("AUTHGATE_REDIS_PASSWORD", &cfg.Redis.Password)
	envInt("AUTHGATE_REDIS_DB", &cfg.Redis.DB)

	// InfluxDB
	envBool("AUTHGATE_INFLUXDB_ENABLED", &cfg.InfluxDB.Enabled)
	envString("AUTHGATE_INFLUXDB_URL", &cfg.InfluxDB.URL)
	envString("AUTHGATE_INFLUXDB_TOKEN", &cfg.InfluxDB.Token)
	envString("AUTHGATE_INFLUXDB_ORG", &cfg.InfluxDB.Org)
	envString("AUTHGATE_INFLUXDB_BUCKET", &cfg.InfluxDB.Bucket)

	// Logging
	envString("AUTHGATE_LOGGING_LEVEL", &cfg.Logging.Level)
	envString("AUTHGATE_LOGGING_FORMAT", &cfg.Logging.Format)
	envString("AUTHGATE_LOGGING_OUTPUT", &cfg.Logging.Output)

	// Security - signing keys (IMPORTANT: always set in production)
	envString("AUTHGATE_JWT_ACCESS_KEY", &cfg.Security.JWT.AccessKey)
	envString("AUTHGATE_JWT_REFRESH_KEY", &cfg.Security.JWT.RefreshKey)
	envInt("AUTHGATE_JWT_ACCESS_TOKEN_TTL", &cfg.Security.JWT.AccessTokenTTL)
	envInt("AUTHGATE_JWT_REFRESH_TOKEN_TTL", &cfg.Security.JWT.RefreshTokenTTL)

	// Registration policy
	envBool("AUTHGATE_REGISTRATION_OPEN", &cfg.Security.Registration.Open)
	envBool("AUTHGATE_REGISTRATION_OPEN_ACTIVATION", &cfg.Security.Registration.OpenActivation)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// minSigningKeyLength is the minimum signing key length in bytes.
// Shorter keys weaken HMAC-SHA-384 below its design strength.
const minSigningKeyLength = 32

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// Both signing keys are REQUIRED at startup. Tokens forged with an
	// empty or shared key would grant access to every account, so the
	// process refuses to start without two distinct strong keys.
	switch {
	case c.Security.JWT.AccessKey == "":
		errs = append(errs, "security.jwt.access_key is required (set AUTHGATE_JWT_ACCESS_KEY environment variable)")
	case len(c.Security.JWT.AccessKey) < minSigningKeyLength:
		errs = append(errs, "security.jwt.access_key must be at least 32 characters")
	}
	switch {
	case c.Security.JWT.RefreshKey == "":
		errs = append(errs, "security.jwt.refresh_key is required (set AUTHGATE_JWT_REFRESH_KEY environment variable)")
	case len(c.Security.JWT.RefreshKey) < minSigningKeyLength:
		errs = append(errs, "security.jwt.refresh_key must be at least 32 characters")
	}
	if c.Security.JWT.AccessKey != "" && c.Security.JWT.AccessKey == c.Security.JWT.RefreshKey {
		errs = append(errs, "security.jwt.access_key and security.jwt.refresh_key must differ")
	}

	if c.Security.JWT.AccessTokenTTL <= 0 {
		errs = append(errs, "security.jwt.access_token_ttl must be positive")
	}
	if c.Security.JWT.RefreshTokenTTL <= 0 {
		errs = append(errs, "security.jwt.refresh_token_ttl must be positive")
	}
	if c.Security.JWT.ClockSkewLeeway < 0 {
		errs = append(errs, "security.jwt.clock_skew_leeway must not be negative")
	}

	// Redis validation (only when the backend is selected)
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis.addr is required when redis.enabled is true")
	}

	// InfluxDB validation (only when the sink is enabled)
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb.enabled is true")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb.enabled is true (set AUTHGATE_INFLUXDB_TOKEN environment variable)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// AccessTokenDuration returns the access token lifetime as a Duration.
func (c *JWTConfig) AccessTokenDuration() time.Duration {
	return time.Duration(c.AccessTokenTTL) * time.Minute
}

// RefreshTokenDuration returns the refresh token lifetime as a Duration.
func (c *JWTConfig) RefreshTokenDuration() time.Duration {
	return time.Duration(c.RefreshTokenTTL) * time.Minute
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
