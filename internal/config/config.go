// Package config reads server, storage and oracle settings from the
// environment. Every variable may also be given with a NOMADHOUSE_ prefix,
// which wins over the bare name.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "NOMADHOUSE_"

// Config holds all configuration for the server and oracle
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Auth      AuthConfig
	Logging   LoggingConfig
	RateLimit RateLimitConfig
	Security  SecurityConfig
	Proxy     ProxyConfig
	Metrics   MetricsConfig
	Network   NetworkConfig
	Oracle    OracleConfig
}

type ServerConfig struct {
	Port           int
	Host           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration // 0 disables the per-request deadline
}

// Addr is the listen address for the API
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type StorageConfig struct {
	Type     string // "sqlite" or "postgres"
	Postgres PostgresConfig
	SQLite   SQLiteConfig
}

type PostgresConfig struct {
	URL string
}

type SQLiteConfig struct {
	Path string
}

// AuthConfig selects how callers are identified: "none" trusts the
// X-Caller-Address header, "api-key" maps keys to addresses.
type AuthConfig struct {
	Type string
}

type LoggingConfig struct {
	Level  string
	Format string // "text" or "json"
}

type RateLimitConfig struct {
	Enabled        bool
	RequestsPerMin int
	BurstSize      int
	IdleTTL        time.Duration // how long an idle client keeps its bucket
}

type SecurityConfig struct {
	FilterEnabled bool
	MaxBodySizeMB int
}

// ProxyConfig controls X-Forwarded-For handling
type ProxyConfig struct {
	TrustProxy     bool
	TrustedProxies []string // CIDR notation
}

type MetricsConfig struct {
	Enabled bool
	Port    int
}

// NetworkConfig selects the deploy profile the ledger is bootstrapped from
type NetworkConfig struct {
	Name         string
	ProfilesFile string // optional TOML or YAML file with extra profiles
}

// OracleConfig holds settings for the reference oracle worker
type OracleConfig struct {
	ServerURL      string
	APIKey         string
	Address        string // sent as X-Caller-Address when the server runs without auth
	PollInterval   time.Duration
	Workers        int
	CacheTTL       time.Duration
	HTTPTimeout    time.Duration
	FulfillRetries int
}

// Load reads the configuration and validates it
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnvInt("PORT", 8080),
			Host:           getEnv("HOST", "0.0.0.0"),
			ReadTimeout:    getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getEnvDuration("SERVER_WRITE_TIMEOUT", time.Minute),
			IdleTimeout:    getEnvDuration("SERVER_IDLE_TIMEOUT", 2*time.Minute),
			RequestTimeout: getEnvDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
		},
		Storage: StorageConfig{
			Type:     getEnv("STORAGE_TYPE", ""),
			Postgres: PostgresConfig{URL: getEnv("DATABASE_URL", "")},
			SQLite:   SQLiteConfig{Path: getEnv("SQLITE_PATH", "./data/nomadhouse.db")},
		},
		Auth: AuthConfig{
			Type: getEnv("AUTH_TYPE", "none"),
		},
		Logging: LoggingConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMin: getEnvInt("RATE_LIMIT_RPM", 300),
			BurstSize:      getEnvInt("RATE_LIMIT_BURST", 50),
			IdleTTL:        getEnvDuration("RATE_LIMIT_IDLE_TTL", 10*time.Minute),
		},
		Security: SecurityConfig{
			FilterEnabled: getEnvBool("SECURITY_FILTER_ENABLED", true),
			MaxBodySizeMB: getEnvInt("SECURITY_MAX_BODY_SIZE_MB", 1),
		},
		Proxy: ProxyConfig{
			TrustProxy:     getEnvBool("TRUST_PROXY", false),
			TrustedProxies: getEnvList("TRUSTED_PROXIES", []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Port:    getEnvInt("METRICS_PORT", 9090),
		},
		Network: NetworkConfig{
			Name:         getEnv("NETWORK", "hardhat"),
			ProfilesFile: getEnv("NETWORKS_FILE", ""),
		},
		Oracle: OracleConfig{
			ServerURL:      getEnv("ORACLE_SERVER_URL", "http://localhost:8080"),
			APIKey:         getEnv("ORACLE_API_KEY", ""),
			Address:        getEnv("ORACLE_ADDRESS", ""),
			PollInterval:   getEnvDuration("ORACLE_POLL_INTERVAL", 5*time.Second),
			Workers:        max(1, getEnvInt("ORACLE_WORKERS", 4)),
			CacheTTL:       getEnvDuration("ORACLE_CACHE_TTL", 5*time.Minute),
			HTTPTimeout:    getEnvDuration("ORACLE_HTTP_TIMEOUT", 10*time.Second),
			FulfillRetries: getEnvInt("ORACLE_FULFILL_RETRIES", 3),
		},
	}

	// A database URL without an explicit type means Postgres
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "sqlite"
		if cfg.Storage.Postgres.URL != "" {
			cfg.Storage.Type = "postgres"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error

	switch c.Auth.Type {
	case "none", "api-key":
	default:
		errs = append(errs, fmt.Errorf("unknown auth type: %s", c.Auth.Type))
	}

	switch c.Storage.Type {
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			errs = append(errs, errors.New("SQLITE_PATH must not be empty"))
		}
	case "postgres":
		if c.Storage.Postgres.URL == "" {
			errs = append(errs, errors.New("postgres storage requires DATABASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage type: %s", c.Storage.Type))
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log format: %s", c.Logging.Format))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port: %d", c.Server.Port))
	}
	if c.Metrics.Enabled && c.Metrics.Port == c.Server.Port {
		errs = append(errs, fmt.Errorf("metrics port %d collides with the API port", c.Metrics.Port))
	}
	if c.Network.Name == "" {
		errs = append(errs, errors.New("NETWORK must not be empty"))
	}

	return errors.Join(errs...)
}

// lookup returns the prefixed variable if set, else the bare one
func lookup(key string) (string, bool) {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v, true
	}
	if v := os.Getenv(key); v != "" {
		return v, true
	}
	return "", false
}

func getEnv(key, def string) string {
	if v, ok := lookup(key); ok {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v, ok := lookup(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// getEnvDuration accepts Go durations ("90s", "5m") and bare seconds ("90")
func getEnvDuration(key string, def time.Duration) time.Duration {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}

func getEnvList(key string, def []string) []string {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
