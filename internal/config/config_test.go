package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STORAGE_TYPE", "")
	t.Setenv("AUTH_TYPE", "")
	t.Setenv("NETWORK", "")
	t.Setenv("SECURITY_FILTER_ENABLED", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, "none", cfg.Auth.Type)
	assert.Equal(t, "hardhat", cfg.Network.Name)
	assert.Equal(t, 4, cfg.Oracle.Workers)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.True(t, cfg.Security.FilterEnabled)
}

func TestLoad_SecurityFilterToggle(t *testing.T) {
	t.Setenv("SECURITY_FILTER_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Security.FilterEnabled)
}

func TestLoad_DatabaseURLSelectsPostgres(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/nomadhouse")
	t.Setenv("STORAGE_TYPE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Storage.Type)
}

func TestLoad_RejectsUnknownAuthType(t *testing.T) {
	t.Setenv("AUTH_TYPE", "oauth")

	_, err := Load()
	assert.Error(t, err)
}

func TestGetEnvList(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []string
	}{
		{"unset uses default", "", []string{"a"}},
		{"trims entries", " 10.0.0.0/8 , 192.168.0.0/16 ", []string{"10.0.0.0/8", "192.168.0.0/16"}},
		{"only separators", ",,", []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_SLICE", tt.value)
			assert.Equal(t, tt.want, getEnvList("TEST_SLICE", []string{"a"}))
		})
	}
}

func TestLoad_PrefixWins(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("NOMADHOUSE_PORT", "9100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"unset uses default", "", time.Minute},
		{"bare seconds", "90", 90 * time.Second},
		{"go duration", "250ms", 250 * time.Millisecond},
		{"garbage uses default", "soon", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			assert.Equal(t, tt.want, getEnvDuration("TEST_DURATION", time.Minute))
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:  ServerConfig{Port: 8080},
			Storage: StorageConfig{Type: "sqlite", SQLite: SQLiteConfig{Path: "x.db"}},
			Auth:    AuthConfig{Type: "none"},
			Logging: LoggingConfig{Format: "json"},
			Metrics: MetricsConfig{Enabled: true, Port: 9090},
			Network: NetworkConfig{Name: "hardhat"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"postgres without url", func(c *Config) { c.Storage.Type = "postgres" }, "DATABASE_URL"},
		{"unknown storage", func(c *Config) { c.Storage.Type = "mongo" }, "unknown storage type"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "unknown log format"},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "invalid port"},
		{"metrics on api port", func(c *Config) { c.Metrics.Port = 8080 }, "collides"},
		{"empty network", func(c *Config) { c.Network.Name = "" }, "NETWORK"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
