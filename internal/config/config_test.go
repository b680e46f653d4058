package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airlogger/pkg/database"
)

// clearEnv pins every variable LoadConfig reads so a developer's shell or a
// stray .env value cannot leak into the assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	for _, key := range []string{
		"SERVER_HOST", "SERVER_PORT", "SERVER_READ_TIMEOUT", "SERVER_WRITE_TIMEOUT", "SERVER_IDLE_TIMEOUT",
		"DB_DRIVER", "DATABASE_URL", "DB_PATH", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME",
		"DB_SSLMODE", "DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME", "DB_CONN_MAX_IDLE_TIME",
		"LOG_LEVEL", "FLIGHTAWARE_API_KEY", "FLIGHTAWARE_BASE_URL", "FLIGHTAWARE_TIMEOUT", "FLIGHTAWARE_MAX_PAGES",
		"DEFAULT_TAIL_NUMBER", "INGEST_LOOKBACK_DAYS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, database.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "./airlogger.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.FlightAware.APIKey)
	assert.Equal(t, "https://aeroapi.flightaware.com/aeroapi", cfg.FlightAware.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.FlightAware.Timeout)
	assert.Equal(t, 5, cfg.FlightAware.MaxPages)
	assert.Equal(t, "N593EH", cfg.Ingestion.DefaultTailNumber)
	assert.Equal(t, 90, cfg.Ingestion.LookbackDays)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("DB_DRIVER", "PGX")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/airlogger")
	t.Setenv("FLIGHTAWARE_API_KEY", "  key-123  ")
	t.Setenv("FLIGHTAWARE_TIMEOUT", "5s")
	t.Setenv("DEFAULT_TAIL_NUMBER", "N12345")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, database.DriverPgx, cfg.Database.Driver)
	assert.Equal(t, "key-123", cfg.FlightAware.APIKey)
	assert.Equal(t, 5*time.Second, cfg.FlightAware.Timeout)
	assert.Equal(t, "N12345", cfg.Ingestion.DefaultTailNumber)

	dsn, err := cfg.DB().DSN()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/airlogger", dsn)
}

func TestLoadConfig_InvalidNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "eighty")
	t.Setenv("FLIGHTAWARE_TIMEOUT", "soon")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_PORT")
	assert.Contains(t, err.Error(), "FLIGHTAWARE_TIMEOUT")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "SERVER_PORT",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "mysql" },
			wantErr: "unsupported DB_DRIVER",
		},
		{
			name:    "pgx without url",
			mutate:  func(c *Config) { c.Database.Driver = database.DriverPgx },
			wantErr: "DATABASE_URL",
		},
		{
			name: "postgres without host",
			mutate: func(c *Config) {
				c.Database.Driver = database.DriverPostgres
				c.Database.Host = ""
			},
			wantErr: "DB_HOST",
		},
		{
			name:    "zero lookback",
			mutate:  func(c *Config) { c.Ingestion.LookbackDays = 0 },
			wantErr: "INGEST_LOOKBACK_DAYS",
		},
		{
			name:    "blank tail number",
			mutate:  func(c *Config) { c.Ingestion.DefaultTailNumber = "  " },
			wantErr: "DEFAULT_TAIL_NUMBER",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			cfg, err := LoadConfig()
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
