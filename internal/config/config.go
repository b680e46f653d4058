package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"airlogger/pkg/database"
)

// Config is the process configuration assembled from the environment.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Logging     LoggingConfig
	FlightAware FlightAwareConfig
	Ingestion   IngestionConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	// Driver is one of "postgres" (lib/pq), "pgx" or "sqlite".
	Driver          string
	URL             string
	Path            string
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type LoggingConfig struct {
	Level string
}

type FlightAwareConfig struct {
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	MaxPages int
}

type IngestionConfig struct {
	DefaultTailNumber string
	LookbackDays      int
}

// LoadConfig reads a .env file when present and then the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var errs []error
	cfg := &Config{}

	cfg.Server.Host = getEnv("SERVER_HOST", "0.0.0.0")
	cfg.Server.Port = getEnvInt("SERVER_PORT", 5000, &errs)
	cfg.Server.ReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second, &errs)
	cfg.Server.WriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 120*time.Second, &errs)
	cfg.Server.IdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second, &errs)

	cfg.Database.Driver = strings.ToLower(getEnv("DB_DRIVER", "sqlite"))
	cfg.Database.URL = getEnv("DATABASE_URL", "")
	cfg.Database.Path = getEnv("DB_PATH", "./airlogger.db")
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432, &errs)
	cfg.Database.User = getEnv("DB_USER", "airlogger")
	cfg.Database.Password = getEnv("DB_PASSWORD", "")
	cfg.Database.Database = getEnv("DB_NAME", "airlogger")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10, &errs)
	cfg.Database.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 5, &errs)
	cfg.Database.ConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute, &errs)
	cfg.Database.ConnMaxIdleTime = getEnvDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute, &errs)

	cfg.Logging.Level = getEnv("LOG_LEVEL", "info")

	cfg.FlightAware.APIKey = strings.TrimSpace(os.Getenv("FLIGHTAWARE_API_KEY"))
	cfg.FlightAware.BaseURL = getEnv("FLIGHTAWARE_BASE_URL", "https://aeroapi.flightaware.com/aeroapi")
	cfg.FlightAware.Timeout = getEnvDuration("FLIGHTAWARE_TIMEOUT", 30*time.Second, &errs)
	cfg.FlightAware.MaxPages = getEnvInt("FLIGHTAWARE_MAX_PAGES", 5, &errs)

	cfg.Ingestion.DefaultTailNumber = getEnv("DEFAULT_TAIL_NUMBER", "N593EH")
	cfg.Ingestion.LookbackDays = getEnvInt("INGEST_LOOKBACK_DAYS", 90, &errs)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// Validate checks cross-field constraints. A missing FlightAware key is not
// an error here: the API still serves stored data and refreshes fail with a
// configuration error instead.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT out of range: %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case database.DriverPostgres:
		if c.Database.Host == "" || c.Database.Database == "" {
			return errors.New("DB_HOST and DB_NAME are required for the postgres driver")
		}
	case database.DriverPgx:
		if c.Database.URL == "" {
			return errors.New("DATABASE_URL is required for the pgx driver")
		}
	case database.DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("DB_PATH is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want postgres, pgx or sqlite)", c.Database.Driver)
	}

	if c.Database.MaxOpenConns < 1 {
		return errors.New("DB_MAX_OPEN_CONNS must be at least 1")
	}
	if c.FlightAware.MaxPages < 1 {
		return errors.New("FLIGHTAWARE_MAX_PAGES must be at least 1")
	}
	if c.Ingestion.LookbackDays < 1 {
		return errors.New("INGEST_LOOKBACK_DAYS must be at least 1")
	}
	if strings.TrimSpace(c.Ingestion.DefaultTailNumber) == "" {
		return errors.New("DEFAULT_TAIL_NUMBER must not be empty")
	}

	return nil
}

// DB converts the database section into connection settings.
func (c *Config) DB() *database.Config {
	return &database.Config{
		Driver:          c.Database.Driver,
		URL:             c.Database.URL,
		Path:            c.Database.Path,
		Host:            c.Database.Host,
		Port:            c.Database.Port,
		User:            c.Database.User,
		Password:        c.Database.Password,
		Database:        c.Database.Database,
		SSLMode:         c.Database.SSLMode,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return fallback
	}
	return i
}

func getEnvDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return fallback
	}
	return d
}
