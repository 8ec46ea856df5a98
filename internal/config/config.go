package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// Config holds the core runtime configuration for the service.
// Values are sourced from environment variables (optionally loaded
// from a .env file by the caller), with defaults where sensible.
type Config struct {
	// DBDriver selects the gorm dialect: postgres, mysql or sqlite.
	DBDriver string

	// DatabaseURL is the driver specific DSN. For sqlite it is a file path.
	DatabaseURL string

	ListenAddr string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// APITokenHash is a bcrypt hash of the bearer token accepted on /v1.
	// If empty, the API is served without authentication.
	APITokenHash string

	// AutoMigrate applies pending schema migrations when the server starts.
	AutoMigrate bool
}

// Load reads configuration from environment variables and applies defaults.
func Load() *Config {
	cfg := &Config{
		DBDriver:     strings.ToLower(getenv("APP_DB_DRIVER", DriverPostgres)),
		DatabaseURL:  strings.TrimSpace(os.Getenv("APP_DATABASE_URL")),
		ListenAddr:   getenv("APP_LISTEN_ADDR", ":8080"),
		LogLevel:     strings.ToLower(getenv("APP_LOG_LEVEL", "info")),
		APITokenHash: os.Getenv("APP_API_TOKEN_HASH"),
	}

	if v := os.Getenv("APP_AUTO_MIGRATE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AutoMigrate = b
		}
	}

	return cfg
}

// Validate checks that the database settings are usable and normalises
// the DSN for drivers that need it.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("APP_DATABASE_URL is required")
	}

	switch c.DBDriver {
	case DriverPostgres:
		if !strings.HasPrefix(c.DatabaseURL, "postgres://") && !strings.HasPrefix(c.DatabaseURL, "postgresql://") {
			return errors.New("APP_DATABASE_URL must be a postgres:// or postgresql:// URL")
		}
	case DriverMySQL:
		dsn, err := normalizeMySQLDSN(c.DatabaseURL)
		if err != nil {
			return err
		}
		c.DatabaseURL = dsn
	case DriverSQLite:
	default:
		return fmt.Errorf("unsupported APP_DB_DRIVER %q", c.DBDriver)
	}

	return nil
}

// normalizeMySQLDSN forces parseTime so DATETIME columns scan into time.Time.
func normalizeMySQLDSN(dsn string) (string, error) {
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql APP_DATABASE_URL: %w", err)
	}
	mc.ParseTime = true
	if mc.Params == nil {
		mc.Params = map[string]string{}
	}
	if _, ok := mc.Params["charset"]; !ok {
		mc.Params["charset"] = "utf8mb4"
	}
	return mc.FormatDSN(), nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
