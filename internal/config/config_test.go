package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_DB_DRIVER", "")
	t.Setenv("APP_DATABASE_URL", "")
	t.Setenv("APP_LISTEN_ADDR", "")
	t.Setenv("APP_LOG_LEVEL", "")
	t.Setenv("APP_AUTO_MIGRATE", "")

	cfg := Load()
	if cfg.DBDriver != DriverPostgres {
		t.Fatalf("expected postgres driver, got %q", cfg.DBDriver)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("expected :8080, got %q", cfg.ListenAddr)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected info log level, got %q", cfg.LogLevel)
	}
	if cfg.AutoMigrate {
		t.Fatal("expected auto migrate to be off by default")
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("APP_DB_DRIVER", "SQLite")
	t.Setenv("APP_DATABASE_URL", " keys.db ")
	t.Setenv("APP_AUTO_MIGRATE", "true")
	t.Setenv("APP_LOG_LEVEL", "DEBUG")

	cfg := Load()
	if cfg.DBDriver != DriverSQLite {
		t.Fatalf("expected sqlite driver, got %q", cfg.DBDriver)
	}
	if cfg.DatabaseURL != "keys.db" {
		t.Fatalf("expected trimmed database url, got %q", cfg.DatabaseURL)
	}
	if !cfg.AutoMigrate {
		t.Fatal("expected auto migrate to be on")
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected debug log level, got %q", cfg.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "missing url", cfg: Config{DBDriver: DriverSQLite}, wantErr: "APP_DATABASE_URL is required"},
		{name: "postgres scheme", cfg: Config{DBDriver: DriverPostgres, DatabaseURL: "mysql://x"}, wantErr: "postgres://"},
		{name: "postgres ok", cfg: Config{DBDriver: DriverPostgres, DatabaseURL: "postgres://u:p@localhost/keys"}},
		{name: "sqlite ok", cfg: Config{DBDriver: DriverSQLite, DatabaseURL: "keys.db"}},
		{name: "unknown driver", cfg: Config{DBDriver: "oracle", DatabaseURL: "x"}, wantErr: "unsupported"},
		{name: "mysql bad dsn", cfg: Config{DBDriver: DriverMySQL, DatabaseURL: "not a dsn"}, wantErr: "invalid mysql"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateNormalizesMySQLDSN(t *testing.T) {
	cfg := Config{DBDriver: DriverMySQL, DatabaseURL: "root:secret@tcp(localhost:3306)/keys"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(cfg.DatabaseURL, "parseTime=true") {
		t.Fatalf("expected parseTime in dsn, got %q", cfg.DatabaseURL)
	}
	if !strings.Contains(cfg.DatabaseURL, "charset=utf8mb4") {
		t.Fatalf("expected charset in dsn, got %q", cfg.DatabaseURL)
	}
}
