package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"keyrepository/internal/config"
	"keyrepository/internal/migrations"
)

// Connect opens a GORM database connection for the configured driver.
// gorm's own logging is routed through zlog at the shared level.
func Connect(cfg *config.Config, zlog *zap.Logger, level *zap.AtomicLevel) (*gorm.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DatabaseURL)
	case config.DriverMySQL:
		dialector = mysql.Open(cfg.DatabaseURL)
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.DBDriver)
	}

	// PrepareStmt: true prevents the GORM postgres migrator from forcing simple protocol
	// for "SELECT * FROM table LIMIT 1", which would otherwise trigger "insufficient arguments".
	db, err := gorm.Open(dialector, &gorm.Config{
		PrepareStmt: cfg.DBDriver == config.DriverPostgres,
		Logger:      newLogger(zlog, level),
	})
	if err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate applies every pending schema migration.
func Migrate(ctx context.Context, db *gorm.DB, zlog *zap.Logger) error {
	if zlog == nil {
		zlog = zap.NewNop()
	}
	runner, err := migrations.NewRunner(db, zlog.Named("migrate"), migrations.All()...)
	if err != nil {
		return err
	}
	return runner.Up(ctx)
}

// Ping checks that the underlying connection pool can reach the database.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
