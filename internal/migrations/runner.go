package migrations

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"keyrepository/internal/metrics"
)

// ErrUnknownMigration is returned by Down when the ledger's most recent
// entry has no registered migration to revert it.
var ErrUnknownMigration = errors.New("unknown migration")

// schemaMigration is one row of the ledger of applied migrations.
type schemaMigration struct {
	ID        string    `gorm:"primaryKey;type:varchar(255);not null"`
	AppliedAt time.Time `gorm:"not null"`
}

func (schemaMigration) TableName() string {
	return "schema_migrations"
}

// Status reports whether a registered migration has been applied.
type Status struct {
	ID        string
	AppliedAt *time.Time
}

// Runner applies and reverts migrations, recording each applied one in the
// schema_migrations ledger within the same transaction as its DDL.
type Runner struct {
	db         *gorm.DB
	logger     *zap.Logger
	migrations []*Migration
}

// NewRunner validates the migrations and returns a runner that applies them
// in ID order.
func NewRunner(db *gorm.DB, logger *zap.Logger, migrations ...*Migration) (*Runner, error) {
	if db == nil {
		return nil, errors.New("gorm db is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	seen := make(map[string]struct{}, len(migrations))
	sorted := make([]*Migration, 0, len(migrations))
	for _, m := range migrations {
		if m == nil {
			return nil, errors.New("nil migration")
		}
		if strings.TrimSpace(m.ID) == "" {
			return nil, errors.New("migration id is required")
		}
		if m.Up == nil || m.Down == nil {
			return nil, fmt.Errorf("migration %s: up and down are required", m.ID)
		}
		if _, ok := seen[m.ID]; ok {
			return nil, fmt.Errorf("duplicate migration id %s", m.ID)
		}
		seen[m.ID] = struct{}{}
		sorted = append(sorted, m)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	return &Runner{db: db, logger: logger, migrations: sorted}, nil
}

// Up applies every pending migration. A migration that fails is rolled back
// and left unrecorded; later migrations are not attempted.
func (r *Runner) Up(ctx context.Context) error {
	applied, err := r.applied(ctx)
	if err != nil {
		return err
	}

	for _, m := range r.migrations {
		if _, ok := applied[m.ID]; ok {
			continue
		}

		start := time.Now()
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := m.Up(tx); err != nil {
				return err
			}
			return tx.Create(&schemaMigration{ID: m.ID, AppliedAt: time.Now().UTC()}).Error
		})
		metrics.MigrationsTotal.WithLabelValues("up", metrics.Result(err)).Inc()
		if err != nil {
			r.logger.Error("migration failed", zap.String("id", m.ID), zap.Error(err))
			return fmt.Errorf("apply migration %s: %w", m.ID, err)
		}

		r.logger.Info("applied migration", zap.String("id", m.ID), zap.Duration("elapsed", time.Since(start)))
	}

	return nil
}

// Down reverts the most recently applied migration. It is a no-op when
// nothing has been applied.
func (r *Runner) Down(ctx context.Context) error {
	if err := r.ensureLedger(ctx); err != nil {
		return err
	}

	var last schemaMigration
	if err := r.db.WithContext(ctx).Order("applied_at DESC").Order("id DESC").Limit(1).Find(&last).Error; err != nil {
		return fmt.Errorf("read migration ledger: %w", err)
	}
	if last.ID == "" {
		r.logger.Info("no migrations to revert")
		return nil
	}

	m := r.lookup(last.ID)
	if m == nil {
		return fmt.Errorf("%w: %s", ErrUnknownMigration, last.ID)
	}

	start := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := m.Down(tx); err != nil {
			return err
		}
		return tx.Where("id = ?", m.ID).Delete(&schemaMigration{}).Error
	})
	metrics.MigrationsTotal.WithLabelValues("down", metrics.Result(err)).Inc()
	if err != nil {
		r.logger.Error("migration revert failed", zap.String("id", m.ID), zap.Error(err))
		return fmt.Errorf("revert migration %s: %w", m.ID, err)
	}

	r.logger.Info("reverted migration", zap.String("id", m.ID), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// Status lists every registered migration in apply order.
func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	applied, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Status, 0, len(r.migrations))
	for _, m := range r.migrations {
		s := Status{ID: m.ID}
		if at, ok := applied[m.ID]; ok {
			at := at
			s.AppliedAt = &at
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *Runner) ensureLedger(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&schemaMigration{}); err != nil {
		return fmt.Errorf("ensure migration ledger: %w", err)
	}
	return nil
}

func (r *Runner) applied(ctx context.Context) (map[string]time.Time, error) {
	if err := r.ensureLedger(ctx); err != nil {
		return nil, err
	}

	var rows []schemaMigration
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read migration ledger: %w", err)
	}

	applied := make(map[string]time.Time, len(rows))
	for _, row := range rows {
		applied[row.ID] = row.AppliedAt
	}
	return applied, nil
}

func (r *Runner) lookup(id string) *Migration {
	for _, m := range r.migrations {
		if m.ID == id {
			return m
		}
	}
	return nil
}
