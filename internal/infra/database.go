package infra

import (
	"fmt"
	"time"

	"github.com/Mtaasisi/NEON-POS-sub042/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DatabaseOptions tunes the connection pool.
type DatabaseOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewDatabase establishes a GORM connection backed by pgx and brings the
// schema up to date via Migrate.
//
// TranslateError is required: the unit ledger relies on gorm.ErrDuplicatedKey
// to turn a unique-index violation into DuplicateIdentifier.
func NewDatabase(dsn string, opts DatabaseOptions) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), NewGormConfig())
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 25
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = 5
	}
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// NewGormConfig is shared by the server, the CLI and tests so every
// connection translates driver errors the same way.
func NewGormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
}

// Migrate runs AutoMigrate for the inventory tables and then applies the
// idempotent SQL patches AutoMigrate cannot express (partial indexes, checks).
// Works on both PostgreSQL and SQLite.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Product{},
		&model.Variant{},
		&model.StockMovement{},
		&model.PriceHistory{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL. Each statement uses IF NOT EXISTS or an
// existence guard so re-running on an already-patched DB is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// The uniqueness guard. Scoped to active, unsold units: a sold record is
		// closed, so a returned device can re-enter with the same serial.
		{"unique active serial", `
CREATE UNIQUE INDEX IF NOT EXISTS idx_variants_active_serial
    ON variants (serial)
    WHERE kind = 'unit' AND state = 'available' AND active`},
		// Allocation candidates, oldest first.
		{"available units by parent", `
CREATE INDEX IF NOT EXISTS idx_variants_available_units
    ON variants (parent_id, created_at)
    WHERE kind = 'unit' AND state = 'available' AND active`},
	}

	if db.Dialector.Name() == "postgres" {
		patches = append(patches, struct{ descr, sql string }{"unit requires parent", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_variants_unit_parent') THEN
    ALTER TABLE variants
      ADD CONSTRAINT chk_variants_unit_parent
      CHECK (kind <> 'unit' OR parent_id IS NOT NULL);
  END IF;
END $$`}, struct{ descr, sql string }{"known variant kinds", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_variants_kind') THEN
    ALTER TABLE variants
      ADD CONSTRAINT chk_variants_kind
      CHECK (kind IN ('standard', 'parent', 'unit'));
  END IF;
END $$`})
	}

	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
