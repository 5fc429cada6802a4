// =============================
// File: internal/storage/gormstore/gormstore.go
// =============================
package gormstore

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rovshanmuradov/bondcurve/internal/ledger"
	"github.com/rovshanmuradov/bondcurve/internal/storage/models"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// migrationLockID is the postgres advisory lock taken while migrating.
const migrationLockID = 101

// Store is a ledger.Store and storage.History backed by a SQL database.
type Store struct {
	db        *gorm.DB
	driver    string
	programID solana.PublicKey
	logger    *zap.Logger
}

var _ ledger.Store = (*Store)(nil)

// Open connects to the database. It does not create tables; call Migrate.
func Open(driver, dsn string, programID solana.PublicKey, zapLogger *zap.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(zapLogger.Named("gorm"), logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if driver == DriverSQLite {
		// one writer; also keeps an in-memory database on a single connection
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		db:        db,
		driver:    driver,
		programID: programID,
		logger:    zapLogger.Named("store"),
	}, nil
}

// Migrate creates or updates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if s.driver == DriverPostgres {
		var lockObtained bool
		if err := db.Raw("SELECT pg_try_advisory_lock(?)", migrationLockID).Scan(&lockObtained).Error; err != nil {
			return fmt.Errorf("failed to acquire migration lock: %w", err)
		}
		if !lockObtained {
			return fmt.Errorf("another migration is in progress")
		}
		defer db.Exec("SELECT pg_advisory_unlock(?)", migrationLockID)
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	s.logger.Info("Schema migrated", zap.String("driver", s.driver))
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Atomic(ctx context.Context, fn func(tx ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&gormTx{db: db, store: s})
	})
}

// View runs fn in a transaction that is always rolled back.
func (s *Store) View(ctx context.Context, fn func(tx ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db := s.db.WithContext(ctx).Begin()
	if db.Error != nil {
		return fmt.Errorf("failed to begin read transaction: %w", db.Error)
	}
	defer db.Rollback()

	return fn(&gormTx{db: db, store: s, readOnly: true})
}
