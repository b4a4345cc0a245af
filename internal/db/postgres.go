package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/floatchat/floatchat-backend/internal/config"
	"github.com/floatchat/floatchat-backend/internal/platform/logger"
	"github.com/floatchat/floatchat-backend/internal/types"
)

// StoreKind names one of the two relational stores: the stable development
// snapshot and the growing live store.
type StoreKind string

const (
	StoreDev  StoreKind = "dev"
	StoreLive StoreKind = "live"
)

// Store wraps one relational store. Writes go through gorm; the bounded
// read-only query path uses a pgx pool directly.
type Store struct {
	kind    StoreKind
	db      *gorm.DB
	pool    *pgxpool.Pool
	idRange config.IDRange
	log     *logger.Logger
}

// Open connects one store, migrates its schema, and verifies its ID range.
func Open(ctx context.Context, log *logger.Logger, kind StoreKind, dsn string, idRange config.IDRange) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("store %s: dsn required", kind)
	}
	storeLog := log.With("service", "PostgresStore", "store", string(kind))

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("store %s: connect: %w", kind, err)
	}

	if err := gdb.WithContext(ctx).AutoMigrate(
		&types.ArgoProfile{},
		&types.ArgoMeasurement{},
		&types.AutomationRun{},
	); err != nil {
		return nil, fmt.Errorf("store %s: migrate: %w", kind, err)
	}
	if err := gdb.WithContext(ctx).Exec(`
		ALTER TABLE "argo_measurements"
		DROP CONSTRAINT IF EXISTS "fk_measurements_profile";
	`).Error; err != nil {
		return nil, fmt.Errorf("store %s: reset measurement fk: %w", kind, err)
	}
	if err := gdb.WithContext(ctx).Exec(`
		ALTER TABLE "argo_measurements"
		ADD CONSTRAINT "fk_measurements_profile"
		FOREIGN KEY ("global_profile_id")
		REFERENCES "argo_profiles"("global_profile_id")
		ON DELETE CASCADE;
	`).Error; err != nil {
		return nil, fmt.Errorf("store %s: add measurement fk: %w", kind, err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store %s: pool: %w", kind, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store %s: ping: %w", kind, err)
	}

	s := &Store{
		kind:    kind,
		db:      gdb,
		pool:    pool,
		idRange: idRange,
		log:     storeLog,
	}
	if err := s.verifyRange(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	storeLog.Info("store ready",
		"id_range_low", idRange.Low,
		"id_range_high", idRange.High,
	)
	return s, nil
}

// verifyRange refuses to serve a store whose rows already violate its range,
// which would break the cross-store ID disjointness guarantee.
func (s *Store) verifyRange(ctx context.Context) error {
	var outside int64
	err := s.db.WithContext(ctx).
		Model(&types.ArgoProfile{}).
		Where("global_profile_id < ? OR global_profile_id >= ?", s.idRange.Low, s.idRange.High).
		Count(&outside).Error
	if err != nil {
		return fmt.Errorf("store %s: range check: %w", s.kind, err)
	}
	if outside > 0 {
		return fmt.Errorf("store %s: %d profiles outside id range [%d, %d)", s.kind, outside, s.idRange.Low, s.idRange.High)
	}
	return nil
}

func (s *Store) Kind() StoreKind         { return s.kind }
func (s *Store) DB() *gorm.DB            { return s.db }
func (s *Store) Pool() *pgxpool.Pool     { return s.pool }
func (s *Store) IDRange() config.IDRange { return s.idRange }

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
