package repos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/floatchat/floatchat-backend/internal/config"
	"github.com/floatchat/floatchat-backend/internal/platform/logger"
	"github.com/floatchat/floatchat-backend/internal/types"
)

// UpsertResult reports what one profile upsert did. SkippedDuplicate is the
// expected outcome when a file is re-ingested.
type UpsertResult struct {
	GlobalProfileID   int64
	Inserted          bool
	SkippedDuplicate  bool
	MeasurementsAdded int
}

type ProfileRepo interface {
	// Upsert inserts the profile and its measurements in one transaction.
	// A natural-key collision returns the existing ID with SkippedDuplicate
	// set and writes nothing.
	Upsert(ctx context.Context, profile *types.ArgoProfile, measurements []types.ArgoMeasurement) (UpsertResult, error)
	GetByID(ctx context.Context, globalProfileID int64) (*types.ArgoProfile, error)
	GetByIDs(ctx context.Context, ids []int64) ([]types.ArgoProfile, error)
	ExistingIDs(ctx context.Context, ids []int64) (map[int64]bool, error)
	CountProfiles(ctx context.Context) (int64, error)
}

type profileRepo struct {
	db      *gorm.DB
	idRange config.IDRange
	log     *logger.Logger
}

func NewProfileRepo(db *gorm.DB, idRange config.IDRange, baseLog *logger.Logger) ProfileRepo {
	return &profileRepo{
		db:      db,
		idRange: idRange,
		log:     baseLog.With("repo", "ProfileRepo"),
	}
}

func (r *profileRepo) Upsert(ctx context.Context, profile *types.ArgoProfile, measurements []types.ArgoMeasurement) (UpsertResult, error) {
	if profile == nil {
		return UpsertResult{}, fmt.Errorf("profile required")
	}
	if profile.FloatID == "" {
		return UpsertResult{}, fmt.Errorf("profile float_id required")
	}
	if profile.SourceFingerprint == "" {
		return UpsertResult{}, fmt.Errorf("profile source fingerprint required")
	}

	var result UpsertResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing types.ArgoProfile
		err := tx.
			Where("float_id = ? AND cycle_number = ? AND source_file_fingerprint = ?",
				profile.FloatID, profile.CycleNumber, profile.SourceFingerprint).
			Select("global_profile_id").
			First(&existing).Error
		switch {
		case err == nil:
			result = UpsertResult{GlobalProfileID: existing.GlobalProfileID, SkippedDuplicate: true}
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("natural key lookup: %w", err)
		}

		id, err := r.nextID(tx)
		if err != nil {
			return err
		}

		row := *profile
		row.GlobalProfileID = id
		row.CreatedAt = time.Now().UTC()
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}

		if len(measurements) > 0 {
			rows := make([]types.ArgoMeasurement, len(measurements))
			copy(rows, measurements)
			for i := range rows {
				rows[i].GlobalProfileID = id
				rows[i].CreatedAt = row.CreatedAt
			}
			const batchSize = 500
			if err := tx.CreateInBatches(rows, batchSize).Error; err != nil {
				return fmt.Errorf("insert measurements: %w", err)
			}
		}

		result = UpsertResult{
			GlobalProfileID:   id,
			Inserted:          true,
			MeasurementsAdded: len(measurements),
		}
		return nil
	})
	if err != nil {
		return UpsertResult{}, err
	}
	return result, nil
}

// nextID allocates the next surrogate ID from the store's half-open range.
// The single-writer-per-store discipline makes MAX+1 race-free; the range
// bounds keep dev and live stores disjoint by construction.
func (r *profileRepo) nextID(tx *gorm.DB) (int64, error) {
	var maxID *int64
	err := tx.
		Model(&types.ArgoProfile{}).
		Where("global_profile_id >= ? AND global_profile_id < ?", r.idRange.Low, r.idRange.High).
		Select("MAX(global_profile_id)").
		Scan(&maxID).Error
	if err != nil {
		return 0, fmt.Errorf("id allocation: %w", err)
	}
	next := r.idRange.Low
	if maxID != nil {
		next = *maxID + 1
	}
	if next >= r.idRange.High {
		return 0, fmt.Errorf("id range [%d, %d) exhausted", r.idRange.Low, r.idRange.High)
	}
	return next, nil
}

func (r *profileRepo) GetByID(ctx context.Context, globalProfileID int64) (*types.ArgoProfile, error) {
	var profile types.ArgoProfile
	err := r.db.WithContext(ctx).
		Where("global_profile_id = ?", globalProfileID).
		First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepo) GetByIDs(ctx context.Context, ids []int64) ([]types.ArgoProfile, error) {
	var profiles []types.ArgoProfile
	if len(ids) == 0 {
		return profiles, nil
	}
	err := r.db.WithContext(ctx).
		Where("global_profile_id IN ?", ids).
		Order("global_profile_id ASC").
		Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *profileRepo) ExistingIDs(ctx context.Context, ids []int64) (map[int64]bool, error) {
	out := make(map[int64]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var found []int64
	err := r.db.WithContext(ctx).
		Model(&types.ArgoProfile{}).
		Where("global_profile_id IN ?", ids).
		Pluck("global_profile_id", &found).Error
	if err != nil {
		return nil, err
	}
	for _, id := range found {
		out[id] = true
	}
	return out, nil
}

func (r *profileRepo) CountProfiles(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&types.ArgoProfile{}).Count(&count).Error
	return count, err
}
