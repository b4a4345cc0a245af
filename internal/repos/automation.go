package repos

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/floatchat/floatchat-backend/internal/platform/logger"
	"github.com/floatchat/floatchat-backend/internal/types"
)

// RunTotals carries the counters accumulated over one ingestion tick.
type RunTotals struct {
	FilesChecked      int
	FilesDownloaded   int
	FilesProcessed    int
	ProfilesAdded     int
	MeasurementsAdded int
}

type AutomationRepo interface {
	// OpenRun records a tick in status "started" and returns its row ID.
	OpenRun(ctx context.Context, dataSource string) (int64, error)
	// CloseRun finalizes the tick with its terminal status and counters.
	CloseRun(ctx context.Context, runID int64, status string, totals RunTotals, duration time.Duration, errorMessage string) error
	RecentRuns(ctx context.Context, limit int) ([]types.AutomationRun, error)
}

type automationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAutomationRepo(db *gorm.DB, baseLog *logger.Logger) AutomationRepo {
	return &automationRepo{db: db, log: baseLog.With("repo", "AutomationRepo")}
}

func (r *automationRepo) OpenRun(ctx context.Context, dataSource string) (int64, error) {
	run := types.AutomationRun{
		RunTimestamp: time.Now().UTC(),
		Status:       types.RunStatusStarted,
		DataSource:   dataSource,
	}
	if err := r.db.WithContext(ctx).Create(&run).Error; err != nil {
		return 0, err
	}
	return run.ID, nil
}

func (r *automationRepo) CloseRun(ctx context.Context, runID int64, status string, totals RunTotals, duration time.Duration, errorMessage string) error {
	updates := map[string]interface{}{
		"status":             status,
		"files_checked":      totals.FilesChecked,
		"files_downloaded":   totals.FilesDownloaded,
		"files_processed":    totals.FilesProcessed,
		"profiles_added":     totals.ProfilesAdded,
		"measurements_added": totals.MeasurementsAdded,
		"duration_seconds":   duration.Seconds(),
		"error_message":      errorMessage,
	}
	return r.db.WithContext(ctx).
		Model(&types.AutomationRun{}).
		Where("id = ?", runID).
		Updates(updates).Error
}

func (r *automationRepo) RecentRuns(ctx context.Context, limit int) ([]types.AutomationRun, error) {
	if limit <= 0 {
		limit = 10
	}
	var runs []types.AutomationRun
	err := r.db.WithContext(ctx).
		Order("run_timestamp DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}
