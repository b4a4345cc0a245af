package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/floatchat/floatchat-backend/internal/config"
	"github.com/floatchat/floatchat-backend/internal/ingestion/crawler"
	"github.com/floatchat/floatchat-backend/internal/ingestion/manifest"
	"github.com/floatchat/floatchat-backend/internal/ingestion/netcdfparse"
	"github.com/floatchat/floatchat-backend/internal/platform/logger"
	"github.com/floatchat/floatchat-backend/internal/repos"
	"github.com/floatchat/floatchat-backend/internal/types"
	"github.com/floatchat/floatchat-backend/internal/vector"
)

// TickReport is what one ingestion tick accomplished.
type TickReport struct {
	RunID             int64
	Status            string
	FilesChecked      int
	FilesDownloaded   int
	FilesProcessed    int
	ProfilesAdded     int
	ProfilesSkipped   int
	MeasurementsAdded int
	OrphansRepaired   int
	Errors            []string
	Duration          time.Duration
}

// Orchestrator drives one write-path tick: discover, download, parse, upsert,
// index. It holds no state between ticks; the fingerprint manifest and the
// stores' natural-key conflicts make re-runs resume where a crash left off.
type Orchestrator struct {
	cfg      config.IngestConfig
	store    string
	crawler  *crawler.Crawler
	manifest *manifest.Manifest
	profiles repos.ProfileRepo
	runs     repos.AutomationRepo
	indexer  *vector.Indexer
	log      *logger.Logger
}

func New(
	cfg config.IngestConfig,
	store string,
	crawl *crawler.Crawler,
	mf *manifest.Manifest,
	profiles repos.ProfileRepo,
	runs repos.AutomationRepo,
	indexer *vector.Indexer,
	baseLog *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		crawler:  crawl,
		manifest: mf,
		profiles: profiles,
		runs:     runs,
		indexer:  indexer,
		log:      baseLog.With("service", "IngestionOrchestrator", "store", store),
	}
}

// RunTick executes one tick under the store's write lock. Per-file failures
// are recorded and the tick continues; only a run of consecutive store
// faults, or an error rate above the configured tolerance, makes the tick
// terminal with status "error".
func (o *Orchestrator) RunTick(ctx context.Context) (*TickReport, error) {
	lock, err := acquireTickLock(o.cfg.LockDir, o.store)
	if err != nil {
		return nil, err
	}
	defer lock.release()

	if o.cfg.TickWallClock > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.TickWallClock)
		defer cancel()
	}

	started := time.Now()
	report := &TickReport{Status: types.RunStatusStarted}

	runID, err := o.runs.OpenRun(ctx, o.cfg.DataSource)
	if err != nil {
		return nil, fmt.Errorf("open automation run: %w", err)
	}
	report.RunID = runID

	candidates, err := o.crawler.Discover(ctx, o.cfg.FileBudgetPerTick)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("discovery: %v", err))
	}
	report.FilesChecked = len(candidates)
	o.log.Info("tick discovery complete", "candidates", len(candidates))

	consecutiveDBFaults := 0
	storeAborted := false
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			report.Errors = append(report.Errors, "tick wall clock exhausted")
			break
		}
		download, err := o.manifest.ShouldDownload(ctx, candidate.URL, candidate.Size, candidate.LastModified)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: manifest: %v", candidate.Name, err))
			continue
		}
		if !download {
			continue
		}

		dbFault, err := o.processFile(ctx, candidate, report)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", candidate.Name, err))
			if dbFault {
				consecutiveDBFaults++
				if consecutiveDBFaults >= o.cfg.MaxConsecutiveDBFaults {
					report.Errors = append(report.Errors, "aborting tick: store unreachable")
					storeAborted = true
					break
				}
			}
			continue
		}
		consecutiveDBFaults = 0
	}

	if o.indexer != nil {
		// The indexer is scoped to this store's namespace, so existence is
		// checked against the store that owns those vectors.
		repaired, err := o.indexer.RepairOrphans(ctx, o.profiles.ExistingIDs)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("orphan repair: %v", err))
		}
		report.OrphansRepaired = repaired
	}

	report.Duration = time.Since(started)
	report.Status = o.finalStatus(report)
	if storeAborted {
		report.Status = types.RunStatusError
	}

	// Background context: the tick deadline may already be gone.
	closeErr := o.runs.CloseRun(context.Background(), runID, report.Status, repos.RunTotals{
		FilesChecked:      report.FilesChecked,
		FilesDownloaded:   report.FilesDownloaded,
		FilesProcessed:    report.FilesProcessed,
		ProfilesAdded:     report.ProfilesAdded,
		MeasurementsAdded: report.MeasurementsAdded,
	}, report.Duration, strings.Join(report.Errors, "; "))
	if closeErr != nil {
		o.log.Error("failed to close automation run", "run_id", runID, "error", closeErr)
	}

	o.log.Info("tick complete",
		"status", report.Status,
		"files_downloaded", report.FilesDownloaded,
		"profiles_added", report.ProfilesAdded,
		"measurements_added", report.MeasurementsAdded,
		"errors", len(report.Errors),
		"duration_s", report.Duration.Seconds(),
	)
	return report, nil
}

// processFile handles one candidate end to end. The boolean result reports
// whether a failure was a store fault (those abort the tick when they pile
// up, unlike remote or parse errors).
func (o *Orchestrator) processFile(ctx context.Context, candidate crawler.Candidate, report *TickReport) (bool, error) {
	fileCtx := ctx
	if o.cfg.PerFileTimeout > 0 {
		var cancel context.CancelFunc
		fileCtx, cancel = context.WithTimeout(ctx, o.cfg.PerFileTimeout)
		defer cancel()
	}

	localPath, contentHash, err := o.crawler.Download(fileCtx, candidate, o.cfg.DownloadDir)
	if err != nil {
		var permanent *crawler.PermanentError
		if errors.As(err, &permanent) {
			// Remember the failure so the path is not re-fetched every tick;
			// evicting the manifest entry re-enables it.
			_ = o.manifest.Put(fileCtx, manifest.Entry{
				URL:          candidate.URL,
				Size:         candidate.Size,
				LastModified: candidate.LastModified,
			})
		}
		return false, fmt.Errorf("download: %w", err)
	}
	report.FilesDownloaded++

	if err := o.manifest.Put(fileCtx, manifest.Entry{
		URL:          candidate.URL,
		Size:         candidate.Size,
		LastModified: candidate.LastModified,
		ContentHash:  contentHash,
	}); err != nil {
		return false, fmt.Errorf("manifest update: %w", err)
	}

	bundles, diag, err := netcdfparse.ParseFile(localPath)
	if err != nil {
		return false, fmt.Errorf("parse: %w", err)
	}
	for _, problem := range diag.Problems {
		o.log.Debug("parse diagnostic", "file", diag.File, "problem", problem)
	}

	var indexable []*types.ArgoProfile
	for _, bundle := range bundles {
		profile, measurements := toStoreRows(candidate.Name, contentHash, bundle)
		outcome, err := o.profiles.Upsert(fileCtx, profile, measurements)
		if err != nil {
			return true, fmt.Errorf("upsert profile %s/%d: %w", profile.FloatID, profile.CycleNumber, err)
		}
		switch {
		case outcome.SkippedDuplicate:
			report.ProfilesSkipped++
		case outcome.Inserted:
			report.ProfilesAdded++
			report.MeasurementsAdded += outcome.MeasurementsAdded
			indexed := *profile
			indexed.GlobalProfileID = outcome.GlobalProfileID
			indexable = append(indexable, &indexed)
		}
	}

	if o.indexer != nil && len(indexable) > 0 {
		if err := o.indexer.IndexProfiles(fileCtx, indexable); err != nil {
			// The relational rows are already committed. Later ticks do not
			// add the missing vector records: orphan repair only deletes
			// vectors whose profile is gone.
			return false, fmt.Errorf("vector index: %w", err)
		}
	}

	report.FilesProcessed++
	return false, nil
}

func toStoreRows(sourceFile, fingerprint string, bundle netcdfparse.ProfileBundle) (*types.ArgoProfile, []types.ArgoMeasurement) {
	p := bundle.Profile
	profile := &types.ArgoProfile{
		SourceFile:        sourceFile,
		SourceFingerprint: fingerprint,
		LocalProfileID:    p.LocalProfileID,
		FloatID:           p.FloatID,
		CycleNumber:       p.CycleNumber,
		Datetime:          p.Datetime,
		Latitude:          p.Latitude,
		Longitude:         p.Longitude,
		MinPressure:       p.MinPressure,
		MaxPressure:       p.MaxPressure,
		MeasurementCount:  len(bundle.Levels),
		ProjectName:       p.ProjectName,
		Institution:       p.Institution,
		DataMode:          p.DataMode,
	}

	measurements := make([]types.ArgoMeasurement, len(bundle.Levels))
	for i, level := range bundle.Levels {
		measurements[i] = types.ArgoMeasurement{
			Level:       i,
			Pressure:    level.Pressure,
			Temperature: level.Temperature,
			Salinity:    level.Salinity,
			Latitude:    p.Latitude,
			Longitude:   p.Longitude,
			Datetime:    p.Datetime,
		}
	}
	return profile, measurements
}

func (o *Orchestrator) finalStatus(report *TickReport) string {
	if report.FilesChecked == 0 {
		if len(report.Errors) > 0 {
			return types.RunStatusError
		}
		return types.RunStatusCompleted
	}
	rate := float64(len(report.Errors)) / float64(report.FilesChecked)
	if rate > o.cfg.ErrorRateTolerance {
		return types.RunStatusError
	}
	return types.RunStatusCompleted
}
