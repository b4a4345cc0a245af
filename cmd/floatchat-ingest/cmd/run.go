package cmd

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/floatchat/floatchat-backend/internal/config"
	"github.com/floatchat/floatchat-backend/internal/db"
	"github.com/floatchat/floatchat-backend/internal/ingestion/crawler"
	"github.com/floatchat/floatchat-backend/internal/ingestion/manifest"
	"github.com/floatchat/floatchat-backend/internal/ingestion/orchestrator"
	"github.com/floatchat/floatchat-backend/internal/platform/envutil"
	"github.com/floatchat/floatchat-backend/internal/platform/logger"
	"github.com/floatchat/floatchat-backend/internal/platform/openai"
	"github.com/floatchat/floatchat-backend/internal/platform/qdrant"
	"github.com/floatchat/floatchat-backend/internal/repos"
	"github.com/floatchat/floatchat-backend/internal/vector"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one ingestion tick against the selected store",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTick(cmd.Context())
	},
}

func runTick(ctx context.Context) error {
	_ = godotenv.Load()

	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var (
		kind    db.StoreKind
		dsn     string
		idRange config.IDRange
	)
	switch flagStore {
	case "dev":
		kind, dsn, idRange = db.StoreDev, cfg.Stores.DevDSN, cfg.Stores.DevIDRange
	case "live":
		kind, dsn, idRange = db.StoreLive, cfg.Stores.LiveDSN, cfg.Stores.LiveIDRange
	default:
		return fmt.Errorf("unknown store %q (want dev or live)", flagStore)
	}

	store, err := db.Open(ctx, log, kind, dsn, idRange)
	if err != nil {
		return fmt.Errorf("open %s store: %w", kind, err)
	}
	defer store.Close()

	crawl, err := crawler.New(crawler.Config{
		RootURL:     cfg.Ingest.RemoteRootURL,
		AcceptGlobs: cfg.Ingest.AcceptGlobs,
		Years:       cfg.Ingest.Years,
		Months:      cfg.Ingest.Months,
		Timeout:     cfg.Ingest.PerFileTimeout,
		RetryMax:    cfg.Ingest.RetryMax,
		BackoffBase: cfg.Ingest.BackoffBase,
	}, log)
	if err != nil {
		return fmt.Errorf("init crawler: %w", err)
	}

	mf, err := manifest.Open(cfg.Ingest.ManifestPath, log)
	if err != nil {
		return fmt.Errorf("open manifest: %w", err)
	}
	defer mf.Close()

	profileRepo := repos.NewProfileRepo(store.DB(), store.IDRange(), log)
	runRepo := repos.NewAutomationRepo(store.DB(), log)

	// The semantic index is best effort: a tick without it still lands the
	// relational rows. Profiles added during such a tick are not indexed by
	// later runs.
	var indexer *vector.Indexer
	if llm, err := openai.NewClient(log); err != nil {
		log.Warn("llm client unavailable; skipping vector indexing this tick", "error", err)
	} else if qdrantCfg, err := qdrant.ResolveConfigFromEnv(cfg.Vector.CollectionName, cfg.Vector.EmbeddingDim); err != nil {
		log.Warn("vector store not configured; skipping vector indexing this tick", "error", err)
	} else if vs, err := qdrant.NewVectorStore(log, qdrantCfg); err != nil {
		log.Warn("vector store init failed; skipping vector indexing this tick", "error", err)
	} else if indexer, err = vector.NewIndexer(vs, llm.Embed, string(kind), log); err != nil {
		return fmt.Errorf("init indexer: %w", err)
	}

	orch := orchestrator.New(cfg.Ingest, string(kind), crawl, mf, profileRepo, runRepo, indexer, log)
	report, err := orch.RunTick(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("tick %s: status=%s checked=%d downloaded=%d profiles=%d measurements=%d skipped=%d errors=%d duration=%.1fs\n",
		kind, report.Status, report.FilesChecked, report.FilesDownloaded,
		report.ProfilesAdded, report.MeasurementsAdded, report.ProfilesSkipped,
		len(report.Errors), report.Duration.Seconds())
	return nil
}
