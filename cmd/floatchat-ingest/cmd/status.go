package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/floatchat/floatchat-backend/internal/config"
	"github.com/floatchat/floatchat-backend/internal/db"
	"github.com/floatchat/floatchat-backend/internal/platform/envutil"
	"github.com/floatchat/floatchat-backend/internal/platform/logger"
	"github.com/floatchat/floatchat-backend/internal/repos"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent automation runs for the selected store",
	RunE: func(cmd *cobra.Command, args []string) error {
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

		store, err := db.Open(cmd.Context(), log, kind, dsn, idRange)
		if err != nil {
			return fmt.Errorf("open %s store: %w", kind, err)
		}
		defer store.Close()

		runs, err := repos.NewAutomationRepo(store.DB(), log).RecentRuns(cmd.Context(), 10)
		if err != nil {
			return fmt.Errorf("load runs: %w", err)
		}
		if len(runs) == 0 {
			fmt.Println("no automation runs recorded")
			return nil
		}
		for _, run := range runs {
			line := fmt.Sprintf("%s  %-9s  downloaded=%d profiles=%d measurements=%d duration=%.1fs",
				run.RunTimestamp.Format("2006-01-02 15:04:05"),
				run.Status, run.FilesDownloaded, run.ProfilesAdded,
				run.MeasurementsAdded, run.DurationSeconds)
			if run.ErrorMessage != "" {
				line += "  error=" + run.ErrorMessage
			}
			fmt.Println(line)
		}
		return nil
	},
}
