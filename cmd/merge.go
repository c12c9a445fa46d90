package cmd

import (
	"context"
	"fmt"
	"log"

	"leobook/core/config"
	"leobook/core/database"
	"leobook/core/logger"
	"leobook/core/remote"
	"leobook/core/schema"
	"leobook/core/store"
	syncengine "leobook/core/sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// mergeCmd forces a full bidirectional merge, the same one the engine runs
// at startup. Run it after restoring either store from backup.
var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Force a full bidirectional merge with the cloud database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		reg := schema.NewRegistry()
		st, err := store.Open(cfg.Store, reg, logg)
		if err != nil {
			return fmt.Errorf("open local store: %w", err)
		}

		db, err := database.Connect(cfg.Database)
		if err != nil {
			return fmt.Errorf("connect to cloud database: %w", err)
		}

		marks, err := syncengine.LoadWatermarks(cfg.Sync.WatermarkPath)
		if err != nil {
			return fmt.Errorf("load watermarks: %w", err)
		}

		orch := syncengine.New(cfg.Sync, st, remote.NewSQL(db, reg, logg), reg, marks, logg)
		report, err := orch.StartupMerge(context.Background(), true)
		if err != nil {
			return err
		}
		if failed := report.Failed(); len(failed) > 0 {
			return fmt.Errorf("merge failed for tables: %v", failed)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(mergeCmd)
}
