package cmd

import (
	"fmt"
	"log"

	"leobook/core/config"
	"leobook/core/database"
	"leobook/core/logger"
	"leobook/core/schema"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// checkCmd compares every remote table against the registry and reports
// missing columns. It reads schema metadata only, never row data; use it to
// explain why a table got suspended with a schema mismatch.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the cloud database schema against the table registry",
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

		db, err := database.Connect(cfg.Database)
		if err != nil {
			return fmt.Errorf("connect to cloud database: %w", err)
		}

		var drifted int
		for _, tbl := range schema.NewRegistry().All() {
			missing, err := database.MissingColumns(db, tbl)
			if err != nil {
				drifted++
				logg.Warn("Table check failed", zap.String("table", tbl.Name), zap.Error(err))
				continue
			}
			if len(missing) > 0 {
				drifted++
				logg.Warn("Table is missing columns",
					zap.String("table", tbl.Name), zap.Strings("missing", missing))
				continue
			}
			logg.Info("Table ok", zap.String("table", tbl.Name))
		}
		if drifted > 0 {
			return fmt.Errorf("%d of %d tables drifted from the registry", drifted, len(schema.NewRegistry().All()))
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(checkCmd)
}
