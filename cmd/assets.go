package cmd

import (
	"context"
	"fmt"
	"log"

	"leobook/core/config"
	"leobook/core/logger"
	"leobook/core/schema"
	"leobook/core/storage"
	"leobook/core/store"
	"leobook/feature/assets"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var assetsLimit int

// assetsCmd mirrors team and league crests into the asset bucket.
var assetsCmd = &cobra.Command{
	Use:   "assets",
	Short: "Sync team and league crest images to object storage",
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

		st, err := store.Open(cfg.Store, schema.NewRegistry(), logg)
		if err != nil {
			return fmt.Errorf("open local store: %w", err)
		}

		client, err := storage.NewClient(cfg.Storage)
		if err != nil {
			return fmt.Errorf("create storage client: %w", err)
		}

		svc := assets.NewService(client, st, cfg.Storage.Bucket, logg)
		report, err := svc.SyncCrests(context.Background(), assetsLimit)
		if err != nil {
			return err
		}
		logg.Info("Crest sync finished",
			zap.Int("uploaded", report.Uploaded),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed))
		return nil
	},
}

func init() {
	assetsCmd.Flags().IntVar(&assetsLimit, "limit", 0, "maximum crest uploads this run (0 = unbounded)")
	RootCmd.AddCommand(assetsCmd)
}
