package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leobook/core/config"
	"leobook/core/database"
	"leobook/core/logger"
	"leobook/core/remote"
	"leobook/core/schema"
	"leobook/core/server"
	"leobook/core/store"
	syncengine "leobook/core/sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var startForceMerge bool

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sync engine",
	Long: `Starts the reconciliation engine: opens the local store, performs the
startup merge against the cloud database, then runs cycle sync, micro-sync
and the live score sweep on their cadences, with the status server on top.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Configuration
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		// 2. Initialize Logger
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		reg := schema.NewRegistry()

		// 3. Open the local store. This must never fail soft: producers
		// depend on the write buffer being there.
		st, err := store.Open(cfg.Store, reg, logg)
		if err != nil {
			logg.Fatal("Failed to open local store", zap.Error(err))
		}

		// 4. Connect to the cloud database. Unreachable is tolerated:
		// the engine starts local-only and every cycle retries.
		db, err := database.Connect(cfg.Database)
		if err != nil {
			logg.Warn("Cloud database unreachable, starting local-only", zap.Error(err))
		}
		rc := remote.NewSQL(db, reg, logg)

		// 5. Watermarks and orchestrator
		marks, err := syncengine.LoadWatermarks(cfg.Sync.WatermarkPath)
		if err != nil {
			logg.Fatal("Failed to load watermarks", zap.Error(err))
		}
		orch := syncengine.New(cfg.Sync, st, rc, reg, marks, logg)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// 6. Startup merge. A failed merge is per-table, not fatal:
		// failed tables simply retry on the cycle cadence.
		if db != nil {
			if _, err := orch.StartupMerge(ctx, startForceMerge || cfg.Sync.ForceMerge); err != nil {
				logg.Warn("Startup merge failed", zap.Error(err))
			}
		}

		// 7. Micro-sync plumbing: store mutations on latency-sensitive
		// tables feed the batcher, which flushes into MicroSync.
		micro := make(map[string]bool)
		for _, tbl := range reg.MicroTables() {
			micro[tbl.Name] = true
		}
		batcher := syncengine.NewMicroBatcher(
			cfg.Sync.MicroFlushThreshold,
			time.Duration(cfg.Sync.MicroIntervalSeconds)*time.Second,
			orch.FlushMicro,
		)
		st.SetMutationHook(func(table string, n int) {
			if micro[table] {
				batcher.Add(table, n)
			}
		})

		go batcher.Run(ctx)
		go orch.RunCycleLoop(ctx)

		sweeper := syncengine.NewSweeper(st, cfg.Sync, logg)
		go sweeper.Run(ctx)

		// 8. Status server
		app := server.New(cfg.Server, orch, marks, logg)
		go func() {
			logg.Info("Starting status server", zap.String("port", cfg.Server.Port))
			if err := app.Listen(":" + cfg.Server.Port); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// 9. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down...")
		cancel()
		_ = app.Shutdown()
		if err := marks.Flush(); err != nil {
			logg.Error("Failed to persist watermarks on shutdown", zap.Error(err))
		}
	},
}

func init() {
	startCmd.Flags().BoolVar(&startForceMerge, "force-merge", false,
		"run the startup merge even if this process already merged")
	RootCmd.AddCommand(startCmd)
}
