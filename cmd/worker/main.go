package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"assessment-jobs/internal/config"
	"assessment-jobs/internal/logger"
	"assessment-jobs/internal/metrics"
	"assessment-jobs/internal/repository"
	"assessment-jobs/internal/service"
)

// The worker runs the sweeper on its own, for deployments that start the API
// with -sweep=false.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Errorf("main", "main", "failed to load config: %v", err)
		os.Exit(1)
	}

	dbPath := flag.String("db", cfg.DBPath, "path to SQLite database")
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	logger.SetLevel(cfg.LogLevel)

	repo, err := repository.NewSQLiteRepository(*dbPath)
	if err != nil {
		logger.Errorf("main", "main", "failed to initialize repository: %v", err)
		os.Exit(1)
	}
	defer repo.Close()

	sweeper := service.NewSweeper(repo, metrics.NewMetrics(), cfg.StaleJobAfter, cfg.DraftTTL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *once {
		result, err := sweeper.SweepOnce(ctx)
		if err != nil {
			logger.Errorf("main", "main", "sweep failed: %v", err)
			os.Exit(1)
		}
		logger.Infof("main", "main", "sweep done: stale_jobs=%d deleted_drafts=%d", result.StaleJobs, result.DeletedDrafts)
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Infof("main", "main", "shutting down worker...")
		cancel()
	}()

	logger.Infof("main", "main", "worker started, sweeping every %s", cfg.SweepInterval)
	if err := sweeper.Run(ctx, cfg.SweepInterval); err != nil && err != context.Canceled {
		logger.Errorf("main", "main", "worker error: %v", err)
		os.Exit(1)
	}

	logger.Infof("main", "main", "worker stopped")
}
