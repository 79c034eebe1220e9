package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"assessment-jobs/internal/config"
	"assessment-jobs/internal/generator"
	"assessment-jobs/internal/handler"
	"assessment-jobs/internal/logger"
	"assessment-jobs/internal/metrics"
	"assessment-jobs/internal/repository"
	"assessment-jobs/internal/service"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Errorf("main", "main", "failed to load config: %v", err)
		os.Exit(1)
	}

	dbPath := flag.String("db", cfg.DBPath, "path to SQLite database")
	port := flag.Int("port", cfg.Port, "HTTP server port")
	sweep := flag.Bool("sweep", true, "run the stale job and draft sweeper in-process")
	flag.Parse()

	logger.SetLevel(cfg.LogLevel)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	repo, err := repository.NewSQLiteRepository(*dbPath)
	if err != nil {
		logger.Errorf("main", "main", "failed to initialize repository: %v", err)
		os.Exit(1)
	}
	defer repo.Close()

	metricsInstance := metrics.NewMetrics()

	var gen generator.Generator = &generator.Simulated{StepDelay: cfg.SimulatedStep}
	if cfg.GeneratorURL != "" {
		gen = generator.NewHTTPClient(cfg.GeneratorURL, cfg.GeneratorTimeout)
		logger.Infof("main", "main", "using generator at %s", cfg.GeneratorURL)
	} else {
		logger.Warnf("main", "main", "GENERATOR_URL not set, using simulated generator")
	}

	lifecycle := service.NewLifecycleService(repo, metricsInstance)
	runner := service.NewRunner(repo, lifecycle, gen, metricsInstance, cfg.MaxJobRuntime, cfg.HeartbeatInterval())
	rateLimiter := service.NewRateLimiter(cfg.SubmissionsPerMinute, cfg.SubmissionBurst)
	jobService := service.NewJobService(repo, runner, rateLimiter, metricsInstance)
	jobHandler := handler.NewJobHandler(jobService, lifecycle, metricsInstance)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeperDone := make(chan struct{})
	if *sweep {
		sweeper := service.NewSweeper(repo, metricsInstance, cfg.StaleJobAfter, cfg.DraftTTL)
		go func() {
			defer close(sweeperDone)
			sweeper.Run(ctx, cfg.SweepInterval)
		}()
	} else {
		close(sweeperDone)
	}

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(*port),
		Handler:           handler.SetupRouter(jobHandler, cfg.AllowOrigins),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          logger.StdLogger(),
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Infof("main", "main", "API server starting on port %d", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("main", "main", "server error: %v", err)
			os.Exit(1)
		}
	}()

	<-sigChan
	logger.Infof("main", "main", "shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("main", "main", "error closing server: %v", err)
	}
	// Running jobs are failed so pollers see a terminal status.
	if err := runner.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("main", "main", "runner did not drain: %v", err)
	}
	cancel()
	<-sweeperDone

	logger.Infof("main", "main", "server stopped")
}
