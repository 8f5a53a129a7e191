package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/risklens/risklens/internal/config"
	"github.com/risklens/risklens/internal/database"
	"github.com/risklens/risklens/internal/marketdata"
	"github.com/risklens/risklens/internal/modules/montecarlo"
	"github.com/risklens/risklens/internal/modules/optimization"
	"github.com/risklens/risklens/internal/modules/performance"
	"github.com/risklens/risklens/internal/modules/portfolio"
	"github.com/risklens/risklens/internal/modules/risk"
	"github.com/risklens/risklens/internal/modules/scenarios"
	"github.com/risklens/risklens/internal/reliability"
	"github.com/risklens/risklens/internal/server"
	"github.com/risklens/risklens/internal/tasks"
	"github.com/risklens/risklens/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not configured yet; fall back to a default one.
		fallback := logger.New(logger.Config{Level: "info"})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting RiskLens")

	// Databases: saved portfolios and async task state.
	portfolioDB, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "portfolios.db"),
		Name: "portfolios",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize portfolios database")
	}
	defer portfolioDB.Close()

	tasksDB, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "tasks.db"),
		Name: "tasks",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tasks database")
	}
	defer tasksDB.Close()

	// Market data and analysis services.
	provider := marketdata.NewYahooProvider(log)
	builder := marketdata.NewBuilder(provider, log)

	analyzer := performance.NewAnalyzer(cfg.RiskFreeRate, log)
	simulator := montecarlo.NewSimulator(log)
	registry := scenarios.DefaultRegistry(log)
	riskService := risk.NewService(builder, analyzer, simulator, risk.Config{
		BenchmarkTicker: cfg.BenchmarkTicker,
		RiskFreeRate:    cfg.RiskFreeRate,
		Simulations:     cfg.Simulations,
	}, log)
	optimizer := optimization.NewOptimizer(cfg.RiskFreeRate, log)

	// Persistence.
	portfolioRepo, err := portfolio.NewRepository(portfolioDB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize portfolio repository")
	}
	taskStore, err := tasks.NewStore(tasksDB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize task store")
	}

	// Async analysis worker.
	analyzeFn := func(ctx context.Context, req tasks.Request) (*risk.Result, error) {
		return riskService.Analyze(req.Portfolio, risk.Options{
			Period:   req.Period,
			Scenario: req.Scenario,
		})
	}
	worker := tasks.NewWorker(taskStore, analyzeFn, time.Duration(cfg.TaskRetrySecs)*time.Second, log)
	go worker.Run()

	// Reliability: hourly task GC and, when configured, daily S3 backups.
	var backupService *reliability.BackupService
	if cfg.Backup.Enabled() {
		s3Client, err := reliability.NewS3Client(context.Background(), cfg.Backup, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize backup client")
		}
		backupService = reliability.NewBackupService(s3Client, []*database.DB{portfolioDB, tasksDB}, cfg.DataDir, log)
	}
	maintenance := reliability.NewMaintenance(taskStore, portfolioRepo, backupService, 0, log)
	if err := maintenance.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start maintenance scheduler")
	}

	srv := server.New(server.Config{
		Log: log,
		Cfg: cfg,

		PortfolioDB: portfolioDB,
		TasksDB:     tasksDB,

		Builder:     builder,
		RiskService: riskService,
		Registry:    registry,
		Optimizer:   optimizer,
		Portfolios:  portfolioRepo,
		Worker:      worker,
		TaskStore:   taskStore,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	maintenance.Stop()
	worker.Stop()

	log.Info().Msg("Server stopped")
}
