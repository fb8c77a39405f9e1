package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lineops/shiftline/config"
	"github.com/lineops/shiftline/engine"
	"github.com/lineops/shiftline/repository"
	"github.com/lineops/shiftline/server"
	"github.com/lineops/shiftline/session"
	"github.com/lineops/shiftline/srvreg"
)

var verbose bool

func init() {
	flag.BoolVar(&verbose, "verbose", false, "Enable debug logging")
}

func main() {
	flag.Parse()

	logger, err := newLogger(verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("line shift tracker starting up")

	// Load configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("configuration validation failed", zap.Error(err))
	}
	logger.Info("configuration loaded",
		zap.String("line_id", cfg.LineID),
		zap.String("machine_id", cfg.MachineID),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("database", fmt.Sprintf("%s:%s/%s", cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseName)))

	// Initialize repository
	logger.Info("initializing database")
	repo := repository.NewRepository(logger)
	if err := repo.ConnectDB(cfg.GetDSN()); err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	// Initialize session store and reconciliation engine
	drafts := session.NewStore(logger)
	recorder := engine.NewRollRecorder(repo, drafts, logger)
	committer := engine.NewShiftCommitter(repo, drafts, logger)

	// Initialize service registry
	logger.Info("setting up service registry")
	serviceRegistry := srvreg.NewServiceRegistry(drafts, repo, recorder, committer, logger, cfg.LineID)
	serviceRegistry.RegisterDefaultServices()

	// Initialize web server
	webServer := server.NewWebServer(cfg.HTTPPort, serviceRegistry, cfg.LineID, logger)
	if err := webServer.Start(); err != nil {
		logger.Fatal("failed to start web server", zap.Error(err))
	}

	logger.Info("line shift tracker ready",
		zap.String("line_id", cfg.LineID),
		zap.String("address", "http://localhost:"+cfg.HTTPPort))

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received, gracefully shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := webServer.Shutdown(ctx); err != nil {
		logger.Error("error during server shutdown", zap.Error(err))
	}

	logger.Info("line shift tracker stopped")
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}
