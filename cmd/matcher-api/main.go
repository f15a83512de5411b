// @title CATMAT Matcher API
// @version 1.0
// @description Batch matching of material descriptions against the CATMAT catalog.
// @BasePath /api/v1
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"go-catmat-matcher/internal/api"
	"go-catmat-matcher/internal/api/handler"
	"go-catmat-matcher/internal/bus"
	"go-catmat-matcher/internal/catalog"
	"go-catmat-matcher/internal/config"
	"go-catmat-matcher/internal/pipeline"
	"go-catmat-matcher/internal/store"
	"go-catmat-matcher/pkg/router"
	"go-catmat-matcher/pkg/utils"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer closeLog()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("matcher-api stopped", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	cat, err := catalog.NewMemory(cfg.CatalogCacheSize, catalog.WithLogger(logger))
	if err != nil {
		return err
	}
	if cfg.CatalogFile != "" {
		entries, err := catalog.LoadFile(cfg.CatalogFile)
		if err != nil {
			return err
		}
		if err := cat.Publish(cfg.CatalogVersion, entries); err != nil {
			return err
		}
		logger.Info("catalog loaded", "version", cfg.CatalogVersion, "entries", len(entries))
	} else {
		logger.Warn("no catalog file configured, jobs cannot be created until one is published")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []pipeline.Option{
		pipeline.WithStore(db),
		pipeline.WithMetrics(pipeline.MustNewMetrics(reg)),
		pipeline.WithLogger(logger),
		pipeline.WithDefaults(cfg.Defaults()),
	}
	if cfg.NATSURL != "" {
		nc, err := bus.Connect(cfg.NATSURL, logger)
		if err != nil {
			return err
		}
		defer nc.Close()
		opts = append(opts, pipeline.WithPublisher(bus.NewForwarder(nc, cfg.NATSSubjectPrefix)))
		logger.Info("connected to NATS", "nats_url", cfg.NATSURL, "prefix", cfg.NATSSubjectPrefix)
	}
	controller := pipeline.NewController(cat, opts...)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	recovered, err := controller.Recover(ctx)
	cancel()
	if err != nil {
		return err
	}
	logger.Info("jobs recovered", "count", recovered)

	outputs := utils.NewOutputManager(cfg.OutputDir)
	if err := outputs.EnsureOutputDirExists(); err != nil {
		return err
	}

	r := router.New(logger)
	api.RegisterRoutes(r, handler.New(handler.Config{
		Controller: controller,
		Catalog:    cat,
		Outputs:    outputs,
		Errors:     db,
		Limits:     cfg.IngestLimits(),
		Logger:     logger,
	}), reg)

	srv := r.Server(cfg.Addr)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("matcher-api listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	var serveErr error
	select {
	case <-quit:
	case serveErr = <-errCh:
	}

	logger.Info("shutting down server...")
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// stop jobs first so open event streams end
	if err := controller.Close(ctx); err != nil {
		logger.Error("controller forced to stop", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return serveErr
}
