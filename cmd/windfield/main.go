package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/storm-data-windfield/internal/adapter/cache"
	httpadapter "github.com/couchcryptid/storm-data-windfield/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/storm-data-windfield/internal/adapter/kafka"
	"github.com/couchcryptid/storm-data-windfield/internal/config"
	"github.com/couchcryptid/storm-data-windfield/internal/domain"
	"github.com/couchcryptid/storm-data-windfield/internal/observability"
	"github.com/couchcryptid/storm-data-windfield/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, logCloser := observability.NewLogger(cfg)
	defer logCloser.Close()
	metrics := observability.NewMetrics()

	// The run bias is drawn once here and shared by every request.
	defaults := cfg.Defaults()
	logger.Info("generator defaults",
		"tropopause_hpa", defaults.Tropopause,
		"bias_direction", defaults.Bias.Direction,
		"bias_strength", defaults.Bias.Strength,
		"stdev_base", defaults.Schedule.Base,
		"stdev_increment", defaults.Schedule.Increment,
	)

	var generator domain.FieldGenerator = domain.NewGenerator(defaults)
	if cfg.FieldCacheSize > 0 {
		generator = cache.NewCachedGenerator(generator, cfg.FieldCacheSize, cfg.FieldCacheTTL, metrics)
		logger.Info("field cache enabled", "size", cfg.FieldCacheSize, "ttl", cfg.FieldCacheTTL)
	} else {
		logger.Info("field cache disabled")
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	builder := pipeline.NewFieldBuilder(generator, defaults, cfg.FieldEncoding, logger, metrics)

	p := pipeline.New(reader, builder, writer, logger, metrics, cfg.BatchSize, cfg.BuildWorkers)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, builder, metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start field pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
