// Command wxengine runs the aviation weather engine: scheduled document loads,
// the observation query API, and optional Kafka publishing.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/aviation-weather-etl/internal/adapter/fetch"
	httpadapter "github.com/couchcryptid/aviation-weather-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/aviation-weather-etl/internal/adapter/kafka"
	"github.com/couchcryptid/aviation-weather-etl/internal/config"
	"github.com/couchcryptid/aviation-weather-etl/internal/domain"
	"github.com/couchcryptid/aviation-weather-etl/internal/observability"
	"github.com/couchcryptid/aviation-weather-etl/internal/parser"
	"github.com/couchcryptid/aviation-weather-etl/internal/pipeline"
	"github.com/couchcryptid/aviation-weather-etl/internal/store"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine; the environment alone is enough.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	st := store.New(store.WithObserver(metrics.ObserveColorChange))
	if _, err := st.SetThresholds(cfg.Thresholds); err != nil {
		logger.Error("invalid threshold rules", "error", err)
		os.Exit(1)
	}
	prs := parser.New(domain.NewRegistry(), logger)

	var fetcher pipeline.Fetcher = fetch.NewRouter(cfg.FetchTimeout, logger)
	if cfg.FetchCacheSize > 0 {
		fetcher = fetch.NewCachedFetcher(fetcher, cfg.FetchCacheSize, cfg.FetchCacheTTL, metrics)
		logger.Info("document cache enabled", "size", cfg.FetchCacheSize, "ttl", cfg.FetchCacheTTL)
	}

	// Publishing is feature-flagged via KAFKA_ENABLED.
	var publisher pipeline.Publisher
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	loader := pipeline.NewLoader(pipeline.Config{
		Sources:         sources(cfg),
		Fetcher:         fetcher,
		Parser:          prs,
		Store:           st,
		Publisher:       publisher,
		Logger:          logger,
		Metrics:         metrics,
		DefaultInterval: cfg.DefaultInterval,
		Retries:         cfg.FetchRetries,
	})

	scheduler, err := pipeline.NewScheduler(cfg.RefreshSchedule, loader, logger, metrics)
	if err != nil {
		logger.Error("invalid refresh schedule", "error", err)
		os.Exit(1)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, loader, st, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start refresh scheduler.
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		if err := scheduler.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-schedulerDone:
	case <-shutdownCtx.Done():
		logger.Warn("load cycle still running at shutdown deadline")
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// sources lists the site list first, then the configured observation sources.
func sources(cfg *config.Config) []pipeline.Source {
	out := make([]pipeline.Source, 0, len(cfg.Sources)+1)
	if cfg.SiteListSource != "" {
		out = append(out, pipeline.Source{Name: "stations", Location: cfg.SiteListSource, SiteList: true})
	}
	for _, s := range cfg.Sources {
		out = append(out, pipeline.Source{Name: s.Name, Location: s.Location})
	}
	return out
}
