package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"

	"github.com/skycast-labs/radarcache/internal/adapter/httpapi"
	kafkaadapter "github.com/skycast-labs/radarcache/internal/adapter/kafka"
	"github.com/skycast-labs/radarcache/internal/adapter/nws"
	"github.com/skycast-labs/radarcache/internal/adapter/rainviewer"
	"github.com/skycast-labs/radarcache/internal/config"
	"github.com/skycast-labs/radarcache/internal/forecast"
	"github.com/skycast-labs/radarcache/internal/framewatch"
	"github.com/skycast-labs/radarcache/internal/observability"
	"github.com/skycast-labs/radarcache/internal/prefetch"
	"github.com/skycast-labs/radarcache/internal/tilecache"
	"github.com/skycast-labs/radarcache/internal/timezone"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Radar provider and frame watcher.
	client := rainviewer.NewClient(cfg.RadarManifestURL, cfg.TileFetchTimeout, logger)
	prefetcher := prefetch.New(cfg.PrefetchMaxConcurrent, cfg.PrefetchTimeout, logger, metrics)

	// Frame publishing is feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS.
	var publisher framewatch.Publisher
	var kafkaWriter *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		kafkaWriter = kafkaadapter.NewWriter(cfg, logger)
		publisher = kafkaWriter
		logger.Info("kafka frame publishing enabled", "topic", cfg.KafkaFramesTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("kafka frame publishing disabled")
	}

	warmZoom := cfg.WarmZoom
	if !cfg.WarmEnabled {
		warmZoom = -1
	}
	watcher := framewatch.New(client, publisher, prefetcher, framewatch.Options{
		PollInterval: cfg.ManifestPollInterval,
		FrameLimit:   cfg.FrameLimit,
		WarmZoom:     warmZoom,
		TileSize:     cfg.TileSize,
		ColorScheme:  cfg.ColorScheme,
		Smooth:       cfg.Smooth,
		Snow:         cfg.Snow,
	}, clockwork.NewRealClock(), logger, metrics)

	// Tile cache, fed by whichever host the latest manifest names.
	source := rainviewer.NewTileSource(client, watcher.CurrentHost)
	tiles := tilecache.New(source, tilecache.Options{
		ProviderMaxZoom: cfg.ProviderMaxZoom,
		MaxEntries:      cfg.TileCacheMaxEntries,
		MaxBytes:        cfg.TileCacheMaxBytes,
		OnFirstTile: func() {
			logger.Info("first radar tile delivered")
		},
	}, logger, metrics)

	// Hourly forecasts.
	tz, err := timezone.NewService()
	if err != nil {
		logger.Error("failed to initialize timezone service", "error", err)
		os.Exit(1)
	}
	nwsClient := nws.NewClient(cfg.NWSBaseURL, cfg.NWSUserAgent, cfg.NWSTimeout, logger)
	forecasts := forecast.NewCache(nwsClient, tz, clockwork.NewRealClock(), logger, metrics)

	srv := httpapi.NewServer(cfg.HTTPAddr, tiles, watcher, forecasts, watcher, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := watcher.Start(ctx); err != nil {
		logger.Error("failed to start frame watcher", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	watcher.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
