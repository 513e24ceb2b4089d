package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/responder-dispatch-service/internal/adapter/googlemaps"
	"github.com/couchcryptid/responder-dispatch-service/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/responder-dispatch-service/internal/adapter/kafka"
	redisadapter "github.com/couchcryptid/responder-dispatch-service/internal/adapter/redis"
	"github.com/couchcryptid/responder-dispatch-service/internal/adapter/sqlite"
	"github.com/couchcryptid/responder-dispatch-service/internal/adapter/straightline"
	"github.com/couchcryptid/responder-dispatch-service/internal/adapter/webhook"
	"github.com/couchcryptid/responder-dispatch-service/internal/config"
	"github.com/couchcryptid/responder-dispatch-service/internal/dispatch"
	"github.com/couchcryptid/responder-dispatch-service/internal/domain"
	"github.com/couchcryptid/responder-dispatch-service/internal/observability"
	"github.com/couchcryptid/responder-dispatch-service/internal/pipeline"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type namedCloser struct {
	name string
	io.Closer
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	if err := run(cfg, logger, metrics); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	// Closed in reverse order on shutdown.
	var closers []namedCloser
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				logger.Error("close error", "component", closers[i].name, "error", err)
			}
		}
	}()

	catalog, err := loadCatalog(cfg.StationCatalogPath)
	if err != nil {
		return err
	}
	logger.Info("station catalog loaded", "path", cfg.StationCatalogPath, "stations", catalog.Total())

	provider, err := newProvider(cfg, metrics, logger, &closers)
	if err != nil {
		return err
	}

	opts := []dispatch.Option{dispatch.WithMaxCandidates(cfg.MaxCandidates)}

	if cfg.DispatchDBPath != "" {
		store, err := sqlite.Open(cfg.DispatchDBPath, logger)
		if err != nil {
			return err
		}
		closers = append(closers, namedCloser{"sqlite", store})
		opts = append(opts, dispatch.WithStore(store))
		logger.Info("dispatch history enabled", "path", cfg.DispatchDBPath)
	} else {
		logger.Info("dispatch history disabled")
	}

	if cfg.WebhookURL != "" {
		opts = append(opts, dispatch.WithSink("webhook", webhook.NewNotifier(cfg.WebhookURL, cfg.WebhookTimeout, logger)))
		logger.Info("webhook sink enabled", "timeout", cfg.WebhookTimeout)
	}

	var reader *kafkaadapter.Reader
	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		closers = append(closers, namedCloser{"kafka writer", writer})
		opts = append(opts, dispatch.WithSink("kafka", writer))

		reader = kafkaadapter.NewReader(cfg, logger)
		closers = append(closers, namedCloser{"kafka reader", reader})
	}

	svc := dispatch.NewService(catalog, provider, metrics, logger, opts...)

	ready := httpadapter.Readiness{svc}
	var p *pipeline.Pipeline
	if reader != nil {
		p = pipeline.New(reader, svc, logger, metrics, cfg.BatchSize)
		ready = append(ready, p)
		logger.Info("kafka intake enabled",
			"brokers", cfg.KafkaBrokers, "source_topic", cfg.KafkaSourceTopic, "sink_topic", cfg.KafkaSinkTopic)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, version, svc, ready, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start intake pipeline.
	pipelineDone := make(chan struct{})
	go func() {
		defer close(pipelineDone)
		if p == nil {
			return
		}
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
	select {
	case <-pipelineDone:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not stop before shutdown timeout")
	}

	logger.Info("shutdown complete")
	return nil
}

func loadCatalog(path string) (*domain.StationCatalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open station catalog: %w", err)
	}
	defer f.Close()

	catalog, err := domain.LoadCatalog(f)
	if err != nil {
		return nil, fmt.Errorf("load station catalog %s: %w", path, err)
	}
	return catalog, nil
}

// newProvider selects the travel-time provider: Google Distance Matrix behind
// the configured cache when enabled, otherwise straight-line estimates.
func newProvider(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger, closers *[]namedCloser) (domain.TravelTimeProvider, error) {
	if !cfg.GoogleMapsEnabled {
		metrics.GoogleMapsEnabled.Set(0)
		logger.Info("google maps disabled, using straight-line estimates", "speed_kmh", cfg.FallbackSpeedKmh)
		return straightline.NewProvider(cfg.FallbackSpeedKmh), nil
	}

	client, err := googlemaps.NewClient(cfg.GoogleMapsAPIKey, cfg.GoogleMapsTimeout, cfg.TravelMode, logger)
	if err != nil {
		return nil, err
	}
	metrics.GoogleMapsEnabled.Set(1)
	logger.Info("google maps enabled", "mode", cfg.TravelMode, "timeout", cfg.GoogleMapsTimeout)

	var cache googlemaps.Cache
	switch cfg.CacheBackend {
	case config.CacheMemory:
		cache = googlemaps.NewMemoryCache(cfg.CacheSize, nil)
	case config.CacheRedis:
		rc := redisadapter.NewCache(cfg.RedisAddr)
		*closers = append(*closers, namedCloser{"redis", rc})
		pingCtx, cancel := context.WithTimeout(context.Background(), cfg.GoogleMapsTimeout)
		defer cancel()
		if err := rc.Ping(pingCtx); err != nil {
			// Cache errors fall through to uncached lookups.
			logger.Warn("redis unreachable at startup", "addr", cfg.RedisAddr, "error", err)
		}
		cache = rc
	default:
		logger.Info("travel estimate cache disabled")
		return client, nil
	}
	logger.Info("travel estimate cache enabled", "backend", cfg.CacheBackend, "ttl", cfg.CacheTTL)
	return googlemaps.NewCachedProvider(client, cache, cfg.CacheTTL, metrics, logger), nil
}
