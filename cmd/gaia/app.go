package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/couchcryptid/gaia-diary-service/internal/adapter/anthropic"
	"github.com/couchcryptid/gaia-diary-service/internal/adapter/blobstore"
	"github.com/couchcryptid/gaia-diary-service/internal/adapter/signals"
	"github.com/couchcryptid/gaia-diary-service/internal/config"
	"github.com/couchcryptid/gaia-diary-service/internal/domain"
	"github.com/couchcryptid/gaia-diary-service/internal/observability"
	"github.com/couchcryptid/gaia-diary-service/internal/pipeline"
)

// signalCacheEntries bounds the snapshot cache; one entry per region is plenty.
const signalCacheEntries = 256

// store is a blob store that can also report readiness.
type store interface {
	pipeline.BlobStore
	CheckReadiness(ctx context.Context) error
}

// app holds the wired dependencies shared by every subcommand.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	catalog   *domain.Catalog
	store     store
	diary     *pipeline.DiaryStage
	narrative *pipeline.NarrativeStage // nil when text generation is disabled
	shutdown  func(context.Context) error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg)
	a := &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  observability.NewMetrics(),
		clock:    clockwork.NewRealClock(),
		shutdown: func(context.Context) error { return nil },
	}

	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracer(os.Stderr, logger)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		a.shutdown = shutdown
	}

	a.catalog, err = config.LoadRegions(cfg.RegionsFile, cfg.DefaultRegion)
	if err != nil {
		return nil, fmt.Errorf("load regions: %w", err)
	}

	a.store, err = newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("blob store ready", "backend", cfg.BlobBackend, "bucket", a.store.Bucket())

	a.diary = pipeline.NewDiaryStage(pipeline.DiaryStageConfig{
		Catalog: a.catalog,
		Source:  a.newSource(),
		Store:   a.store,
		Prefix:  cfg.DiaryPrefix,
		Clock:   a.clock,
		Logger:  logger,
		Metrics: a.metrics,
	})

	if cfg.TextGenEnabled {
		a.narrative, err = a.newNarrativeStage()
		if err != nil {
			return nil, err
		}
		logger.Info("text generation enabled", "model", cfg.TextGenModel, "max_tokens", cfg.TextGenMaxTokens)
	} else {
		logger.Info("text generation disabled")
	}

	return a, nil
}

func newStore(ctx context.Context, cfg *config.Config) (store, error) {
	switch cfg.BlobBackend {
	case config.BlobBackendS3:
		s, err := blobstore.NewS3Store(ctx, cfg.DiaryBucket, blobstore.S3Config{
			Region:       cfg.AWSRegion,
			Endpoint:     cfg.S3Endpoint,
			UsePathStyle: cfg.S3UsePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("create s3 store: %w", err)
		}
		return s, nil
	case config.BlobBackendMemory:
		return blobstore.NewMemoryStore(cfg.DiaryBucket), nil
	default:
		s, err := blobstore.NewLocalStore(cfg.BlobLocalDir, cfg.DiaryBucket)
		if err != nil {
			return nil, fmt.Errorf("create local store: %w", err)
		}
		return s, nil
	}
}

func (a *app) newSource() pipeline.SignalSource {
	var inner signals.Source
	switch a.cfg.SignalSource {
	case config.SignalSourceOpenMeteo:
		inner = signals.NewOpenMeteo(a.catalog, a.cfg.OpenMeteoMarineURL, a.cfg.OpenMeteoAirURL, a.cfg.SignalTimeout, a.logger)
	default:
		inner = signals.NewSynthetic(a.catalog, a.clock, uint64(a.clock.Now().UnixNano()))
	}
	a.logger.Info("signal source configured", "source", a.cfg.SignalSource, "cache_ttl", a.cfg.SignalCacheTTL)
	return signals.NewCachedSource(inner, signalCacheEntries, a.cfg.SignalCacheTTL, a.clock)
}

func (a *app) newNarrativeStage() (*pipeline.NarrativeStage, error) {
	tokens, err := anthropic.NewTokenCounter()
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	client := anthropic.NewClient(a.cfg.AnthropicAPIKey,
		anthropic.WithBaseURL(a.cfg.AnthropicBaseURL),
		anthropic.WithModel(a.cfg.TextGenModel),
		anthropic.WithHTTPClient(&http.Client{
			Timeout:   a.cfg.TextGenTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}),
	)

	return pipeline.NewNarrativeStage(pipeline.NarrativeStageConfig{
		Store:     a.store,
		Generator: client,
		Tokens:    tokens,
		MaxTokens: a.cfg.TextGenMaxTokens,
		Clock:     a.clock,
		Logger:    a.logger,
		Metrics:   a.metrics,
	}), nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		a.logger.Error("tracer shutdown error", "error", err)
	}
}
