package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/couchcryptid/gaia-diary-service/internal/domain"
	"github.com/couchcryptid/gaia-diary-service/internal/observability"
)

// DiaryStageConfig wires the diary stage's collaborators.
type DiaryStageConfig struct {
	Catalog *domain.Catalog
	Source  SignalSource
	Store   BlobStore
	// Prefix is the key prefix diaries are written under, e.g. "diary".
	Prefix  string
	Clock   clockwork.Clock
	Logger  *slog.Logger
	Metrics *observability.Metrics
	Tracer  trace.Tracer
}

// DiaryStage fetches a region's signals, derives features and events, and
// persists a write-once diary record.
type DiaryStage struct {
	catalog *domain.Catalog
	source  SignalSource
	store   BlobStore
	prefix  string
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
}

// NewDiaryStage creates a DiaryStage. A nil clock or tracer selects the real
// clock and the service tracer.
func NewDiaryStage(cfg DiaryStageConfig) *DiaryStage {
	s := &DiaryStage{
		catalog: cfg.Catalog,
		source:  cfg.Source,
		store:   cfg.Store,
		prefix:  cfg.Prefix,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		tracer:  cfg.Tracer,
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.tracer == nil {
		s.tracer = observability.Tracer()
	}
	return s
}

// Bucket returns the bucket diaries are written to.
func (s *DiaryStage) Bucket() string { return s.store.Bucket() }

// Run ingests one region. An empty regionID selects the catalog default.
// Nothing is persisted unless every step before the put succeeds.
func (s *DiaryStage) Run(ctx context.Context, regionID string) (domain.DiaryResult, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "diary.ingest")
	defer span.End()

	logger := s.logger.With("stage", "diary")

	region, err := s.catalog.Resolve(regionID)
	if err != nil {
		return domain.DiaryResult{}, stageFailure(logger, s.metrics, span, StepResolveRegion, regionID, "", err)
	}
	regionID = region.ID
	span.SetAttributes(attribute.String("region_id", regionID))
	logger.Info("diary stage started", "region_id", regionID)

	snap, err := s.source.Fetch(ctx, regionID)
	if err != nil {
		return domain.DiaryResult{}, stageFailure(logger, s.metrics, span, StepFetchSignals, regionID, "", err)
	}

	features, events, err := domain.DeriveFeatures(snap)
	if err != nil {
		return domain.DiaryResult{}, stageFailure(logger, s.metrics, span, StepDeriveFeatures, regionID, "", err)
	}

	ts := domain.Now(s.clock)
	key := domain.DiaryKey(s.prefix, regionID, ts)

	record, err := domain.BuildDiaryRecord(domain.DiaryInput{
		RegionID:  regionID,
		Timestamp: ts,
		Features:  features,
		Events:    events,
		Sources:   snap.Sources,
	})
	if err != nil {
		return domain.DiaryResult{}, stageFailure(logger, s.metrics, span, StepBuildDiary, regionID, key, err)
	}

	body, err := domain.EncodeRecord(record)
	if err != nil {
		return domain.DiaryResult{}, stageFailure(logger, s.metrics, span, StepBuildDiary, regionID, key, err)
	}
	digest, err := domain.Digest(body)
	if err != nil {
		return domain.DiaryResult{}, stageFailure(logger, s.metrics, span, StepBuildDiary, regionID, key, err)
	}

	if err := s.store.Put(ctx, key, body, domain.ContentTypeJSON); err != nil {
		return domain.DiaryResult{}, stageFailure(logger, s.metrics, span, StepPutDiary, regionID, key, err)
	}

	s.metrics.DiariesWritten.Inc()
	for _, e := range record.Events {
		s.metrics.EventsDerived.WithLabelValues(string(e.Type), string(e.Severity)).Inc()
	}
	s.metrics.StageDuration.WithLabelValues("diary").Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.String("key", key), attribute.Int("events", len(record.Events)))
	logger.Info("diary stage complete", "region_id", regionID, "key", key, "events", len(record.Events))

	return domain.DiaryResult{
		Status:   "ok",
		Bucket:   s.store.Bucket(),
		Key:      key,
		RegionID: regionID,
		Features: record.Features,
		Events:   record.Events,
		Digest:   digest,
	}, nil
}
