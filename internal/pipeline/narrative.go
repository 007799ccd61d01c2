package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/couchcryptid/gaia-diary-service/internal/domain"
	"github.com/couchcryptid/gaia-diary-service/internal/observability"
)

// NarrativeStageConfig wires the narrative stage's collaborators.
type NarrativeStageConfig struct {
	Store     BlobStore
	Generator TextGenerator
	// Tokens is optional; when set, prompt sizes are recorded.
	Tokens    TokenCounter
	MaxTokens int
	Clock     clockwork.Clock
	Logger    *slog.Logger
	Metrics   *observability.Metrics
	Tracer    trace.Tracer
}

// NarrativeStage reads a stored diary, asks the text backend to narrate it,
// and writes the narrative next to the diary.
type NarrativeStage struct {
	store     BlobStore
	generator TextGenerator
	tokens    TokenCounter
	maxTokens int
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	tracer    trace.Tracer
}

// NewNarrativeStage creates a NarrativeStage.
func NewNarrativeStage(cfg NarrativeStageConfig) *NarrativeStage {
	s := &NarrativeStage{
		store:     cfg.Store,
		generator: cfg.Generator,
		tokens:    cfg.Tokens,
		maxTokens: cfg.MaxTokens,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		tracer:    cfg.Tracer,
	}
	if s.maxTokens <= 0 {
		s.maxTokens = domain.DefaultMaxTokens
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.tracer == nil {
		s.tracer = observability.Tracer()
	}
	return s
}

// Run narrates the diary stored under req.Key. The narrative is written
// once; a second run for the same diary fails with domain.ErrKeyExists.
func (s *NarrativeStage) Run(ctx context.Context, req domain.NarrativeRequestMessage) (domain.NarrativeResult, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "narrative.generate", trace.WithAttributes(
		attribute.String("region_id", req.RegionID),
		attribute.String("key", req.Key),
	))
	defer span.End()

	logger := s.logger.With("stage", "narrative")

	narrativeKey, err := s.validate(req)
	if err != nil {
		return domain.NarrativeResult{}, stageFailure(logger, s.metrics, span, StepValidateRequest, req.RegionID, req.Key, err)
	}
	logger.Info("narrative stage started", "region_id", req.RegionID, "key", req.Key)

	data, err := s.store.Get(ctx, req.Key)
	if err != nil {
		return domain.NarrativeResult{}, stageFailure(logger, s.metrics, span, StepLoadDiary, req.RegionID, req.Key, err)
	}
	diary, err := domain.DecodeDiary(data)
	if err != nil {
		return domain.NarrativeResult{}, stageFailure(logger, s.metrics, span, StepDecodeDiary, req.RegionID, req.Key, err)
	}

	if req.RegionID != "" && req.RegionID != diary.RegionID {
		err := &domain.InvalidFieldError{
			Field:  "region_id",
			Reason: fmt.Sprintf("request region %q does not match diary region %q", req.RegionID, diary.RegionID),
		}
		return domain.NarrativeResult{}, stageFailure(logger, s.metrics, span, StepValidateRequest, req.RegionID, req.Key, err)
	}
	regionID := diary.RegionID

	prompt, err := domain.BuildNarrativeRequest(regionID, diary.Features, diary.Events, s.maxTokens)
	if err != nil {
		return domain.NarrativeResult{}, stageFailure(logger, s.metrics, span, StepBuildPrompt, regionID, req.Key, err)
	}
	s.observePrompt(logger, prompt.Prompt)

	logger.Info("invoking text backend", "region_id", regionID, "max_tokens", prompt.MaxTokens)
	text, err := s.generate(ctx, prompt)
	if err != nil {
		return domain.NarrativeResult{}, stageFailure(logger, s.metrics, span, StepGenerate, regionID, req.Key, err)
	}

	record, err := domain.BuildNarrativeRecord(domain.NarrativeInput{
		RegionID:       regionID,
		Text:           text,
		Confidence:     domain.ScoreConfidence(diary.Events),
		SourceDiaryKey: req.Key,
		Timestamp:      domain.Now(s.clock),
	})
	if err != nil {
		s.metrics.TextGenRequests.WithLabelValues("empty").Inc()
		return domain.NarrativeResult{}, stageFailure(logger, s.metrics, span, StepBuildNarrative, regionID, req.Key, err)
	}
	s.metrics.TextGenRequests.WithLabelValues("success").Inc()

	body, err := domain.EncodeRecord(record)
	if err != nil {
		return domain.NarrativeResult{}, stageFailure(logger, s.metrics, span, StepBuildNarrative, regionID, narrativeKey, err)
	}
	digest, err := domain.Digest(body)
	if err != nil {
		return domain.NarrativeResult{}, stageFailure(logger, s.metrics, span, StepBuildNarrative, regionID, narrativeKey, err)
	}

	logger.Info("writing narrative", "region_id", regionID, "key", narrativeKey)
	if err := s.store.Put(ctx, narrativeKey, body, domain.ContentTypeJSON); err != nil {
		return domain.NarrativeResult{}, stageFailure(logger, s.metrics, span, StepPutNarrative, regionID, narrativeKey, err)
	}

	s.metrics.NarrativesWritten.Inc()
	s.metrics.StageDuration.WithLabelValues("narrative").Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.String("narrative_key", narrativeKey))
	logger.Info("narrative stage complete", "region_id", regionID, "key", narrativeKey, "confidence", record.Confidence)

	return domain.NarrativeResult{
		Bucket:       s.store.Bucket(),
		NarrativeKey: narrativeKey,
		Narrative:    record.Narrative,
		Confidence:   record.Confidence,
		Digest:       digest,
	}, nil
}

// Existing reads back the narrative already written for req's diary.
func (s *NarrativeStage) Existing(ctx context.Context, req domain.NarrativeRequestMessage) (domain.NarrativeResult, error) {
	narrativeKey, err := s.validate(req)
	if err != nil {
		return domain.NarrativeResult{}, &StageError{Stage: StepValidateRequest, RegionID: req.RegionID, Key: req.Key, Err: err}
	}
	data, err := s.store.Get(ctx, narrativeKey)
	if err != nil {
		return domain.NarrativeResult{}, &StageError{Stage: StepLoadNarrative, RegionID: req.RegionID, Key: narrativeKey, Err: err}
	}
	record, err := domain.DecodeNarrative(data)
	if err != nil {
		return domain.NarrativeResult{}, &StageError{Stage: StepLoadNarrative, RegionID: req.RegionID, Key: narrativeKey, Err: err}
	}
	digest, err := domain.Digest(data)
	if err != nil {
		return domain.NarrativeResult{}, &StageError{Stage: StepLoadNarrative, RegionID: req.RegionID, Key: narrativeKey, Err: err}
	}
	return domain.NarrativeResult{
		Bucket:       s.store.Bucket(),
		NarrativeKey: narrativeKey,
		Narrative:    record.Narrative,
		Confidence:   record.Confidence,
		Digest:       digest,
	}, nil
}

// validate checks the request addresses a diary in this stage's bucket and
// returns the narrative key it will be written to.
func (s *NarrativeStage) validate(req domain.NarrativeRequestMessage) (string, error) {
	if req.Key == "" {
		return "", &domain.MissingFieldError{Field: "s3_key"}
	}
	if req.Bucket != "" && req.Bucket != s.store.Bucket() {
		return "", &domain.InvalidFieldError{
			Field:  "s3_bucket",
			Reason: fmt.Sprintf("diary bucket %q does not match configured bucket %q", req.Bucket, s.store.Bucket()),
		}
	}
	return domain.NarrativeKey(req.Key)
}

func (s *NarrativeStage) generate(ctx context.Context, req domain.NarrativeRequest) (string, error) {
	start := time.Now()
	text, err := s.generator.Generate(ctx, req.Prompt, req.MaxTokens)
	s.metrics.TextGenDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.TextGenRequests.WithLabelValues("error").Inc()
		return "", err
	}
	return text, nil
}

func (s *NarrativeStage) observePrompt(logger *slog.Logger, prompt string) {
	if s.tokens == nil {
		return
	}
	n, err := s.tokens.Count(prompt)
	if err != nil {
		logger.Warn("count prompt tokens failed", "error", err)
		return
	}
	s.metrics.PromptTokens.Observe(float64(n))
}
