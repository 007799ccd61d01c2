package pipeline

import (
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/couchcryptid/gaia-diary-service/internal/domain"
	"github.com/couchcryptid/gaia-diary-service/internal/observability"
)

// Stage steps reported in StageError.Stage.
const (
	StepResolveRegion   = "resolve_region"
	StepFetchSignals    = "fetch_signals"
	StepDeriveFeatures  = "derive_features"
	StepBuildDiary      = "build_diary"
	StepPutDiary        = "put_diary"
	StepValidateRequest = "validate_request"
	StepLoadDiary       = "load_diary"
	StepDecodeDiary     = "decode_diary"
	StepBuildPrompt     = "build_prompt"
	StepGenerate        = "generate"
	StepBuildNarrative  = "build_narrative"
	StepPutNarrative    = "put_narrative"
	StepLoadNarrative   = "load_narrative"
	StepListNarratives  = "list_narratives"
)

// StageError wraps a failure with the step that produced it and the region
// and key being worked on, so a caller can log it and decide on a retry.
type StageError struct {
	Stage    string
	RegionID string
	Key      string
	Err      error
}

func (e *StageError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", e.Stage)
	if e.RegionID != "" {
		fmt.Fprintf(&b, " region=%s", e.RegionID)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, " key=%s", e.Key)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *StageError) Unwrap() error { return e.Err }

// stageFailure wraps err, records it on the span and in metrics, and logs it.
func stageFailure(logger *slog.Logger, metrics *observability.Metrics, span trace.Span, step, regionID, key string, err error) error {
	serr := &StageError{Stage: step, RegionID: regionID, Key: key, Err: err}
	kind := domain.Kind(err)

	metrics.StageErrors.WithLabelValues(step, kind).Inc()
	span.RecordError(serr)
	span.SetStatus(codes.Error, kind)

	logger.Error("stage failed",
		"step", step,
		"region_id", regionID,
		"key", key,
		"kind", kind,
		"retryable", domain.IsRetryable(err),
		"error", err,
	)
	return serr
}
