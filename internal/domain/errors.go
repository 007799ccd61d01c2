package domain

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Adapters wrap their transport failures with one of
// these so the stages and the orchestrator can branch with errors.Is.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrDataQuality        = errors.New("data quality")
	ErrNotFound           = errors.New("not found")
	ErrKeyExists          = errors.New("key already exists")
	ErrSourceUnavailable  = errors.New("signal source unavailable")
	ErrBackendUnavailable = errors.New("text generation backend unavailable")
	ErrBackendTimeout     = errors.New("text generation backend timed out")
	ErrStorage            = errors.New("storage failure")
)

// MissingFieldError reports a required input field that was absent.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

// Is makes MissingFieldError match ErrInvalidInput.
func (e *MissingFieldError) Is(target error) bool { return target == ErrInvalidInput }

// InvalidFieldError reports a present but unusable input field.
type InvalidFieldError struct {
	Field  string
	Reason string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

func (e *InvalidFieldError) Is(target error) bool { return target == ErrInvalidInput }

// MissingContextError is returned when a narrative request has neither
// features nor events to describe.
type MissingContextError struct {
	RegionID string
}

func (e *MissingContextError) Error() string {
	return fmt.Sprintf("nothing to narrate for region %q: no features or events", e.RegionID)
}

func (e *MissingContextError) Is(target error) bool { return target == ErrInvalidInput }

// EmptyGenerationError is returned when the backend produced only whitespace.
type EmptyGenerationError struct {
	RegionID string
}

func (e *EmptyGenerationError) Error() string {
	return fmt.Sprintf("text generation returned empty narrative for region %q", e.RegionID)
}

func (e *EmptyGenerationError) Is(target error) bool { return target == ErrDataQuality }

// Error kind labels used in logs, metrics and API responses.
const (
	KindMissingField       = "missing_field"
	KindInvalidField       = "invalid_field"
	KindMissingContext     = "missing_context"
	KindEmptyGeneration    = "empty_generation"
	KindNotFound           = "not_found"
	KindKeyExists          = "key_exists"
	KindSourceUnavailable  = "source_unavailable"
	KindBackendUnavailable = "backend_unavailable"
	KindBackendTimeout     = "backend_timeout"
	KindStorage            = "storage"
	KindInternal           = "internal"
)

// Kind classifies err into a stable label. Typed validation errors are
// checked before sentinels so the most specific label wins.
func Kind(err error) string {
	var (
		missingField   *MissingFieldError
		invalidField   *InvalidFieldError
		missingContext *MissingContextError
		emptyGen       *EmptyGenerationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &missingField):
		return KindMissingField
	case errors.As(err, &invalidField):
		return KindInvalidField
	case errors.As(err, &missingContext):
		return KindMissingContext
	case errors.As(err, &emptyGen):
		return KindEmptyGeneration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrKeyExists):
		return KindKeyExists
	case errors.Is(err, ErrSourceUnavailable):
		return KindSourceUnavailable
	case errors.Is(err, ErrBackendTimeout):
		return KindBackendTimeout
	case errors.Is(err, ErrBackendUnavailable):
		return KindBackendUnavailable
	case errors.Is(err, ErrStorage):
		return KindStorage
	default:
		return KindInternal
	}
}

// IsRetryable reports whether err came from a transient external failure.
// Validation, data-quality and conflict errors are never retryable.
func IsRetryable(err error) bool {
	switch Kind(err) {
	case KindSourceUnavailable, KindBackendUnavailable, KindBackendTimeout, KindStorage:
		return true
	default:
		return false
	}
}
