package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/couchcryptid/gaia-diary-service/internal/domain"
	"github.com/couchcryptid/gaia-diary-service/internal/pipeline"
)

// DiaryRunner runs the diary stage for one region.
type DiaryRunner interface {
	Run(ctx context.Context, regionID string) (domain.DiaryResult, error)
}

// NarrativeRunner runs the narrative stage for one stored diary.
type NarrativeRunner interface {
	Run(ctx context.Context, req domain.NarrativeRequestMessage) (domain.NarrativeResult, error)
}

// RecordReader reads stored records back by key.
type RecordReader interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// NarrativeFinder returns the newest stored narrative for a region.
type NarrativeFinder interface {
	Latest(ctx context.Context, regionID string) (domain.LatestNarrative, error)
}

// API serves the stage invocation endpoints under /v1.
type API struct {
	diary     DiaryRunner
	narrative NarrativeRunner
	records   RecordReader
	latest    NarrativeFinder
	catalog   *domain.Catalog
	logger    *slog.Logger
}

// NewAPI creates the invocation API. A nil narrative runner makes
// POST /v1/narratives answer 503, for deployments without a text backend.
func NewAPI(diary DiaryRunner, narrative NarrativeRunner, records RecordReader, latest NarrativeFinder, catalog *domain.Catalog, logger *slog.Logger) *API {
	return &API{
		diary:     diary,
		narrative: narrative,
		records:   records,
		latest:    latest,
		catalog:   catalog,
		logger:    logger,
	}
}

func (a *API) routes(r chi.Router) {
	r.Post("/diaries", a.handleCreateDiary)
	r.Post("/narratives", a.handleCreateNarrative)
	r.Get("/narratives/latest", a.handleLatestNarrative)
	r.Get("/regions", a.handleListRegions)
	r.Get("/records/*", a.handleGetRecord)
}

// errorBody is the failure payload for every /v1 route.
type errorBody struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Stage     string `json:"stage,omitempty"`
	Key       string `json:"key,omitempty"`
	Retryable bool   `json:"retryable"`
}

type regionsBody struct {
	DefaultRegion string          `json:"default_region"`
	Regions       []domain.Region `json:"regions"`
}

func (a *API) handleCreateDiary(w http.ResponseWriter, r *http.Request) {
	var req domain.DiaryRequest
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, err)
		return
	}

	res, err := a.diary.Run(r.Context(), req.RegionID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (a *API) handleCreateNarrative(w http.ResponseWriter, r *http.Request) {
	if a.narrative == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{
			Error: "text generation is disabled",
			Kind:  domain.KindBackendUnavailable,
		})
		return
	}

	var req domain.NarrativeRequestMessage
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, err)
		return
	}

	res, err := a.narrative.Run(r.Context(), req)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// handleLatestNarrative serves the newest narrative for ?region_id=, or for
// the default region when the parameter is absent.
func (a *API) handleLatestNarrative(w http.ResponseWriter, r *http.Request) {
	res, err := a.latest.Latest(r.Context(), r.URL.Query().Get("region_id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleListRegions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, regionsBody{
		DefaultRegion: a.catalog.DefaultID(),
		Regions:       a.catalog.Regions(),
	})
}

func (a *API) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		a.writeError(w, &domain.MissingFieldError{Field: "key"})
		return
	}

	data, err := a.records.Get(r.Context(), key)
	if err != nil {
		a.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", domain.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck // best-effort response
}

// decodeBody decodes a JSON request body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return &domain.InvalidFieldError{Field: "body", Reason: err.Error()}
	}
	return nil
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	body := errorBody{
		Error:     err.Error(),
		Kind:      domain.Kind(err),
		Retryable: domain.IsRetryable(err),
	}
	var serr *pipeline.StageError
	if errors.As(err, &serr) {
		body.Stage = serr.Stage
		body.Key = serr.Key
	}

	status := statusFor(body.Kind)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", "kind", body.Kind, "stage", body.Stage, "error", err)
	}
	writeJSON(w, status, body)
}

// statusFor maps an error kind onto an HTTP status.
func statusFor(kind string) int {
	switch kind {
	case domain.KindMissingField, domain.KindInvalidField, domain.KindMissingContext:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindKeyExists:
		return http.StatusConflict
	case domain.KindEmptyGeneration:
		return http.StatusUnprocessableEntity
	case domain.KindSourceUnavailable, domain.KindBackendUnavailable:
		return http.StatusBadGateway
	case domain.KindBackendTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
