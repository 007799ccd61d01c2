package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/gaia-diary-service/internal/domain"
	"github.com/couchcryptid/gaia-diary-service/internal/pipeline"
)

// --- mocks ---

type mockExtractor struct {
	batches [][]domain.RawEvent
	index   atomic.Int64
	err     error
	errs    atomic.Int64
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawEvent, error) {
	if m.err != nil {
		m.errs.Add(1)
		return nil, m.err
	}
	i := int(m.index.Add(1) - 1)
	if i >= len(m.batches) {
		// block until context cancelled to simulate waiting for messages
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.batches[i], nil
}

type mockTransformer struct {
	err   error
	calls atomic.Int64
}

func (m *mockTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	m.calls.Add(1)
	if m.err != nil {
		return domain.OutputEvent{}, m.err
	}
	return domain.OutputEvent{Key: raw.Key, Value: raw.Value}, nil
}

type mockLoader struct {
	loaded []domain.OutputEvent
	err    error
	// failFirst fails that many calls before accepting.
	failFirst int64
	calls     atomic.Int64
}

func (m *mockLoader) LoadBatch(_ context.Context, events []domain.OutputEvent) error {
	n := m.calls.Add(1)
	if m.err != nil {
		return m.err
	}
	if n <= m.failFirst {
		return errors.New("broker unavailable")
	}
	m.loaded = append(m.loaded, events...)
	return nil
}

func rawRequest(regionID string, commit func(context.Context) error) domain.RawEvent {
	return domain.RawEvent{
		Key:    []byte(regionID),
		Value:  []byte(`{"region_id":"` + regionID + `"}`),
		Topic:  "gaia-diary-requests",
		Commit: commit,
	}
}

// --- worker loop ---

func TestWorker_Run_HappyPath(t *testing.T) {
	raw := rawRequest("reef_sumatra", nil)

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	ldr := &mockLoader{}
	w := pipeline.NewWorker("diary", ext, &mockTransformer{}, ldr, slog.Default(), newTestMetrics(), 10)

	require.Error(t, w.CheckReadiness(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, w.Run(ctx))
	require.Len(t, ldr.loaded, 1)
	assert.Equal(t, raw.Value, ldr.loaded[0].Value)
	assert.NoError(t, w.CheckReadiness(context.Background()))
}

func TestWorker_Run_ContextCancellation(t *testing.T) {
	ldr := &mockLoader{}
	w := pipeline.NewWorker("diary", &mockExtractor{}, &mockTransformer{}, ldr, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, w.Run(ctx))
	assert.Empty(t, ldr.loaded)
}

func TestWorker_Run_StageErrorSkipsAndCommits(t *testing.T) {
	var commits atomic.Int64
	raw := rawRequest("atlantis", func(context.Context) error {
		commits.Add(1)
		return nil
	})

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	tfm := &mockTransformer{err: &pipeline.StageError{Stage: pipeline.StepResolveRegion, Err: &domain.InvalidFieldError{Field: "region_id"}}}
	ldr := &mockLoader{}
	w := pipeline.NewWorker("diary", ext, tfm, ldr, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, w.Run(ctx))
	assert.Empty(t, ldr.loaded)
	assert.Equal(t, int64(1), commits.Load())
	assert.Error(t, w.CheckReadiness(context.Background()))
}

func TestWorker_Run_CommitsAfterLoad(t *testing.T) {
	var commits atomic.Int64
	commit := func(context.Context) error {
		commits.Add(1)
		return nil
	}

	ext := &mockExtractor{batches: [][]domain.RawEvent{{
		rawRequest("reef_sumatra", commit),
		rawRequest("amazon_basin", commit),
	}}}
	ldr := &mockLoader{}
	w := pipeline.NewWorker("diary", ext, &mockTransformer{}, ldr, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, w.Run(ctx))
	assert.Len(t, ldr.loaded, 2)
	assert.Equal(t, int64(2), commits.Load())
}

func TestWorker_Run_LoadFailureDoesNotCommit(t *testing.T) {
	var commits atomic.Int64
	raw := rawRequest("reef_sumatra", func(context.Context) error {
		commits.Add(1)
		return nil
	})

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	ldr := &mockLoader{err: errors.New("broker down")}
	w := pipeline.NewWorker("diary", ext, &mockTransformer{}, ldr, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, w.Run(ctx))
	assert.Zero(t, commits.Load())
	assert.Equal(t, int64(1), ext.index.Load(), "batch must not be extracted again while publishing")
	assert.Greater(t, ldr.calls.Load(), int64(1))
}

func TestWorker_Run_RetriesPublishThenCommits(t *testing.T) {
	var commits atomic.Int64
	raw := rawRequest("reef_sumatra", func(context.Context) error {
		commits.Add(1)
		return nil
	})

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	tfm := &mockTransformer{}
	ldr := &mockLoader{failFirst: 1}
	w := pipeline.NewWorker("diary", ext, tfm, ldr, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, w.Run(ctx))
	require.Len(t, ldr.loaded, 1)
	assert.Equal(t, raw.Value, ldr.loaded[0].Value)
	assert.Equal(t, int64(2), ldr.calls.Load())
	assert.Equal(t, int64(1), tfm.calls.Load())
	assert.Equal(t, int64(1), commits.Load())
	assert.NoError(t, w.CheckReadiness(context.Background()))
}

func TestWorker_Run_ExtractFailureBacksOff(t *testing.T) {
	ext := &mockExtractor{err: errors.New("broker down")}
	w := pipeline.NewWorker("diary", ext, &mockTransformer{}, &mockLoader{}, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, w.Run(ctx))
	// 200ms then 400ms: at most a handful of attempts fit in the window.
	assert.LessOrEqual(t, ext.errs.Load(), int64(3))
	assert.GreaterOrEqual(t, ext.errs.Load(), int64(1))
}

// --- stage transformers ---

func TestDiaryAndNarrativeTransformers_Chain(t *testing.T) {
	h := newHarness(t)
	h.source.snaps["reef_sumatra"] = snapshot("reef_sumatra", 29.0, 27.2, 0.31, 20)

	diaryTfm := pipeline.NewDiaryTransformer(h.diary, h.clock)
	out, err := diaryTfm.Transform(context.Background(), rawRequest("reef_sumatra", nil))
	require.NoError(t, err)

	assert.Equal(t, []byte("reef_sumatra"), out.Key)
	assert.Equal(t, domain.NotificationDiaryCreated, out.Headers["kind"])

	var created domain.Notification
	require.NoError(t, json.Unmarshal(out.Value, &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, testBucket, created.Bucket)
	assert.Equal(t, testDiaryKey, created.Key)
	assert.Equal(t, out.Headers["digest"], created.Digest)
	assert.Equal(t, []domain.Event{{Type: domain.EventHeatStress, Severity: domain.SeverityHigh}}, created.Events)

	narrTfm := pipeline.NewNarrativeTransformer(h.narrative, h.clock)
	out, err = narrTfm.Transform(context.Background(), domain.RawEvent{Key: out.Key, Value: out.Value})
	require.NoError(t, err)

	var narrated domain.Notification
	require.NoError(t, json.Unmarshal(out.Value, &narrated))
	assert.Equal(t, domain.NotificationNarrativeCreated, narrated.Kind)
	assert.Equal(t, testNarrativeKey, narrated.Key)
	assert.Equal(t, "reef_sumatra", narrated.RegionID)
}

func TestNarrativeTransformer_RedeliveryRepublishes(t *testing.T) {
	h := newHarness(t)
	h.source.snaps["reef_sumatra"] = snapshot("reef_sumatra", 29.0, 27.2, 0.31, 20)

	created, err := pipeline.NewDiaryTransformer(h.diary, h.clock).Transform(context.Background(), rawRequest("reef_sumatra", nil))
	require.NoError(t, err)
	redelivered := domain.RawEvent{Key: created.Key, Value: created.Value}

	tfm := pipeline.NewNarrativeTransformer(h.narrative, h.clock)
	first, err := tfm.Transform(context.Background(), redelivered)
	require.NoError(t, err)
	second, err := tfm.Transform(context.Background(), redelivered)
	require.NoError(t, err)

	var a, b domain.Notification
	require.NoError(t, json.Unmarshal(first.Value, &a))
	require.NoError(t, json.Unmarshal(second.Value, &b))
	assert.Equal(t, testNarrativeKey, b.Key)
	assert.Equal(t, a.Key, b.Key)
	assert.Equal(t, a.Digest, b.Digest)
	assert.Equal(t, first.Headers["digest"], second.Headers["digest"])
	assert.Equal(t, int64(1), h.generator.calls.Load())
}

func TestDiaryTransformer_EmptyBodyUsesKeyThenDefault(t *testing.T) {
	h := newHarness(t)
	tfm := pipeline.NewDiaryTransformer(h.diary, h.clock)

	out, err := tfm.Transform(context.Background(), domain.RawEvent{Key: []byte("amazon_basin")})
	require.NoError(t, err)
	assert.Equal(t, []byte("amazon_basin"), out.Key)

	out, err = tfm.Transform(context.Background(), domain.RawEvent{})
	require.NoError(t, err)
	assert.Equal(t, []byte("reef_sumatra"), out.Key)
}

func TestNarrativeTransformer_RejectsWrongKind(t *testing.T) {
	h := newHarness(t)
	tfm := pipeline.NewNarrativeTransformer(h.narrative, h.clock)

	_, err := tfm.Transform(context.Background(), domain.RawEvent{
		Value: []byte(`{"kind":"narrative.created","s3_key":"` + testNarrativeKey + `"}`),
	})
	assert.Equal(t, domain.KindInvalidField, domain.Kind(err))
	assert.Zero(t, h.generator.calls.Load())
}
