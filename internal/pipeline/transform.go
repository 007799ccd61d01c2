package pipeline

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/gaia-diary-service/internal/domain"
)

// DiaryTransformer runs the diary stage for each diary request message and
// emits a diary.created notification.
type DiaryTransformer struct {
	stage *DiaryStage
	clock clockwork.Clock
}

// NewDiaryTransformer creates a DiaryTransformer.
func NewDiaryTransformer(stage *DiaryStage, clock clockwork.Clock) *DiaryTransformer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &DiaryTransformer{stage: stage, clock: clock}
}

func (t *DiaryTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	req, err := domain.ParseDiaryRequest(raw)
	if err != nil {
		return domain.OutputEvent{}, err
	}

	res, err := t.stage.Run(ctx, req.RegionID)
	if err != nil {
		return domain.OutputEvent{}, err
	}

	return domain.SerializeNotification(domain.Notification{
		ID:        uuid.NewString(),
		Kind:      domain.NotificationDiaryCreated,
		RegionID:  res.RegionID,
		Bucket:    res.Bucket,
		Key:       res.Key,
		Digest:    res.Digest,
		Events:    res.Events,
		CreatedAt: t.clock.Now().UTC(),
	})
}

// NarrativeTransformer narrates the diary named by each diary.created
// notification and emits a narrative.created notification.
type NarrativeTransformer struct {
	stage *NarrativeStage
	clock clockwork.Clock
}

// NewNarrativeTransformer creates a NarrativeTransformer.
func NewNarrativeTransformer(stage *NarrativeStage, clock clockwork.Clock) *NarrativeTransformer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &NarrativeTransformer{stage: stage, clock: clock}
}

func (t *NarrativeTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	n, err := domain.ParseNotification(raw, domain.NotificationDiaryCreated)
	if err != nil {
		return domain.OutputEvent{}, err
	}

	req := domain.NarrativeRequestMessage{
		RegionID: n.RegionID,
		Bucket:   n.Bucket,
		Key:      n.Key,
	}
	// A redelivered notification finds its narrative already written and
	// republishes it instead of narrating again.
	res, err := t.stage.Existing(ctx, req)
	if err != nil {
		res, err = t.stage.Run(ctx, req)
		if errors.Is(err, domain.ErrKeyExists) {
			res, err = t.stage.Existing(ctx, req)
		}
	}
	if err != nil {
		return domain.OutputEvent{}, err
	}

	return domain.SerializeNotification(domain.Notification{
		ID:        uuid.NewString(),
		Kind:      domain.NotificationNarrativeCreated,
		RegionID:  n.RegionID,
		Bucket:    res.Bucket,
		Key:       res.NarrativeKey,
		Digest:    res.Digest,
		CreatedAt: t.clock.Now().UTC(),
	})
}
