package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/gaia-diary-service/internal/domain"
)

// NarrativeIndex looks up stored narratives by region.
type NarrativeIndex struct {
	store   BlobStore
	catalog *domain.Catalog
	prefix  string
}

// NewNarrativeIndex creates an index over the records written under prefix.
func NewNarrativeIndex(store BlobStore, catalog *domain.Catalog, prefix string) *NarrativeIndex {
	return &NarrativeIndex{store: store, catalog: catalog, prefix: prefix}
}

// Latest returns the newest narrative for regionID, or for the catalog
// default when regionID is empty. Keys embed a fixed-width capture timestamp,
// so the greatest narrative key is the newest.
func (x *NarrativeIndex) Latest(ctx context.Context, regionID string) (domain.LatestNarrative, error) {
	region, err := x.catalog.Resolve(regionID)
	if err != nil {
		return domain.LatestNarrative{}, &StageError{Stage: StepResolveRegion, RegionID: regionID, Err: err}
	}
	regionID = region.ID

	keys, err := x.store.List(ctx, domain.RegionKeyPrefix(x.prefix, regionID))
	if err != nil {
		return domain.LatestNarrative{}, &StageError{Stage: StepListNarratives, RegionID: regionID, Err: err}
	}
	var latest string
	for _, k := range keys {
		if domain.IsNarrativeKey(k) && k > latest {
			latest = k
		}
	}
	if latest == "" {
		return domain.LatestNarrative{}, &StageError{
			Stage:    StepListNarratives,
			RegionID: regionID,
			Err:      fmt.Errorf("no narrative stored for %s: %w", regionID, domain.ErrNotFound),
		}
	}

	data, err := x.store.Get(ctx, latest)
	if err != nil {
		return domain.LatestNarrative{}, &StageError{Stage: StepLoadNarrative, RegionID: regionID, Key: latest, Err: err}
	}
	record, err := domain.DecodeNarrative(data)
	if err != nil {
		return domain.LatestNarrative{}, &StageError{Stage: StepLoadNarrative, RegionID: regionID, Key: latest, Err: err}
	}

	data, err = x.store.Get(ctx, record.SourceDiaryKey)
	if err != nil {
		return domain.LatestNarrative{}, &StageError{Stage: StepLoadDiary, RegionID: regionID, Key: record.SourceDiaryKey, Err: err}
	}
	diary, err := domain.DecodeDiary(data)
	if err != nil {
		return domain.LatestNarrative{}, &StageError{Stage: StepDecodeDiary, RegionID: regionID, Key: record.SourceDiaryKey, Err: err}
	}

	events := diary.Events
	if events == nil {
		events = []domain.Event{}
	}
	return domain.LatestNarrative{
		RegionID:     record.RegionID,
		Timestamp:    record.Timestamp,
		Narrative:    record.Narrative,
		Confidence:   record.Confidence,
		NarrativeKey: latest,
		DiaryKey:     record.SourceDiaryKey,
		Features:     diary.Features,
		Events:       events,
		Sources:      diary.Sources,
	}, nil
}
