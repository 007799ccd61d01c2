package domain

import (
	"context"
	"time"
)

// RawEvent represents an unprocessed message from a source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// OutputEvent is the serialized form destined for a sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// DiaryRequest asks the diary stage to ingest one region.
type DiaryRequest struct {
	RegionID string `json:"region_id"`
}

// NarrativeRequestMessage asks the narrative stage to narrate one stored diary.
// Field names follow the stage invocation contract.
type NarrativeRequestMessage struct {
	RegionID string `json:"region_id"`
	Bucket   string `json:"s3_bucket,omitempty"`
	Key      string `json:"s3_key"`
}

// DiaryResult is the diary stage's success payload.
type DiaryResult struct {
	Status   string     `json:"status"`
	Bucket   string     `json:"bucket"`
	Key      string     `json:"s3_key"`
	RegionID string     `json:"region_id"`
	Features FeatureSet `json:"features"`
	Events   []Event    `json:"events"`
	Digest   string     `json:"digest,omitempty"`
}

// NarrativeResult is the narrative stage's success payload.
type NarrativeResult struct {
	Bucket       string  `json:"bucket"`
	NarrativeKey string  `json:"narrative_key"`
	Narrative    string  `json:"narrative"`
	Confidence   float64 `json:"confidence"`
	Digest       string  `json:"digest,omitempty"`
}

// LatestNarrative is the newest narrative stored for a region, joined with
// the features and events of the diary it narrates.
type LatestNarrative struct {
	RegionID     string      `json:"region_id"`
	Timestamp    string      `json:"ts"`
	Narrative    string      `json:"narrative"`
	Confidence   float64     `json:"confidence"`
	NarrativeKey string      `json:"narrative_key"`
	DiaryKey     string      `json:"diary_key"`
	Features     *FeatureSet `json:"features"`
	Events       []Event     `json:"events"`
	Sources      []string    `json:"sources,omitempty"`
}

// Notification is published after a stage persists a record, so a downstream
// stage can pick it up.
type Notification struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	RegionID  string    `json:"region_id"`
	Bucket    string    `json:"s3_bucket"`
	Key       string    `json:"s3_key"`
	Digest    string    `json:"digest"`
	Events    []Event   `json:"events,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification kinds.
const (
	NotificationDiaryCreated     = "diary.created"
	NotificationNarrativeCreated = "narrative.created"
)
