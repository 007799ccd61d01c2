package domain

import "strings"

// Explanation text and placeholder reference list attached to every diary.
const DiaryExplanation = "Derived from SST anomaly vs. climatology; AQ from PM2.5 thresholds."

// DefaultLinks is the placeholder citation list used when the caller supplies none.
var DefaultLinks = []string{"swap-with-real-dataset-links"}

// Why is the rationale block of a diary record.
type Why struct {
	Explanation string   `json:"explanation"`
	Links       []string `json:"links"`
}

// DiaryRecord is the persisted, write-once snapshot of derived features and
// events for a region. Narrative and Confidence stay nil on the stored diary;
// narration is written to a separate companion record.
type DiaryRecord struct {
	RegionID   string     `json:"region_id"`
	Timestamp  string     `json:"timestamp"`
	Features   FeatureSet `json:"features"`
	Events     []Event    `json:"events"`
	Narrative  *string    `json:"narrative"`
	Confidence *float64   `json:"confidence"`
	Sources    []string   `json:"sources"`
	Why        Why        `json:"why"`
}

// DiaryInput carries everything BuildDiaryRecord needs.
type DiaryInput struct {
	RegionID  string
	Timestamp string
	Features  FeatureSet
	Events    []Event
	Sources   []string
	// Links overrides DefaultLinks when non-empty.
	Links []string
}

// BuildDiaryRecord validates the region and timestamp and assembles a fresh
// diary record. Slices are copied so the record never aliases caller state.
func BuildDiaryRecord(in DiaryInput) (DiaryRecord, error) {
	if strings.TrimSpace(in.RegionID) == "" {
		return DiaryRecord{}, &MissingFieldError{Field: "region_id"}
	}
	if _, err := ParseTimestamp(in.Timestamp); err != nil {
		return DiaryRecord{}, err
	}

	links := DefaultLinks
	if len(in.Links) > 0 {
		links = in.Links
	}

	return DiaryRecord{
		RegionID:  in.RegionID,
		Timestamp: in.Timestamp,
		Features:  in.Features,
		Events:    append([]Event{}, in.Events...),
		Sources:   append([]string{}, in.Sources...),
		Why: Why{
			Explanation: DiaryExplanation,
			Links:       append([]string{}, links...),
		},
	}, nil
}
