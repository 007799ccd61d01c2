package domain

import (
	"encoding/json"
	"math"
	"strings"
)

// NarrativeRecord is the companion record written next to a diary once it
// has been narrated. It references the diary by key only.
type NarrativeRecord struct {
	RegionID       string  `json:"region_id"`
	Timestamp      string  `json:"ts"`
	Narrative      string  `json:"narrative"`
	Confidence     float64 `json:"confidence"`
	SourceDiaryKey string  `json:"source_diary_key"`
}

// NarrativeInput carries everything BuildNarrativeRecord needs.
type NarrativeInput struct {
	RegionID       string
	Text           string
	Confidence     float64
	SourceDiaryKey string
	Timestamp      string
}

// BuildNarrativeRecord trims the generated text and assembles the record.
// Whitespace-only text fails with EmptyGenerationError. Confidence is clamped
// to [0,1] and rounded to two decimals.
func BuildNarrativeRecord(in NarrativeInput) (NarrativeRecord, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return NarrativeRecord{}, &EmptyGenerationError{RegionID: in.RegionID}
	}
	if in.SourceDiaryKey == "" {
		return NarrativeRecord{}, &MissingFieldError{Field: "source_diary_key"}
	}

	return NarrativeRecord{
		RegionID:       in.RegionID,
		Timestamp:      in.Timestamp,
		Narrative:      text,
		Confidence:     roundTo(math.Min(1, math.Max(0, in.Confidence)), 2),
		SourceDiaryKey: in.SourceDiaryKey,
	}, nil
}

// DecodeNarrative decodes a stored narrative record. A record without text or
// a source diary key is reported as InvalidFieldError on "narrative".
func DecodeNarrative(data []byte) (NarrativeRecord, error) {
	var rec NarrativeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return NarrativeRecord{}, &InvalidFieldError{Field: "narrative", Reason: err.Error()}
	}
	if rec.Narrative == "" || rec.SourceDiaryKey == "" {
		return NarrativeRecord{}, &InvalidFieldError{Field: "narrative", Reason: "record is missing narrative or source_diary_key"}
	}
	return rec, nil
}
