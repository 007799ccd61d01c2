package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultMaxTokens bounds the generated narrative length.
const DefaultMaxTokens = 300

const (
	promptPersona     = "You are the voice of the Earth."
	promptInstruction = "Write 2–4 sentences that are poetic but factual, including a 'because' clause."
	promptFormat      = "Return plain text only."
)

// NarrativeRequest is a bounded text-generation request.
type NarrativeRequest struct {
	RegionID  string
	Prompt    string
	MaxTokens int
}

// BuildNarrativeRequest renders the prompt for a diary's features and events.
// It fails with MissingContextError when there is nothing to narrate.
// A maxTokens of zero or less selects DefaultMaxTokens.
func BuildNarrativeRequest(regionID string, features *FeatureSet, events []Event, maxTokens int) (NarrativeRequest, error) {
	if features == nil && len(events) == 0 {
		return NarrativeRequest{}, &MissingContextError{RegionID: regionID}
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	featuresJSON := []byte("{}")
	if features != nil {
		b, err := json.Marshal(features)
		if err != nil {
			return NarrativeRequest{}, fmt.Errorf("render features: %w", err)
		}
		featuresJSON = b
	}
	if events == nil {
		events = []Event{}
	}
	eventsJSON, err := json.Marshal(events)
	if err != nil {
		return NarrativeRequest{}, fmt.Errorf("render events: %w", err)
	}

	var b strings.Builder
	b.WriteString(promptPersona + "\n")
	fmt.Fprintf(&b, "Region: %s\n", regionID)
	fmt.Fprintf(&b, "Features: %s\n", featuresJSON)
	fmt.Fprintf(&b, "Events: %s\n", eventsJSON)
	b.WriteString(promptInstruction + "\n")
	b.WriteString(promptFormat)

	return NarrativeRequest{
		RegionID:  regionID,
		Prompt:    b.String(),
		MaxTokens: maxTokens,
	}, nil
}
