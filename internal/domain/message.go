package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ParseDiaryRequest decodes a diary request message. An empty body yields a
// request without a region so the stage falls back to the default region;
// the message key is used when the body names no region.
func ParseDiaryRequest(raw RawEvent) (DiaryRequest, error) {
	var req DiaryRequest
	if len(bytes.TrimSpace(raw.Value)) > 0 {
		if err := json.Unmarshal(raw.Value, &req); err != nil {
			return DiaryRequest{}, &InvalidFieldError{Field: "message", Reason: err.Error()}
		}
	}
	if req.RegionID == "" {
		req.RegionID = string(raw.Key)
	}
	return req, nil
}

// ParseNotification decodes a notification previously written by
// SerializeNotification and checks it is of the expected kind.
func ParseNotification(raw RawEvent, kind string) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(raw.Value, &n); err != nil {
		return Notification{}, &InvalidFieldError{Field: "message", Reason: err.Error()}
	}
	if n.Kind != kind {
		return Notification{}, &InvalidFieldError{Field: "kind", Reason: fmt.Sprintf("expected %q, got %q", kind, n.Kind)}
	}
	return n, nil
}

// SerializeNotification marshals a notification into an output message keyed
// by region id so one region's notifications stay on one partition.
func SerializeNotification(n Notification) (OutputEvent, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize notification: %w", err)
	}
	return OutputEvent{
		Key:   []byte(n.RegionID),
		Value: data,
		Headers: map[string]string{
			"kind":       n.Kind,
			"digest":     n.Digest,
			"created_at": n.CreatedAt.UTC().Format(time.RFC3339),
		},
	}, nil
}
