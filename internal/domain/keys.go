package domain

import "strings"

const (
	diarySuffix     = ".json"
	narrativeSuffix = "-narrative.json"
)

var timestampSanitizer = strings.NewReplacer(":", "-", ".", "-")

// SanitizeTimestamp replaces every ':' and '.' with '-' so the timestamp is
// safe as an object key segment.
func SanitizeTimestamp(ts string) string {
	return timestampSanitizer.Replace(ts)
}

// DiaryKey builds the write-once storage key for a diary record:
// prefix/region/sanitized-timestamp.json. Segments are joined as given;
// nothing is cleaned, so callers pass the prefix without a trailing slash.
func DiaryKey(prefix, regionID, timestamp string) string {
	return RegionKeyPrefix(prefix, regionID) + SanitizeTimestamp(timestamp) + diarySuffix
}

// RegionKeyPrefix is the key prefix every record of a region is stored under.
func RegionKeyPrefix(prefix, regionID string) string {
	return prefix + "/" + regionID + "/"
}

// IsNarrativeKey reports whether key names a narrative record.
func IsNarrativeKey(key string) bool {
	return strings.HasSuffix(key, narrativeSuffix)
}

// NarrativeKey derives the companion narrative key from a diary key by
// replacing the trailing ".json" with "-narrative.json". Earlier occurrences
// of ".json" in the path are left untouched. Keys that are already narrative
// keys are rejected.
func NarrativeKey(diaryKey string) (string, error) {
	if diaryKey == "" {
		return "", &MissingFieldError{Field: "s3_key"}
	}
	if IsNarrativeKey(diaryKey) {
		return "", &InvalidFieldError{Field: "s3_key", Reason: "already a narrative key: " + diaryKey}
	}
	return strings.TrimSuffix(diaryKey, diarySuffix) + narrativeSuffix, nil
}
