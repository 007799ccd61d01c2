package domain

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gowebpki/jcs"
	"github.com/kaptinlin/jsonschema"
)

// ContentTypeJSON is the content type stored alongside every record.
const ContentTypeJSON = "application/json"

//go:embed schema/diary.schema.json
var diarySchemaJSON []byte

var diarySchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	return compiler.Compile(diarySchemaJSON)
})

// EncodeRecord renders a diary or narrative record as two-space indented JSON.
func EncodeRecord(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return data, nil
}

// StoredDiary is the read-side view of a persisted diary. Features is nil
// when the stored record has no features or an empty features object.
type StoredDiary struct {
	RegionID  string
	Timestamp string
	Features  *FeatureSet
	Events    []Event
	Sources   []string
}

type storedDiaryJSON struct {
	RegionID  string          `json:"region_id"`
	Timestamp string          `json:"timestamp"`
	Features  json.RawMessage `json:"features"`
	Events    []Event         `json:"events"`
	Sources   []string        `json:"sources"`
}

// DecodeDiary validates data against the diary schema and decodes it.
// Structural problems are reported as InvalidFieldError on "diary".
func DecodeDiary(data []byte) (StoredDiary, error) {
	schema, err := diarySchema()
	if err != nil {
		return StoredDiary{}, fmt.Errorf("compile diary schema: %w", err)
	}
	if !json.Valid(data) {
		return StoredDiary{}, &InvalidFieldError{Field: "diary", Reason: "not valid JSON"}
	}
	if result := schema.ValidateJSON(data); !result.IsValid() {
		return StoredDiary{}, &InvalidFieldError{Field: "diary", Reason: fmt.Sprintf("schema validation failed: %v", result.Errors)}
	}

	var raw storedDiaryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return StoredDiary{}, &InvalidFieldError{Field: "diary", Reason: err.Error()}
	}

	out := StoredDiary{
		RegionID:  raw.RegionID,
		Timestamp: raw.Timestamp,
		Events:    raw.Events,
		Sources:   raw.Sources,
	}
	if hasFeatures(raw.Features) {
		var fs FeatureSet
		if err := json.Unmarshal(raw.Features, &fs); err != nil {
			return StoredDiary{}, &InvalidFieldError{Field: "features", Reason: err.Error()}
		}
		out.Features = &fs
	}
	return out, nil
}

func hasFeatures(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return true
	}
	return len(fields) > 0
}

// Digest returns the sha256 hex digest of the RFC 8785 canonical form of a
// JSON document, so equal records hash equally regardless of indentation.
func Digest(data []byte) (string, error) {
	canonical, err := jcs.Transform(data)
	if err != nil {
		return "", fmt.Errorf("canonicalize record: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
