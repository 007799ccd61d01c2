package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDiaryKey = "diary/reef_sumatra/2025-10-12T05-41-23-299611Z.json"

func TestDiaryKey(t *testing.T) {
	assert.Equal(t, testDiaryKey, DiaryKey("diary", DefaultRegionID, testTimestamp))
	assert.Equal(t, "archive/v2/arctic_circle/2025-01-02T03-04-05-000000Z.json",
		DiaryKey("archive/v2", "arctic_circle", "2025-01-02T03:04:05.000000Z"))
}

func TestDiaryKey_JoinsVerbatim(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		region string
		want   string
	}{
		{"empty prefix keeps leading slash", "", "reef_sumatra", "/reef_sumatra/2025-10-12T05-41-23-299611Z.json"},
		{"dot segments kept", "diary", "../reef", "diary/../reef/2025-10-12T05-41-23-299611Z.json"},
		{"doubled slash kept", "diary/", "reef_sumatra", "diary//reef_sumatra/2025-10-12T05-41-23-299611Z.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DiaryKey(tt.prefix, tt.region, testTimestamp))
		})
	}
}

func TestRegionKeyPrefix(t *testing.T) {
	prefix := RegionKeyPrefix("diary", "reef_sumatra")
	assert.Equal(t, "diary/reef_sumatra/", prefix)
	assert.True(t, strings.HasPrefix(testDiaryKey, prefix))
	assert.False(t, IsNarrativeKey(testDiaryKey))
	assert.True(t, IsNarrativeKey("diary/reef_sumatra/2025-10-12T05-41-23-299611Z-narrative.json"))
}

func TestSanitizeTimestamp(t *testing.T) {
	assert.Equal(t, "2025-10-12T05-41-23-299611Z", SanitizeTimestamp(testTimestamp))
	assert.Equal(t, "2025-10-12T05-41-23-299611+00-00", SanitizeTimestamp("2025-10-12T05:41:23.299611+00:00"))
}

func TestNarrativeKey(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"diary key", testDiaryKey, "diary/reef_sumatra/2025-10-12T05-41-23-299611Z-narrative.json"},
		{"inner .json untouched", "diary/reef.json.v1/2025-10-12T05-41-23-299611Z.json", "diary/reef.json.v1/2025-10-12T05-41-23-299611Z-narrative.json"},
		{"no suffix gets appended", "diary/reef_sumatra/latest", "diary/reef_sumatra/latest-narrative.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NarrativeKey(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("rejects narrative keys", func(t *testing.T) {
		_, err := NarrativeKey("diary/reef_sumatra/2025-10-12T05-41-23-299611Z-narrative.json")
		assert.Equal(t, KindInvalidField, Kind(err))
	})

	t.Run("rejects empty key", func(t *testing.T) {
		_, err := NarrativeKey("")
		var mfe *MissingFieldError
		require.ErrorAs(t, err, &mfe)
		assert.Equal(t, "s3_key", mfe.Field)
	})
}

func TestKind(t *testing.T) {
	tests := []struct {
		err       error
		kind      string
		retryable bool
	}{
		{nil, "", false},
		{&MissingFieldError{Field: "x"}, KindMissingField, false},
		{fmt.Errorf("stage: %w", &InvalidFieldError{Field: "x"}), KindInvalidField, false},
		{&MissingContextError{}, KindMissingContext, false},
		{&EmptyGenerationError{}, KindEmptyGeneration, false},
		{fmt.Errorf("get k: %w", ErrNotFound), KindNotFound, false},
		{fmt.Errorf("put k: %w", ErrKeyExists), KindKeyExists, false},
		{fmt.Errorf("%w: dns", ErrSourceUnavailable), KindSourceUnavailable, true},
		{fmt.Errorf("%w: 529", ErrBackendUnavailable), KindBackendUnavailable, true},
		{fmt.Errorf("%w: deadline", ErrBackendTimeout), KindBackendTimeout, true},
		{fmt.Errorf("%w: disk full", ErrStorage), KindStorage, true},
		{errors.New("boom"), KindInternal, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, Kind(tt.err), "%v", tt.err)
		assert.Equal(t, tt.retryable, IsRetryable(tt.err), "%v", tt.err)
	}
}
