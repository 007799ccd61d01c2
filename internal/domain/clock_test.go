package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimestamp = "2025-10-12T05:41:23.299611Z"

func timeFromParts(sec int64, micros int) time.Time {
	return time.Unix(sec, int64(micros)*int64(time.Microsecond)).UTC()
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2025, 10, 12, 5, 41, 23, 299611000, time.UTC)
	assert.Equal(t, testTimestamp, FormatTimestamp(ts))

	t.Run("converts to UTC", func(t *testing.T) {
		loc := time.FixedZone("WIB", 7*60*60)
		assert.Equal(t, testTimestamp, FormatTimestamp(ts.In(loc)))
	})

	t.Run("pads whole seconds", func(t *testing.T) {
		assert.Equal(t, "2025-01-02T03:04:05.000000Z", FormatTimestamp(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)))
	})
}

func TestNow_UsesClock(t *testing.T) {
	clk := clockwork.NewFakeClockAt(time.Date(2025, 10, 12, 5, 41, 23, 299611000, time.UTC))
	assert.Equal(t, testTimestamp, Now(clk))
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"microseconds with Z", testTimestamp, time.Date(2025, 10, 12, 5, 41, 23, 299611000, time.UTC)},
		{"offset", "2025-10-12T12:41:23+07:00", time.Date(2025, 10, 12, 5, 41, 23, 0, time.UTC)},
		{"no zone", "2025-10-12T05:41:23", time.Date(2025, 10, 12, 5, 41, 23, 0, time.UTC)},
		{"date only", "2025-10-12", time.Date(2025, 10, 12, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	t.Run("empty is missing", func(t *testing.T) {
		_, err := ParseTimestamp("")
		var mfe *MissingFieldError
		require.ErrorAs(t, err, &mfe)
		assert.Equal(t, "timestamp", mfe.Field)
	})

	for _, truncated := range []string{"2025-10-12T05:41:23.", "2025-10-12T05:41:"} {
		t.Run("truncated "+truncated, func(t *testing.T) {
			_, err := ParseTimestamp(truncated)
			var ife *InvalidFieldError
			require.ErrorAs(t, err, &ife)
			assert.Equal(t, "timestamp", ife.Field)
		})
	}

	t.Run("garbage is invalid", func(t *testing.T) {
		_, err := ParseTimestamp("yesterday at noon")
		var ife *InvalidFieldError
		require.ErrorAs(t, err, &ife)
		assert.Equal(t, "timestamp", ife.Field)
	})
}
