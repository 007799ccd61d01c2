package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "info", "json")

	logger.Debug("hidden")
	logger.Info("diary written", "region_id", "reef_sumatra")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "diary written", line["msg"])
	assert.Equal(t, ServiceName, line["service"])
	assert.Equal(t, "reef_sumatra", line["region_id"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "debug", "text")

	logger.Debug("fetching signals")
	assert.Contains(t, buf.String(), "msg=\"fetching signals\"")
	assert.Contains(t, buf.String(), "service="+ServiceName)
}

func TestMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.DiariesWritten.Inc()
	a.StageErrors.WithLabelValues("fetch_signals", "source_unavailable").Inc()

	assert.InDelta(t, 1, testutil.ToFloat64(a.DiariesWritten), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(b.DiariesWritten), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(a.StageErrors.WithLabelValues("fetch_signals", "source_unavailable")), 0)
}

func TestInitTracer_ExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracer(&buf, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	_, span := Tracer().Start(context.Background(), "diary.ingest")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), `"Name":"diary.ingest"`)
	assert.Contains(t, buf.String(), ServiceName)
}
