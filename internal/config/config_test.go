package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	defaultBroker = "localhost:9092"
	testAPIKey    = "sk-ant-test"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.TracingEnabled)

	assert.Equal(t, "gaia-code-diary-s3", cfg.DiaryBucket)
	assert.Equal(t, "diary", cfg.DiaryPrefix)
	assert.Equal(t, BlobBackendLocal, cfg.BlobBackend)
	assert.Equal(t, "./data", cfg.BlobLocalDir)
	assert.Equal(t, "us-east-1", cfg.AWSRegion)
	assert.Empty(t, cfg.S3Endpoint)

	assert.Equal(t, SignalSourceSynthetic, cfg.SignalSource)
	assert.Equal(t, 10*time.Second, cfg.SignalTimeout)
	assert.Equal(t, 15*time.Minute, cfg.SignalCacheTTL)
	assert.Equal(t, "reef_sumatra", cfg.DefaultRegion)

	assert.False(t, cfg.TextGenEnabled)
	assert.Equal(t, "claude-3-sonnet-20240229", cfg.TextGenModel)
	assert.Equal(t, 300, cfg.TextGenMaxTokens)
	assert.Equal(t, 30*time.Second, cfg.TextGenTimeout)

	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "gaia-diary-requests", cfg.KafkaDiaryRequestTopic)
	assert.Equal(t, "gaia-diary-created", cfg.KafkaDiaryCreatedTopic)
	assert.Equal(t, "gaia-narrative-created", cfg.KafkaNarrativeCreatedTopic)
	assert.Equal(t, "gaia-diary", cfg.KafkaGroupID)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.BatchFlushInterval)
	assert.Equal(t, 4, cfg.IngestConcurrency)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("DIARY_BUCKET", "custom-bucket")
	t.Setenv("DIARY_PREFIX", "/archive/")
	t.Setenv("BLOB_BACKEND", "S3")
	t.Setenv("S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("S3_USE_PATH_STYLE", "true")
	t.Setenv("SIGNAL_SOURCE", "openmeteo")
	t.Setenv("SIGNAL_TIMEOUT", "3s")
	t.Setenv("ANTHROPIC_API_KEY", testAPIKey)
	t.Setenv("TEXTGEN_MAX_TOKENS", "200")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("INGEST_CONCURRENCY", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.TracingEnabled)
	assert.Equal(t, "custom-bucket", cfg.DiaryBucket)
	assert.Equal(t, "archive", cfg.DiaryPrefix)
	assert.Equal(t, BlobBackendS3, cfg.BlobBackend)
	assert.Equal(t, "http://localhost:9000", cfg.S3Endpoint)
	assert.True(t, cfg.S3UsePathStyle)
	assert.Equal(t, SignalSourceOpenMeteo, cfg.SignalSource)
	assert.Equal(t, 3*time.Second, cfg.SignalTimeout)
	assert.True(t, cfg.TextGenEnabled)
	assert.Equal(t, testAPIKey, cfg.AnthropicAPIKey)
	assert.Equal(t, 200, cfg.TextGenMaxTokens)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 8, cfg.IngestConcurrency)
}

func TestLoad_TextGenExplicitlyDisabled(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", testAPIKey)
	t.Setenv("TEXTGEN_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.TextGenEnabled)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"unknown blob backend", map[string]string{"BLOB_BACKEND": "gcs"}, "BLOB_BACKEND"},
		{"unknown signal source", map[string]string{"SIGNAL_SOURCE": "satellite"}, "SIGNAL_SOURCE"},
		{"bad signal timeout", map[string]string{"SIGNAL_TIMEOUT": "soon"}, "SIGNAL_TIMEOUT"},
		{"negative textgen timeout", map[string]string{"TEXTGEN_TIMEOUT": "-1s"}, "TEXTGEN_TIMEOUT"},
		{"zero max tokens", map[string]string{"TEXTGEN_MAX_TOKENS": "0"}, "TEXTGEN_MAX_TOKENS"},
		{"bad concurrency", map[string]string{"INGEST_CONCURRENCY": "many"}, "INGEST_CONCURRENCY"},
		{"textgen without key", map[string]string{"TEXTGEN_ENABLED": "true"}, "ANTHROPIC_API_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadRegions_Builtin(t *testing.T) {
	catalog, err := LoadRegions("", "reef_sumatra")
	require.NoError(t, err)

	assert.Len(t, catalog.IDs(), len(BuiltinRegions))
	assert.Equal(t, "reef_sumatra", catalog.DefaultID())

	reef, ok := catalog.Lookup("reef_sumatra")
	require.True(t, ok)
	assert.Equal(t, -0.5, reef.Lat)
	assert.Equal(t, 100.0, reef.Lon)
	assert.Equal(t, 27.2, reef.SSTClimC)

	for _, id := range []string{"reef_sumatra", "amazon_basin", "arctic_circle", "sahara_desert", "great_barrier_reef"} {
		_, ok := catalog.Lookup(id)
		assert.True(t, ok, id)
	}
}

func TestLoadRegions_MissingFileFallsBack(t *testing.T) {
	catalog, err := LoadRegions(filepath.Join(t.TempDir(), "nope.yaml"), "reef_sumatra")
	require.NoError(t, err)
	assert.Len(t, catalog.IDs(), len(BuiltinRegions))
}

func TestLoadRegions_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default_region: lombok_strait
regions:
  - id: lombok_strait
    name: Lombok Strait
    category: ocean
    lat: -8.4
    lon: 115.7
    sst_clim_c: 28.4
  - id: reef_sumatra
    lat: -0.5
    lon: 100.0
`), 0o644))

	catalog, err := LoadRegions(path, "reef_sumatra")
	require.NoError(t, err)

	assert.Equal(t, []string{"lombok_strait", "reef_sumatra"}, catalog.IDs())
	assert.Equal(t, "lombok_strait", catalog.DefaultID())

	r, ok := catalog.Lookup("lombok_strait")
	require.True(t, ok)
	assert.Equal(t, 28.4, r.SSTClimC)
	assert.Equal(t, 0.3, r.ChlorophyllMgM3)

	t.Run("env overrides default region", func(t *testing.T) {
		t.Setenv("GAIA_CATALOG_DEFAULT_REGION", "reef_sumatra")
		catalog, err := LoadRegions(path, "")
		require.NoError(t, err)
		assert.Equal(t, "reef_sumatra", catalog.DefaultID())
	})
}

func TestLoadRegions_UnknownDefault(t *testing.T) {
	_, err := LoadRegions("", "atlantis")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "atlantis")
}
