package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Blob store backends.
const (
	BlobBackendS3     = "s3"
	BlobBackendLocal  = "local"
	BlobBackendMemory = "memory"
)

// Signal sources.
const (
	SignalSourceSynthetic = "synthetic"
	SignalSourceOpenMeteo = "openmeteo"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	TracingEnabled  bool

	// Diary storage.
	DiaryBucket    string
	DiaryPrefix    string
	BlobBackend    string
	BlobLocalDir   string
	AWSRegion      string
	S3Endpoint     string
	S3UsePathStyle bool

	// Signal acquisition.
	SignalSource       string
	SignalTimeout      time.Duration
	SignalCacheTTL     time.Duration
	OpenMeteoMarineURL string
	OpenMeteoAirURL    string
	RegionsFile        string
	DefaultRegion      string

	// Text generation.
	TextGenEnabled   bool
	AnthropicAPIKey  string
	AnthropicBaseURL string
	TextGenModel     string
	TextGenMaxTokens int
	TextGenTimeout   time.Duration

	// Event-driven orchestration.
	KafkaEnabled               bool
	KafkaBrokers               []string
	KafkaDiaryRequestTopic     string
	KafkaDiaryCreatedTopic     string
	KafkaNarrativeCreatedTopic string
	KafkaGroupID               string
	BatchSize                  int
	BatchFlushInterval         time.Duration
	IngestConcurrency          int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	signalTimeout, err := parseDuration("SIGNAL_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	signalCacheTTL, err := parseDuration("SIGNAL_CACHE_TTL", "15m")
	if err != nil {
		return nil, err
	}

	textGenTimeout, err := parseDuration("TEXTGEN_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	maxTokens, err := parsePositiveInt("TEXTGEN_MAX_TOKENS", 300)
	if err != nil {
		return nil, err
	}

	concurrency, err := parsePositiveInt("INGEST_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}

	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	textGenEnabled := apiKey != ""
	if v := os.Getenv("TEXTGEN_ENABLED"); v != "" {
		textGenEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		TracingEnabled:  os.Getenv("TRACING_ENABLED") == "true",

		DiaryBucket:    sharedcfg.EnvOrDefault("DIARY_BUCKET", "gaia-code-diary-s3"),
		DiaryPrefix:    strings.Trim(sharedcfg.EnvOrDefault("DIARY_PREFIX", "diary"), "/"),
		BlobBackend:    strings.ToLower(sharedcfg.EnvOrDefault("BLOB_BACKEND", BlobBackendLocal)),
		BlobLocalDir:   sharedcfg.EnvOrDefault("BLOB_LOCAL_DIR", "./data"),
		AWSRegion:      sharedcfg.EnvOrDefault("AWS_REGION", "us-east-1"),
		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3UsePathStyle: os.Getenv("S3_USE_PATH_STYLE") == "true",

		SignalSource:       strings.ToLower(sharedcfg.EnvOrDefault("SIGNAL_SOURCE", SignalSourceSynthetic)),
		SignalTimeout:      signalTimeout,
		SignalCacheTTL:     signalCacheTTL,
		OpenMeteoMarineURL: sharedcfg.EnvOrDefault("OPEN_METEO_MARINE_URL", "https://marine-api.open-meteo.com"),
		OpenMeteoAirURL:    sharedcfg.EnvOrDefault("OPEN_METEO_AIR_URL", "https://air-quality-api.open-meteo.com"),
		RegionsFile:        os.Getenv("REGIONS_FILE"),
		DefaultRegion:      sharedcfg.EnvOrDefault("DEFAULT_REGION", "reef_sumatra"),

		TextGenEnabled:   textGenEnabled,
		AnthropicAPIKey:  apiKey,
		AnthropicBaseURL: sharedcfg.EnvOrDefault("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		TextGenModel:     sharedcfg.EnvOrDefault("TEXTGEN_MODEL", "claude-3-sonnet-20240229"),
		TextGenMaxTokens: maxTokens,
		TextGenTimeout:   textGenTimeout,

		KafkaEnabled:               os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:               sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaDiaryRequestTopic:     sharedcfg.EnvOrDefault("KAFKA_DIARY_REQUEST_TOPIC", "gaia-diary-requests"),
		KafkaDiaryCreatedTopic:     sharedcfg.EnvOrDefault("KAFKA_DIARY_CREATED_TOPIC", "gaia-diary-created"),
		KafkaNarrativeCreatedTopic: sharedcfg.EnvOrDefault("KAFKA_NARRATIVE_CREATED_TOPIC", "gaia-narrative-created"),
		KafkaGroupID:               sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "gaia-diary"),
		BatchSize:                  batchSize,
		BatchFlushInterval:         flushInterval,
		IngestConcurrency:          concurrency,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DiaryBucket == "" {
		return errors.New("DIARY_BUCKET is required")
	}
	switch c.BlobBackend {
	case BlobBackendS3, BlobBackendLocal, BlobBackendMemory:
	default:
		return fmt.Errorf("BLOB_BACKEND must be one of s3, local, memory; got %q", c.BlobBackend)
	}
	switch c.SignalSource {
	case SignalSourceSynthetic, SignalSourceOpenMeteo:
	default:
		return fmt.Errorf("SIGNAL_SOURCE must be synthetic or openmeteo; got %q", c.SignalSource)
	}
	if c.TextGenEnabled && c.AnthropicAPIKey == "" {
		return errors.New("TEXTGEN_ENABLED is true but ANTHROPIC_API_KEY is not set")
	}
	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required")
		}
		if c.KafkaDiaryRequestTopic == "" {
			return errors.New("KAFKA_DIARY_REQUEST_TOPIC is required")
		}
		if c.KafkaDiaryCreatedTopic == "" {
			return errors.New("KAFKA_DIARY_CREATED_TOPIC is required")
		}
		if c.KafkaNarrativeCreatedTopic == "" {
			return errors.New("KAFKA_NARRATIVE_CREATED_TOPIC is required")
		}
	}
	return nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
