package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Source drivers.
const (
	SourceNOAA     = "noaa"
	SourceSnapshot = "snapshot"
)

// Config holds all process settings, populated from environment variables.
type Config struct {
	RunConfigPath string
	Source        string
	SnapshotPath  string

	NOAABaseURL   string
	NOAARateLimit float64

	FetchConcurrency  int
	FetchTimeout      time.Duration
	FetchRetries      int
	FetchBackoff      time.Duration
	SkipExcludedFetch bool

	OutputPath string

	// Optional S3 upload of the artifact.
	S3Bucket    string
	S3Key       string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool

	// Optional completion event.
	KafkaBrokers []string
	KafkaTopic   string

	MetricsTextfile string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from a .env file (if present) and environment
// variables, applying defaults where unset.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := parsePositiveDuration("FETCH_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	fetchBackoff, err := parsePositiveDuration("FETCH_BACKOFF", "500ms")
	if err != nil {
		return nil, err
	}
	concurrency, err := parseIntInRange("FETCH_CONCURRENCY", 6, 1, 16)
	if err != nil {
		return nil, err
	}
	retries, err := parseIntInRange("FETCH_RETRIES", 3, 0, 10)
	if err != nil {
		return nil, err
	}
	rateLimit, err := parseRateLimit()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		RunConfigPath: os.Getenv("RUN_CONFIG"),
		Source:        strings.ToLower(sharedcfg.EnvOrDefault("SOURCE", SourceNOAA)),
		SnapshotPath:  sharedcfg.EnvOrDefault("SNAPSHOT_PATH", "data/raw_snapshot.json"),

		NOAABaseURL:   sharedcfg.EnvOrDefault("NOAA_BASE_URL", "https://api.tidesandcurrents.noaa.gov/api/prod/datagetter"),
		NOAARateLimit: rateLimit,

		FetchConcurrency:  concurrency,
		FetchTimeout:      fetchTimeout,
		FetchRetries:      retries,
		FetchBackoff:      fetchBackoff,
		SkipExcludedFetch: os.Getenv("SKIP_EXCLUDED_FETCH") == "true",

		OutputPath: sharedcfg.EnvOrDefault("OUTPUT_PATH", "data/frame_data_client.json"),

		S3Bucket:    os.Getenv("S3_BUCKET"),
		S3Key:       sharedcfg.EnvOrDefault("S3_KEY", "frame_data_client.json"),
		S3Region:    sharedcfg.EnvOrDefault("S3_REGION", "us-east-1"),
		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3PathStyle: strings.EqualFold(os.Getenv("S3_PATH_STYLE"), "true"),

		KafkaTopic: sharedcfg.EnvOrDefault("KAFKA_TOPIC", "frame-cache-events"),

		MetricsTextfile: os.Getenv("METRICS_TEXTFILE"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); strings.TrimSpace(brokers) != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	if cfg.Source != SourceNOAA && cfg.Source != SourceSnapshot {
		return nil, fmt.Errorf("invalid SOURCE %q: want noaa or snapshot", cfg.Source)
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// KafkaEnabled reports whether a completion event should be published.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// S3Enabled reports whether the artifact should be uploaded to S3.
func (c *Config) S3Enabled() bool { return c.S3Bucket != "" }

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseIntInRange(key string, fallback, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be an integer in [%d, %d]", key, lo, hi)
	}
	return n, nil
}

func parseRateLimit() (float64, error) {
	s := os.Getenv("NOAA_RATE_LIMIT")
	if s == "" {
		return 4, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, errors.New("invalid NOAA_RATE_LIMIT: must be a positive number of requests per second")
	}
	return v, nil
}
