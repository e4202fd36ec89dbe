package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/storm-data-windfield/internal/codec"
	"github.com/couchcryptid/storm-data-windfield/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	LogFile          string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration
	BuildWorkers       int

	// Field output and caching.
	FieldEncoding  codec.Encoding
	FieldCacheSize int
	FieldCacheTTL  time.Duration

	// Generator defaults applied to scenarios that leave them unset.
	TropopauseHPa   float64
	BiasStrength    float64
	BiasSeed        int64
	StdDevBase      float64
	StdDevIncrement float64
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

	encoding, err := codec.ParseEncoding(sharedcfg.EnvOrDefault("FIELD_ENCODING", string(codec.EncodingMsgpackZstd)))
	if err != nil {
		return nil, fmt.Errorf("invalid FIELD_ENCODING: %w", err)
	}

	cacheTTL, err := time.ParseDuration(sharedcfg.EnvOrDefault("FIELD_CACHE_TTL", "1h"))
	if err != nil || cacheTTL < 0 {
		return nil, errors.New("invalid FIELD_CACHE_TTL: must be a non-negative duration")
	}

	cacheSize, err := parseInt("FIELD_CACHE_SIZE", 256, 0)
	if err != nil {
		return nil, err
	}
	workers, err := parseInt("BUILD_WORKERS", 4, 1)
	if err != nil {
		return nil, err
	}

	tropopause, err := parseFloat("TROPOPAUSE_HPA", domain.DefaultTropopause)
	if err != nil {
		return nil, err
	}
	strength, err := parseFloat("BIAS_STRENGTH", 3.0)
	if err != nil {
		return nil, err
	}
	stdBase, err := parseFloat("STDEV_BASE", domain.DefaultStdDevBase)
	if err != nil {
		return nil, err
	}
	stdInc, err := parseFloat("STDEV_INCREMENT", domain.DefaultStdDevIncrement)
	if err != nil {
		return nil, err
	}
	biasSeed, err := strconv.ParseInt(sharedcfg.EnvOrDefault("BIAS_SEED", "1234"), 10, 64)
	if err != nil {
		return nil, errors.New("invalid BIAS_SEED: must be an integer")
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "wind-scenario-requests"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "synthetic-wind-fields"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "storm-data-windfield"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		LogFile:            os.Getenv("LOG_FILE"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
		BuildWorkers:       workers,

		FieldEncoding:  encoding,
		FieldCacheSize: cacheSize,
		FieldCacheTTL:  cacheTTL,

		TropopauseHPa:   tropopause,
		BiasStrength:    strength,
		BiasSeed:        biasSeed,
		StdDevBase:      stdBase,
		StdDevIncrement: stdInc,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.StdDevBase < 0 {
		return nil, errors.New("invalid STDEV_BASE: must not be negative")
	}

	return cfg, nil
}

// Defaults returns the generator defaults for this run. The bias direction
// is drawn once from BiasSeed, so every field built by the process shares it.
func (c *Config) Defaults() domain.Defaults {
	return domain.Defaults{
		Schedule:   domain.StdDevSchedule{Base: c.StdDevBase, Increment: c.StdDevIncrement},
		Tropopause: c.TropopauseHPa,
		Bias:       domain.NewRunBias(c.BiasSeed, c.BiasStrength),
	}
}

func parseInt(key string, fallback, minimum int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minimum {
		return 0, fmt.Errorf("invalid %s: must be an integer >= %d", key, minimum)
	}
	return n, nil
}

func parseFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid %s: must be a number", key)
	}
	return f, nil
}
