package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Cache backends for travel estimates.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	StationCatalogPath string
	DispatchDBPath     string
	MaxCandidates      int

	// Google Distance Matrix configuration.
	GoogleMapsAPIKey  string
	GoogleMapsEnabled bool
	GoogleMapsTimeout time.Duration
	TravelMode        string
	FallbackSpeedKmh  float64

	// Travel estimate cache.
	CacheBackend string
	CacheSize    int
	CacheTTL     time.Duration
	RedisAddr    string

	WebhookURL     string
	WebhookTimeout time.Duration

	// Kafka intake and decision topic.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaSourceTopic   string
	KafkaSinkTopic     string
	KafkaGroupID       string
	BatchSize          int
	BatchFlushInterval time.Duration
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

	googleTimeout, err := parsePositiveDuration("GOOGLE_MAPS_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	webhookTimeout, err := parsePositiveDuration("WEBHOOK_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parsePositiveDuration("CACHE_TTL", "2m")
	if err != nil {
		return nil, err
	}

	maxCandidates, err := parseNonNegativeInt("MAX_CANDIDATES", 0)
	if err != nil {
		return nil, err
	}

	speed, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("FALLBACK_SPEED_KMH", "40"), 64)
	if err != nil || speed <= 0 {
		return nil, errors.New("invalid FALLBACK_SPEED_KMH")
	}

	apiKey := os.Getenv("GOOGLE_MAPS_APIKEY")
	googleEnabled := apiKey != ""
	if v := os.Getenv("GOOGLE_MAPS_ENABLED"); v != "" {
		googleEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		StationCatalogPath: sharedcfg.EnvOrDefault("STATION_CATALOG_PATH", "data/stations.json"),
		DispatchDBPath:     envOrDefaultAllowEmpty("DISPATCH_DB_PATH", "dispatch.db"),
		MaxCandidates:      maxCandidates,

		GoogleMapsAPIKey:  apiKey,
		GoogleMapsEnabled: googleEnabled,
		GoogleMapsTimeout: googleTimeout,
		TravelMode:        sharedcfg.EnvOrDefault("TRAVEL_MODE", "driving"),
		FallbackSpeedKmh:  speed,

		CacheBackend: sharedcfg.EnvOrDefault("CACHE_BACKEND", CacheMemory),
		CacheSize:    parseCacheSize(),
		CacheTTL:     cacheTTL,
		RedisAddr:    sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"),

		WebhookURL:     os.Getenv("WEBHOOK_URL"),
		WebhookTimeout: webhookTimeout,

		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "incident-requests"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "dispatch-decisions"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "responder-dispatch"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
	}

	if cfg.GoogleMapsEnabled && cfg.GoogleMapsAPIKey == "" {
		return nil, errors.New("GOOGLE_MAPS_ENABLED is true but GOOGLE_MAPS_APIKEY is not set")
	}
	switch cfg.TravelMode {
	case "driving", "walking", "bicycling", "transit":
	default:
		return nil, fmt.Errorf("invalid TRAVEL_MODE %q", cfg.TravelMode)
	}
	switch cfg.CacheBackend {
	case CacheMemory, CacheRedis, CacheNone:
	default:
		return nil, fmt.Errorf("invalid CACHE_BACKEND %q", cfg.CacheBackend)
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseNonNegativeInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

// envOrDefaultAllowEmpty distinguishes an unset variable from one explicitly
// set to "", which disables the feature.
func envOrDefaultAllowEmpty(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func parseCacheSize() int {
	if s := os.Getenv("CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
