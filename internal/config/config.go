package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Radar provider configuration.
	RadarManifestURL string
	ProviderMaxZoom  int
	TileSize         int
	ColorScheme      int
	Smooth           bool
	Snow             bool
	FrameLimit       int
	TileFetchTimeout time.Duration

	// Tile cache budgets.
	TileCacheMaxEntries int
	TileCacheMaxBytes   int64

	// Prefetch configuration.
	PrefetchMaxConcurrent int
	PrefetchTimeout       time.Duration
	WarmEnabled           bool
	WarmZoom              int

	// Frame watcher / Kafka configuration.
	ManifestPollInterval time.Duration
	KafkaEnabled         bool
	KafkaBrokers         []string
	KafkaFramesTopic     string

	// NWS hourly forecast configuration.
	NWSBaseURL   string
	NWSUserAgent string
	NWSTimeout   time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	tileFetchTimeout, err := parseDurationEnv("TILE_FETCH_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	prefetchTimeout, err := parseDurationEnv("PREFETCH_TIMEOUT", 6*time.Second)
	if err != nil {
		return nil, err
	}
	pollInterval, err := parseDurationEnv("MANIFEST_POLL_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	nwsTimeout, err := parseDurationEnv("NWS_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	kafkaBrokers := parseBrokers(envOrDefault("KAFKA_BROKERS", ""))
	kafkaEnabled := len(kafkaBrokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		RadarManifestURL: envOrDefault("RADAR_MANIFEST_URL", "https://api.rainviewer.com/public/weather-maps.json"),
		ProviderMaxZoom:  parseNonNegIntEnv("RADAR_PROVIDER_MAX_ZOOM", 7),
		TileSize:         parseIntEnv("RADAR_TILE_SIZE", 512),
		ColorScheme:      parseIntEnv("RADAR_COLOR_SCHEME", 4),
		Smooth:           envOrDefault("RADAR_SMOOTH", "true") == "true",
		Snow:             envOrDefault("RADAR_SNOW", "false") == "true",
		FrameLimit:       parseIntEnv("RADAR_FRAME_LIMIT", 8),
		TileFetchTimeout: tileFetchTimeout,

		TileCacheMaxEntries: parseIntEnv("TILE_CACHE_MAX_ENTRIES", 256),
		TileCacheMaxBytes:   int64(parseIntEnv("TILE_CACHE_MAX_BYTES", 64<<20)),

		PrefetchMaxConcurrent: parseIntEnv("PREFETCH_MAX_CONCURRENT", 8),
		PrefetchTimeout:       prefetchTimeout,
		WarmEnabled:           envOrDefault("PREFETCH_WARM_ENABLED", "true") == "true",
		WarmZoom:              parseNonNegIntEnv("PREFETCH_WARM_ZOOM", 2),

		ManifestPollInterval: pollInterval,
		KafkaEnabled:         kafkaEnabled,
		KafkaBrokers:         kafkaBrokers,
		KafkaFramesTopic:     envOrDefault("KAFKA_FRAMES_TOPIC", "radar-frame-events"),

		NWSBaseURL:   envOrDefault("NWS_BASE_URL", "https://api.weather.gov"),
		NWSUserAgent: envOrDefault("NWS_USER_AGENT", "radarcache (ops@skycast-labs.dev)"),
		NWSTimeout:   nwsTimeout,
	}

	if cfg.RadarManifestURL == "" {
		return nil, errors.New("RADAR_MANIFEST_URL is required")
	}
	if cfg.ProviderMaxZoom < 0 || cfg.ProviderMaxZoom > 20 {
		return nil, errors.New("RADAR_PROVIDER_MAX_ZOOM must be between 0 and 20")
	}
	if cfg.TileSize != 256 && cfg.TileSize != 512 {
		return nil, errors.New("RADAR_TILE_SIZE must be 256 or 512")
	}
	if cfg.FrameLimit < 1 {
		return nil, errors.New("RADAR_FRAME_LIMIT must be at least 1")
	}
	if cfg.TileCacheMaxEntries < 1 || cfg.TileCacheMaxBytes < 1 {
		return nil, errors.New("tile cache budgets must be positive")
	}
	if cfg.PrefetchMaxConcurrent < 1 {
		return nil, errors.New("PREFETCH_MAX_CONCURRENT must be at least 1")
	}
	// Each zoom level quadruples the warmed tile count; 4 is already 341
	// tiles per frame.
	if cfg.WarmZoom > 4 {
		return nil, errors.New("PREFETCH_WARM_ZOOM must be at most 4")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaFramesTopic == "" {
		return nil, errors.New("KAFKA_FRAMES_TOPIC is required when Kafka is enabled")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseIntEnv(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

// parseNonNegIntEnv keeps an explicit zero, for keys where 0 is a valid
// setting (native zoom 0, warm only the world tile).
func parseNonNegIntEnv(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}

func parseDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
