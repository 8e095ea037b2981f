package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)

	assert.Equal(t, "https://api.rainviewer.com/public/weather-maps.json", cfg.RadarManifestURL)
	assert.Equal(t, 7, cfg.ProviderMaxZoom)
	assert.Equal(t, 512, cfg.TileSize)
	assert.Equal(t, 4, cfg.ColorScheme)
	assert.True(t, cfg.Smooth)
	assert.False(t, cfg.Snow)
	assert.Equal(t, 8, cfg.FrameLimit)
	assert.Equal(t, 10*time.Second, cfg.TileFetchTimeout)

	assert.Equal(t, 256, cfg.TileCacheMaxEntries)
	assert.Equal(t, int64(64<<20), cfg.TileCacheMaxBytes)

	assert.Equal(t, 8, cfg.PrefetchMaxConcurrent)
	assert.Equal(t, 6*time.Second, cfg.PrefetchTimeout)
	assert.True(t, cfg.WarmEnabled)
	assert.Equal(t, 2, cfg.WarmZoom)

	assert.Equal(t, 5*time.Minute, cfg.ManifestPollInterval)
	assert.False(t, cfg.KafkaEnabled)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "radar-frame-events", cfg.KafkaFramesTopic)

	assert.Equal(t, "https://api.weather.gov", cfg.NWSBaseURL)
	assert.Equal(t, 10*time.Second, cfg.NWSTimeout)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("RADAR_PROVIDER_MAX_ZOOM", "9")
	t.Setenv("RADAR_TILE_SIZE", "256")
	t.Setenv("RADAR_SMOOTH", "false")
	t.Setenv("RADAR_SNOW", "true")
	t.Setenv("RADAR_FRAME_LIMIT", "12")
	t.Setenv("TILE_CACHE_MAX_ENTRIES", "64")
	t.Setenv("PREFETCH_MAX_CONCURRENT", "4")
	t.Setenv("PREFETCH_TIMEOUT", "3s")
	t.Setenv("PREFETCH_WARM_ENABLED", "false")
	t.Setenv("PREFETCH_WARM_ZOOM", "3")
	t.Setenv("MANIFEST_POLL_INTERVAL", "1m")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_FRAMES_TOPIC", "frames")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 9, cfg.ProviderMaxZoom)
	assert.Equal(t, 256, cfg.TileSize)
	assert.False(t, cfg.Smooth)
	assert.True(t, cfg.Snow)
	assert.Equal(t, 12, cfg.FrameLimit)
	assert.Equal(t, 64, cfg.TileCacheMaxEntries)
	assert.Equal(t, 4, cfg.PrefetchMaxConcurrent)
	assert.Equal(t, 3*time.Second, cfg.PrefetchTimeout)
	assert.False(t, cfg.WarmEnabled)
	assert.Equal(t, 3, cfg.WarmZoom)
	assert.Equal(t, time.Minute, cfg.ManifestPollInterval)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "frames", cfg.KafkaFramesTopic)
}

func TestLoad_KafkaOptInWithoutBrokers(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}

func TestLoad_KafkaDisabledDespiteBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092")
	t.Setenv("KAFKA_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.KafkaEnabled)
}

func TestLoad_InvalidTileSize(t *testing.T) {
	t.Setenv("RADAR_TILE_SIZE", "300")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RADAR_TILE_SIZE")
}

func TestLoad_ExplicitZeroZoomsAreKept(t *testing.T) {
	t.Setenv("RADAR_PROVIDER_MAX_ZOOM", "0")
	t.Setenv("PREFETCH_WARM_ZOOM", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.ProviderMaxZoom, "zoom 0 is a legal native max, not unset")
	assert.Equal(t, 0, cfg.WarmZoom, "warm zoom 0 means warm only the world tile")
}

func TestLoad_WarmZoomTooDeep(t *testing.T) {
	t.Setenv("PREFETCH_WARM_ZOOM", "5")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PREFETCH_WARM_ZOOM")
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}
