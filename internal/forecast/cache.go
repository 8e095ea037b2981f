package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/skycast-labs/radarcache/internal/observability"
)

// TimezoneResolver maps a coordinate to its IANA zone name.
type TimezoneResolver interface {
	Lookup(lat, lon float64) (string, error)
}

// Cache is a fetch-if-absent store of per-day hourly temperature buckets.
//
// A bucket, once populated, is never silently re-fetched for the same key
// within the cache's lifetime — including buckets populated empty after a
// failed fetch, so a known-bad day does not cause retry storms. This is the
// opposite of the tile cache's policy, where failures are worth retrying.
type Cache struct {
	provider Provider
	tz       TimezoneResolver
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu       sync.Mutex
	buckets  map[string][]Point
	inflight map[string]struct{}
}

// NewCache creates a Cache.
func NewCache(provider Provider, tz TimezoneResolver, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Cache {
	return &Cache{
		provider: provider,
		tz:       tz,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
		buckets:  make(map[string][]Point),
		inflight: make(map[string]struct{}),
	}
}

func bucketKey(coord Coordinate, day Day) string {
	return fmt.Sprintf("%.4f,%.4f|%s", coord.Lat, coord.Lon, day)
}

// LoadIfNeeded populates the bucket for (coord, day) unless it is already
// populated or a fetch for the same key is in flight, in which case it is a
// no-op. On fetch failure the bucket is stored empty.
func (c *Cache) LoadIfNeeded(ctx context.Context, coord Coordinate, day Day) {
	key := bucketKey(coord, day)

	c.mu.Lock()
	if _, ok := c.buckets[key]; ok {
		c.mu.Unlock()
		c.metrics.ForecastLookups.WithLabelValues("hit").Inc()
		return
	}
	if _, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		c.metrics.ForecastLookups.WithLabelValues("inflight").Inc()
		return
	}
	c.inflight[key] = struct{}{}
	c.mu.Unlock()
	c.metrics.ForecastLookups.WithLabelValues("miss").Inc()

	points := c.fetchDay(ctx, coord, day)

	c.mu.Lock()
	delete(c.inflight, key)
	c.buckets[key] = points
	c.mu.Unlock()
}

// HourlyTuples returns the cached bucket for (coord, day), possibly empty.
// It never triggers a fetch; call LoadIfNeeded first.
func (c *Cache) HourlyTuples(coord Coordinate, day Day) []Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buckets[bucketKey(coord, day)]
}

// Today returns the current calendar date in the coordinate's local zone.
func (c *Cache) Today(coord Coordinate) Day {
	return DayOf(c.clock.Now().In(c.location(coord)))
}

// fetchDay performs the forecast fetch and filters the series to the
// requested day's local window, sorted ascending. Any failure yields an
// empty (but present) result.
func (c *Cache) fetchDay(ctx context.Context, coord Coordinate, day Day) []Point {
	loc := c.location(coord)

	samples, err := c.provider.HourlyForecast(ctx, coord.Lat, coord.Lon)
	if err != nil {
		c.metrics.ForecastFetches.WithLabelValues("error").Inc()
		c.logger.Warn("hourly forecast fetch failed",
			"lat", coord.Lat, "lon", coord.Lon, "day", day.String(), "error", err)
		return []Point{}
	}

	start := day.start(loc)
	end := day.next(loc)

	points := make([]Point, 0, 24)
	for _, s := range samples {
		local := s.Time.In(loc)
		if local.Before(start) || !local.Before(end) {
			continue
		}
		points = append(points, Point{
			Time:         local,
			TemperatureF: toFahrenheit(s.Temperature, s.Unit),
		})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Time.Before(points[j].Time)
	})

	if len(points) == 0 {
		c.metrics.ForecastFetches.WithLabelValues("empty").Inc()
	} else {
		c.metrics.ForecastFetches.WithLabelValues("success").Inc()
	}
	return points
}

// location resolves the coordinate's zone, falling back to UTC when the
// resolver or the zone database cannot place it.
func (c *Cache) location(coord Coordinate) *time.Location {
	name, err := c.tz.Lookup(coord.Lat, coord.Lon)
	if err != nil {
		c.logger.Warn("timezone lookup failed, using UTC",
			"lat", coord.Lat, "lon", coord.Lon, "error", err)
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		c.logger.Warn("unknown timezone, using UTC", "zone", name, "error", err)
		return time.UTC
	}
	return loc
}

func toFahrenheit(value float64, unit string) float64 {
	if unit == "C" {
		return value*9/5 + 32
	}
	return value
}
