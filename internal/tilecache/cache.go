// Package tilecache resolves radar tile requests against a two-namespace
// in-memory cache with in-flight request deduplication and an overzoom
// fallback for zoom levels the provider does not serve.
//
// The output namespace holds the bytes handed to callers; the provider
// namespace holds tiles as fetched upstream. They are separate so that
// several overzoomed children derived from one parent share a single
// network fetch.
package tilecache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/skycast-labs/radarcache/internal/observability"
	"github.com/skycast-labs/radarcache/internal/tile"
)

// Provider fetches one tile from the upstream radar provider.
type Provider interface {
	FetchTile(ctx context.Context, r tile.Request) ([]byte, error)
}

// Callback receives the resolved tile bytes or the fetch error.
type Callback func(data []byte, err error)

// Options configures a Cache instance.
type Options struct {
	// ProviderMaxZoom is the highest zoom level the provider serves
	// natively. Requests beyond it are derived by overzoom.
	ProviderMaxZoom int

	// MaxEntries and MaxBytes bound each cache namespace independently.
	MaxEntries int
	MaxBytes   int64

	// OnFirstTile, if set, runs exactly once per cache lifetime after the
	// first successful tile delivery. The radar view uses it to fade in.
	OnFirstTile func()
}

// Cache is the radar tile cache. One instance serves all concurrent tile
// requests for a radar session; all mutation goes through Load's miss path
// and the drain routine.
type Cache struct {
	provider Provider
	opts     Options
	logger   *slog.Logger
	metrics  *observability.Metrics

	out  *lruCache // bytes delivered to callers
	prov *lruCache // bytes as fetched upstream

	mu       sync.Mutex
	inflight map[string][]Callback // output key -> waiters, registration order

	flight singleflight.Group // provider-namespace fetch dedupe

	firstTile sync.Once
}

// New creates a Cache backed by the given provider.
func New(provider Provider, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Cache {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 256
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 64 << 20
	}
	c := &Cache{
		provider: provider,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
		inflight: make(map[string][]Callback),
	}
	c.out = newLRUCache(opts.MaxEntries, opts.MaxBytes, func() {
		metrics.TileEvictions.WithLabelValues("output").Inc()
	})
	c.prov = newLRUCache(opts.MaxEntries, opts.MaxBytes, func() {
		metrics.TileEvictions.WithLabelValues("provider").Inc()
	})
	return c
}

// Load resolves a tile request, invoking fn exactly once with the result.
// Concurrent requests for the same key share one fetch; their callbacks run
// in registration order. Failed fetches are reported but never cached, so a
// later request at the same key retries the network.
func (c *Cache) Load(ctx context.Context, r tile.Request, fn Callback) {
	if !r.Coord.Valid() {
		fn(nil, fmt.Errorf("invalid tile coordinate %s", r.Coord))
		return
	}

	key := r.Key()

	if data, ok := c.out.get(key); ok {
		c.metrics.TileCacheLookups.WithLabelValues("output", "hit").Inc()
		c.signalFirstTile()
		fn(data, nil)
		return
	}
	c.metrics.TileCacheLookups.WithLabelValues("output", "miss").Inc()

	c.mu.Lock()
	if waiters, ok := c.inflight[key]; ok {
		c.inflight[key] = append(waiters, fn)
		c.mu.Unlock()
		c.metrics.TileInflightJoins.Inc()
		return
	}
	c.inflight[key] = []Callback{fn}
	c.mu.Unlock()

	// Detach from the caller's cancellation: a superseded request is
	// allowed to complete and warm the cache.
	go c.resolve(context.WithoutCancel(ctx), r, key)
}

// LoadTile is a blocking convenience wrapper around Load.
func (c *Cache) LoadTile(ctx context.Context, r tile.Request) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	c.Load(ctx, r, func(data []byte, err error) {
		ch <- result{data, err}
	})
	res := <-ch
	return res.data, res.err
}

// resolve fetches or derives the tile for key and drains its waiters.
func (c *Cache) resolve(ctx context.Context, r tile.Request, key string) {
	var (
		data []byte
		err  error
	)

	oz, overzoomed := tile.OverzoomFor(r.Coord, c.opts.ProviderMaxZoom)
	if !overzoomed {
		data, err = c.providerTile(ctx, r)
	} else {
		parent := r
		parent.Coord = oz.Parent
		var parentBytes []byte
		parentBytes, err = c.providerTile(ctx, parent)
		if err == nil {
			data, err = tile.CropScale(parentBytes, oz, r.Size)
			if err == nil {
				c.metrics.TileOverzoomDerived.Inc()
			}
		}
	}

	if err != nil {
		c.logger.Warn("tile resolve failed", "key", key, "error", err)
	}

	c.drain(key, data, err)
}

// providerTile returns the bytes of a tile the provider serves natively,
// consulting the provider-namespace cache and deduplicating concurrent
// fetches for the same coordinate.
func (c *Cache) providerTile(ctx context.Context, r tile.Request) ([]byte, error) {
	pkey := r.Key()

	if data, ok := c.prov.get(pkey); ok {
		c.metrics.TileCacheLookups.WithLabelValues("provider", "hit").Inc()
		return data, nil
	}
	c.metrics.TileCacheLookups.WithLabelValues("provider", "miss").Inc()

	v, err, _ := c.flight.Do(pkey, func() (any, error) {
		// Re-check: a concurrent flight may have populated the cache
		// between the miss and entering the group.
		if data, ok := c.prov.get(pkey); ok {
			return data, nil
		}

		start := time.Now()
		data, err := c.provider.FetchTile(ctx, r)
		c.metrics.TileFetchDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			c.metrics.TileFetches.WithLabelValues("error").Inc()
			return nil, err
		}
		c.metrics.TileFetches.WithLabelValues("success").Inc()

		c.prov.put(pkey, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// drain stores a successful result, then invokes every waiter registered
// under key in order, exactly once. Callbacks run outside the table lock so
// a callback that re-enters the cache cannot deadlock.
func (c *Cache) drain(key string, data []byte, err error) {
	if err == nil {
		c.out.put(key, data)
	}

	c.mu.Lock()
	waiters := c.inflight[key]
	delete(c.inflight, key)
	c.mu.Unlock()

	if err == nil {
		c.signalFirstTile()
	}
	for _, fn := range waiters {
		fn(data, err)
	}
}

func (c *Cache) signalFirstTile() {
	if c.opts.OnFirstTile == nil {
		return
	}
	c.firstTile.Do(c.opts.OnFirstTile)
}
