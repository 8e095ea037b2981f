// Package prefetch warms the HTTP cache for batches of tile URLs ahead of
// expected display. Warming is opportunistic: individual failures are
// swallowed, and the only guarantee is that the pass has finished when
// Warm returns.
package prefetch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skycast-labs/radarcache/internal/observability"
	"github.com/skycast-labs/radarcache/internal/syncutil"
)

// Result summarizes one warming pass. It exists for observability only;
// callers must not branch on per-URL outcomes.
type Result struct {
	Succeeded int
	Failed    int
	Total     int
}

// Prefetcher issues bounded-concurrency best-effort GETs.
type Prefetcher struct {
	httpClient    *http.Client
	maxConcurrent int
	logger        *slog.Logger
	metrics       *observability.Metrics
}

// New creates a Prefetcher. maxConcurrent bounds simultaneous requests;
// timeout applies per request (short, since warming a slow tile is not
// worth holding a permit for).
func New(maxConcurrent int, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Prefetcher {
	if maxConcurrent < 1 {
		maxConcurrent = 8
	}
	if timeout <= 0 {
		timeout = 6 * time.Second
	}
	return &Prefetcher{
		httpClient:    &http.Client{Timeout: timeout},
		maxConcurrent: maxConcurrent,
		logger:        logger,
		metrics:       metrics,
	}
}

// Warm fetches every URL with at most maxConcurrent requests in flight,
// discarding response bodies. It returns after all URLs have completed.
// An empty slice is a no-op.
func (p *Prefetcher) Warm(ctx context.Context, urls []string) Result {
	if len(urls) == 0 {
		return Result{}
	}

	p.metrics.PrefetchBatches.Observe(float64(len(urls)))

	sem := syncutil.NewSemaphore(p.maxConcurrent)
	results := make(chan bool, len(urls))

	var g errgroup.Group
	for _, u := range urls {
		u := u
		g.Go(func() error {
			sem.Acquire()
			defer sem.Release()
			results <- p.fetchOne(ctx, u)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors
	close(results)

	res := Result{Total: len(urls)}
	for ok := range results {
		if ok {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}

	p.logger.Debug("prefetch pass complete",
		"total", res.Total, "succeeded", res.Succeeded, "failed", res.Failed)
	return res
}

// fetchOne issues one best-effort GET and reports success. All failure
// modes are logged at debug and otherwise ignored.
func (p *Prefetcher) fetchOne(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		p.metrics.PrefetchRequests.WithLabelValues("error").Inc()
		return false
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.metrics.PrefetchRequests.WithLabelValues("error").Inc()
		p.logger.Debug("prefetch request failed", "url", url, "error", err)
		return false
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused; the bytes themselves are
	// only wanted in the HTTP cache.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		p.metrics.PrefetchRequests.WithLabelValues("error").Inc()
		return false
	}
	p.metrics.PrefetchRequests.WithLabelValues("success").Inc()
	return true
}
