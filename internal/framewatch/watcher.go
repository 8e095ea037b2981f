// Package framewatch keeps the radar frame reel current. It polls the
// provider manifest on a schedule, trims the reel to a bounded number of
// recent frames, and announces newly published frames to optional
// downstream hooks (Kafka, cache warming).
package framewatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/jonboulle/clockwork"

	"github.com/skycast-labs/radarcache/internal/adapter/rainviewer"
	"github.com/skycast-labs/radarcache/internal/observability"
	"github.com/skycast-labs/radarcache/internal/prefetch"
	"github.com/skycast-labs/radarcache/internal/tile"
)

// defaultFramePath is served when the manifest carries no frames at all,
// so tile URLs remain constructible.
const defaultFramePath = "/v2/radar/nowcast_0"

// ManifestFetcher fetches the provider's frame manifest.
type ManifestFetcher interface {
	Manifest(ctx context.Context) (rainviewer.Manifest, error)
}

// Publisher announces newly published frames. Nil disables publishing.
type Publisher interface {
	PublishFrames(ctx context.Context, host string, frames []rainviewer.Frame) error
}

// Warmer prefetches a batch of tile URLs. Nil disables warming.
type Warmer interface {
	Warm(ctx context.Context, urls []string) prefetch.Result
}

// Options configures a Watcher.
type Options struct {
	PollInterval time.Duration
	FrameLimit   int // keep this many most-recent past frames

	// WarmZoom caps the zoom pyramid warmed for each new frame
	// (levels 0..WarmZoom). Negative disables warming.
	WarmZoom int

	// Render parameters used to build warming URLs; they must match what
	// the tile endpoints will be asked for, or the warming is wasted.
	TileSize    int
	ColorScheme int
	Smooth      bool
	Snow        bool
}

// Watcher polls the frame manifest and holds the current trimmed reel.
type Watcher struct {
	fetcher   ManifestFetcher
	publisher Publisher
	warmer    Warmer
	opts      Options
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics

	scheduler *gocron.Scheduler

	mu          sync.Mutex
	manifest    rainviewer.Manifest
	loaded      bool
	newestFrame int64
}

// New creates a Watcher. publisher and warmer may be nil.
func New(fetcher ManifestFetcher, publisher Publisher, warmer Warmer, opts Options,
	clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Watcher {
	if opts.FrameLimit < 1 {
		opts.FrameLimit = 8
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Minute
	}
	return &Watcher{
		fetcher:   fetcher,
		publisher: publisher,
		warmer:    warmer,
		opts:      opts,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
		scheduler: gocron.NewScheduler(time.UTC),
	}
}

// Start performs an initial poll and schedules periodic refreshes until the
// context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	w.Poll(ctx)

	_, err := w.scheduler.Every(w.opts.PollInterval).Do(func() {
		w.Poll(ctx)
	})
	if err != nil {
		return err
	}
	w.scheduler.StartAsync()
	w.metrics.WatcherRunning.Set(1)
	w.logger.Info("frame watcher started",
		"poll_interval", w.opts.PollInterval, "frame_limit", w.opts.FrameLimit)
	return nil
}

// Stop cancels future polls.
func (w *Watcher) Stop() {
	w.scheduler.Stop()
	w.metrics.WatcherRunning.Set(0)
}

// Poll refreshes the manifest once. A failed poll keeps the previous reel;
// there is no retry before the next scheduled poll.
func (w *Watcher) Poll(ctx context.Context) {
	m, err := w.fetcher.Manifest(ctx)
	if err != nil {
		w.metrics.ManifestPolls.WithLabelValues("error").Inc()
		w.logger.Warn("manifest poll failed", "error", err)
		return
	}
	w.metrics.ManifestPolls.WithLabelValues("success").Inc()

	m.Past = trimFrames(m.Past, w.opts.FrameLimit)
	if len(m.Past) == 0 && len(m.Nowcast) == 0 {
		m.Past = []rainviewer.Frame{{
			Path: defaultFramePath,
			Time: w.clock.Now().Unix(),
		}}
	}

	fresh := w.swap(m)
	if len(fresh) == 0 {
		return
	}

	w.logger.Info("new radar frames", "count", len(fresh))
	w.announce(ctx, m.Host, fresh)
}

// Current returns the latest trimmed manifest. ok is false until the first
// successful poll; callers surface that as "radar unavailable".
func (w *Watcher) Current() (rainviewer.Manifest, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.manifest, w.loaded
}

// CurrentHost returns the tile host of the latest manifest.
func (w *Watcher) CurrentHost() (string, bool) {
	m, ok := w.Current()
	return m.Host, ok
}

// CheckReadiness reports whether a frame manifest has been loaded.
func (w *Watcher) CheckReadiness(_ context.Context) error {
	if _, ok := w.Current(); !ok {
		return errors.New("no frame manifest loaded yet")
	}
	return nil
}

// swap installs the new manifest and returns the frames newer than any seen
// before, oldest first.
func (w *Watcher) swap(m rainviewer.Manifest) []rainviewer.Frame {
	w.mu.Lock()
	defer w.mu.Unlock()

	var fresh []rainviewer.Frame
	for _, f := range m.Past {
		if f.Time > w.newestFrame {
			fresh = append(fresh, f)
		}
	}
	if len(fresh) > 0 {
		w.newestFrame = fresh[len(fresh)-1].Time
	}

	w.manifest = m
	w.loaded = true
	return fresh
}

// announce publishes fresh frames and warms their low-zoom tiles.
func (w *Watcher) announce(ctx context.Context, host string, fresh []rainviewer.Frame) {
	if w.publisher != nil {
		if err := w.publisher.PublishFrames(ctx, host, fresh); err != nil {
			w.logger.Warn("frame publish failed", "error", err, "count", len(fresh))
		} else {
			w.metrics.FramesPublished.Add(float64(len(fresh)))
		}
	}

	if w.warmer != nil && w.opts.WarmZoom >= 0 {
		res := w.warmer.Warm(ctx, w.warmURLs(host, fresh))
		w.logger.Info("warmed tiles for new frames",
			"frames", len(fresh), "succeeded", res.Succeeded, "failed", res.Failed)
	}
}

// warmURLs builds tile URLs for zoom levels 0..WarmZoom of each frame.
func (w *Watcher) warmURLs(host string, frames []rainviewer.Frame) []string {
	var urls []string
	for _, f := range frames {
		for z := 0; z <= w.opts.WarmZoom; z++ {
			n := 1 << z
			for x := 0; x < n; x++ {
				for y := 0; y < n; y++ {
					urls = append(urls, rainviewer.TileURL(host, tile.Request{
						Frame:       f.Path,
						Size:        w.opts.TileSize,
						Coord:       tile.Coord{Z: z, X: x, Y: y},
						ColorScheme: w.opts.ColorScheme,
						Smooth:      w.opts.Smooth,
						Snow:        w.opts.Snow,
					}))
				}
			}
		}
	}
	return urls
}

// trimFrames keeps the last n frames of a chronological list.
func trimFrames(frames []rainviewer.Frame, n int) []rainviewer.Frame {
	if len(frames) <= n {
		return frames
	}
	return frames[len(frames)-n:]
}
