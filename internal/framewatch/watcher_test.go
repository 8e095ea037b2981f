package framewatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skycast-labs/radarcache/internal/adapter/rainviewer"
	"github.com/skycast-labs/radarcache/internal/observability"
	"github.com/skycast-labs/radarcache/internal/prefetch"
)

type fakeFetcher struct {
	mu        sync.Mutex
	manifests []rainviewer.Manifest
	errs      []error
	calls     int
}

func (f *fakeFetcher) Manifest(_ context.Context) (rainviewer.Manifest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return rainviewer.Manifest{}, f.errs[i]
	}
	if i >= len(f.manifests) {
		i = len(f.manifests) - 1
	}
	return f.manifests[i], nil
}

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]rainviewer.Frame
	hosts   []string
	err     error
}

func (p *fakePublisher) PublishFrames(_ context.Context, host string, frames []rainviewer.Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, frames)
	p.hosts = append(p.hosts, host)
	return nil
}

type fakeWarmer struct {
	mu      sync.Mutex
	batches [][]string
}

func (w *fakeWarmer) Warm(_ context.Context, urls []string) prefetch.Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.batches = append(w.batches, urls)
	return prefetch.Result{Succeeded: len(urls), Total: len(urls)}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func frames(times ...int64) []rainviewer.Frame {
	out := make([]rainviewer.Frame, 0, len(times))
	for _, t := range times {
		out = append(out, rainviewer.Frame{Time: t, Path: "/v2/radar/" + time.Unix(t, 0).UTC().Format("1504")})
	}
	return out
}

func newTestWatcher(t *testing.T, fetcher ManifestFetcher, pub Publisher, warm Warmer, opts Options) *Watcher {
	t.Helper()
	if opts.FrameLimit == 0 {
		opts.FrameLimit = 8
	}
	return New(fetcher, pub, warm, opts,
		clockwork.NewFakeClock(), testLogger(), observability.NewMetricsForTesting())
}

func TestPoll_TrimsPastFramesToLimit(t *testing.T) {
	fetcher := &fakeFetcher{manifests: []rainviewer.Manifest{{
		Host: "https://tilecache.rainviewer.com",
		Past: frames(100, 200, 300, 400, 500),
	}}}
	w := newTestWatcher(t, fetcher, nil, nil, Options{FrameLimit: 3, WarmZoom: -1})

	w.Poll(context.Background())

	m, ok := w.Current()
	require.True(t, ok)
	require.Len(t, m.Past, 3)
	assert.Equal(t, int64(300), m.Past[0].Time)
	assert.Equal(t, int64(500), m.Past[2].Time)
}

func TestPoll_EmptyManifestFallsBackToDefaultFrame(t *testing.T) {
	fetcher := &fakeFetcher{manifests: []rainviewer.Manifest{{
		Host: "https://tilecache.rainviewer.com",
	}}}
	w := newTestWatcher(t, fetcher, nil, nil, Options{WarmZoom: -1})

	w.Poll(context.Background())

	m, ok := w.Current()
	require.True(t, ok)
	require.Len(t, m.Past, 1)
	assert.Equal(t, "/v2/radar/nowcast_0", m.Past[0].Path)
	assert.NotZero(t, m.Past[0].Time)
}

func TestPoll_PublishesOnlyFramesNewerThanSeen(t *testing.T) {
	fetcher := &fakeFetcher{manifests: []rainviewer.Manifest{
		{Host: "https://h1", Past: frames(100, 200)},
		{Host: "https://h1", Past: frames(200, 300, 400)},
	}}
	pub := &fakePublisher{}
	w := newTestWatcher(t, fetcher, pub, nil, Options{WarmZoom: -1})

	w.Poll(context.Background())
	w.Poll(context.Background())

	require.Len(t, pub.batches, 2)
	assert.Equal(t, frames(100, 200), pub.batches[0])
	assert.Equal(t, frames(300, 400), pub.batches[1])
	assert.Equal(t, "https://h1", pub.hosts[1])
}

func TestPoll_RepeatManifestPublishesNothing(t *testing.T) {
	fetcher := &fakeFetcher{manifests: []rainviewer.Manifest{
		{Host: "https://h1", Past: frames(100, 200)},
	}}
	pub := &fakePublisher{}
	w := newTestWatcher(t, fetcher, pub, nil, Options{WarmZoom: -1})

	w.Poll(context.Background())
	w.Poll(context.Background())

	assert.Len(t, pub.batches, 1)
}

func TestPoll_FailureKeepsPreviousReel(t *testing.T) {
	fetcher := &fakeFetcher{
		manifests: []rainviewer.Manifest{{Host: "https://h1", Past: frames(100)}},
		errs:      []error{nil, errors.New("upstream 503")},
	}
	w := newTestWatcher(t, fetcher, nil, nil, Options{WarmZoom: -1})

	w.Poll(context.Background())
	w.Poll(context.Background())

	m, ok := w.Current()
	require.True(t, ok)
	assert.Equal(t, frames(100), m.Past)
}

func TestPoll_WarmsZoomPyramidForNewFrames(t *testing.T) {
	fetcher := &fakeFetcher{manifests: []rainviewer.Manifest{
		{Host: "https://h1", Past: frames(100)},
	}}
	warm := &fakeWarmer{}
	w := newTestWatcher(t, fetcher, nil, warm, Options{
		WarmZoom: 1, TileSize: 512, ColorScheme: 4, Smooth: true,
	})

	w.Poll(context.Background())

	require.Len(t, warm.batches, 1)
	// one frame, zooms 0 and 1: 1 + 4 tiles
	require.Len(t, warm.batches[0], 5)
	assert.Contains(t, warm.batches[0][0], "https://h1/v2/radar/")
	assert.Contains(t, warm.batches[0][0], "/512/0/0/0/4/1_0.png")
}

func TestCheckReadiness(t *testing.T) {
	fetcher := &fakeFetcher{manifests: []rainviewer.Manifest{
		{Host: "https://h1", Past: frames(100)},
	}}
	w := newTestWatcher(t, fetcher, nil, nil, Options{WarmZoom: -1})

	require.Error(t, w.CheckReadiness(context.Background()))

	w.Poll(context.Background())
	assert.NoError(t, w.CheckReadiness(context.Background()))

	host, ok := w.CurrentHost()
	require.True(t, ok)
	assert.Equal(t, "https://h1", host)
}
