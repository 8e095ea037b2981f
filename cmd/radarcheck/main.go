// Command radarcheck performs end-to-end integrity checks against a live
// radar tile provider: manifest shape, frame ordering, tile availability,
// and overzoom derivation. It exercises the same client and tile math the
// service uses, so a passing run means the service can go live against that
// provider.
//
// Usage:
//
//	go run ./cmd/radarcheck \
//	  -manifest-url https://api.rainviewer.com/public/weather-maps.json \
//	  -tile-size 512 -sample-zoom 3
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/skycast-labs/radarcache/internal/adapter/rainviewer"
	"github.com/skycast-labs/radarcache/internal/tile"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	manifestURL := flag.String("manifest-url", "https://api.rainviewer.com/public/weather-maps.json", "frame manifest URL")
	tileSize := flag.Int("tile-size", 512, "tile size to request (256 or 512)")
	sampleZoom := flag.Int("sample-zoom", 3, "zoom level for the sample tile fetch")
	maxZoom := flag.Int("max-zoom", 7, "provider's native maximum zoom")
	timeout := flag.Duration("timeout", 15*time.Second, "per-request timeout")
	flag.Parse()

	if *tileSize != 256 && *tileSize != 512 {
		fmt.Fprintln(os.Stderr, "FATAL: -tile-size must be 256 or 512")
		os.Exit(1)
	}
	if *sampleZoom < 1 || *sampleZoom > *maxZoom {
		fmt.Fprintf(os.Stderr, "FATAL: -sample-zoom must be between 1 and %d\n", *maxZoom)
		os.Exit(1)
	}

	if code := run(*manifestURL, *tileSize, *sampleZoom, *maxZoom, *timeout); code != 0 {
		os.Exit(code)
	}
}

func run(manifestURL string, tileSize, sampleZoom, maxZoom int, timeout time.Duration) int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := rainviewer.NewClient(manifestURL, timeout, logger)

	fmt.Println("=== Radar Provider Integrity Check ===")
	fmt.Println()

	manifest, err := client.Manifest(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: fetch manifest: %v\n", err)
		return 1
	}
	fmt.Printf("manifest: host=%s past=%d nowcast=%d\n",
		manifest.Host, len(manifest.Past), len(manifest.Nowcast))

	phases := []*phase{
		validateManifest(manifest),
		validateSampleTile(ctx, client, manifest, tileSize, sampleZoom),
		validateOverzoom(ctx, client, manifest, tileSize, maxZoom),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	if !allPassed {
		for _, p := range phases {
			for _, e := range p.errors {
				fmt.Printf("  [%s] %s\n", p.name, e)
			}
		}
		return 1
	}
	fmt.Println("all checks passed")
	return 0
}

// validateManifest checks frame list shape: non-empty paths, ascending
// times, and past frames not in the future.
func validateManifest(m rainviewer.Manifest) *phase {
	p := &phase{name: "manifest shape"}

	if m.Host == "" {
		p.errorf("manifest host is empty")
	}
	if len(m.Past) == 0 {
		p.errorf("manifest has no past frames")
	}

	now := time.Now().Unix()
	var prev int64
	for i, f := range m.Past {
		if f.Path == "" {
			p.errorf("past frame %d has empty path", i)
		}
		if f.Time <= prev {
			p.errorf("past frame %d time %d not after previous %d", i, f.Time, prev)
		}
		// Allow a little clock skew.
		if f.Time > now+120 {
			p.errorf("past frame %d time %d is in the future", i, f.Time)
		}
		prev = f.Time
	}
	for i, f := range m.Nowcast {
		if f.Path == "" {
			p.errorf("nowcast frame %d has empty path", i)
		}
	}
	return p
}

// validateSampleTile fetches a center tile of the latest frame and verifies
// it decodes as a PNG of the requested size.
func validateSampleTile(ctx context.Context, client *rainviewer.Client, m rainviewer.Manifest, tileSize, zoom int) *phase {
	p := &phase{name: "sample tile fetch"}
	if len(m.Past) == 0 {
		p.errorf("no frame to sample")
		return p
	}

	latest := m.Past[len(m.Past)-1]
	center := 1 << (zoom - 1)
	req := tile.Request{
		Frame:       latest.Path,
		Size:        tileSize,
		Coord:       tile.Coord{Z: zoom, X: center, Y: center},
		ColorScheme: 4,
		Smooth:      true,
	}

	data, err := client.FetchTile(ctx, rainviewer.TileURL(m.Host, req))
	if err != nil {
		p.errorf("fetch %s: %v", req.Key(), err)
		return p
	}

	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		p.errorf("decode tile: %v", err)
		return p
	}
	if cfg.Width != tileSize || cfg.Height != tileSize {
		p.errorf("tile is %dx%d, want %dx%d", cfg.Width, cfg.Height, tileSize, tileSize)
	}
	return p
}

// validateOverzoom fetches a parent tile beyond the provider's native zoom
// range and derives a child from it, verifying the crop-and-rescale path.
func validateOverzoom(ctx context.Context, client *rainviewer.Client, m rainviewer.Manifest, tileSize, maxZoom int) *phase {
	p := &phase{name: "overzoom derivation"}
	if len(m.Past) == 0 {
		p.errorf("no frame to sample")
		return p
	}

	latest := m.Past[len(m.Past)-1]
	childZoom := maxZoom + 2
	center := 1 << (childZoom - 1)
	child := tile.Coord{Z: childZoom, X: center, Y: center}
	oz, ok := tile.OverzoomFor(child, maxZoom)
	if !ok {
		p.errorf("coordinate %v at zoom %d unexpectedly within native range", child, child.Z)
		return p
	}

	parentReq := tile.Request{
		Frame:       latest.Path,
		Size:        tileSize,
		Coord:       oz.Parent,
		ColorScheme: 4,
		Smooth:      true,
	}
	parent, err := client.FetchTile(ctx, rainviewer.TileURL(m.Host, parentReq))
	if err != nil {
		p.errorf("fetch parent %s: %v", parentReq.Key(), err)
		return p
	}

	derived, err := tile.CropScale(parent, oz, tileSize)
	if err != nil {
		p.errorf("derive child tile: %v", err)
		return p
	}

	cfg, err := png.DecodeConfig(bytes.NewReader(derived))
	if err != nil {
		p.errorf("decode derived tile: %v", err)
		return p
	}
	if cfg.Width != tileSize || cfg.Height != tileSize {
		p.errorf("derived tile is %dx%d, want %dx%d", cfg.Width, cfg.Height, tileSize, tileSize)
	}
	return p
}
