// Package rainviewer talks to the RainViewer weather-maps API: the frame
// manifest that drives radar animation, and the PNG tile endpoint.
package rainviewer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/skycast-labs/radarcache/internal/tile"
)

// Frame identifies one radar time-slice. Path is the URL segment used to
// build tile URLs for that slice.
type Frame struct {
	Time int64  `json:"time"`
	Path string `json:"path"`
}

// Manifest describes the radar frames currently available upstream.
type Manifest struct {
	Host    string
	Past    []Frame
	Nowcast []Frame
}

// manifestResponse mirrors the weather-maps JSON document.
type manifestResponse struct {
	Host  string `json:"host"`
	Radar struct {
		Past    []Frame `json:"past"`
		Nowcast []Frame `json:"nowcast"`
	} `json:"radar"`
}

// Client fetches the frame manifest and raw tiles.
type Client struct {
	manifestURL string
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewClient creates a RainViewer client.
func NewClient(manifestURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		manifestURL: manifestURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Manifest fetches and decodes the weather-maps document. Failures are not
// retried here; the caller decides whether to surface "radar unavailable"
// or wait for the next poll.
func (c *Client) Manifest(ctx context.Context) (Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.manifestURL, nil)
	if err != nil {
		return Manifest{}, fmt.Errorf("create manifest request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Manifest{}, fmt.Errorf("manifest request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Manifest{}, fmt.Errorf("manifest API error: status %d: %s", resp.StatusCode, body)
	}

	var decoded manifestResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	if decoded.Host == "" {
		return Manifest{}, fmt.Errorf("manifest missing tile host")
	}

	return Manifest{
		Host:    decoded.Host,
		Past:    decoded.Radar.Past,
		Nowcast: decoded.Radar.Nowcast,
	}, nil
}

// TileURL builds the provider tile URL for a request:
// {host}{framePath}/{size}/{z}/{x}/{y}/{color}/{smooth}_{snow}.png
func TileURL(host string, r tile.Request) string {
	return fmt.Sprintf("%s%s/%d/%d/%d/%d/%d/%s.png",
		host, r.Frame, r.Size, r.Coord.Z, r.Coord.X, r.Coord.Y,
		r.ColorScheme, r.OptionSuffix())
}

// FetchTile GETs one tile and returns its PNG bytes. Non-2xx responses and
// payloads that do not decode as PNG are errors; the caller never caches
// them, so the next request for the same key retries the network.
func (c *Client) FetchTile(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create tile request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tile request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tile fetch failed: status %d for %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tile body: %w", err)
	}

	if _, err := png.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("malformed tile image: %w", err)
	}

	return data, nil
}
