// Package httpapi exposes the radar tile, frame reel, and hourly forecast
// endpoints, plus health, readiness, and metrics routes.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skycast-labs/radarcache/internal/adapter/rainviewer"
	"github.com/skycast-labs/radarcache/internal/forecast"
	"github.com/skycast-labs/radarcache/internal/tile"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// TileLoader resolves a tile request to PNG bytes, blocking until the tile
// is cached, derived, or fetched.
type TileLoader interface {
	LoadTile(ctx context.Context, r tile.Request) ([]byte, error)
}

// FrameSource provides the current trimmed frame manifest.
type FrameSource interface {
	Current() (rainviewer.Manifest, bool)
}

// ForecastSource provides hourly temperature points by day bucket.
type ForecastSource interface {
	LoadIfNeeded(ctx context.Context, coord forecast.Coordinate, day forecast.Day)
	HourlyTuples(coord forecast.Coordinate, day forecast.Day) []forecast.Point
	Today(coord forecast.Coordinate) forecast.Day
}

// Server exposes the service's HTTP surface.
type Server struct {
	httpServer *http.Server
	tiles      TileLoader
	frames     FrameSource
	forecasts  ForecastSource
	logger     *slog.Logger
}

// NewServer wires all routes onto a stdlib mux.
func NewServer(addr string, tiles TileLoader, frames FrameSource, forecasts ForecastSource,
	ready ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		tiles:     tiles,
		frames:    frames,
		forecasts: forecasts,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /tiles/{rest...}", s.handleTile)
	mux.HandleFunc("GET /frames", s.handleFrames)
	mux.HandleFunc("GET /hourly", s.handleHourly)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// handleTile serves GET /tiles{frame}/{size}/{z}/{x}/{y}/{color}/{s}_{n}.png,
// mirroring the upstream tile URL shape so clients can swap hosts.
func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseTilePath(r.PathValue("rest"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	data, err := s.tiles.LoadTile(r.Context(), req)
	if err != nil {
		s.logger.Warn("tile load failed", "key", req.Key(), "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "tile unavailable"})
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Write(data) //nolint:errcheck // client gone, nothing to do
}

func (s *Server) handleFrames(w http.ResponseWriter, _ *http.Request) {
	m, ok := s.frames.Current()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "no frame manifest loaded yet",
		})
		return
	}
	writeJSON(w, http.StatusOK, framesResponse{
		Host:    m.Host,
		Past:    m.Past,
		Nowcast: m.Nowcast,
	})
}

func (s *Server) handleHourly(w http.ResponseWriter, r *http.Request) {
	coord, err := parseCoordinate(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var day forecast.Day
	if raw := r.URL.Query().Get("day"); raw != "" {
		day, err = forecast.ParseDay(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "day must be YYYY-MM-DD"})
			return
		}
	} else {
		day = s.forecasts.Today(coord)
	}

	s.forecasts.LoadIfNeeded(r.Context(), coord, day)
	points := s.forecasts.HourlyTuples(coord, day)
	if points == nil {
		points = []forecast.Point{}
	}

	writeJSON(w, http.StatusOK, hourlyResponse{
		Latitude:  coord.Lat,
		Longitude: coord.Lon,
		Day:       day.String(),
		Points:    points,
	})
}

type framesResponse struct {
	Host    string             `json:"host"`
	Past    []rainviewer.Frame `json:"past"`
	Nowcast []rainviewer.Frame `json:"nowcast"`
}

type hourlyResponse struct {
	Latitude  float64          `json:"latitude"`
	Longitude float64          `json:"longitude"`
	Day       string           `json:"day"`
	Points    []forecast.Point `json:"points"`
}

// parseTilePath splits "{frame}/{size}/{z}/{x}/{y}/{color}/{s}_{n}.png" into
// a tile request. The frame path may span several segments.
func (s *Server) parseTilePath(rest string) (tile.Request, error) {
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) < 7 {
		return tile.Request{}, errors.New("malformed tile path")
	}

	frame := "/" + strings.Join(parts[:len(parts)-6], "/")
	tail := parts[len(parts)-6:]

	size, err := strconv.Atoi(tail[0])
	if err != nil || (size != 256 && size != 512) {
		return tile.Request{}, errors.New("tile size must be 256 or 512")
	}

	var coord tile.Coord
	for i, dst := range []*int{&coord.Z, &coord.X, &coord.Y} {
		v, err := strconv.Atoi(tail[1+i])
		if err != nil {
			return tile.Request{}, fmt.Errorf("malformed tile coordinate %q", tail[1+i])
		}
		*dst = v
	}
	if !coord.Valid() {
		return tile.Request{}, fmt.Errorf("tile coordinate out of range: %d/%d/%d", coord.Z, coord.X, coord.Y)
	}

	color, err := strconv.Atoi(tail[4])
	if err != nil {
		return tile.Request{}, errors.New("malformed color scheme")
	}

	opts, ok := strings.CutSuffix(tail[5], ".png")
	if !ok {
		return tile.Request{}, errors.New("tile path must end in .png")
	}
	smooth, snow, err := parseOptions(opts)
	if err != nil {
		return tile.Request{}, err
	}

	return tile.Request{
		Frame:       frame,
		Size:        size,
		Coord:       coord,
		ColorScheme: color,
		Smooth:      smooth,
		Snow:        snow,
	}, nil
}

func parseOptions(opts string) (smooth, snow bool, err error) {
	a, b, ok := strings.Cut(opts, "_")
	if !ok || (a != "0" && a != "1") || (b != "0" && b != "1") {
		return false, false, errors.New("tile options must be {0|1}_{0|1}")
	}
	return a == "1", b == "1", nil
}

func parseCoordinate(r *http.Request) (forecast.Coordinate, error) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		return forecast.Coordinate{}, errors.New("lat must be a number in [-90, 90]")
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err != nil || lon < -180 || lon > 180 {
		return forecast.Coordinate{}, errors.New("lon must be a number in [-180, 180]")
	}
	return forecast.Coordinate{Lat: lat, Lon: lon}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
