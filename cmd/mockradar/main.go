// Command mockradar serves a synthetic radar tile provider for local
// development: a weather-maps manifest whose frames advance on a fixed
// cadence, and deterministic PNG tiles generated per frame and coordinate.
// Point RADAR_MANIFEST_URL at it to run the service without network access
// to the real provider.
//
// Usage:
//
//	go run ./cmd/mockradar -addr :9090 -frames 8 -step 10m
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

func main() {
	addr := flag.String("addr", ":9090", "listen address")
	frames := flag.Int("frames", 8, "number of past frames to advertise")
	step := flag.Duration("step", 10*time.Minute, "time between frames")
	flag.Parse()

	if *frames < 1 {
		log.Fatal("-frames must be at least 1")
	}

	s := &server{frames: *frames, step: *step}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /public/weather-maps.json", s.handleManifest)
	mux.HandleFunc("GET /v2/radar/{rest...}", s.handleTile)

	log.Printf("mockradar listening on %s (%d frames, %s apart)", *addr, *frames, *step)
	log.Fatal(http.ListenAndServe(*addr, mux))
}

type server struct {
	frames int
	step   time.Duration
}

type frameJSON struct {
	Time int64  `json:"time"`
	Path string `json:"path"`
}

// handleManifest serves a weather-maps document whose newest frame is the
// current time rounded down to the frame step, so frames advance as real
// time passes.
func (s *server) handleManifest(w http.ResponseWriter, r *http.Request) {
	newest := time.Now().Truncate(s.step)

	past := make([]frameJSON, 0, s.frames)
	for i := s.frames - 1; i >= 0; i-- {
		ts := newest.Add(-time.Duration(i) * s.step).Unix()
		past = append(past, frameJSON{Time: ts, Path: fmt.Sprintf("/v2/radar/%d", ts)})
	}
	nowcast := []frameJSON{{
		Time: newest.Add(s.step).Unix(),
		Path: fmt.Sprintf("/v2/radar/nowcast_%d", newest.Add(s.step).Unix()),
	}}

	host := "http://" + r.Host

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck // best-effort response
		"version":   "2.0",
		"generated": time.Now().Unix(),
		"host":      host,
		"radar": map[string]any{
			"past":    past,
			"nowcast": nowcast,
		},
	})
}

// handleTile serves {frame}/{size}/{z}/{x}/{y}/{color}/{opts}.png with a
// deterministic blob pattern derived from the frame and coordinate, so the
// same URL always yields the same bytes and overzoom crops look coherent.
func (s *server) handleTile(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.PathValue("rest"), "/"), "/")
	if len(parts) != 7 || !strings.HasSuffix(parts[6], ".png") {
		http.Error(w, "malformed tile path", http.StatusBadRequest)
		return
	}

	frame := parts[0]
	size, err1 := strconv.Atoi(parts[1])
	z, err2 := strconv.Atoi(parts[2])
	x, err3 := strconv.Atoi(parts[3])
	y, err4 := strconv.Atoi(parts[4])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || size < 1 || size > 1024 {
		http.Error(w, "malformed tile path", http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, renderTile(frame, size, z, x, y)); err != nil {
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes()) //nolint:errcheck // client gone, nothing to do
}

// renderTile draws semi-transparent rain blobs whose placement depends only
// on the frame and the tile's position in world space. Because placement is
// computed in world pixels, a parent tile's quadrant matches the child tile
// rendered at the next zoom.
func renderTile(frame string, size, z, x, y int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))

	// World-space cell grid: one candidate blob per cell, seeded by the
	// frame so the pattern animates across frames.
	const cells = 16
	for cy := 0; cy < cells; cy++ {
		for cx := 0; cx < cells; cx++ {
			seed := hash(fmt.Sprintf("%s/%d/%d", frame, cx, cy))
			if seed%5 != 0 {
				continue
			}
			intensity := uint8(80 + seed%120)
			drawBlob(img, size, z, x, y, cx, cy, cells, intensity)
		}
	}
	return img
}

// drawBlob paints one circular blob positioned on the world cell grid,
// clipped to this tile.
func drawBlob(img *image.NRGBA, size, z, x, y, cx, cy, cells int, intensity uint8) {
	n := 1 << z
	world := float64(n * size)

	bx := (float64(cx) + 0.5) / float64(cells) * world
	by := (float64(cy) + 0.5) / float64(cells) * world
	radius := world / float64(cells) / 2

	originX := float64(x * size)
	originY := float64(y * size)

	c := color.NRGBA{R: 30, G: 70, B: intensity, A: 180}
	for py := 0; py < size; py++ {
		for px := 0; px < size; px++ {
			dx := originX + float64(px) - bx
			dy := originY + float64(py) - by
			if dx*dx+dy*dy <= radius*radius {
				img.SetNRGBA(px, py, c)
			}
		}
	}
}

func hash(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s)) //nolint:errcheck // fnv never errors
	return h.Sum64()
}
