// Package tile provides slippy-map tile addressing, request-key construction,
// and the overzoom crop used to serve zoom levels the radar provider does not
// natively offer.
package tile

import (
	"fmt"
)

// Coord addresses one tile in a standard slippy-map pyramid.
// X and Y are bounded by 2^Z at zoom level Z.
type Coord struct {
	Z int
	X int
	Y int
}

// Valid reports whether the coordinate lies inside the pyramid.
func (c Coord) Valid() bool {
	if c.Z < 0 || c.Z > 30 {
		return false
	}
	n := 1 << c.Z
	return c.X >= 0 && c.X < n && c.Y >= 0 && c.Y < n
}

func (c Coord) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}

// Request identifies one rendered tile. Two requests with equal keys resolve
// to byte-identical output: the frame, pixel size, and render options all
// change pixel content for the same coordinate, so they are part of the key.
type Request struct {
	Frame       string // provider path segment for the radar time-slice
	Size        int    // output edge length in pixels
	Coord       Coord
	ColorScheme int
	Smooth      bool
	Snow        bool
}

// Key returns the composite cache/dedupe key for the request.
func (r Request) Key() string {
	return fmt.Sprintf("%s|%d|%d|%d|%d|%d|%s", r.Frame, r.Size,
		r.Coord.Z, r.Coord.X, r.Coord.Y, r.ColorScheme, r.OptionSuffix())
}

// OptionSuffix renders the smooth/snow flags the way the provider URL does.
func (r Request) OptionSuffix() string {
	return fmt.Sprintf("%d_%d", boolFlag(r.Smooth), boolFlag(r.Snow))
}

func boolFlag(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Overzoom describes how to derive a tile beyond the provider's maximum zoom
// from the provider tile that covers the same area.
type Overzoom struct {
	Parent Coord // provider coordinate to fetch
	Parts  int   // subdivision factor, 2^(z-maxZoom)
	SubX   int   // quadrant column within the parent
	SubY   int   // quadrant row within the parent
}

// OverzoomFor computes the parent coordinate and sub-quadrant for a request
// at zoom c.Z > maxZoom. Returns ok=false when no overzoom is needed.
func OverzoomFor(c Coord, maxZoom int) (Overzoom, bool) {
	if c.Z <= maxZoom {
		return Overzoom{}, false
	}
	dz := c.Z - maxZoom
	parts := 1 << dz
	return Overzoom{
		Parent: Coord{Z: maxZoom, X: c.X >> dz, Y: c.Y >> dz},
		Parts:  parts,
		SubX:   c.X & (parts - 1),
		SubY:   c.Y & (parts - 1),
	}, true
}
