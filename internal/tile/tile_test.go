package tile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestKey(t *testing.T) {
	r := Request{
		Frame:       "/v2/radar/1717000000",
		Size:        512,
		Coord:       Coord{Z: 7, X: 37, Y: 50},
		ColorScheme: 4,
		Smooth:      true,
		Snow:        false,
	}

	assert.Equal(t, "/v2/radar/1717000000|512|7|37|50|4|1_0", r.Key())
}

func TestRequestKey_OptionsChangeKey(t *testing.T) {
	base := Request{Frame: "f", Size: 256, Coord: Coord{Z: 5, X: 1, Y: 2}}

	smooth := base
	smooth.Smooth = true
	snow := base
	snow.Snow = true
	color := base
	color.ColorScheme = 2
	frame := base
	frame.Frame = "g"

	keys := map[string]bool{
		base.Key():   true,
		smooth.Key(): true,
		snow.Key():   true,
		color.Key():  true,
		frame.Key():  true,
	}
	assert.Len(t, keys, 5, "every render parameter must contribute to the key")
}

func TestCoordValid(t *testing.T) {
	tests := []struct {
		name  string
		coord Coord
		want  bool
	}{
		{"origin", Coord{0, 0, 0}, true},
		{"max at zoom 2", Coord{2, 3, 3}, true},
		{"x out of range", Coord{2, 4, 0}, false},
		{"y out of range", Coord{2, 0, 4}, false},
		{"negative x", Coord{3, -1, 0}, false},
		{"negative zoom", Coord{-1, 0, 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.coord.Valid())
		})
	}
}

func TestOverzoomFor_WithinProviderRange(t *testing.T) {
	_, ok := OverzoomFor(Coord{Z: 7, X: 10, Y: 20}, 7)
	assert.False(t, ok)

	_, ok = OverzoomFor(Coord{Z: 3, X: 1, Y: 1}, 7)
	assert.False(t, ok)
}

func TestOverzoomFor_ParentAndQuadrant(t *testing.T) {
	// z=10 against maxZoom=7: dz=3, parts=8,
	// parent (7, 300>>3, 400>>3) = (7, 37, 50), quadrant (300&7, 400&7) = (4, 0).
	oz, ok := OverzoomFor(Coord{Z: 10, X: 300, Y: 400}, 7)

	assert.True(t, ok)
	assert.Equal(t, Coord{Z: 7, X: 37, Y: 50}, oz.Parent)
	assert.Equal(t, 8, oz.Parts)
	assert.Equal(t, 4, oz.SubX)
	assert.Equal(t, 0, oz.SubY)
}

func TestOverzoomFor_OneLevel(t *testing.T) {
	oz, ok := OverzoomFor(Coord{Z: 8, X: 75, Y: 101}, 7)

	assert.True(t, ok)
	assert.Equal(t, Coord{Z: 7, X: 37, Y: 50}, oz.Parent)
	assert.Equal(t, 2, oz.Parts)
	assert.Equal(t, 1, oz.SubX)
	assert.Equal(t, 1, oz.SubY)
}
