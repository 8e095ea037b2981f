package tile

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// CropScale cuts the oz sub-quadrant out of a parent provider tile and
// rescales it to size×size pixels, returning the re-encoded PNG. The result
// is a pure function of the parent bytes and the overzoom parameters, so
// derived tiles are cacheable and reproducible.
func CropScale(parentPNG []byte, oz Overzoom, size int) ([]byte, error) {
	if oz.Parts < 2 {
		return nil, fmt.Errorf("crop: subdivision factor %d is not an overzoom", oz.Parts)
	}
	if size <= 0 {
		return nil, fmt.Errorf("crop: invalid output size %d", size)
	}

	src, err := png.Decode(bytes.NewReader(parentPNG))
	if err != nil {
		return nil, fmt.Errorf("crop: decode parent tile: %w", err)
	}

	b := src.Bounds()
	cellW := b.Dx() / oz.Parts
	cellH := b.Dy() / oz.Parts
	if cellW == 0 || cellH == 0 {
		return nil, fmt.Errorf("crop: parent %dx%d too small for %d parts", b.Dx(), b.Dy(), oz.Parts)
	}

	sub := image.Rect(
		b.Min.X+oz.SubX*cellW,
		b.Min.Y+oz.SubY*cellH,
		b.Min.X+(oz.SubX+1)*cellW,
		b.Min.Y+(oz.SubY+1)*cellH,
	)

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, sub, draw.Src, nil)

	var out bytes.Buffer
	if err := png.Encode(&out, dst); err != nil {
		return nil, fmt.Errorf("crop: encode derived tile: %w", err)
	}
	return out.Bytes(), nil
}
