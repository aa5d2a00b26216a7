package atlas

import (
	"fmt"
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/snowfield/internal/pix"
)

// newFace creates an opentype face at the given pixel size. data defaults
// to the embedded Go Regular font when nil.
func newFace(data []byte, size float64) (font.Face, error) {
	if data == nil {
		data = goregular.TTF
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create face: %w", err)
	}
	return face, nil
}

// measure returns the advance width of s in pixels.
func measure(face font.Face, s string) float64 {
	return fixedToFloat(font.MeasureString(face, s))
}

// drawInkCentered rasterizes s into the cell region of dst, centered by
// its ink bounding box rather than its baseline metrics, so optically
// uneven glyphs still land in the middle of the cell.
func drawInkCentered(dst *pix.Pixmap, region Region, face font.Face, s string) {
	bounds, _ := font.BoundString(face, s)
	inkW := bounds.Max.X - bounds.Min.X
	inkH := bounds.Max.Y - bounds.Min.Y
	if inkW <= 0 || inkH <= 0 {
		return
	}

	// Dot position placing the ink box centered in the region.
	dot := fixed.Point26_6{
		X: floatToFixed(float64(region.X)+(float64(region.W)-fixedToFloat(inkW))/2) - bounds.Min.X,
		Y: floatToFixed(float64(region.Y)+(float64(region.H)-fixedToFloat(inkH))/2) - bounds.Min.Y,
	}
	drawString(dst, region, face, s, dot)
}

// drawString rasterizes s at the given dot into the cell region of dst,
// clipped to the region. The glyph coverage becomes white with the mask
// alpha, leaving tinting to the render backends.
func drawString(dst *pix.Pixmap, region Region, face font.Face, s string, dot fixed.Point26_6) {
	// image.Alpha satisfies draw.Image; the white source composited
	// through the glyph coverage lands directly in the alpha channel.
	mask := image.NewAlpha(image.Rect(region.X, region.Y, region.X+region.W, region.Y+region.H))
	d := &font.Drawer{
		Dst:  mask,
		Src:  image.White,
		Face: face,
		Dot:  dot,
	}
	d.DrawString(s)

	for y := 0; y < region.H; y++ {
		for x := 0; x < region.W; x++ {
			a := mask.AlphaAt(region.X+x, region.Y+y).A
			if a == 0 {
				continue
			}
			// Straight (non-premultiplied) white: cells never overlap, and
			// keeping RGB constant across coverage levels is what the
			// monotone scan relies on.
			dst.SetPixel(region.X+x, region.Y+y, pix.RGBA{
				R: 1, G: 1, B: 1, A: float64(a) / 255,
			})
		}
	}
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

func floatToFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(v * 64)
}
