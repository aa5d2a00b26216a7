package pix

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"os"
)

// Pixmap is a dense RGBA pixel surface, 4 bytes per pixel, rows stored
// top to bottom. Both render backends and the image layer draw into it.
type Pixmap struct {
	w, h int
	data []uint8
}

// NewPixmap allocates a fully transparent w x h surface.
func NewPixmap(w, h int) *Pixmap {
	return &Pixmap{w: w, h: h, data: make([]uint8, w*h*4)}
}

func (p *Pixmap) Width() int  { return p.w }
func (p *Pixmap) Height() int { return p.h }

// Data exposes the raw RGBA bytes. The slice aliases the surface;
// writes through it are visible to every reader.
func (p *Pixmap) Data() []uint8 { return p.data }

// offset returns the byte index of (x, y), or -1 off the surface.
func (p *Pixmap) offset(x, y int) int {
	if x < 0 || y < 0 || x >= p.w || y >= p.h {
		return -1
	}
	return (y*p.w + x) * 4
}

// SetPixel overwrites one pixel. Out-of-bounds writes are dropped.
func (p *Pixmap) SetPixel(x, y int, c RGBA) {
	i := p.offset(x, y)
	if i < 0 {
		return
	}
	px := p.data[i : i+4 : i+4]
	px[0] = uint8(clamp255(c.R * 255))
	px[1] = uint8(clamp255(c.G * 255))
	px[2] = uint8(clamp255(c.B * 255))
	px[3] = uint8(clamp255(c.A * 255))
}

// GetPixel reads one pixel. Out-of-bounds reads are transparent.
func (p *Pixmap) GetPixel(x, y int) RGBA {
	i := p.offset(x, y)
	if i < 0 {
		return Transparent
	}
	px := p.data[i : i+4 : i+4]
	return RGBA{
		R: float64(px[0]) / 255,
		G: float64(px[1]) / 255,
		B: float64(px[2]) / 255,
		A: float64(px[3]) / 255,
	}
}

// BlendPixel composites c over the existing pixel with source-over
// alpha blending. A fully opaque c behaves like SetPixel.
func (p *Pixmap) BlendPixel(x, y int, c RGBA) {
	if c.A <= 0 {
		return
	}
	if c.A >= 1 {
		p.SetPixel(x, y, c)
		return
	}
	i := p.offset(x, y)
	if i < 0 {
		return
	}
	px := p.data[i : i+4 : i+4]
	inv := 1 - c.A
	dstWeight := float64(px[3]) / 255 * inv
	px[0] = uint8(clamp255((c.R*c.A + float64(px[0])/255*dstWeight) * 255))
	px[1] = uint8(clamp255((c.G*c.A + float64(px[1])/255*dstWeight) * 255))
	px[2] = uint8(clamp255((c.B*c.A + float64(px[2])/255*dstWeight) * 255))
	px[3] = uint8(clamp255((c.A + float64(px[3])/255*inv) * 255))
}

// AddPixel adds c to the existing pixel channel-wise, clamping at the
// channel maximum. Used for additive effects such as glow.
func (p *Pixmap) AddPixel(x, y int, c RGBA) {
	i := p.offset(x, y)
	if i < 0 {
		return
	}
	px := p.data[i : i+4 : i+4]
	px[0] = uint8(clamp255(float64(px[0]) + c.R*c.A*255))
	px[1] = uint8(clamp255(float64(px[1]) + c.G*c.A*255))
	px[2] = uint8(clamp255(float64(px[2]) + c.B*c.A*255))
	px[3] = uint8(clamp255(float64(px[3]) + c.A*255))
}

// Clear fills the whole surface with one color. The first pixel is
// quantized once and then replicated by doubling copies.
func (p *Pixmap) Clear(c RGBA) {
	if len(p.data) == 0 {
		return
	}
	p.data[0] = uint8(clamp255(c.R * 255))
	p.data[1] = uint8(clamp255(c.G * 255))
	p.data[2] = uint8(clamp255(c.B * 255))
	p.data[3] = uint8(clamp255(c.A * 255))
	for n := 4; n < len(p.data); n *= 2 {
		copy(p.data[n:], p.data[:n])
	}
}

// ToImage copies the surface into a standalone image.RGBA.
func (p *Pixmap) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, p.w, p.h))
	copy(img.Pix, p.data)
	return img
}

// FromImage copies an image into a new pixmap. *image.RGBA sources are
// copied row-wise; everything else goes through a draw conversion.
func FromImage(img image.Image) *Pixmap {
	b := img.Bounds()
	pm := NewPixmap(b.Dx(), b.Dy())

	src, ok := img.(*image.RGBA)
	if !ok {
		src = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(src, src.Bounds(), img, b.Min, draw.Src)
		b = src.Bounds()
	}
	rowBytes := pm.w * 4
	for y := 0; y < pm.h; y++ {
		si := src.PixOffset(b.Min.X, b.Min.Y+y)
		copy(pm.data[y*rowBytes:(y+1)*rowBytes], src.Pix[si:si+rowBytes])
	}
	return pm
}

// EncodePNG writes the surface to w in PNG format.
func (p *Pixmap) EncodePNG(w io.Writer) error {
	return png.Encode(w, p.ToImage())
}

// SavePNG writes the surface to a PNG file at path.
func (p *Pixmap) SavePNG(path string) error {
	f, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	return p.EncodePNG(f)
}

// At implements the image.Image interface.
func (p *Pixmap) At(x, y int) color.Color {
	return p.GetPixel(x, y).Color()
}

// Bounds implements the image.Image interface.
func (p *Pixmap) Bounds() image.Rectangle {
	return image.Rect(0, 0, p.w, p.h)
}

// ColorModel implements the image.Image interface.
func (p *Pixmap) ColorModel() color.Model {
	return color.NRGBAModel
}
