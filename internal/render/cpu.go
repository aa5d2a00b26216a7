package render

import (
	"fmt"
	"math"

	"github.com/gogpu/snowfield/internal/atlas"
	"github.com/gogpu/snowfield/internal/physics"
	"github.com/gogpu/snowfield/internal/pix"
)

// CPUBackend rasterizes rotated particle sprites straight from the atlas
// pixmap with bilinear sampling. It mirrors the GPU shader math so a
// frame looks the same from either backend.
type CPUBackend struct {
	atlas  *atlas.Atlas
	width  int
	height int
}

// NewCPUBackend creates the software backend for a width x height
// target.
func NewCPUBackend(width, height int) (*CPUBackend, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}
	return &CPUBackend{width: width, height: height}, nil
}

func (b *CPUBackend) Name() string { return "cpu" }

func (b *CPUBackend) SetAtlas(a *atlas.Atlas) error {
	b.atlas = a
	return nil
}

func (b *CPUBackend) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid target size %dx%d", width, height)
	}
	b.width = width
	b.height = height
	return nil
}

func (b *CPUBackend) Close() {}

func (b *CPUBackend) Render(f *Frame, dst *pix.Pixmap) error {
	if b.atlas == nil {
		return fmt.Errorf("render before atlas upload")
	}
	if dst.Width() != b.width || dst.Height() != b.height {
		return fmt.Errorf("destination size mismatch")
	}
	dst.Clear(pix.Transparent)

	glowOn := f.BgLuminance < glowLuminanceGate
	for _, p := range f.Particles {
		b.drawParticle(dst, p, f.Time, glowOn)
	}
	return nil
}

func (b *CPUBackend) drawParticle(dst *pix.Pixmap, p *physics.Particle, t float64, glowOn bool) {
	if p.GlyphIndex < 0 || p.GlyphIndex >= b.atlas.CellCount() {
		return
	}
	cell := b.atlas.Cell(p.GlyphIndex)
	pos := p.RenderPos()

	// The quad extends to glowScale/2 in centered coords; its rotated
	// bounding box is covered by the sqrt2 circumradius.
	half := p.Size * glowScale / 2
	bound := half * math.Sqrt2
	x0 := int(math.Floor(pos.X - bound))
	x1 := int(math.Ceil(pos.X + bound))
	y0 := int(math.Floor(pos.Y - bound))
	y1 := int(math.Ceil(pos.Y + bound))
	if x1 < 0 || y1 < 0 || x0 >= dst.Width() || y0 >= dst.Height() {
		return
	}

	cosR := math.Cos(-p.Rotation)
	sinR := math.Sin(-p.Rotation)
	flicker := glowFlicker(t, p.Phase)
	glow := glowOn && !cell.Sentence

	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			// Inverse-rotate the pixel offset into quad space.
			ox := float64(x) + 0.5 - pos.X
			oy := float64(y) + 0.5 - pos.Y
			lx := (ox*cosR - oy*sinR) / p.Size
			ly := (ox*sinR + oy*cosR) / p.Size
			if math.Abs(lx) > glowScale/2 || math.Abs(ly) > glowScale/2 {
				continue
			}

			if math.Abs(lx) <= 0.5 && math.Abs(ly) <= 0.5 {
				texel := sampleCell(b.atlas.Pixmap(), cell.Region, lx+0.5, ly+0.5)
				if texel.A > 0 {
					if cell.Monotone {
						texel.R = p.Color.R
						texel.G = p.Color.G
						texel.B = p.Color.B
					}
					dst.BlendPixel(x, y, texel)
				}
			}

			if glow {
				dx := lx / (glowScale / 2)
				dy := ly / (glowScale / 2)
				g := math.Exp(-3.5*(dx*dx+dy*dy)) * flicker * glowStrength
				if g > 1.0/255 {
					dst.AddPixel(x, y, pix.RGBA{R: p.Color.R, G: p.Color.G, B: p.Color.B, A: g})
				}
			}
		}
	}
}

// sampleCell bilinearly samples the cell region at normalized (u, v),
// clamping to the cell edges so neighbors never bleed in.
func sampleCell(pm *pix.Pixmap, r atlas.Region, u, v float64) pix.RGBA {
	fx := float64(r.X) + u*float64(r.W) - 0.5
	fy := float64(r.Y) + v*float64(r.H) - 0.5
	x := int(math.Floor(fx))
	y := int(math.Floor(fy))
	tx := fx - float64(x)
	ty := fy - float64(y)

	c00 := cellPixel(pm, r, x, y)
	c10 := cellPixel(pm, r, x+1, y)
	c01 := cellPixel(pm, r, x, y+1)
	c11 := cellPixel(pm, r, x+1, y+1)

	lerp := func(a, b, t float64) float64 { return a + (b-a)*t }
	return pix.RGBA{
		R: lerp(lerp(c00.R, c10.R, tx), lerp(c01.R, c11.R, tx), ty),
		G: lerp(lerp(c00.G, c10.G, tx), lerp(c01.G, c11.G, tx), ty),
		B: lerp(lerp(c00.B, c10.B, tx), lerp(c01.B, c11.B, tx), ty),
		A: lerp(lerp(c00.A, c10.A, tx), lerp(c01.A, c11.A, tx), ty),
	}
}

func cellPixel(pm *pix.Pixmap, r atlas.Region, x, y int) pix.RGBA {
	if x < r.X {
		x = r.X
	}
	if x > r.X+r.W-1 {
		x = r.X + r.W - 1
	}
	if y < r.Y {
		y = r.Y
	}
	if y > r.Y+r.H-1 {
		y = r.Y + r.H - 1
	}
	return pm.GetPixel(x, y)
}
