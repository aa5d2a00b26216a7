package render

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/snowfield/internal/atlas"
	"github.com/gogpu/snowfield/internal/gpu"
	"github.com/gogpu/snowfield/internal/physics"
)

// PackInstances serializes particles into the fixed-stride instance
// layout the GPU pipeline consumes. dst is reused when large enough.
//
// The sway limit is folded into the uploaded amplitude so the shader's
// sin(phase)*amplitude reproduces collision-limited sway without a
// separate field.
func PackInstances(dst []byte, particles []*physics.Particle, at *atlas.Atlas) []byte {
	need := len(particles) * gpu.InstanceStride
	if cap(dst) < need {
		dst = make([]byte, need)
	}
	dst = dst[:need]

	for i, p := range particles {
		rec := dst[i*gpu.InstanceStride:]
		put := func(field int, v float64) {
			binary.LittleEndian.PutUint32(rec[field*4:], math.Float32bits(float32(v)))
		}
		monotone := 0.0
		if p.GlyphIndex < at.CellCount() && at.Cell(p.GlyphIndex).Monotone {
			monotone = 1.0
		}
		put(0, p.Rest.X)
		put(1, p.Rest.Y)
		put(2, p.Size)
		put(3, p.FallSpeed)
		put(4, p.Phase)
		put(5, p.Freq)
		put(6, p.SwayAmp*p.SwayLimit)
		put(7, p.Rotation)
		put(8, p.SpinVel)
		put(9, p.Color.R)
		put(10, p.Color.G)
		put(11, p.Color.B)
		put(12, float64(p.GlyphIndex))
		put(13, monotone)
		put(14, 0)
		put(15, 0)
	}
	return dst
}

// UVRects extracts every cell's normalized texture rectangle in cell
// index order, ready for the renderer's storage buffer.
func UVRects(at *atlas.Atlas) [][4]float32 {
	rects := make([][4]float32, at.CellCount())
	for i := range rects {
		u0, v0, u1, v1 := at.UVRect(i)
		rects[i] = [4]float32{float32(u0), float32(v0), float32(u1), float32(v1)}
	}
	return rects
}
