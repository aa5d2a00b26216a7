// Package render provides the two interchangeable particle render
// backends and the frame scheduler. The GPU backend draws the whole
// field in one instanced draw and reads the frame back; the CPU backend
// rasterizes rotated sprites directly from the atlas pixmap. Both
// produce the same composited RGBA overlay frame.
package render

import (
	"math"

	"github.com/gogpu/snowfield/internal/atlas"
	"github.com/gogpu/snowfield/internal/physics"
	"github.com/gogpu/snowfield/internal/pix"
)

// Frame is one simulation snapshot handed to a backend.
type Frame struct {
	Particles []*physics.Particle

	// Time is the session clock in seconds, driving the glow flicker.
	Time float64

	// BgLuminance is the relative luminance of the page background.
	// At 0.9 and above the glow is suppressed entirely.
	BgLuminance float64
}

// Backend renders simulation frames into an RGBA pixmap.
type Backend interface {
	Name() string

	// SetAtlas installs a freshly built atlas. Called once at startup
	// and again after any configuration change that rebuilds cells.
	SetAtlas(a *atlas.Atlas) error

	// Resize adjusts the backend's target to a new viewport size.
	Resize(width, height int) error

	// Render draws the frame into dst, which must match the current
	// target size.
	Render(f *Frame, dst *pix.Pixmap) error

	Close()
}

// Glow tuning shared by both backends so frames match across them.
const (
	// glowScale expands the particle quad beyond the glyph so the glow
	// has room to fall off.
	glowScale = 1.6

	glowStrength      = 0.25
	glowLuminanceGate = 0.9
)

// glowFlicker returns the per-particle glow modulation at time t.
func glowFlicker(t, phase float64) float64 {
	return 0.75 + 0.25*math.Sin(t*3+phase*5)
}
