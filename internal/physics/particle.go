// Package physics implements the particle force model: pointer
// interaction, wind turbulence, impulse-based collision resolution, and
// the per-frame integrator that ties them together. Everything here is
// pure state + math; rendering and scheduling live elsewhere.
package physics

import (
	"math"
	"math/rand/v2"

	"github.com/gogpu/snowfield/internal/pix"
)

// Particle is one falling glyph or sentence banner.
//
// Rest is the pre-sway anchor position. The rendered position is always
// derived as Rest + SwayOffset(); it is never stored separately.
type Particle struct {
	Rest pix.Vec2 // anchor position, px
	Vel  pix.Vec2 // impulse-driven velocity, px/s

	Size      float64 // rendered glyph size, px
	FallSpeed float64 // constant downward drift, px/s

	// Sway oscillation.
	Phase     float64 // pendulum phase, radians
	Freq      float64 // phase advance rate, rad/s
	SwayAmp   float64 // lateral amplitude, px
	SwayLimit float64 // [0,1] amplitude multiplier, shrunk near collisions

	// Persistent rotation.
	SpinVel  float64 // angular velocity, rad/s
	Rotation float64 // cumulative angle, radians

	GlyphIndex int      // cell index into the combined atlas
	Color      pix.RGBA // tint for monotone cells

	IsGrabbed  bool
	GrabOffset pix.Vec2 // particle anchor relative to pointer while grabbed
}

// Radius returns the collision radius. It depends only on the rendered
// size, never on the sway offset.
func (p *Particle) Radius() float64 {
	return p.Size / 2
}

// SwayOffset returns the lateral pendulum displacement at the current
// phase, already scaled by the sway limit.
func (p *Particle) SwayOffset() pix.Vec2 {
	return pix.V2(math.Sin(p.Phase)*p.SwayAmp*p.SwayLimit, 0)
}

// RenderPos returns the position the backends draw at.
func (p *Particle) RenderPos() pix.Vec2 {
	return p.Rest.Add(p.SwayOffset())
}

// SwayVelocity returns the instantaneous lateral velocity of the swing
// arc, px/s. Used by the resolver's spin coupling.
func (p *Particle) SwayVelocity() float64 {
	return math.Cos(p.Phase) * p.SwayAmp * p.Freq * p.SwayLimit
}

// SwayReach returns the maximum lateral extent the swing arc can reach
// this frame, ignoring translational motion.
func (p *Particle) SwayReach() float64 {
	return p.SwayAmp * p.SwayLimit
}

// Body is the view of a particle the collision resolver needs: position,
// radius, velocity, spin, and sway coupling. Any particle population that
// exposes these fields can resolve against any other, which is how the
// image layer merges with the glyph field.
type Body interface {
	Position() pix.Vec2
	SetPosition(pix.Vec2)
	CollisionRadius() float64
	Velocity() pix.Vec2
	SetVelocity(pix.Vec2)
	Spin() float64
	SetSpin(float64)
	LateralSwayVelocity() float64
	SwayArcReach() float64
	LimitSway(float64)
	Pinned() bool
}

// Particle implements Body against its rest position: collision geometry
// tracks the anchor, not the visual sway offset.

func (p *Particle) Position() pix.Vec2           { return p.Rest }
func (p *Particle) SetPosition(v pix.Vec2)       { p.Rest = v }
func (p *Particle) CollisionRadius() float64     { return p.Radius() }
func (p *Particle) Velocity() pix.Vec2           { return p.Vel }
func (p *Particle) SetVelocity(v pix.Vec2)       { p.Vel = v }
func (p *Particle) Spin() float64                { return p.SpinVel }
func (p *Particle) SetSpin(s float64)            { p.SpinVel = s }
func (p *Particle) LateralSwayVelocity() float64 { return p.SwayVelocity() }
func (p *Particle) SwayArcReach() float64        { return p.SwayReach() }
func (p *Particle) Pinned() bool                 { return p.IsGrabbed }

// LimitSway shrinks the sway amplitude multiplier. Limits only tighten
// within a frame; the integrator resets the multiplier each tick.
func (p *Particle) LimitSway(f float64) {
	if f < 0 {
		f = 0
	}
	if f < p.SwayLimit {
		p.SwayLimit = f
	}
}

// SpawnParams controls randomized particle creation and recycling.
type SpawnParams struct {
	ViewportW float64
	ViewportH float64
	MinSize   float64
	MaxSize   float64
	SinkSpeed float64

	GlyphCount    int // atlas cells [0, GlyphCount) are glyphs
	SentenceCount int // cells [GlyphCount, GlyphCount+SentenceCount) are sentences

	Colors []pix.RGBA // tint palette, sampled uniformly
}

// NewParticle creates one randomized particle spawned above the viewport.
// A non-negative sentenceIndex selects a sentence cell instead of a random
// glyph cell; the caller drives the round-robin cursor. Pass -1 for a
// glyph particle.
func NewParticle(p SpawnParams, rng *rand.Rand, sentenceIndex int) *Particle {
	size := p.MinSize + rng.Float64()*(p.MaxSize-p.MinSize)

	glyph := 0
	if sentenceIndex >= 0 && p.SentenceCount > 0 {
		glyph = p.GlyphCount + sentenceIndex%p.SentenceCount
	} else if p.GlyphCount > 0 {
		glyph = rng.IntN(p.GlyphCount)
	}

	c := pix.White
	if len(p.Colors) > 0 {
		c = p.Colors[rng.IntN(len(p.Colors))]
	}

	pt := &Particle{
		Size:       size,
		FallSpeed:  fallSpeed(p.SinkSpeed, size),
		Freq:       0.5 + rng.Float64()*1.5,
		SwayAmp:    size * (0.5 + rng.Float64()),
		SwayLimit:  1,
		GlyphIndex: glyph,
		Color:      c,
	}
	pt.Respawn(p, rng)
	return pt
}

// Respawn repositions the particle above the viewport with fresh phase
// and zeroed motion. Used at creation and whenever the particle exits
// the viewport bottom.
func (p *Particle) Respawn(sp SpawnParams, rng *rand.Rand) {
	p.Rest = pix.V2(
		rng.Float64()*sp.ViewportW,
		-(p.Size + rng.Float64()*sp.ViewportH*0.1),
	)
	p.Vel = pix.Vec2{}
	p.Phase = rng.Float64() * 2 * math.Pi
	p.SpinVel = 0
	p.Rotation = 0
	p.SwayLimit = 1
	p.IsGrabbed = false
}

// fallSpeed maps a particle size onto its constant sink rate: larger
// glyphs read as heavier and fall faster.
func fallSpeed(sinkSpeed, size float64) float64 {
	return sinkSpeed * size * 2.5
}
