package physics

import (
	"math"
	"math/rand/v2"
)

const (
	// minDelta floors the frame delta so the step after a long pause or
	// scheduler hiccup cannot destabilize the integration.
	minDelta = 0.001

	// defaultDamping is the per-frame velocity/spin retention at 60fps.
	// It is raised to dt·60 so damping is frame-rate independent.
	defaultDamping = 0.98

	// residualEpsilon: velocity and spin components below this are zeroed
	// outright to stop floating-point drift from accumulating.
	residualEpsilon = 1e-4
)

// Integrator advances the whole particle field one frame: pointer force,
// wind force, motion integration, damping, collision resolution, the
// horizontal wrap policy, and bottom-edge recycling.
type Integrator struct {
	Pointer  PointerModel
	Wind     WindModel
	Resolver Resolver
	Spawn    SpawnParams
	Damping  float64 // 0 means defaultDamping

	rng            *rand.Rand
	sentenceCursor int
	bodies         []Body // scratch, reused across frames
}

// NewIntegrator creates an integrator with the given spawn parameters.
// rng drives every randomized decision (spawn position, phase, palette)
// so tests can pass a seeded source.
func NewIntegrator(spawn SpawnParams, rng *rand.Rand) *Integrator {
	return &Integrator{Spawn: spawn, rng: rng}
}

// SpawnField creates the initial particle batch: sentenceCount sentence
// banners (round-robin over the sentence cells) and glyphs for the rest.
// Particles are created once per session and recycled, never destroyed.
func (it *Integrator) SpawnField(count, sentenceCount int) []*Particle {
	particles := make([]*Particle, 0, count)
	for i := 0; i < count; i++ {
		sentence := -1
		if i < sentenceCount && it.Spawn.SentenceCount > 0 {
			sentence = it.sentenceCursor
			it.sentenceCursor = (it.sentenceCursor + 1) % it.Spawn.SentenceCount
		}
		particles = append(particles, NewParticle(it.Spawn, it.rng, sentence))
	}
	return particles
}

// Step advances every particle by dt seconds. extra carries bodies from
// another particle population (the image layer) that should collide with
// this field; they are read-write for collision purposes but are not
// integrated or recycled here.
func (it *Integrator) Step(particles []*Particle, extra []Body, ptr *PointerState, dt float64) {
	if dt < minDelta {
		dt = minDelta
	}
	ptr.Tick(dt)
	it.Wind.Step(dt)

	for _, p := range particles {
		if !p.IsGrabbed {
			// Sway limits are per-frame: the resolver re-shrinks them
			// below if a neighbor is close.
			p.SwayLimit = 1
		}

		it.Pointer.Apply(p, ptr, dt)
		it.Wind.Apply(p, dt)

		if !p.IsGrabbed {
			p.Rest = p.Rest.Add(p.Vel.Mul(dt))
			p.Rest.Y += p.FallSpeed * dt
		}

		// Frame-rate independent exponential damping.
		damping := it.Damping
		if damping <= 0 || damping > 1 {
			damping = defaultDamping
		}
		f := math.Pow(damping, dt*60)
		p.Vel = p.Vel.Mul(f)
		p.SpinVel *= f
		zeroResiduals(p)

		if !p.IsGrabbed {
			p.Phase += p.Freq * dt
			p.Rotation += p.SpinVel * dt
		}
	}

	it.bodies = it.bodies[:0]
	for _, p := range particles {
		it.bodies = append(it.bodies, p)
	}
	it.bodies = append(it.bodies, extra...)
	it.Resolver.Resolve(it.bodies, dt)

	for _, p := range particles {
		it.wrap(p)
		it.recycle(p)
	}
}

// zeroResiduals snaps near-zero velocity and spin to exactly zero.
func zeroResiduals(p *Particle) {
	if math.Abs(p.Vel.X) < residualEpsilon {
		p.Vel.X = 0
	}
	if math.Abs(p.Vel.Y) < residualEpsilon {
		p.Vel.Y = 0
	}
	if math.Abs(p.SpinVel) < residualEpsilon {
		p.SpinVel = 0
	}
}

// wrap applies portal semantics on the vertical screen edges: a particle
// leaving one side reappears on the other, preserving its velocity. The
// same policy applies to every particle population.
func (it *Integrator) wrap(p *Particle) {
	w := it.Spawn.ViewportW
	margin := p.Size
	switch {
	case p.Rest.X < -margin:
		p.Rest.X += w + 2*margin
	case p.Rest.X > w+margin:
		p.Rest.X -= w + 2*margin
	}
}

// recycle respawns a particle whose top edge has fallen below the
// viewport. Sentence banners advance the round-robin cursor so long
// sentence pools all get screen time.
func (it *Integrator) recycle(p *Particle) {
	if p.Rest.Y <= it.Spawn.ViewportH+p.Size {
		return
	}
	if p.GlyphIndex >= it.Spawn.GlyphCount && it.Spawn.SentenceCount > 0 {
		p.GlyphIndex = it.Spawn.GlyphCount + it.sentenceCursor
		it.sentenceCursor = (it.sentenceCursor + 1) % it.Spawn.SentenceCount
	}
	p.Respawn(it.Spawn, it.rng)
}
