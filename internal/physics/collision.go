package physics

import "math"

// Resolver tuning. One canonical constant set shared by every particle
// population and both render backends.
const (
	// defaultRestitution keeps collisions springy without being fully
	// elastic.
	defaultRestitution = 0.95

	// maxImpulse bounds the per-collision velocity change so stacked
	// overlapping pairs cannot pump energy into each other.
	maxImpulse = 500.0

	// swaySpinCoupling converts the relative sway velocity of a closing
	// pair into a small bump rotation.
	swaySpinCoupling = 0.01

	// maxSwaySpin bounds that bump.
	maxSwaySpin = 2.0
)

// Resolver detects and resolves pairwise particle collisions with an
// impulse response and positional correction. The scan is a plain O(n²)
// pass over pairs inside CheckRadius; fine at a few hundred particles,
// which is the population this engine targets.
type Resolver struct {
	Enabled     bool
	Restitution float64 // (0,1]; falls back to defaultRestitution when 0
	CheckRadius float64 // coarse pair cutoff, px; 0 disables the cutoff
}

// Resolve runs collision detection and response over bodies. dt is used
// for predictive contact padding only; impulses are instantaneous.
//
// The slice may mix particle populations: anything implementing Body
// resolves against anything else, which is how the image layer collides
// with the glyph field.
func (r *Resolver) Resolve(bodies []Body, dt float64) {
	if !r.Enabled || len(bodies) < 2 {
		return
	}
	e := r.Restitution
	if e <= 0 || e > 1 {
		e = defaultRestitution
	}
	checkSq := r.CheckRadius * r.CheckRadius

	for i := 0; i < len(bodies); i++ {
		for j := i + 1; j < len(bodies); j++ {
			r.resolvePair(bodies[i], bodies[j], e, checkSq, dt)
		}
	}
}

func (r *Resolver) resolvePair(a, b Body, e, checkSq, dt float64) {
	delta := b.Position().Sub(a.Position())
	distSq := delta.LengthSq()
	if checkSq > 0 && distSq > checkSq {
		return
	}

	dist := math.Sqrt(distSq)
	if dist < distanceEpsilon {
		dist = distanceEpsilon
	}
	normal := delta.Mul(1 / dist)

	relVel := b.Velocity().Sub(a.Velocity())
	closing := relVel.Dot(normal) // negative when approaching

	// Contact distance, inflated by predictive padding so a fast-closing
	// pair is caught one frame before it interpenetrates.
	sumRadii := a.CollisionRadius() + b.CollisionRadius()
	padding := math.Max(0, -closing) * dt
	minDist := sumRadii + padding

	// Contacting pairs get their sway zeroed outright: gap <= 0 clamps
	// the limit at LimitSway's floor.
	r.limitSwayArcs(a, b, dist, sumRadii)

	if dist >= minDist {
		return
	}

	if closing < 0 {
		// Unit-mass elastic impulse, split evenly across the pair.
		imp := -(1 + e) * closing / 2
		if imp > maxImpulse {
			imp = maxImpulse
		}
		a.SetVelocity(a.Velocity().Sub(normal.Mul(imp)))
		b.SetVelocity(b.Velocity().Add(normal.Mul(imp)))

		// Bump rotation from the pair's relative sway motion.
		sway := a.LateralSwayVelocity() - b.LateralSwayVelocity()
		spin := clampAbs(sway*swaySpinCoupling, maxSwaySpin)
		a.SetSpin(a.Spin() + spin)
		b.SetSpin(b.Spin() - spin)
	}

	// Positional correction resolves the remaining true overlap
	// (padding excluded). Split 50/50 unless one side is grabbed, in
	// which case the free particle takes all of it.
	overlap := sumRadii - dist
	if overlap <= 0 {
		return
	}
	switch {
	case a.Pinned() && b.Pinned():
		// Both held by the pointer; leave them.
	case a.Pinned():
		b.SetPosition(b.Position().Add(normal.Mul(overlap)))
	case b.Pinned():
		a.SetPosition(a.Position().Sub(normal.Mul(overlap)))
	default:
		half := normal.Mul(overlap / 2)
		a.SetPosition(a.Position().Sub(half))
		b.SetPosition(b.Position().Add(half))
	}
}

// limitSwayArcs pre-emptively shrinks the sway amplitude of a near pair
// whose swing arcs alone could interpenetrate next frame, independent of
// translational motion.
func (r *Resolver) limitSwayArcs(a, b Body, dist, sumRadii float64) {
	reach := a.SwayArcReach() + b.SwayArcReach()
	if reach <= 0 {
		return
	}
	gap := dist - sumRadii
	if gap >= reach {
		return
	}
	limit := gap / reach
	a.LimitSway(limit)
	b.LimitSway(limit)
}

func clampAbs(v, bound float64) float64 {
	if v > bound {
		return bound
	}
	if v < -bound {
		return -bound
	}
	return v
}
