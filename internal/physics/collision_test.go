package physics

import (
	"math"
	"testing"

	"github.com/gogpu/snowfield/internal/pix"
)

func newBody(x, y, radius, vx, vy float64) *Particle {
	return &Particle{
		Rest:      pix.V2(x, y),
		Size:      radius * 2,
		Vel:       pix.V2(vx, vy),
		SwayLimit: 1,
	}
}

func resolver() *Resolver {
	return &Resolver{Enabled: true, Restitution: 0.95, CheckRadius: 200}
}

func TestHeadOnCollision(t *testing.T) {
	// Two equal particles closing head-on at ±100 px/s, overlapping.
	a := newBody(100, 100, 10, 100, 0)
	b := newBody(115, 100, 10, -100, 0)

	resolver().Resolve([]Body{a, b}, 1.0/60)

	// Post-impulse relative velocity must reverse sign and shrink.
	if a.Vel.X >= 100 {
		t.Errorf("a.Vel.X = %v, want reduced below incoming speed", a.Vel.X)
	}
	if a.Vel.X >= 0 {
		t.Errorf("a.Vel.X = %v, want negative (rebound)", a.Vel.X)
	}
	if b.Vel.X <= 0 {
		t.Errorf("b.Vel.X = %v, want positive (rebound)", b.Vel.X)
	}
	// Symmetric pair stays symmetric.
	if math.Abs(a.Vel.X+b.Vel.X) > 1e-9 {
		t.Errorf("momentum not conserved: %v vs %v", a.Vel.X, b.Vel.X)
	}
	// Rebound speed bounded by restitution of incoming speed.
	if math.Abs(a.Vel.X) > 100*0.95+1e-9 {
		t.Errorf("rebound %v exceeds restitution bound", a.Vel.X)
	}
}

func TestImpulseClamp(t *testing.T) {
	// Absurd closing speed must not produce an unbounded impulse.
	a := newBody(100, 100, 10, 1e6, 0)
	b := newBody(110, 100, 10, -1e6, 0)

	resolver().Resolve([]Body{a, b}, 1.0/60)

	if change := math.Abs(a.Vel.X - 1e6); change > maxImpulse+1e-6 {
		t.Errorf("velocity change %v exceeds the impulse clamp %v", change, maxImpulse)
	}
}

func TestSeparationInvariant(t *testing.T) {
	// Deeply overlapping pair separates to at least the radii sum.
	a := newBody(100, 100, 10, 0, 0)
	b := newBody(105, 100, 10, 0, 0)

	resolver().Resolve([]Body{a, b}, 1.0/60)

	dist := b.Rest.Sub(a.Rest).Length()
	if dist < 20-1e-9 {
		t.Errorf("post-resolution distance = %v, want >= 20", dist)
	}
}

func TestNoResolutionOutsideContact(t *testing.T) {
	// Radii 5 each (sum 10), centers 25 apart: no contact, no change.
	a := newBody(100, 100, 5, 3, 0)
	b := newBody(125, 100, 5, -3, 0)

	resolver().Resolve([]Body{a, b}, 1.0/60)

	if a.Vel != pix.V2(3, 0) || b.Vel != pix.V2(-3, 0) {
		t.Errorf("velocities changed without contact: %v, %v", a.Vel, b.Vel)
	}
	if a.Rest != pix.V2(100, 100) || b.Rest != pix.V2(125, 100) {
		t.Errorf("positions changed without contact: %v, %v", a.Rest, b.Rest)
	}
}

func TestPredictivePaddingCatchesFastPair(t *testing.T) {
	// Not yet touching (gap 2px) but closing at 300 px/s: padding
	// 300·dt = 5px at 60fps exceeds the gap, so the impulse fires early.
	a := newBody(100, 100, 10, 150, 0)
	b := newBody(122, 100, 10, -150, 0)

	resolver().Resolve([]Body{a, b}, 1.0/60)

	if a.Vel.X >= 150 {
		t.Error("expected predictive contact to fire the impulse")
	}
}

func TestGrabbedTakesNoPositionalCorrection(t *testing.T) {
	a := newBody(100, 100, 10, 0, 0)
	a.IsGrabbed = true
	b := newBody(110, 100, 10, 0, 0)

	resolver().Resolve([]Body{a, b}, 1.0/60)

	if a.Rest != pix.V2(100, 100) {
		t.Errorf("grabbed particle moved to %v", a.Rest)
	}
	if b.Rest.X <= 110 {
		t.Errorf("free particle should take the whole correction, at %v", b.Rest)
	}
}

func TestCheckRadiusCutoff(t *testing.T) {
	r := &Resolver{Enabled: true, CheckRadius: 10}
	// Overlapping pair, but outside the coarse cutoff is impossible when
	// overlapping; instead verify a far pair is skipped even with huge
	// velocities that would otherwise trip predictive padding.
	a := newBody(0, 0, 5, 1000, 0)
	b := newBody(100, 0, 5, -1000, 0)

	r.Resolve([]Body{a, b}, 1.0/60)

	if a.Vel.X != 1000 {
		t.Error("pair beyond the check radius must be skipped")
	}
}

func TestDisabledResolverIsNoop(t *testing.T) {
	r := &Resolver{Enabled: false}
	a := newBody(100, 100, 10, 50, 0)
	b := newBody(110, 100, 10, -50, 0)

	r.Resolve([]Body{a, b}, 1.0/60)

	if a.Vel.X != 50 || b.Vel.X != -50 {
		t.Error("disabled resolver changed velocities")
	}
}

func TestSwayArcLookahead(t *testing.T) {
	// Pair not in contact, but with swing arcs wide enough to overlap:
	// the sway limit must shrink below 1 on both.
	a := newBody(100, 100, 10, 0, 0)
	a.SwayAmp = 30
	b := newBody(140, 100, 10, 0, 0)
	b.SwayAmp = 30

	resolver().Resolve([]Body{a, b}, 1.0/60)

	if a.SwayLimit >= 1 || b.SwayLimit >= 1 {
		t.Errorf("sway limits = %v, %v; want both < 1", a.SwayLimit, b.SwayLimit)
	}
	if a.SwayLimit < 0 {
		t.Errorf("sway limit went negative: %v", a.SwayLimit)
	}
}

func TestSwayZeroedOnContact(t *testing.T) {
	// Overlapping pair with swaying motion: the negative gap clamps the
	// sway limit all the way to zero on both sides.
	a := newBody(100, 100, 10, 0, 0)
	a.SwayAmp = 15
	b := newBody(112, 100, 10, 0, 0)
	b.SwayAmp = 15

	resolver().Resolve([]Body{a, b}, 1.0/60)

	if a.SwayLimit != 0 || b.SwayLimit != 0 {
		t.Errorf("sway limits = %v, %v; want both 0 while in contact", a.SwayLimit, b.SwayLimit)
	}
}

func TestCollisionSpinBump(t *testing.T) {
	// Closing pair with asymmetric sway motion picks up opposite spins.
	a := newBody(100, 100, 10, 50, 0)
	a.SwayAmp = 20
	a.Freq = 2
	a.Phase = 0 // cos(0)=1 → full lateral sway velocity
	b := newBody(115, 100, 10, -50, 0)

	resolver().Resolve([]Body{a, b}, 1.0/60)

	if a.SpinVel == 0 && b.SpinVel == 0 {
		t.Error("expected spin coupling on a closing pair with sway motion")
	}
	if math.Abs(a.SpinVel) > maxSwaySpin || math.Abs(b.SpinVel) > maxSwaySpin {
		t.Error("spin bump exceeds bound")
	}
}
