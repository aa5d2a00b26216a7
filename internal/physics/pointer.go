package physics

import (
	"math"

	"github.com/gogpu/snowfield/internal/pix"
)

// BurstMode identifies the short amplified-force window after a click.
type BurstMode int

const (
	BurstNone BurstMode = iota
	BurstExplode
	BurstSuction
)

// MouseButton identifies a pointer button.
type MouseButton int

const (
	ButtonLeft MouseButton = iota
	ButtonRight
	ButtonMiddle
)

// Burst tuning. The window length and its radius/force amplification are
// shared by the explode and suction modes.
const (
	burstWindow      = 0.2 // seconds
	burstRadiusScale = 3.5
	burstForceScale  = 5.0

	// idleUpwardDamping reduces the vertical component of idle repulsion
	// when it points up, so slow pointer motion cannot launch particles
	// off the top of the screen.
	idleUpwardDamping = 0.4

	// pointerSpinCoupling converts the cross product of relative position
	// and pointer velocity into angular velocity.
	pointerSpinCoupling = 0.002

	// distanceEpsilon floors every distance divisor.
	distanceEpsilon = 1e-6
)

// PointerState tracks the live pointer as reported by the host surface.
// The session mutates it from input callbacks; the integrator reads it
// once per frame.
type PointerState struct {
	Pos     pix.Vec2
	Vel     pix.Vec2 // px/s
	Present bool     // false after the pointer leaves the surface

	Buttons map[MouseButton]bool

	BurstMode  BurstMode
	BurstTimer float64 // seconds remaining in the burst window
}

// NewPointerState returns a pointer state with no buttons pressed and the
// pointer off-surface.
func NewPointerState() *PointerState {
	return &PointerState{Buttons: make(map[MouseButton]bool)}
}

// Press records a button press and arms the matching burst window.
func (s *PointerState) Press(b MouseButton) {
	s.Buttons[b] = true
	switch b {
	case ButtonLeft:
		s.BurstMode = BurstExplode
		s.BurstTimer = burstWindow
	case ButtonRight:
		s.BurstMode = BurstSuction
		s.BurstTimer = burstWindow
	}
}

// Release records a button release.
func (s *PointerState) Release(b MouseButton) {
	delete(s.Buttons, b)
}

// Leave marks the pointer as off-surface and clears all buttons, so a
// release outside the surface cannot leave a particle grabbed forever.
func (s *PointerState) Leave() {
	s.Present = false
	s.Vel = pix.Vec2{}
	for b := range s.Buttons {
		delete(s.Buttons, b)
	}
}

// Move updates the pointer position and velocity.
func (s *PointerState) Move(x, y, vx, vy float64) {
	s.Pos = pix.V2(x, y)
	s.Vel = pix.V2(vx, vy)
	s.Present = true
}

// Tick advances the burst timer.
func (s *PointerState) Tick(dt float64) {
	if s.BurstTimer > 0 {
		s.BurstTimer -= dt
		if s.BurstTimer <= 0 {
			s.BurstTimer = 0
			s.BurstMode = BurstNone
		}
	}
}

// burstActive reports whether a burst window is still open.
func (s *PointerState) burstActive() bool {
	return s.BurstMode != BurstNone && s.BurstTimer > 0
}

// PointerModel converts pointer state into per-particle velocity changes.
// Four mutually exclusive modes: burst-explode, burst-suction, drag, and
// idle repulsion. All modes share the linear-falloff influence field and
// the raw velocity/spin transfer.
type PointerModel struct {
	Radius          float64 // influence radius, px
	Force           float64 // base repulsion force, px/s^2
	ImpulseStrength float64 // fraction of raw pointer velocity transferred
	DragThreshold   float64 // pointer speed (px/frame at 60fps) before drag mode engages
	DragStrength    float64
}

// Apply adds the pointer's contribution to one particle's velocity and
// spin for this frame. Grabbed particles are pinned instead of forced.
func (m *PointerModel) Apply(p *Particle, s *PointerState, dt float64) {
	if p.IsGrabbed {
		p.Rest = s.Pos.Add(p.GrabOffset)
		p.Vel = pix.Vec2{}
		p.SwayLimit = 0
		return
	}
	if !s.Present || m.Radius <= 0 {
		return
	}

	radius := m.Radius
	force := m.Force
	if s.burstActive() {
		radius *= burstRadiusScale
		// Burst force decays linearly over the window.
		force *= burstForceScale * (s.BurstTimer / burstWindow)
	}

	rel := p.Rest.Sub(s.Pos)
	dist := rel.Length()
	if dist >= radius {
		return
	}
	if dist < distanceEpsilon {
		dist = distanceEpsilon
	}
	influence := 1 - dist/radius
	outward := rel.Mul(1 / dist)

	speed := s.Vel.Length()

	switch {
	case s.BurstMode == BurstExplode && s.burstActive():
		p.Vel = p.Vel.Add(outward.Mul(influence * force * dt))
	case s.BurstMode == BurstSuction && s.burstActive():
		p.Vel = p.Vel.Sub(outward.Mul(influence * force * dt))
	case speed > m.DragThreshold*60:
		// Airflow along the pointer's direction of travel. The pointer
		// speed sets the base magnitude and speed/1000 scales it, so the
		// effect grows quadratically with fast swipes.
		along := s.Vel.Mul(1 / math.Max(speed, distanceEpsilon))
		accel := influence * m.DragStrength * speed * (speed / 1000)
		p.Vel = p.Vel.Add(along.Mul(accel * dt))
	default:
		push := outward.Mul(influence * force)
		if push.Y < 0 {
			push.Y *= idleUpwardDamping
		}
		p.Vel = p.Vel.Add(push.Mul(dt))
	}

	// Raw velocity transfer, independent of mode.
	p.Vel = p.Vel.Add(s.Vel.Mul(m.ImpulseStrength * influence * dt))

	// Spin from the moment of the pointer velocity about the particle
	// center. The cross product sign picks the rotation direction.
	p.SpinVel += rel.Cross(s.Vel) * pointerSpinCoupling * influence * dt
}

// TryGrab pins every free particle within half the influence radius to
// the pointer. Called on a left-button press; the burst fires on the same
// press, so a quick click bursts while a hold grabs.
func (m *PointerModel) TryGrab(particles []*Particle, s *PointerState) {
	grabRadius := m.Radius / 2
	for _, p := range particles {
		if p.IsGrabbed {
			continue
		}
		if p.Rest.Sub(s.Pos).Length() <= grabRadius {
			p.IsGrabbed = true
			p.GrabOffset = p.Rest.Sub(s.Pos)
			p.Vel = pix.Vec2{}
			p.SwayLimit = 0
		}
	}
}

// ReleaseGrab frees every grabbed particle.
func (m *PointerModel) ReleaseGrab(particles []*Particle) {
	for _, p := range particles {
		p.IsGrabbed = false
	}
}
