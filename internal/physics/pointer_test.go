package physics

import (
	"testing"

	"github.com/gogpu/snowfield/internal/pix"
)

func pointerModel() *PointerModel {
	return &PointerModel{
		Radius:          150,
		Force:           60,
		ImpulseStrength: 0.25,
		DragThreshold:   2,
		DragStrength:    0.5,
	}
}

func TestBurstExplodePushesOutward(t *testing.T) {
	// Click at (500,300), particle 20px to the right, burst radius 350:
	// the resulting velocity must point away from the click.
	s := NewPointerState()
	s.Move(500, 300, 0, 0)
	s.Press(ButtonLeft)

	m := &PointerModel{Radius: 100, Force: 60} // 100 × 3.5 = 350 burst radius
	p := &Particle{Rest: pix.V2(520, 300), Size: 20, SwayLimit: 1}
	m.Apply(p, s, 1.0/60)

	if p.Vel.X <= 0 {
		t.Errorf("Vel.X = %v, want positive (outward)", p.Vel.X)
	}
	if p.Vel.Y != 0 {
		t.Errorf("Vel.Y = %v, want 0 for a horizontal offset", p.Vel.Y)
	}
}

func TestBurstSuctionPullsInward(t *testing.T) {
	s := NewPointerState()
	s.Move(500, 300, 0, 0)
	s.Press(ButtonRight)

	p := &Particle{Rest: pix.V2(600, 300), Size: 20, SwayLimit: 1}
	pointerModel().Apply(p, s, 1.0/60)

	if p.Vel.X >= 0 {
		t.Errorf("Vel.X = %v, want negative (toward pointer)", p.Vel.X)
	}
}

func TestBurstDecaysAndExpires(t *testing.T) {
	s := NewPointerState()
	s.Move(0, 0, 0, 0)
	s.Press(ButtonLeft)

	if !s.burstActive() {
		t.Fatal("burst should be active right after the press")
	}

	// A fresh burst pushes harder than one near the end of its window.
	early := &Particle{Rest: pix.V2(50, 0), Size: 20, SwayLimit: 1}
	pointerModel().Apply(early, s, 1.0/60)

	s.Tick(0.15)
	late := &Particle{Rest: pix.V2(50, 0), Size: 20, SwayLimit: 1}
	pointerModel().Apply(late, s, 1.0/60)

	if late.Vel.X >= early.Vel.X {
		t.Errorf("late burst push %v should be weaker than early %v", late.Vel.X, early.Vel.X)
	}

	s.Tick(0.1)
	if s.burstActive() {
		t.Error("burst should expire after 0.2s")
	}
	if s.BurstMode != BurstNone {
		t.Error("burst mode should reset to none on expiry")
	}
}

func TestInfluenceFalloff(t *testing.T) {
	s := NewPointerState()
	s.Move(0, 0, 0, 0)
	m := pointerModel()

	near := &Particle{Rest: pix.V2(30, 0), Size: 20, SwayLimit: 1}
	far := &Particle{Rest: pix.V2(120, 0), Size: 20, SwayLimit: 1}
	outside := &Particle{Rest: pix.V2(200, 0), Size: 20, SwayLimit: 1}

	m.Apply(near, s, 1.0/60)
	m.Apply(far, s, 1.0/60)
	m.Apply(outside, s, 1.0/60)

	if near.Vel.X <= far.Vel.X {
		t.Errorf("near push %v should exceed far push %v", near.Vel.X, far.Vel.X)
	}
	if !outside.Vel.IsZero() {
		t.Errorf("particle outside the radius got velocity %v", outside.Vel)
	}
}

func TestIdleRepulsionDampsUpwardComponent(t *testing.T) {
	s := NewPointerState()
	s.Move(0, 0, 0, 0)
	m := pointerModel()

	above := &Particle{Rest: pix.V2(0, -50), Size: 20, SwayLimit: 1} // pushed up
	below := &Particle{Rest: pix.V2(0, 50), Size: 20, SwayLimit: 1}  // pushed down

	m.Apply(above, s, 1.0/60)
	m.Apply(below, s, 1.0/60)

	if -above.Vel.Y >= below.Vel.Y {
		t.Errorf("upward push %v should be weaker than downward %v", -above.Vel.Y, below.Vel.Y)
	}
}

func TestDragModeFollowsPointerVelocity(t *testing.T) {
	s := NewPointerState()
	s.Move(0, 0, 800, 0) // fast horizontal swipe, no burst

	p := &Particle{Rest: pix.V2(0, 40), Size: 20, SwayLimit: 1}
	pointerModel().Apply(p, s, 1.0/60)

	if p.Vel.X <= 0 {
		t.Errorf("Vel.X = %v, want positive (along swipe)", p.Vel.X)
	}
}

func TestImpulseTransferAndSpin(t *testing.T) {
	s := NewPointerState()
	s.Move(0, 0, 0, 500) // pointer moving straight down

	p := &Particle{Rest: pix.V2(40, 0), Size: 20, SwayLimit: 1}
	pointerModel().Apply(p, s, 1.0/60)

	if p.Vel.Y <= 0 {
		t.Errorf("Vel.Y = %v, want downward velocity transfer", p.Vel.Y)
	}
	// rel=(40,0), ptrVel=(0,500): cross = 40·500 > 0 → positive spin.
	if p.SpinVel <= 0 {
		t.Errorf("SpinVel = %v, want positive from cross product", p.SpinVel)
	}
}

func TestGrabAndRelease(t *testing.T) {
	s := NewPointerState()
	s.Move(100, 100, 0, 0)
	m := pointerModel()

	inRange := &Particle{Rest: pix.V2(130, 100), Size: 20, Vel: pix.V2(50, 50), SwayLimit: 1}
	outOfRange := &Particle{Rest: pix.V2(300, 100), Size: 20, SwayLimit: 1}
	particles := []*Particle{inRange, outOfRange}

	m.TryGrab(particles, s)

	if !inRange.IsGrabbed {
		t.Fatal("particle within half radius should be grabbed")
	}
	if outOfRange.IsGrabbed {
		t.Fatal("particle beyond half radius should stay free")
	}
	if !inRange.Vel.IsZero() {
		t.Error("grab should zero velocity")
	}
	if inRange.SwayLimit != 0 {
		t.Error("grab should zero the sway limit")
	}

	// Grabbed particles track the pointer with their offset preserved.
	s.Move(200, 150, 0, 0)
	m.Apply(inRange, s, 1.0/60)
	want := pix.V2(230, 150)
	if !inRange.Rest.Approx(want, 1e-9) {
		t.Errorf("grabbed particle at %v, want %v", inRange.Rest, want)
	}

	m.ReleaseGrab(particles)
	if inRange.IsGrabbed {
		t.Error("release should free the particle")
	}
}

func TestPointerLeaveClearsState(t *testing.T) {
	s := NewPointerState()
	s.Move(0, 0, 100, 0)
	s.Press(ButtonLeft)
	s.Leave()

	if s.Present {
		t.Error("pointer should be marked absent")
	}
	if len(s.Buttons) != 0 {
		t.Error("leave should clear pressed buttons")
	}

	// An absent pointer exerts no force.
	p := &Particle{Rest: pix.V2(10, 0), Size: 20, SwayLimit: 1}
	pointerModel().Apply(p, s, 1.0/60)
	if !p.Vel.IsZero() {
		t.Errorf("absent pointer applied velocity %v", p.Vel)
	}
}
