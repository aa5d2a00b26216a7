package render

import (
	"testing"

	"github.com/gogpu/snowfield/internal/physics"
	"github.com/gogpu/snowfield/internal/pix"
)

func frameAlpha(pm *pix.Pixmap) float64 {
	var sum float64
	data := pm.Data()
	for i := 3; i < len(data); i += 4 {
		sum += float64(data[i])
	}
	return sum
}

func TestCPUBackendDrawsParticle(t *testing.T) {
	a := testAtlas(t)
	b, err := NewCPUBackend(100, 100)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if err := b.SetAtlas(a); err != nil {
		t.Fatal(err)
	}

	p := &physics.Particle{
		Rest:      pix.V2(50, 50),
		Size:      30,
		SwayLimit: 1,
		Color:     pix.White,
	}
	dst := pix.NewPixmap(100, 100)
	if err := b.Render(&Frame{Particles: []*physics.Particle{p}}, dst); err != nil {
		t.Fatal(err)
	}
	if frameAlpha(dst) == 0 {
		t.Error("expected ink in the rendered frame")
	}
}

func TestCPUBackendRotationKeepsInk(t *testing.T) {
	a := testAtlas(t)
	b, _ := NewCPUBackend(100, 100)
	if err := b.SetAtlas(a); err != nil {
		t.Fatal(err)
	}

	p := &physics.Particle{
		Rest:      pix.V2(50, 50),
		Size:      30,
		Rotation:  0.7,
		SwayLimit: 1,
		Color:     pix.White,
	}
	dst := pix.NewPixmap(100, 100)
	if err := b.Render(&Frame{Particles: []*physics.Particle{p}}, dst); err != nil {
		t.Fatal(err)
	}
	if frameAlpha(dst) == 0 {
		t.Error("expected ink after rotation")
	}
}

func TestCPUBackendGlowGatedByLuminance(t *testing.T) {
	a := testAtlas(t)
	b, _ := NewCPUBackend(100, 100)
	if err := b.SetAtlas(a); err != nil {
		t.Fatal(err)
	}

	p := &physics.Particle{
		Rest:      pix.V2(50, 50),
		Size:      30,
		SwayLimit: 1,
		Color:     pix.White,
	}
	particles := []*physics.Particle{p}

	dark := pix.NewPixmap(100, 100)
	if err := b.Render(&Frame{Particles: particles, BgLuminance: 0.1}, dark); err != nil {
		t.Fatal(err)
	}
	light := pix.NewPixmap(100, 100)
	if err := b.Render(&Frame{Particles: particles, BgLuminance: 0.95}, light); err != nil {
		t.Fatal(err)
	}

	if frameAlpha(dark) <= frameAlpha(light) {
		t.Error("glow should add coverage on dark backgrounds")
	}
}

func TestCPUBackendOffscreenParticleSkipped(t *testing.T) {
	a := testAtlas(t)
	b, _ := NewCPUBackend(100, 100)
	if err := b.SetAtlas(a); err != nil {
		t.Fatal(err)
	}

	p := &physics.Particle{
		Rest:      pix.V2(-500, -500),
		Size:      30,
		SwayLimit: 1,
		Color:     pix.White,
	}
	dst := pix.NewPixmap(100, 100)
	if err := b.Render(&Frame{Particles: []*physics.Particle{p}}, dst); err != nil {
		t.Fatal(err)
	}
	if frameAlpha(dst) != 0 {
		t.Error("offscreen particle left ink in the frame")
	}
}

func TestCPUBackendErrors(t *testing.T) {
	b, _ := NewCPUBackend(100, 100)
	dst := pix.NewPixmap(100, 100)
	if err := b.Render(&Frame{}, dst); err == nil {
		t.Error("expected an error before the atlas is set")
	}

	if err := b.SetAtlas(testAtlas(t)); err != nil {
		t.Fatal(err)
	}
	small := pix.NewPixmap(10, 10)
	if err := b.Render(&Frame{}, small); err == nil {
		t.Error("expected a size mismatch error")
	}

	if _, err := NewCPUBackend(0, 100); err == nil {
		t.Error("expected an error for a zero-width target")
	}
}
