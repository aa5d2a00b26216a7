package render

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gogpu/snowfield/internal/atlas"
	"github.com/gogpu/snowfield/internal/gpu"
	"github.com/gogpu/snowfield/internal/physics"
	"github.com/gogpu/snowfield/internal/pix"
)

func testAtlas(t *testing.T) *atlas.Atlas {
	t.Helper()
	a, err := atlas.Build(atlas.BuildParams{
		Letters:   []string{"o", "x"},
		Sentences: []string{"hello world"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func instanceField(rec []byte, field int) float64 {
	bits := binary.LittleEndian.Uint32(rec[field*4:])
	return float64(math.Float32frombits(bits))
}

func TestPackInstances(t *testing.T) {
	a := testAtlas(t)
	p := &physics.Particle{
		Rest:       pix.V2(120, 45),
		Size:       24,
		FallSpeed:  60,
		Phase:      1.5,
		Freq:       0.8,
		SwayAmp:    10,
		SwayLimit:  0.5,
		SpinVel:    0.2,
		Rotation:   0.3,
		GlyphIndex: 0,
		Color:      pix.RGBA{R: 1, G: 0.5, B: 0.25, A: 1},
	}

	data := PackInstances(nil, []*physics.Particle{p}, a)
	if len(data) != gpu.InstanceStride {
		t.Fatalf("len = %d, want %d", len(data), gpu.InstanceStride)
	}

	checks := []struct {
		field int
		want  float64
	}{
		{0, 120}, {1, 45}, {2, 24}, {3, 60},
		{4, 1.5}, {5, 0.8},
		{6, 5}, // sway limit folded into amplitude
		{7, 0.3}, {8, 0.2},
		{9, 1}, {10, 0.5}, {11, 0.25},
		{12, 0},
	}
	for _, c := range checks {
		if got := instanceField(data, c.field); math.Abs(got-c.want) > 1e-5 {
			t.Errorf("field %d = %v, want %v", c.field, got, c.want)
		}
	}

	wantMono := 0.0
	if a.Cell(0).Monotone {
		wantMono = 1.0
	}
	if got := instanceField(data, 13); got != wantMono {
		t.Errorf("monotone flag = %v, want %v", got, wantMono)
	}
}

func TestPackInstancesReusesBuffer(t *testing.T) {
	a := testAtlas(t)
	particles := []*physics.Particle{{GlyphIndex: 0}, {GlyphIndex: 1}}

	buf := PackInstances(nil, particles, a)
	again := PackInstances(buf, particles, a)
	if &buf[0] != &again[0] {
		t.Error("expected the scratch buffer to be reused")
	}
	if len(again) != 2*gpu.InstanceStride {
		t.Errorf("len = %d, want %d", len(again), 2*gpu.InstanceStride)
	}
}

func TestUVRects(t *testing.T) {
	a := testAtlas(t)
	rects := UVRects(a)
	if len(rects) != a.CellCount() {
		t.Fatalf("len = %d, want %d", len(rects), a.CellCount())
	}
	for i, r := range rects {
		if r[0] < 0 || r[1] < 0 || r[2] > 1 || r[3] > 1 {
			t.Errorf("rect %d = %v outside [0,1]", i, r)
		}
		if r[2] <= r[0] || r[3] <= r[1] {
			t.Errorf("rect %d = %v is degenerate", i, r)
		}
	}
}
