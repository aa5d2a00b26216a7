package pix

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func TestPixmapSetGet(t *testing.T) {
	pm := NewPixmap(10, 10)
	c := RGBA{R: 1, G: 0.5, B: 0, A: 1}
	pm.SetPixel(3, 4, c)

	got := pm.GetPixel(3, 4)
	if math.Abs(got.R-1) > 1.0/255 || math.Abs(got.G-0.5) > 1.0/255 {
		t.Errorf("GetPixel = %+v, want %+v", got, c)
	}
}

func TestPixmapOutOfBounds(t *testing.T) {
	pm := NewPixmap(4, 4)
	// Must not panic.
	pm.SetPixel(-1, 0, White)
	pm.SetPixel(0, -1, White)
	pm.SetPixel(4, 0, White)
	pm.SetPixel(0, 4, White)

	if got := pm.GetPixel(100, 100); got != Transparent {
		t.Errorf("out-of-bounds GetPixel = %+v, want transparent", got)
	}
}

func TestPixmapClear(t *testing.T) {
	pm := NewPixmap(8, 8)
	pm.Clear(RGBA{R: 0, G: 0, B: 1, A: 1})

	for _, pt := range [][2]int{{0, 0}, {7, 7}, {3, 5}} {
		got := pm.GetPixel(pt[0], pt[1])
		if got.B != 1 || got.A != 1 {
			t.Errorf("pixel (%d,%d) = %+v after Clear", pt[0], pt[1], got)
		}
	}
}

func TestPixmapBlendPixel(t *testing.T) {
	pm := NewPixmap(2, 2)
	pm.SetPixel(0, 0, Black)
	pm.BlendPixel(0, 0, RGBA{R: 1, G: 1, B: 1, A: 0.5})

	got := pm.GetPixel(0, 0)
	if math.Abs(got.R-0.5) > 2.0/255 {
		t.Errorf("blended R = %v, want ~0.5", got.R)
	}
	if math.Abs(got.A-1) > 1.0/255 {
		t.Errorf("blended A = %v, want 1", got.A)
	}
}

func TestPixmapAddPixelClamps(t *testing.T) {
	pm := NewPixmap(1, 1)
	pm.SetPixel(0, 0, RGBA{R: 0.9, G: 0.9, B: 0.9, A: 1})
	pm.AddPixel(0, 0, RGBA{R: 0.5, G: 0.5, B: 0.5, A: 1})

	got := pm.GetPixel(0, 0)
	if got.R != 1 || got.G != 1 || got.B != 1 {
		t.Errorf("additive blend should clamp at 1, got %+v", got)
	}
}

func TestPixmapImageRoundTrip(t *testing.T) {
	pm := NewPixmap(4, 4)
	pm.SetPixel(1, 2, RGBA{R: 1, G: 0, B: 0, A: 1})

	back := FromImage(pm.ToImage())
	if back.Width() != 4 || back.Height() != 4 {
		t.Fatalf("round trip dimensions = %dx%d", back.Width(), back.Height())
	}
	got := back.GetPixel(1, 2)
	if got.R != 1 || got.A != 1 {
		t.Errorf("round trip pixel = %+v", got)
	}
}

func TestPixmapFromImageSubRegion(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	src.SetRGBA(5, 5, color.RGBA{R: 255, A: 255})
	sub := src.SubImage(image.Rect(4, 4, 8, 8)).(*image.RGBA)

	pm := FromImage(sub)
	if pm.Width() != 4 || pm.Height() != 4 {
		t.Fatalf("dimensions = %dx%d, want 4x4", pm.Width(), pm.Height())
	}
	if got := pm.GetPixel(1, 1); got.R != 1 || got.A != 1 {
		t.Errorf("pixel (1,1) = %+v, want red", got)
	}
}

func TestPixmapFromNonRGBAImage(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	src.SetNRGBA(2, 0, color.NRGBA{G: 255, A: 255})

	pm := FromImage(src)
	if got := pm.GetPixel(2, 0); got.G != 1 || got.A != 1 {
		t.Errorf("pixel (2,0) = %+v, want green", got)
	}
}
