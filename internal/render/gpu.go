package render

import (
	"fmt"

	"github.com/gogpu/snowfield/internal/atlas"
	"github.com/gogpu/snowfield/internal/gpu"
	"github.com/gogpu/snowfield/internal/pix"
)

// GPUBackend renders through the instanced wgpu pipeline and reads each
// frame back into the destination pixmap.
type GPUBackend struct {
	dev      *gpu.Device
	renderer *gpu.Renderer
	atlas    *atlas.Atlas
	scratch  []byte
}

// NewGPUBackend opens a GPU device and builds the particle pipeline.
// provider, when non-nil, shares an embedding application's device
// instead of opening a new one.
func NewGPUBackend(provider any, width, height int) (*GPUBackend, error) {
	dev, err := gpu.NewDevice(provider)
	if err != nil {
		return nil, fmt.Errorf("open device: %w", err)
	}
	renderer, err := gpu.NewRenderer(dev, width, height)
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("create renderer: %w", err)
	}
	return &GPUBackend{dev: dev, renderer: renderer}, nil
}

func (b *GPUBackend) Name() string { return "gpu" }

func (b *GPUBackend) SetAtlas(a *atlas.Atlas) error {
	if err := b.renderer.UploadAtlas(a.Pixmap(), UVRects(a)); err != nil {
		return fmt.Errorf("upload atlas: %w", err)
	}
	b.atlas = a
	return nil
}

func (b *GPUBackend) Resize(width, height int) error {
	return b.renderer.Resize(width, height)
}

func (b *GPUBackend) Render(f *Frame, dst *pix.Pixmap) error {
	if b.atlas == nil {
		return fmt.Errorf("render before atlas upload")
	}
	b.scratch = PackInstances(b.scratch, f.Particles, b.atlas)
	u := gpu.Uniforms{
		ViewportW:   float32(dst.Width()),
		ViewportH:   float32(dst.Height()),
		Time:        float32(f.Time),
		BgLuminance: float32(f.BgLuminance),
		GlyphCount:  float32(b.atlas.GlyphCount()),
	}
	return b.renderer.Render(b.scratch, len(f.Particles), u, dst)
}

func (b *GPUBackend) Close() {
	if b.renderer != nil {
		b.renderer.Destroy()
		b.renderer = nil
	}
	if b.dev != nil {
		b.dev.Close()
		b.dev = nil
	}
}
