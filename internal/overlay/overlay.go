// Package overlay implements the secondary image-particle layer: a small
// population of image-backed particles that shares the force models and
// the collision resolver with the primary glyph field. Assets load
// asynchronously; the layer starts simulating immediately with
// transparent placeholders and never blocks session startup.
package overlay

import (
	"context"
	"math"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/gogpu/snowfield/internal/physics"
	"github.com/gogpu/snowfield/internal/pix"
)

const (
	defaultFetchTimeout = 10 * time.Second
	fetchConcurrency    = 4
)

// Params configures the image layer.
type Params struct {
	URLs  []string // image assets; one sprite each, particles cycle over them
	Count int      // particle count

	ViewportW float64
	ViewportH float64
	MinSize   float64
	MaxSize   float64
	SinkSpeed float64

	Pointer physics.PointerModel
	Wind    physics.WindModel

	// FetchTimeout bounds each asset download. 0 means the default.
	FetchTimeout time.Duration

	// Client overrides the HTTP client, for tests. nil uses a default
	// client with FetchTimeout.
	Client *http.Client
}

// Layer is the image-particle population. Collision with the glyph field
// happens inside the primary integrator's merged resolve; the layer's
// own step only applies forces, motion, and recycling.
type Layer struct {
	integrator *physics.Integrator
	particles  []*physics.Particle

	mu      sync.RWMutex
	sprites []*pix.Pixmap // indexed by particle GlyphIndex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLayer spawns the particle population and kicks off the asset
// fetches in the background. It returns immediately.
func NewLayer(p Params, rng *rand.Rand) *Layer {
	if p.Count < 0 {
		p.Count = 0
	}
	if len(p.URLs) == 0 {
		p.Count = 0
	}

	spawn := physics.SpawnParams{
		ViewportW:  p.ViewportW,
		ViewportH:  p.ViewportH,
		MinSize:    p.MinSize,
		MaxSize:    p.MaxSize,
		SinkSpeed:  p.SinkSpeed,
		GlyphCount: len(p.URLs),
		Colors:     []pix.RGBA{pix.White},
	}
	it := physics.NewIntegrator(spawn, rng)
	it.Pointer = p.Pointer
	it.Wind = p.Wind
	// The merged resolve runs in the primary field's step; resolving
	// here as well would apply every contact twice per frame.
	it.Resolver = physics.Resolver{Enabled: false}

	l := &Layer{
		integrator: it,
		particles:  it.SpawnField(p.Count, 0),
		sprites:    make([]*pix.Pixmap, len(p.URLs)),
	}
	for i := range l.sprites {
		l.sprites[i] = placeholderSprite()
	}

	if p.Count > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		l.cancel = cancel
		l.fetchAll(ctx, p)
	}
	return l
}

func (l *Layer) fetchAll(ctx context.Context, p Params) {
	timeout := p.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	sem := make(chan struct{}, fetchConcurrency)
	for i, url := range p.URLs {
		l.wg.Add(1)
		go func(idx int, url string) {
			defer l.wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			fetchCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			sprite, err := fetchSprite(fetchCtx, client, url)
			if err != nil {
				slogger().Warn("image asset fetch failed", "url", url, "error", err)
				return
			}
			l.mu.Lock()
			l.sprites[idx] = sprite
			l.mu.Unlock()
			slogger().Debug("image asset loaded", "url", url)
		}(i, url)
	}
}

// Step advances the layer by dt. The pointer state is copied so the
// burst timer, which the primary step already advanced this frame, is
// not decayed twice.
func (l *Layer) Step(ptr *physics.PointerState, dt float64) {
	if len(l.particles) == 0 {
		return
	}
	scratch := *ptr
	l.integrator.Step(l.particles, nil, &scratch, dt)
}

// Bodies returns the layer particles as collision bodies for the
// primary field's merged resolve. The primary integrator borrows the
// slice for the call and never reorders or recycles it.
func (l *Layer) Bodies() []physics.Body {
	bodies := make([]physics.Body, len(l.particles))
	for i, p := range l.particles {
		bodies[i] = p
	}
	return bodies
}

// SetModels pushes retuned force models into the layer's integrator.
// Wind synthesis state is carried over so the gust signal the layer
// feels keeps the phase of the one it replaces.
func (l *Layer) SetModels(pointer physics.PointerModel, wind physics.WindModel) {
	l.integrator.Pointer = pointer
	wind.AdoptState(&l.integrator.Wind)
	l.integrator.Wind = wind
}

// Resize updates the viewport the layer wraps and recycles against.
func (l *Layer) Resize(w, h float64) {
	l.integrator.Spawn.ViewportW = w
	l.integrator.Spawn.ViewportH = h
}

// Draw composites every image particle over dst.
func (l *Layer) Draw(dst *pix.Pixmap) {
	if len(l.particles) == 0 {
		return
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, p := range l.particles {
		if p.GlyphIndex < 0 || p.GlyphIndex >= len(l.sprites) {
			continue
		}
		drawSprite(dst, l.sprites[p.GlyphIndex], p)
	}
}

// Close stops in-flight fetches and waits for their goroutines.
func (l *Layer) Close() {
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.wg.Wait()
}

// drawSprite blits the sprite rotated and scaled to the particle's size
// with bilinear sampling.
func drawSprite(dst *pix.Pixmap, sprite *pix.Pixmap, p *physics.Particle) {
	pos := p.RenderPos()
	half := p.Size / 2
	bound := half * math.Sqrt2
	x0 := int(math.Floor(pos.X - bound))
	x1 := int(math.Ceil(pos.X + bound))
	y0 := int(math.Floor(pos.Y - bound))
	y1 := int(math.Ceil(pos.Y + bound))
	if x1 < 0 || y1 < 0 || x0 >= dst.Width() || y0 >= dst.Height() {
		return
	}

	cosR := math.Cos(-p.Rotation)
	sinR := math.Sin(-p.Rotation)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			ox := float64(x) + 0.5 - pos.X
			oy := float64(y) + 0.5 - pos.Y
			lx := (ox*cosR - oy*sinR) / p.Size
			ly := (ox*sinR + oy*cosR) / p.Size
			if math.Abs(lx) > 0.5 || math.Abs(ly) > 0.5 {
				continue
			}
			texel := sampleSprite(sprite, lx+0.5, ly+0.5)
			if texel.A > 0 {
				dst.BlendPixel(x, y, texel)
			}
		}
	}
}

// sampleSprite bilinearly samples the sprite at normalized (u, v).
func sampleSprite(pm *pix.Pixmap, u, v float64) pix.RGBA {
	fx := u*float64(pm.Width()) - 0.5
	fy := v*float64(pm.Height()) - 0.5
	x := int(math.Floor(fx))
	y := int(math.Floor(fy))
	tx := fx - float64(x)
	ty := fy - float64(y)

	clampPixel := func(x, y int) pix.RGBA {
		if x < 0 {
			x = 0
		}
		if x > pm.Width()-1 {
			x = pm.Width() - 1
		}
		if y < 0 {
			y = 0
		}
		if y > pm.Height()-1 {
			y = pm.Height() - 1
		}
		return pm.GetPixel(x, y)
	}

	c00 := clampPixel(x, y)
	c10 := clampPixel(x+1, y)
	c01 := clampPixel(x, y+1)
	c11 := clampPixel(x+1, y+1)

	lerp := func(a, b, t float64) float64 { return a + (b-a)*t }
	return pix.RGBA{
		R: lerp(lerp(c00.R, c10.R, tx), lerp(c01.R, c11.R, tx), ty),
		G: lerp(lerp(c00.G, c10.G, tx), lerp(c01.G, c11.G, tx), ty),
		B: lerp(lerp(c00.B, c10.B, tx), lerp(c01.B, c11.B, tx), ty),
		A: lerp(lerp(c00.A, c10.A, tx), lerp(c01.A, c11.A, tx), ty),
	}
}
