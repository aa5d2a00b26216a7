package snowfield

import (
	"fmt"
	"image"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/snowfield/internal/atlas"
	"github.com/gogpu/snowfield/internal/overlay"
	"github.com/gogpu/snowfield/internal/physics"
	"github.com/gogpu/snowfield/internal/pix"
	"github.com/gogpu/snowfield/internal/render"
)

// MouseButton identifies a pointer button in the input API.
type MouseButton int

const (
	MouseLeft MouseButton = iota
	MouseRight
	MouseMiddle
)

func (b MouseButton) physical() physics.MouseButton {
	switch b {
	case MouseRight:
		return physics.ButtonRight
	case MouseMiddle:
		return physics.ButtonMiddle
	default:
		return physics.ButtonLeft
	}
}

// Option configures a Session at creation time.
type Option func(*Session)

// WithViewport sets the logical viewport size and the device pixel
// scale. The default is 1920x1080 at scale 1.
func WithViewport(width, height int, scale float64) Option {
	return func(s *Session) {
		if width > 0 {
			s.logicalW = width
		}
		if height > 0 {
			s.logicalH = height
		}
		if scale > 0 {
			s.scale = scale
		}
	}
}

// WithDeviceProvider shares a host application's GPU device instead of
// opening a dedicated one. The session never destroys a shared device.
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(s *Session) { s.provider = p }
}

// WithCPUBackend skips GPU probing entirely and renders on the CPU.
func WithCPUBackend() Option {
	return func(s *Session) { s.cpuOnly = true }
}

// WithFrameRate overrides the 60Hz frame scheduler rate.
func WithFrameRate(fps float64) Option {
	return func(s *Session) { s.fps = fps }
}

// WithRandSource seeds the session's randomness, for reproducible runs.
func WithRandSource(rng *rand.Rand) Option {
	return func(s *Session) { s.rng = rng }
}

// Session is one animation surface: a particle field, an optional image
// layer, and a render backend, advanced by the frame scheduler. Create
// one session per surface; sessions are independent.
type Session struct {
	mu sync.Mutex

	cfg      Config
	logicalW int
	logicalH int
	scale    float64
	fps      float64

	provider gpucontext.DeviceProvider
	cpuOnly  bool
	rng      *rand.Rand

	atlas      *atlas.Atlas
	integrator *physics.Integrator
	particles  []*physics.Particle
	layer      *overlay.Layer
	ptr        *physics.PointerState

	backend render.Backend
	sched   *render.Scheduler
	frame   *pix.Pixmap

	clock       float64
	bgLuminance float64

	pending []*Patch
	running bool
	paused  bool
	stopped bool
}

// New validates the configuration, builds the atlas and the particle
// populations, and returns a session ready to Start. The render backend
// is not opened until Start.
func New(cfg Config, opts ...Option) (*Session, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		cfg:      cfg,
		logicalW: 1920,
		logicalH: 1080,
		scale:    1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		now := uint64(time.Now().UnixNano()) //nolint:gosec // simulation jitter, not security
		s.rng = rand.New(rand.NewPCG(now, now^0x9e3779b97f4a7c15))
	}

	a, err := atlas.Build(atlas.BuildParams{
		Letters:   cfg.SnowLetters,
		Sentences: cfg.SnowSentences,
	})
	if err != nil {
		return nil, fmt.Errorf("build atlas: %w", err)
	}
	s.atlas = a
	Logger().Info("atlas built",
		"glyphs", a.GlyphCount(), "sentences", a.SentenceCount(),
		"width", a.Pixmap().Width(), "height", a.Pixmap().Height())

	s.integrator = physics.NewIntegrator(s.spawnParams(), s.rng)
	s.applyModels()
	s.particles = s.integrator.SpawnField(cfg.Snowmax, cfg.SentenceCount)
	s.layer = s.newLayer()
	s.ptr = physics.NewPointerState()
	s.sched = render.NewScheduler(s.fps)
	s.frame = pix.NewPixmap(s.pixelW(), s.pixelH())
	return s, nil
}

func (s *Session) pixelW() int { return int(float64(s.logicalW) * s.scale) }
func (s *Session) pixelH() int { return int(float64(s.logicalH) * s.scale) }

func (s *Session) spawnParams() physics.SpawnParams {
	return physics.SpawnParams{
		ViewportW:     float64(s.pixelW()),
		ViewportH:     float64(s.pixelH()),
		MinSize:       s.cfg.SnowMinSize * s.scale,
		MaxSize:       s.cfg.SnowMaxSize * s.scale,
		SinkSpeed:     s.cfg.SinkSpeed,
		GlyphCount:    s.atlas.GlyphCount(),
		SentenceCount: s.atlas.SentenceCount(),
		Colors:        s.palette(),
	}
}

func (s *Session) palette() []pix.RGBA {
	colors := make([]pix.RGBA, 0, len(s.cfg.SnowColor))
	for _, hex := range s.cfg.SnowColor {
		colors = append(colors, pix.Hex(hex))
	}
	return colors
}

func (s *Session) pointerModel() physics.PointerModel {
	return physics.PointerModel{
		Radius:          s.cfg.MouseRadius * s.scale,
		Force:           s.cfg.MouseForce,
		ImpulseStrength: s.cfg.MouseImpulseStrength,
		DragThreshold:   s.cfg.MouseDragThreshold,
		DragStrength:    s.cfg.MouseDragStrength,
	}
}

func (s *Session) windModel() physics.WindModel {
	return physics.WindModel{
		Enabled:   s.cfg.WindEnabled,
		Direction: string(s.cfg.WindDirection),
		Strength:  s.cfg.WindStrength,
		GustFreq:  s.cfg.WindGustFrequency,
	}
}

// applyModels pushes the current configuration into the integrator's
// force models. Wind phase survives re-application: only the tuning
// fields are overwritten.
func (s *Session) applyModels() {
	s.integrator.Pointer = s.pointerModel()

	wind := s.windModel()
	wind.AdoptState(&s.integrator.Wind)
	s.integrator.Wind = wind

	s.integrator.Resolver = physics.Resolver{
		Enabled:     s.cfg.EnableCollisions,
		Restitution: s.cfg.CollisionDamping,
		CheckRadius: s.cfg.CollisionCheckRadius * s.scale,
	}
	s.integrator.Spawn = s.spawnParams()
}

func (s *Session) newLayer() *overlay.Layer {
	return overlay.NewLayer(overlay.Params{
		URLs:      s.cfg.GifURLs,
		Count:     s.cfg.GifCount,
		ViewportW: float64(s.pixelW()),
		ViewportH: float64(s.pixelH()),
		MinSize:   s.cfg.SnowMinSize * s.scale,
		MaxSize:   s.cfg.SnowMaxSize * s.scale,
		SinkSpeed: s.cfg.SinkSpeed,
		Pointer:   s.pointerModel(),
		Wind:      s.windModel(),
	}, s.rng)
}

// Start opens the render backend (GPU first, CPU on failure) and begins
// the frame loop.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrSessionStopped
	}
	if s.running {
		s.mu.Unlock()
		return ErrSessionRunning
	}
	if s.backend == nil {
		backend, err := s.selectBackend()
		if err != nil {
			s.mu.Unlock()
			return err
		}
		s.backend = backend
	}
	s.running = true
	s.paused = false
	s.mu.Unlock()

	s.sched.Start(s.step)
	return nil
}

// selectBackend probes the GPU path and falls back to the CPU
// rasterizer on any failure. Must be called with s.mu held.
func (s *Session) selectBackend() (render.Backend, error) {
	w, h := s.pixelW(), s.pixelH()
	if !s.cpuOnly {
		var provider any
		if s.provider != nil {
			provider = s.provider
		}
		gb, err := render.NewGPUBackend(provider, w, h)
		if err == nil {
			if err = gb.SetAtlas(s.atlas); err == nil {
				Logger().Info("render backend selected", "backend", gb.Name())
				return gb, nil
			}
			gb.Close()
		}
		Logger().Warn("gpu backend unavailable, using cpu", "error", err)
	}

	cb, err := render.NewCPUBackend(w, h)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoBackend, err)
	}
	if err := cb.SetAtlas(s.atlas); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoBackend, err)
	}
	Logger().Info("render backend selected", "backend", cb.Name())
	return cb, nil
}

// step is the per-frame callback: apply pending patches, advance both
// particle populations, render, and composite the image layer.
func (s *Session) step(dt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backend == nil {
		return
	}

	if len(s.pending) > 0 {
		s.applyPatches()
	}

	s.clock += dt
	s.integrator.Step(s.particles, s.layer.Bodies(), s.ptr, dt)
	s.layer.Step(s.ptr, dt)

	frame := render.Frame{
		Particles:   s.particles,
		Time:        s.clock,
		BgLuminance: s.bgLuminance,
	}
	if err := s.backend.Render(&frame, s.frame); err != nil {
		Logger().Warn("frame render failed", "backend", s.backend.Name(), "error", err)
		if s.backend.Name() != "cpu" {
			// A GPU backend that fails mid-run is not coming back.
			s.backend.Close()
			s.cpuOnly = true
			backend, berr := s.selectBackend()
			if berr != nil {
				Logger().Error("no render backend available", "error", berr)
			}
			s.backend = backend
		}
		return
	}
	s.layer.Draw(s.frame)
}

// applyPatches merges queued patches into the config and reconfigures
// the simulation. Must be called with s.mu held.
func (s *Session) applyPatches() {
	old := s.cfg
	for _, p := range s.pending {
		p.Apply(&s.cfg)
	}
	s.pending = s.pending[:0]

	if !slices.Equal(old.SnowLetters, s.cfg.SnowLetters) ||
		!slices.Equal(old.SnowSentences, s.cfg.SnowSentences) {
		a, err := atlas.Build(atlas.BuildParams{
			Letters:   s.cfg.SnowLetters,
			Sentences: s.cfg.SnowSentences,
		})
		if err != nil {
			Logger().Warn("atlas rebuild failed, keeping previous", "error", err)
		} else if err := s.backend.SetAtlas(a); err != nil {
			Logger().Warn("atlas upload failed, keeping previous", "error", err)
		} else {
			s.atlas = a
		}
	}

	s.applyModels()

	if old.Snowmax != s.cfg.Snowmax || old.SentenceCount != s.cfg.SentenceCount ||
		!slices.Equal(old.SnowLetters, s.cfg.SnowLetters) ||
		!slices.Equal(old.SnowSentences, s.cfg.SnowSentences) {
		s.particles = s.integrator.SpawnField(s.cfg.Snowmax, s.cfg.SentenceCount)
	}

	if old.GifCount != s.cfg.GifCount || !slices.Equal(old.GifURLs, s.cfg.GifURLs) {
		s.layer.Close()
		s.layer = s.newLayer()
	} else {
		s.layer.SetModels(s.pointerModel(), s.windModel())
	}
}

// Pause suspends the frame loop without releasing any resources. The
// delta clock re-baselines on Resume, so the pause gap is never
// integrated.
func (s *Session) Pause() {
	s.mu.Lock()
	if !s.running || s.paused {
		s.mu.Unlock()
		return
	}
	s.paused = true
	s.mu.Unlock()

	s.sched.Stop()
}

// Resume restarts a paused frame loop.
func (s *Session) Resume() {
	s.mu.Lock()
	if !s.running || !s.paused {
		s.mu.Unlock()
		return
	}
	s.paused = false
	s.mu.Unlock()

	s.sched.Start(s.step)
}

// Stop halts the frame loop and releases the backend and the image
// layer. A stopped session cannot be restarted.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.running = false
	s.mu.Unlock()

	s.sched.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backend != nil {
		s.backend.Close()
		s.backend = nil
	}
	s.layer.Close()
}

// UpdateMousePosition feeds pointer motion in logical coordinates with
// velocity in logical px/s.
func (s *Session) UpdateMousePosition(x, y, vx, vy float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ptr.Move(x*s.scale, y*s.scale, vx*s.scale, vy*s.scale)
}

// OnMouseDown registers a button press at the given logical position.
// A left press arms the burst window and grabs nearby particles; a
// right press arms the suction burst.
func (s *Session) OnMouseDown(x, y float64, button MouseButton) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ptr.Move(x*s.scale, y*s.scale, s.ptr.Vel.X, s.ptr.Vel.Y)
	s.ptr.Press(button.physical())
	if button == MouseLeft {
		s.integrator.Pointer.TryGrab(s.particles, s.ptr)
	}
}

// OnMouseUp registers a button release. Releasing the left button drops
// every grabbed particle.
func (s *Session) OnMouseUp(button MouseButton) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ptr.Release(button.physical())
	if button == MouseLeft {
		s.integrator.Pointer.ReleaseGrab(s.particles)
	}
}

// OnMouseLeave marks the pointer as off-surface, clears all pressed
// buttons, and drops grabs.
func (s *Session) OnMouseLeave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ptr.Leave()
	s.integrator.Pointer.ReleaseGrab(s.particles)
}

// UpdateConfig queues a partial configuration update. Patches are
// merged atomically at the top of the next frame, in submission order.
func (s *Session) UpdateConfig(p *Patch) {
	if p == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, p)
}

// SetBackground tells the session the luminance of the page behind the
// overlay; the glow is suppressed over light backgrounds. Accepts a hex
// color such as "#1a1a2e".
func (s *Session) SetBackground(hex string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bgLuminance = pix.Hex(hex).RelativeLuminance()
}

// Resize changes the logical viewport. Particle positions are kept;
// the wrap and recycle edges move with the new size.
func (s *Session) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: viewport %dx%d", ErrInvalidConfig, width, height)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logicalW = width
	s.logicalH = height
	w, h := s.pixelW(), s.pixelH()
	if s.backend != nil {
		if err := s.backend.Resize(w, h); err != nil {
			return fmt.Errorf("resize backend: %w", err)
		}
	}
	s.frame = pix.NewPixmap(w, h)
	s.integrator.Spawn.ViewportW = float64(w)
	s.integrator.Spawn.ViewportH = float64(h)
	s.layer.Resize(float64(w), float64(h))
	return nil
}

// Frame returns a copy of the most recently rendered overlay frame.
func (s *Session) Frame() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame.ToImage()
}

// Running reports whether the frame loop is active (started, not paused,
// not stopped).
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && !s.paused
}
