package snowfield

import (
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/gogpu/snowfield/internal/pix"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SnowLetters = []string{"o", "x"}
	cfg.Snowmax = 10
	return cfg
}

func testSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	s, err := New(cfg,
		WithCPUBackend(),
		WithViewport(200, 150, 1),
		WithFrameRate(120),
		WithRandSource(rand.New(rand.NewPCG(3, 5))),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Stop)
	return s
}

func TestSessionLifecycle(t *testing.T) {
	s := testSession(t, testConfig())

	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if !s.Running() {
		t.Error("session should be running after Start")
	}
	if err := s.Start(); !errors.Is(err, ErrSessionRunning) {
		t.Errorf("second Start = %v, want ErrSessionRunning", err)
	}

	time.Sleep(50 * time.Millisecond)
	img := s.Frame()
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 150 {
		t.Errorf("frame bounds = %v, want 200x150", img.Bounds())
	}

	s.Stop()
	if s.Running() {
		t.Error("session should not be running after Stop")
	}
	if err := s.Start(); !errors.Is(err, ErrSessionStopped) {
		t.Errorf("Start after Stop = %v, want ErrSessionStopped", err)
	}
	s.Stop() // idempotent
}

func TestSessionPauseResume(t *testing.T) {
	s := testSession(t, testConfig())
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)

	s.Pause()
	if s.Running() {
		t.Error("session should not report running while paused")
	}
	s.mu.Lock()
	frozen := s.clock
	s.mu.Unlock()

	time.Sleep(30 * time.Millisecond)
	s.mu.Lock()
	still := s.clock
	s.mu.Unlock()
	if still != frozen {
		t.Error("clock advanced while paused")
	}

	s.Resume()
	time.Sleep(30 * time.Millisecond)
	s.mu.Lock()
	resumed := s.clock
	s.mu.Unlock()
	if resumed <= frozen {
		t.Error("clock did not advance after Resume")
	}
	// The pause gap itself must not have been integrated: the clock
	// advanced by roughly the post-resume wall time, not the gap.
	if resumed-frozen > 0.1 {
		t.Errorf("clock jumped %v over a ~30ms resume window", resumed-frozen)
	}
}

func TestSessionPatchAppliedAtFrameStart(t *testing.T) {
	s := testSession(t, testConfig())
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	count := 5
	s.UpdateConfig(&Patch{Snowmax: &count})

	deadline := time.Now().Add(time.Second)
	for {
		s.mu.Lock()
		n := len(s.particles)
		s.mu.Unlock()
		if n == count {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("particle count = %d, want %d after patch", n, count)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSessionPatchRetunesImageLayer(t *testing.T) {
	cfg := testConfig()
	cfg.GifURLs = []string{"http://invalid.test/x.png"}
	cfg.GifCount = 3
	cfg.WindEnabled = false
	s := testSession(t, cfg)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	// Pause the scheduler and drive frames by hand, deterministically.
	s.Pause()

	enabled := true
	strength := 500.0
	dir := WindRight
	s.UpdateConfig(&Patch{
		WindEnabled:   &enabled,
		WindStrength:  &strength,
		WindDirection: &dir,
	})

	for i := 0; i < 600; i++ {
		s.step(1.0 / 60)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	moved := false
	for _, b := range s.layer.Bodies() {
		if b.Velocity().X > 1 {
			moved = true
		}
	}
	if !moved {
		t.Error("wind patch never reached the image layer")
	}
}

func TestSessionGrabAndRelease(t *testing.T) {
	s := testSession(t, testConfig())

	s.mu.Lock()
	s.particles[0].Rest = pix.V2(100, 75)
	s.mu.Unlock()

	s.OnMouseDown(100, 75, MouseLeft)
	s.mu.Lock()
	grabbed := s.particles[0].IsGrabbed
	s.mu.Unlock()
	if !grabbed {
		t.Fatal("particle under the pointer should be grabbed on left press")
	}

	s.OnMouseUp(MouseLeft)
	s.mu.Lock()
	grabbed = s.particles[0].IsGrabbed
	s.mu.Unlock()
	if grabbed {
		t.Error("release should drop the grab")
	}
}

func TestSessionMouseLeaveClearsState(t *testing.T) {
	s := testSession(t, testConfig())

	s.mu.Lock()
	s.particles[0].Rest = pix.V2(100, 75)
	s.mu.Unlock()

	s.OnMouseDown(100, 75, MouseLeft)
	s.OnMouseLeave()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.particles[0].IsGrabbed {
		t.Error("leave should drop grabs")
	}
	if s.ptr.Present {
		t.Error("leave should mark the pointer off-surface")
	}
}

func TestSessionRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.SinkSpeed = -1
	if _, err := New(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("New = %v, want ErrInvalidConfig", err)
	}
}

func TestSessionBackground(t *testing.T) {
	s := testSession(t, testConfig())

	s.SetBackground("#ffffff")
	s.mu.Lock()
	lum := s.bgLuminance
	s.mu.Unlock()
	if lum < 0.99 {
		t.Errorf("white background luminance = %v, want ~1", lum)
	}

	s.SetBackground("#000000")
	s.mu.Lock()
	lum = s.bgLuminance
	s.mu.Unlock()
	if lum > 0.01 {
		t.Errorf("black background luminance = %v, want ~0", lum)
	}
}

func TestSessionResize(t *testing.T) {
	s := testSession(t, testConfig())
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	if err := s.Resize(300, 200); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)
	img := s.Frame()
	if img.Bounds().Dx() != 300 || img.Bounds().Dy() != 200 {
		t.Errorf("frame bounds = %v after resize, want 300x200", img.Bounds())
	}

	if err := s.Resize(0, 10); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Resize(0, 10) = %v, want ErrInvalidConfig", err)
	}
}

func TestSessionViewportScale(t *testing.T) {
	cfg := testConfig()
	s, err := New(cfg,
		WithCPUBackend(),
		WithViewport(100, 100, 2),
		WithRandSource(rand.New(rand.NewPCG(1, 1))),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Stop)

	if s.pixelW() != 200 || s.pixelH() != 200 {
		t.Errorf("pixel size = %dx%d, want 200x200", s.pixelW(), s.pixelH())
	}

	// Pointer input arrives in logical coordinates and is scaled.
	s.UpdateMousePosition(50, 50, 0, 0)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ptr.Pos.X != 100 || s.ptr.Pos.Y != 100 {
		t.Errorf("pointer = %v, want (100, 100) in device px", s.ptr.Pos)
	}
}
