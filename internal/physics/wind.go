package physics

import (
	"math"

	"github.com/gogpu/snowfield/internal/pix"
)

// Wind tuning constants. The three band amplitudes sum to at most 0.97,
// so the clamped signal stays well inside [-1, 1] most of the time and
// only saturates on constructive gust peaks.
const (
	windLowAmp  = 0.6
	windMidAmp  = 0.25
	windHighAmp = 0.12 // combined budget of the three high-frequency terms

	// windSmoothing is the exponential smoothing factor applied to both
	// the force and lift signals each frame.
	windSmoothing = 0.1

	// windLiftRatio caps vertical lift relative to horizontal strength.
	windLiftRatio = 0.3

	// windReferenceSize is the particle size at which wind applies at
	// exactly configured strength. Smaller particles are pushed more.
	windReferenceSize = 20.0
)

// WindModel synthesizes a turbulent horizontal gust signal from three
// superimposed frequency bands and exposes the smoothed force and lift
// the integrator applies to each particle.
type WindModel struct {
	Enabled   bool
	Direction string  // "left", "right", or "random"
	Strength  float64 // px/s^2 at the reference particle size
	GustFreq  float64 // cycles-per-20-seconds multiplier for the low band

	t     float64 // session clock, seconds
	force float64 // smoothed signed signal, [-1,1]
	lift  float64 // smoothed lift magnitude, [0, windLiftRatio]
}

// Step advances the turbulence synthesis by dt and re-smooths the force
// and lift outputs.
func (w *WindModel) Step(dt float64) {
	if !w.Enabled {
		w.force = 0
		w.lift = 0
		return
	}
	w.t += dt

	gust := w.GustFreq
	if gust <= 0 {
		gust = 0.5
	}

	// Low band: one smooth sine with a period of ~20/gustFreq seconds.
	low := windLowAmp * math.Sin(2*math.Pi*w.t*gust/20)

	// Mid band: faster sine, amplitude-modulated by a slow cosine so the
	// gusts wax and wane instead of repeating exactly.
	mid := windMidAmp * math.Sin(2*math.Pi*w.t*gust/3) * math.Cos(2*math.Pi*w.t*gust/40)

	// High band: three small jitter terms; the last decays exponentially
	// within each gust cycle and is re-excited when the cycle restarts.
	cycle := math.Mod(w.t*gust, 10)
	high := 0.05*math.Sin(w.t*7.3) +
		0.03*math.Sin(w.t*13.1) +
		0.04*math.Sin(w.t*9.7)*math.Exp(-cycle*0.8)

	raw := low + mid + high
	if raw > 1 {
		raw = 1
	} else if raw < -1 {
		raw = -1
	}

	// left/right lock the sign while the magnitude keeps fluctuating;
	// random lets the raw signal reverse naturally.
	switch w.Direction {
	case "left":
		raw = -math.Abs(raw)
	case "right":
		raw = math.Abs(raw)
	}

	w.force += (raw - w.force) * windSmoothing
	w.lift += (math.Abs(raw)*windLiftRatio - w.lift) * windSmoothing
}

// AdoptState carries the synthesis clock and smoothed outputs over from
// prev, so retuning the wind mid-session does not snap the force.
func (w *WindModel) AdoptState(prev *WindModel) {
	w.t = prev.t
	w.force = prev.force
	w.lift = prev.lift
}

// CurrentForce returns the smoothed horizontal wind force, px/s^2 at the
// reference size. Bounded by ±Strength.
func (w *WindModel) CurrentForce() float64 {
	return w.force * w.Strength
}

// CurrentLift returns the smoothed upward lift, bounded by
// windLiftRatio × Strength.
func (w *WindModel) CurrentLift() float64 {
	return w.lift * w.Strength
}

// Apply accelerates one particle by the current wind. The acceleration
// scales with √(referenceSize/size): small light flakes are thrown
// around, large ones barely react.
func (w *WindModel) Apply(p *Particle, dt float64) {
	if !w.Enabled || p.IsGrabbed {
		return
	}
	scale := math.Sqrt(windReferenceSize / math.Max(p.Size, 1))
	p.Vel = p.Vel.Add(pix.V2(
		w.CurrentForce()*scale*dt,
		-w.CurrentLift()*scale*dt,
	))
}
