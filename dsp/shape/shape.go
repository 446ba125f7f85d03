// Package shape implements the nonlinear per-sample transfer functions the
// plugins run inside an oversampled region: a hard clipper and a tube-style
// saturator.
//
// The variants form a small closed set selected at construction; the hot
// path is a direct switch on the kind, with no interface dispatch. A Shaper
// is stateless per sample: the output is a pure function of the input and
// the current parameters, so it can run at any oversampled rate without
// rate-dependent state.
package shape

import (
	"fmt"
	"math"

	"github.com/insomnimus/simple-plugins/dsp/core"
)

// Kind selects the transfer function of a Shaper.
type Kind int

const (
	// KindHardClip clamps the driven signal at +-threshold.
	KindHardClip Kind = iota
	// KindTube applies a smooth asymmetric saturation curve.
	KindTube
)

const (
	minThreshold = 1e-3
	maxThreshold = 10.0

	minGain = 0.0
	maxGain = 100.0

	maxAmount = 100.0
)

// Shaper is a parameterized nonlinear transfer function.
//
// All setters clamp silently instead of returning errors: they are driven
// from smoothed automation on the audio thread, where out-of-range input is
// a recoverable condition, not a failure. Every curve is continuous in its
// parameters, so a smoothed glide never produces an output step.
type Shaper struct {
	kind Kind

	inputGain  float64
	outputGain float64
	threshold  float64
	amount     float64

	// cached tube curve terms derived from amount
	drive float64
	warp  float64
	norm  float64
}

// New creates a Shaper of the given kind with unity gains, threshold 1 and
// amount 0.
func New(kind Kind) (*Shaper, error) {
	if kind != KindHardClip && kind != KindTube {
		return nil, fmt.Errorf("shape: invalid kind: %d", kind)
	}

	s := &Shaper{
		kind:       kind,
		inputGain:  1,
		outputGain: 1,
		threshold:  1,
	}
	s.SetAmount(0)

	return s, nil
}

// Kind returns the selected transfer function.
func (s *Shaper) Kind() Kind { return s.kind }

// SetInputGain sets the linear pre-shape gain, clamped to [0, 100].
func (s *Shaper) SetInputGain(g float64) {
	if math.IsNaN(g) {
		g = 1
	}

	s.inputGain = core.Clamp(g, minGain, maxGain)
}

// SetOutputGain sets the linear post-shape gain, clamped to [0, 100].
func (s *Shaper) SetOutputGain(g float64) {
	if math.IsNaN(g) {
		g = 1
	}

	s.outputGain = core.Clamp(g, minGain, maxGain)
}

// SetThreshold sets the hard-clip ceiling, clamped to [0.001, 10].
func (s *Shaper) SetThreshold(t float64) {
	if math.IsNaN(t) {
		t = 1
	}

	s.threshold = core.Clamp(t, minThreshold, maxThreshold)
}

// SetAmount sets the tube saturation amount on the 0-100 control range.
//
// The control maps linearly onto the curve's drive: drive = 1 + 9*a with
// a = amount/100, plus an even-order warp term w = 0.2*a that supplies the
// asymmetric (tube-like) harmonic content. Both terms are continuous and
// monotonic in the control value.
func (s *Shaper) SetAmount(amount float64) {
	if math.IsNaN(amount) {
		amount = 0
	}

	s.amount = core.Clamp(amount, 0, maxAmount)

	a := s.amount / maxAmount
	s.drive = 1 + 9*a
	s.warp = 0.2 * a
	s.norm = 1 / math.Tanh(s.drive)
}

// InputGain returns the linear pre-shape gain.
func (s *Shaper) InputGain() float64 { return s.inputGain }

// OutputGain returns the linear post-shape gain.
func (s *Shaper) OutputGain() float64 { return s.outputGain }

// Threshold returns the hard-clip ceiling.
func (s *Shaper) Threshold() float64 { return s.threshold }

// Amount returns the tube saturation amount in [0, 100].
func (s *Shaper) Amount() float64 { return s.amount }

// Process shapes one sample. Pure function of (input, parameters); no
// internal state, no allocation.
func (s *Shaper) Process(x float64) float64 {
	switch s.kind {
	case KindHardClip:
		return s.hardClip(x)
	case KindTube:
		return s.tube(x)
	default:
		return x
	}
}

// ProcessInPlace shapes buf in place.
func (s *Shaper) ProcessInPlace(buf []float64) {
	for i := range buf {
		buf[i] = s.Process(buf[i])
	}
}

// hardClip is exact below the threshold: for |inputGain*x| <= threshold the
// output is inputGain*x*outputGain with no distortion.
func (s *Shaper) hardClip(x float64) float64 {
	x *= s.inputGain

	if x > s.threshold {
		x = s.threshold
	} else if x < -s.threshold {
		x = -s.threshold
	}

	return x * s.outputGain
}

// tube applies y = tanh(drive*(u + warp*u^2)) / tanh(drive) with
// u = clamp(inputGain*x, -1, 1). The drive stage clamps before the curve:
// past the clamp the even-order warp term would fold the curve back and
// flip the sign of hard-driven negative peaks. Within [-1, 1] the curve is
// monotonic (warp <= 0.2 keeps the slope of u + warp*u^2 positive) and
// peak-normalized, while the small-signal gain grows with the amount
// control the way a driven tube stage gets louder as it saturates.
func (s *Shaper) tube(x float64) float64 {
	u := core.Clamp(x*s.inputGain, -1, 1)
	u += s.warp * u * u

	return math.Tanh(s.drive*u) * s.norm * s.outputGain
}
