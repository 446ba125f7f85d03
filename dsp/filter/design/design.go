// Package design computes biquad coefficients from user-facing filter
// parameters using the RBJ bilinear-transform cookbook formulas.
//
// Unlike an offline design tool, these functions are driven from smoothed,
// possibly automated parameters on every block boundary. They therefore never
// fail: cutoff, Q and gain are clamped into a range that keeps the resulting
// poles strictly inside the unit circle, and the returned coefficients are
// always finite and usable.
package design

import (
	"math"

	"github.com/insomnimus/simple-plugins/dsp/core"
	"github.com/insomnimus/simple-plugins/dsp/filter/biquad"
)

// DefaultQ is the Butterworth quality factor 1/sqrt(2).
const DefaultQ = 1 / math.Sqrt2

const (
	// MinCutoffHz is the lowest accepted cutoff frequency.
	MinCutoffHz = 1.0

	// maxCutoffRatio caps the cutoff just below Nyquist; tan(pi*f/fs)
	// explodes at exactly fs/2.
	maxCutoffRatio = 0.49

	minQ = 0.05
	maxQ = 40.0

	minGainDB = -40.0
	maxGainDB = 40.0
)

// Lowpass designs a lowpass biquad at freq (Hz) with quality factor q.
func Lowpass(freq, q, sampleRate float64) biquad.Coefficients {
	w0 := clampedW0(freq, sampleRate)
	q = clampedQ(q)
	cw := math.Cos(w0)
	sw := math.Sin(w0)
	alpha := sw / (2 * q)

	b1 := 1 - cw
	b0 := b1 / 2
	b2 := b0
	a0 := 1 + alpha
	a1 := -2 * cw
	a2 := 1 - alpha

	return normalizeBiquad(b0, b1, b2, a0, a1, a2)
}

// Highpass designs a highpass biquad at freq (Hz) with quality factor q.
func Highpass(freq, q, sampleRate float64) biquad.Coefficients {
	w0 := clampedW0(freq, sampleRate)
	q = clampedQ(q)
	cw := math.Cos(w0)
	sw := math.Sin(w0)
	alpha := sw / (2 * q)

	b1 := -(1 + cw)
	b0 := (1 + cw) / 2
	b2 := b0
	a0 := 1 + alpha
	a1 := -2 * cw
	a2 := 1 - alpha

	return normalizeBiquad(b0, b1, b2, a0, a1, a2)
}

// Peak designs a peaking-EQ biquad with gain in dB.
func Peak(freq, gainDB, q, sampleRate float64) biquad.Coefficients {
	w0 := clampedW0(freq, sampleRate)
	q = clampedQ(q)
	a := gainFactor(gainDB)
	cw := math.Cos(w0)
	sw := math.Sin(w0)
	alpha := sw / (2 * q)

	b0 := 1 + alpha*a
	b1 := -2 * cw
	b2 := 1 - alpha*a
	a0 := 1 + alpha/a
	a1 := -2 * cw
	a2 := 1 - alpha/a

	return normalizeBiquad(b0, b1, b2, a0, a1, a2)
}

// LowShelf designs a low-shelf biquad with gain in dB.
func LowShelf(freq, gainDB, q, sampleRate float64) biquad.Coefficients {
	w0 := clampedW0(freq, sampleRate)
	q = clampedQ(q)
	a := gainFactor(gainDB)
	cw := math.Cos(w0)
	sw := math.Sin(w0)
	alpha := sw / (2 * q)
	beta := 2 * math.Sqrt(a) * alpha

	b0 := a * ((a + 1) - (a-1)*cw + beta)
	b1 := 2 * a * ((a - 1) - (a+1)*cw)
	b2 := a * ((a + 1) - (a-1)*cw - beta)
	a0 := (a + 1) + (a-1)*cw + beta
	a1 := -2 * ((a - 1) + (a+1)*cw)
	a2 := (a + 1) + (a-1)*cw - beta

	return normalizeBiquad(b0, b1, b2, a0, a1, a2)
}

// HighShelf designs a high-shelf biquad with gain in dB.
func HighShelf(freq, gainDB, q, sampleRate float64) biquad.Coefficients {
	w0 := clampedW0(freq, sampleRate)
	q = clampedQ(q)
	a := gainFactor(gainDB)
	cw := math.Cos(w0)
	sw := math.Sin(w0)
	alpha := sw / (2 * q)
	beta := 2 * math.Sqrt(a) * alpha

	b0 := a * ((a + 1) + (a-1)*cw + beta)
	b1 := -2 * a * ((a - 1) + (a+1)*cw)
	b2 := a * ((a + 1) + (a-1)*cw - beta)
	a0 := (a + 1) - (a-1)*cw + beta
	a1 := 2 * ((a - 1) - (a+1)*cw)
	a2 := (a + 1) - (a-1)*cw - beta

	return normalizeBiquad(b0, b1, b2, a0, a1, a2)
}

// ClampCutoff returns freq limited to the usable (0, Nyquist) interval for
// the given sample rate. Exposed so stages can epsilon-compare against the
// value that will actually be designed.
func ClampCutoff(freq, sampleRate float64) float64 {
	if math.IsNaN(freq) {
		return MinCutoffHz
	}

	hi := maxCutoffRatio * sampleRate
	if hi < MinCutoffHz {
		hi = MinCutoffHz
	}

	return core.Clamp(freq, MinCutoffHz, hi)
}

func clampedW0(freq, sampleRate float64) float64 {
	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		sampleRate = 44100
	}

	freq = ClampCutoff(freq, sampleRate)

	return 2 * math.Pi * freq / sampleRate
}

func clampedQ(q float64) float64 {
	if math.IsNaN(q) {
		return DefaultQ
	}

	return core.Clamp(q, minQ, maxQ)
}

func gainFactor(gainDB float64) float64 {
	if math.IsNaN(gainDB) {
		gainDB = 0
	}

	gainDB = core.Clamp(gainDB, minGainDB, maxGainDB)

	return math.Pow(10, gainDB/40)
}

func normalizeBiquad(b0, b1, b2, a0, a1, a2 float64) biquad.Coefficients {
	if a0 == 0 || !core.IsFinite(a0) {
		return biquad.Identity()
	}

	return biquad.Coefficients{
		B0: b0 / a0,
		B1: b1 / a0,
		B2: b2 / a0,
		A1: a1 / a0,
		A2: a2 / a0,
	}
}
