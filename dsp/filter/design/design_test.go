package design

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/insomnimus/simple-plugins/dsp/filter/biquad"
)

const sampleRate = 48000.0

// magnitudeDB evaluates |H(e^jw)| in dB at freq for a single section.
func magnitudeDB(c biquad.Coefficients, freq float64) float64 {
	w := 2 * math.Pi * freq / sampleRate
	z := cmplx.Exp(complex(0, -w))

	num := complex(c.B0, 0) + complex(c.B1, 0)*z + complex(c.B2, 0)*z*z
	den := complex(1, 0) + complex(c.A1, 0)*z + complex(c.A2, 0)*z*z

	return 20 * math.Log10(cmplx.Abs(num/den))
}

func TestLowpassResponse(t *testing.T) {
	c := Lowpass(1000, DefaultQ, sampleRate)

	if db := magnitudeDB(c, 10); math.Abs(db) > 0.1 {
		t.Errorf("passband not flat: %v dB at 10 Hz", db)
	}

	if db := magnitudeDB(c, 1000); math.Abs(db+3) > 0.5 {
		t.Errorf("cutoff not at -3 dB: %v dB", db)
	}

	if db := magnitudeDB(c, 10000); db > -35 {
		t.Errorf("stopband too shallow: %v dB at 10 kHz", db)
	}
}

func TestHighpassResponse(t *testing.T) {
	c := Highpass(1000, DefaultQ, sampleRate)

	if db := magnitudeDB(c, 20000); math.Abs(db) > 0.5 {
		t.Errorf("passband not flat: %v dB at 20 kHz", db)
	}

	if db := magnitudeDB(c, 100); db > -35 {
		t.Errorf("stopband too shallow: %v dB at 100 Hz", db)
	}
}

func TestPeakGainAtCenter(t *testing.T) {
	for _, gain := range []float64{-12, -3, 3, 12} {
		c := Peak(2000, gain, 2, sampleRate)
		if db := magnitudeDB(c, 2000); math.Abs(db-gain) > 0.1 {
			t.Errorf("gain %v dB: center response %v dB", gain, db)
		}
	}
}

func TestShelfAsymptotes(t *testing.T) {
	low := LowShelf(500, 6, DefaultQ, sampleRate)
	if db := magnitudeDB(low, 10); math.Abs(db-6) > 0.3 {
		t.Errorf("low shelf DC gain %v dB, want 6", db)
	}

	high := HighShelf(5000, -6, DefaultQ, sampleRate)
	if db := magnitudeDB(high, 23000); math.Abs(db+6) > 0.3 {
		t.Errorf("high shelf top gain %v dB, want -6", db)
	}
}

// TestStabilityOverParameterGrid sweeps cutoff and Q over and beyond their
// valid ranges; every design must come back finite and stable.
func TestStabilityOverParameterGrid(t *testing.T) {
	freqs := []float64{-100, 0, 0.5, 20, 440, 1000, 12000, 23999, 24000, 96000, math.Inf(1), math.NaN()}
	qs := []float64{-5, 0, 0.01, 0.1, DefaultQ, 2, 40, 1e6, math.NaN()}
	gains := []float64{-200, -12, 0, 12, 200, math.NaN()}

	check := func(name string, c biquad.Coefficients) {
		t.Helper()

		for _, v := range []float64{c.B0, c.B1, c.B2, c.A1, c.A2} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("%s: non-finite coefficient %+v", name, c)
			}
		}

		if !c.Stable() {
			t.Fatalf("%s: pole outside unit circle %+v", name, c)
		}
	}

	for _, f := range freqs {
		for _, q := range qs {
			check("lowpass", Lowpass(f, q, sampleRate))
			check("highpass", Highpass(f, q, sampleRate))

			for _, g := range gains {
				check("peak", Peak(f, g, q, sampleRate))
				check("lowshelf", LowShelf(f, g, q, sampleRate))
				check("highshelf", HighShelf(f, g, q, sampleRate))
			}
		}
	}
}

func TestClampCutoff(t *testing.T) {
	if got := ClampCutoff(50000, sampleRate); got != 0.49*sampleRate {
		t.Errorf("above Nyquist: got %v", got)
	}

	if got := ClampCutoff(-10, sampleRate); got != MinCutoffHz {
		t.Errorf("negative: got %v", got)
	}

	if got := ClampCutoff(1000, sampleRate); got != 1000 {
		t.Errorf("in range: got %v", got)
	}
}
