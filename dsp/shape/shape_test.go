package shape

import (
	"math"
	"testing"
)

func newShaper(t *testing.T, kind Kind) *Shaper {
	t.Helper()

	s, err := New(kind)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return s
}

func TestNewInvalidKind(t *testing.T) {
	if _, err := New(Kind(99)); err == nil {
		t.Error("expected error for invalid kind")
	}
}

func TestHardClipExactBelowThreshold(t *testing.T) {
	s := newShaper(t, KindHardClip)
	s.SetThreshold(0.5)
	s.SetInputGain(2)
	s.SetOutputGain(3)

	// |2*x| <= 0.5 must pass through exactly as 2*x*3.
	for _, x := range []float64{0, 0.1, -0.1, 0.25, -0.25} {
		want := 2 * x * 3
		if got := s.Process(x); got != want {
			t.Errorf("Process(%v) = %v, want exact %v", x, got, want)
		}
	}
}

func TestHardClipSaturates(t *testing.T) {
	s := newShaper(t, KindHardClip)
	s.SetThreshold(0.5)

	if got := s.Process(1.0); got != 0.5 {
		t.Errorf("Process(1) = %v, want 0.5", got)
	}

	if got := s.Process(-2.0); got != -0.5 {
		t.Errorf("Process(-2) = %v, want -0.5", got)
	}

	s.SetOutputGain(2)

	if got := s.Process(3.0); got != 1.0 {
		t.Errorf("output gain not applied to saturated sample: %v", got)
	}
}

func TestSettersClampSilently(t *testing.T) {
	s := newShaper(t, KindHardClip)

	s.SetThreshold(-5)
	if s.Threshold() <= 0 {
		t.Errorf("threshold not clamped positive: %v", s.Threshold())
	}

	s.SetInputGain(-1)
	if s.InputGain() != 0 {
		t.Errorf("input gain not clamped: %v", s.InputGain())
	}

	s.SetAmount(500)
	if s.Amount() != 100 {
		t.Errorf("amount not clamped: %v", s.Amount())
	}

	s.SetAmount(math.NaN())
	if s.Amount() != 0 {
		t.Errorf("NaN amount not defaulted: %v", s.Amount())
	}
}

func TestTubeBoundedAndMonotonic(t *testing.T) {
	s := newShaper(t, KindTube)

	// Input gains above unity drive the curve deep into saturation; the
	// output must stay bounded and monotonic there too.
	for _, gain := range []float64{1, 2, 5.01, 31.6} {
		s.SetInputGain(gain)

		for _, amount := range []float64{0, 25, 50, 75, 100} {
			s.SetAmount(amount)

			prev := math.Inf(-1)
			for x := -1.0; x <= 1.0; x += 1.0 / 256 {
				y := s.Process(x)
				if math.Abs(y) > 1+1e-6 {
					t.Fatalf("gain %v amount %v: |Process(%v)| = %v exceeds 1", gain, amount, x, y)
				}

				if y < prev {
					t.Fatalf("gain %v amount %v: curve not monotonic at x=%v", gain, amount, x)
				}

				prev = y
			}
		}
	}
}

// TestTubeDrivenPeaksKeepSign pins the drive-stage clamp: a hard-driven
// negative peak must saturate negative, never fold positive through the
// asymmetric warp term.
func TestTubeDrivenPeaksKeepSign(t *testing.T) {
	s := newShaper(t, KindTube)
	s.SetAmount(100)

	for _, gainDB := range []float64{6, 14, 30} {
		s.SetInputGain(math.Pow(10, gainDB/20))

		neg := s.Process(-1.0)
		if neg >= 0 {
			t.Errorf("gain %v dB: Process(-1) = %v, want negative", gainDB, neg)
		}

		pos := s.Process(1.0)
		if pos <= 0 {
			t.Errorf("gain %v dB: Process(1) = %v, want positive", gainDB, pos)
		}

		if math.Abs(neg) < 0.9 || pos < 0.9 {
			t.Errorf("gain %v dB: driven peaks should saturate hard: %v, %v", gainDB, neg, pos)
		}
	}
}

func TestTubeZeroMapsToZero(t *testing.T) {
	s := newShaper(t, KindTube)

	for _, amount := range []float64{0, 33, 100} {
		s.SetAmount(amount)

		if got := s.Process(0); got != 0 {
			t.Errorf("amount %v: Process(0) = %v", amount, got)
		}
	}
}

func TestTubeAsymmetry(t *testing.T) {
	s := newShaper(t, KindTube)
	s.SetAmount(80)

	pos := s.Process(0.5)

	neg := s.Process(-0.5)
	if pos == -neg {
		t.Error("tube curve should be asymmetric at non-zero amount")
	}
}

// TestContinuityInParameters checks that an infinitesimal parameter change
// produces a proportionally small output change, for both variants.
func TestContinuityInParameters(t *testing.T) {
	const delta = 1e-6

	inputs := []float64{-0.9, -0.3, 0, 0.4, 0.8}

	clip := newShaper(t, KindHardClip)
	for _, x := range inputs {
		clip.SetThreshold(0.5)
		y0 := clip.Process(x)
		clip.SetThreshold(0.5 + delta)

		y1 := clip.Process(x)
		if math.Abs(y1-y0) > 10*delta {
			t.Errorf("hard clip output jumped for threshold delta at x=%v: %v -> %v", x, y0, y1)
		}
	}

	tube := newShaper(t, KindTube)
	for _, x := range inputs {
		tube.SetAmount(50)
		y0 := tube.Process(x)
		tube.SetAmount(50 + delta)

		y1 := tube.Process(x)
		if math.Abs(y1-y0) > 1e-3 {
			t.Errorf("tube output jumped for amount delta at x=%v: %v -> %v", x, y0, y1)
		}
	}
}

func TestProcessInPlace(t *testing.T) {
	s := newShaper(t, KindHardClip)
	s.SetThreshold(0.5)

	buf := []float64{0.25, 1, -1, 0}
	s.ProcessInPlace(buf)

	want := []float64{0.25, 0.5, -0.5, 0}
	for i := range buf {
		if buf[i] != want[i] {
			t.Errorf("sample %d: %v, want %v", i, buf[i], want[i])
		}
	}
}
