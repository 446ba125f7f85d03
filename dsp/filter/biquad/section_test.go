package biquad

import (
	"math"
	"math/rand"
	"testing"
)

const eps = 1e-12

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// twoTapAverage returns H(z) = 0.5*(1 + z^-1), a trivial FIR lowpass.
func twoTapAverage() Coefficients {
	return Coefficients{B0: 0.5, B1: 0.5}
}

func TestProcessSample_Passthrough(t *testing.T) {
	s := NewSection(Identity())

	input := []float64{1, 0, -1, 0.5, 0.25}
	for i, x := range input {
		y := s.ProcessSample(x)
		if !almostEqual(y, x, eps) {
			t.Errorf("sample %d: got %v, want %v", i, y, x)
		}
	}
}

func TestProcessSample_DFIIT(t *testing.T) {
	// Hand-traced DF-II-T with B0=0.25, B1=0.5, B2=0.25, A1=-0.2, A2=0.04
	// driven by a unit impulse:
	//
	// n=0: y=0.25, d0=0.55, d1=0.24
	// n=1: y=0.55, d0=0.35, d1=-0.022
	// n=2: y=0.35, d0=0.048, d1=-0.014
	// n=3: y=0.048
	s := NewSection(Coefficients{B0: 0.25, B1: 0.5, B2: 0.25, A1: -0.2, A2: 0.04})

	want := []float64{0.25, 0.55, 0.35, 0.048}
	for i, x := range []float64{1, 0, 0, 0} {
		y := s.ProcessSample(x)
		if !almostEqual(y, want[i], 1e-9) {
			t.Errorf("n=%d: got %v, want %v", i, y, want[i])
		}
	}
}

func TestProcessBlockMatchesPerSample(t *testing.T) {
	c := Coefficients{B0: 0.2, B1: 0.3, B2: 0.2, A1: -0.4, A2: 0.1}
	perSample := NewSection(c)
	block := NewSection(c)

	rng := rand.New(rand.NewSource(7))

	buf := make([]float64, 257)
	want := make([]float64, len(buf))

	for i := range buf {
		buf[i] = rng.Float64()*2 - 1
		want[i] = perSample.ProcessSample(buf[i])
	}

	block.ProcessBlock(buf)

	for i := range buf {
		if !almostEqual(buf[i], want[i], eps) {
			t.Fatalf("sample %d: block %v, per-sample %v", i, buf[i], want[i])
		}
	}
}

func TestReset(t *testing.T) {
	s := NewSection(twoTapAverage())
	s.ProcessSample(1)

	if s.State() == [2]float64{} {
		t.Fatal("state should be nonzero after processing")
	}

	s.Reset()

	if s.State() != [2]float64{} {
		t.Fatal("state not cleared by Reset")
	}
}

func TestStateRoundTrip(t *testing.T) {
	s := NewSection(twoTapAverage())
	s.ProcessSample(1)
	s.ProcessSample(-0.5)

	st := s.State()
	next := s.ProcessSample(0.25)

	s.SetState(st)
	if got := s.ProcessSample(0.25); got != next {
		t.Errorf("restored state diverges: %v vs %v", got, next)
	}
}

func TestStable(t *testing.T) {
	stable := Coefficients{B0: 1, A1: -0.5, A2: 0.25}
	if !stable.Stable() {
		t.Error("expected stable coefficients")
	}

	unstable := Coefficients{B0: 1, A1: -2.5, A2: 1.5}
	if unstable.Stable() {
		t.Error("expected unstable coefficients")
	}
}

// TestSustainedFullScaleNoise verifies the state never blows up or goes
// non-finite under long full-scale excitation.
func TestSustainedFullScaleNoise(t *testing.T) {
	s := NewSection(Coefficients{B0: 0.3, B1: 0.6, B2: 0.3, A1: -0.9, A2: 0.45})
	rng := rand.New(rand.NewSource(42))
	buf := make([]float64, 128)

	for block := range 10000 {
		for i := range buf {
			buf[i] = rng.Float64()*2 - 1
		}

		s.ProcessBlock(buf)

		for i, y := range buf {
			if math.IsNaN(y) || math.IsInf(y, 0) || math.Abs(y) > 100 {
				t.Fatalf("block %d sample %d: output %v", block, i, y)
			}
		}
	}
}

// TestDenormalFlush drives the filter with an impulse and lets the tail decay;
// the retained state must become exact zero instead of lingering denormals.
func TestDenormalFlush(t *testing.T) {
	s := NewSection(Coefficients{B0: 1, A1: -0.999, A2: 0})
	buf := make([]float64, 256)
	buf[0] = 1

	s.ProcessBlock(buf)

	zeros := make([]float64, 256)
	for range 2000 {
		copy(buf, zeros)
		s.ProcessBlock(buf)
	}

	st := s.State()
	if st[0] != 0 || st[1] != 0 {
		t.Errorf("decayed state not flushed to zero: %v", st)
	}
}
