package oversample

import "math"

// Quality controls the half-band anti-aliasing filter design.
type Quality int

const (
	// QualityFast prioritizes lower CPU usage.
	QualityFast Quality = iota
	// QualityBalanced is the default quality/performance trade-off.
	QualityBalanced
	// QualityBest prioritizes stopband attenuation; render mode uses this.
	QualityBest
)

// Profile exposes the filter parameters behind each quality mode.
type Profile struct {
	Taps       int // per half-band stage; odd, with (Taps-1)/2 odd
	KaiserBeta float64
}

// QualityProfile returns the design profile used by quality mode q.
func QualityProfile(q Quality) Profile {
	switch q {
	case QualityFast:
		return Profile{Taps: 23, KaiserBeta: 5.0}
	case QualityBest:
		return Profile{Taps: 95, KaiserBeta: 9.0}
	default:
		return Profile{Taps: 47, KaiserBeta: 7.5}
	}
}

// designHalfBand designs a linear-phase half-band lowpass FIR with the given
// odd tap count, using a Kaiser-windowed sinc at a quarter of the sampling
// rate.
//
// The half-band structure is enforced exactly: taps at even offsets from the
// center are zero, the center tap is exactly 0.5, and the odd taps are
// normalized so the full DC gain is exactly 1. Zero-stuffed upsampling
// through this filter (with the input doubled) and direct decimation are
// then both transparent at DC.
func designHalfBand(taps int, beta float64) []float64 {
	if taps < 7 {
		taps = 7
	}

	if taps%2 == 0 {
		taps++
	}

	h := make([]float64, taps)
	center := (taps - 1) / 2

	for n := range taps {
		t := float64(n - center)
		h[n] = 0.5 * sinc(0.5*t) * kaiserWindow(n, taps, beta)
	}

	var oddSum float64

	for n := range taps {
		switch {
		case n == center:
			h[n] = 0.5
		case (n-center)%2 == 0:
			h[n] = 0
		default:
			oddSum += h[n]
		}
	}

	if oddSum != 0 {
		scale := 0.5 / oddSum
		for n := range taps {
			if (n-center)%2 != 0 {
				h[n] *= scale
			}
		}
	}

	return h
}

func sinc(x float64) float64 {
	if math.Abs(x) < 1e-12 {
		return 1
	}

	pix := math.Pi * x

	return math.Sin(pix) / pix
}

func kaiserWindow(i, n int, beta float64) float64 {
	if n <= 1 || beta == 0 {
		return 1
	}

	t := 2*float64(i)/float64(n-1) - 1
	a := math.Sqrt(math.Max(0, 1-t*t))

	return i0(beta*a) / i0(beta)
}

// i0 is the zeroth-order modified Bessel function, via power series.
func i0(x float64) float64 {
	sum := 1.0
	term := 1.0

	x2 := (x * x) / 4
	for k := 1; k < 64; k++ {
		term *= x2 / float64(k*k)

		sum += term
		if term < 1e-16*sum {
			break
		}
	}

	return sum
}
