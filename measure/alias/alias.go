// Package alias measures narrowband spectral levels of processed audio,
// primarily to quantify how well oversampling suppresses the folded images a
// nonlinear stage generates. It is a measurement aid for tests and offline
// tools, not part of the realtime path.
package alias

import (
	"errors"
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/floats"

	"github.com/insomnimus/simple-plugins/dsp/core"
)

var (
	// ErrInvalidSize indicates an analysis size that is not a power of two
	// of at least 16.
	ErrInvalidSize = errors.New("alias: invalid analysis size")
	// ErrBadLength indicates an input block that does not match the
	// analyzer's size.
	ErrBadLength = errors.New("alias: input length mismatch")
)

// silenceFloorDB is the level reported for empty bins.
const silenceFloorDB = -200.0

// Analyzer computes Hann-windowed magnitude spectra of real signals. The
// window is scaled so a full-scale sine centered on a bin reads 0 dB at that
// bin. All buffers are allocated at construction.
type Analyzer struct {
	size int
	plan *algofft.Plan[complex128]

	win  []float64
	wbuf []float64
	in   []complex128
	out  []complex128
	re   []float64
	im   []float64
}

// NewAnalyzer creates an analyzer for blocks of n samples. n must be a
// power of two, at least 16.
func NewAnalyzer(n int) (*Analyzer, error) {
	if n < 16 || n&(n-1) != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, n)
	}

	plan, err := algofft.NewPlan64(n)
	if err != nil {
		return nil, fmt.Errorf("alias: create FFT plan: %w", err)
	}

	win := make([]float64, n)
	for i := range win {
		win[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}

	// Coherent gain normalization: a bin-centered unit sine contributes
	// sum(win)/2 to its bin magnitude.
	scale := 2 / floats.Sum(win)
	vecmath.ScaleBlock(win, win, scale)

	return &Analyzer{
		size: n,
		plan: plan,
		win:  win,
		wbuf: make([]float64, n),
		in:   make([]complex128, n),
		out:  make([]complex128, n),
		re:   make([]float64, n/2+1),
		im:   make([]float64, n/2+1),
	}, nil
}

// Size returns the analysis block size.
func (a *Analyzer) Size() int { return a.size }

// Bins returns the number of spectrum bins, size/2 + 1.
func (a *Analyzer) Bins() int { return a.size/2 + 1 }

// SpectrumDB writes the magnitude spectrum of buf into dst in dBFS, one
// entry per bin from DC to Nyquist. dst must hold Bins() entries and buf
// Size() samples.
func (a *Analyzer) SpectrumDB(dst, buf []float64) error {
	if len(buf) != a.size {
		return fmt.Errorf("%w: got %d, want %d", ErrBadLength, len(buf), a.size)
	}

	if len(dst) != a.Bins() {
		return fmt.Errorf("%w: got %d bins, want %d", ErrBadLength, len(dst), a.Bins())
	}

	vecmath.MulBlock(a.wbuf, buf, a.win)

	for i, x := range a.wbuf {
		a.in[i] = complex(x, 0)
	}

	if err := a.plan.Forward(a.out, a.in); err != nil {
		return fmt.Errorf("alias: forward FFT: %w", err)
	}

	for i := range dst {
		a.re[i] = real(a.out[i])
		a.im[i] = imag(a.out[i])
	}

	vecmath.Magnitude(dst, a.re[:len(dst)], a.im[:len(dst)])

	for i, m := range dst {
		if m <= 0 {
			dst[i] = silenceFloorDB
		} else {
			dst[i] = core.LinearToDB(m)
		}
	}

	return nil
}

// ToneBin returns the bin index closest to freq at the given sample rate,
// for an analysis of n samples. Generating test tones exactly on a bin
// center keeps their harmonics and folded images bin-centered too.
func ToneBin(freq, sampleRate float64, n int) int {
	return int(math.Round(freq / sampleRate * float64(n)))
}

// BinFrequency returns the center frequency of a bin.
func BinFrequency(bin, n int, sampleRate float64) float64 {
	return float64(bin) * sampleRate / float64(n)
}

// FoldedBin maps an arbitrary (possibly above-Nyquist) bin index onto the
// baseband bin it aliases to after sampling at the native rate.
func FoldedBin(bin, n int) int {
	bin %= n
	if bin < 0 {
		bin += n
	}

	if bin > n/2 {
		bin = n - bin
	}

	return bin
}

// PeakDB returns the strongest bin and its level within [lo, hi].
func PeakDB(spec []float64, lo, hi int) (int, float64) {
	lo = int(core.Clamp(float64(lo), 0, float64(len(spec)-1)))
	hi = int(core.Clamp(float64(hi), float64(lo), float64(len(spec)-1)))

	window := spec[lo : hi+1]
	idx := floats.MaxIdx(window)

	return lo + idx, window[idx]
}

// SuppressionDB returns how far the level at bin dropped from the reference
// spectrum to the treated one. Positive values mean suppression.
func SuppressionDB(reference, treated []float64, bin int) float64 {
	return reference[bin] - treated[bin]
}
