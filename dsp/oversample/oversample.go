// Package oversample runs a nonlinear per-sample function at a power-of-two
// multiple of the native sample rate.
//
// Nonlinear stages generate harmonics above the original Nyquist frequency;
// run at the native rate those harmonics fold back into the audible band as
// aliasing. The oversampler upsamples the block through a cascade of 2x
// half-band interpolation stages, applies the nonlinear function at the
// elevated rate, and decimates back down through matched half-band
// anti-aliasing filters, so the folded products land under the stopband
// instead of in the signal.
//
// All stage buffers and filter state are allocated at construction;
// ProcessBlock is allocation- and lock-free. Factor changes requested while
// the stream runs take effect at the next block boundary with a full filter
// state reset.
package oversample

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
)

var (
	// ErrInvalidFactor indicates a factor outside {1, 2, 4, 8, 16, 32} or
	// above the configured maximum.
	ErrInvalidFactor = errors.New("oversample: invalid factor")
	// ErrInvalidBlockSize indicates a non-positive maximum block size.
	ErrInvalidBlockSize = errors.New("oversample: invalid block size")
)

// MaxFactor is the largest supported oversampling factor.
const MaxFactor = 32

type config struct {
	quality   Quality
	maxFactor int
	factor    int
}

// Option configures an Oversampler.
type Option func(*config)

// WithQuality selects the anti-aliasing filter quality mode.
func WithQuality(q Quality) Option {
	return func(cfg *config) { cfg.quality = q }
}

// WithMaxFactor caps the supported factor, shrinking the preallocated
// buffers accordingly. Must be a power of two in [1, 32].
func WithMaxFactor(n int) Option {
	return func(cfg *config) {
		if validFactor(n) {
			cfg.maxFactor = n
		}
	}
}

// WithFactor sets the initial oversampling factor.
func WithFactor(n int) Option {
	return func(cfg *config) {
		if validFactor(n) {
			cfg.factor = n
		}
	}
}

// fir is a direct-form FIR filter with a ring-buffer delay line.
type fir struct {
	taps  []float64
	delay []float64
	pos   int
}

func newFIR(taps []float64) fir {
	return fir{
		taps:  taps,
		delay: make([]float64, len(taps)),
	}
}

func (f *fir) process(x float64) float64 {
	f.delay[f.pos] = x

	var y float64

	idx := f.pos
	for _, c := range f.taps {
		y += c * f.delay[idx]

		idx--
		if idx < 0 {
			idx = len(f.delay) - 1
		}
	}

	f.pos++
	if f.pos == len(f.delay) {
		f.pos = 0
	}

	return y
}

func (f *fir) reset() {
	for i := range f.delay {
		f.delay[i] = 0
	}

	f.pos = 0
}

// Oversampler wraps a nonlinear function between a polyphase half-band
// upsampler and the matching decimator.
type Oversampler struct {
	maxBlock  int
	maxStages int
	quality   Quality
	profile   Profile

	stages  int          // active 2x stages; factor = 1 << stages
	pending atomic.Int32 // stage count applied at the next block boundary
	latency atomic.Int32 // native-rate samples for the pending stage count

	up   []fir
	down []fir
	work []float64
}

// New creates an Oversampler able to process blocks of up to maxBlock
// samples. The default configuration supports factors up to 32 at balanced
// quality, starting at factor 1 (pass-through).
func New(maxBlock int, opts ...Option) (*Oversampler, error) {
	if maxBlock <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBlockSize, maxBlock)
	}

	cfg := config{
		quality:   QualityBalanced,
		maxFactor: MaxFactor,
		factor:    1,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if cfg.factor > cfg.maxFactor {
		return nil, fmt.Errorf("%w: initial factor %d exceeds maximum %d",
			ErrInvalidFactor, cfg.factor, cfg.maxFactor)
	}

	profile := QualityProfile(cfg.quality)
	maxStages := log2(cfg.maxFactor)
	taps := designHalfBand(profile.Taps, profile.KaiserBeta)

	os := &Oversampler{
		maxBlock:  maxBlock,
		maxStages: maxStages,
		quality:   cfg.quality,
		profile:   profile,
		up:        make([]fir, maxStages),
		down:      make([]fir, maxStages),
		work:      make([]float64, maxBlock<<maxStages),
	}

	for i := range maxStages {
		os.up[i] = newFIR(taps)
		os.down[i] = newFIR(taps)
	}

	os.stages = log2(cfg.factor)
	os.pending.Store(int32(os.stages))
	os.latency.Store(int32(os.computeLatency(os.stages)))

	return os, nil
}

// Factor returns the factor that will be in effect for the next block.
func (os *Oversampler) Factor() int { return 1 << os.pending.Load() }

// Quality returns the configured quality mode.
func (os *Oversampler) Quality() Quality { return os.quality }

// SetFactor requests a new oversampling factor n in {1, 2, 4, 8, 16, 32}.
// The change is deferred to the next block boundary and resets all filter
// state when it lands; LatencySamples reflects the new factor immediately
// so the host can be told before the first block at the new rate. Safe to
// call from a control thread while ProcessBlock runs on the audio thread.
func (os *Oversampler) SetFactor(n int) error {
	if !validFactor(n) || n > 1<<os.maxStages {
		return fmt.Errorf("%w: %d", ErrInvalidFactor, n)
	}

	stages := log2(n)
	os.latency.Store(int32(os.computeLatency(stages)))
	os.pending.Store(int32(stages))

	return nil
}

// LatencySamples returns the added group delay of the active up/down filter
// pairs, in native-rate samples. Zero at factor 1. The value is constant
// between SetFactor calls.
func (os *Oversampler) LatencySamples() int { return int(os.latency.Load()) }

// Reset clears all filter state without touching factor or buffers.
func (os *Oversampler) Reset() {
	for i := range os.up {
		os.up[i].reset()
		os.down[i].reset()
	}
}

// ProcessBlock upsamples buf, applies fn to every sample at the elevated
// rate, and decimates back into buf. At factor 1 fn is applied directly with
// no filtering and no added latency. Zero-alloc.
func (os *Oversampler) ProcessBlock(buf []float64, fn func(float64) float64) {
	if pending := int(os.pending.Load()); pending != os.stages {
		os.stages = pending
		os.Reset()
	}

	for len(buf) > os.maxBlock {
		os.processChunk(buf[:os.maxBlock], fn)
		buf = buf[os.maxBlock:]
	}

	os.processChunk(buf, fn)
}

func (os *Oversampler) processChunk(buf []float64, fn func(float64) float64) {
	n := len(buf)
	if n == 0 {
		return
	}

	if os.stages == 0 {
		for i, x := range buf {
			buf[i] = fn(x)
		}

		return
	}

	work := os.work
	copy(work, buf)

	// Upsample one 2x stage at a time. Zero-stuffing runs backwards so the
	// expansion can happen in the one work buffer, doubling each sample to
	// preserve level through the half-band filter.
	for s := range os.stages {
		lower := n << s

		for i := lower - 1; i >= 0; i-- {
			work[2*i] = work[i] + work[i]
			work[2*i+1] = 0
		}

		f := &os.up[s]
		for j := range lower << 1 {
			work[j] = f.process(work[j])
		}
	}

	for i, x := range work[:n<<os.stages] {
		work[i] = fn(x)
	}

	// Decimate back down. The filter consumes both high-rate samples so its
	// state stays accurate; only the even-phase output is kept.
	for s := os.stages - 1; s >= 0; s-- {
		f := &os.down[s]

		for i := range n << s {
			buf0 := f.process(work[2*i])
			f.process(work[2*i+1])
			work[i] = buf0
		}
	}

	copy(buf, work[:n])
}

// computeLatency sums the up/down filter pair group delays of the first
// `stages` stages, expressed at the native rate. Stage s runs at 2^(s+1)
// times the native rate and its pair contributes (taps-1) samples there.
func (os *Oversampler) computeLatency(stages int) int {
	var total float64

	taps := float64(os.profile.Taps - 1)
	for s := range stages {
		total += taps / float64(int(1)<<(s+1))
	}

	return int(math.Round(total))
}

func validFactor(n int) bool {
	switch n {
	case 1, 2, 4, 8, 16, 32:
		return true
	default:
		return false
	}
}

func log2(n int) int {
	s := 0
	for n > 1 {
		n >>= 1
		s++
	}

	return s
}
