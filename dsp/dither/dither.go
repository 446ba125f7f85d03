// Package dither quantizes float samples to integer PCM with TPDF dither
// and optional first-order noise shaping. The offline renderer uses it when
// reducing the processed signal to the output bit depth.
package dither

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Quantizer converts samples in [-1, 1] to signed integers at a fixed bit
// depth. Triangular (TPDF) dither decorrelates the quantization error from
// the signal; the optional error-feedback shaper pushes the residual noise
// toward high frequencies.
type Quantizer struct {
	bits      int
	amplitude float64
	shaping   bool
	rng       *rand.Rand

	scale float64
	lo    int
	hi    int

	feedback float64
}

type config struct {
	amplitude float64
	shaping   bool
	rng       *rand.Rand
}

// Option configures a Quantizer.
type Option func(*config) error

// WithAmplitude sets the dither amplitude in LSB units. 1 is full TPDF
// dither, 0 disables dither and leaves plain rounding.
func WithAmplitude(a float64) Option {
	return func(cfg *config) error {
		if a < 0 || math.IsNaN(a) || a > 4 {
			return fmt.Errorf("dither: amplitude out of range: %g", a)
		}

		cfg.amplitude = a

		return nil
	}
}

// WithNoiseShaping toggles first-order error-feedback noise shaping.
func WithNoiseShaping(on bool) Option {
	return func(cfg *config) error {
		cfg.shaping = on
		return nil
	}
}

// WithRand supplies the dither noise source, for reproducible output.
func WithRand(rng *rand.Rand) Option {
	return func(cfg *config) error {
		cfg.rng = rng
		return nil
	}
}

// NewQuantizer creates a quantizer for the given bit depth in [8, 32]. The
// default configuration applies 1 LSB of TPDF dither with noise shaping on.
func NewQuantizer(bits int, opts ...Option) (*Quantizer, error) {
	if bits < 8 || bits > 32 {
		return nil, fmt.Errorf("dither: unsupported bit depth: %d", bits)
	}

	cfg := config{
		amplitude: 1,
		shaping:   true,
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if cfg.rng == nil {
		cfg.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	scale := math.Exp2(float64(bits - 1))

	return &Quantizer{
		bits:      bits,
		amplitude: cfg.amplitude,
		shaping:   cfg.shaping,
		rng:       cfg.rng,
		scale:     scale,
		lo:        -int(scale),
		hi:        int(scale) - 1,
	}, nil
}

// Bits returns the target bit depth.
func (q *Quantizer) Bits() int { return q.bits }

// ProcessInteger quantizes one sample to the signed integer range of the
// target depth. Input outside [-1, 1] clamps to the range limits.
func (q *Quantizer) ProcessInteger(x float64) int {
	scaled := x * q.scale

	if q.shaping {
		scaled -= q.feedback
	}

	d := 0.0
	if q.amplitude > 0 {
		d = q.amplitude * (q.rng.Float64() - q.rng.Float64())
	}

	v := int(math.Round(scaled + d))

	if q.shaping {
		q.feedback = float64(v) - scaled
	}

	return max(q.lo, min(q.hi, v))
}

// ProcessBlock quantizes src into dst. Both must have the same length.
func (q *Quantizer) ProcessBlock(dst []int, src []float64) {
	for i, x := range src {
		dst[i] = q.ProcessInteger(x)
	}
}

// Reset clears the noise shaping state.
func (q *Quantizer) Reset() {
	q.feedback = 0
}
