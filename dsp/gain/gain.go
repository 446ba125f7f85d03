// Package gain applies gain staging to sample blocks.
//
// Static gain uses the SIMD block kernels from algo-vecmath; ramped gain
// interpolates linearly across the block so a smoothed gain glide is
// click-free even at large block sizes.
package gain

import (
	vecmath "github.com/cwbudde/algo-vecmath"
)

// rampEpsilon is the gain delta below which a ramp degenerates to a static
// apply.
const rampEpsilon = 1e-12

// Apply scales buf in place by the linear gain g. Zero-alloc.
func Apply(buf []float64, g float64) {
	if g == 1 {
		return
	}

	vecmath.ScaleBlock(buf, buf, g)
}

// ApplyTo writes src scaled by g into dst. Both slices must have the same
// length. Zero-alloc.
func ApplyTo(dst, src []float64, g float64) {
	vecmath.ScaleBlock(dst, src, g)
}

// ApplyRamped scales buf in place with a linear gain ramp from g0 at the
// first sample to g1 at the last. Used when a smoothed gain parameter moved
// during the block.
func ApplyRamped(buf []float64, g0, g1 float64) {
	n := len(buf)
	if n == 0 {
		return
	}

	if d := g1 - g0; d < rampEpsilon && d > -rampEpsilon {
		Apply(buf, g1)
		return
	}

	step := (g1 - g0) / float64(n-1)
	if n == 1 {
		step = 0
	}

	g := g0
	for i := range buf {
		buf[i] *= g
		g += step
	}
}
