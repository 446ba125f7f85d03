// Package chain composes the shared processing stages into per-plugin signal
// chains: a parameter store drives a filter bank, an oversampled waveshaper
// and a gain stage in fixed order, with per-block orchestration and latency
// bookkeeping.
//
// A Chain is built by one of the plugin constructors (NewGain, NewClipper,
// NewFilter, NewTube, NewChannelStrip), prepared once with the stream
// configuration, and then driven from the audio callback. Prepare allocates
// everything up front; ProcessBlock never allocates and never takes a lock.
package chain

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/insomnimus/simple-plugins/dsp/filter/bank"
	"github.com/insomnimus/simple-plugins/dsp/filter/biquad"
	"github.com/insomnimus/simple-plugins/dsp/filter/design"
	"github.com/insomnimus/simple-plugins/dsp/gain"
	"github.com/insomnimus/simple-plugins/dsp/oversample"
	"github.com/insomnimus/simple-plugins/dsp/param"
	"github.com/insomnimus/simple-plugins/dsp/shape"
)

var (
	// ErrInvalidConfig indicates an unusable stream configuration.
	ErrInvalidConfig = errors.New("chain: invalid config")
	// ErrNotPrepared indicates a realtime call before Prepare.
	ErrNotPrepared = errors.New("chain: not prepared")
)

// dcBlockHz is the cutoff of the channel strip's DC blocking highpass.
const dcBlockHz = 5.0

// Config is the stream configuration handed to Prepare.
type Config struct {
	SampleRate float64
	MaxBlock   int
	Channels   int // 1 or 2
	// Render forces the oversampler to the maximum factor at best quality,
	// regardless of the live factor chosen for low-latency monitoring.
	Render bool
}

func (cfg Config) validate() error {
	if cfg.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %g", ErrInvalidConfig, cfg.SampleRate)
	}

	if cfg.MaxBlock <= 0 {
		return fmt.Errorf("%w: max block %d", ErrInvalidConfig, cfg.MaxBlock)
	}

	if cfg.Channels != 1 && cfg.Channels != 2 {
		return fmt.Errorf("%w: channels %d", ErrInvalidConfig, cfg.Channels)
	}

	return nil
}

// Chain is one plugin's processing graph. The zero value is not usable;
// construct with a plugin constructor and call Prepare before processing.
type Chain struct {
	cfg      Config
	prepared bool

	specs []param.Spec
	store *param.Store

	// stage blueprint, fixed at construction
	sections   int // filter bank size; 0 disables the bank
	shaperKind shape.Kind
	hasShaper  bool
	maxFactor  int
	quality    oversample.Quality
	dcBlock    bool

	// apply maps the smoothed parameter view onto the stages, once per block
	apply func(c *Chain)

	bank       *bank.Bank
	shaper     *shape.Shaper
	ovs        [2]*oversample.Oversampler // per channel
	dc         [2]biquad.Section
	dcCoeffs   biquad.Coefficients
	liveFactor int

	outGain     float64 // ramp target for the current block
	prevOutGain float64

	bypass atomic.Bool
}

// Store exposes the parameter table to the host binding. The control thread
// writes targets through it; the audio thread owns everything else.
func (c *Chain) Store() *param.Store { return c.store }

// Specs returns the plugin's parameter declaration list.
func (c *Chain) Specs() []param.Spec { return c.specs }

// Prepare allocates all processing state for the given stream configuration.
// It is the only Chain method allowed to allocate or fail, and must be
// called outside the realtime path. Calling it again reconfigures the chain
// for a new stream, resetting all state.
func (c *Chain) Prepare(cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	store, err := param.NewStore(c.specs, cfg.SampleRate)
	if err != nil {
		return err
	}

	// Re-preparing for a new stream keeps the parameter values the host
	// already set.
	if c.store != nil {
		saved := make([]float64, len(c.specs))
		c.store.Snapshot(saved)
		store.Restore(saved)
	}

	var bk *bank.Bank
	if c.sections > 0 {
		bk, err = bank.New(c.sections, cfg.SampleRate)
		if err != nil {
			return err
		}
	}

	var (
		shaper *shape.Shaper
		ovs    [2]*oversample.Oversampler
	)

	if c.hasShaper {
		shaper, err = shape.New(c.shaperKind)
		if err != nil {
			return err
		}

		factor := c.liveFactor
		if factor == 0 {
			factor = 1
		}

		quality := c.quality
		if cfg.Render {
			factor = c.maxFactor
			quality = oversample.QualityBest
		}

		for ch := range cfg.Channels {
			ovs[ch], err = oversample.New(cfg.MaxBlock,
				oversample.WithMaxFactor(c.maxFactor),
				oversample.WithQuality(quality),
				oversample.WithFactor(factor),
			)
			if err != nil {
				return err
			}
		}

		c.liveFactor = factor
	}

	c.cfg = cfg
	c.store = store
	c.bank = bk
	c.shaper = shaper
	c.ovs = ovs

	if c.dcBlock {
		c.dcCoeffs = design.Highpass(dcBlockHz, design.DefaultQ, cfg.SampleRate)
		for ch := range c.dc {
			c.dc[ch].Coefficients = c.dcCoeffs
			c.dc[ch].Reset()
		}
	}

	c.outGain = 1
	c.prevOutGain = 1
	c.prepared = true

	// Settle the output gain ramp on the declared defaults so the first
	// block does not fade in.
	if c.apply != nil {
		c.apply(c)
		c.prevOutGain = c.outGain
	}

	return nil
}

// SetOversampleFactor requests a new live oversampling factor for chains
// with a nonlinear stage. The change lands at the next block boundary and
// may be issued from a control thread while ProcessBlock runs; in render
// mode the factor is pinned to the maximum and the request is ignored.
// Chains without a shaper reject every factor but 1.
func (c *Chain) SetOversampleFactor(n int) error {
	if !c.prepared {
		return ErrNotPrepared
	}

	if !c.hasShaper {
		if n == 1 {
			return nil
		}

		return fmt.Errorf("%w: %d", oversample.ErrInvalidFactor, n)
	}

	if c.cfg.Render {
		return nil
	}

	for ch := range c.cfg.Channels {
		if err := c.ovs[ch].SetFactor(n); err != nil {
			return err
		}
	}

	c.liveFactor = n

	return nil
}

// LatencySamples reports the chain's added delay in native samples: the sum
// of the active stages' latencies. Only the oversampler contributes; the
// value is stable between factor changes so the host can compensate.
func (c *Chain) LatencySamples() int {
	if c.ovs[0] == nil {
		return 0
	}

	return c.ovs[0].LatencySamples()
}

// SetBypass toggles pass-through. Safe to call from the control thread.
func (c *Chain) SetBypass(on bool) { c.bypass.Store(on) }

// Bypassed reports whether the chain is in pass-through.
func (c *Chain) Bypassed() bool { return c.bypass.Load() }

// Reset clears all delay and filter state without deallocating, for
// transport stops and playhead discontinuities. Parameter values persist.
func (c *Chain) Reset() {
	if !c.prepared {
		return
	}

	if c.bank != nil {
		c.bank.Reset()
	}

	for ch := range c.cfg.Channels {
		if c.ovs[ch] != nil {
			c.ovs[ch].Reset()
		}
	}

	if c.dcBlock {
		for ch := range c.dc {
			c.dc[ch].Reset()
		}
	}

	c.prevOutGain = c.outGain
}

// ProcessBlock runs one audio callback's worth of samples in place. right
// is nil for mono chains; a chain prepared with one channel ignores a
// right buffer passed anyway. Blocks longer than the prepared maximum are
// processed in maximum-sized chunks. Never allocates, never blocks.
func (c *Chain) ProcessBlock(left, right []float64) {
	if !c.prepared || len(left) == 0 {
		return
	}

	if c.cfg.Channels < 2 {
		right = nil
	}

	if c.bypass.Load() {
		return
	}

	for len(left) > c.cfg.MaxBlock {
		c.processChunk(left[:c.cfg.MaxBlock], sliceHead(right, c.cfg.MaxBlock))

		left = left[c.cfg.MaxBlock:]
		right = sliceTail(right, c.cfg.MaxBlock)
	}

	c.processChunk(left, right)
}

func (c *Chain) processChunk(left, right []float64) {
	c.store.Advance(len(left))
	c.apply(c)

	if c.dcBlock {
		c.dc[0].ProcessBlock(left)

		if right != nil {
			c.dc[1].ProcessBlock(right)
		}
	}

	if c.bank != nil {
		c.bank.ProcessBlock(left, right)
	}

	if c.shaper != nil {
		c.ovs[0].ProcessBlock(left, c.shaper.Process)

		if right != nil {
			c.ovs[1].ProcessBlock(right, c.shaper.Process)
		}
	}

	gain.ApplyRamped(left, c.prevOutGain, c.outGain)

	if right != nil {
		gain.ApplyRamped(right, c.prevOutGain, c.outGain)
	}

	c.prevOutGain = c.outGain
}

func sliceHead(s []float64, n int) []float64 {
	if s == nil {
		return nil
	}

	return s[:n]
}

func sliceTail(s []float64, n int) []float64 {
	if s == nil {
		return nil
	}

	return s[n:]
}
