// Package bank provides the configurable set of biquad sections a plugin
// exposes: high-pass and low-pass sections plus peaking and shelving bands,
// each with independent per-channel delay state.
//
// Coefficients are recomputed lazily: Configure compares the requested
// parameters against the last designed values and only redesigns when
// something moved by more than a negligible epsilon, so automation glides pay
// for one design per changed section per block and static sections pay
// nothing.
package bank

import (
	"errors"
	"fmt"

	"github.com/insomnimus/simple-plugins/dsp/core"
	"github.com/insomnimus/simple-plugins/dsp/filter/biquad"
	"github.com/insomnimus/simple-plugins/dsp/filter/design"
)

// ErrInvalidRate indicates a non-positive or non-finite sample rate.
var ErrInvalidRate = errors.New("bank: invalid sample rate")

// configEpsilon is the relative tolerance below which a parameter change is
// considered negligible and does not trigger a coefficient redesign.
const configEpsilon = 1e-9

// Kind selects the filter response of one section.
type Kind int

const (
	KindLowpass Kind = iota
	KindHighpass
	KindPeak
	KindLowShelf
	KindHighShelf
)

// SectionConfig holds the user-facing parameters of one section.
type SectionConfig struct {
	Kind    Kind
	Freq    float64
	Q       float64
	GainDB  float64
	Enabled bool
}

// Bank is a fixed-size series of stereo biquad sections.
type Bank struct {
	sampleRate float64

	cfgs  []SectionConfig
	left  []biquad.Section
	right []biquad.Section
}

// New creates a bank with n disabled sections. n is fixed for the lifetime
// of the bank; disabled sections are skipped during processing.
func New(n int, sampleRate float64) (*Bank, error) {
	if n <= 0 {
		return nil, fmt.Errorf("bank: section count must be > 0: %d", n)
	}

	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return nil, fmt.Errorf("%w: %f", ErrInvalidRate, sampleRate)
	}

	return &Bank{
		sampleRate: sampleRate,
		cfgs:       make([]SectionConfig, n),
		left:       make([]biquad.Section, n),
		right:      make([]biquad.Section, n),
	}, nil
}

// Len returns the number of sections.
func (b *Bank) Len() int { return len(b.cfgs) }

// Config returns the active configuration of section i.
func (b *Bank) Config(i int) SectionConfig { return b.cfgs[i] }

// Configure updates section i. Out-of-range frequency, Q and gain are
// clamped by the design layer rather than rejected. The section's delay
// state is preserved across redesigns and cleared only when the section is
// switched from disabled to enabled.
func (b *Bank) Configure(i int, cfg SectionConfig) {
	if i < 0 || i >= len(b.cfgs) {
		return
	}

	old := b.cfgs[i]
	if !b.needsRedesign(old, cfg) {
		return
	}

	if cfg.Enabled && !old.Enabled {
		b.left[i].Reset()
		b.right[i].Reset()
	}

	b.cfgs[i] = cfg
	c := b.designSection(cfg)
	b.left[i].Coefficients = c
	b.right[i].Coefficients = c
}

// ProcessBlock runs every enabled section in series over the given channel
// blocks. right may be nil for mono processing. Zero-alloc.
func (b *Bank) ProcessBlock(left, right []float64) {
	for i := range b.cfgs {
		if !b.cfgs[i].Enabled {
			continue
		}

		b.left[i].ProcessBlock(left)

		if right != nil {
			b.right[i].ProcessBlock(right)
		}
	}
}

// Reset clears the delay state of every section. Coefficients are kept.
func (b *Bank) Reset() {
	for i := range b.cfgs {
		b.left[i].Reset()
		b.right[i].Reset()
	}
}

// SetSampleRate redesigns every section for the new stream rate and clears
// all delay state. Must be called outside the realtime path.
func (b *Bank) SetSampleRate(sampleRate float64) error {
	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return fmt.Errorf("%w: %f", ErrInvalidRate, sampleRate)
	}

	b.sampleRate = sampleRate

	for i, cfg := range b.cfgs {
		c := b.designSection(cfg)
		b.left[i].Coefficients = c
		b.right[i].Coefficients = c
	}

	b.Reset()

	return nil
}

func (b *Bank) needsRedesign(old, next SectionConfig) bool {
	if old.Kind != next.Kind || old.Enabled != next.Enabled {
		return true
	}

	return !core.NearlyEqual(old.Freq, next.Freq, configEpsilon) ||
		!core.NearlyEqual(old.Q, next.Q, configEpsilon) ||
		!core.NearlyEqual(old.GainDB, next.GainDB, configEpsilon)
}

func (b *Bank) designSection(cfg SectionConfig) biquad.Coefficients {
	if !cfg.Enabled {
		return biquad.Identity()
	}

	switch cfg.Kind {
	case KindLowpass:
		return design.Lowpass(cfg.Freq, cfg.Q, b.sampleRate)
	case KindHighpass:
		return design.Highpass(cfg.Freq, cfg.Q, b.sampleRate)
	case KindPeak:
		return design.Peak(cfg.Freq, cfg.GainDB, cfg.Q, b.sampleRate)
	case KindLowShelf:
		return design.LowShelf(cfg.Freq, cfg.GainDB, cfg.Q, b.sampleRate)
	case KindHighShelf:
		return design.HighShelf(cfg.Freq, cfg.GainDB, cfg.Q, b.sampleRate)
	default:
		return biquad.Identity()
	}
}
