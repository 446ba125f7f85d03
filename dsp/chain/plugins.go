package chain

import (
	"fmt"

	"github.com/insomnimus/simple-plugins/dsp/core"
	"github.com/insomnimus/simple-plugins/dsp/filter/bank"
	"github.com/insomnimus/simple-plugins/dsp/filter/design"
	"github.com/insomnimus/simple-plugins/dsp/oversample"
	"github.com/insomnimus/simple-plugins/dsp/param"
	"github.com/insomnimus/simple-plugins/dsp/shape"
)

// Parameter IDs of the gain plugin.
const (
	GainParamGain param.ID = iota
)

// NewGain builds the utility gain plugin: a single smoothed gain ramp.
func NewGain() *Chain {
	c := &Chain{
		specs: []param.Spec{
			{ID: GainParamGain, Name: "Gain", Unit: "dB", Min: -30, Max: 30, Default: 0, SmoothMs: 15},
		},
	}

	c.apply = func(c *Chain) {
		c.outGain = core.DBToLinear(c.store.Current(GainParamGain))
	}

	return c
}

// Parameter IDs of the hard clipper plugin.
const (
	ClipParamInputGain param.ID = iota
	ClipParamThreshold
	ClipParamOutputGain
)

// NewClipper builds the hard clipper: input gain into a hard clip at a
// linear threshold, inside an oversampled region, then output gain.
func NewClipper() *Chain {
	c := &Chain{
		specs: []param.Spec{
			{ID: ClipParamInputGain, Name: "Input Gain", Unit: "dB", Min: -30, Max: 30, Default: 0, SmoothMs: 15},
			{ID: ClipParamThreshold, Name: "Threshold", Unit: "", Min: 0.001, Max: 2, Default: 1, SmoothMs: 15},
			{ID: ClipParamOutputGain, Name: "Output Gain", Unit: "dB", Min: -30, Max: 30, Default: 0, SmoothMs: 15},
		},
		hasShaper:  true,
		shaperKind: shape.KindHardClip,
		maxFactor:  oversample.MaxFactor,
		quality:    oversample.QualityBalanced,
	}

	c.apply = func(c *Chain) {
		c.shaper.SetInputGain(core.DBToLinear(c.store.Current(ClipParamInputGain)))
		c.shaper.SetThreshold(c.store.Current(ClipParamThreshold))
		c.outGain = core.DBToLinear(c.store.Current(ClipParamOutputGain))
	}

	return c
}

// Parameter IDs of the filter plugin.
const (
	FilterParamCutoff param.ID = iota
	FilterParamQ
)

// NewFilter builds the one-section filter plugin. kind selects the response
// and must be bank.KindHighpass or bank.KindLowpass.
func NewFilter(kind bank.Kind) (*Chain, error) {
	if kind != bank.KindHighpass && kind != bank.KindLowpass {
		return nil, fmt.Errorf("chain: unsupported filter kind: %d", kind)
	}

	c := &Chain{
		specs: []param.Spec{
			{ID: FilterParamCutoff, Name: "Cutoff", Unit: "Hz", Min: 10, Max: 22000, Default: 1000, SmoothMs: 20},
			{ID: FilterParamQ, Name: "Q", Unit: "", Min: 0.1, Max: 10, Default: design.DefaultQ, SmoothMs: 20},
		},
		sections: 1,
	}

	c.apply = func(c *Chain) {
		c.bank.Configure(0, bank.SectionConfig{
			Kind:    kind,
			Freq:    c.store.Current(FilterParamCutoff),
			Q:       c.store.Current(FilterParamQ),
			Enabled: true,
		})
	}

	return c, nil
}

// Parameter IDs of the tube saturator plugin.
const (
	TubeParamInputGain param.ID = iota
	TubeParamAmount
	TubeParamOutputGain
)

// NewTube builds the tube saturator: input gain into the smooth saturation
// curve, inside an oversampled region, then output gain.
func NewTube() *Chain {
	c := &Chain{
		specs: []param.Spec{
			{ID: TubeParamInputGain, Name: "Input Gain", Unit: "dB", Min: -30, Max: 30, Default: 0, SmoothMs: 15},
			{ID: TubeParamAmount, Name: "Amount", Unit: "%", Min: 0, Max: 100, Default: 20, SmoothMs: 20},
			{ID: TubeParamOutputGain, Name: "Output Gain", Unit: "dB", Min: -30, Max: 30, Default: 0, SmoothMs: 15},
		},
		hasShaper:  true,
		shaperKind: shape.KindTube,
		maxFactor:  oversample.MaxFactor,
		quality:    oversample.QualityBalanced,
	}

	c.apply = func(c *Chain) {
		c.shaper.SetInputGain(core.DBToLinear(c.store.Current(TubeParamInputGain)))
		c.shaper.SetAmount(c.store.Current(TubeParamAmount))
		c.outGain = core.DBToLinear(c.store.Current(TubeParamOutputGain))
	}

	return c
}

// Parameter IDs of the channel strip plugin. The five EQ bands follow the
// fixed leading parameters; use StripBandFreq/StripBandGain/StripBandQ to
// address them.
const (
	StripParamInputGain param.ID = iota
	StripParamHighpassOn
	StripParamHighpass
	StripParamLowpassOn
	StripParamLowpass
	stripParamBandBase
)

// StripBands is the number of EQ bands in the channel strip.
const StripBands = 5

const stripParamsPerBand = 3

// Trailing parameters, after the band block.
const (
	StripParamDrive param.ID = stripParamBandBase + StripBands*stripParamsPerBand + iota
	StripParamOutputGain
)

// StripBandFreq returns the center/corner frequency parameter of band i.
func StripBandFreq(i int) param.ID {
	return stripParamBandBase + param.ID(i*stripParamsPerBand)
}

// StripBandGain returns the gain parameter of band i.
func StripBandGain(i int) param.ID { return StripBandFreq(i) + 1 }

// StripBandQ returns the bandwidth parameter of band i.
func StripBandQ(i int) param.ID { return StripBandFreq(i) + 2 }

// bank section layout of the channel strip
const (
	stripSectionHighpass = iota
	stripSectionLowpass
	stripSectionBandBase
)

type stripBand struct {
	kind bank.Kind
	name string
	freq float64
	lo   float64
	hi   float64
}

var stripBands = [StripBands]stripBand{
	{kind: bank.KindLowShelf, name: "Low Shelf", freq: 100, lo: 30, hi: 450},
	{kind: bank.KindPeak, name: "Low Mid", freq: 300, lo: 100, hi: 1500},
	{kind: bank.KindPeak, name: "Mid", freq: 1000, lo: 300, hi: 5000},
	{kind: bank.KindPeak, name: "High Mid", freq: 3000, lo: 1000, hi: 12000},
	{kind: bank.KindHighShelf, name: "High Shelf", freq: 8000, lo: 1500, hi: 16000},
}

// NewChannelStrip builds the channel strip: a fixed DC blocker, switchable
// high- and low-pass filters, a five band EQ, a tube drive stage and
// input/output gain.
func NewChannelStrip() *Chain {
	specs := []param.Spec{
		{ID: StripParamInputGain, Name: "Input Gain", Unit: "dB", Min: -30, Max: 30, Default: 0, SmoothMs: 15},
		{ID: StripParamHighpassOn, Name: "HPF On", Unit: "", Min: 0, Max: 1, Default: 0, SmoothMs: 0},
		{ID: StripParamHighpass, Name: "HPF Cutoff", Unit: "Hz", Min: 10, Max: 1000, Default: 20, SmoothMs: 20},
		{ID: StripParamLowpassOn, Name: "LPF On", Unit: "", Min: 0, Max: 1, Default: 0, SmoothMs: 0},
		{ID: StripParamLowpass, Name: "LPF Cutoff", Unit: "Hz", Min: 1000, Max: 22000, Default: 20000, SmoothMs: 20},
	}

	for i, band := range stripBands {
		specs = append(specs,
			param.Spec{ID: StripBandFreq(i), Name: band.name + " Freq", Unit: "Hz", Min: band.lo, Max: band.hi, Default: band.freq, SmoothMs: 20},
			param.Spec{ID: StripBandGain(i), Name: band.name + " Gain", Unit: "dB", Min: -15, Max: 15, Default: 0, SmoothMs: 20},
			param.Spec{ID: StripBandQ(i), Name: band.name + " Q", Unit: "", Min: 0.3, Max: 8, Default: 1, SmoothMs: 20},
		)
	}

	specs = append(specs,
		param.Spec{ID: StripParamDrive, Name: "Drive", Unit: "%", Min: 0, Max: 100, Default: 0, SmoothMs: 20},
		param.Spec{ID: StripParamOutputGain, Name: "Output Gain", Unit: "dB", Min: -30, Max: 30, Default: 0, SmoothMs: 15},
	)

	c := &Chain{
		specs:      specs,
		sections:   stripSectionBandBase + StripBands,
		hasShaper:  true,
		shaperKind: shape.KindTube,
		maxFactor:  4,
		quality:    oversample.QualityBalanced,
		dcBlock:    true,
	}

	c.apply = func(c *Chain) {
		// Input gain lands at the shaper input rather than ahead of the
		// filters; the filters are linear, so the order is equivalent and
		// the drive stage sees the gain-staged signal either way.
		c.shaper.SetInputGain(core.DBToLinear(c.store.Current(StripParamInputGain)))
		c.shaper.SetAmount(c.store.Current(StripParamDrive))
		c.outGain = core.DBToLinear(c.store.Current(StripParamOutputGain))

		c.bank.Configure(stripSectionHighpass, bank.SectionConfig{
			Kind:    bank.KindHighpass,
			Freq:    c.store.Current(StripParamHighpass),
			Q:       design.DefaultQ,
			Enabled: c.store.Current(StripParamHighpassOn) >= 0.5,
		})
		c.bank.Configure(stripSectionLowpass, bank.SectionConfig{
			Kind:    bank.KindLowpass,
			Freq:    c.store.Current(StripParamLowpass),
			Q:       design.DefaultQ,
			Enabled: c.store.Current(StripParamLowpassOn) >= 0.5,
		})

		for i, band := range stripBands {
			gainDB := c.store.Current(StripBandGain(i))

			c.bank.Configure(stripSectionBandBase+i, bank.SectionConfig{
				Kind:    band.kind,
				Freq:    c.store.Current(StripBandFreq(i)),
				Q:       c.store.Current(StripBandQ(i)),
				GainDB:  gainDB,
				Enabled: gainDB != 0,
			})
		}
	}

	return c
}
