package bank

import (
	"math"
	"math/rand"
	"testing"

	"github.com/insomnimus/simple-plugins/dsp/filter/biquad"
)

const sampleRate = 48000.0

func newTestBank(t *testing.T, n int) *Bank {
	t.Helper()

	b, err := New(n, sampleRate)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return b
}

func TestNewValidation(t *testing.T) {
	if _, err := New(0, sampleRate); err == nil {
		t.Error("zero sections: expected error")
	}

	if _, err := New(3, 0); err == nil {
		t.Error("zero sample rate: expected error")
	}
}

func TestDisabledSectionsPassThrough(t *testing.T) {
	b := newTestBank(t, 4)

	left := []float64{1, -0.5, 0.25, 0, 0.75}
	want := append([]float64(nil), left...)

	b.ProcessBlock(left, nil)

	for i := range left {
		if left[i] != want[i] {
			t.Fatalf("sample %d altered by disabled bank: %v", i, left[i])
		}
	}
}

func TestConfigureEpsilonGate(t *testing.T) {
	b := newTestBank(t, 1)
	b.Configure(0, SectionConfig{Kind: KindLowpass, Freq: 1000, Q: 0.707, Enabled: true})

	before := b.left[0].Coefficients

	// A sub-epsilon nudge must not redesign.
	b.Configure(0, SectionConfig{Kind: KindLowpass, Freq: 1000 * (1 + 1e-12), Q: 0.707, Enabled: true})

	if b.left[0].Coefficients != before {
		t.Error("negligible change triggered a redesign")
	}

	// A real change must.
	b.Configure(0, SectionConfig{Kind: KindLowpass, Freq: 2000, Q: 0.707, Enabled: true})

	if b.left[0].Coefficients == before {
		t.Error("cutoff change did not redesign coefficients")
	}
}

func TestChannelsKeepSeparateState(t *testing.T) {
	b := newTestBank(t, 1)
	b.Configure(0, SectionConfig{Kind: KindLowpass, Freq: 500, Q: 0.707, Enabled: true})

	left := make([]float64, 64)
	right := make([]float64, 64)
	left[0] = 1 // impulse on the left only

	b.ProcessBlock(left, right)

	var leftEnergy, rightEnergy float64
	for i := range left {
		leftEnergy += left[i] * left[i]
		rightEnergy += right[i] * right[i]
	}

	if leftEnergy == 0 {
		t.Error("left channel produced no output")
	}

	if rightEnergy != 0 {
		t.Error("right channel state contaminated by left input")
	}
}

func TestStateSurvivesRedesign(t *testing.T) {
	b := newTestBank(t, 1)
	b.Configure(0, SectionConfig{Kind: KindLowpass, Freq: 500, Q: 0.707, Enabled: true})

	buf := make([]float64, 32)
	buf[0] = 1
	b.ProcessBlock(buf, nil)

	st := b.left[0].State()
	if st == [2]float64{} {
		t.Fatal("expected nonzero state after impulse")
	}

	b.Configure(0, SectionConfig{Kind: KindLowpass, Freq: 600, Q: 0.707, Enabled: true})

	if b.left[0].State() != st {
		t.Error("redesign must not clear delay state")
	}
}

func TestEnableClearsStaleState(t *testing.T) {
	b := newTestBank(t, 1)
	b.Configure(0, SectionConfig{Kind: KindPeak, Freq: 1000, Q: 1, GainDB: 6, Enabled: true})

	buf := make([]float64, 32)
	buf[0] = 1
	b.ProcessBlock(buf, nil)

	b.Configure(0, SectionConfig{Kind: KindPeak, Freq: 1000, Q: 1, GainDB: 6, Enabled: false})
	b.Configure(0, SectionConfig{Kind: KindPeak, Freq: 1000, Q: 1, GainDB: 6, Enabled: true})

	if b.left[0].State() != [2]float64{} {
		t.Error("re-enabling a section must clear its stale state")
	}
}

func TestSetSampleRateRedesignsAndResets(t *testing.T) {
	b := newTestBank(t, 1)
	b.Configure(0, SectionConfig{Kind: KindHighpass, Freq: 100, Q: 0.707, Enabled: true})

	before := b.left[0].Coefficients

	buf := make([]float64, 16)
	buf[0] = 1
	b.ProcessBlock(buf, nil)

	if err := b.SetSampleRate(96000); err != nil {
		t.Fatalf("SetSampleRate: %v", err)
	}

	if b.left[0].Coefficients == before {
		t.Error("coefficients not redesigned for new rate")
	}

	if b.left[0].State() != [2]float64{} {
		t.Error("state not cleared on sample-rate change")
	}
}

// TestAutomationSweepStability sweeps cutoff continuously under full-scale
// noise; output must stay finite and bounded throughout.
func TestAutomationSweepStability(t *testing.T) {
	b := newTestBank(t, 2)
	rng := rand.New(rand.NewSource(3))
	buf := make([]float64, 128)

	for block := range 2000 {
		f := 20 * math.Pow(1000, float64(block%500)/499) // 20 Hz .. 20 kHz
		b.Configure(0, SectionConfig{Kind: KindHighpass, Freq: f, Q: 2, Enabled: true})
		b.Configure(1, SectionConfig{Kind: KindPeak, Freq: 20020 - f, Q: 4, GainDB: 9, Enabled: true})

		for i := range buf {
			buf[i] = rng.Float64()*2 - 1
		}

		b.ProcessBlock(buf, nil)

		for i, y := range buf {
			if math.IsNaN(y) || math.IsInf(y, 0) || math.Abs(y) > 1000 {
				t.Fatalf("block %d sample %d: output %v", block, i, y)
			}
		}
	}
}

func TestDisabledDesignIsIdentity(t *testing.T) {
	b := newTestBank(t, 1)
	if got := b.designSection(SectionConfig{Kind: KindLowpass, Freq: 100, Q: 1}); got != biquad.Identity() {
		t.Errorf("disabled section designed %+v, want identity", got)
	}
}
