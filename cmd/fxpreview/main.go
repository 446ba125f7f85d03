// Command fxpreview plays a generated test tone through one of the effect
// chains in real time. The main goroutine acts as the control thread,
// sweeping a parameter target while the audio callback smooths toward it.
// This is the same two-context handoff a plugin host exercises.
//
// Usage:
//
//	fxpreview --plugin tube --freq 220 --duration 6s
//	fxpreview --plugin clip --oversample 8
package main

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/alecthomas/kong"
	"github.com/ebitengine/oto/v3"

	"github.com/insomnimus/simple-plugins/dsp/chain"
	"github.com/insomnimus/simple-plugins/dsp/filter/bank"
	"github.com/insomnimus/simple-plugins/dsp/param"
)

const maxBlock = 4096

// CLI defines the command-line interface.
type CLI struct {
	Plugin     string        `short:"p" default:"tube" enum:"gain,clip,filter,tube,channel" help:"Effect to preview."`
	Freq       float64       `default:"220" help:"Test tone frequency in Hz."`
	Level      float64       `default:"0.5" help:"Test tone level, linear."`
	SampleRate int           `default:"48000" help:"Playback sample rate."`
	Duration   time.Duration `default:"6s" help:"How long to play."`
	Oversample int           `default:"4" help:"Oversampling factor for nonlinear plugins."`
	Sweep      bool          `default:"true" negatable:"" help:"Sweep the main parameter during playback."`
}

func main() {
	cli := &CLI{}
	kong.Parse(cli,
		kong.Name("fxpreview"),
		kong.Description("Realtime test tone preview for the plugin effect chains"),
		kong.UsageOnError(),
	)

	if err := run(cli); err != nil {
		log.Fatal(err)
	}
}

func run(cli *CLI) error {
	c, sweepID, err := buildChain(cli.Plugin)
	if err != nil {
		return err
	}

	err = c.Prepare(chain.Config{
		SampleRate: float64(cli.SampleRate),
		MaxBlock:   maxBlock,
		Channels:   1,
	})
	if err != nil {
		return err
	}

	if cli.Plugin == "clip" || cli.Plugin == "tube" {
		if err := c.SetOversampleFactor(cli.Oversample); err != nil {
			return err
		}
	}

	stream := &toneStream{
		chain: c,
		rate:  float64(cli.SampleRate),
		freq:  cli.Freq,
		level: cli.Level,
		block: make([]float64, maxBlock),
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   cli.SampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return fmt.Errorf("open audio output: %w", err)
	}
	<-ready

	player := ctx.NewPlayer(stream)
	player.Play()

	defer player.Close()

	fmt.Printf("playing %s through %q for %s (latency %d samples)\n",
		describeTone(cli), cli.Plugin, cli.Duration, c.LatencySamples())

	if !cli.Sweep || sweepID < 0 {
		time.Sleep(cli.Duration)
		return nil
	}

	// Control thread: glide the swept parameter from min to max and back.
	// Targets are plain atomic stores; the audio goroutine smooths them.
	spec := c.Store().Spec(sweepID)

	steps := int(cli.Duration / (50 * time.Millisecond))
	if steps < 2 {
		time.Sleep(cli.Duration)
		return nil
	}

	for i := range steps {
		phase := float64(i) / float64(steps-1)
		tri := 1 - math.Abs(2*phase-1)

		c.Store().SetTarget(sweepID, spec.Min+(spec.Max-spec.Min)*tri)
		time.Sleep(50 * time.Millisecond)
	}

	return nil
}

func buildChain(plugin string) (*chain.Chain, param.ID, error) {
	switch plugin {
	case "gain":
		return chain.NewGain(), chain.GainParamGain, nil
	case "clip":
		return chain.NewClipper(), chain.ClipParamThreshold, nil
	case "tube":
		return chain.NewTube(), chain.TubeParamAmount, nil
	case "channel":
		return chain.NewChannelStrip(), chain.StripParamDrive, nil
	case "filter":
		c, err := chain.NewFilter(bank.KindLowpass)
		if err != nil {
			return nil, -1, err
		}

		return c, chain.FilterParamCutoff, nil
	default:
		return nil, -1, fmt.Errorf("unknown plugin: %s", plugin)
	}
}

func describeTone(cli *CLI) string {
	return fmt.Sprintf("%.0f Hz sine at %.2f", cli.Freq, cli.Level)
}

// toneStream feeds the oto player: it generates the sine, runs the chain's
// realtime path and encodes float32 little-endian frames.
type toneStream struct {
	chain *chain.Chain
	rate  float64
	freq  float64
	level float64
	phase float64
	block []float64
}

func (s *toneStream) Read(p []byte) (int, error) {
	frames := len(p) / 4
	if frames > len(s.block) {
		frames = len(s.block)
	}

	if frames == 0 {
		return 0, nil
	}

	step := 2 * math.Pi * s.freq / s.rate

	for i := range frames {
		s.block[i] = s.level * math.Sin(s.phase)

		s.phase += step
		if s.phase > 2*math.Pi {
			s.phase -= 2 * math.Pi
		}
	}

	s.chain.ProcessBlock(s.block[:frames], nil)

	for i, x := range s.block[:frames] {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(float32(x)))
	}

	return frames * 4, nil
}
