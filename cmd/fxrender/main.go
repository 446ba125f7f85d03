// Command fxrender renders a WAV file offline through one of the effect
// chains, with oversampling forced to its maximum factor and the reported
// latency compensated away.
//
// Usage:
//
//	fxrender --plugin clip --threshold 0.5 input.wav output.wav
//	fxrender --plugin filter --highpass --cutoff 120 input.wav output.wav
//	fxrender --plugin tube --amount 60 --output-gain -3 input.wav output.wav
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/alecthomas/kong"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/insomnimus/simple-plugins/dsp/chain"
	"github.com/insomnimus/simple-plugins/dsp/dither"
	"github.com/insomnimus/simple-plugins/dsp/filter/bank"
)

const blockSize = 4096

// CLI defines the command-line interface.
type CLI struct {
	Plugin string `short:"p" default:"clip" enum:"gain,clip,filter,tube,channel" help:"Effect to render: gain, clip, filter, tube or channel."`

	Gain       float64 `default:"0" help:"Gain in dB (gain plugin)."`
	InputGain  float64 `default:"0" help:"Input gain in dB (clip, tube, channel)."`
	OutputGain float64 `default:"0" help:"Output gain in dB (clip, tube, channel)."`
	Threshold  float64 `default:"1" help:"Linear clip ceiling (clip)."`
	Amount     float64 `default:"20" help:"Saturation amount 0-100 (tube); drive for channel."`
	Cutoff     float64 `default:"1000" help:"Cutoff in Hz (filter)."`
	Q          float64 `default:"0.7071" help:"Filter resonance (filter)."`
	Highpass   bool    `help:"Use the highpass response for the filter plugin."`
	NoDither   bool    `help:"Quantize the output with plain rounding instead of TPDF dither."`

	Input  string `arg:"" type:"existingfile" help:"Input WAV file."`
	Output string `arg:"" help:"Output WAV file."`
}

func main() {
	cli := &CLI{}
	kong.Parse(cli,
		kong.Name("fxrender"),
		kong.Description("Offline WAV renderer for the plugin effect chains"),
		kong.UsageOnError(),
	)

	if err := run(cli); err != nil {
		log.Fatal(err)
	}
}

func run(cli *CLI) error {
	in, err := os.Open(cli.Input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	dec := wav.NewDecoder(in)
	if !dec.IsValidFile() {
		return fmt.Errorf("invalid WAV file: %s", cli.Input)
	}

	format := dec.Format()
	channels := format.NumChannels
	bitDepth := int(dec.BitDepth)

	if channels != 1 && channels != 2 {
		return fmt.Errorf("unsupported channel count: %d", channels)
	}

	scale, err := sampleScale(bitDepth)
	if err != nil {
		return err
	}

	c, err := buildChain(cli)
	if err != nil {
		return err
	}

	err = c.Prepare(chain.Config{
		SampleRate: float64(format.SampleRate),
		MaxBlock:   blockSize,
		Channels:   channels,
		Render:     true,
	})
	if err != nil {
		return err
	}

	applyParams(cli, c)

	out, err := os.Create(cli.Output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	enc := wav.NewEncoder(out, format.SampleRate, bitDepth, channels, 1)

	quant, err := buildQuantizers(bitDepth, channels, cli.NoDither)
	if err != nil {
		return err
	}

	if err := render(dec, enc, c, format, channels, scale, quant); err != nil {
		return err
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize output: %w", err)
	}

	return out.Close()
}

func buildChain(cli *CLI) (*chain.Chain, error) {
	switch cli.Plugin {
	case "gain":
		return chain.NewGain(), nil
	case "clip":
		return chain.NewClipper(), nil
	case "tube":
		return chain.NewTube(), nil
	case "channel":
		return chain.NewChannelStrip(), nil
	case "filter":
		kind := bank.KindLowpass
		if cli.Highpass {
			kind = bank.KindHighpass
		}

		return chain.NewFilter(kind)
	default:
		return nil, fmt.Errorf("unknown plugin: %s", cli.Plugin)
	}
}

// applyParams sets the CLI values as parameter targets and snaps the
// smoothed values onto them, so the render starts settled.
func applyParams(cli *CLI, c *chain.Chain) {
	st := c.Store()

	switch cli.Plugin {
	case "gain":
		st.SetTarget(chain.GainParamGain, cli.Gain)
	case "clip":
		st.SetTarget(chain.ClipParamInputGain, cli.InputGain)
		st.SetTarget(chain.ClipParamThreshold, cli.Threshold)
		st.SetTarget(chain.ClipParamOutputGain, cli.OutputGain)
	case "tube":
		st.SetTarget(chain.TubeParamInputGain, cli.InputGain)
		st.SetTarget(chain.TubeParamAmount, cli.Amount)
		st.SetTarget(chain.TubeParamOutputGain, cli.OutputGain)
	case "filter":
		st.SetTarget(chain.FilterParamCutoff, cli.Cutoff)
		st.SetTarget(chain.FilterParamQ, cli.Q)
	case "channel":
		st.SetTarget(chain.StripParamInputGain, cli.InputGain)
		st.SetTarget(chain.StripParamDrive, cli.Amount)
		st.SetTarget(chain.StripParamOutputGain, cli.OutputGain)
	}

	values := make([]float64, len(c.Specs()))
	st.Snapshot(values)
	st.Restore(values)
}

func buildQuantizers(bitDepth, channels int, plain bool) ([]*dither.Quantizer, error) {
	var opts []dither.Option
	if plain {
		opts = append(opts, dither.WithAmplitude(0), dither.WithNoiseShaping(false))
	}

	quant := make([]*dither.Quantizer, channels)

	for ch := range quant {
		q, err := dither.NewQuantizer(bitDepth, opts...)
		if err != nil {
			return nil, err
		}

		quant[ch] = q
	}

	return quant, nil
}

// render streams the file through the chain in blocks, dropping the chain's
// reported latency from the head and flushing the same amount of tail.
func render(dec *wav.Decoder, enc *wav.Encoder, c *chain.Chain, format *audio.Format, channels int, scale float64, quant []*dither.Quantizer) error {
	latency := c.LatencySamples()

	inBuf := &audio.IntBuffer{
		Data:   make([]int, blockSize*channels),
		Format: format,
	}
	outBuf := &audio.IntBuffer{
		Format:         format,
		SourceBitDepth: int(dec.BitDepth),
	}

	left := make([]float64, blockSize)
	right := make([]float64, blockSize)
	ints := make([]int, blockSize*channels)

	skip := latency

	processFrames := func(frames int) error {
		l := left[:frames]

		var r []float64
		if channels == 2 {
			r = right[:frames]
		}

		c.ProcessBlock(l, r)

		emit := frames - min(skip, frames)
		skip -= frames - emit

		if emit == 0 {
			return nil
		}

		if r != nil {
			r = r[frames-emit:]
		}

		interleave(ints, l[frames-emit:], r, channels, quant)
		outBuf.Data = ints[:emit*channels]

		return enc.Write(outBuf)
	}

	for {
		n, err := dec.PCMBuffer(inBuf)
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		if n == 0 {
			break
		}

		frames := n / channels
		deinterleave(left, right, inBuf.Data[:n], channels, scale)

		if err := processFrames(frames); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}

	// Flush: feed silence to push the last latency samples out.
	for remaining := latency; remaining > 0; {
		frames := min(remaining, blockSize)
		remaining -= frames

		clear(left[:frames])
		clear(right[:frames])

		if err := processFrames(frames); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}

	return nil
}

func deinterleave(left, right []float64, data []int, channels int, scale float64) {
	if channels == 1 {
		for i, v := range data {
			left[i] = float64(v) / scale
		}

		return
	}

	for i := 0; i < len(data); i += 2 {
		left[i/2] = float64(data[i]) / scale
		right[i/2] = float64(data[i+1]) / scale
	}
}

func interleave(dst []int, left, right []float64, channels int, quant []*dither.Quantizer) {
	for i, x := range left {
		dst[i*channels] = quant[0].ProcessInteger(x)
	}

	if channels == 2 {
		for i, x := range right {
			dst[i*channels+1] = quant[1].ProcessInteger(x)
		}
	}
}

func sampleScale(bitDepth int) (float64, error) {
	switch bitDepth {
	case 16:
		return 32768, nil
	case 24:
		return 8388608, nil
	case 32:
		return 2147483648, nil
	default:
		return 0, fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}
}
