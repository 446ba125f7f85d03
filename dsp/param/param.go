// Package param implements the shared parameter table that connects the
// control side of a plugin (host automation, UI) to its audio processing.
//
// The table is fixed at construction. The control thread only ever writes
// parameter targets, via atomic stores; the audio thread is the only writer
// of the smoothed current values. This single-writer split makes the store
// safe to use across the two threads without locks, and Advance/Current
// never allocate.
package param

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/insomnimus/simple-plugins/dsp/core"
)

var (
	// ErrNoParams indicates an empty declaration list.
	ErrNoParams = errors.New("param: no parameters declared")
	// ErrInvalidRate indicates a non-positive or non-finite sample rate.
	ErrInvalidRate = errors.New("param: invalid sample rate")
)

// settleLog is ln(10^4): smoothing is considered settled when the remaining
// distance has decayed by 80 dB, which the snap threshold then rounds away.
const settleLog = 9.210340371976184

// snapScale is the snap threshold as a fraction of the declared range.
const snapScale = 1e-4

// ID identifies a declared parameter. IDs are dense indices 0..n-1 so that
// the audio thread can address the table without hashing.
type ID int

// Spec declares one parameter.
type Spec struct {
	ID       ID
	Name     string
	Unit     string
	Min      float64
	Max      float64
	Default  float64
	SmoothMs float64 // smoothing time constant; 0 steps on the next block
}

// Store holds current and target values for every declared parameter.
type Store struct {
	specs []Spec

	target  []atomic.Uint64 // float64 bits, written by the control thread
	current []float64       // written only by Advance on the audio thread
	coef    []float64       // per-sample smoothing pole
	snap    []float64       // absolute snap threshold per parameter

	sampleRate float64
}

// NewStore validates the declaration list and builds the parameter table.
// IDs must be the dense range 0..len(specs)-1, in any order.
func NewStore(specs []Spec, sampleRate float64) (*Store, error) {
	if len(specs) == 0 {
		return nil, ErrNoParams
	}

	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return nil, fmt.Errorf("%w: %f", ErrInvalidRate, sampleRate)
	}

	s := &Store{
		specs:      make([]Spec, len(specs)),
		target:     make([]atomic.Uint64, len(specs)),
		current:    make([]float64, len(specs)),
		coef:       make([]float64, len(specs)),
		snap:       make([]float64, len(specs)),
		sampleRate: sampleRate,
	}

	seen := make([]bool, len(specs))

	for _, spec := range specs {
		if spec.ID < 0 || int(spec.ID) >= len(specs) {
			return nil, fmt.Errorf("param: id %d out of range [0, %d)", spec.ID, len(specs))
		}

		if seen[spec.ID] {
			return nil, fmt.Errorf("param: duplicate id %d", spec.ID)
		}

		seen[spec.ID] = true

		if !core.IsFinite(spec.Min) || !core.IsFinite(spec.Max) || spec.Min >= spec.Max {
			return nil, fmt.Errorf("param %q: invalid range [%f, %f]", spec.Name, spec.Min, spec.Max)
		}

		if spec.Default < spec.Min || spec.Default > spec.Max || !core.IsFinite(spec.Default) {
			return nil, fmt.Errorf("param %q: default %f outside [%f, %f]",
				spec.Name, spec.Default, spec.Min, spec.Max)
		}

		if spec.SmoothMs < 0 || !core.IsFinite(spec.SmoothMs) {
			return nil, fmt.Errorf("param %q: smoothing time must be >= 0: %f", spec.Name, spec.SmoothMs)
		}

		s.specs[spec.ID] = spec
		s.current[spec.ID] = spec.Default
		s.target[spec.ID].Store(math.Float64bits(spec.Default))
		s.snap[spec.ID] = snapScale * (spec.Max - spec.Min)
	}

	s.updateCoefs()

	return s, nil
}

// Len returns the number of declared parameters.
func (s *Store) Len() int { return len(s.specs) }

// Spec returns the declaration for id.
func (s *Store) Spec(id ID) Spec { return s.specs[id] }

// SetTarget sets the automation target for id, clamping into the declared
// range. Safe to call from the control thread at any time, including while
// a block is being processed; the new target is picked up by the next
// Advance call.
func (s *Store) SetTarget(id ID, value float64) {
	if id < 0 || int(id) >= len(s.specs) {
		return
	}

	spec := &s.specs[id]
	if math.IsNaN(value) {
		value = spec.Default
	}

	value = core.Clamp(value, spec.Min, spec.Max)
	s.target[id].Store(math.Float64bits(value))
}

// Target returns the pending automation target for id.
func (s *Store) Target(id ID) float64 {
	return math.Float64frombits(s.target[id].Load())
}

// Current returns the smoothed value for id. The value is stable between
// two Advance calls, so every consumer within one block sees the same value.
func (s *Store) Current(id ID) float64 {
	return s.current[id]
}

// Advance moves every parameter toward its target over n samples of elapsed
// time. Called once per block by the audio thread; never blocks or allocates.
//
// The smoothing law is a one-pole exponential approach, so the movement is
// monotonic with no overshoot. Once the remaining distance falls below the
// snap threshold the value locks onto the target exactly.
func (s *Store) Advance(n int) {
	if n <= 0 {
		return
	}

	for i := range s.current {
		t := math.Float64frombits(s.target[i].Load())

		c := s.current[i]
		if c == t {
			continue
		}

		step := 1 - math.Pow(s.coef[i], float64(n))
		c += (t - c) * step

		if math.Abs(t-c) <= s.snap[i] {
			c = t
		}

		s.current[i] = c
	}
}

// Reset snaps every current value to its target. Called on transport reset
// so a stopped stream does not resume mid-glide.
func (s *Store) Reset() {
	for i := range s.current {
		s.current[i] = math.Float64frombits(s.target[i].Load())
	}
}

// SetSampleRate updates the smoothing coefficients for a new stream rate.
// Must be called outside the realtime path.
func (s *Store) SetSampleRate(sampleRate float64) error {
	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return fmt.Errorf("%w: %f", ErrInvalidRate, sampleRate)
	}

	s.sampleRate = sampleRate
	s.updateCoefs()

	return nil
}

// Snapshot copies the current target of every parameter into dst, indexed
// by ID. This is the id -> value list the host integration layer persists.
func (s *Store) Snapshot(dst []float64) {
	for i := range s.specs {
		if i >= len(dst) {
			return
		}

		dst[i] = math.Float64frombits(s.target[i].Load())
	}
}

// Restore applies a persisted value list: each entry becomes the new target
// and the current value snaps to it immediately.
func (s *Store) Restore(values []float64) {
	for i, v := range values {
		if i >= len(s.specs) {
			return
		}

		s.SetTarget(ID(i), v)
		s.current[i] = s.Target(ID(i))
	}
}

func (s *Store) updateCoefs() {
	for i, spec := range s.specs {
		if spec.SmoothMs <= 0 {
			s.coef[i] = 0
			continue
		}

		tau := spec.SmoothMs / 1000 * s.sampleRate
		s.coef[i] = math.Exp(-settleLog / tau)
	}
}
