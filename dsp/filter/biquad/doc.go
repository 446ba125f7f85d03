// Package biquad provides the second-order IIR filter runtime used by the
// plugin filter stages.
//
// A [Section] implements Direct Form II Transposed processing for a single
// second-order section defined by [Coefficients]. Coefficient design (RBJ
// lowpass/highpass, peaking, shelving) lives in dsp/filter/design; the bank
// of configurable sections a plugin exposes lives in dsp/filter/bank.
package biquad
