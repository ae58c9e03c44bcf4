// Package beamform is the offline reference model of the FPGA's
// delay-and-sum pipeline.
//
// Each channel is shifted by its delay, truncated to whole samples, and
// added into a common output long enough to hold every shifted channel.
// The hardware does the same thing with BRAM delay lines, so outputs
// from this package can be compared sample for sample with captures.
package beamform

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Mode selects how channels are combined.
type Mode int

const (
	Sum  Mode = iota // plain delay-and-sum
	Mean             // delay-and-sum divided by the channel count
)

func (m Mode) String() string {
	switch m {
	case Sum:
		return "sum"
	case Mean:
		return "mean"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode converts "sum" or "mean" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "sum", "":
		return Sum, nil
	case "mean":
		return Mean, nil
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownMode, s)
}

// maxOffset bounds the delay in samples so the output length can't
// overflow an int or exhaust memory on a unit mistake (ms vs s).
const maxOffset = 1 << 30

var (
	// ErrChannelLengthMismatch means there were no channels, or the
	// number of delays differs from the number of channels.
	ErrChannelLengthMismatch = errors.New("beamform: channel count mismatch")

	// ErrInvalidSampleRate means the sample rate was not a positive
	// finite number.
	ErrInvalidSampleRate = errors.New("beamform: invalid sample rate")

	// ErrUnknownMode means a Mode other than Sum or Mean.
	ErrUnknownMode = errors.New("beamform: unknown mode")

	// ErrEmptyOutput means every channel was empty and no delay
	// produced any output samples.
	ErrEmptyOutput = errors.New("beamform: empty output")
)

// InvalidDelayError reports a delay whose sample offset is negative,
// not finite, or too large.
type InvalidDelayError struct {
	Channel int
	Delay   float64 // seconds
	Offset  float64 // delay * sample rate, before truncation
}

func (e *InvalidDelayError) Error() string {
	return fmt.Sprintf("beamform: invalid delay %g s on channel %d (offset %g samples)", e.Delay, e.Channel, e.Offset)
}

// Result is the output of one beamforming pass.
type Result struct {
	Output  []float64   // summed (or averaged) signal
	Delayed [][]float64 // each channel shifted by its delay, same length as Output
	Offsets []int       // per-channel delay in whole samples
}

// Beamformer holds the settings for delay-and-sum.
type Beamformer struct {
	SampleRate float64 // Hz
	Mode       Mode
}

// Form delays and sums channels.  delays[i] is in seconds and applies
// to channels[i].  Inputs are not modified.
func (b Beamformer) Form(channels [][]float64, delays []float64) (*Result, error) {
	if len(channels) == 0 || len(delays) != len(channels) {
		return nil, fmt.Errorf("%w: %d channels, %d delays", ErrChannelLengthMismatch, len(channels), len(delays))
	}
	if !(b.SampleRate > 0) || math.IsInf(b.SampleRate, 0) {
		return nil, fmt.Errorf("%w: %g", ErrInvalidSampleRate, b.SampleRate)
	}
	if b.Mode != Sum && b.Mode != Mean {
		return nil, fmt.Errorf("%w %v", ErrUnknownMode, b.Mode)
	}

	offsets, err := Offsets(delays, b.SampleRate)
	if err != nil {
		return nil, err
	}
	n := 0
	for i, ch := range channels {
		if l := offsets[i] + len(ch); l > n {
			n = l
		}
	}
	if n <= 0 {
		return nil, ErrEmptyOutput
	}

	res := &Result{
		Output:  make([]float64, n),
		Delayed: make([][]float64, len(channels)),
		Offsets: offsets,
	}
	for i, ch := range channels {
		d := make([]float64, n)
		copy(d[offsets[i]:], ch)
		res.Delayed[i] = d
		floats.Add(res.Output, d)
	}
	if b.Mode == Mean {
		floats.Scale(1/float64(len(channels)), res.Output)
	}
	return res, nil
}

// Offsets converts delays in seconds to whole-sample offsets, truncating
// toward zero as the hardware LUT does.
func Offsets(delays []float64, rate float64) ([]int, error) {
	off := make([]int, len(delays))
	for i, d := range delays {
		x := d * rate
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, &InvalidDelayError{Channel: i, Delay: d, Offset: x}
		}
		t := math.Trunc(x)
		if t < 0 || t > maxOffset {
			return nil, &InvalidDelayError{Channel: i, Delay: d, Offset: x}
		}
		off[i] = int(t)
	}
	return off, nil
}

// DelayAndSum is Beamformer{SampleRate: rate, Mode: mode}.Form(channels, delays).
func DelayAndSum(channels [][]float64, delays []float64, rate float64, mode Mode) (*Result, error) {
	return Beamformer{SampleRate: rate, Mode: mode}.Form(channels, delays)
}
