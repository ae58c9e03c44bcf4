package beamform

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"runtime"

	"github.com/mjibson/go-dsp/fft"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// Beam summarises the beamformed output at one steering angle.
type Beam struct {
	Angle      float64 // degrees
	RMS        float64
	MeanAbs    float64 // mean absolute amplitude
	Peak       float64 // largest absolute sample
	DominantHz float64 // frequency of the largest non-DC FFT bin
}

// ScanOptions tune Scan.
type ScanOptions struct {
	Shift   bool // apply NonNegative to each delay vector
	Workers int  // concurrent angles; zero means GOMAXPROCS
}

// Angles returns from, from+step, ... up to and including to.
func Angles(from, to, step float64) ([]float64, error) {
	if !(step > 0) || math.IsInf(step, 0) {
		return nil, fmt.Errorf("beamform: angle step must be positive, got %g", step)
	}
	if to < from {
		return nil, fmt.Errorf("beamform: angle range %g..%g is empty", from, to)
	}
	n := int(math.Floor((to-from)/step+1e-9)) + 1
	a := make([]float64, n)
	for i := range a {
		a[i] = from + float64(i)*step
	}
	return a, nil
}

// Scan beamforms channels at every angle and measures each output.
// The result is in the same order as angles.
func Scan(ctx context.Context, channels [][]float64, geom Geometry, angles []float64, bf Beamformer, opts ScanOptions) ([]Beam, error) {
	if len(channels) == 0 {
		return nil, ErrChannelLengthMismatch
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	beams := make([]Beam, len(angles))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, angle := range angles {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			delays := geom.Delays(angle)
			if opts.Shift {
				delays = NonNegative(delays)
			}
			res, err := bf.Form(channels, delays)
			if err != nil {
				return fmt.Errorf("angle %g: %w", angle, err)
			}
			beams[i] = Measure(res.Output, bf.SampleRate)
			beams[i].Angle = angle
			log.Debug().Float64("angle", angle).Float64("rms", beams[i].RMS).Msg("beam formed")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return beams, nil
}

// Measure computes the level statistics of one signal.
func Measure(sig []float64, rate float64) Beam {
	var b Beam
	if len(sig) == 0 {
		return b
	}
	n := float64(len(sig))
	b.RMS = floats.Norm(sig, 2) / math.Sqrt(n)
	b.MeanAbs = floats.Norm(sig, 1) / n
	b.Peak = floats.Norm(sig, math.Inf(1))
	b.DominantHz = dominant(sig, rate)
	return b
}

// dominant finds the strongest non-DC bin of the real FFT of sig.
func dominant(sig []float64, rate float64) float64 {
	if len(sig) < 2 {
		return 0
	}
	bins := fft.FFTReal(sig)
	best, bestMag := 0, 0.0
	for k := 1; k <= len(bins)/2; k++ {
		if m := cmplx.Abs(bins[k]); m > bestMag {
			best, bestMag = k, m
		}
	}
	return float64(best) * rate / float64(len(sig))
}

// Best returns the beam with the highest RMS.
func Best(beams []Beam) (Beam, error) {
	if len(beams) == 0 {
		return Beam{}, errors.New("beamform: no beams")
	}
	best := beams[0]
	for _, b := range beams[1:] {
		if b.RMS > best.RMS {
			best = b
		}
	}
	return best, nil
}
