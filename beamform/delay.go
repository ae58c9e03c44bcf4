package beamform

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// SpeedOfSound in air, m/s.
const SpeedOfSound = 343.0

// A Geometry gives the per-channel arrival delay, in seconds, of a
// plane wave from the steering angle (degrees), relative to channel 0.
type Geometry interface {
	Delays(angle float64) []float64
}

// ULA is a uniform linear array: Mics elements Spacing metres apart.
type ULA struct {
	Spacing      float64 // metres between adjacent mics
	Mics         int
	SpeedOfSound float64 // m/s; zero means SpeedOfSound
}

// Delays returns i * d * cos(angle) / c for each mic i.
func (u ULA) Delays(angle float64) []float64 {
	c := speed(u.SpeedOfSound)
	step := u.Spacing * math.Cos(angle*math.Pi/180) / c
	d := make([]float64, u.Mics)
	for i := range d {
		d[i] = float64(i) * step
	}
	return d
}

// Planar is an arbitrary 2-D array.  Positions are (x, y) in metres.
type Planar struct {
	Positions    [][2]float64
	SpeedOfSound float64 // m/s; zero means SpeedOfSound
}

// Delays returns dot(p_i, u) / c - dot(p_0, u) / c where u is the unit
// vector toward the steering angle.
func (p Planar) Delays(angle float64) []float64 {
	if len(p.Positions) == 0 {
		return nil
	}
	c := speed(p.SpeedOfSound)
	rad := angle * math.Pi / 180
	u := []float64{math.Cos(rad), math.Sin(rad)}
	d := make([]float64, len(p.Positions))
	for i, pos := range p.Positions {
		d[i] = floats.Dot(pos[:], u) / c
	}
	ref := d[0]
	for i := range d {
		d[i] -= ref
	}
	return d
}

func speed(c float64) float64 {
	if c == 0 {
		return SpeedOfSound
	}
	return c
}

// BeamformingDelay is the delay vector for a uniform linear array of
// numMics mics spacing metres apart, steered to angle degrees.
func BeamformingDelay(angle, spacing float64, numMics int) []float64 {
	return ULA{Spacing: spacing, Mics: numMics}.Delays(angle)
}

// NonNegative shifts delays so the smallest is zero.  A linear array
// steered past 90 degrees has negative delays; the hardware handles
// that by holding back the far end of the array instead.
func NonNegative(delays []float64) []float64 {
	out := make([]float64, len(delays))
	if len(delays) == 0 {
		return out
	}
	m := floats.Min(delays)
	for i, d := range delays {
		out[i] = d - m
	}
	return out
}
