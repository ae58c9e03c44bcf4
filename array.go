package main

import (
	"fmt"

	"github.com/jbrzusto/micarray/beamform"
)

// arrayConfig describes the microphone array being beamformed.
// If Positions is empty the array is a uniform linear array of Mics
// elements Spacing metres apart; otherwise Positions gives the (x, y)
// location of every mic, in metres, in channel order.
type arrayConfig struct {
	Model        string      `mapstructure:"model"`          // board name; shown in logs
	Mics         int         `mapstructure:"mics"`           // number of microphones
	Spacing      float64     `mapstructure:"spacing"`        // metres between adjacent mics (linear array)
	SpeedOfSound float64     `mapstructure:"speed_of_sound"` // m/s
	Positions    [][]float64 `mapstructure:"positions"`      // optional (x, y) per mic
}

// validate checks the array description is usable.
func (a arrayConfig) validate() error {
	if len(a.Positions) > 0 {
		for i, p := range a.Positions {
			if len(p) != 2 {
				return fmt.Errorf("array.positions[%d] has %d coordinates, want 2", i, len(p))
			}
		}
		return nil
	}
	if a.Mics < 1 {
		return fmt.Errorf("array.mics must be at least 1, got %d", a.Mics)
	}
	if !(a.Spacing > 0) {
		return fmt.Errorf("array.spacing must be positive, got %g", a.Spacing)
	}
	return nil
}

// geometry returns the array geometry for n recorded channels.
func (a arrayConfig) geometry(n int) (beamform.Geometry, error) {
	if err := a.validate(); err != nil {
		return nil, err
	}
	if len(a.Positions) == 0 {
		// a linear array is described by its spacing; use one mic per channel
		return beamform.ULA{Spacing: a.Spacing, Mics: n, SpeedOfSound: a.SpeedOfSound}, nil
	}
	if len(a.Positions) != n {
		return nil, fmt.Errorf("%d channels but array.positions lists %d mics", n, len(a.Positions))
	}
	pos := make([][2]float64, n)
	for i, p := range a.Positions {
		pos[i] = [2]float64{p[0], p[1]}
	}
	return beamform.Planar{Positions: pos, SpeedOfSound: a.SpeedOfSound}, nil
}
