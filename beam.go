package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jbrzusto/micarray/beamform"
	"github.com/jbrzusto/micarray/wavio"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var beamBinds = map[string]string{
	"beamform.sample_rate": "rate",
	"beamform.mode":        "mode",
	"beamform.shift":       "shift",
}

func addBeamFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntP("rate", "r", 44100, "beamformer sample rate; inputs are resampled to it (0: rate of first input)")
	f.StringP("mode", "m", "sum", "combine channels by sum or mean")
	f.Bool("shift", true, "shift delays so none is negative (angles past 90 degrees)")
}

// loadChannels reads every WAV file at the requested rate.  A rate of
// zero takes the rate of the first file and resamples the rest to it.
func loadChannels(paths []string, rate int) ([][]float64, int, error) {
	chans := make([][]float64, len(paths))
	for i, p := range paths {
		sig, r, err := wavio.Load(p, rate)
		if err != nil {
			return nil, 0, err
		}
		rate = r
		chans[i] = sig
		log.Debug().Str("file", p).Int("samples", len(sig)).Int("rate", r).Msg("channel loaded")
	}
	return chans, rate, nil
}

func newBeamformCmd(a *app) *cobra.Command {
	var (
		angle   float64
		output  string
		delayed bool
	)
	cmd := &cobra.Command{
		Use:   "beamform [flags] mic0.wav mic1.wav ...",
		Short: "Delay-and-sum WAV recordings toward one steering angle",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load(cmd, beamBinds)
			if err != nil {
				return err
			}
			chans, rate, err := loadChannels(args, cfg.Beamform.SampleRate)
			if err != nil {
				return err
			}
			geom, err := cfg.Array.geometry(len(chans))
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			delays := geom.Delays(angle)
			if cfg.Beamform.Shift {
				delays = beamform.NonNegative(delays)
			}
			log.Info().Float64("angle", angle).Floats64("delays", delays).Str("array", cfg.Array.Model).Msg("steering")
			bf := beamform.Beamformer{SampleRate: float64(rate), Mode: cfg.mode()}
			res, err := bf.Form(chans, delays)
			if err != nil {
				return err
			}
			log.Info().Ints("offsets", res.Offsets).Int("samples", len(res.Output)).Msg("beamformed")
			if err := wavio.CreateFloat(output, res.Output, rate); err != nil {
				return err
			}
			if delayed {
				for i, d := range res.Delayed {
					p := delayedName(output, i)
					if err := wavio.CreateFloat(p, d, rate); err != nil {
						return err
					}
				}
			}
			m := beamform.Measure(res.Output, float64(rate))
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d samples, rms %.5f, peak %.5f\n", output, len(res.Output), m.RMS, m.Peak)
			return nil
		},
	}
	addBeamFlags(cmd)
	f := cmd.Flags()
	f.Float64VarP(&angle, "angle", "a", 90, "steering angle, degrees")
	f.StringVarP(&output, "output", "o", "beamformed_output.wav", "output WAV file")
	f.BoolVar(&delayed, "delayed", false, "also write each delayed channel as <output>_mic<i>.wav")
	return cmd
}

// delayedName is the file for delayed channel i next to output.
func delayedName(output string, i int) string {
	ext := filepath.Ext(output)
	return fmt.Sprintf("%s_mic%d%s", strings.TrimSuffix(output, ext), i, ext)
}

func newScanCmd(a *app) *cobra.Command {
	var from, to, step float64
	cmd := &cobra.Command{
		Use:   "scan [flags] mic0.wav mic1.wav ...",
		Short: "Beamform WAV recordings over a range of angles and report beam power",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load(cmd, withBinds(beamBinds, map[string]string{"beamform.workers": "workers"}))
			if err != nil {
				return err
			}
			angles, err := beamform.Angles(from, to, step)
			if err != nil {
				return err
			}
			chans, rate, err := loadChannels(args, cfg.Beamform.SampleRate)
			if err != nil {
				return err
			}
			geom, err := cfg.Array.geometry(len(chans))
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			bf := beamform.Beamformer{SampleRate: float64(rate), Mode: cfg.mode()}
			beams, err := beamform.Scan(cmd.Context(), chans, geom, angles, bf,
				beamform.ScanOptions{Shift: cfg.Beamform.Shift, Workers: cfg.Beamform.Workers})
			if err != nil {
				return err
			}
			return printBeams(cmd.OutOrStdout(), beams)
		},
	}
	addBeamFlags(cmd)
	f := cmd.Flags()
	f.Float64Var(&from, "from", 0, "first angle, degrees")
	f.Float64Var(&to, "to", 180, "last angle, degrees")
	f.Float64Var(&step, "step", 5, "angle step, degrees")
	f.IntP("workers", "j", 0, "angles formed concurrently (0: one per CPU)")
	return cmd
}
