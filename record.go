package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jbrzusto/micarray/beamform"
	"github.com/jbrzusto/micarray/capture"
	"github.com/jbrzusto/micarray/fpga"
	"github.com/jbrzusto/micarray/wavio"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// linkBinds maps link config keys to the flags every recording command has.
var linkBinds = map[string]string{
	"link.port":           "port",
	"link.baud":           "baud",
	"capture.sample_rate": "rate",
	"capture.seconds":     "seconds",
	"capture.framing":     "framing",
}

func addLinkFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("port", "p", fpga.DEFAULT_PORT, "serial device of the FPGA link")
	f.IntP("baud", "b", fpga.BAUD_RATE, "baud rate")
	f.IntP("rate", "r", fpga.MIC_SAMPLE_RATE, "sample rate sent by the FPGA, Hz")
	f.Float64P("seconds", "s", 4, "seconds to record")
	f.String("framing", string(capture.Aligned), "link framing: aligned or raw")
}

func withBinds(base map[string]string, extra map[string]string) map[string]string {
	m := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		m[k] = v
	}
	for k, v := range extra {
		m[k] = v
	}
	return m
}

func newCaptureCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Record audio from the FPGA link to a WAV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load(cmd, withBinds(linkBinds, map[string]string{"capture.output": "output"}))
			if err != nil {
				return err
			}
			link, err := fpga.Open(cfg.Link)
			if err != nil {
				return err
			}
			defer link.Close()
			log.Info().Str("port", cfg.Link.Port).Int("baud", cfg.Link.Baud).Msg("serial port initialized")
			_, err = record(cmd.Context(), link, cfg, cfg.Capture.Output)
			return err
		},
	}
	addLinkFlags(cmd)
	cmd.Flags().StringP("output", "o", "output.wav", "WAV file to write")
	return cmd
}

// record runs one capture from src and writes it to path.
func record(ctx context.Context, src io.Reader, cfg *config, path string) (*capture.Recording, error) {
	s := &capture.Session{
		Source:     src,
		SampleRate: cfg.Capture.SampleRate,
		Seconds:    cfg.Capture.Seconds,
		Framing:    capture.Framing(cfg.Capture.Framing),
	}
	rec, err := s.Run(ctx)
	if err != nil {
		return nil, err
	}
	if err := wavio.Create(path, rec.Samples, cfg.Capture.SampleRate); err != nil {
		return nil, err
	}
	log.Info().Str("file", path).Int("samples", len(rec.Samples)).Msg("recording saved")
	return rec, nil
}

func newSweepCmd(a *app) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Record one capture per hardware steering angle",
		Long: `sweep prompts for the angle the FPGA beamformer is currently set to,
records a capture to beam_ang_<angle>.wav, and repeats.  When done it
prints the mean absolute amplitude of each capture, which should peak
at the angle of the source.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load(cmd, withBinds(linkBinds, map[string]string{"capture.dir": "dir"}))
			if err != nil {
				return err
			}
			link, err := fpga.Open(cfg.Link)
			if err != nil {
				return err
			}
			defer link.Close()
			beams, err := sweep(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), link, cfg, count)
			if err != nil {
				return err
			}
			return printBeams(cmd.OutOrStdout(), beams)
		},
	}
	addLinkFlags(cmd)
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of angles to record")
	cmd.Flags().String("dir", ".", "directory for the per-angle WAV files")
	return cmd
}

// sweep asks for count angles on in, recording a capture from src for
// each.  Entering an empty line ends the sweep early.
func sweep(ctx context.Context, in io.Reader, out io.Writer, src io.Reader, cfg *config, count int) ([]beamform.Beam, error) {
	sc := bufio.NewScanner(in)
	var beams []beamform.Beam
	for len(beams) < count {
		fmt.Fprint(out, "Enter the angle the beamformer is set to: ")
		if !sc.Scan() {
			break
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			break
		}
		angle, err := strconv.Atoi(line)
		if err != nil || angle < 0 || angle > 180 {
			fmt.Fprintf(out, "angle must be an integer 0..180, got %q\n", line)
			continue
		}
		path := filepath.Join(cfg.Capture.Dir, fmt.Sprintf("beam_ang_%d.wav", angle))
		rec, err := record(ctx, src, cfg, path)
		if err != nil {
			return nil, err
		}
		b := beamform.Measure(wavio.ToFloat(rec.Samples), float64(cfg.Capture.SampleRate))
		b.Angle = float64(angle)
		beams = append(beams, b)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return beams, nil
}

// printBeams writes one line per beam and the strongest angle.
func printBeams(w io.Writer, beams []beamform.Beam) error {
	if len(beams) == 0 {
		return nil
	}
	fmt.Fprintf(w, "%8s %10s %10s %10s %12s\n", "angle", "mean_abs", "rms", "peak", "dominant_hz")
	for _, b := range beams {
		fmt.Fprintf(w, "%8.1f %10.5f %10.5f %10.5f %12.1f\n", b.Angle, b.MeanAbs, b.RMS, b.Peak, b.DominantHz)
	}
	best, err := beamform.Best(beams)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "strongest: %.1f deg\n", best.Angle)
	return err
}
