package main

// Generate SystemVerilog snippets for the mic array FPGA build.
// The snippets are the case items of the angle_delay_lut and display
// modules, and a header of design parameters taken from fpga.Params.
//
// Usage:
//
//    gen_sv [--distance M] [--frequency HZ] [--dir DIR]
//
// Writes LUT.txt, ang_ascii_lut.txt and generated_params.svh into DIR.

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jbrzusto/micarray/fpga"
	"github.com/jbrzusto/micarray/logger"
	"github.com/jbrzusto/micarray/lut"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
)

// generate writes one output file using gen.
func generate(path string, gen func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gen(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	log.Info().Str("file", path).Msg("written")
	return f.Close()
}

func main() {
	distance := flag.Float64P("distance", "d", 0.05, "distance between microphones, m")
	frequency := flag.IntP("frequency", "f", fpga.MIC_SAMPLE_RATE, "audio sampling frequency, Hz")
	dir := flag.String("dir", ".", "output directory")
	flag.Parse()
	logger.Init("info", false)

	if !(*distance > 0) || *frequency <= 0 {
		log.Fatal().Float64("distance", *distance).Int("frequency", *frequency).Msg("distance and frequency must be positive")
	}
	table := lut.DelayTable(*distance, *frequency)
	maxDelay := lut.MaxDelay(table)
	if maxDelay > 255 {
		log.Warn().Int("max_delay", maxDelay).Msg("delay does not fit the 8-bit LUT output")
	}
	params := fpga.DefaultParams(*distance, maxDelay)
	params.SampleRate = uint32(*frequency)

	files := []struct {
		name string
		gen  func(w io.Writer) error
	}{
		{"LUT.txt", func(w io.Writer) error { return lut.WriteDelayCases(w, table) }},
		{"ang_ascii_lut.txt", lut.WriteDisplayCases},
		{"generated_params.svh", func(w io.Writer) error { return lut.WriteParams(w, &params) }},
	}
	for _, f := range files {
		if err := generate(filepath.Join(*dir, f.name), f.gen); err != nil {
			log.Fatal().Err(err).Msg("gen_sv")
		}
	}
}
