package main

// Encode a WAV file as the byte stream the FPGA sends over the UART.
// The output can be replayed through a serial loopback or fed to
// `micarray capture` tests.
//
// Usage:
//
//    mkframes [--rate HZ] [--raw] input.wav output.bin

import (
	"fmt"
	"os"

	"github.com/jbrzusto/micarray/fpga"
	"github.com/jbrzusto/micarray/frame"
	"github.com/jbrzusto/micarray/logger"
	"github.com/jbrzusto/micarray/wavio"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
)

// encode converts the WAV file at in to link bytes at rate Hz.
func encode(in string, rate int, raw bool) ([]byte, error) {
	sig, _, err := wavio.Load(in, rate)
	if err != nil {
		return nil, err
	}
	samples := wavio.ToPCM16(sig)
	if raw {
		return frame.EncodeRaw(samples), nil
	}
	return frame.EncodeAll(samples), nil
}

func main() {
	rate := flag.IntP("rate", "r", fpga.MIC_SAMPLE_RATE, "sample rate of the link (0: keep the file's rate)")
	raw := flag.Bool("raw", false, "write two little-endian bytes per sample instead of aligned frames")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: mkframes [--rate HZ] [--raw] input.wav output.bin")
		flag.PrintDefaults()
	}
	flag.Parse()
	logger.Init("info", false)
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	b, err := encode(flag.Arg(0), *rate, *raw)
	if err != nil {
		log.Fatal().Err(err).Msg("mkframes")
	}
	if err := os.WriteFile(flag.Arg(1), b, 0o644); err != nil {
		log.Fatal().Err(err).Msg("mkframes")
	}
	log.Info().Str("file", flag.Arg(1)).Int("bytes", len(b)).Int("samples", len(b)/frame.BYTES_PER_SAMPLE).Msg("written")
}
