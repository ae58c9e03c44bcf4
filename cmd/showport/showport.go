package main

// Show the bytes arriving on the FPGA link, one per line, split into
// the alignment bit and the 7-bit payload.
//
// Usage:
//
//    showport [--port DEV] [--baud N] [--count N]
//
// Each line gives the byte index, the byte in hex, the alignment bit
// (0: low half of a sample, 1: high half) and the payload.  When a high
// byte completes a sample the decoded value is shown too.

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jbrzusto/micarray/fpga"
	"github.com/jbrzusto/micarray/frame"
	"github.com/jbrzusto/micarray/logger"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
)

// show prints up to count bytes from r to w; count <= 0 means until r
// fails or ends.  Reads returning no bytes are link timeouts and are
// skipped.
func show(w io.Writer, r io.Reader, count int) error {
	buf := make([]byte, 256)
	var lo byte
	haveLo := false
	i := 0
	for count <= 0 || i < count {
		want := len(buf)
		if count > 0 {
			want = min(want, count-i)
		}
		n, err := r.Read(buf[:want])
		for _, b := range buf[:n] {
			align := b >> frame.ALIGN_SHIFT
			payload := b & frame.PAYLOAD_MASK
			fmt.Fprintf(w, "%8d 0x%02x %d %3d", i, b, align, payload)
			switch {
			case align == 0:
				lo, haveLo = b, true
			case haveLo:
				res := frame.DecodeBytes([]byte{lo, b})
				fmt.Fprintf(w, " %6d", res.Samples[0])
				haveLo = false
			}
			fmt.Fprintln(w)
			i++
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func main() {
	port := flag.StringP("port", "p", fpga.DEFAULT_PORT, "serial device of the FPGA link")
	baud := flag.IntP("baud", "b", fpga.BAUD_RATE, "baud rate")
	count := flag.IntP("count", "n", 64, "bytes to show (0: until interrupted)")
	flag.Parse()
	logger.Init("info", false)

	link, err := fpga.Open(fpga.LinkConfig{Port: *port, Baud: *baud, ReadTimeout: fpga.DEFAULT_TIMEOUT})
	if err != nil {
		log.Fatal().Err(err).Msg("showport")
	}
	defer link.Close()
	if err := show(os.Stdout, link, *count); err != nil {
		log.Error().Err(err).Msg("showport")
	}
}
