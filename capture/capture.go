// Package capture records a fixed length of audio from the FPGA link.
//
// Bytes are pulled off the link as fast as they arrive and queued; the
// queue is decoded in one pass once the capture ends.  Decoding after
// the fact keeps the read loop short enough to keep up with the UART.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jbrzusto/micarray/buffer"
	"github.com/jbrzusto/micarray/frame"
	"github.com/rs/zerolog/log"
)

// Framing is the byte format on the link.
type Framing string

const (
	Aligned Framing = "aligned" // 7-bit payload + alignment bit, see package frame
	Raw     Framing = "raw"     // two bytes per sample, little-endian
)

// ParseFraming checks s names a known framing.
func ParseFraming(s string) (Framing, error) {
	switch f := Framing(s); f {
	case Aligned, Raw:
		return f, nil
	}
	return "", fmt.Errorf("capture: unknown framing %q", s)
}

const (
	CHUNK_SIZE = 4096 // bytes per read from the link
	MAX_IDLE   = 20   // consecutive empty reads (timeouts) before giving up
)

// ErrIdle means the link stopped delivering bytes.
var ErrIdle = errors.New("capture: link idle")

// Session is one capture.
type Session struct {
	Source     io.Reader // usually an *fpga.Link
	SampleRate int       // samples per second sent by the FPGA
	Seconds    float64   // length of the capture
	Framing    Framing
}

// Recording is the decoded result of a Session.
type Recording struct {
	Samples  []int16
	Stats    frame.Stats // framing anomalies; zero for Raw
	Bytes    int         // bytes read from the link
	Short    bool        // link ended before the requested length
	Duration time.Duration
}

// Validate reports problems with the session settings.
func (s *Session) Validate() error {
	var errs []error
	if s.Source == nil {
		errs = append(errs, errors.New("no source"))
	}
	if s.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample rate must be positive, got %d", s.SampleRate))
	}
	if !(s.Seconds > 0) {
		errs = append(errs, fmt.Errorf("seconds must be positive, got %g", s.Seconds))
	}
	if _, err := ParseFraming(string(s.Framing)); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	return nil
}

// Want is the number of link bytes the session reads.
func (s *Session) Want() int {
	return int(float64(s.SampleRate)*s.Seconds) * frame.BYTES_PER_SAMPLE
}

// Run reads the link until the requested length has arrived, the link
// ends, or ctx is done, then decodes everything read.
func (s *Session) Run(ctx context.Context) (*Recording, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	want := s.Want()
	perSecond := s.SampleRate * frame.BYTES_PER_SAMPLE
	log.Info().Float64("seconds", s.Seconds).Int("rate", s.SampleRate).Str("framing", string(s.Framing)).Msg("recording")

	start := time.Now()
	q := &buffer.Queue{}
	chunk := make([]byte, CHUNK_SIZE)
	rec := &Recording{}
	idle := 0
	for q.Len() < want {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := s.Source.Read(chunk[:min(CHUNK_SIZE, want-q.Len())])
		if n > 0 {
			before := q.Len() / perSecond
			q.Write(chunk[:n])
			idle = 0
			if after := q.Len() / perSecond; after > before {
				log.Info().Msgf("%d seconds complete", after)
			}
		}
		if errors.Is(err, io.EOF) {
			rec.Short = true
			log.Warn().Int("bytes", q.Len()).Int("want", want).Msg("link ended early")
			break
		}
		if err != nil {
			return nil, fmt.Errorf("capture: read: %w", err)
		}
		if n == 0 {
			idle++
			if idle >= MAX_IDLE {
				return nil, fmt.Errorf("%w after %d bytes", ErrIdle, q.Len())
			}
		}
	}
	rec.Bytes = q.Len()
	rec.Duration = time.Since(start)

	switch s.Framing {
	case Aligned:
		res, err := decodeAligned(q)
		if err != nil {
			return nil, err
		}
		rec.Samples = res.Samples
		rec.Stats = res.Stats
	case Raw:
		rec.Samples = frame.DecodeRaw(q.Bytes())
	}
	log.Info().Int("samples", len(rec.Samples)).Dur("took", rec.Duration).Msg("recording done")
	return rec, nil
}

// decodeAligned decodes framed bytes from r, which must end with io.EOF.
func decodeAligned(r io.ByteReader) (frame.Result, error) {
	res, err := frame.Decode(r)
	if err != nil {
		return res, fmt.Errorf("capture: decode after %d samples: %w", res.Stats.Samples, err)
	}
	if res.Stats.Discarded > 0 {
		log.Warn().
			Int("discarded", res.Stats.Discarded).
			Int("resyncs", res.Stats.Resyncs).
			Msg("alignment errors in capture")
	}
	return res, nil
}
