// Package frame decodes the byte framing used by the array FPGA's UART
// transmitter.
//
// Each 14-bit two's complement mic sample is sent as two bytes.  Bit 7
// of every byte is an alignment bit giving the byte's position in the
// sample (0 = low 7 bits, 1 = high 7 bits) and bits 6:0 are payload:
//
//	byte 0:  0 s6 s5 s4 s3 s2 s1 s0
//	byte 1:  1 s13 s12 s11 s10 s9 s8 s7
//
// Decoded samples are shifted left by 2 to fill an int16, since the
// encoder only carries 14 bits of resolution.
package frame

import (
	"errors"
	"io"

	"github.com/rs/zerolog/log"
)

const (
	BITS_PER_SAMPLE  = 14                         // resolution of transmitted samples
	PAYLOAD_BITS     = 7                          // payload bits per byte
	PAYLOAD_MASK     = 1<<PAYLOAD_BITS - 1        // 0x7F
	ALIGN_SHIFT      = 7                          // position of the alignment bit
	BYTES_PER_SAMPLE = 2                          // framed bytes per sample
	SIGN_BIT         = 1 << (BITS_PER_SAMPLE - 1) // bit 13
	SAMPLE_SPAN      = 1 << BITS_PER_SAMPLE       // 16384
	SAMPLE_SHIFT     = 16 - BITS_PER_SAMPLE       // left shift to int16 full scale
)

// Stats counts framing anomalies seen while decoding.
type Stats struct {
	Samples   int  // samples emitted
	Discarded int  // bytes dropped because their alignment bit was wrong
	Resyncs   int  // runs of consecutive discarded bytes
	Truncated bool // input ended part way through a sample
}

// Result holds decoded samples and the anomaly counts for one stream.
type Result struct {
	Samples []int16
	Stats   Stats
}

// Decode reads r until it is exhausted and returns the decoded samples,
// oldest byte first.  Misaligned bytes are skipped until a byte with the
// expected alignment bit appears, and an incomplete trailing sample is
// dropped.  io.EOF ends decoding normally; any other read error stops
// decoding and is returned along with everything decoded so far.
func Decode(r io.ByteReader) (Result, error) {
	var res Result
	for {
		var part [BYTES_PER_SAMPLE]byte
		for idx := 0; idx < BYTES_PER_SAMPLE; idx++ {
			b, err := nextAligned(r, byte(idx), &res.Stats)
			if err != nil {
				if idx > 0 {
					res.Stats.Truncated = true
				}
				if errors.Is(err, io.EOF) {
					err = nil
				}
				if res.Stats.Truncated {
					log.Debug().Int("samples", res.Stats.Samples).Msg("partial sample at end of stream dropped")
				}
				return res, err
			}
			part[idx] = b & PAYLOAD_MASK
		}
		res.Samples = append(res.Samples, combine(part[0], part[1]))
		res.Stats.Samples++
	}
}

// nextAligned returns the next byte from r whose alignment bit equals
// want, discarding any others.
func nextAligned(r io.ByteReader, want byte, st *Stats) (byte, error) {
	inRun := false
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if b>>ALIGN_SHIFT == want {
			return b, nil
		}
		st.Discarded++
		if !inRun {
			inRun = true
			st.Resyncs++
			log.Debug().
				Uint8("byte", b).
				Uint8("want_align", want).
				Int("sample", st.Samples).
				Msg("alignment missed")
		}
	}
}

// combine builds a full-scale int16 from low and high 7-bit payloads.
func combine(lo, hi byte) int16 {
	v := int32(lo) | int32(hi)<<PAYLOAD_BITS
	if v&SIGN_BIT != 0 {
		v -= SAMPLE_SPAN
	}
	return int16(v << SAMPLE_SHIFT)
}

// sliceReader is an io.ByteReader over a byte slice.
type sliceReader struct {
	b []byte
	i int
}

func (s *sliceReader) ReadByte() (byte, error) {
	if s.i >= len(s.b) {
		return 0, io.EOF
	}
	c := s.b[s.i]
	s.i++
	return c, nil
}

// DecodeBytes decodes an in-memory byte stream.
func DecodeBytes(b []byte) Result {
	res, _ := Decode(&sliceReader{b: b})
	return res
}

// Encode frames one sample the way the FPGA transmitter does.  The two
// low-order bits of s are not transmitted.
func Encode(s int16) [BYTES_PER_SAMPLE]byte {
	v := uint16(s>>SAMPLE_SHIFT) & (SAMPLE_SPAN - 1)
	return [BYTES_PER_SAMPLE]byte{
		byte(v & PAYLOAD_MASK),
		1<<ALIGN_SHIFT | byte(v>>PAYLOAD_BITS),
	}
}

// EncodeAll frames every sample in order.
func EncodeAll(samples []int16) []byte {
	out := make([]byte, 0, len(samples)*BYTES_PER_SAMPLE)
	for _, s := range samples {
		f := Encode(s)
		out = append(out, f[:]...)
	}
	return out
}

// DecodeRaw decodes the unframed format used by early captures: each
// sample is two bytes, little-endian.  A trailing odd byte is dropped.
func DecodeRaw(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(uint16(b[2*i]) | uint16(b[2*i+1])<<8)
	}
	return out
}

// EncodeRaw is the inverse of DecodeRaw.
func EncodeRaw(samples []int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		out[2*i] = byte(s)
		out[2*i+1] = byte(uint16(s) >> 8)
	}
	return out
}
