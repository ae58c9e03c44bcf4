// Package wavio moves mic signals in and out of WAV files.
//
// Captures are written as mono 16-bit PCM, the format the lab scripts
// have always produced.  Signals inside the tools are float64 in
// [-1, 1), scaled by 32768 to and from PCM.
package wavio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/dh1tw/gosamplerate"
	"github.com/rs/zerolog/log"
	"github.com/youpy/go-wav"
)

const (
	BITS_PER_SAMPLE = 16      // PCM sample width written by this package
	FULL_SCALE      = 32768.0 // int16 full scale
	readChunk       = 4096    // samples per ReadSamples call
)

// ErrFormat is returned for WAV files this package does not read.
var ErrFormat = errors.New("wavio: unsupported format")

// Source is what the WAV reader needs to parse a file; *os.File and
// *bytes.Reader qualify.
type Source interface {
	io.Reader
	io.ReaderAt
}

// ToFloat converts PCM samples to normalised floats.
func ToFloat(samples []int16) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s) / FULL_SCALE
	}
	return out
}

// ToPCM16 converts normalised floats to PCM, clamping to the int16 range.
func ToPCM16(signal []float64) []int16 {
	out := make([]int16, len(signal))
	for i, v := range signal {
		x := math.Round(v * FULL_SCALE)
		switch {
		case math.IsNaN(x):
			x = 0
		case x > math.MaxInt16:
			x = math.MaxInt16
		case x < math.MinInt16:
			x = math.MinInt16
		}
		out[i] = int16(x)
	}
	return out
}

// WritePCM16 writes samples as a mono 16-bit WAV stream.
func WritePCM16(w io.Writer, samples []int16, rate int) error {
	if rate <= 0 {
		return fmt.Errorf("wavio: invalid sample rate %d", rate)
	}
	ww := wav.NewWriter(w, uint32(len(samples)), 1, uint32(rate), BITS_PER_SAMPLE)
	buf := make([]wav.Sample, 0, readChunk)
	for len(samples) > 0 {
		n := min(len(samples), readChunk)
		buf = buf[:0]
		for _, s := range samples[:n] {
			buf = append(buf, wav.Sample{Values: [2]int{int(s)}})
		}
		if err := ww.WriteSamples(buf); err != nil {
			return fmt.Errorf("wavio: write samples: %w", err)
		}
		samples = samples[n:]
	}
	return nil
}

// WriteFloat writes a normalised signal as mono 16-bit PCM.
func WriteFloat(w io.Writer, signal []float64, rate int) error {
	return WritePCM16(w, ToPCM16(signal), rate)
}

// Read returns the first channel of a 16-bit PCM WAV stream as
// normalised floats, and its sample rate.
func Read(r Source) ([]float64, int, error) {
	wr := wav.NewReader(r)
	f, err := wr.Format()
	if err != nil {
		return nil, 0, fmt.Errorf("wavio: read format: %w", err)
	}
	if f.AudioFormat != wav.AudioFormatPCM || f.BitsPerSample != BITS_PER_SAMPLE {
		return nil, 0, fmt.Errorf("%w: audio format %d, %d bits", ErrFormat, f.AudioFormat, f.BitsPerSample)
	}
	if f.NumChannels > 1 {
		log.Debug().Uint16("channels", f.NumChannels).Msg("using first channel of multichannel file")
	}
	var sig []float64
	for {
		samples, err := wr.ReadSamples(readChunk)
		for _, s := range samples {
			sig = append(sig, float64(s.Values[0])/FULL_SCALE)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("wavio: read samples: %w", err)
		}
	}
	return sig, int(f.SampleRate), nil
}

// Resample converts signal from rate from to rate to with libsamplerate.
// Equal rates return signal unchanged.
func Resample(signal []float64, from, to int) ([]float64, error) {
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("wavio: invalid resample %d -> %d Hz", from, to)
	}
	if from == to || len(signal) == 0 {
		return signal, nil
	}
	in := make([]float32, len(signal))
	for i, v := range signal {
		in[i] = float32(v)
	}
	out, err := gosamplerate.Simple(in, float64(to)/float64(from), 1, gosamplerate.SRC_SINC_BEST_QUALITY)
	if err != nil {
		return nil, fmt.Errorf("wavio: resample %d -> %d Hz: %w", from, to, err)
	}
	res := make([]float64, len(out))
	for i, v := range out {
		res[i] = float64(v)
	}
	return res, nil
}

// Load reads a WAV file and resamples it to rate.  A rate of zero keeps
// the file's own rate.  It returns the signal and its rate.
func Load(path string, rate int) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("wavio: %w", err)
	}
	defer f.Close()
	sig, fileRate, err := Read(f)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	if rate == 0 || rate == fileRate {
		return sig, fileRate, nil
	}
	log.Info().Str("file", path).Int("from", fileRate).Int("to", rate).Msg("resampling")
	sig, err = Resample(sig, fileRate, rate)
	if err != nil {
		return nil, 0, err
	}
	return sig, rate, nil
}

// Create writes samples to a new WAV file at path.
func Create(path string, samples []int16, rate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("wavio: %w", err)
	}
	if err := WritePCM16(f, samples, rate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// CreateFloat writes a normalised signal to a new WAV file at path.
func CreateFloat(path string, signal []float64, rate int) error {
	return Create(path, ToPCM16(signal), rate)
}
