package frame_test

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"testing"

	"github.com/jbrzusto/micarray/buffer"
	"github.com/jbrzusto/micarray/frame"
)

func TestDecodeEvery14BitValue(t *testing.T) {
	for v := 0; v < 1<<14; v++ {
		in := []byte{byte(v & 0x7F), 0x80 | byte(v>>7)}
		res := frame.DecodeBytes(in)
		if len(res.Samples) != 1 {
			t.Fatalf("v=%d: got %d samples, want 1", v, len(res.Samples))
		}
		want := v
		if v >= 8192 {
			want = v - 16384
		}
		want <<= 2
		if int(res.Samples[0]) != want {
			t.Fatalf("v=%d: got %d, want %d", v, res.Samples[0], want)
		}
	}
}

func TestDecodeEmpty(t *testing.T) {
	res := frame.DecodeBytes(nil)
	if len(res.Samples) != 0 {
		t.Errorf("got %d samples, want 0", len(res.Samples))
	}
	if res.Stats != (frame.Stats{}) {
		t.Errorf("stats = %+v, want zero", res.Stats)
	}
}

func TestDecodeCount(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, n := range []int{1, 2, 17, 1000} {
		in := make([]byte, 0, 2*n)
		for i := 0; i < n; i++ {
			v := rng.Intn(1 << 14)
			in = append(in, byte(v&0x7F), 0x80|byte(v>>7))
		}
		res := frame.DecodeBytes(in)
		if len(res.Samples) != len(in)/2 {
			t.Errorf("n=%d: got %d samples, want %d", n, len(res.Samples), len(in)/2)
		}
		if res.Stats.Discarded != 0 || res.Stats.Truncated {
			t.Errorf("n=%d: unexpected anomalies %+v", n, res.Stats)
		}
	}
}

func TestDecodeResync(t *testing.T) {
	tests := []struct {
		name      string
		in        []byte
		want      []int16
		discarded int
		resyncs   int
		truncated bool
	}{
		{
			name:      "starts with high byte",
			in:        []byte{0x81, 0x01, 0x80},
			want:      []int16{4},
			discarded: 1,
			resyncs:   1,
		},
		{
			name:      "starts mid frame with several high bytes",
			in:        []byte{0x85, 0x86, 0x87, 0x02, 0x80, 0x03, 0x80},
			want:      []int16{8, 12},
			discarded: 3,
			resyncs:   1,
		},
		{
			name:      "repeated low byte waits for a high byte",
			in:        []byte{0x01, 0x02, 0x80},
			want:      []int16{4},
			discarded: 1,
			resyncs:   1,
		},
		{
			name:      "two separate misalignments",
			in:        []byte{0x80, 0x01, 0x80, 0x81, 0x02, 0x80},
			want:      []int16{4, 8},
			discarded: 2,
			resyncs:   2,
		},
		{
			name:      "trailing low byte is dropped",
			in:        []byte{0x01, 0x80, 0x02},
			want:      []int16{4},
			truncated: true,
		},
		{
			name:      "only high bytes",
			in:        []byte{0x80, 0xFF},
			want:      nil,
			discarded: 2,
			resyncs:   1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := frame.DecodeBytes(tt.in)
			if len(res.Samples) != len(tt.want) {
				t.Fatalf("got %v, want %v", res.Samples, tt.want)
			}
			for i := range tt.want {
				if res.Samples[i] != tt.want[i] {
					t.Errorf("sample %d: got %d, want %d", i, res.Samples[i], tt.want[i])
				}
			}
			if res.Stats.Discarded != tt.discarded {
				t.Errorf("Discarded = %d, want %d", res.Stats.Discarded, tt.discarded)
			}
			if res.Stats.Resyncs != tt.resyncs {
				t.Errorf("Resyncs = %d, want %d", res.Stats.Resyncs, tt.resyncs)
			}
			if res.Stats.Truncated != tt.truncated {
				t.Errorf("Truncated = %v, want %v", res.Stats.Truncated, tt.truncated)
			}
			if res.Stats.Samples != len(tt.want) {
				t.Errorf("Stats.Samples = %d, want %d", res.Stats.Samples, len(tt.want))
			}
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	var samples []int16
	for s := -32768; s <= 32767; s += 4 {
		samples = append(samples, int16(s))
	}
	res := frame.DecodeBytes(frame.EncodeAll(samples))
	if len(res.Samples) != len(samples) {
		t.Fatalf("got %d samples, want %d", len(res.Samples), len(samples))
	}
	for i := range samples {
		if res.Samples[i] != samples[i] {
			t.Fatalf("sample %d: got %d, want %d", i, res.Samples[i], samples[i])
		}
	}
}

func TestEncodeDropsLowBits(t *testing.T) {
	f := frame.Encode(7)
	res := frame.DecodeBytes(f[:])
	if res.Samples[0] != 4 {
		t.Errorf("got %d, want 4", res.Samples[0])
	}
	f = frame.Encode(-1)
	if f[0]>>7 != 0 || f[1]>>7 != 1 {
		t.Errorf("alignment bits wrong: %08b %08b", f[0], f[1])
	}
	res = frame.DecodeBytes(f[:])
	if res.Samples[0] != -4 {
		t.Errorf("got %d, want -4", res.Samples[0])
	}
}

func TestDecodeFromQueue(t *testing.T) {
	q := buffer.NewQueue(frame.EncodeAll([]int16{100, -100, 32764}))
	res, err := frame.Decode(q)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []int16{100, -100, 32764}
	for i := range want {
		if res.Samples[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, res.Samples[i], want[i])
		}
	}
	if q.Len() != 0 {
		t.Errorf("queue not drained: %d bytes left", q.Len())
	}
}

type failingReader struct {
	r   io.ByteReader
	err error
}

func (f *failingReader) ReadByte() (byte, error) {
	b, err := f.r.ReadByte()
	if err == io.EOF {
		return 0, f.err
	}
	return b, err
}

func TestDecodeReadError(t *testing.T) {
	boom := errors.New("link dropped")
	r := &failingReader{r: bytes.NewReader([]byte{0x01, 0x80, 0x02}), err: boom}
	res, err := frame.Decode(r)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if len(res.Samples) != 1 || res.Samples[0] != 4 {
		t.Errorf("partial result = %v, want [4]", res.Samples)
	}
}

func TestRawRoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768, 1234}
	b := frame.EncodeRaw(in)
	if !bytes.Equal(b[:4], []byte{0, 0, 1, 0}) {
		t.Errorf("not little-endian: % x", b[:4])
	}
	out := frame.DecodeRaw(append(b, 0x55))
	if len(out) != len(in) {
		t.Fatalf("got %d samples, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d: got %d, want %d", i, out[i], in[i])
		}
	}
}

func TestDecodeArbitraryBytesDoesNotPanic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	b := make([]byte, 4096)
	rng.Read(b)
	res := frame.DecodeBytes(b)
	if 2*len(res.Samples)+res.Stats.Discarded > len(b) {
		t.Errorf("consumed more bytes than supplied: %+v", res.Stats)
	}
}
