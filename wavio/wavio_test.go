package wavio_test

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"

	"github.com/jbrzusto/micarray/wavio"
)

func TestWriteReadRoundTrip(t *testing.T) {
	samples := make([]int16, 10000)
	for i := range samples {
		samples[i] = int16(i*6 - 30000)
	}
	var buf bytes.Buffer
	if err := wavio.WritePCM16(&buf, samples, 31250); err != nil {
		t.Fatalf("WritePCM16: %v", err)
	}
	if got := buf.Len(); got != 44+2*len(samples) {
		t.Errorf("file is %d bytes, want %d", got, 44+2*len(samples))
	}
	sig, rate, err := wavio.Read(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if rate != 31250 {
		t.Errorf("rate = %d, want 31250", rate)
	}
	back := wavio.ToPCM16(sig)
	if len(back) != len(samples) {
		t.Fatalf("read %d samples, want %d", len(back), len(samples))
	}
	for i := range samples {
		if back[i] != samples[i] {
			t.Fatalf("sample %d: got %d, want %d", i, back[i], samples[i])
		}
	}
}

func TestWriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := wavio.WritePCM16(&buf, nil, 8000); err != nil {
		t.Fatalf("WritePCM16: %v", err)
	}
	sig, rate, err := wavio.Read(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(sig) != 0 || rate != 8000 {
		t.Errorf("got %d samples at %d Hz", len(sig), rate)
	}
}

func TestWriteRejectsBadRate(t *testing.T) {
	if err := wavio.WritePCM16(&bytes.Buffer{}, []int16{1}, 0); err == nil {
		t.Error("rate 0 accepted")
	}
}

func TestToPCM16Clamps(t *testing.T) {
	got := wavio.ToPCM16([]float64{0, 0.5, -1, 1, 2, -2, -0.5})
	want := []int16{0, 16384, -32768, 32767, 32767, -32768, -16384}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ToPCM16[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestToFloat(t *testing.T) {
	got := wavio.ToFloat([]int16{-32768, 0, 16384})
	want := []float64{-1, 0, 0.5}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ToFloat[%d] = %g, want %g", i, got[i], want[i])
		}
	}
}

func TestResampleSameRate(t *testing.T) {
	in := []float64{0.1, 0.2}
	out, err := wavio.Resample(in, 44100, 44100)
	if err != nil {
		t.Fatal(err)
	}
	if &out[0] != &in[0] {
		t.Error("same-rate resample copied the signal")
	}
	if _, err := wavio.Resample(in, 0, 44100); err == nil {
		t.Error("zero source rate accepted")
	}
}

func TestResampleHalfRate(t *testing.T) {
	in := make([]float64, 4000)
	for i := range in {
		in[i] = 0.5
	}
	out, err := wavio.Resample(in, 44100, 22050)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if n := len(out); n < 1900 || n > 2100 {
		t.Fatalf("resampled to %d samples, want about 2000", n)
	}
	for i := len(out) / 4; i < 3*len(out)/4; i++ {
		if math.Abs(out[i]-0.5) > 0.01 {
			t.Fatalf("out[%d] = %g, want DC level 0.5", i, out[i])
		}
	}
}

func TestCreateLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mic0.wav")
	if err := wavio.CreateFloat(path, []float64{0.25, -0.25, 0}, 44100); err != nil {
		t.Fatalf("CreateFloat: %v", err)
	}
	sig, rate, err := wavio.Load(path, 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rate != 44100 || len(sig) != 3 || sig[0] != 0.25 || sig[1] != -0.25 {
		t.Errorf("Load = %v at %d Hz", sig, rate)
	}
	if _, _, err := wavio.Load(filepath.Join(t.TempDir(), "missing.wav"), 0); err == nil {
		t.Error("Load of missing file succeeded")
	}
}
