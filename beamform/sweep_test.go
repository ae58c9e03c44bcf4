package beamform_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/jbrzusto/micarray/beamform"
)

// planeWave synthesises what a ULA records from a tone arriving from
// angle degrees.
func planeWave(u beamform.ULA, angle, hz, rate float64, n int) [][]float64 {
	delays := beamform.NonNegative(u.Delays(angle))
	chans := make([][]float64, u.Mics)
	for i := range chans {
		// a mic the steering delay holds back hears the wave that much earlier
		lead := delays[i]
		ch := make([]float64, n)
		for j := range ch {
			ch[j] = 0.5 * math.Sin(2*math.Pi*hz*(float64(j)/rate+lead))
		}
		chans[i] = ch
	}
	return chans
}

func TestAngles(t *testing.T) {
	a, err := beamform.Angles(0, 180, 45)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0, 45, 90, 135, 180}
	if len(a) != len(want) {
		t.Fatalf("got %v, want %v", a, want)
	}
	for i := range want {
		if a[i] != want[i] {
			t.Errorf("a[%d] = %g, want %g", i, a[i], want[i])
		}
	}
	if a, _ := beamform.Angles(0, 1, 0.1); len(a) != 11 {
		t.Errorf("0..1 step 0.1: %d angles, want 11", len(a))
	}
	if _, err := beamform.Angles(0, 10, 0); err == nil {
		t.Error("zero step accepted")
	}
	if _, err := beamform.Angles(10, 0, 1); err == nil {
		t.Error("reversed range accepted")
	}
}

func TestScanFindsSource(t *testing.T) {
	const rate = 48000.0
	u := beamform.ULA{Spacing: 0.2, Mics: 4}
	chans := planeWave(u, 30, 1000, rate, 4800)
	angles, _ := beamform.Angles(0, 180, 10)
	beams, err := beamform.Scan(context.Background(), chans, u, angles,
		beamform.Beamformer{SampleRate: rate, Mode: beamform.Mean},
		beamform.ScanOptions{Shift: true, Workers: 3})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(beams) != len(angles) {
		t.Fatalf("%d beams, want %d", len(beams), len(angles))
	}
	for i, b := range beams {
		if b.Angle != angles[i] {
			t.Errorf("beam %d angle %g, want %g", i, b.Angle, angles[i])
		}
	}
	best, err := beamform.Best(beams)
	if err != nil {
		t.Fatal(err)
	}
	if best.Angle != 30 {
		t.Errorf("best angle %g, want 30", best.Angle)
	}
	if math.Abs(best.DominantHz-1000) > rate/4800 {
		t.Errorf("dominant %g Hz, want ~1000", best.DominantHz)
	}
}

func TestScanPropagatesErrors(t *testing.T) {
	u := beamform.ULA{Spacing: 0.2, Mics: 2}
	chans := [][]float64{{1, 2}, {3, 4}}
	// without Shift, angles past 90 give negative delays
	_, err := beamform.Scan(context.Background(), chans, u, []float64{0, 180},
		beamform.Beamformer{SampleRate: 48000}, beamform.ScanOptions{})
	var ide *beamform.InvalidDelayError
	if !errors.As(err, &ide) {
		t.Errorf("err = %v, want InvalidDelayError", err)
	}
	if _, err := beamform.Scan(context.Background(), nil, u, []float64{0}, beamform.Beamformer{SampleRate: 1}, beamform.ScanOptions{}); !errors.Is(err, beamform.ErrChannelLengthMismatch) {
		t.Errorf("no channels: err = %v", err)
	}
}

func TestScanCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	u := beamform.ULA{Spacing: 0.05, Mics: 2}
	_, err := beamform.Scan(ctx, [][]float64{{1}, {1}}, u, []float64{0, 10, 20},
		beamform.Beamformer{SampleRate: 1000}, beamform.ScanOptions{Shift: true})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestMeasure(t *testing.T) {
	b := beamform.Measure([]float64{1, -1, 1, -1}, 8)
	if math.Abs(b.RMS-1) > 1e-12 || math.Abs(b.MeanAbs-1) > 1e-12 || b.Peak != 1 {
		t.Errorf("unexpected %+v", b)
	}
	// alternating signal sits at Nyquist
	if b.DominantHz != 4 {
		t.Errorf("DominantHz = %g, want 4", b.DominantHz)
	}
	if (beamform.Measure(nil, 8) != beamform.Beam{}) {
		t.Error("empty signal has non-zero measures")
	}
	if _, err := beamform.Best(nil); err == nil {
		t.Error("Best(nil) succeeded")
	}
}
