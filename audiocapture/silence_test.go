package audiocapture

import (
	"math"
	"testing"
)

func makeTone(n int, amp float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = amp * float32(math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return out
}

func TestRMS(t *testing.T) {
	tests := []struct {
		name    string
		samples []float32
		want    float32
	}{
		{"empty", nil, 0},
		{"silence", make([]float32, 100), 0},
		{"constant", []float32{0.5, 0.5, -0.5, -0.5}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RMS(tt.samples); math.Abs(float64(got-tt.want)) > 1e-6 {
				t.Errorf("RMS() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrimSilence(t *testing.T) {
	const rate = 16000
	pad := rate * silencePad / 1000

	lead := make([]float32, rate)
	speech := makeTone(rate/2, 0.3)
	tail := make([]float32, rate)

	var in []float32
	in = append(in, lead...)
	in = append(in, speech...)
	in = append(in, tail...)

	got := TrimSilence(in, rate, DefaultSilenceThreshold)
	if want := len(speech) + 2*pad; len(got) != want {
		t.Errorf("len = %d, want %d", len(got), want)
	}
	if RMS(got) <= RMS(in) {
		t.Errorf("trimmed clip should be louder on average")
	}
}

func TestTrimSilenceUnchanged(t *testing.T) {
	tests := []struct {
		name    string
		samples []float32
	}{
		{"all_silent", make([]float32, 16000)},
		{"all_speech", makeTone(16000, 0.3)},
		{"shorter_than_window", makeTone(100, 0.3)},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TrimSilence(tt.samples, 16000, DefaultSilenceThreshold); len(got) != len(tt.samples) {
				t.Errorf("len = %d, want %d", len(got), len(tt.samples))
			}
		})
	}
}
