package audiocapture

import "math"

// DefaultSilenceThreshold is the RMS level under which a window counts as
// silence.
const DefaultSilenceThreshold = 0.01

const (
	silenceWindow = 20  // ms
	silencePad    = 150 // ms kept around speech
)

// TrimSilence drops leading and trailing windows whose RMS stays at or under
// threshold, keeping a short pad around the speech. Input that never rises
// above threshold is returned unchanged.
func TrimSilence(samples []float32, rate uint32, threshold float32) []float32 {
	win := int(rate) * silenceWindow / 1000
	if win <= 0 || len(samples) < win {
		return samples
	}

	first, last := -1, -1
	for off := 0; off < len(samples); off += win {
		end := min(off+win, len(samples))
		if RMS(samples[off:end]) > threshold {
			if first < 0 {
				first = off
			}
			last = end
		}
	}
	if first < 0 {
		return samples
	}

	pad := int(rate) * silencePad / 1000
	return samples[max(first-pad, 0):min(last+pad, len(samples))]
}

// RMS returns the root mean square of samples.
func RMS(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(samples))))
}
