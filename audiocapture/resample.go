package audiocapture

import "math"

// TargetRate is the sample rate expected by every transcriber (Whisper).
const TargetRate = 16000

// Resample converts samples from one rate to another using linear
// interpolation. Output length is floor(len(samples) * to / from).
//
// When the rates match the input is returned as a copy.
func Resample(samples []float32, from, to uint32) []float32 {
	if from == to {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}
	if len(samples) == 0 || from == 0 || to == 0 {
		return []float32{}
	}

	n := len(samples)
	ratio := float64(to) / float64(from)
	outLen := int(uint64(n) * uint64(to) / uint64(from))
	out := make([]float32, outLen)

	for i := range out {
		pos := float64(i) / ratio
		lo := int(math.Floor(pos))
		if lo > n-1 {
			lo = n - 1
		}
		hi := min(lo+1, n-1)
		t := float32(pos - float64(lo))
		out[i] = samples[lo]*(1-t) + samples[hi]*t
	}

	return out
}

// ResampleTo16k is a convenience wrapper around Resample for TargetRate.
func ResampleTo16k(samples []float32, from uint32) []float32 {
	return Resample(samples, from, TargetRate)
}
