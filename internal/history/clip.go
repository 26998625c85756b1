package history

import (
	"fmt"

	"github.com/jj11hh/opus"
)

const (
	clipRate = 16000
	// 20ms at 16kHz.
	frameSize = 320
	// Largest packet libopus will produce.
	maxPacket = 1275
)

// Clip is an Opus-encoded mono 16kHz recording.
type Clip struct {
	Samples int      `msgpack:"samples"`
	Packets [][]byte `msgpack:"packets"`
}

// EncodeClip compresses 16kHz mono samples into 20ms Opus packets. The last
// frame is zero-padded.
func EncodeClip(samples []float32) (*Clip, error) {
	enc, err := opus.NewEncoder(clipRate, 1, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}

	clip := &Clip{Samples: len(samples)}
	frame := make([]float32, frameSize)
	buf := make([]byte, maxPacket)
	for off := 0; off < len(samples); off += frameSize {
		n := copy(frame, samples[off:])
		clear(frame[n:])

		size, err := enc.EncodeFloat32(frame, buf)
		if err != nil {
			return nil, fmt.Errorf("encode frame %d: %w", off/frameSize, err)
		}
		clip.Packets = append(clip.Packets, append([]byte(nil), buf[:size]...))
	}
	return clip, nil
}

// Decode expands the clip back to 16kHz samples.
func (c *Clip) Decode() ([]float32, error) {
	dec, err := opus.NewDecoder(clipRate, 1)
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}

	out := make([]float32, 0, len(c.Packets)*frameSize)
	frame := make([]float32, frameSize)
	for i, p := range c.Packets {
		n, err := dec.DecodeFloat32(p, frame)
		if err != nil {
			return nil, fmt.Errorf("decode frame %d: %w", i, err)
		}
		out = append(out, frame[:n]...)
	}
	if len(out) > c.Samples {
		out = out[:c.Samples]
	}
	return out, nil
}
