// Package audiocapture records microphone audio into bounded sample buffers
// and resamples it to the 16kHz mono stream expected by Whisper.
package audiocapture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrNoInputDevice is returned when the host has no usable input device.
	ErrNoInputDevice = errors.New("no input device")

	// ErrDeviceConfig is returned when the device format cannot be negotiated.
	ErrDeviceConfig = errors.New("device configuration failed")

	// ErrUnsupportedFormat is returned for native sample formats other than
	// 32-bit float and 16-bit signed integer.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrStream is returned when the device stream fails to start or run.
	ErrStream = errors.New("audio stream error")
)

// Format is a native device sample format.
type Format int

const (
	FormatUnknown Format = iota
	FormatFloat32
	FormatInt16
	FormatInt32
	FormatUint8
)

// ParseFormat maps a config value ("f32", "i16", ...) to a Format.
func ParseFormat(s string) Format {
	switch s {
	case "f32", "float32", "":
		return FormatFloat32
	case "i16", "int16":
		return FormatInt16
	case "i32", "int32":
		return FormatInt32
	case "u8", "uint8":
		return FormatUint8
	default:
		return FormatUnknown
	}
}

func (f Format) String() string {
	switch f {
	case FormatFloat32:
		return "f32"
	case FormatInt16:
		return "i16"
	case FormatInt32:
		return "i32"
	case FormatUint8:
		return "u8"
	default:
		return "unknown"
	}
}

// DeviceInfo describes an input device as negotiated by a Backend.
type DeviceInfo struct {
	Name        string `json:"name"`
	SampleRate  uint32 `json:"sampleRate"`
	Format      Format `json:"format"`
	Channels    int    `json:"channels"`
	MaxChannels int    `json:"maxChannels"`
	IsDefault   bool   `json:"isDefault"`

	ref any // backend-specific handle
}

// Frames carries one device callback worth of samples. Exactly one of the
// slices is set, matching the device format. The slices are only valid for
// the duration of the callback.
type Frames struct {
	F32 []float32
	I16 []int16
}

// Stream is a running device subscription.
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// Backend abstracts the host audio API.
type Backend interface {
	// DefaultInput returns the default input device, or ErrNoInputDevice.
	DefaultInput() (DeviceInfo, error)

	// Devices lists all devices with at least one input channel.
	Devices() ([]DeviceInfo, error)

	// Open subscribes to the device. The callback runs on the audio thread
	// and must not block.
	Open(dev DeviceInfo, callback func(Frames)) (Stream, error)
}

// Session bridges one input device to a sample buffer.
// A Session is not safe for concurrent recordings; the pipeline admits at
// most one run at a time.
type Session struct {
	backend Backend
	info    DeviceInfo
}

// Open selects the default input device and reads its native format.
func Open(backend Backend) (*Session, error) {
	info, err := backend.DefaultInput()
	if err != nil {
		if errors.Is(err, ErrNoInputDevice) {
			return nil, ErrNoInputDevice
		}
		return nil, fmt.Errorf("%w: %v", ErrDeviceConfig, err)
	}
	if info.SampleRate == 0 {
		return nil, fmt.Errorf("%w: device %q reports no sample rate", ErrDeviceConfig, info.Name)
	}

	slog.Info("audio device", "name", info.Name, "format", info.Format, "sample_rate", info.SampleRate)
	return &Session{backend: backend, info: info}, nil
}

// Info returns the negotiated device description.
func (s *Session) Info() DeviceInfo {
	return s.info
}

// RecordFor captures audio for d and returns it resampled to TargetRate.
// The buffer is capped at d * native rate; frames past the cap are dropped.
// ctx only aborts the wait on host shutdown.
func (s *Session) RecordFor(ctx context.Context, d time.Duration) ([]float32, error) {
	capacity := int(d.Seconds() * float64(s.info.SampleRate))
	slog.Info("recording", "duration", d, "capacity", capacity)

	return s.record(capacity, func() error {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// RecordUntilCancelled captures audio with an unbounded buffer until cancel
// is closed or ctx is done, then returns it resampled to TargetRate.
func (s *Session) RecordUntilCancelled(ctx context.Context, cancel <-chan struct{}) ([]float32, error) {
	slog.Info("recording until cancelled")

	return s.record(-1, func() error {
		select {
		case <-cancel:
		case <-ctx.Done():
		}
		return nil
	})
}

func (s *Session) record(capacity int, wait func() error) ([]float32, error) {
	switch s.info.Format {
	case FormatFloat32, FormatInt16:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, s.info.Format)
	}

	buf := newSampleBuffer(capacity)
	stream, err := s.backend.Open(s.info, buf.write)
	if err != nil {
		if errors.Is(err, ErrUnsupportedFormat) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: open: %v", ErrStream, err)
	}
	defer func() {
		if err := stream.Close(); err != nil {
			slog.Warn("close audio stream", "error", err)
		}
	}()

	if err := stream.Start(); err != nil {
		return nil, fmt.Errorf("%w: start: %v", ErrStream, err)
	}

	waitErr := wait()

	if err := stream.Stop(); err != nil {
		slog.Warn("stop audio stream", "error", err)
	}
	if waitErr != nil {
		return nil, waitErr
	}

	samples := buf.samples()
	slog.Info("recorded samples", "count", len(samples), "dropped", buf.droppedCount())

	if s.info.SampleRate == TargetRate {
		return samples, nil
	}
	return Resample(samples, s.info.SampleRate, TargetRate), nil
}

// Devices lists input devices known to the backend.
func Devices(backend Backend) ([]DeviceInfo, error) {
	devs, err := backend.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return devs, nil
}

// sampleBuffer accumulates normalized samples written from the audio thread.
// A negative capacity means unbounded.
type sampleBuffer struct {
	mu       sync.Mutex
	data     []float32
	capacity int
	dropped  int
}

func newSampleBuffer(capacity int) *sampleBuffer {
	b := &sampleBuffer{capacity: capacity}
	if capacity > 0 {
		b.data = make([]float32, 0, capacity)
	}
	return b
}

func (b *sampleBuffer) write(f Frames) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(f.F32) + len(f.I16)
	room := n
	if b.capacity >= 0 {
		room = min(n, b.capacity-len(b.data))
		if room < 0 {
			room = 0
		}
	}
	b.dropped += n - room

	if f.F32 != nil {
		b.data = append(b.data, f.F32[:room]...)
		return
	}
	for _, v := range f.I16[:room] {
		b.data = append(b.data, float32(v)/32768.0)
	}
}

func (b *sampleBuffer) samples() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]float32, len(b.data))
	copy(out, b.data)
	return out
}

func (b *sampleBuffer) droppedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
