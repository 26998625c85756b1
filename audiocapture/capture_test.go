package audiocapture

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

// fakeBackend delivers a fixed set of frames as soon as the stream starts.
type fakeBackend struct {
	dev       DeviceInfo
	devErr    error
	openErr   error
	startErr  error
	frames    []Frames
	stream    *fakeStream
	listed    []DeviceInfo
	listedErr error
}

type fakeStream struct {
	deliver  func()
	startErr error
	started  bool
	stopped  bool
	closed   bool
}

func (s *fakeStream) Start() error {
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	s.deliver()
	return nil
}

func (s *fakeStream) Stop() error  { s.stopped = true; return nil }
func (s *fakeStream) Close() error { s.closed = true; return nil }

func (b *fakeBackend) DefaultInput() (DeviceInfo, error) { return b.dev, b.devErr }

func (b *fakeBackend) Devices() ([]DeviceInfo, error) { return b.listed, b.listedErr }

func (b *fakeBackend) Open(_ DeviceInfo, cb func(Frames)) (Stream, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	b.stream = &fakeStream{
		startErr: b.startErr,
		deliver: func() {
			for _, f := range b.frames {
				cb(f)
			}
		},
	}
	return b.stream, nil
}

func constF32(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func constI16(n int, v int16) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func mic(rate uint32, format Format) DeviceInfo {
	return DeviceInfo{Name: "mic", SampleRate: rate, Format: format, Channels: 1}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		backend *fakeBackend
		wantErr error
	}{
		{"ok", &fakeBackend{dev: mic(44100, FormatFloat32)}, nil},
		{"no_device", &fakeBackend{devErr: ErrNoInputDevice}, ErrNoInputDevice},
		{"config_failure", &fakeBackend{devErr: errors.New("boom")}, ErrDeviceConfig},
		{"zero_rate", &fakeBackend{dev: mic(0, FormatFloat32)}, ErrDeviceConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.backend)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Open() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && s.Info().Name != "mic" {
				t.Errorf("Info().Name = %q, want mic", s.Info().Name)
			}
		})
	}
}

func TestNoInputDeviceMessage(t *testing.T) {
	_, err := Open(&fakeBackend{devErr: ErrNoInputDevice})
	if err == nil || err.Error() != "no input device" {
		t.Fatalf("error = %v, want %q", err, "no input device")
	}
}

func TestRecordFor(t *testing.T) {
	tests := []struct {
		name    string
		dev     DeviceInfo
		d       time.Duration
		frames  []Frames
		wantLen int
		wantVal float32
	}{
		{
			name:    "native_16k_capped",
			dev:     mic(16000, FormatFloat32),
			d:       50 * time.Millisecond, // room for 800
			frames:  []Frames{{F32: constF32(500, 0.5)}, {F32: constF32(500, 0.5)}},
			wantLen: 800,
			wantVal: 0.5,
		},
		{
			name:    "i16_normalized",
			dev:     mic(16000, FormatInt16),
			d:       50 * time.Millisecond,
			frames:  []Frames{{I16: constI16(400, -16384)}},
			wantLen: 400,
			wantVal: -0.5,
		},
		{
			name:    "resampled_from_48k",
			dev:     mic(48000, FormatFloat32),
			d:       50 * time.Millisecond, // room for 2400
			frames:  []Frames{{F32: constF32(4800, 0.25)}},
			wantLen: 800,
			wantVal: 0.25,
		},
		{
			name:    "silence_below_capacity",
			dev:     mic(16000, FormatFloat32),
			d:       50 * time.Millisecond,
			frames:  nil,
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{dev: tt.dev, frames: tt.frames}
			s, err := Open(b)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}

			got, err := s.RecordFor(context.Background(), tt.d)
			if err != nil {
				t.Fatalf("RecordFor: %v", err)
			}
			if len(got) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(got), tt.wantLen)
			}
			for i, v := range got {
				if math.Abs(float64(v-tt.wantVal)) > 1e-6 {
					t.Fatalf("sample %d = %v, want %v", i, v, tt.wantVal)
				}
			}
			if !b.stream.stopped || !b.stream.closed {
				t.Errorf("stream stopped=%v closed=%v, want both", b.stream.stopped, b.stream.closed)
			}
		})
	}
}

func TestRecordErrors(t *testing.T) {
	tests := []struct {
		name      string
		backend   *fakeBackend
		wantErr   error
		wantClose bool
	}{
		{
			name:    "unsupported_i32",
			backend: &fakeBackend{dev: mic(16000, FormatInt32)},
			wantErr: ErrUnsupportedFormat,
		},
		{
			name:    "unsupported_u8",
			backend: &fakeBackend{dev: mic(16000, FormatUint8)},
			wantErr: ErrUnsupportedFormat,
		},
		{
			name:    "open_fails",
			backend: &fakeBackend{dev: mic(16000, FormatFloat32), openErr: errors.New("busy")},
			wantErr: ErrStream,
		},
		{
			name:      "start_fails",
			backend:   &fakeBackend{dev: mic(16000, FormatFloat32), startErr: errors.New("denied")},
			wantErr:   ErrStream,
			wantClose: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.backend)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			_, err = s.RecordFor(context.Background(), 10*time.Millisecond)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("RecordFor() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantClose && !tt.backend.stream.closed {
				t.Error("stream not closed after start failure")
			}
		})
	}
}

func TestRecordForContextCancelled(t *testing.T) {
	b := &fakeBackend{dev: mic(16000, FormatFloat32)}
	s, err := Open(b)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.RecordFor(ctx, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if !b.stream.closed {
		t.Error("stream not closed after cancellation")
	}
}

func TestRecordUntilCancelled(t *testing.T) {
	b := &fakeBackend{
		dev:    mic(16000, FormatFloat32),
		frames: []Frames{{F32: constF32(16000, 0.1)}, {F32: constF32(16000, 0.1)}},
	}
	s, err := Open(b)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	stop := make(chan struct{})
	time.AfterFunc(10*time.Millisecond, func() { close(stop) })

	got, err := s.RecordUntilCancelled(context.Background(), stop)
	if err != nil {
		t.Fatalf("RecordUntilCancelled: %v", err)
	}
	// Unbounded: nothing is dropped.
	if len(got) != 32000 {
		t.Fatalf("len = %d, want 32000", len(got))
	}
	if !b.stream.closed {
		t.Error("stream not closed")
	}
}

func TestSampleBufferDropCount(t *testing.T) {
	b := newSampleBuffer(3)
	b.write(Frames{F32: []float32{1, 2}})
	b.write(Frames{F32: []float32{3, 4, 5}})

	if got := b.samples(); len(got) != 3 || got[2] != 3 {
		t.Fatalf("samples = %v, want [1 2 3]", got)
	}
	if b.droppedCount() != 2 {
		t.Errorf("dropped = %d, want 2", b.droppedCount())
	}
}

func TestDevices(t *testing.T) {
	b := &fakeBackend{listed: []DeviceInfo{mic(44100, FormatFloat32)}}
	devs, err := Devices(b)
	if err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if len(devs) != 1 {
		t.Fatalf("len = %d, want 1", len(devs))
	}

	b = &fakeBackend{listedErr: errors.New("host down")}
	if _, err := Devices(b); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", FormatFloat32},
		{"f32", FormatFloat32},
		{"i16", FormatInt16},
		{"int32", FormatInt32},
		{"u8", FormatUint8},
		{"f64", FormatUnknown},
	}
	for _, tt := range tests {
		if got := ParseFormat(tt.in); got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
