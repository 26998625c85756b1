//go:build cgo

package audiocapture

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudio is a Backend over the host's PortAudio library.
// Streams are always opened in mono at the device's default rate.
type PortAudio struct {
	format          Format
	framesPerBuffer int

	mu      sync.Mutex
	inited  bool
	initErr error
}

// NewPortAudio creates a PortAudio backend that negotiates the given sample
// format. Pass FormatFloat32 unless the device only delivers integers.
func NewPortAudio(format Format) *PortAudio {
	return &PortAudio{format: format, framesPerBuffer: 1024}
}

func (p *PortAudio) init() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.inited {
		p.initErr = portaudio.Initialize()
		p.inited = p.initErr == nil
	}
	return p.initErr
}

// Close terminates PortAudio if it was initialized.
func (p *PortAudio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.inited {
		return nil
	}
	p.inited = false
	return portaudio.Terminate()
}

func (p *PortAudio) DefaultInput() (DeviceInfo, error) {
	if err := p.init(); err != nil {
		return DeviceInfo{}, fmt.Errorf("init portaudio: %w", err)
	}

	dev, err := portaudio.DefaultInputDevice()
	if err != nil || dev == nil || dev.MaxInputChannels < 1 {
		return DeviceInfo{}, ErrNoInputDevice
	}
	info := p.describe(dev)
	info.IsDefault = true
	return info, nil
}

func (p *PortAudio) Devices() ([]DeviceInfo, error) {
	if err := p.init(); err != nil {
		return nil, fmt.Errorf("init portaudio: %w", err)
	}

	devs, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}

	var defaultName string
	if d, err := portaudio.DefaultInputDevice(); err == nil && d != nil {
		defaultName = d.Name
	}

	out := make([]DeviceInfo, 0, len(devs))
	for _, d := range devs {
		if d.MaxInputChannels < 1 {
			continue
		}
		info := p.describe(d)
		info.IsDefault = d.Name == defaultName
		out = append(out, info)
	}
	return out, nil
}

func (p *PortAudio) Open(dev DeviceInfo, callback func(Frames)) (Stream, error) {
	if err := p.init(); err != nil {
		return nil, fmt.Errorf("init portaudio: %w", err)
	}

	pdev, ok := dev.ref.(*portaudio.DeviceInfo)
	if !ok || pdev == nil {
		return nil, errors.New("device handle missing")
	}

	params := portaudio.LowLatencyParameters(pdev, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(dev.SampleRate)
	params.FramesPerBuffer = p.framesPerBuffer

	switch dev.Format {
	case FormatFloat32:
		return portaudio.OpenStream(params, func(in []float32) {
			callback(Frames{F32: in})
		})
	case FormatInt16:
		return portaudio.OpenStream(params, func(in []int16) {
			callback(Frames{I16: in})
		})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, dev.Format)
	}
}

func (p *PortAudio) describe(d *portaudio.DeviceInfo) DeviceInfo {
	return DeviceInfo{
		Name:        d.Name,
		SampleRate:  uint32(d.DefaultSampleRate),
		Format:      p.format,
		Channels:    1,
		MaxChannels: d.MaxInputChannels,
		ref:         d,
	}
}
