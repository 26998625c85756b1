//go:build !cgo

package audiocapture

// PortAudio is unavailable without cgo; every call reports no input device.
type PortAudio struct {
	format Format
}

// NewPortAudio returns a backend that reports no devices.
func NewPortAudio(format Format) *PortAudio {
	return &PortAudio{format: format}
}

func (p *PortAudio) Close() error { return nil }

func (p *PortAudio) DefaultInput() (DeviceInfo, error) {
	return DeviceInfo{}, ErrNoInputDevice
}

func (p *PortAudio) Devices() ([]DeviceInfo, error) {
	return nil, nil
}

func (p *PortAudio) Open(DeviceInfo, func(Frames)) (Stream, error) {
	return nil, ErrNoInputDevice
}
