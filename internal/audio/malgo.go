package audio

import (
	"fmt"

	"github.com/gen2brain/malgo"
)

type malgoContext struct {
	ctx *malgo.AllocatedContext
}

func newMalgoContext() (*malgoContext, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}
	return &malgoContext{ctx: ctx}, nil
}

func (m *malgoContext) Devices() ([]DeviceInfo, error) {
	devices, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerating capture devices: %w", err)
	}
	result := make([]DeviceInfo, 0, len(devices))
	for i, d := range devices {
		result = append(result, DeviceInfo{Index: i, Name: d.Name()})
	}
	return result, nil
}

func (m *malgoContext) Open(deviceIndex int, cfg StreamConfig) (Stream, error) {
	devices, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerating capture devices: %w", err)
	}
	if deviceIndex < 0 || deviceIndex >= len(devices) {
		return nil, fmt.Errorf("no capture device at index %d", deviceIndex)
	}

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatS16
	deviceCfg.Capture.Channels = cfg.Channels
	deviceCfg.Capture.DeviceID = devices[deviceIndex].ID.Pointer()
	deviceCfg.SampleRate = cfg.SampleRate

	var stream *chunkStream
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pSample []byte, _ uint32) {
			stream.push(pSample)
		},
		Stop: func() {
			stream.fail(fmt.Errorf("capture device stopped"))
		},
	}

	device, err := malgo.InitDevice(m.ctx.Context, deviceCfg, callbacks)
	if err != nil {
		return nil, fmt.Errorf("initializing capture device: %w", err)
	}

	stream = newChunkStream(cfg.Channels, func() error {
		device.Uninit()
		return nil
	})

	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("starting capture device: %w", err)
	}

	return stream, nil
}

func (m *malgoContext) Close() error {
	if err := m.ctx.Uninit(); err != nil {
		return fmt.Errorf("uninitializing audio context: %w", err)
	}
	m.ctx.Free()
	return nil
}
