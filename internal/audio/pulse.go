package audio

import (
	"encoding/binary"
	"fmt"

	"github.com/jfreymuth/pulse"
)

type pulseContext struct {
	client *pulse.Client
}

func newPulseContext() (*pulseContext, error) {
	c, err := pulse.NewClient(pulse.ClientApplicationName("gostt-scribe"))
	if err != nil {
		return nil, fmt.Errorf("pulse: %w", err)
	}
	return &pulseContext{client: c}, nil
}

func (p *pulseContext) Devices() ([]DeviceInfo, error) {
	sources, err := p.client.ListSources()
	if err != nil {
		return nil, fmt.Errorf("pulse list sources: %w", err)
	}
	devices := make([]DeviceInfo, 0, len(sources))
	for i, s := range sources {
		devices = append(devices, DeviceInfo{Index: i, Name: s.Name()})
	}
	return devices, nil
}

func (p *pulseContext) Open(deviceIndex int, cfg StreamConfig) (Stream, error) {
	sources, err := p.client.ListSources()
	if err != nil {
		return nil, fmt.Errorf("pulse list sources: %w", err)
	}
	if deviceIndex < 0 || deviceIndex >= len(sources) {
		return nil, fmt.Errorf("no pulse source at index %d", deviceIndex)
	}

	var stream *chunkStream
	writer := pulse.Int16Writer(func(buf []int16) (int, error) {
		data := make([]byte, len(buf)*BytesPerSample)
		for i, s := range buf {
			binary.LittleEndian.PutUint16(data[i*BytesPerSample:], uint16(s))
		}
		stream.push(data)
		return len(buf), nil
	})

	opts := []pulse.RecordOption{
		pulse.RecordSampleRate(int(cfg.SampleRate)),
		pulse.RecordSource(sources[deviceIndex]),
	}
	if cfg.Channels == 1 {
		opts = append(opts, pulse.RecordMono)
	} else {
		opts = append(opts, pulse.RecordStereo)
	}

	record, err := p.client.NewRecord(writer, opts...)
	if err != nil {
		return nil, fmt.Errorf("pulse record: %w", err)
	}

	stream = newChunkStream(cfg.Channels, func() error {
		record.Stop()
		record.Close()
		return nil
	})

	record.Start()
	if err := record.Error(); err != nil {
		record.Close()
		return nil, fmt.Errorf("pulse record start: %w", err)
	}

	return stream, nil
}

func (p *pulseContext) Close() error {
	p.client.Close()
	return nil
}
