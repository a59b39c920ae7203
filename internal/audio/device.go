// Package audio captures microphone input and persists it as WAV files.
//
// Capture backends (miniaudio via malgo, PulseAudio) deliver audio through
// callbacks; both are exposed here as a blocking Stream that hands out
// fixed-size chunks, which is what the Recorder's capture loop consumes.
package audio

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// BytesPerSample is the size of one signed 16-bit sample.
const BytesPerSample = 2

// ErrStreamClosed is returned by Stream.Read after Close.
var ErrStreamClosed = errors.New("audio: stream closed")

// DeviceInfo identifies a capture device by its enumeration index.
type DeviceInfo struct {
	Index int
	Name  string
}

// StreamConfig describes the PCM format requested from a device.
// Samples are always signed 16-bit little-endian.
type StreamConfig struct {
	SampleRate uint32
	Channels   uint32
}

// Context enumerates and opens capture devices.
type Context interface {
	Devices() ([]DeviceInfo, error)
	Open(deviceIndex int, cfg StreamConfig) (Stream, error)
	Close() error
}

// Stream is an open capture stream.
type Stream interface {
	// Read blocks until exactly frames frames are available.
	Read(frames int) ([]byte, error)
	Close() error
}

// DeviceError reports a failure to open or read a capture device.
type DeviceError struct {
	Op     string // "open" or "read"
	Device int
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio: %s device %d: %v", e.Op, e.Device, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// NewContext creates the capture context for the named backend.
func NewContext(backend string) (Context, error) {
	switch backend {
	case "malgo", "":
		return newMalgoContext()
	case "pulse":
		return newPulseContext()
	default:
		return nil, fmt.Errorf("audio: unknown backend %q (supported: malgo, pulse)", backend)
	}
}

// DefaultDevice picks the preferred input device: the first one with "USB"
// in its name, otherwise the first device.
func DefaultDevice(devices []DeviceInfo) (DeviceInfo, bool) {
	if len(devices) == 0 {
		return DeviceInfo{}, false
	}
	for _, d := range devices {
		if strings.Contains(d.Name, "USB") {
			return d, true
		}
	}
	return devices[0], true
}

// FindDevice resolves a configured device: an enumeration index, or a
// case-insensitive part of the device name. Empty means DefaultDevice.
func FindDevice(devices []DeviceInfo, want string) (DeviceInfo, error) {
	want = strings.TrimSpace(want)
	if want == "" {
		if d, ok := DefaultDevice(devices); ok {
			return d, nil
		}
		return DeviceInfo{}, fmt.Errorf("audio: no input devices")
	}
	if idx, err := strconv.Atoi(want); err == nil {
		for _, d := range devices {
			if d.Index == idx {
				return d, nil
			}
		}
		return DeviceInfo{}, fmt.Errorf("audio: no input device at index %d", idx)
	}
	lower := strings.ToLower(want)
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.Name), lower) {
			return d, nil
		}
	}
	return DeviceInfo{}, fmt.Errorf("audio: no input device matching %q", want)
}

// chunkStream turns callback-delivered PCM into blocking fixed-size reads.
type chunkStream struct {
	bytesPerFrame int
	closeFn       func() error

	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	err    error
	closed bool
	once   sync.Once
}

func newChunkStream(channels uint32, closeFn func() error) *chunkStream {
	s := &chunkStream{
		bytesPerFrame: int(channels) * BytesPerSample,
		closeFn:       closeFn,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// push copies data into the pending buffer. data is only valid for the
// duration of the backend callback.
func (s *chunkStream) push(data []byte) {
	s.mu.Lock()
	if !s.closed {
		s.buf = append(s.buf, data...)
	}
	s.mu.Unlock()
	s.cond.Broadcast()
}

// fail makes pending and future reads return err once the buffer is drained.
func (s *chunkStream) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *chunkStream) Read(frames int) ([]byte, error) {
	need := frames * s.bytesPerFrame

	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.buf) < need && s.err == nil && !s.closed {
		s.cond.Wait()
	}
	if s.closed {
		return nil, ErrStreamClosed
	}
	if len(s.buf) < need {
		return nil, s.err
	}

	chunk := make([]byte, need)
	copy(chunk, s.buf[:need])
	s.buf = append(s.buf[:0], s.buf[need:]...)
	return chunk, nil
}

func (s *chunkStream) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.buf = nil
		s.mu.Unlock()
		s.cond.Broadcast()
		if s.closeFn != nil {
			err = s.closeFn()
		}
	})
	return err
}
