package audio

import (
	"errors"
	"sync"
	"time"
)

// fakeContext hands out a single scripted fakeStream.
type fakeContext struct {
	mu      sync.Mutex
	stream  *fakeStream
	openErr error
	// gate, when set, makes Open wait until it is closed.
	gate    chan struct{}
	opens   int
	lastCfg StreamConfig
}

func (f *fakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{Index: 0, Name: "Built-in Microphone"}, {Index: 1, Name: "USB Audio"}}, nil
}

func (f *fakeContext) Open(_ int, cfg StreamConfig) (Stream, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	f.lastCfg = cfg
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.stream, nil
}

func (f *fakeContext) Close() error { return nil }

func (f *fakeContext) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

// fakeStream returns the scripted chunks in order. After the script runs
// out it returns errAfter, or, when errAfter is nil, blocks until release
// is closed and then reports the stream closed.
type fakeStream struct {
	chunks   [][]byte
	errAfter error
	release  chan struct{}
	// endless makes Read produce chunk forever, one per call.
	endless []byte
	reads   chan struct{}

	mu     sync.Mutex
	pos    int
	closed bool
}

func (s *fakeStream) Read(frames int) ([]byte, error) {
	if s.reads != nil {
		select {
		case s.reads <- struct{}{}:
		default:
		}
	}

	s.mu.Lock()
	if s.endless != nil {
		s.mu.Unlock()
		time.Sleep(time.Millisecond) // device pacing
		out := make([]byte, len(s.endless))
		copy(out, s.endless)
		return out, nil
	}
	if s.pos < len(s.chunks) {
		c := s.chunks[s.pos]
		s.pos++
		s.mu.Unlock()
		return c, nil
	}
	s.mu.Unlock()

	if s.errAfter != nil {
		return nil, s.errAfter
	}
	<-s.release
	return nil, ErrStreamClosed
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

var errUnplugged = errors.New("device unplugged")

func chunkOf(frames int, fill byte) []byte {
	c := make([]byte, frames*BytesPerSample)
	for i := range c {
		c[i] = fill
	}
	return c
}
