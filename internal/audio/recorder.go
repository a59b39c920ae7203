package audio

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// State is the recorder lifecycle state.
type State int32

const (
	StateIdle State = iota
	// StateOpening means Start is waiting for the device to open.
	StateOpening
	StateRecording
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	default:
		return "idle"
	}
}

// EventType tells how a recording session ended.
type EventType int

const (
	// EventSaved means the session was written to Event.Path.
	EventSaved EventType = iota
	// EventEmpty means no audio was captured, so no file was written.
	EventEmpty
	// EventFailed means persisting the session failed.
	EventFailed
)

// Event is emitted on the channel returned by Events once a session ends.
type Event struct {
	Type     EventType
	Path     string
	Bytes    int64
	Duration time.Duration
	// ReadErr is set when the session ended because the device failed.
	ReadErr error
	Err     error
}

// Options configures a Recorder.
type Options struct {
	Dir         string
	Owner       string
	SampleRate  uint32
	Channels    uint32
	ChunkFrames int
	// MaxBytes is a soft limit reported in snapshots; capture never stops
	// because of it.
	MaxBytes int64
}

// Snapshot is a point-in-time view of the active session for display.
type Snapshot struct {
	State     State
	Device    int
	Elapsed   time.Duration
	SizeBytes int64
	OverLimit bool
}

// Recorder captures audio from a device in fixed-size chunks and writes
// each session to a WAV file when it ends.
type Recorder struct {
	ctx  Context
	opts Options
	log  zerolog.Logger
	now  func() time.Time

	state   atomic.Int32
	size    atomic.Int64
	closing atomic.Bool

	mu        sync.Mutex
	frames    [][]byte
	startedAt time.Time
	device    int

	events chan Event
	loops  sync.WaitGroup
}

// NewRecorder creates a recorder that opens devices through ctx.
func NewRecorder(ctx Context, opts Options, log zerolog.Logger) *Recorder {
	return &Recorder{
		ctx:    ctx,
		opts:   opts,
		log:    log.With().Str("component", "recorder").Logger(),
		now:    time.Now,
		events: make(chan Event, 16),
	}
}

// Events returns the channel that receives one Event per finished session.
func (r *Recorder) Events() <-chan Event {
	return r.events
}

// State returns the current lifecycle state.
func (r *Recorder) State() State {
	return State(r.state.Load())
}

// IsRecording returns whether the recorder is currently capturing audio.
func (r *Recorder) IsRecording() bool {
	return r.State() == StateRecording
}

// Start opens the device and begins capturing. It is a no-op while a
// session is opening, recording or still being saved. The device is opened
// without holding the recorder lock, so snapshots stay responsive.
func (r *Recorder) Start(deviceIndex int) error {
	if !r.state.CompareAndSwap(int32(StateIdle), int32(StateOpening)) {
		return nil
	}
	r.loops.Add(1)

	stream, err := r.ctx.Open(deviceIndex, StreamConfig{
		SampleRate: r.opts.SampleRate,
		Channels:   r.opts.Channels,
	})
	if err != nil {
		r.state.Store(int32(StateIdle))
		r.loops.Done()
		return &DeviceError{Op: "open", Device: deviceIndex, Err: err}
	}

	r.mu.Lock()
	r.frames = nil
	r.startedAt = r.now()
	r.device = deviceIndex
	r.mu.Unlock()
	r.size.Store(0)
	r.state.Store(int32(StateRecording))
	if r.closing.Load() {
		r.Stop()
	}

	r.log.Info().Int("device", deviceIndex).Msg("recording started")
	go r.captureLoop(stream, deviceIndex)

	return nil
}

// Stop asks the capture loop to finish after its current read. The session
// is saved asynchronously; watch Events for the result.
func (r *Recorder) Stop() {
	if r.state.CompareAndSwap(int32(StateRecording), int32(StateStopping)) {
		r.log.Info().Msg("recording stopping")
	}
}

// Toggle starts a session when idle and stops it when recording.
func (r *Recorder) Toggle(deviceIndex int) error {
	if r.IsRecording() {
		r.Stop()
		return nil
	}
	return r.Start(deviceIndex)
}

// Elapsed returns the duration of the active session, or zero when idle.
func (r *Recorder) Elapsed() time.Duration {
	if st := r.State(); st == StateIdle || st == StateOpening {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now().Sub(r.startedAt)
}

// SizeBytes returns the number of PCM bytes captured so far.
func (r *Recorder) SizeBytes() int64 {
	return r.size.Load()
}

// Snapshot returns the state, elapsed time and size in one call.
func (r *Recorder) Snapshot() Snapshot {
	size := r.SizeBytes()
	r.mu.Lock()
	device := r.device
	r.mu.Unlock()
	return Snapshot{
		State:     r.State(),
		Device:    device,
		Elapsed:   r.Elapsed(),
		SizeBytes: size,
		OverLimit: r.opts.MaxBytes > 0 && size > r.opts.MaxBytes,
	}
}

// Close stops any active session, waits for it to be saved and releases
// the audio context.
func (r *Recorder) Close() error {
	r.closing.Store(true)
	r.Stop()
	r.loops.Wait()
	return r.ctx.Close()
}

func (r *Recorder) captureLoop(stream Stream, deviceIndex int) {
	defer r.loops.Done()

	var readErr error
	warned := false

	for r.State() == StateRecording {
		chunk, err := stream.Read(r.opts.ChunkFrames)
		if err != nil {
			if r.State() == StateRecording && !errors.Is(err, ErrStreamClosed) {
				readErr = &DeviceError{Op: "read", Device: deviceIndex, Err: err}
				r.log.Error().Err(readErr).Msg("capture read failed")
			}
			r.state.Store(int32(StateStopping))
			break
		}
		r.appendChunk(chunk)

		if !warned && r.opts.MaxBytes > 0 && r.size.Load() > r.opts.MaxBytes {
			warned = true
			r.log.Warn().Int64("max_bytes", r.opts.MaxBytes).Msg("recording exceeded soft size limit")
		}
	}

	if err := stream.Close(); err != nil {
		r.log.Warn().Err(err).Msg("closing capture stream")
	}

	ev := r.persist()
	ev.ReadErr = readErr
	r.state.Store(int32(StateIdle))

	select {
	case r.events <- ev:
	default: // don't block if nobody is listening
		r.log.Warn().Str("path", ev.Path).Msg("recorder event dropped")
	}
}

func (r *Recorder) appendChunk(chunk []byte) {
	r.mu.Lock()
	r.frames = append(r.frames, chunk)
	r.mu.Unlock()
	r.size.Add(int64(len(chunk)))
}

// persist flushes the accumulated chunks to disk and clears the buffer.
func (r *Recorder) persist() Event {
	r.mu.Lock()
	frames := r.frames
	r.frames = nil
	duration := r.now().Sub(r.startedAt)
	r.mu.Unlock()

	if len(frames) == 0 {
		r.log.Info().Msg("no audio captured, nothing saved")
		return Event{Type: EventEmpty, Duration: duration}
	}

	var total int
	for _, f := range frames {
		total += len(f)
	}

	name := FileName(r.opts.Owner, r.now())
	path, err := WriteWAV(r.opts.Dir, name, frames, r.opts.SampleRate, r.opts.Channels)
	if err != nil {
		r.log.Error().Err(err).Msg("saving recording failed")
		return Event{Type: EventFailed, Bytes: int64(total), Duration: duration, Err: err}
	}

	r.log.Info().Str("path", path).Int("bytes", total).Dur("duration", duration).Msg("recording saved")
	return Event{Type: EventSaved, Path: path, Bytes: int64(total), Duration: duration}
}
