package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// BitDepth of every recording written by this package.
const BitDepth = 16

// FileName returns the recording file name for owner at t, with minute
// granularity: recording-<owner>_<YYYYMMDD_HHMM>.wav.
func FileName(owner string, t time.Time) string {
	return fmt.Sprintf("recording-%s_%s.wav", owner, t.Format("20060102_1504"))
}

// createUnique creates dir/name exclusively. When the name is taken it tries
// name-2.wav, name-3.wav, ... so recordings started in the same minute never
// overwrite each other.
func createUnique(dir, name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for n := 1; ; n++ {
		candidate := name
		if n > 1 {
			candidate = base + "-" + strconv.Itoa(n) + ext
		}
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("creating %s: %w", path, err)
		}
	}
}

// WriteWAV writes chunks of little-endian 16-bit PCM as a new WAV file in
// dir and returns its path. Chunks are encoded one at a time through a
// single reused sample buffer, so memory stays bounded by the largest chunk.
func WriteWAV(dir, name string, chunks [][]byte, sampleRate, channels uint32) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}

	f, path, err := createUnique(dir, name)
	if err != nil {
		return "", err
	}

	fail := func(format string, err error) (string, error) {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf(format, err)
	}

	enc := wav.NewEncoder(f, int(sampleRate), BitDepth, int(channels), 1)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: int(channels),
			SampleRate:  int(sampleRate),
		},
		SourceBitDepth: BitDepth,
	}

	wrote := false
	for _, chunk := range chunks {
		buf.Data = appendSamples(buf.Data[:0], chunk)
		if len(buf.Data) == 0 {
			continue
		}
		if err := enc.Write(buf); err != nil {
			return fail("encoding wav: %w", err)
		}
		wrote = true
	}
	if !wrote {
		// header only
		if err := enc.Write(buf); err != nil {
			return fail("encoding wav: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		return fail("finalizing wav: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", path, err)
	}

	return path, nil
}

// appendSamples converts raw bytes (little-endian int16) to the int samples
// go-audio expects, appending to dst. A trailing odd byte is dropped.
func appendSamples(dst []int, pcm []byte) []int {
	n := len(pcm) / BytesPerSample
	for i := 0; i < n; i++ {
		dst = append(dst, int(int16(binary.LittleEndian.Uint16(pcm[i*BytesPerSample:]))))
	}
	return dst
}
