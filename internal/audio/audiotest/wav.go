// Package audiotest builds in-memory audio fixtures for tests.
package audiotest

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAV16 encodes interleaved 16-bit samples as a PCM WAV file.
func WAV16(sampleRate, channels int, samples []int) ([]byte, error) {
	ws := &writeSeeker{}
	enc := wav.NewEncoder(ws, sampleRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Data:           samples,
		Format:         &goaudio.Format{SampleRate: sampleRate, NumChannels: channels},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return ws.buf, nil
}

// FloatWAV32 encodes interleaved samples as an IEEE float (format tag 3) WAV
// file. go-audio only writes integer PCM, so the header is written by hand.
func FloatWAV32(sampleRate, channels int, samples []float32) []byte {
	dataLen := 4 * len(samples)
	var b bytes.Buffer
	b.WriteString("RIFF")
	_ = binary.Write(&b, binary.LittleEndian, uint32(36+dataLen))
	b.WriteString("WAVEfmt ")
	for _, v := range []any{
		uint32(16),
		uint16(3),
		uint16(channels),
		uint32(sampleRate),
		uint32(sampleRate * channels * 4),
		uint16(channels * 4),
		uint16(32),
	} {
		_ = binary.Write(&b, binary.LittleEndian, v)
	}
	b.WriteString("data")
	_ = binary.Write(&b, binary.LittleEndian, uint32(dataLen))
	_ = binary.Write(&b, binary.LittleEndian, samples)
	return b.Bytes()
}

// Silence returns n zero samples.
func Silence(n int) []int {
	return make([]int, n)
}

// Ramp returns n samples counting up from start, wrapping inside int16 range.
// Distinct values make truncation and tiling easy to verify.
func Ramp(n, start int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = (start+i)%65536 - 32768
	}
	return out
}

// Sine returns n samples of a sine tone at amplitude amp (0..1).
func Sine(n, sampleRate int, freq, amp float64) []int {
	out := make([]int, n)
	for i := range out {
		v := amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
		out[i] = int(v * 32767)
	}
	return out
}

// writeSeeker is an in-memory io.WriteSeeker; the WAV encoder seeks back to
// patch chunk sizes on Close.
type writeSeeker struct {
	buf []byte
	off int64
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	end := w.off + int64(len(p))
	if end > int64(len(w.buf)) {
		grown := make([]byte, end)
		copy(grown, w.buf)
		w.buf = grown
	}
	copy(w.buf[w.off:], p)
	w.off = end
	return len(p), nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = w.off + offset
	case io.SeekEnd:
		next = int64(len(w.buf)) + offset
	default:
		return 0, errors.New("audiotest: invalid whence")
	}
	if next < 0 {
		return 0, errors.New("audiotest: negative position")
	}
	w.off = next
	return next, nil
}
