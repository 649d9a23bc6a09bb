package audio

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// WAVDecoder decodes integer PCM WAV files (8, 16, 24 and 32 bit).
type WAVDecoder struct{}

func (WAVDecoder) Decode(r io.ReadSeeker) (PCM, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return PCM{}, ErrNotWAVFile
	}
	if dec.WavAudioFormat != wavFormatPCM && dec.WavAudioFormat != wavFormatExtensible {
		return PCM{}, fmt.Errorf("%w: wav format tag %d", ErrUnsupportedEncoding, dec.WavAudioFormat)
	}
	if dec.NumChans == 0 {
		return PCM{}, ErrNoChannels
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil && !errors.Is(err, io.EOF) {
		return PCM{}, fmt.Errorf("read wav samples: %w", err)
	}
	var data []int
	if buf != nil {
		data = buf.Data
	}

	samples, err := intToFloat(data, int(dec.BitDepth))
	if err != nil {
		return PCM{}, err
	}
	return PCM{
		Samples:    samples,
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
	}, nil
}

// AIFFDecoder decodes uncompressed AIFF files.
type AIFFDecoder struct{}

func (AIFFDecoder) Decode(r io.ReadSeeker) (PCM, error) {
	dec := aiff.NewDecoder(r)
	if !dec.IsValidFile() {
		return PCM{}, ErrNotAIFFFile
	}
	dec.ReadInfo()

	format := dec.Format()
	if format == nil || format.NumChannels == 0 {
		return PCM{}, ErrNoChannels
	}
	bitDepth := int(dec.BitDepth)

	var data []int
	buf := &goaudio.IntBuffer{Data: make([]int, 8192), Format: format}
	for {
		n, err := dec.PCMBuffer(buf)
		data = append(data, buf.Data[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return PCM{}, fmt.Errorf("read aiff samples: %w", err)
		}
		if n == 0 {
			break
		}
	}

	samples, err := intToFloat(data, bitDepth)
	if err != nil {
		return PCM{}, err
	}
	return PCM{
		Samples:    samples,
		SampleRate: format.SampleRate,
		Channels:   format.NumChannels,
	}, nil
}

// MP3Decoder decodes MPEG-1/2 layer III. go-mp3 always yields 16-bit
// little-endian stereo.
type MP3Decoder struct{}

func (MP3Decoder) Decode(r io.ReadSeeker) (PCM, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return PCM{}, fmt.Errorf("open mp3 stream: %w", err)
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return PCM{}, fmt.Errorf("read mp3 samples: %w", err)
	}

	n := len(raw) / 2
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		u := uint16(raw[2*i]) | uint16(raw[2*i+1])<<8
		samples[i] = float32(int16(u)) / 32768.0
	}
	return PCM{
		Samples:    samples,
		SampleRate: dec.SampleRate(),
		Channels:   2,
	}, nil
}

// VorbisDecoder decodes Ogg Vorbis streams.
type VorbisDecoder struct{}

func (VorbisDecoder) Decode(r io.ReadSeeker) (PCM, error) {
	samples, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return PCM{}, fmt.Errorf("read ogg vorbis: %w", err)
	}
	if format == nil || format.Channels == 0 {
		return PCM{}, ErrNoChannels
	}
	return PCM{
		Samples:    samples,
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
	}, nil
}

// intToFloat normalizes integer PCM to [-1, 1] based on bit depth. 8-bit PCM
// is unsigned with a midpoint of 128.
func intToFloat(data []int, bitDepth int) ([]float32, error) {
	out := make([]float32, len(data))
	switch bitDepth {
	case 8:
		for i, v := range data {
			out[i] = float32(v-128) / 128.0
		}
	case 16:
		for i, v := range data {
			out[i] = float32(v) / 32768.0
		}
	case 24:
		for i, v := range data {
			out[i] = float32(v) / 8388608.0
		}
	case 32:
		for i, v := range data {
			out[i] = float32(float64(v) / 2147483648.0)
		}
	default:
		return nil, fmt.Errorf("%w: %d-bit samples", ErrUnsupportedEncoding, bitDepth)
	}
	return out, nil
}
