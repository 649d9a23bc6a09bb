// Package audio turns uploaded audio files into mono float waveforms at the
// model sample rate. Formats with a native Go decoder are decoded in-process;
// everything else goes through an external transcoder first.
package audio

import (
	"io"
	"sync"
	"time"
)

// TargetSampleRate is the rate the spoof-detection model expects.
const TargetSampleRate = 16000

// Clip is a single-channel waveform with samples in [-1, 1].
type Clip struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the playback length of the clip.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// PCM is decoder output: interleaved float samples in [-1, 1].
type PCM struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames (samples per channel).
func (p PCM) Frames() int {
	if p.Channels <= 0 {
		return 0
	}
	return len(p.Samples) / p.Channels
}

// Decoder decodes a complete audio file held by r.
type Decoder interface {
	Decode(r io.ReadSeeker) (PCM, error)
}

// Registry maps formats to decoders.
type Registry struct {
	mu     sync.RWMutex
	codecs map[Format]Decoder
}

func NewRegistry() *Registry {
	return &Registry{codecs: make(map[Format]Decoder)}
}

// DefaultRegistry returns a registry with every native decoder registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(FormatWAV, WAVDecoder{})
	r.Register(FormatMP3, MP3Decoder{})
	r.Register(FormatVorbis, VorbisDecoder{})
	r.Register(FormatAIFF, AIFFDecoder{})
	return r
}

func (r *Registry) Register(format Format, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[format] = d
}

func (r *Registry) Get(format Format) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.codecs[format]
	return d, ok
}
