package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/nupi-ai/plugin-spoof-aasist/internal/tempfile"
)

// Normalizer decodes uploads into mono clips at a fixed sample rate.
//
// Formats with a registered decoder are decoded directly. Anything else, and
// any file the native decoder rejects (float WAV, for one), is transcoded into
// a scoped PCM16 WAV file first. The transcoded file belongs to the caller's scope.
type Normalizer struct {
	registry   *Registry
	transcoder Transcoder
	rate       int
	log        *slog.Logger
}

// NewNormalizer builds a Normalizer. transcoder may be nil, in which case
// only natively supported formats can be decoded.
func NewNormalizer(registry *Registry, transcoder Transcoder, rate int, logger *slog.Logger) *Normalizer {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if rate <= 0 {
		rate = TargetSampleRate
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		registry:   registry,
		transcoder: transcoder,
		rate:       rate,
		log:        logger.With("component", "normalizer"),
	}
}

// SampleRate returns the output rate of every clip.
func (n *Normalizer) SampleRate() int { return n.rate }

// Normalize decodes the file at path. filename is the client-supplied name,
// used only as a format hint.
func (n *Normalizer) Normalize(ctx context.Context, scope *tempfile.Scope, path, filename string) (Clip, error) {
	format, err := DetectFileFormat(path, filename)
	if err != nil {
		return Clip{}, &DecodeError{Err: err}
	}

	if dec, ok := n.registry.Get(format); ok {
		pcm, err := decodeFile(dec, path)
		if err == nil {
			return n.toClip(format, pcm)
		}
		if !n.canTranscode() {
			return Clip{}, &DecodeError{Format: format, Err: err}
		}
		n.log.Debug("native decode failed, falling back to transcoder",
			"format", format,
			"error", err,
		)
	}

	if !n.canTranscode() {
		if format == FormatUnknown {
			return Clip{}, &DecodeError{Format: format, Err: ErrUnsupportedFormat}
		}
		return Clip{}, &DecodeError{Format: format, Err: fmt.Errorf("%w (needed for %q)", ErrTranscoderUnavailable, format)}
	}

	dst, err := scope.Path(".wav")
	if err != nil {
		return Clip{}, &DecodeError{Format: format, Err: err}
	}
	if err := n.transcoder.Transcode(ctx, path, dst, n.rate); err != nil {
		return Clip{}, &DecodeError{Format: format, Err: err}
	}

	dec, ok := n.registry.Get(FormatWAV)
	if !ok {
		return Clip{}, &DecodeError{Format: FormatWAV, Err: ErrUnsupportedFormat}
	}
	pcm, err := decodeFile(dec, dst)
	if err != nil {
		return Clip{}, &DecodeError{Format: format, Err: fmt.Errorf("decode transcoded output: %w", err)}
	}
	return n.toClip(format, pcm)
}

func (n *Normalizer) canTranscode() bool {
	return n.transcoder != nil && n.transcoder.Available()
}

func (n *Normalizer) toClip(format Format, pcm PCM) (Clip, error) {
	clip, err := ToClip(pcm, n.rate)
	if err != nil {
		return Clip{}, &DecodeError{Format: format, Err: err}
	}
	n.log.Debug("audio normalized",
		"format", format,
		"source_rate", pcm.SampleRate,
		"source_channels", pcm.Channels,
		"samples", len(clip.Samples),
	)
	return clip, nil
}

func decodeFile(dec Decoder, path string) (PCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return PCM{}, err
	}
	defer f.Close()
	return dec.Decode(f)
}
