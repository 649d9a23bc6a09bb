package audio

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat     = errors.New("unsupported audio format")
	ErrTranscoderUnavailable = errors.New("transcoder not available")
	ErrNotWAVFile            = errors.New("not a WAV file")
	ErrNotAIFFFile           = errors.New("not an AIFF file")
	ErrUnsupportedEncoding   = errors.New("unsupported sample encoding")
	ErrNoChannels            = errors.New("audio has no channels")
)

// DecodeError reports that an upload could not be turned into a waveform.
// It is a client-side failure: the input is corrupt, unsupported, or needs a
// transcoder that is not installed.
type DecodeError struct {
	Format Format
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Format == FormatUnknown {
		return fmt.Sprintf("audio: decode: %v", e.Err)
	}
	return fmt.Sprintf("audio: decode %s: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
