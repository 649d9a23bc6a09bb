package pipeline

import "errors"

var (
	// ErrEmptyWaveform is returned when a decoded clip has no samples.
	ErrEmptyWaveform = errors.New("pipeline: waveform is empty")
	// ErrInvalidFrameLength is returned for a non-positive frame length.
	ErrInvalidFrameLength = errors.New("pipeline: frame length must be positive")
)

// Fit returns a new slice of exactly n samples. Longer waveforms keep their
// first n samples. Shorter ones are repeated end to end (floor(n/len)+1
// copies) and cut at n. The result never shares memory with waveform.
func Fit(waveform []float32, n int) ([]float32, error) {
	if n <= 0 {
		return nil, ErrInvalidFrameLength
	}
	if len(waveform) == 0 {
		return nil, ErrEmptyWaveform
	}

	out := make([]float32, n)
	for off := 0; off < n; {
		off += copy(out[off:], waveform)
	}
	return out, nil
}
