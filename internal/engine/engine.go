package engine

import "errors"

// ErrFrameLength is returned when a frame does not match the length the model
// was exported with.
var ErrFrameLength = errors.New("engine: frame length does not match model input")

// Result holds the two-class output of a single forward pass.
type Result struct {
	Spoof    float32
	Bonafide float32
}

// Engine scores fixed-length mono 16 kHz frames.
type Engine interface {
	// Score runs one forward pass over frame.
	Score(frame []float32) (Result, error)
	// Name identifies the backend in logs and health output.
	Name() string
	// Close releases resources.
	Close() error
}
