package engine

import (
	"fmt"
	"sync/atomic"
)

// StubEngine returns a fixed score for every frame. It does not look at the
// audio beyond checking the frame length, if one was set.
type StubEngine struct {
	score       float32
	frameLength int
	calls       atomic.Int64
}

// NewStubEngine creates a StubEngine that always reports score as the
// bonafide output. frameLength 0 accepts frames of any length.
func NewStubEngine(score float64, frameLength int) *StubEngine {
	return &StubEngine{score: float32(score), frameLength: frameLength}
}

func (e *StubEngine) Score(frame []float32) (Result, error) {
	if e.frameLength > 0 && len(frame) != e.frameLength {
		return Result{}, fmt.Errorf("%w: got %d samples, want %d", ErrFrameLength, len(frame), e.frameLength)
	}
	e.calls.Add(1)
	return Result{Spoof: 1 - e.score, Bonafide: e.score}, nil
}

// Calls returns how many frames were scored.
func (e *StubEngine) Calls() int64 { return e.calls.Load() }

func (e *StubEngine) Name() string { return "stub" }

// Close is a no-op for the stub engine.
func (e *StubEngine) Close() error {
	return nil
}
