package engine

import (
	"errors"
	"testing"
)

func TestStubEngineFixedScore(t *testing.T) {
	const score = 0.42
	eng := NewStubEngine(score, 0)

	for i := 0; i < 3; i++ {
		r, err := eng.Score(make([]float32, 10+i))
		if err != nil {
			t.Fatalf("frame %d: unexpected error: %v", i, err)
		}
		if r.Bonafide != float32(score) {
			t.Fatalf("frame %d: bonafide = %v, want %v", i, r.Bonafide, float32(score))
		}
		if r.Spoof != 1-float32(score) {
			t.Fatalf("frame %d: spoof = %v, want %v", i, r.Spoof, 1-float32(score))
		}
	}
	if eng.Calls() != 3 {
		t.Fatalf("calls = %d, want 3", eng.Calls())
	}
}

func TestStubEngineFrameLength(t *testing.T) {
	eng := NewStubEngine(0.9, 64600)

	if _, err := eng.Score(make([]float32, 64600)); err != nil {
		t.Fatalf("matching frame: %v", err)
	}
	_, err := eng.Score(make([]float32, 100))
	if !errors.Is(err, ErrFrameLength) {
		t.Fatalf("short frame: err = %v, want ErrFrameLength", err)
	}
	if eng.Calls() != 1 {
		t.Fatalf("calls = %d, want 1", eng.Calls())
	}
}

func TestStubEngineName(t *testing.T) {
	eng := NewStubEngine(0, 0)
	if eng.Name() != "stub" {
		t.Fatalf("Name() = %q", eng.Name())
	}
	if err := eng.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNativeUnavailableWithoutTag(t *testing.T) {
	if NativeAvailable() {
		t.Skip("built with the aasist tag")
	}
	if _, err := NewNativeEngine("model.onnx", testModelConfig()); !errors.Is(err, ErrNativeUnavailable) {
		t.Fatalf("NewNativeEngine() = %v, want ErrNativeUnavailable", err)
	}
}
