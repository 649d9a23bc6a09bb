//go:build aasist

package engine

import (
	"errors"

	"github.com/nupi-ai/plugin-spoof-aasist/internal/config"
)

// ErrNativeUnavailable is never returned when the aasist tag is set; it is
// declared so callers compile under both builds.
var ErrNativeUnavailable = errors.New("engine: aasist backend not available")

// NativeAvailable reports that the AASIST engine is compiled in.
func NativeAvailable() bool { return true }

// NewNativeEngine loads the ONNX model at modelPath.
func NewNativeEngine(modelPath string, mc config.ModelConfig) (Engine, error) {
	return NewAASISTEngine(modelPath, mc)
}
