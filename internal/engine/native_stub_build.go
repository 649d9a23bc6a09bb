//go:build !aasist

package engine

import (
	"errors"

	"github.com/nupi-ai/plugin-spoof-aasist/internal/config"
)

// ErrNativeUnavailable indicates the AASIST engine is not compiled in.
var ErrNativeUnavailable = errors.New("engine: aasist backend not available (build without -tags aasist)")

// NativeAvailable reports that no native engine is compiled in.
func NativeAvailable() bool { return false }

// NewNativeEngine returns an error when built without the aasist tag.
func NewNativeEngine(_ string, _ config.ModelConfig) (Engine, error) {
	return nil, ErrNativeUnavailable
}
