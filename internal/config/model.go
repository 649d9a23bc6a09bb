package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultFrameLength   = 64600
	DefaultInputName     = "input"
	DefaultOutputName    = "output"
	DefaultBonafideIndex = 1
)

// ModelConfig describes the exported network. Only the keys the adapter needs
// are decoded; the rest of the training config is ignored.
type ModelConfig struct {
	Architecture string      `json:"architecture" yaml:"architecture"`
	Network      NetworkSpec `json:"model_config" yaml:"model_config"`
	ONNX         ONNXSpec    `json:"onnx" yaml:"onnx"`
}

// NetworkSpec holds the architecture parameters relevant to inference.
type NetworkSpec struct {
	// NbSamp is the fixed number of input samples per forward pass.
	NbSamp int `json:"nb_samp" yaml:"nb_samp"`
}

// ONNXSpec names the graph tensors of the exported model.
type ONNXSpec struct {
	InputName      string `json:"input_name" yaml:"input_name"`
	OutputName     string `json:"output_name" yaml:"output_name"`
	BonafideIndex  *int   `json:"bonafide_index" yaml:"bonafide_index"`
	IntraOpThreads int    `json:"intra_op_threads" yaml:"intra_op_threads"`
}

// DefaultModelConfig returns the AASIST evaluation defaults.
func DefaultModelConfig() ModelConfig {
	idx := DefaultBonafideIndex
	return ModelConfig{
		Architecture: "AASIST",
		Network:      NetworkSpec{NbSamp: DefaultFrameLength},
		ONNX: ONNXSpec{
			InputName:     DefaultInputName,
			OutputName:    DefaultOutputName,
			BonafideIndex: &idx,
		},
	}
}

// FrameLength returns the number of samples each forward pass expects.
func (m ModelConfig) FrameLength() int { return m.Network.NbSamp }

// BonafideIndex returns the output column holding the bonafide score.
func (m ModelConfig) BonafideIndex() int {
	if m.ONNX.BonafideIndex == nil {
		return DefaultBonafideIndex
	}
	return *m.ONNX.BonafideIndex
}

// LoadModelConfig reads a model config file. Files ending in .yaml or .yml are
// parsed as YAML, everything else as JSON. Missing keys keep their defaults.
func LoadModelConfig(path string) (ModelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ModelConfig{}, fmt.Errorf("config: read model config: %w", err)
	}

	var parsed ModelConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &parsed)
	default:
		err = json.Unmarshal(data, &parsed)
	}
	if err != nil {
		return ModelConfig{}, fmt.Errorf("config: decode model config %s: %w", path, err)
	}

	mc := DefaultModelConfig()
	if parsed.Architecture != "" {
		mc.Architecture = parsed.Architecture
	}
	if parsed.Network.NbSamp != 0 {
		mc.Network.NbSamp = parsed.Network.NbSamp
	}
	setString(&mc.ONNX.InputName, parsed.ONNX.InputName)
	setString(&mc.ONNX.OutputName, parsed.ONNX.OutputName)
	if parsed.ONNX.BonafideIndex != nil {
		mc.ONNX.BonafideIndex = parsed.ONNX.BonafideIndex
	}
	mc.ONNX.IntraOpThreads = parsed.ONNX.IntraOpThreads

	if err := mc.Validate(); err != nil {
		return ModelConfig{}, err
	}
	return mc, nil
}

// Validate checks the model config for values inference cannot use.
func (m ModelConfig) Validate() error {
	if m.Network.NbSamp <= 0 {
		return fmt.Errorf("config: model_config.nb_samp must be positive (got %d)", m.Network.NbSamp)
	}
	if idx := m.BonafideIndex(); idx < 0 || idx > 1 {
		return fmt.Errorf("config: onnx.bonafide_index must be 0 or 1 (got %d)", idx)
	}
	if m.ONNX.IntraOpThreads < 0 {
		return fmt.Errorf("config: onnx.intra_op_threads must not be negative (got %d)", m.ONNX.IntraOpThreads)
	}
	return nil
}
