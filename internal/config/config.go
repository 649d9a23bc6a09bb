package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultListenAddr      = "0.0.0.0:8000"
	DefaultLogLevel        = "info"
	DefaultEngine          = "auto"
	DefaultModelPath       = "aasist.onnx"
	DefaultModelConfigPath = "config_standalone_eval.json"
	DefaultThreshold       = 0.5
	DefaultFFmpegPath      = "ffmpeg"
	DefaultIndexPath       = "index.html"
	DefaultMaxUploadBytes  = 64 << 20
	DefaultMaxBatchFiles   = 32
	DefaultMaxInFlight     = 4
	DefaultStubScore       = 0.42
)

// Config holds the adapter configuration.
type Config struct {
	ListenAddr      string  `json:"listen_addr"`
	HealthAddr      string  `json:"health_addr"`
	LogLevel        string  `json:"log_level"`
	Engine          string  `json:"engine"`
	ModelPath       string  `json:"model_path"`
	ModelConfigPath string  `json:"model_config_path"`
	Threshold       float64 `json:"threshold"`
	FFmpegPath      string  `json:"ffmpeg_path"`
	TempDir         string  `json:"temp_dir"`
	IndexPath       string  `json:"index_path"`
	MaxUploadBytes  int64   `json:"max_upload_bytes"`
	MaxBatchFiles   int     `json:"max_batch_files"`
	MaxInFlight     int     `json:"max_in_flight"`
	StubScore       float64 `json:"stub_score"`
}

// Default returns a Config populated with package defaults.
func Default() Config {
	return Config{
		ListenAddr:      DefaultListenAddr,
		LogLevel:        DefaultLogLevel,
		Engine:          DefaultEngine,
		ModelPath:       DefaultModelPath,
		ModelConfigPath: DefaultModelConfigPath,
		Threshold:       DefaultThreshold,
		FFmpegPath:      DefaultFFmpegPath,
		IndexPath:       DefaultIndexPath,
		MaxUploadBytes:  DefaultMaxUploadBytes,
		MaxBatchFiles:   DefaultMaxBatchFiles,
		MaxInFlight:     DefaultMaxInFlight,
		StubScore:       DefaultStubScore,
	}
}

// Validate checks the configuration for values the adapter cannot run with.
// File existence is checked separately by CheckModelFiles, since it only
// matters once the engine is resolved.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ListenAddr) == "" {
		errs = append(errs, errors.New("listen_addr must not be empty"))
	}
	switch c.Engine {
	case "auto", "aasist", "stub":
	default:
		errs = append(errs, fmt.Errorf("engine must be one of auto, aasist, stub (got %q)", c.Engine))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_upload_bytes must be positive (got %d)", c.MaxUploadBytes))
	}
	if c.MaxBatchFiles <= 0 {
		errs = append(errs, fmt.Errorf("max_batch_files must be positive (got %d)", c.MaxBatchFiles))
	}
	if c.MaxInFlight <= 0 {
		errs = append(errs, fmt.Errorf("max_in_flight must be positive (got %d)", c.MaxInFlight))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
