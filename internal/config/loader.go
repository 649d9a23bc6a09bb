package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Loader loads configuration from environment variables. Tests can override
// Lookup to inject deterministic maps; a .env file is only consulted when
// Lookup is nil.
type Loader struct {
	Lookup  func(string) (string, bool)
	EnvFile string
}

// LoadResult carries the loaded configuration plus non-fatal findings the
// caller should log once a logger exists.
type LoadResult struct {
	Config   Config
	Warnings []string
}

// Load retrieves the adapter configuration from environment variables.
func (l Loader) Load() (LoadResult, error) {
	var warnings []string
	if l.Lookup == nil {
		envFile := l.EnvFile
		if envFile == "" {
			envFile = ".env"
		}
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				warnings = append(warnings, fmt.Sprintf("ignoring %s: %v", envFile, err))
			}
		}
		l.Lookup = os.LookupEnv
	}

	cfg := Default()

	if raw, ok := l.Lookup("NUPI_ADAPTER_CONFIG"); ok && strings.TrimSpace(raw) != "" {
		if err := applyJSON(raw, &cfg); err != nil {
			return LoadResult{}, err
		}
	}

	overrideString(l.Lookup, "NUPI_ADAPTER_LISTEN_ADDR", &cfg.ListenAddr)
	overrideString(l.Lookup, "NUPI_ADAPTER_HEALTH_ADDR", &cfg.HealthAddr)
	overrideString(l.Lookup, "NUPI_LOG_LEVEL", &cfg.LogLevel)
	overrideString(l.Lookup, "NUPI_SPOOF_ENGINE", &cfg.Engine)
	overrideString(l.Lookup, "NUPI_SPOOF_MODEL_PATH", &cfg.ModelPath)
	overrideString(l.Lookup, "NUPI_SPOOF_MODEL_CONFIG_PATH", &cfg.ModelConfigPath)
	overrideString(l.Lookup, "NUPI_SPOOF_FFMPEG_PATH", &cfg.FFmpegPath)
	overrideString(l.Lookup, "NUPI_SPOOF_TEMP_DIR", &cfg.TempDir)
	overrideString(l.Lookup, "NUPI_SPOOF_INDEX_PATH", &cfg.IndexPath)
	if err := overrideFloat(l.Lookup, "NUPI_SPOOF_THRESHOLD", &cfg.Threshold); err != nil {
		return LoadResult{}, err
	}
	if err := overrideFloat(l.Lookup, "NUPI_SPOOF_STUB_SCORE", &cfg.StubScore); err != nil {
		return LoadResult{}, err
	}
	if err := overrideInt64(l.Lookup, "NUPI_SPOOF_MAX_UPLOAD_BYTES", &cfg.MaxUploadBytes); err != nil {
		return LoadResult{}, err
	}
	if err := overrideInt(l.Lookup, "NUPI_SPOOF_MAX_BATCH_FILES", &cfg.MaxBatchFiles); err != nil {
		return LoadResult{}, err
	}
	if err := overrideInt(l.Lookup, "NUPI_SPOOF_MAX_IN_FLIGHT", &cfg.MaxInFlight); err != nil {
		return LoadResult{}, err
	}

	cfg.Engine = strings.ToLower(cfg.Engine)
	if cfg.Engine == "stub" {
		warnings = append(warnings, "engine \"stub\" configured: scores are fixed and NOT based on audio content")
	}

	if err := cfg.Validate(); err != nil {
		return LoadResult{}, err
	}
	return LoadResult{Config: cfg, Warnings: warnings}, nil
}

// ErrModelFileMissing is returned by CheckModelFiles when the model weights
// or the model config file cannot be found. The adapter must not start.
var ErrModelFileMissing = errors.New("config: required model file missing")

// CheckModelFiles verifies that both model files exist and are regular files.
func CheckModelFiles(cfg Config) error {
	for _, path := range []string{cfg.ModelPath, cfg.ModelConfigPath} {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrModelFileMissing, path, err)
		}
		if info.IsDir() {
			return fmt.Errorf("%w: %s is a directory", ErrModelFileMissing, path)
		}
	}
	return nil
}

func applyJSON(raw string, cfg *Config) error {
	type jsonConfig struct {
		ListenAddr      string   `json:"listen_addr"`
		HealthAddr      string   `json:"health_addr"`
		LogLevel        string   `json:"log_level"`
		Engine          string   `json:"engine"`
		ModelPath       string   `json:"model_path"`
		ModelConfigPath string   `json:"model_config_path"`
		Threshold       *float64 `json:"threshold"`
		FFmpegPath      string   `json:"ffmpeg_path"`
		TempDir         string   `json:"temp_dir"`
		IndexPath       string   `json:"index_path"`
		MaxUploadBytes  *int64   `json:"max_upload_bytes"`
		MaxBatchFiles   *int     `json:"max_batch_files"`
		MaxInFlight     *int     `json:"max_in_flight"`
		StubScore       *float64 `json:"stub_score"`
	}
	var payload jsonConfig
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return fmt.Errorf("config: decode NUPI_ADAPTER_CONFIG: %w", err)
	}
	setString(&cfg.ListenAddr, payload.ListenAddr)
	setString(&cfg.HealthAddr, payload.HealthAddr)
	setString(&cfg.LogLevel, payload.LogLevel)
	setString(&cfg.Engine, payload.Engine)
	setString(&cfg.ModelPath, payload.ModelPath)
	setString(&cfg.ModelConfigPath, payload.ModelConfigPath)
	setString(&cfg.FFmpegPath, payload.FFmpegPath)
	setString(&cfg.TempDir, payload.TempDir)
	setString(&cfg.IndexPath, payload.IndexPath)
	if payload.Threshold != nil {
		cfg.Threshold = *payload.Threshold
	}
	if payload.MaxUploadBytes != nil {
		cfg.MaxUploadBytes = *payload.MaxUploadBytes
	}
	if payload.MaxBatchFiles != nil {
		cfg.MaxBatchFiles = *payload.MaxBatchFiles
	}
	if payload.MaxInFlight != nil {
		cfg.MaxInFlight = *payload.MaxInFlight
	}
	if payload.StubScore != nil {
		cfg.StubScore = *payload.StubScore
	}
	return nil
}

func setString(target *string, value string) {
	if value != "" {
		*target = value
	}
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideFloat(lookup func(string) (string, bool), key string, target *float64) error {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("config: invalid value for %s: %w", key, err)
		}
		*target = parsed
	}
	return nil
}

func overrideInt(lookup func(string) (string, bool), key string, target *int) error {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("config: invalid value for %s: %w", key, err)
		}
		*target = parsed
	}
	return nil
}

func overrideInt64(lookup func(string) (string, bool), key string, target *int64) error {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return fmt.Errorf("config: invalid value for %s: %w", key, err)
		}
		*target = parsed
	}
	return nil
}
