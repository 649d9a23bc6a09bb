package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/nupi-ai/plugin-spoof-aasist/internal/audio"
	"github.com/nupi-ai/plugin-spoof-aasist/internal/config"
	"github.com/nupi-ai/plugin-spoof-aasist/internal/engine"
	"github.com/nupi-ai/plugin-spoof-aasist/internal/metrics"
	"github.com/nupi-ai/plugin-spoof-aasist/internal/pipeline"
)

// resolvedEngine is the engine chosen at startup plus the model description
// the pipeline frames audio for.
type resolvedEngine struct {
	engine.Engine
	model config.ModelConfig
	name  string
}

// errStubNotSelected is returned when "auto" cannot load the native engine
// and the stub was neither requested nor allowed by NUPI_DEV_MODE.
var errStubNotSelected = errors.New("native aasist engine not compiled in (build with -tags aasist, set engine=stub, or NUPI_DEV_MODE=1)")

// resolveEngine turns the configured engine ("auto", "aasist", "stub") into a
// running engine. "auto" picks aasist when it is compiled in. The stub is only
// used when requested explicitly, or when "auto" fails and NUPI_DEV_MODE=1.
func resolveEngine(cfg config.Config, logger *slog.Logger) (*resolvedEngine, error) {
	name := cfg.Engine
	isAuto := name == "auto"
	devMode := os.Getenv("NUPI_DEV_MODE") == "1"
	if isAuto {
		switch {
		case engine.NativeAvailable():
			name = "aasist"
		case devMode:
			name = "stub"
			logger.Warn("auto-detected engine: stub (native aasist not compiled in, NUPI_DEV_MODE=1)")
		default:
			return nil, errStubNotSelected
		}
	}

	switch name {
	case "aasist":
		if !engine.NativeAvailable() {
			return nil, errors.New("engine \"aasist\" requested but native backend not compiled in (build with -tags aasist)")
		}
		eng, mc, err := loadNative(cfg)
		if err == nil {
			logger.Info("engine ready",
				"type", "aasist",
				"model_path", cfg.ModelPath,
				"frame_length", mc.FrameLength(),
				"bonafide_index", mc.BonafideIndex(),
			)
			return &resolvedEngine{Engine: eng, model: mc, name: "aasist"}, nil
		}
		if !isAuto || !devMode {
			if isAuto {
				logger.Error("hint: set NUPI_DEV_MODE=1 to allow fallback to stub engine")
			}
			return nil, err
		}
		logger.Warn("native engine failed, falling back to stub engine (NUPI_DEV_MODE=1)",
			"error", err,
			"hint", "unset NUPI_DEV_MODE for production behavior")
		fallthrough
	case "stub":
		mc := stubModelConfig(cfg, logger)
		logger.Warn("using stub engine: scores are fixed and NOT based on audio content",
			"score", cfg.StubScore,
			"frame_length", mc.FrameLength(),
		)
		return &resolvedEngine{
			Engine: engine.NewStubEngine(cfg.StubScore, mc.FrameLength()),
			model:  mc,
			name:   "stub",
		}, nil
	default:
		return nil, fmt.Errorf("unknown engine %q", name)
	}
}

func loadNative(cfg config.Config) (engine.Engine, config.ModelConfig, error) {
	if err := config.CheckModelFiles(cfg); err != nil {
		return nil, config.ModelConfig{}, err
	}
	mc, err := config.LoadModelConfig(cfg.ModelConfigPath)
	if err != nil {
		return nil, config.ModelConfig{}, err
	}
	eng, err := engine.NewNativeEngine(cfg.ModelPath, mc)
	if err != nil {
		return nil, config.ModelConfig{}, err
	}
	return eng, mc, nil
}

// stubModelConfig uses the configured model config when it is readable so
// the stub frames audio exactly like the real model would.
func stubModelConfig(cfg config.Config, logger *slog.Logger) config.ModelConfig {
	if _, err := os.Stat(cfg.ModelConfigPath); err != nil {
		return config.DefaultModelConfig()
	}
	mc, err := config.LoadModelConfig(cfg.ModelConfigPath)
	if err != nil {
		logger.Warn("ignoring unreadable model config for stub engine", "path", cfg.ModelConfigPath, "error", err)
		return config.DefaultModelConfig()
	}
	return mc
}

// buildPipeline wires the normalizer (with ffmpeg when present) and the
// engine into a pipeline.
func buildPipeline(cfg config.Config, eng *resolvedEngine, m *metrics.Metrics, logger *slog.Logger) (*pipeline.Pipeline, error) {
	ffmpeg := audio.NewFFmpeg(cfg.FFmpegPath)
	if ffmpeg.Available() {
		logger.Info("transcoder available", "ffmpeg", ffmpeg.Path())
	} else {
		logger.Warn("ffmpeg not found: only wav, mp3, ogg vorbis and aiff uploads can be decoded",
			"ffmpeg", cfg.FFmpegPath,
			"error", ffmpeg.ProbeError())
	}

	normalizer := audio.NewNormalizer(audio.DefaultRegistry(), ffmpeg, audio.TargetSampleRate, logger)
	return pipeline.New(normalizer, eng, pipeline.Options{
		FrameLength: eng.model.FrameLength(),
		Threshold:   cfg.Threshold,
		TempDir:     cfg.TempDir,
		MaxInFlight: int64(cfg.MaxInFlight),
	}, m, logger)
}
