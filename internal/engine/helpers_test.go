package engine

import "github.com/nupi-ai/plugin-spoof-aasist/internal/config"

func testModelConfig() config.ModelConfig {
	return config.DefaultModelConfig()
}
