// File: internal/llmclient/factory.go
package llmclient

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formscout/api/schemas"
	"github.com/xkilldash9x/formscout/internal/config"
)

// Supported provider names.
const (
	ProviderOllama = "ollama"
)

// NewClient creates a TextGenerator based on the configuration.
func NewClient(cfg config.LLMConfig, logger *zap.Logger) (schemas.TextGenerator, error) {
	switch cfg.Provider {
	case ProviderOllama:
		return NewOllamaClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s]",
			cfg.Provider, ProviderOllama)
	}
}
