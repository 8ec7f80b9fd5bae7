// Package llm provides the narrow language-model client interface the
// plan generator (C6) uses, plus one concrete implementation per
// provider named in internal/config.LLMConfig.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relayci/fixpipeline/internal/config"
)

// Client generates free-form completions from a prompt. Implementations
// must be safe for concurrent use.
type Client interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
	ModelName() string
}

// GenerateOptions mirrors the knobs the Python fix generator passed
// through to its provider (low temperature for deterministic fixes).
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
}

// NewClient builds the Client named by cfg.Provider. An unsupported
// provider is a configuration error, not a runtime one.
func NewClient(cfg config.LLMConfig, logger *logrus.Logger) (Client, error) {
	switch cfg.Provider {
	case "anthropic":
		return newAnthropicClient(cfg, logger)
	case "bedrock":
		return newBedrockClient(cfg, logger)
	case "langchain":
		return newLangchainClient(cfg, logger)
	case "mock":
		return newMockClient(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 30 * time.Second
	}
	return d
}
