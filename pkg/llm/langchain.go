package llm

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/relayci/fixpipeline/internal/config"
)

// langchainClient routes through langchaingo's OpenAI-compatible
// backend, pointed at cfg.Endpoint, so any self-hosted OpenAI-API-shaped
// model server can stand in as a plan-generation provider.
type langchainClient struct {
	model *openai.LLM
	name  string
	log   *logrus.Logger
}

func newLangchainClient(cfg config.LLMConfig, logger *logrus.Logger) (Client, error) {
	opts := []openai.Option{openai.WithModel(cfg.Model)}
	if cfg.Endpoint != "" {
		opts = append(opts, openai.WithBaseURL(cfg.Endpoint))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return &langchainClient{model: model, name: cfg.Model, log: logger}, nil
}

func (c *langchainClient) ModelName() string { return c.name }

func (c *langchainClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	genOpts := []llms.CallOption{}
	if opts.MaxTokens > 0 {
		genOpts = append(genOpts, llms.WithMaxTokens(opts.MaxTokens))
	}
	genOpts = append(genOpts, llms.WithTemperature(opts.Temperature))

	return llms.GenerateFromSinglePrompt(ctx, c.model, prompt, genOpts...)
}
