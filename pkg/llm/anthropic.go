package llm

import (
	"context"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"

	"github.com/relayci/fixpipeline/internal/config"
)

type anthropicClient struct {
	client *anthropic.Client
	model  string
	log    *logrus.Logger
}

func newAnthropicClient(cfg config.LLMConfig, logger *logrus.Logger) (Client, error) {
	opts := []option.RequestOption{}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		opts = append(opts, option.WithAPIKey(key))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	client := anthropic.NewClient(opts...)
	return &anthropicClient{client: &client, model: cfg.Model, log: logger}, nil
}

func (c *anthropicClient) ModelName() string { return c.model }

func (c *anthropicClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 2000
	}

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}
