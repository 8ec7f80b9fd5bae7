package llm

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/sirupsen/logrus"

	"github.com/relayci/fixpipeline/internal/config"
)

type bedrockClient struct {
	client *bedrockruntime.Client
	model  string
	log    *logrus.Logger
}

func newBedrockClient(cfg config.LLMConfig, logger *logrus.Logger) (Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, err
	}
	return &bedrockClient{
		client: bedrockruntime.NewFromConfig(awsCfg),
		model:  cfg.Model,
		log:    logger,
	}, nil
}

func (c *bedrockClient) ModelName() string { return c.model }

type anthropicBedrockRequest struct {
	AnthropicVersion string                   `json:"anthropic_version"`
	MaxTokens        int                      `json:"max_tokens"`
	Messages         []map[string]interface{} `json:"messages"`
}

type anthropicBedrockResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (c *bedrockClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}

	body, err := json.Marshal(anthropicBedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		Messages: []map[string]interface{}{
			{"role": "user", "content": prompt},
		},
	})
	if err != nil {
		return "", err
	}

	out, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.model),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", err
	}

	var resp anthropicBedrockResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", err
	}

	var text string
	for _, block := range resp.Content {
		text += block.Text
	}
	return text, nil
}
