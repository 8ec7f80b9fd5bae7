package llm

import (
	"context"
	"fmt"

	"github.com/relayci/fixpipeline/internal/config"
)

// mockClient is the default provider (see DESIGN.md Open Question (c)):
// it never makes a network call and returns a deterministic, clearly
// synthetic completion, so the pipeline is runnable end-to-end without
// credentials. Real plan generation for known categories instead goes
// through the deterministic mock generator in pkg/plan, which inspects
// parsed log text directly rather than a model response; this client
// only stands in for the LLM-backed generator path.
type mockClient struct {
	model string
}

func newMockClient(cfg config.LLMConfig) Client {
	model := cfg.Model
	if model == "" {
		model = "mock-plan-generator"
	}
	return &mockClient{model: model}
}

func (c *mockClient) ModelName() string { return c.model }

func (c *mockClient) Generate(_ context.Context, prompt string, _ GenerateOptions) (string, error) {
	return fmt.Sprintf(`{"explanation":"mock provider received a %d-byte prompt; no deterministic plan was produced","diffs":[]}`, len(prompt)), nil
}
