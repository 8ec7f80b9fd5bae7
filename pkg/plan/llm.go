package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/relayci/fixpipeline/pkg/fixtypes"
	"github.com/relayci/fixpipeline/pkg/llm"
)

// llmOperation is the strict wire schema the LLM must return for one
// operation; validated before being converted to Operation.
type llmOperation struct {
	Type      string            `json:"type"`
	File      string            `json:"file"`
	Details   map[string]string `json:"details"`
	Rationale string            `json:"rationale"`
	Evidence  []string          `json:"evidence"`
}

type llmPlanResponse struct {
	RootCause string         `json:"root_cause"`
	Files     []string       `json:"files"`
	Operations []llmOperation `json:"operations"`
}

// llmGenerator builds a prompt from the RCA request, calls an llm.Client,
// and validates the strict JSON schema it must return.
type llmGenerator struct {
	client llm.Client
}

// NewLLMGenerator returns the LLM-backed implementation of Generator.
func NewLLMGenerator(client llm.Client) Generator {
	return &llmGenerator{client: client}
}

func (g *llmGenerator) Generate(ctx context.Context, req Request) (FixPlan, error) {
	prompt := buildPrompt(req)

	raw, err := g.client.Generate(ctx, prompt, llm.GenerateOptions{MaxTokens: 2000, Temperature: 0.1})
	if err != nil {
		return FixPlan{}, fmt.Errorf("plan: llm generation failed: %w", err)
	}

	var resp llmPlanResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &resp); err != nil {
		return FixPlan{}, fmt.Errorf("plan: failed to parse llm response as the expected schema: %w", err)
	}

	fixPlan, err := validateAndConvert(resp, req)
	if err != nil {
		return FixPlan{}, err
	}
	return fixPlan, nil
}

// extractJSON trims a model response down to its outermost JSON object,
// tolerating markdown code fences around the payload.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}

func validateAndConvert(resp llmPlanResponse, req Request) (FixPlan, error) {
	if len(resp.Operations) == 0 {
		return FixPlan{}, fmt.Errorf("plan: llm response contained no operations")
	}

	allowedTypes := map[fixtypes.OperationType]bool{}
	for _, t := range req.AllowedFixTypes {
		allowedTypes[t] = true
	}

	fileSet := map[string]bool{}
	for _, f := range resp.Files {
		fileSet[f] = true
	}

	operations := make([]Operation, 0, len(resp.Operations))
	for _, op := range resp.Operations {
		opType := fixtypes.OperationType(op.Type)
		if len(allowedTypes) > 0 && !allowedTypes[opType] {
			return FixPlan{}, fmt.Errorf("plan: operation type %q is not in the adapter's allowed fix types", op.Type)
		}
		if op.File == "" {
			return FixPlan{}, fmt.Errorf("plan: operation missing a file")
		}
		if !fileSet[op.File] {
			return FixPlan{}, fmt.Errorf("plan: operation.file %q is not a member of plan.files", op.File)
		}
		operations = append(operations, Operation{
			Type:      opType,
			File:      op.File,
			Details:   op.Details,
			Rationale: op.Rationale,
			Evidence:  op.Evidence,
		})
	}

	return FixPlan{
		RootCause:  resp.RootCause,
		Category:   req.Category,
		Confidence: req.Confidence,
		Files:      resp.Files,
		Operations: operations,
	}, nil
}

func buildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You are an expert code fix assistant. Given the following CI failure, ")
	b.WriteString("respond with ONLY a JSON object matching this schema: ")
	b.WriteString(`{"root_cause": string, "files": [string], "operations": [{"type": string, "file": string, "details": object, "rationale": string, "evidence": [string]}]}.`)
	b.WriteString("\n\nCategory: ")
	b.WriteString(string(req.Category))
	b.WriteString("\nRoot cause hypothesis: ")
	b.WriteString(req.RootCause)
	b.WriteString(fmt.Sprintf("\nConfidence: %.0f%%\n", req.Confidence*100))
	b.WriteString("\nAllowed operation types: ")
	for i, t := range req.AllowedFixTypes {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(string(t))
	}
	b.WriteString("\n\nLog excerpt:\n")
	b.WriteString(req.LogText)
	return b.String()
}
