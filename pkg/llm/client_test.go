package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/relayci/fixpipeline/internal/config"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.FatalLevel)
	return l
}

func TestNewClient_UnsupportedProvider(t *testing.T) {
	_, err := NewClient(config.LLMConfig{Provider: "cobol-ai"}, testLogger())
	if err == nil {
		t.Fatal("expected an error for an unsupported provider")
	}
	if !strings.Contains(err.Error(), "unsupported provider: cobol-ai") {
		t.Errorf("error = %q, want it to contain the unsupported provider name", err.Error())
	}
}

func TestNewClient_Mock(t *testing.T) {
	client, err := NewClient(config.LLMConfig{Provider: "mock", Model: "test-model"}, testLogger())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if client.ModelName() != "test-model" {
		t.Errorf("ModelName() = %s, want test-model", client.ModelName())
	}
}

func TestMockClient_GenerateIsDeterministic(t *testing.T) {
	client, _ := NewClient(config.LLMConfig{Provider: "mock"}, testLogger())
	first, err := client.Generate(context.Background(), "hello", GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	second, _ := client.Generate(context.Background(), "hello", GenerateOptions{})
	if first != second {
		t.Error("mock client should be deterministic for identical input")
	}
}

func TestMockClient_DefaultModelName(t *testing.T) {
	client, _ := NewClient(config.LLMConfig{Provider: "mock"}, testLogger())
	if client.ModelName() != "mock-plan-generator" {
		t.Errorf("ModelName() = %s, want mock-plan-generator", client.ModelName())
	}
}
