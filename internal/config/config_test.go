package config

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "fixpipeline-config-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
		os.Clearenv()
	})

	writeConfig := func(content string) string {
		path := filepath.Join(tmpDir, "config.yaml")
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
		return path
	}

	Describe("Load", func() {
		It("loads a fully specified config file", func() {
			path := writeConfig(`
server:
  webhook_port: "8080"
  metrics_port: "9090"
llm:
  endpoint: "http://llm.internal:11434"
  model: "claude-sonnet"
  provider: "anthropic"
  temperature: 0.2
  max_tokens: 2048
governor:
  repo_concurrency_limit: 4
  max_attempts: 5
sandbox:
  image: "ghcr.io/acme/sandbox:v3"
logging:
  level: "debug"
  format: "text"
`)
			cfg, err := Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Server.WebhookPort).To(Equal("8080"))
			Expect(cfg.LLM.Model).To(Equal("claude-sonnet"))
			Expect(cfg.LLM.Provider).To(Equal("anthropic"))
			Expect(cfg.Governor.RepoConcurrencyLimit).To(Equal(4))
			Expect(cfg.Sandbox.Image).To(Equal("ghcr.io/acme/sandbox:v3"))
			Expect(cfg.Logging.Level).To(Equal("debug"))
		})

		It("fills defaults for a minimal config file", func() {
			path := writeConfig(`
llm:
  provider: "mock"
  model: "deterministic-v1"
`)
			cfg, err := Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Governor.RepoConcurrencyLimit).To(Equal(3))
			Expect(cfg.Governor.MaxAttempts).To(Equal(3))
			Expect(cfg.Sandbox.Image).To(Equal("ghcr.io/relayci/fixpipeline-sandbox:latest"))
			Expect(cfg.Logging.Level).To(Equal("info"))
			Expect(cfg.Logging.Format).To(Equal("json"))
			Expect(cfg.Database).To(Equal(DefaultDatabaseConfig()))
		})

		It("returns an error when the file does not exist", func() {
			_, err := Load(filepath.Join(tmpDir, "missing.yaml"))
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("failed to read config file"))
		})

		It("returns an error when the file is not valid YAML", func() {
			path := writeConfig("server: [this is not: valid")
			_, err := Load(path)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("failed to parse config file"))
		})
	})

	Describe("validate", func() {
		It("rejects an unsupported LLM provider", func() {
			cfg := &Config{LLM: LLMConfig{Provider: "carrier-pigeon", Model: "x"}}
			err := validate(cfg)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unsupported LLM provider"))
		})

		It("requires a model when the provider is mock", func() {
			cfg := &Config{LLM: LLMConfig{Provider: "mock"}}
			err := validate(cfg)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("LLM model is required for mock provider"))
		})

		It("rejects a temperature outside [0.0, 1.0]", func() {
			cfg := &Config{LLM: LLMConfig{Provider: "mock", Model: "x", Temperature: 1.5}}
			err := validate(cfg)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("temperature"))
		})

		It("does not error on a negative retry count", func() {
			cfg := &Config{LLM: LLMConfig{Provider: "mock", Model: "x", RetryCount: -1}}
			Expect(validate(cfg)).To(Succeed())
		})

		It("does not error on a negative cooldown period, defaulting it instead", func() {
			cfg := &Config{
				LLM:      LLMConfig{Provider: "mock", Model: "x"},
				Governor: GovernorConfig{CooldownPeriod: -1 * time.Second},
			}
			Expect(validate(cfg)).To(Succeed())
			Expect(cfg.Governor.CooldownPeriod).To(Equal(5 * time.Minute))
		})

		It("defaults an empty LLM provider to mock", func() {
			cfg := &Config{LLM: LLMConfig{Model: "x"}}
			Expect(validate(cfg)).To(Succeed())
			Expect(cfg.LLM.Provider).To(Equal("mock"))
		})
	})

	Describe("loadFromEnv", func() {
		It("is a no-op when no relevant environment variables are set", func() {
			before := &Config{LLM: LLMConfig{Provider: "mock", Model: "x"}}
			after := &Config{LLM: LLMConfig{Provider: "mock", Model: "x"}}
			Expect(loadFromEnv(after)).To(Succeed())
			Expect(after).To(Equal(before))
		})

		It("overrides LLM settings from the environment", func() {
			os.Setenv("LLM_ENDPOINT", "http://override:9999")
			os.Setenv("LLM_MODEL", "override-model")
			os.Setenv("LLM_PROVIDER", "anthropic")

			cfg := &Config{}
			Expect(loadFromEnv(cfg)).To(Succeed())
			Expect(cfg.LLM.Endpoint).To(Equal("http://override:9999"))
			Expect(cfg.LLM.Model).To(Equal("override-model"))
			Expect(cfg.LLM.Provider).To(Equal("anthropic"))
		})

		It("overrides server ports and log level from the environment", func() {
			os.Setenv("WEBHOOK_PORT", "9001")
			os.Setenv("METRICS_PORT", "9002")
			os.Setenv("LOG_LEVEL", "warn")

			cfg := &Config{}
			Expect(loadFromEnv(cfg)).To(Succeed())
			Expect(cfg.Server.WebhookPort).To(Equal("9001"))
			Expect(cfg.Server.MetricsPort).To(Equal("9002"))
			Expect(cfg.Logging.Level).To(Equal("warn"))
		})

		It("rejects an unparseable GOVERNOR_DRY_RUN value", func() {
			os.Setenv("GOVERNOR_DRY_RUN", "sort-of")
			cfg := &Config{}
			err := loadFromEnv(cfg)
			Expect(err).To(HaveOccurred())
		})
	})
})
