// Package config loads and validates the fix pipeline's process
// configuration: a YAML file layered with environment-variable overrides,
// the same two-stage approach the rest of this codebase's lineage uses for
// its services.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds the two HTTP listener ports the process exposes.
type ServerConfig struct {
	WebhookPort string `yaml:"webhook_port"`
	MetricsPort string `yaml:"metrics_port"`
}

// ProviderAuthConfig carries the shared secret used to verify one CI
// provider's webhook signature.
type ProviderAuthConfig struct {
	Secret string `yaml:"secret"`
}

// WebhookConfig configures the inbound webhook surface (§6 of the spec).
type WebhookConfig struct {
	Path      string                         `yaml:"path"`
	Providers map[string]ProviderAuthConfig `yaml:"providers"`
}

// LLMConfig configures the plan generator's language-model collaborator.
type LLMConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	RetryCount  int           `yaml:"retry_count"`
	Provider    string        `yaml:"provider"` // anthropic | bedrock | langchain | mock
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
}

// PolicyConfig points at the SafetyPolicy document and its default profile.
type PolicyConfig struct {
	Path           string `yaml:"path"`
	DefaultProfile string `yaml:"default_profile"`
}

// SandboxConfig configures the ephemeral validation container (C8).
type SandboxConfig struct {
	Image              string `yaml:"image"`
	CPULimit           string `yaml:"cpu_limit"`
	MemoryLimitMB      int    `yaml:"memory_limit_mb"`
	NetworkEnabled     bool   `yaml:"network_enabled"`
	CloneDepth         int    `yaml:"clone_depth"`
	CloneTimeoutSec    int    `yaml:"clone_timeout_seconds"`
	PatchCheckTimeoutS int    `yaml:"patch_check_timeout_seconds"`
	ValidateTimeoutSec int    `yaml:"validate_timeout_seconds"`
}

// GovernorConfig configures the concurrency governor (C11).
type GovernorConfig struct {
	DryRun                bool          `yaml:"dry_run"`
	CooldownPeriod        time.Duration `yaml:"cooldown_period"`
	MaxAttempts           int           `yaml:"max_attempts"`
	RepoConcurrencyLimit  int           `yaml:"repo_concurrency_limit"`
	BackoffBase           time.Duration `yaml:"backoff_base"`
	BackoffMax            time.Duration `yaml:"backoff_max"`
}

// DatabaseConfig configures the Postgres-backed event/run stores.
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// DSN builds a libpq connection string from the config fields.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode)
}

// DefaultDatabaseConfig mirrors the defaults the teacher's connection
// package shipped, adapted to this service's schema name.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "fixpipeline",
		Database:        "fixpipeline",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// RedisConfig configures the distributed coordinator backing the governor.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LoggingConfig configures the process-wide logrus logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// NotificationConfig configures the terminal-run Slack notifier. Empty
// SlackToken disables Slack and falls back to notification.NoopNotifier.
type NotificationConfig struct {
	SlackToken   string `yaml:"slack_token"`
	SlackChannel string `yaml:"slack_channel"`
}

// RepositoryConfig configures the outbound Repository-provider and
// PR-orchestrator collaborators (spec.md §6): the GitHub token pkg/gitrepo
// and pkg/prclient use to clone, push, and open the fix pull request.
type RepositoryConfig struct {
	Token        string `yaml:"token"`
	GitUserName  string `yaml:"git_user_name"`
	GitUserEmail string `yaml:"git_user_email"`
	BranchPrefix string `yaml:"branch_prefix"`
}

// Config is the root configuration document.
type Config struct {
	Server       ServerConfig        `yaml:"server"`
	Webhook      WebhookConfig       `yaml:"webhook"`
	LLM          LLMConfig           `yaml:"llm"`
	Policy       PolicyConfig        `yaml:"policy"`
	Sandbox      SandboxConfig       `yaml:"sandbox"`
	Governor     GovernorConfig      `yaml:"governor"`
	Database     DatabaseConfig      `yaml:"database"`
	Redis        RedisConfig         `yaml:"redis"`
	Logging      LoggingConfig       `yaml:"logging"`
	Notification NotificationConfig  `yaml:"notification"`
	Repository   RepositoryConfig    `yaml:"repository"`
}

// Load reads a YAML config file, applies environment-variable overrides,
// fills defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFromEnv(cfg *Config) error {
	if v := os.Getenv("LLM_ENDPOINT"); v != "" {
		cfg.LLM.Endpoint = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("WEBHOOK_PORT"); v != "" {
		cfg.Server.WebhookPort = v
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		cfg.Server.MetricsPort = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GOVERNOR_DRY_RUN"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid GOVERNOR_DRY_RUN value %q: %w", v, err)
		}
		cfg.Governor.DryRun = parsed
	}
	if v := os.Getenv("DATABASE_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REPOSITORY_TOKEN"); v != "" {
		cfg.Repository.Token = v
	}
	return nil
}

var supportedLLMProviders = map[string]bool{
	"anthropic":  true,
	"bedrock":    true,
	"langchain":  true,
	"mock":       true,
}

func validate(cfg *Config) error {
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "mock"
	}
	if !supportedLLMProviders[cfg.LLM.Provider] {
		return fmt.Errorf("unsupported LLM provider: %s", cfg.LLM.Provider)
	}

	if cfg.LLM.Endpoint == "" {
		cfg.LLM.Endpoint = "http://localhost:11434"
	}

	if cfg.LLM.Provider == "mock" && cfg.LLM.Model == "" {
		return fmt.Errorf("LLM model is required for mock provider")
	}

	if cfg.LLM.Temperature < 0.0 || cfg.LLM.Temperature > 1.0 {
		return fmt.Errorf("LLM temperature must be between 0.0 and 1.0")
	}

	if cfg.LLM.MaxTokens <= 0 {
		cfg.LLM.MaxTokens = 1024
	}

	if cfg.Governor.RepoConcurrencyLimit <= 0 {
		cfg.Governor.RepoConcurrencyLimit = 3
	}

	if cfg.Governor.MaxAttempts <= 0 {
		cfg.Governor.MaxAttempts = 3
	}

	if cfg.Governor.CooldownPeriod <= 0 {
		cfg.Governor.CooldownPeriod = 5 * time.Minute
	}

	if cfg.Governor.BackoffBase <= 0 {
		cfg.Governor.BackoffBase = 2 * time.Second
	}

	if cfg.Governor.BackoffMax <= 0 {
		cfg.Governor.BackoffMax = 5 * time.Minute
	}

	if cfg.Sandbox.Image == "" {
		cfg.Sandbox.Image = "ghcr.io/relayci/fixpipeline-sandbox:latest"
	}

	if cfg.Sandbox.CloneDepth <= 0 {
		cfg.Sandbox.CloneDepth = 50
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Database == (DatabaseConfig{}) {
		cfg.Database = DefaultDatabaseConfig()
	}

	return nil
}
