// Package webhook implements the inbound ingestion boundary (spec.md §6):
// one endpoint per CI provider, each with its own signature verification
// and payload shape, all converging on a single NormalizedPipelineEvent
// that the rest of the pipeline never has to know the provider of.
package webhook

import "time"

// Provider identifies which CI system a webhook delivery came from.
type Provider string

const (
	ProviderGitHub      Provider = "github"
	ProviderGitLab      Provider = "gitlab"
	ProviderCircleCI    Provider = "circleci"
	ProviderJenkins     Provider = "jenkins"
	ProviderAzureDevOps Provider = "azure_devops"
)

// NormalizedPipelineEvent is the provider-agnostic shape every webhook
// handler converges on (spec.md §6).
type NormalizedPipelineEvent struct {
	Provider        Provider          `json:"provider" validate:"required"`
	IdempotencyKey  string            `json:"idempotency_key" validate:"required"`
	PipelineID      string            `json:"pipeline_id" validate:"required"`
	Repo            string            `json:"repo" validate:"required"`
	CommitSHA       string            `json:"commit_sha" validate:"required"`
	Branch          string            `json:"branch"`
	Stage           string            `json:"stage"`
	FailureType     string            `json:"failure_type"`
	ErrorMessage    string            `json:"error_message"`
	EventTimestamp  time.Time         `json:"event_timestamp" validate:"required"`
	RawPayload      map[string]any    `json:"raw_payload"`
	CorrelationID   string            `json:"correlation_id" validate:"required"`
}

// Response is the JSON body every webhook endpoint returns.
type Response struct {
	Status        string `json:"status"` // accepted | ignored | error
	Message       string `json:"message,omitempty"`
	EventID       string `json:"event_id,omitempty"`
	CorrelationID string `json:"correlation_id"`
}

// jobConclusion is the small vocabulary of terminal job states a provider
// payload may report; only these three are treated as failures worth
// fixing (spec.md §6: "Only failed/cancelled/timed-out job completions
// are accepted").
type jobConclusion string

const (
	conclusionFailure  jobConclusion = "failure"
	conclusionCanceled jobConclusion = "cancelled"
	conclusionTimedOut jobConclusion = "timed_out"
)

func isFailureConclusion(c string) bool {
	switch jobConclusion(c) {
	case conclusionFailure, conclusionCanceled, conclusionTimedOut:
		return true
	default:
		return false
	}
}
