package webhook

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// Normalizer converts one provider's raw webhook body into the shared
// NormalizedPipelineEvent shape, or reports that the delivery isn't a
// pipeline-failure event worth acting on (ok=false, never an error —
// spec.md §6: "everything else returns status=ignored").
type Normalizer interface {
	Normalize(body []byte, correlationID string) (event NormalizedPipelineEvent, ok bool, err error)
}

// NormalizerFor resolves the Normalizer for a Provider.
func NormalizerFor(p Provider) (Normalizer, bool) {
	n, found := normalizers[p]
	return n, found
}

var normalizers = map[Provider]Normalizer{
	ProviderGitHub:      githubNormalizer{},
	ProviderGitLab:      gitlabNormalizer{},
	ProviderCircleCI:    circleciNormalizer{},
	ProviderJenkins:     jenkinsNormalizer{},
	ProviderAzureDevOps: azureDevOpsNormalizer{},
}

func rawPayloadMap(body []byte) map[string]any {
	var m map[string]any
	_ = json.Unmarshal(body, &m)
	return m
}

// githubNormalizer handles GitHub Actions workflow_job completions,
// mirroring the flow in the teacher's workflow_job handling: only
// action=="completed" with a failure/cancelled/timed_out conclusion is
// accepted; everything else (including workflow_run, which the teacher
// explicitly defers) is ignored.
type githubNormalizer struct{}

func (githubNormalizer) Normalize(body []byte, correlationID string) (NormalizedPipelineEvent, bool, error) {
	root := gjson.ParseBytes(body)
	if !root.Exists() {
		return NormalizedPipelineEvent{}, false, fmt.Errorf("webhook: invalid JSON payload")
	}

	action := root.Get("action").String()
	job := root.Get("workflow_job")
	if action != "completed" || !job.Exists() {
		return NormalizedPipelineEvent{}, false, nil
	}
	conclusion := job.Get("conclusion").String()
	if !isFailureConclusion(conclusion) {
		return NormalizedPipelineEvent{}, false, nil
	}

	deliveryID := root.Get("id").String()
	if deliveryID == "" {
		deliveryID = fmt.Sprintf("%s/%s", root.Get("repository.full_name").String(), job.Get("id").String())
	}

	return NormalizedPipelineEvent{
		Provider:       ProviderGitHub,
		IdempotencyKey: "github:" + deliveryID,
		PipelineID:     job.Get("run_id").String(),
		Repo:           root.Get("repository.full_name").String(),
		CommitSHA:      job.Get("head_sha").String(),
		Branch:         job.Get("head_branch").String(),
		Stage:          job.Get("name").String(),
		FailureType:    conclusion,
		ErrorMessage:   job.Get("conclusion").String(),
		EventTimestamp: parseOrNow(job.Get("completed_at").String()),
		RawPayload:     rawPayloadMap(body),
		CorrelationID:  correlationID,
	}, true, nil
}

// gitlabNormalizer handles GitLab CI "Job Hook" and "Pipeline Hook"
// payloads.
type gitlabNormalizer struct{}

func (gitlabNormalizer) Normalize(body []byte, correlationID string) (NormalizedPipelineEvent, bool, error) {
	root := gjson.ParseBytes(body)
	if !root.Exists() {
		return NormalizedPipelineEvent{}, false, fmt.Errorf("webhook: invalid JSON payload")
	}

	status := root.Get("build_status").String()
	if status == "" {
		status = root.Get("object_attributes.status").String()
	}
	if !isFailureConclusion(gitlabStatusToConclusion(status)) {
		return NormalizedPipelineEvent{}, false, nil
	}

	buildID := root.Get("build_id").String()
	if buildID == "" {
		buildID = root.Get("object_attributes.id").String()
	}

	return NormalizedPipelineEvent{
		Provider:       ProviderGitLab,
		IdempotencyKey: "gitlab:" + buildID,
		PipelineID:     root.Get("pipeline_id").String(),
		Repo:           root.Get("project_name").String(),
		CommitSHA:      root.Get("sha").String(),
		Branch:         root.Get("ref").String(),
		Stage:          root.Get("build_stage").String(),
		FailureType:    gitlabStatusToConclusion(status),
		ErrorMessage:   status,
		EventTimestamp: parseOrNow(root.Get("build_finished_at").String()),
		RawPayload:     rawPayloadMap(body),
		CorrelationID:  correlationID,
	}, true, nil
}

func gitlabStatusToConclusion(status string) string {
	switch status {
	case "failed":
		return string(conclusionFailure)
	case "canceled", "cancelled":
		return string(conclusionCanceled)
	default:
		return status
	}
}

// circleciNormalizer handles CircleCI's "job-completed" webhook event.
type circleciNormalizer struct{}

func (circleciNormalizer) Normalize(body []byte, correlationID string) (NormalizedPipelineEvent, bool, error) {
	root := gjson.ParseBytes(body)
	if !root.Exists() {
		return NormalizedPipelineEvent{}, false, fmt.Errorf("webhook: invalid JSON payload")
	}

	if root.Get("type").String() != "job-completed" {
		return NormalizedPipelineEvent{}, false, nil
	}
	job := root.Get("payload")
	status := job.Get("status").String()
	if !isFailureConclusion(circleciStatusToConclusion(status)) {
		return NormalizedPipelineEvent{}, false, nil
	}

	return NormalizedPipelineEvent{
		Provider:       ProviderCircleCI,
		IdempotencyKey: "circleci:" + job.Get("id").String(),
		PipelineID:     job.Get("pipeline.id").String(),
		Repo:           job.Get("project.slug").String(),
		CommitSHA:      job.Get("pipeline.vcs.revision").String(),
		Branch:         job.Get("pipeline.vcs.branch").String(),
		Stage:          job.Get("name").String(),
		FailureType:    circleciStatusToConclusion(status),
		ErrorMessage:   status,
		EventTimestamp: parseOrNow(job.Get("stopped_at").String()),
		RawPayload:     rawPayloadMap(body),
		CorrelationID:  correlationID,
	}, true, nil
}

func circleciStatusToConclusion(status string) string {
	switch status {
	case "failed":
		return string(conclusionFailure)
	case "canceled":
		return string(conclusionCanceled)
	case "timedout":
		return string(conclusionTimedOut)
	default:
		return status
	}
}

// jenkinsNormalizer handles the generic Jenkins notification plugin
// payload shape (build.status / build.full_url / scm fields).
type jenkinsNormalizer struct{}

func (jenkinsNormalizer) Normalize(body []byte, correlationID string) (NormalizedPipelineEvent, bool, error) {
	root := gjson.ParseBytes(body)
	if !root.Exists() {
		return NormalizedPipelineEvent{}, false, fmt.Errorf("webhook: invalid JSON payload")
	}

	build := root.Get("build")
	status := build.Get("status").String()
	if !isFailureConclusion(jenkinsStatusToConclusion(status)) {
		return NormalizedPipelineEvent{}, false, nil
	}

	return NormalizedPipelineEvent{
		Provider:       ProviderJenkins,
		IdempotencyKey: fmt.Sprintf("jenkins:%s:%s", root.Get("name").String(), build.Get("number").String()),
		PipelineID:     build.Get("number").String(),
		Repo:           root.Get("name").String(),
		CommitSHA:      build.Get("scm.commit").String(),
		Branch:         build.Get("scm.branch").String(),
		Stage:          root.Get("name").String(),
		FailureType:    jenkinsStatusToConclusion(status),
		ErrorMessage:   status,
		EventTimestamp: parseOrNow(build.Get("timestamp").String()),
		RawPayload:     rawPayloadMap(body),
		CorrelationID:  correlationID,
	}, true, nil
}

func jenkinsStatusToConclusion(status string) string {
	switch status {
	case "FAILURE":
		return string(conclusionFailure)
	case "ABORTED":
		return string(conclusionCanceled)
	default:
		return status
	}
}

// azureDevOpsNormalizer handles the "build.complete" service hook event.
type azureDevOpsNormalizer struct{}

func (azureDevOpsNormalizer) Normalize(body []byte, correlationID string) (NormalizedPipelineEvent, bool, error) {
	root := gjson.ParseBytes(body)
	if !root.Exists() {
		return NormalizedPipelineEvent{}, false, fmt.Errorf("webhook: invalid JSON payload")
	}

	if root.Get("eventType").String() != "build.complete" {
		return NormalizedPipelineEvent{}, false, nil
	}
	resource := root.Get("resource")
	status := resource.Get("result").String()
	if !isFailureConclusion(azureStatusToConclusion(status)) {
		return NormalizedPipelineEvent{}, false, nil
	}

	return NormalizedPipelineEvent{
		Provider:       ProviderAzureDevOps,
		IdempotencyKey: "azure_devops:" + resource.Get("id").String(),
		PipelineID:     resource.Get("id").String(),
		Repo:           resource.Get("repository.name").String(),
		CommitSHA:      resource.Get("sourceVersion").String(),
		Branch:         resource.Get("sourceBranch").String(),
		Stage:          resource.Get("definition.name").String(),
		FailureType:    azureStatusToConclusion(status),
		ErrorMessage:   status,
		EventTimestamp: parseOrNow(resource.Get("finishTime").String()),
		RawPayload:     rawPayloadMap(body),
		CorrelationID:  correlationID,
	}, true, nil
}

func azureStatusToConclusion(status string) string {
	switch status {
	case "failed":
		return string(conclusionFailure)
	case "canceled":
		return string(conclusionCanceled)
	case "partiallySucceeded":
		return status
	default:
		return status
	}
}

func parseOrNow(ts string) time.Time {
	if ts == "" {
		return time.Now().UTC()
	}
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05Z0700", ts); err == nil {
		return t
	}
	return time.Now().UTC()
}
