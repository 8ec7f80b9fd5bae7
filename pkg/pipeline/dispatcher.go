// Package pipeline implements webhook.Dispatcher: the glue between the
// ingestion boundary and the pipeline orchestrator. It is the production
// analogue of original_source's "dispatch without waiting" step — the
// webhook handler must not block on pipeline completion, so Dispatch
// hands the event to a background goroutine and returns immediately.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/relayci/fixpipeline/pkg/eventstore"
	"github.com/relayci/fixpipeline/pkg/governor"
	"github.com/relayci/fixpipeline/pkg/metrics"
	"github.com/relayci/fixpipeline/pkg/orchestrator"
	"github.com/relayci/fixpipeline/pkg/provenance"
	"github.com/relayci/fixpipeline/pkg/runstore"
	"github.com/relayci/fixpipeline/pkg/webhook"
)

// EventStatusUpdater is the narrow slice of pkg/eventstore.Store the
// dispatcher needs.
type EventStatusUpdater interface {
	UpdateStatus(ctx context.Context, eventID string, status eventstore.Status) error
}

// RunPersister is the narrow slice of pkg/runstore.Store the dispatcher
// needs.
type RunPersister interface {
	Save(ctx context.Context, run orchestrator.Run) error
	GetByRunKey(ctx context.Context, runKey string) (run orchestrator.Run, found bool, err error)
	SaveArtifact(ctx context.Context, runID string, artifact provenance.Artifact) error
}

// Executor runs one FixPipelineRun to completion. *orchestrator.Orchestrator
// satisfies this.
type Executor interface {
	Execute(ctx context.Context, req orchestrator.Request) orchestrator.Outcome
}

// Dispatcher implements webhook.Dispatcher: governor admission, then
// orchestration, then persistence, all off the webhook request's
// goroutine.
type Dispatcher struct {
	Governor   *governor.Governor
	Executor   Executor
	Events     EventStatusUpdater
	Runs       RunPersister
	Log        *logrus.Logger
	RunTimeout time.Duration
}

var _ webhook.Dispatcher = (*Dispatcher)(nil)

// Dispatch implements webhook.Dispatcher. It ignores ctx for the actual
// pipeline run: ctx is the inbound HTTP request's context and is
// cancelled the moment the handler returns, which happens on this same
// call path immediately after Dispatch returns.
func (d *Dispatcher) Dispatch(_ context.Context, eventID string, event webhook.NormalizedPipelineEvent) {
	go d.run(eventID, event)
}

func (d *Dispatcher) run(eventID string, event webhook.NormalizedPipelineEvent) {
	timeout := d.RunTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	runKey := event.Repo + "@" + event.CommitSHA

	prior, found, err := d.Runs.GetByRunKey(ctx, runKey)
	var priorPtr *orchestrator.Run
	if err != nil && d.Log != nil {
		d.Log.WithError(err).Warn("pipeline: failed to load prior run, proceeding without it")
	}
	if found {
		priorPtr = &prior
	}

	attemptCount := 0
	lastUpdated := time.Now()
	if priorPtr != nil {
		attemptCount = priorPtr.AttemptCount
		lastUpdated = priorPtr.UpdatedAt
	}

	verdict := d.Governor.Admit(ctx, governor.AdmitRequest{
		RunKey: runKey, Repo: event.Repo, AttemptCount: attemptCount, LastUpdated: lastUpdated,
	})
	metrics.RecordGovernorVerdict(string(verdict.Verdict), gateForVerdict(verdict))

	switch verdict.Verdict {
	case governor.VerdictAlreadyRunning, governor.VerdictBlocked, governor.VerdictRetryable:
		if d.Log != nil {
			d.Log.WithFields(logrus.Fields{
				"run_key": runKey, "verdict": verdict.Verdict, "reason": verdict.BlockedReason,
			}).Info("pipeline: governor did not admit this attempt")
		}
		return
	}

	if err := d.Events.UpdateStatus(ctx, eventID, eventstore.StatusDispatched); err != nil && d.Log != nil {
		d.Log.WithError(err).Warn("pipeline: failed to mark event dispatched")
	}

	defer d.Governor.Release(ctx, runKey, event.Repo)

	runID := uuid.NewString()
	req := orchestrator.Request{
		RunID:     runID,
		EventID:   eventID,
		RunKey:    runKey,
		RepoURL:   event.Repo,
		Branch:    event.Branch,
		CommitSHA: event.CommitSHA,
		LogText:   syntheticLogText(event),
		Prior:     priorPtr,
	}

	start := time.Now()
	outcome := d.Executor.Execute(ctx, req)
	metrics.RecordRun(string(outcome.Run.Status), time.Since(start))
	metrics.RecordDangerScore(outcome.Artifact.PolicyDangerScore)

	if err := d.Runs.Save(ctx, outcome.Run); err != nil && d.Log != nil {
		d.Log.WithError(err).Error("pipeline: failed to persist run")
	}
	if err := d.Runs.SaveArtifact(ctx, outcome.Run.ID, outcome.Artifact); err != nil && d.Log != nil {
		d.Log.WithError(err).Warn("pipeline: failed to persist provenance artifact")
	}

	status := eventstore.StatusCompleted
	if !outcome.Run.Status.Terminal() {
		status = eventstore.StatusProcessing
	}
	if err := d.Events.UpdateStatus(ctx, eventID, status); err != nil && d.Log != nil {
		d.Log.WithError(err).Warn("pipeline: failed to mark event status")
	}
}

func gateForVerdict(v governor.AdmitResult) string {
	if v.Verdict != governor.VerdictRetryable {
		return ""
	}
	if v.Countdown > 0 {
		return "cooldown_or_concurrency"
	}
	return ""
}

// syntheticLogText builds fallback log text from the normalized event
// when no richer job log is available. A real deployment would fetch the
// CI provider's job log (download_job_logs) here; that client is not
// part of this codebase, so the webhook payload's own failure summary is
// what pkg/contextbuilder has to work with.
func syntheticLogText(event webhook.NormalizedPipelineEvent) string {
	return fmt.Sprintf("stage: %s\nfailure_type: %s\n%s\n", event.Stage, event.FailureType, event.ErrorMessage)
}
