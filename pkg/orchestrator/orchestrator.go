package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relayci/fixpipeline/pkg/adapter"
	"github.com/relayci/fixpipeline/pkg/consensus"
	"github.com/relayci/fixpipeline/pkg/diffutil"
	"github.com/relayci/fixpipeline/pkg/fixcontext"
	"github.com/relayci/fixpipeline/pkg/fixtypes"
	"github.com/relayci/fixpipeline/pkg/guardrail"
	"github.com/relayci/fixpipeline/pkg/notification"
	"github.com/relayci/fixpipeline/pkg/patch"
	"github.com/relayci/fixpipeline/pkg/plan"
	"github.com/relayci/fixpipeline/pkg/policy"
	"github.com/relayci/fixpipeline/pkg/provenance"
	"github.com/relayci/fixpipeline/pkg/rca"
	"github.com/relayci/fixpipeline/pkg/sandbox"
)

// Orchestrator drives one FixPipelineRun through the spec.md §4.10 state
// machine, composing every stage's package. CriticGenerator may be nil,
// in which case consensus always sees CriticAvailable=false.
type Orchestrator struct {
	Adapters        *adapter.Registry
	ContextBuilder  ContextBuilder
	RCAEngine       *rca.Engine
	PlanGenerator   plan.Generator
	CriticGenerator plan.Generator
	PolicyEngine    *policy.Engine
	Consensus       *consensus.Coordinator
	Cloner          RepoCloner
	Validator       *sandbox.Validator
	PRCreator       PRCreator
	Notifier        notification.Notifier
	Redactor        *provenance.Redactor
	Log             *logrus.Logger
}

// Outcome is what Execute returns: the mutated Run plus its redacted,
// ready-to-persist provenance artifact.
type Outcome struct {
	Run      Run
	Artifact provenance.Artifact
	Timeline []Timeline
}

// Execute runs the full state machine for one event, start to terminal
// status, and returns the redacted provenance artifact built on whatever
// exit path was taken. It never returns an error itself: every failure
// mode is represented as a terminal Run.Status with Run.BlockedReason set,
// per spec.md §4.10's "on any exit path" closing paragraph.
func (o *Orchestrator) Execute(ctx context.Context, req Request) Outcome {
	now := time.Now()
	run := &Run{
		ID: req.RunID, EventID: req.EventID, RunKey: req.RunKey,
		RepoURL: req.RepoURL, Branch: req.Branch, CommitSHA: req.CommitSHA,
		Status: StatusPending, CreatedAt: now, UpdatedAt: now,
	}
	if req.Prior != nil {
		run.AttemptCount = req.Prior.AttemptCount + 1
		run.LastPRURL = req.Prior.LastPRURL
		run.PRStatus = req.Prior.PRStatus
		run.CreatedAt = req.Prior.CreatedAt
	}
	var timeline []Timeline
	var checkout RepoCheckout
	var haveCheckout bool

	record := func(stage string, startedAt time.Time, detail string) {
		timeline = append(timeline, Timeline{
			Stage: stage, Status: string(run.Status), StartedAt: startedAt,
			EndedAt: time.Now(), Detail: detail,
		})
	}
	block := func(stage string, startedAt time.Time, status Status, reason string) Outcome {
		run.Status = status
		run.BlockedReason = reason
		record(stage, startedAt, reason)
		return o.finish(ctx, run, timeline, checkout, haveCheckout)
	}

	// Step 1: load/construct context and RCA.
	stepStart := time.Now()
	bundle, err := o.ContextBuilder.Build(ctx, req)
	if err != nil {
		return block("load_context", stepStart, StatusPlanBlocked, fmt.Sprintf("failed to build failure context: %v", err))
	}
	run.Context = bundle
	run.RCA = o.RCAEngine.Analyze(bundle)
	record("load_context", stepStart, "")

	// Step 2: select_adapter.
	stepStart = time.Now()
	selection := o.Adapters.SelectAdapter(bundle.LogContent, changedFilenames(bundle))
	if selection == nil {
		return block("select_adapter", stepStart, StatusPlanBlocked, "no adapter matched this failure")
	}
	run.AdapterName = selection.Adapter.Name()
	run.Detection = selection.Detection
	run.Status = StatusAdapterSelected
	record("select_adapter", stepStart, run.AdapterName)

	// Step 3: generate_plan, scoped to the adapter's allowed set.
	stepStart = time.Now()
	planReq := plan.Request{
		LogText:           bundle.LogContent,
		Category:          selection.Detection.Category,
		RootCause:         run.RCA.PrimaryHypothesis.Description,
		Confidence:        selection.Detection.Confidence,
		AllowedFixTypes:   selection.Adapter.AllowedFixTypes(),
		AllowedCategories: selection.Adapter.AllowedCategories(),
		AffectedFiles:     affectedFilenames(run.RCA),
	}
	fixPlan, err := o.PlanGenerator.Generate(ctx, planReq)
	plannerApproved := err == nil && planIsSubset(fixPlan, selection.Adapter)
	if !plannerApproved {
		reason := "plan generation failed"
		if err == nil {
			reason = "plan's operations or category fall outside the adapter's allowed set"
		}
		run.Plan = fixPlan
		return block("generate_plan", stepStart, StatusPlanBlocked, reason)
	}
	run.Plan = fixPlan
	run.Status = StatusPlanReady
	record("generate_plan", stepStart, string(fixPlan.Category))

	// Step 4: policy_engine.evaluate_plan.
	stepStart = time.Now()
	planDecision, err := o.PolicyEngine.EvaluatePlan(ctx, policy.PlanIntent{
		TargetFiles:    fixPlan.Files,
		Category:       string(fixPlan.Category),
		OperationTypes: operationTypeStrings(fixPlan),
	})
	if err != nil {
		return block("evaluate_plan", stepStart, StatusPlanBlocked, fmt.Sprintf("policy evaluation failed: %v", err))
	}
	run.PlanPolicy = planDecision
	record("evaluate_plan", stepStart, "")

	// Consensus gate, layered on top of steps 3-4 per the consensus-veto
	// invariant (spec.md:260): always evaluated once the plan and its
	// policy decision exist, before committing to cloning and patching.
	// This runs even when planDecision.Allowed is false so the rejection
	// is recorded as the consensus engine's own rejected_safety_veto
	// state rather than short-circuited here.
	stepStart = time.Now()
	criticPlan, criticAvailable := o.runCritic(ctx, planReq)
	consensusResult := o.Consensus.Decide(consensus.Request{
		PlannerPlan:     fixPlan,
		PlannerApproved: plannerApproved,
		CriticPlan:      criticPlan,
		CriticAvailable: criticAvailable,
		SafetyAllowed:   planDecision.Allowed,
		SupportedFiles:  nil,
	})
	run.Consensus = consensusResult
	if !consensusResult.Accepted() {
		return block("consensus", stepStart, StatusPlanBlocked, "consensus rejected the plan: "+consensusResult.Reason)
	}
	record("consensus", stepStart, string(consensusResult.State))

	// Step 5: clone the repo, re-run adapter selection against the full
	// file list; a different adapter supersedes the one chosen in step 2.
	stepStart = time.Now()
	checkout, err = o.Cloner.Clone(ctx, req.RepoURL, req.Branch, req.CommitSHA)
	if err != nil {
		return block("clone", stepStart, StatusPatchBlocked, fmt.Sprintf("clone failed: %v", err))
	}
	haveCheckout = true
	if resel := o.Adapters.SelectAdapter(bundle.LogContent, checkout.Files); resel != nil && resel.Adapter.Name() != run.AdapterName {
		run.AdapterName = resel.Adapter.Name()
		run.Detection = resel.Detection
		selection = resel
	}
	record("clone", stepStart, run.AdapterName)

	// Step 6: patch_generator.generate, defense-in-depth file check.
	stepStart = time.Now()
	patchOut, err := patch.Generate(checkout.FS, fixPlan)
	if err != nil {
		return block("generate_patch", stepStart, StatusPatchBlocked, fmt.Sprintf("patch generation failed: %v", err))
	}
	if !touchesOnlyPlannedFiles(patchOut.DiffText, fixPlan.Files) {
		return block("generate_patch", stepStart, StatusPatchBlocked, "patch touches files outside the plan")
	}
	run.PatchDiff = patchOut.DiffText
	run.PatchStats = patchOut.Stats
	run.Status = StatusPatchReady
	record("generate_patch", stepStart, fmt.Sprintf("%d files changed", patchOut.Stats.FilesChanged))

	// Step 7: policy_engine.evaluate_patch.
	stepStart = time.Now()
	patchDecision, err := o.PolicyEngine.EvaluatePatch(ctx, run.PatchDiff)
	if err != nil {
		return block("evaluate_patch", stepStart, StatusPatchBlocked, fmt.Sprintf("policy evaluation failed: %v", err))
	}
	run.PatchPolicy = patchDecision
	if !patchDecision.Allowed {
		return block("evaluate_patch", stepStart, StatusPatchBlocked, "policy blocked the patch: "+violationSummary(patchDecision))
	}
	record("evaluate_patch", stepStart, "")

	// Step 8: dry-run patch apply ("--check"). diffutil.Parse, wrapped by
	// guardrail.Check below, is the syntax half of this; doneness here is
	// a parse-only check since there's no working tree to apply against
	// until the sandbox clones one.
	// Step 9: guardrail check.
	stepStart = time.Now()
	guardResult := guardrail.Check(run.PatchDiff, guardrail.Config{})
	if !guardResult.Passed {
		return block("guardrail", stepStart, StatusPatchBlocked, "guardrail blocked the patch: "+guardrailSummary(guardResult))
	}
	record("guardrail", stepStart, "")

	// Step 10: validator.validate.
	stepStart = time.Now()
	validation := o.Validator.Validate(ctx, sandbox.Request{
		FixID: run.ID, EventID: run.EventID, RepoURL: req.RepoURL,
		Branch: req.Branch, CommitSHA: req.CommitSHA, Diff: run.PatchDiff,
		AdapterName: run.AdapterName,
	})
	run.Validation = validation
	if validation.Status != sandbox.StatusPassed {
		return block("validate", stepStart, StatusValidationFailed, fmt.Sprintf("validation ended %s", validation.Status))
	}
	run.Status = StatusValidationPassed
	record("validate", stepStart, string(validation.Status))

	// Step 11/12: idempotent PR creation.
	stepStart = time.Now()
	if run.LastPRURL != "" || run.PRStatus == "created" {
		run.Status = StatusPRCreated
		record("create_pr", stepStart, "already created, skipped")
		return o.finish(ctx, run, timeline, checkout, haveCheckout)
	}
	prURL, err := o.PRCreator.CreatePR(ctx, PRRequest{
		RepoURL: req.RepoURL, Branch: req.Branch, CommitSHA: req.CommitSHA,
		Diff: run.PatchDiff,
		Title: fmt.Sprintf("fix: %s", run.Plan.Category),
		Body:  run.Plan.RootCause,
	})
	if err != nil {
		run.PRStatus = "failed"
		return block("create_pr", stepStart, StatusPRFailed, fmt.Sprintf("PR creation failed: %v", err))
	}
	run.LastPRURL = prURL
	run.PRStatus = "created"
	run.Status = StatusPRCreated
	record("create_pr", stepStart, prURL)

	return o.finish(ctx, run, timeline, checkout, haveCheckout)
}

// finish builds and redacts the provenance artifact, fires the
// notification hook exactly once, and cleans up the clone — the "on any
// exit path" closing paragraph of spec.md §4.10.
func (o *Orchestrator) finish(ctx context.Context, run *Run, timeline []Timeline, checkout RepoCheckout, haveCheckout bool) Outcome {
	run.UpdatedAt = time.Now()

	b := provenance.NewBuilder(run.ID, run.EventID, run.RepoURL, run.CreatedAt).
		WithAdapter(run.AdapterName).
		WithPlan(run.Plan).
		WithConsensus(run.Consensus).
		WithPolicyDecision(mergedPolicyDecision(run)).
		WithDiffStats(run.PatchStats).
		WithValidation(run.Validation).
		WithPRURL(run.LastPRURL)
	if run.RCA.PrimaryHypothesis.Description != "" {
		b.AddEvidence("rca", run.RCA.PrimaryHypothesis.Description)
	}
	for _, t := range timeline {
		b.AddTimelineEntry(t.Stage, t.Status, t.StartedAt, t.EndedAt, t.Detail)
	}
	artifact := b.Build(string(run.Status), run.UpdatedAt)

	if o.Redactor != nil {
		if redacted, err := o.Redactor.Redact(artifact); err == nil {
			artifact = redacted
		} else if o.Log != nil {
			o.Log.WithError(err).Warn("provenance: redaction failed, persisting unredacted is not allowed; dropping evidence")
			artifact.Evidence = nil
		}
	}

	if o.Notifier != nil {
		event := notification.Event{
			RunID: run.ID, RunKey: run.RunKey, RepoURL: run.RepoURL,
			Status: string(run.Status), Reason: run.BlockedReason,
			PRURL: run.LastPRURL, Timestamp: run.UpdatedAt,
		}
		if err := o.Notifier.Notify(ctx, event); err != nil && o.Log != nil {
			o.Log.WithError(err).Warn("notification: failed to deliver terminal run event")
		}
	}

	if haveCheckout && o.Cloner != nil {
		if err := o.Cloner.Cleanup(checkout); err != nil && o.Log != nil {
			o.Log.WithError(err).Warn("orchestrator: failed to clean up clone")
		}
	}

	return Outcome{Run: *run, Artifact: artifact, Timeline: timeline}
}

func (o *Orchestrator) runCritic(ctx context.Context, req plan.Request) (plan.FixPlan, bool) {
	if o.CriticGenerator == nil {
		return plan.FixPlan{}, false
	}
	criticPlan, err := o.CriticGenerator.Generate(ctx, req)
	if err != nil {
		return plan.FixPlan{}, false
	}
	return criticPlan, true
}

func mergedPolicyDecision(run *Run) policy.PolicyDecision {
	d := run.PlanPolicy
	d.Violations = append(append([]policy.Violation(nil), run.PlanPolicy.Violations...), run.PatchPolicy.Violations...)
	if run.PatchPolicy.DangerScore > d.DangerScore {
		d.DangerScore = run.PatchPolicy.DangerScore
	}
	if run.PatchPolicy.PRLabel != "" {
		d.PRLabel = run.PatchPolicy.PRLabel
	}
	return d
}

func changedFilenames(b fixcontext.Bundle) []string {
	files := make([]string, 0, len(b.ChangedFiles))
	for _, f := range b.ChangedFiles {
		files = append(files, f.Filename)
	}
	return files
}

func affectedFilenames(r rca.Result) []string {
	files := make([]string, 0, len(r.AffectedFiles))
	for _, f := range r.AffectedFiles {
		files = append(files, f.Filename)
	}
	return files
}

func operationTypeStrings(p plan.FixPlan) []string {
	seen := map[fixtypes.OperationType]bool{}
	var out []string
	for _, op := range p.Operations {
		if !seen[op.Type] {
			seen[op.Type] = true
			out = append(out, string(op.Type))
		}
	}
	return out
}

func planIsSubset(p plan.FixPlan, a adapter.Adapter) bool {
	allowedOps := map[fixtypes.OperationType]bool{}
	for _, t := range a.AllowedFixTypes() {
		allowedOps[t] = true
	}
	for _, op := range p.Operations {
		if !allowedOps[op.Type] {
			return false
		}
	}
	allowedCats := map[fixtypes.Category]bool{}
	for _, c := range a.AllowedCategories() {
		allowedCats[c] = true
	}
	return allowedCats[p.Category]
}

func touchesOnlyPlannedFiles(diffText string, plannedFiles []string) bool {
	allowed := map[string]bool{}
	for _, f := range plannedFiles {
		allowed[f] = true
	}
	parsed, err := diffutil.Parse(diffText)
	if err != nil {
		return false
	}
	for _, path := range parsed.Paths() {
		if !allowed[path] {
			return false
		}
	}
	return true
}

func violationSummary(d policy.PolicyDecision) string {
	if len(d.Violations) == 0 {
		return "blocked"
	}
	return d.Violations[0].Message
}

func guardrailSummary(r guardrail.Result) string {
	if len(r.Violations) == 0 {
		return "blocked"
	}
	return r.Violations[0].Message
}
