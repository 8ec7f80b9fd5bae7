// Package runstore is the FixPipelineRun repository (spec.md §3/§6): a
// fix_pipeline_runs relation keyed by id with a secondary index on
// event_id and run_key, the latter used to reload a run's last-known
// state so pkg/orchestrator's idempotent PR-creation check (Request.Prior)
// survives a process restart or a retried attempt.
package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/relayci/fixpipeline/pkg/orchestrator"
	"github.com/relayci/fixpipeline/pkg/provenance"
)

// row is the sqlx scan target for fix_pipeline_runs; the JSON-blob
// columns are stored as raw bytes and (un)marshaled at the Store boundary
// so orchestrator.Run itself never needs struct tags for SQL.
type row struct {
	ID              string         `db:"id"`
	EventID         string         `db:"event_id"`
	RunKey          string         `db:"run_key"`
	RepoURL         string         `db:"repo_url"`
	Branch          string         `db:"branch"`
	CommitSHA       string         `db:"commit_sha"`
	Status          string         `db:"status"`
	AttemptCount    int            `db:"attempt_count"`
	BlockedReason   string         `db:"blocked_reason"`
	AdapterName     string         `db:"adapter_name"`
	DetectionJSON   sql.NullString `db:"detection_json"`
	ContextJSON     sql.NullString `db:"context_json"`
	RCAJSON         sql.NullString `db:"rca_json"`
	PlanJSON        sql.NullString `db:"plan_json"`
	PlanPolicyJSON  sql.NullString `db:"plan_policy_json"`
	ConsensusJSON   sql.NullString `db:"consensus_json"`
	PatchDiff       string         `db:"patch_diff"`
	PatchStatsJSON  sql.NullString `db:"patch_stats_json"`
	PatchPolicyJSON sql.NullString `db:"patch_policy_json"`
	ValidationJSON  sql.NullString `db:"validation_json"`
	LastPRURL       string         `db:"last_pr_url"`
	PRStatus        string         `db:"pr_status"`
}

// Store is the Postgres-backed FixPipelineRun repository.
type Store struct {
	db  *sqlx.DB
	log *zap.Logger
}

// NewStore builds a Store over an already-opened *sqlx.DB (pgx stdlib
// driver).
func NewStore(db *sqlx.DB, log *zap.Logger) *Store {
	return &Store{db: db, log: log}
}

// Save upserts run by id, the way the orchestrator persists state before
// every observable side effect per spec.md §3's FixPipelineRun invariant.
func (s *Store) Save(ctx context.Context, run orchestrator.Run) error {
	r, err := toRow(run)
	if err != nil {
		return fmt.Errorf("runstore: marshal run: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO fix_pipeline_runs (
			id, event_id, run_key, repo_url, branch, commit_sha, status, attempt_count,
			blocked_reason, adapter_name, detection_json, context_json, rca_json, plan_json,
			plan_policy_json, consensus_json, patch_diff, patch_stats_json, patch_policy_json,
			validation_json, last_pr_url, pr_status, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, now()
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			attempt_count = EXCLUDED.attempt_count,
			blocked_reason = EXCLUDED.blocked_reason,
			adapter_name = EXCLUDED.adapter_name,
			detection_json = EXCLUDED.detection_json,
			context_json = EXCLUDED.context_json,
			rca_json = EXCLUDED.rca_json,
			plan_json = EXCLUDED.plan_json,
			plan_policy_json = EXCLUDED.plan_policy_json,
			consensus_json = EXCLUDED.consensus_json,
			patch_diff = EXCLUDED.patch_diff,
			patch_stats_json = EXCLUDED.patch_stats_json,
			patch_policy_json = EXCLUDED.patch_policy_json,
			validation_json = EXCLUDED.validation_json,
			last_pr_url = EXCLUDED.last_pr_url,
			pr_status = EXCLUDED.pr_status,
			updated_at = now()
	`,
		r.ID, r.EventID, r.RunKey, r.RepoURL, r.Branch, r.CommitSHA, r.Status, r.AttemptCount,
		r.BlockedReason, r.AdapterName, r.DetectionJSON, r.ContextJSON, r.RCAJSON, r.PlanJSON,
		r.PlanPolicyJSON, r.ConsensusJSON, r.PatchDiff, r.PatchStatsJSON, r.PatchPolicyJSON,
		r.ValidationJSON, r.LastPRURL, r.PRStatus,
	)
	if err != nil {
		return fmt.Errorf("runstore: upsert run: %w", err)
	}
	return nil
}

// GetByRunKey loads the most recently persisted run for run_key, or
// found=false if none exists yet.
func (s *Store) GetByRunKey(ctx context.Context, runKey string) (run orchestrator.Run, found bool, err error) {
	var r row
	err = s.db.GetContext(ctx, &r, `
		SELECT id, event_id, run_key, repo_url, branch, commit_sha, status, attempt_count,
			blocked_reason, adapter_name, detection_json, context_json, rca_json, plan_json,
			plan_policy_json, consensus_json, patch_diff, patch_stats_json, patch_policy_json,
			validation_json, last_pr_url, pr_status
		FROM fix_pipeline_runs WHERE run_key = $1 ORDER BY updated_at DESC LIMIT 1
	`, runKey)
	if err == sql.ErrNoRows {
		return orchestrator.Run{}, false, nil
	}
	if err != nil {
		return orchestrator.Run{}, false, fmt.Errorf("runstore: get by run_key: %w", err)
	}

	run, err = r.toRun()
	if err != nil {
		return orchestrator.Run{}, false, fmt.Errorf("runstore: unmarshal run: %w", err)
	}
	return run, true, nil
}

// GetByID loads the run persisted under id, or found=false if none exists.
func (s *Store) GetByID(ctx context.Context, runID string) (run orchestrator.Run, found bool, err error) {
	var r row
	err = s.db.GetContext(ctx, &r, `
		SELECT id, event_id, run_key, repo_url, branch, commit_sha, status, attempt_count,
			blocked_reason, adapter_name, detection_json, context_json, rca_json, plan_json,
			plan_policy_json, consensus_json, patch_diff, patch_stats_json, patch_policy_json,
			validation_json, last_pr_url, pr_status
		FROM fix_pipeline_runs WHERE id = $1
	`, runID)
	if err == sql.ErrNoRows {
		return orchestrator.Run{}, false, nil
	}
	if err != nil {
		return orchestrator.Run{}, false, fmt.Errorf("runstore: get by id: %w", err)
	}

	run, err = r.toRun()
	if err != nil {
		return orchestrator.Run{}, false, fmt.Errorf("runstore: unmarshal run: %w", err)
	}
	return run, true, nil
}

// SaveArtifact persists a run's redacted provenance artifact alongside its
// row, queried later by cmd/fixpipeline-cli.
func (s *Store) SaveArtifact(ctx context.Context, runID string, artifact provenance.Artifact) error {
	b, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("runstore: marshal artifact: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE fix_pipeline_runs SET provenance_json = $1 WHERE id = $2`, string(b), runID)
	if err != nil {
		return fmt.Errorf("runstore: save artifact: %w", err)
	}
	return nil
}

// GetArtifact loads the provenance artifact saved for runID, or
// found=false if the run has none yet (e.g. it failed before reaching
// Orchestrator.Execute's finish step).
func (s *Store) GetArtifact(ctx context.Context, runID string) (artifact provenance.Artifact, found bool, err error) {
	var doc sql.NullString
	err = s.db.GetContext(ctx, &doc, `SELECT provenance_json FROM fix_pipeline_runs WHERE id = $1`, runID)
	if err == sql.ErrNoRows {
		return provenance.Artifact{}, false, nil
	}
	if err != nil {
		return provenance.Artifact{}, false, fmt.Errorf("runstore: get artifact: %w", err)
	}
	if !doc.Valid || doc.String == "" {
		return provenance.Artifact{}, false, nil
	}
	if err := json.Unmarshal([]byte(doc.String), &artifact); err != nil {
		return provenance.Artifact{}, false, fmt.Errorf("runstore: unmarshal artifact: %w", err)
	}
	return artifact, true, nil
}

func toRow(run orchestrator.Run) (row, error) {
	marshal := func(v any) (sql.NullString, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return sql.NullString{}, err
		}
		return sql.NullString{String: string(b), Valid: true}, nil
	}

	detectionJSON, err := marshal(run.Detection)
	if err != nil {
		return row{}, err
	}
	contextJSON, err := marshal(run.Context)
	if err != nil {
		return row{}, err
	}
	rcaJSON, err := marshal(run.RCA)
	if err != nil {
		return row{}, err
	}
	planJSON, err := marshal(run.Plan)
	if err != nil {
		return row{}, err
	}
	planPolicyJSON, err := marshal(run.PlanPolicy)
	if err != nil {
		return row{}, err
	}
	consensusJSON, err := marshal(run.Consensus)
	if err != nil {
		return row{}, err
	}
	patchStatsJSON, err := marshal(run.PatchStats)
	if err != nil {
		return row{}, err
	}
	patchPolicyJSON, err := marshal(run.PatchPolicy)
	if err != nil {
		return row{}, err
	}
	validationJSON, err := marshal(run.Validation)
	if err != nil {
		return row{}, err
	}

	return row{
		ID:              run.ID,
		EventID:         run.EventID,
		RunKey:          run.RunKey,
		RepoURL:         run.RepoURL,
		Branch:          run.Branch,
		CommitSHA:       run.CommitSHA,
		Status:          string(run.Status),
		AttemptCount:    run.AttemptCount,
		BlockedReason:   run.BlockedReason,
		AdapterName:     run.AdapterName,
		DetectionJSON:   detectionJSON,
		ContextJSON:     contextJSON,
		RCAJSON:         rcaJSON,
		PlanJSON:        planJSON,
		PlanPolicyJSON:  planPolicyJSON,
		ConsensusJSON:   consensusJSON,
		PatchDiff:       run.PatchDiff,
		PatchStatsJSON:  patchStatsJSON,
		PatchPolicyJSON: patchPolicyJSON,
		ValidationJSON:  validationJSON,
		LastPRURL:       run.LastPRURL,
		PRStatus:        run.PRStatus,
	}, nil
}

func (r row) toRun() (orchestrator.Run, error) {
	run := orchestrator.Run{
		ID:            r.ID,
		EventID:       r.EventID,
		RunKey:        r.RunKey,
		RepoURL:       r.RepoURL,
		Branch:        r.Branch,
		CommitSHA:     r.CommitSHA,
		Status:        orchestrator.Status(r.Status),
		AttemptCount:  r.AttemptCount,
		BlockedReason: r.BlockedReason,
		AdapterName:   r.AdapterName,
		PatchDiff:     r.PatchDiff,
		LastPRURL:     r.LastPRURL,
		PRStatus:      r.PRStatus,
	}

	unmarshal := func(ns sql.NullString, dst any) error {
		if !ns.Valid || ns.String == "" {
			return nil
		}
		return json.Unmarshal([]byte(ns.String), dst)
	}

	if err := unmarshal(r.DetectionJSON, &run.Detection); err != nil {
		return orchestrator.Run{}, err
	}
	if err := unmarshal(r.ContextJSON, &run.Context); err != nil {
		return orchestrator.Run{}, err
	}
	if err := unmarshal(r.RCAJSON, &run.RCA); err != nil {
		return orchestrator.Run{}, err
	}
	if err := unmarshal(r.PlanJSON, &run.Plan); err != nil {
		return orchestrator.Run{}, err
	}
	if err := unmarshal(r.PlanPolicyJSON, &run.PlanPolicy); err != nil {
		return orchestrator.Run{}, err
	}
	if err := unmarshal(r.ConsensusJSON, &run.Consensus); err != nil {
		return orchestrator.Run{}, err
	}
	if err := unmarshal(r.PatchStatsJSON, &run.PatchStats); err != nil {
		return orchestrator.Run{}, err
	}
	if err := unmarshal(r.PatchPolicyJSON, &run.PatchPolicy); err != nil {
		return orchestrator.Run{}, err
	}
	if err := unmarshal(r.ValidationJSON, &run.Validation); err != nil {
		return orchestrator.Run{}, err
	}
	return run, nil
}
