// Package eventstore is the idempotent PipelineEvent store (spec.md §6):
// a pipeline_events relation keyed by a unique idempotency_key, so a
// redelivered webhook resolves to the existing row instead of a second
// insert.
package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relayci/fixpipeline/pkg/webhook"
)

// Status is a PipelineEvent's lifecycle state (spec.md §3: "status
// monotonically advances; never deleted by the core").
type Status string

const (
	StatusPending    Status = "pending"
	StatusDispatched Status = "dispatched"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Store is the Postgres-backed PipelineEvent repository, following the
// teacher's own repository shape (*sql.DB + zap.Logger, one struct per
// relation) from pkg/datastorage/repository.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// NewStore builds a Store over an already-opened *sql.DB (pgx stdlib
// driver).
func NewStore(db *sql.DB, log *zap.Logger) *Store {
	return &Store{db: db, log: log}
}

// StoreEvent inserts event idempotently. If idempotency_key already
// exists, the existing row's id is returned with isNew=false and the
// event is not reprocessed, per spec.md §3's PipelineEvent invariant.
func (s *Store) StoreEvent(ctx context.Context, event webhook.NormalizedPipelineEvent) (eventID string, isNew bool, err error) {
	rawPayload, err := json.Marshal(event.RawPayload)
	if err != nil {
		return "", false, fmt.Errorf("eventstore: marshal raw_payload: %w", err)
	}

	id := uuid.NewString()
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO pipeline_events (
			id, idempotency_key, provider, pipeline_id, repo, commit_sha, branch,
			stage, failure_type, error_message, status, raw_payload, correlation_id, event_timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING id
	`,
		id, event.IdempotencyKey, string(event.Provider), event.PipelineID, event.Repo, event.CommitSHA, event.Branch,
		event.Stage, event.FailureType, event.ErrorMessage, string(StatusPending), rawPayload, event.CorrelationID, event.EventTimestamp,
	)

	var insertedID string
	switch scanErr := row.Scan(&insertedID); scanErr {
	case nil:
		return insertedID, true, nil
	case sql.ErrNoRows:
		existingID, err := s.idByIdempotencyKey(ctx, event.IdempotencyKey)
		if err != nil {
			return "", false, err
		}
		return existingID, false, nil
	default:
		return "", false, fmt.Errorf("eventstore: insert pipeline_event: %w", scanErr)
	}
}

func (s *Store) idByIdempotencyKey(ctx context.Context, key string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM pipeline_events WHERE idempotency_key = $1`, key).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("eventstore: lookup existing event: %w", err)
	}
	return id, nil
}

// UpdateStatus advances an event's lifecycle status.
func (s *Store) UpdateStatus(ctx context.Context, eventID string, status Status) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pipeline_events SET status = $1, updated_at = now() WHERE id = $2
	`, string(status), eventID)
	if err != nil {
		return fmt.Errorf("eventstore: update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("eventstore: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("eventstore: no event with id %s", eventID)
	}
	return nil
}
