package eventstore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/relayci/fixpipeline/pkg/webhook"
)

func TestEventStore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "EventStore Suite")
}

var _ = Describe("Store", func() {
	var (
		mockDB *sql.DB
		mock   sqlmock.Sqlmock
		store  *Store
		ctx    context.Context
		event  webhook.NormalizedPipelineEvent
	)

	BeforeEach(func() {
		var err error
		mockDB, mock, err = sqlmock.New()
		Expect(err).ToNot(HaveOccurred())

		store = NewStore(mockDB, zap.NewNop())
		ctx = context.Background()

		event = webhook.NormalizedPipelineEvent{
			Provider:       webhook.ProviderGitHub,
			IdempotencyKey: "github:acme/demo:1:42",
			PipelineID:     "1",
			Repo:           "acme/demo",
			CommitSHA:      "abc123",
			Branch:         "main",
			Stage:          "build",
			FailureType:    "failure",
			ErrorMessage:   "failure",
			EventTimestamp: time.Now(),
			RawPayload:     map[string]any{"k": "v"},
			CorrelationID:  "corr-1",
		}
	})

	AfterEach(func() {
		mockDB.Close()
	})

	Describe("StoreEvent", func() {
		Context("when the idempotency key is new", func() {
			It("inserts the row and reports isNew=true", func() {
				mock.ExpectQuery(`INSERT INTO pipeline_events`).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("new-id"))

				id, isNew, err := store.StoreEvent(ctx, event)

				Expect(err).ToNot(HaveOccurred())
				Expect(isNew).To(BeTrue())
				Expect(id).To(Equal("new-id"))
				Expect(mock.ExpectationsWereMet()).To(Succeed())
			})
		})

		Context("when the idempotency key already exists", func() {
			It("falls back to a lookup and reports isNew=false", func() {
				mock.ExpectQuery(`INSERT INTO pipeline_events`).
					WillReturnError(sql.ErrNoRows)
				mock.ExpectQuery(`SELECT id FROM pipeline_events WHERE idempotency_key`).
					WithArgs(event.IdempotencyKey).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("existing-id"))

				id, isNew, err := store.StoreEvent(ctx, event)

				Expect(err).ToNot(HaveOccurred())
				Expect(isNew).To(BeFalse())
				Expect(id).To(Equal("existing-id"))
				Expect(mock.ExpectationsWereMet()).To(Succeed())
			})
		})

		Context("when the insert fails for a reason other than a conflict", func() {
			It("propagates the error", func() {
				mock.ExpectQuery(`INSERT INTO pipeline_events`).
					WillReturnError(sql.ErrConnDone)

				_, _, err := store.StoreEvent(ctx, event)

				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("UpdateStatus", func() {
		It("updates the status column", func() {
			mock.ExpectExec(`UPDATE pipeline_events SET status`).
				WithArgs(string(StatusDispatched), "event-1").
				WillReturnResult(sqlmock.NewResult(0, 1))

			err := store.UpdateStatus(ctx, "event-1", StatusDispatched)

			Expect(err).ToNot(HaveOccurred())
			Expect(mock.ExpectationsWereMet()).To(Succeed())
		})

		It("errors when no row matches the event id", func() {
			mock.ExpectExec(`UPDATE pipeline_events SET status`).
				WillReturnResult(sqlmock.NewResult(0, 0))

			err := store.UpdateStatus(ctx, "missing", StatusFailed)

			Expect(err).To(HaveOccurred())
		})
	})
})
