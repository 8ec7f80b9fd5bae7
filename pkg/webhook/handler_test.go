package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/relayci/fixpipeline/internal/config"
)

type fakeStore struct {
	stored []NormalizedPipelineEvent
	dupe   bool
}

func (f *fakeStore) StoreEvent(_ context.Context, event NormalizedPipelineEvent) (string, bool, error) {
	if f.dupe {
		return "existing-id", false, nil
	}
	f.stored = append(f.stored, event)
	return "new-id", true, nil
}

type fakeDispatcher struct{ calls int }

func (f *fakeDispatcher) Dispatch(context.Context, string, NormalizedPipelineEvent) { f.calls++ }

func newTestHandler(store EventStore, dispatcher Dispatcher) *Handler {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	providers := map[Provider]config.ProviderAuthConfig{
		ProviderGitHub: {Secret: "shh"},
	}
	return NewHandler(providers, store, dispatcher, log)
}

func githubSignature(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestHandler_AcceptsValidFailureEvent(t *testing.T) {
	body := []byte(`{
		"action": "completed",
		"workflow_job": {"id": 1, "run_id": "1", "conclusion": "failure", "head_sha": "abc", "head_branch": "main", "name": "build"},
		"repository": {"full_name": "acme/demo"}
	}`)
	store := &fakeStore{}
	dispatcher := &fakeDispatcher{}
	h := newTestHandler(store, dispatcher)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", strings.NewReader(string(body)))
	req.Header.Set("X-Hub-Signature-256", githubSignature([]byte("shh"), body))
	rec := httptest.NewRecorder()

	h.Router("/webhooks").ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202; body=%s", rec.Code, rec.Body.String())
	}
	if len(store.stored) != 1 {
		t.Fatalf("expected one event stored, got %d", len(store.stored))
	}
	if dispatcher.calls != 1 {
		t.Fatalf("expected dispatcher called once, got %d", dispatcher.calls)
	}
}

func TestHandler_RejectsBadSignature(t *testing.T) {
	body := []byte(`{"action":"completed"}`)
	h := newTestHandler(&fakeStore{}, &fakeDispatcher{})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", strings.NewReader(string(body)))
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	rec := httptest.NewRecorder()

	h.Router("/webhooks").ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestHandler_IgnoresNonFailureEvent(t *testing.T) {
	body := []byte(`{
		"action": "completed",
		"workflow_job": {"conclusion": "success"},
		"repository": {"full_name": "acme/demo"}
	}`)
	h := newTestHandler(&fakeStore{}, &fakeDispatcher{})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", strings.NewReader(string(body)))
	req.Header.Set("X-Hub-Signature-256", githubSignature([]byte("shh"), body))
	rec := httptest.NewRecorder()

	h.Router("/webhooks").ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHandler_DuplicateEventIsIgnored(t *testing.T) {
	body := []byte(`{
		"action": "completed",
		"workflow_job": {"id": 1, "run_id": "1", "conclusion": "failure", "head_sha": "abc", "head_branch": "main", "name": "build"},
		"repository": {"full_name": "acme/demo"}
	}`)
	store := &fakeStore{dupe: true}
	dispatcher := &fakeDispatcher{}
	h := newTestHandler(store, dispatcher)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", strings.NewReader(string(body)))
	req.Header.Set("X-Hub-Signature-256", githubSignature([]byte("shh"), body))
	rec := httptest.NewRecorder()

	h.Router("/webhooks").ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Duplicate event") {
		t.Fatalf("expected duplicate-event message, got %s", rec.Body.String())
	}
	if dispatcher.calls != 0 {
		t.Fatalf("expected dispatcher not called for a duplicate, got %d calls", dispatcher.calls)
	}
}

func TestHandler_UnconfiguredProviderIsUnauthorized(t *testing.T) {
	h := newTestHandler(&fakeStore{}, &fakeDispatcher{})
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gitlab", strings.NewReader("{}"))
	rec := httptest.NewRecorder()

	h.Router("/webhooks").ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
