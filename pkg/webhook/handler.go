package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/relayci/fixpipeline/internal/config"
)

// EventStore is the narrow persistence contract the handler needs: store
// an event idempotently and report whether it was newly inserted.
// pkg/eventstore provides the Postgres-backed implementation.
type EventStore interface {
	StoreEvent(ctx context.Context, event NormalizedPipelineEvent) (eventID string, isNew bool, err error)
}

// Dispatcher is notified of every newly-stored, non-duplicate event so it
// can kick off orchestration; the handler never blocks on it (spec.md §6:
// "the webhook response never waits for pipeline completion").
type Dispatcher interface {
	Dispatch(ctx context.Context, eventID string, event NormalizedPipelineEvent)
}

// Handler wires provider verification, normalization, and idempotent
// storage into one chi router.
type Handler struct {
	providers  map[Provider]config.ProviderAuthConfig
	store      EventStore
	dispatcher Dispatcher
	validate   *validator.Validate
	log        *logrus.Logger
}

// NewHandler builds a Handler. providers maps each supported Provider to
// its configured shared secret (internal/config.WebhookConfig.Providers,
// keyed by provider name).
func NewHandler(providers map[Provider]config.ProviderAuthConfig, store EventStore, dispatcher Dispatcher, log *logrus.Logger) *Handler {
	return &Handler{
		providers:  providers,
		store:      store,
		dispatcher: dispatcher,
		validate:   validator.New(),
		log:        log,
	}
}

// Router mounts one POST endpoint per provider under the configured path
// prefix, plus permissive CORS for the (out-of-scope) dashboard origin.
func (h *Handler) Router(pathPrefix string) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{http.MethodPost},
	}))

	for _, p := range []Provider{ProviderGitHub, ProviderGitLab, ProviderCircleCI, ProviderJenkins, ProviderAzureDevOps} {
		provider := p
		r.Post(pathPrefix+"/"+string(provider), h.handleProvider(provider))
	}
	return r
}

func (h *Handler) handleProvider(provider Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		correlationID := uuid.NewString()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, Response{Status: "error", Message: "failed to read body", CorrelationID: correlationID})
			return
		}

		auth, configured := h.providers[provider]
		if !configured {
			h.writeJSON(w, http.StatusUnauthorized, Response{Status: "error", Message: "provider not configured", CorrelationID: correlationID})
			return
		}
		if err := h.verify(provider, auth.Secret, body, r.Header); err != nil {
			h.log.WithField("provider", provider).Warn("webhook: signature verification failed")
			h.writeJSON(w, http.StatusUnauthorized, Response{Status: "error", Message: "invalid signature", CorrelationID: correlationID})
			return
		}

		normalizer, found := NormalizerFor(provider)
		if !found {
			h.writeJSON(w, http.StatusBadRequest, Response{Status: "error", Message: "unsupported provider", CorrelationID: correlationID})
			return
		}
		event, ok, err := normalizer.Normalize(body, correlationID)
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, Response{Status: "error", Message: err.Error(), CorrelationID: correlationID})
			return
		}
		if !ok {
			h.writeJSON(w, http.StatusOK, Response{Status: "ignored", Message: "event is not a pipeline failure", CorrelationID: correlationID})
			return
		}

		if err := h.validate.Struct(event); err != nil {
			h.writeJSON(w, http.StatusBadRequest, Response{Status: "error", Message: "invalid normalized event: " + err.Error(), CorrelationID: correlationID})
			return
		}

		eventID, isNew, err := h.store.StoreEvent(r.Context(), event)
		if err != nil {
			h.log.WithError(err).Error("webhook: failed to store event")
			w.Header().Set("Retry-After", "60")
			h.writeJSON(w, http.StatusServiceUnavailable, Response{Status: "error", Message: "storage temporarily unavailable", CorrelationID: correlationID})
			return
		}
		if !isNew {
			h.writeJSON(w, http.StatusOK, Response{Status: "ignored", Message: "Duplicate event", EventID: eventID, CorrelationID: correlationID})
			return
		}

		if h.dispatcher != nil {
			h.dispatcher.Dispatch(r.Context(), eventID, event)
		}
		h.writeJSON(w, http.StatusAccepted, Response{Status: "accepted", Message: "Event accepted and queued for processing", EventID: eventID, CorrelationID: correlationID})
	}
}

func (h *Handler) verify(provider Provider, secret string, body []byte, header http.Header) error {
	switch provider {
	case ProviderGitHub:
		return VerifyGitHub([]byte(secret), body, header.Get("X-Hub-Signature-256"))
	case ProviderGitLab:
		return VerifyGitLab(secret, header.Get("X-Gitlab-Token"))
	case ProviderCircleCI:
		return VerifyCircleCI([]byte(secret), body, header.Get("circleci-signature"))
	case ProviderJenkins:
		return VerifyJenkins(secret, header.Get("X-Jenkins-Token"), header.Get("Authorization"))
	case ProviderAzureDevOps:
		return VerifyAzureDevOps(secret, header.Get("Authorization"))
	default:
		return errors.New("webhook: unknown provider")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
