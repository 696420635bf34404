package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"dodolink/internal/billing"
	"dodolink/internal/external"
	"dodolink/internal/types"
)

// maxWebhookBodySize caps webhook payloads at 256 KB. Provider events are
// small; the limit protects the audit log from abuse.
const maxWebhookBodySize = 256 * 1024

// Webhook response bodies are part of the provider-facing contract and are
// written verbatim. The provider retries on non-2xx, so the split between
// 400 (unverifiable, do not retry into the audit log) and 500 (storage
// failed, retry welcome) matters.
const (
	webhookBodyOK          = `{"received":true,"stored":true}`
	webhookBodyStoreFailed = `{"error":"Failed to store event"}`
	webhookBodyFailed      = `{"error":"Webhook handler failed"}`
)

// EventAppender writes one audit row per verified delivery.
type EventAppender interface {
	Append(ctx context.Context, event *types.SubscriptionEvent) error
}

// WebhookHandler receives payment-provider lifecycle events. It is not
// behind any auth middleware; security is the Standard Webhooks signature
// over the raw body.
type WebhookHandler struct {
	verifier   external.WebhookVerifier
	events     EventAppender
	reconciler SubscriptionReconciler
	logger     *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler with the provided dependencies.
func NewWebhookHandler(
	verifier external.WebhookVerifier,
	events EventAppender,
	reconciler SubscriptionReconciler,
	l *slog.Logger,
) *WebhookHandler {
	if l == nil {
		l = slog.Default()
	}
	return &WebhookHandler{
		verifier:   verifier,
		events:     events,
		reconciler: reconciler,
		logger:     l,
	}
}

// RegisterRoutes mounts the webhook endpoint.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhook", h.Handle)
}

// Handle processes POST /api/webhook.
//
// Flow:
//  1. Read the raw body. Verification always runs over the exact received
//     bytes, never over a re-serialization.
//  2. Verify the Standard Webhooks signature headers. Any failure answers
//     the generic 400 body; which check failed is logged, not leaked.
//  3. Normalize the payload (total, never fails) and append the audit row.
//     A storage failure is the only path to 500.
//  4. For subscription lifecycle events carrying a subscription id, mirror
//     the state into the subscriptions table. This step cannot change the
//     HTTP outcome: the audit row is already durable, and the provider
//     redelivering because of a mirror failure would only duplicate it.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to read webhook body",
			slog.Any("error", err),
		)
		writeWebhookBody(w, http.StatusBadRequest, webhookBodyFailed)
		return
	}

	if err := h.verifier.Verify(payload, r.Header); err != nil {
		h.logger.WarnContext(r.Context(), "webhook signature verification failed",
			slog.Any("error", err),
		)
		writeWebhookBody(w, http.StatusBadRequest, webhookBodyFailed)
		return
	}

	ev := billing.NormalizeEvent(payload)

	event := &types.SubscriptionEvent{
		EventType:      ev.EventType,
		Payload:        ev.Raw,
		SubscriptionID: ev.SubscriptionID,
		ProductID:      ev.ProductID,
		CustomerID:     ev.CustomerID,
	}
	if err := h.events.Append(r.Context(), event); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to store webhook event",
			slog.String("event_type", ev.EventType),
			slog.Any("error", err),
		)
		writeWebhookBody(w, http.StatusInternalServerError, webhookBodyStoreFailed)
		return
	}

	h.reconcileFromEvent(r.Context(), ev)

	writeWebhookBody(w, http.StatusOK, webhookBodyOK)
}

// reconcileFromEvent mirrors subscription state for subscription lifecycle
// events. Failures are logged only; see Handle step 4.
func (h *WebhookHandler) reconcileFromEvent(ctx context.Context, ev billing.NormalizedEvent) {
	if !strings.HasPrefix(ev.EventType, "subscription.") {
		return
	}
	state, ok := billing.StateFromEvent(ev)
	if !ok {
		h.logger.WarnContext(ctx, "subscription event without subscription id",
			slog.String("event_type", ev.EventType),
		)
		return
	}

	if err := h.reconciler.Reconcile(ctx, state, billing.SourceWebhook); err != nil {
		h.logger.ErrorContext(ctx, "subscription mirror from webhook failed",
			slog.String("subscription_id", state.SubscriptionID),
			slog.String("event_type", ev.EventType),
			slog.Any("error", err),
		)
	}
}

// writeWebhookBody writes one of the fixed webhook response bodies.
func writeWebhookBody(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
