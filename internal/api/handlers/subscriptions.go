package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dodolink/internal/billing"
	"dodolink/internal/core"
	"dodolink/internal/external"
	"dodolink/internal/types"
)

// SubscriptionReconciler persists a provider-side subscription snapshot.
type SubscriptionReconciler interface {
	Reconcile(ctx context.Context, state billing.SubscriptionState, source billing.Source) error
}

// CreateSubscriptionClientRequest is the request body for POST
// /api/subscriptions. Exactly one of DodoCustomerID and SupabaseUserID must
// identify the customer; Billing is forwarded to the provider verbatim.
type CreateSubscriptionClientRequest struct {
	Billing        json.RawMessage `json:"billing"`
	DodoCustomerID string          `json:"dodo_customer_id"`
	SupabaseUserID string          `json:"supabase_user_id"`
	ProductID      string          `json:"product_id"`
	Quantity       int             `json:"quantity"`
}

// CreateSubscriptionResponse is the response for POST /api/subscriptions.
// The caller gets the checkout link only; the subscription id reaches the
// local mirror through the reconciler and the provider's webhooks.
type CreateSubscriptionResponse struct {
	Success bool   `json:"success"`
	Link    string `json:"link"`
}

// SubscriptionHandler creates provider subscriptions with hosted payment
// links and mirrors the resulting state locally.
type SubscriptionHandler struct {
	payments   external.PaymentsService
	customers  MappingReader
	reconciler SubscriptionReconciler
	logger     *slog.Logger
}

// NewSubscriptionHandler creates a SubscriptionHandler with the provided
// dependencies.
func NewSubscriptionHandler(
	payments external.PaymentsService,
	customers MappingReader,
	reconciler SubscriptionReconciler,
	l *slog.Logger,
) *SubscriptionHandler {
	if l == nil {
		l = slog.Default()
	}
	return &SubscriptionHandler{
		payments:   payments,
		customers:  customers,
		reconciler: reconciler,
		logger:     l,
	}
}

// RegisterRoutes mounts the subscription endpoints.
func (h *SubscriptionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/subscriptions", h.CreateSubscription)
}

// CreateSubscription handles POST /api/subscriptions.
//
// Flow:
//  1. Validate presence of billing and product_id.
//  2. Resolve the provider customer id: an explicit dodo_customer_id wins;
//     otherwise the supabase_user_id is resolved through the customers
//     mapping (404 if absent). All of this happens before any provider call.
//  3. Create the subscription with payment_link=true.
//  4. Mirror the creation response into the subscriptions table. The mirror
//     write is best-effort: the provider subscription already exists, so a
//     local failure is logged rather than reported as a request failure.
func (h *SubscriptionHandler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req CreateSubscriptionClientRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if len(req.Billing) == 0 || string(req.Billing) == "null" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"billing is required",
			nil,
		))
		return
	}
	if req.ProductID == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"product_id is required",
			nil,
		))
		return
	}

	customerID, err := h.resolveCustomerID(r.Context(), &req)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	checkout, err := h.payments.CreateSubscription(r.Context(), external.CreateSubscriptionRequest{
		Billing:     req.Billing,
		Customer:    external.CustomerRef{CustomerID: customerID},
		ProductID:   req.ProductID,
		Quantity:    quantity,
		PaymentLink: true,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	state := billing.StateFromCheckout(checkout, customerID, req.ProductID)
	if err := h.reconciler.Reconcile(r.Context(), state, billing.SourceCreation); err != nil {
		h.logger.ErrorContext(r.Context(), "subscription mirror write failed",
			slog.String("subscription_id", checkout.SubscriptionID),
			slog.Any("error", err),
		)
	}

	core.JSON(w, r, http.StatusOK, CreateSubscriptionResponse{
		Success: true,
		Link:    checkout.PaymentLink,
	})
}

// resolveCustomerID determines the provider customer id for the request
// before any outbound call is made.
func (h *SubscriptionHandler) resolveCustomerID(ctx context.Context, req *CreateSubscriptionClientRequest) (string, error) {
	if req.DodoCustomerID != "" {
		return req.DodoCustomerID, nil
	}

	if req.SupabaseUserID == "" {
		return "", types.NewAppError(
			types.ErrCodeValidationMissingField,
			"dodo_customer_id or supabase_user_id is required",
			nil,
		)
	}

	mapping, err := h.customers.Get(ctx, req.SupabaseUserID)
	if err != nil {
		return "", err
	}
	if mapping == nil || mapping.DodoCustomerID == "" {
		return "", types.NewAppError(
			types.ErrCodeNotFoundCustomerMapping,
			"Customer mapping not found",
			nil,
		)
	}

	return mapping.DodoCustomerID, nil
}
