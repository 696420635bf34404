package billing

import (
	"context"
	"log/slog"
	"time"

	"dodolink/internal/external"
	"dodolink/internal/types"
)

// Source identifies where a subscription state snapshot came from. The
// "active" status default applies only to creation responses; webhook events
// that omit status are stored as-is.
type Source string

const (
	SourceCreation Source = "creation"
	SourceWebhook  Source = "webhook"
)

// statusDefaultOnCreation is applied when a creation response omits status.
const statusDefaultOnCreation = "active"

// SubscriptionUpserter persists a full subscription snapshot, replacing any
// existing row with the same provider subscription id.
type SubscriptionUpserter interface {
	Upsert(ctx context.Context, sub *types.Subscription) error
}

// SubscriptionState is a provider-side snapshot of one subscription,
// decoupled from where it was observed (creation response or webhook event).
type SubscriptionState struct {
	SubscriptionID     string
	CustomerID         string
	ProductID          string
	Status             string
	BillingCurrency    *string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	NextBillingDate    *time.Time
}

// StateFromCheckout builds a SubscriptionState from a subscription-creation
// response. The request's customer and product ids fill in when the response
// omits them.
func StateFromCheckout(checkout *external.SubscriptionCheckout, requestCustomerID, requestProductID string) SubscriptionState {
	state := SubscriptionState{
		SubscriptionID:     checkout.SubscriptionID,
		CustomerID:         requestCustomerID,
		ProductID:          requestProductID,
		Status:             checkout.Status,
		CurrentPeriodStart: checkout.CurrentPeriodStart.Ptr(),
		CurrentPeriodEnd:   checkout.CurrentPeriodEnd.Ptr(),
		NextBillingDate:    checkout.NextBillingDate.Ptr(),
	}
	if checkout.Customer != nil && checkout.Customer.CustomerID != "" {
		state.CustomerID = checkout.Customer.CustomerID
	}
	if checkout.ProductID != "" {
		state.ProductID = checkout.ProductID
	}
	if checkout.BillingCurrency != "" {
		currency := checkout.BillingCurrency
		state.BillingCurrency = &currency
	}
	return state
}

// StateFromEvent builds a SubscriptionState from a normalized webhook event.
// The second return is false when the event carries no subscription id, in
// which case there is nothing to reconcile.
func StateFromEvent(ev NormalizedEvent) (SubscriptionState, bool) {
	if ev.SubscriptionID == nil {
		return SubscriptionState{}, false
	}

	state := SubscriptionState{
		SubscriptionID:     *ev.SubscriptionID,
		BillingCurrency:    ev.BillingCurrency,
		CurrentPeriodStart: ev.CurrentPeriodStart,
		CurrentPeriodEnd:   ev.CurrentPeriodEnd,
		NextBillingDate:    ev.NextBillingDate,
	}
	if ev.CustomerID != nil {
		state.CustomerID = *ev.CustomerID
	}
	if ev.ProductID != nil {
		state.ProductID = *ev.ProductID
	}
	if ev.Status != nil {
		state.Status = *ev.Status
	}
	return state, true
}

// Reconciler converges the local subscriptions table with provider-side
// state via full-replace upsert. Last write wins; there is no version or
// ordering check across deliveries.
type Reconciler struct {
	subs   SubscriptionUpserter
	logger *slog.Logger
	now    func() time.Time
}

// NewReconciler creates a Reconciler. A nil logger falls back to slog.Default.
func NewReconciler(subs SubscriptionUpserter, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		subs:   subs,
		logger: logger,
		now:    time.Now,
	}
}

// Reconcile upserts the snapshot into the subscriptions table. Every column
// is replaced with the snapshot's value; fields absent from the snapshot
// overwrite with NULL rather than being preserved.
func (r *Reconciler) Reconcile(ctx context.Context, state SubscriptionState, source Source) error {
	if state.SubscriptionID == "" {
		return types.NewAppError(
			types.ErrCodeValidationMissingField,
			"subscription state has no subscription id",
			nil,
		)
	}

	status := state.Status
	if status == "" && source == SourceCreation {
		status = statusDefaultOnCreation
	}

	sub := &types.Subscription{
		DodoSubscriptionID: state.SubscriptionID,
		DodoCustomerID:     state.CustomerID,
		ProductID:          state.ProductID,
		Status:             status,
		BillingCurrency:    state.BillingCurrency,
		CurrentPeriodStart: state.CurrentPeriodStart,
		CurrentPeriodEnd:   state.CurrentPeriodEnd,
		NextBillingDate:    state.NextBillingDate,
		UpdatedAt:          r.now().UTC(),
	}

	if err := r.subs.Upsert(ctx, sub); err != nil {
		r.logger.Error("subscription reconcile failed",
			slog.String("subscription_id", state.SubscriptionID),
			slog.String("source", string(source)),
			slog.Any("error", err),
		)
		return err
	}

	r.logger.Info("subscription reconciled",
		slog.String("subscription_id", state.SubscriptionID),
		slog.String("status", status),
		slog.String("source", string(source)),
	)
	return nil
}
