package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"dodolink/internal/types"
)

// SubscriptionRepo manages the subscriptions table, keyed by the provider's
// subscription id.
//
// Key invariant: Upsert is a full replace. Every column takes the incoming
// snapshot's value, including NULLs for fields the snapshot omits. Last
// write wins; there is no version tracking or partial merge.
type SubscriptionRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewSubscriptionRepo creates a SubscriptionRepo backed by the given
// database connection (pool or transaction).
func NewSubscriptionRepo(db DBTX, logger *slog.Logger) *SubscriptionRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionRepo{db: db, logger: logger}
}

// Upsert writes the full subscription snapshot, replacing any existing row
// with the same dodo_subscription_id.
func (r *SubscriptionRepo) Upsert(ctx context.Context, sub *types.Subscription) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO subscriptions (
		     dodo_subscription_id, dodo_customer_id, product_id, status,
		     billing_currency, current_period_start, current_period_end,
		     next_billing_date, updated_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (dodo_subscription_id) DO UPDATE SET
		     dodo_customer_id     = EXCLUDED.dodo_customer_id,
		     product_id           = EXCLUDED.product_id,
		     status               = EXCLUDED.status,
		     billing_currency     = EXCLUDED.billing_currency,
		     current_period_start = EXCLUDED.current_period_start,
		     current_period_end   = EXCLUDED.current_period_end,
		     next_billing_date    = EXCLUDED.next_billing_date,
		     updated_at           = EXCLUDED.updated_at`,
		sub.DodoSubscriptionID,
		sub.DodoCustomerID,
		sub.ProductID,
		sub.Status,
		sub.BillingCurrency,
		sub.CurrentPeriodStart,
		sub.CurrentPeriodEnd,
		sub.NextBillingDate,
		sub.UpdatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert subscription", err)
	}
	return nil
}

// Get fetches a subscription by provider subscription id. Returns (nil, nil)
// when no row exists.
func (r *SubscriptionRepo) Get(ctx context.Context, subscriptionID string) (*types.Subscription, error) {
	var sub types.Subscription
	err := r.db.QueryRow(ctx,
		`SELECT dodo_subscription_id, dodo_customer_id, product_id, status,
		        billing_currency, current_period_start, current_period_end,
		        next_billing_date, updated_at
		 FROM subscriptions
		 WHERE dodo_subscription_id = $1`,
		subscriptionID,
	).Scan(
		&sub.DodoSubscriptionID,
		&sub.DodoCustomerID,
		&sub.ProductID,
		&sub.Status,
		&sub.BillingCurrency,
		&sub.CurrentPeriodStart,
		&sub.CurrentPeriodEnd,
		&sub.NextBillingDate,
		&sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to fetch subscription", err)
	}
	return &sub, nil
}
