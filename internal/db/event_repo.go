package db

import (
	"context"
	"log/slog"

	"dodolink/internal/types"
)

// EventRepo manages the append-only subscription_events audit log. One row
// per verified webhook delivery, unconditionally: there is no unique
// constraint on any webhook identifier, so redelivered events produce
// duplicate rows. Consumers needing exactly-once semantics dedupe on read.
type EventRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewEventRepo creates an EventRepo backed by the given database connection
// (pool or transaction).
func NewEventRepo(db DBTX, logger *slog.Logger) *EventRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventRepo{db: db, logger: logger}
}

// Append writes one audit row. The raw payload is stored verbatim as jsonb;
// the extracted identifiers are nullable denormalizations for querying.
func (r *EventRepo) Append(ctx context.Context, event *types.SubscriptionEvent) error {
	eventType := event.EventType
	if eventType == "" {
		eventType = "unknown"
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO subscription_events (
		     event_type, payload, subscription_id, product_id, customer_id, received_at
		 ) VALUES ($1, $2, $3, $4, $5, NOW())`,
		eventType,
		event.Payload,
		event.SubscriptionID,
		event.ProductID,
		event.CustomerID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to append subscription event", err)
	}
	return nil
}
