package billing

import (
	"context"
	"log/slog"

	"dodolink/internal/external"
	"dodolink/internal/types"
)

// CustomerCreator is the slice of PaymentsService the linker needs.
type CustomerCreator interface {
	CreateCustomer(ctx context.Context, req external.CreateCustomerRequest) (string, error)
}

// CustomerMappingStore persists the 1:1 user-to-customer mapping.
// Get returns (nil, nil) when no mapping exists; absence is not an error.
type CustomerMappingStore interface {
	Get(ctx context.Context, userID string) (*types.CustomerMapping, error)
	Create(ctx context.Context, mapping *types.CustomerMapping) error
}

// CustomerLinker ensures a local user has a payments-provider customer and a
// mapping row recording it. Linking is an enrichment step: its failures are
// reported through LinkResult, never by failing the caller's flow.
type CustomerLinker struct {
	payments CustomerCreator
	mappings CustomerMappingStore
	logger   *slog.Logger
}

// NewCustomerLinker creates a CustomerLinker. A nil logger falls back to
// slog.Default.
func NewCustomerLinker(payments CustomerCreator, mappings CustomerMappingStore, logger *slog.Logger) *CustomerLinker {
	if logger == nil {
		logger = slog.Default()
	}
	return &CustomerLinker{
		payments: payments,
		mappings: mappings,
		logger:   logger,
	}
}

// EnsureLink resolves or establishes the user's provider customer.
//
// Outcomes:
//   - mapping already exists: LinkStatusLinked with the recorded id.
//   - provider create fails: LinkStatusProviderFailed, no mapping written.
//   - provider create succeeds but the mapping write fails: the customer id
//     is still returned with LinkStatusMappingFailed; the orphaned provider
//     customer is left for out-of-band reconciliation.
//
// A mapping lookup error is logged and treated as absence; creating a
// duplicate provider customer is preferred over failing registration.
func (l *CustomerLinker) EnsureLink(ctx context.Context, userID, email, name string) types.LinkResult {
	existing, err := l.mappings.Get(ctx, userID)
	if err != nil {
		l.logger.Warn("customer mapping lookup failed, attempting provider create",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
	}
	if existing != nil && existing.DodoCustomerID != "" {
		return types.LinkResult{
			Status:         types.LinkStatusLinked,
			DodoCustomerID: existing.DodoCustomerID,
		}
	}

	customerID, err := l.payments.CreateCustomer(ctx, external.CreateCustomerRequest{
		Email: email,
		Name:  name,
		// The only provider-side pointer back to the local user.
		Metadata: map[string]string{"supabase_user_id": userID},
	})
	if err != nil {
		l.logger.Error("provider customer create failed",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
		return types.LinkResult{Status: types.LinkStatusProviderFailed}
	}

	mapping := &types.CustomerMapping{
		UserID:         userID,
		DodoCustomerID: customerID,
	}
	if err := l.mappings.Create(ctx, mapping); err != nil {
		l.logger.Error("customer mapping write failed",
			slog.String("user_id", userID),
			slog.String("dodo_customer_id", customerID),
			slog.Any("error", err),
		)
		return types.LinkResult{
			Status:         types.LinkStatusMappingFailed,
			DodoCustomerID: customerID,
		}
	}

	l.logger.Info("customer linked",
		slog.String("user_id", userID),
		slog.String("dodo_customer_id", customerID),
	)
	return types.LinkResult{
		Status:         types.LinkStatusLinked,
		DodoCustomerID: customerID,
	}
}
