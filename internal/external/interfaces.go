package external

import (
	"context"
	"net/http"

	"dodolink/internal/types"
)

// IdentityService abstracts the identity provider's admin and token APIs.
// Handlers depend on this interface so tests can substitute a mock without
// touching the HTTP layer.
type IdentityService interface {
	// CreateUser provisions a confirmed user with the given credentials and
	// display name. The provider assigns the user id.
	CreateUser(ctx context.Context, email, password, name string) (*types.UserAccount, error)

	// SignIn exchanges credentials for a session via the password grant.
	// A provider rejection maps to ErrCodeAuthInvalidCreds.
	SignIn(ctx context.Context, email, password string) (*types.UserAccount, *types.Session, error)

	// GetUser fetches a user record by provider-assigned id.
	GetUser(ctx context.Context, userID string) (*types.UserAccount, error)
}

// PaymentsService abstracts the payments provider's REST API.
type PaymentsService interface {
	// CreateCustomer creates a provider customer and returns its id.
	CreateCustomer(ctx context.Context, req CreateCustomerRequest) (string, error)

	// CreateProduct creates a recurring-price product.
	CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error)

	// CreateSubscription creates a subscription with a hosted payment link.
	CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*SubscriptionCheckout, error)
}

// WebhookVerifier authenticates an inbound webhook delivery. Verification
// runs over the raw request bytes before any JSON parsing.
type WebhookVerifier interface {
	Verify(body []byte, headers http.Header) error
}
