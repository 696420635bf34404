package handlers

import (
	"context"
	"net/http"

	"dodolink/internal/billing"
	"dodolink/internal/external"
	"dodolink/internal/types"
)

// ---------------------------------------------------------------------------
// Shared hand-rolled mocks for handler tests
// ---------------------------------------------------------------------------

// mockIdentityService implements external.IdentityService.
type mockIdentityService struct {
	createUserFn func(ctx context.Context, email, password, name string) (*types.UserAccount, error)
	signInFn     func(ctx context.Context, email, password string) (*types.UserAccount, *types.Session, error)
	getUserFn    func(ctx context.Context, userID string) (*types.UserAccount, error)

	createUserCalls int
}

func (m *mockIdentityService) CreateUser(ctx context.Context, email, password, name string) (*types.UserAccount, error) {
	m.createUserCalls++
	if m.createUserFn == nil {
		return &types.UserAccount{ID: "user_1", Email: email, Name: name}, nil
	}
	return m.createUserFn(ctx, email, password, name)
}

func (m *mockIdentityService) SignIn(ctx context.Context, email, password string) (*types.UserAccount, *types.Session, error) {
	if m.signInFn == nil {
		return &types.UserAccount{ID: "user_1", Email: email}, &types.Session{AccessToken: "at"}, nil
	}
	return m.signInFn(ctx, email, password)
}

func (m *mockIdentityService) GetUser(ctx context.Context, userID string) (*types.UserAccount, error) {
	if m.getUserFn == nil {
		return &types.UserAccount{ID: userID, Email: "jo@example.com", Name: "Jo"}, nil
	}
	return m.getUserFn(ctx, userID)
}

// mockPaymentsService implements external.PaymentsService.
type mockPaymentsService struct {
	createCustomerFn     func(ctx context.Context, req external.CreateCustomerRequest) (string, error)
	createProductFn      func(ctx context.Context, req external.CreateProductRequest) (*external.Product, error)
	createSubscriptionFn func(ctx context.Context, req external.CreateSubscriptionRequest) (*external.SubscriptionCheckout, error)

	createProductCalls      int
	createSubscriptionCalls int
}

func (m *mockPaymentsService) CreateCustomer(ctx context.Context, req external.CreateCustomerRequest) (string, error) {
	if m.createCustomerFn == nil {
		return "cus_1", nil
	}
	return m.createCustomerFn(ctx, req)
}

func (m *mockPaymentsService) CreateProduct(ctx context.Context, req external.CreateProductRequest) (*external.Product, error) {
	m.createProductCalls++
	if m.createProductFn == nil {
		return &external.Product{ProductID: "prod_1", Name: req.Name}, nil
	}
	return m.createProductFn(ctx, req)
}

func (m *mockPaymentsService) CreateSubscription(ctx context.Context, req external.CreateSubscriptionRequest) (*external.SubscriptionCheckout, error) {
	m.createSubscriptionCalls++
	if m.createSubscriptionFn == nil {
		return &external.SubscriptionCheckout{SubscriptionID: "sub_1", PaymentLink: "https://pay.example.com/sub_1"}, nil
	}
	return m.createSubscriptionFn(ctx, req)
}

// mockLinker implements LinkEnsurer.
type mockLinker struct {
	result types.LinkResult
	calls  []string
}

func (m *mockLinker) EnsureLink(ctx context.Context, userID, email, name string) types.LinkResult {
	m.calls = append(m.calls, userID)
	return m.result
}

// mockProfileStore implements ProfileCreator and ProfileReader.
type mockProfileStore struct {
	createErr error
	profile   *types.Profile
	getErr    error

	created []*types.Profile
}

func (m *mockProfileStore) Create(ctx context.Context, profile *types.Profile) error {
	m.created = append(m.created, profile)
	return m.createErr
}

func (m *mockProfileStore) Get(ctx context.Context, userID string) (*types.Profile, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.profile, nil
}

// mockMappingReader implements MappingReader.
type mockMappingReader struct {
	mapping *types.CustomerMapping
	err     error
}

func (m *mockMappingReader) Get(ctx context.Context, userID string) (*types.CustomerMapping, error) {
	return m.mapping, m.err
}

// mockEventAppender implements EventAppender.
type mockEventAppender struct {
	err      error
	appended []*types.SubscriptionEvent
}

func (m *mockEventAppender) Append(ctx context.Context, event *types.SubscriptionEvent) error {
	m.appended = append(m.appended, event)
	return m.err
}

// mockReconciler implements SubscriptionReconciler.
type mockReconciler struct {
	err   error
	calls []reconcileCall
}

type reconcileCall struct {
	State  billing.SubscriptionState
	Source billing.Source
}

func (m *mockReconciler) Reconcile(ctx context.Context, state billing.SubscriptionState, source billing.Source) error {
	m.calls = append(m.calls, reconcileCall{State: state, Source: source})
	return m.err
}

// externalUpstreamErr builds a typical payments-provider rejection.
func externalUpstreamErr() error {
	return types.NewAppError(types.ErrCodeUpstreamPayments, "payments provider returned status 400", nil)
}

// mockVerifier implements external.WebhookVerifier.
type mockVerifier struct {
	err   error
	calls int
	body  []byte
}

func (m *mockVerifier) Verify(body []byte, headers http.Header) error {
	m.calls++
	m.body = append([]byte(nil), body...)
	return m.err
}
