package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"dodolink/internal/external"
	"dodolink/internal/types"
)

type mockCustomerCreator struct {
	mock.Mock
}

func (m *mockCustomerCreator) CreateCustomer(ctx context.Context, req external.CreateCustomerRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type mockMappingStore struct {
	mock.Mock
}

func (m *mockMappingStore) Get(ctx context.Context, userID string) (*types.CustomerMapping, error) {
	args := m.Called(ctx, userID)
	if v := args.Get(0); v != nil {
		return v.(*types.CustomerMapping), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockMappingStore) Create(ctx context.Context, mapping *types.CustomerMapping) error {
	args := m.Called(ctx, mapping)
	return args.Error(0)
}

func TestEnsureLink_ExistingMapping(t *testing.T) {
	payments := new(mockCustomerCreator)
	mappings := new(mockMappingStore)
	linker := NewCustomerLinker(payments, mappings, nil)

	mappings.On("Get", mock.Anything, "user_1").
		Return(&types.CustomerMapping{UserID: "user_1", DodoCustomerID: "cus_existing"}, nil)

	result := linker.EnsureLink(context.Background(), "user_1", "jo@example.com", "Jo")

	assert.Equal(t, types.LinkStatusLinked, result.Status)
	assert.Equal(t, "cus_existing", result.DodoCustomerID)
	payments.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything)
}

func TestEnsureLink_CreatesAndMaps(t *testing.T) {
	payments := new(mockCustomerCreator)
	mappings := new(mockMappingStore)
	linker := NewCustomerLinker(payments, mappings, nil)

	mappings.On("Get", mock.Anything, "user_1").Return(nil, nil)
	payments.On("CreateCustomer", mock.Anything, external.CreateCustomerRequest{
		Email:    "jo@example.com",
		Name:     "Jo",
		Metadata: map[string]string{"supabase_user_id": "user_1"},
	}).Return("cus_new", nil)
	mappings.On("Create", mock.Anything, mock.MatchedBy(func(m *types.CustomerMapping) bool {
		return m.UserID == "user_1" && m.DodoCustomerID == "cus_new"
	})).Return(nil)

	result := linker.EnsureLink(context.Background(), "user_1", "jo@example.com", "Jo")

	assert.Equal(t, types.LinkStatusLinked, result.Status)
	assert.Equal(t, "cus_new", result.DodoCustomerID)
	mappings.AssertExpectations(t)
}

func TestEnsureLink_ProviderFailure(t *testing.T) {
	payments := new(mockCustomerCreator)
	mappings := new(mockMappingStore)
	linker := NewCustomerLinker(payments, mappings, nil)

	mappings.On("Get", mock.Anything, "user_1").Return(nil, nil)
	payments.On("CreateCustomer", mock.Anything, mock.Anything).
		Return("", types.NewAppError(types.ErrCodeUpstreamPayments, "provider down", nil))

	result := linker.EnsureLink(context.Background(), "user_1", "jo@example.com", "Jo")

	assert.Equal(t, types.LinkStatusProviderFailed, result.Status)
	assert.Empty(t, result.DodoCustomerID)
	mappings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestEnsureLink_MappingWriteFailureStillReturnsCustomerID(t *testing.T) {
	payments := new(mockCustomerCreator)
	mappings := new(mockMappingStore)
	linker := NewCustomerLinker(payments, mappings, nil)

	mappings.On("Get", mock.Anything, "user_1").Return(nil, nil)
	payments.On("CreateCustomer", mock.Anything, mock.Anything).Return("cus_orphan", nil)
	mappings.On("Create", mock.Anything, mock.Anything).
		Return(types.NewAppError(types.ErrCodeInternalDB, "insert failed", nil))

	result := linker.EnsureLink(context.Background(), "user_1", "jo@example.com", "Jo")

	assert.Equal(t, types.LinkStatusMappingFailed, result.Status)
	assert.Equal(t, "cus_orphan", result.DodoCustomerID)
}

func TestEnsureLink_LookupErrorFallsThroughToCreate(t *testing.T) {
	payments := new(mockCustomerCreator)
	mappings := new(mockMappingStore)
	linker := NewCustomerLinker(payments, mappings, nil)

	mappings.On("Get", mock.Anything, "user_1").Return(nil, errors.New("connection reset"))
	payments.On("CreateCustomer", mock.Anything, mock.Anything).Return("cus_retry", nil)
	mappings.On("Create", mock.Anything, mock.Anything).Return(nil)

	result := linker.EnsureLink(context.Background(), "user_1", "jo@example.com", "Jo")

	assert.Equal(t, types.LinkStatusLinked, result.Status)
	assert.Equal(t, "cus_retry", result.DodoCustomerID)
}
