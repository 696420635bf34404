package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"dodolink/internal/types"
)

// ---------------------------------------------------------------------------
// Request / response payloads
// ---------------------------------------------------------------------------

// CreateCustomerRequest is the provider payload for customer creation.
// Metadata carries the back-reference from the provider customer to the
// local user (supabase_user_id).
type CreateCustomerRequest struct {
	Email    string            `json:"email"`
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ProductPrice is the recurring-price block of a product. Price is in the
// currency's minor units.
type ProductPrice struct {
	Currency                   string  `json:"currency"`
	Discount                   float64 `json:"discount"`
	Price                      int64   `json:"price"`
	PurchasingPowerParity      bool    `json:"purchasing_power_parity"`
	PaymentFrequencyCount      int     `json:"payment_frequency_count"`
	PaymentFrequencyInterval   string  `json:"payment_frequency_interval"`
	SubscriptionPeriodCount    int     `json:"subscription_period_count"`
	SubscriptionPeriodInterval string  `json:"subscription_period_interval"`
	Type                       string  `json:"type"`
}

// CreateProductRequest is the provider payload for product creation.
type CreateProductRequest struct {
	Name        string       `json:"name"`
	TaxCategory string       `json:"tax_category"`
	Price       ProductPrice `json:"price"`
}

// Product is the provider's product representation. Price and CreatedAt are
// passed through untouched; their shapes belong to the provider.
type Product struct {
	ProductID   string          `json:"product_id"`
	Name        string          `json:"name"`
	BrandID     string          `json:"brand_id"`
	TaxCategory string          `json:"tax_category"`
	Price       json.RawMessage `json:"price"`
	CreatedAt   json.RawMessage `json:"created_at"`
}

// CustomerRef identifies an existing provider customer in a request.
type CustomerRef struct {
	CustomerID string `json:"customer_id"`
}

// CreateSubscriptionRequest is the provider payload for subscription
// creation. Billing is forwarded verbatim from the client request.
type CreateSubscriptionRequest struct {
	Billing     json.RawMessage `json:"billing"`
	Customer    CustomerRef     `json:"customer"`
	ProductID   string          `json:"product_id"`
	Quantity    int             `json:"quantity"`
	PaymentLink bool            `json:"payment_link"`
}

// SubscriptionCheckout is the provider's subscription-creation response.
// Timestamp fields are loosely typed on the wire; FlexTime absorbs both
// RFC 3339 strings and epoch numbers.
type SubscriptionCheckout struct {
	SubscriptionID     string         `json:"subscription_id"`
	PaymentLink        string         `json:"payment_link"`
	ProductID          string         `json:"product_id"`
	Status             string         `json:"status"`
	BillingCurrency    string         `json:"billing_currency"`
	Customer           *CustomerRef   `json:"customer"`
	CurrentPeriodStart types.FlexTime `json:"current_period_start"`
	CurrentPeriodEnd   types.FlexTime `json:"current_period_end"`
	NextBillingDate    types.FlexTime `json:"next_billing_date"`
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// PaymentsClientConfig holds the configuration for creating a PaymentsClient.
type PaymentsClientConfig struct {
	BaseURL string
	APIKey  string
	Logger  *slog.Logger
}

// PaymentsClient implements PaymentsService by calling the Dodo Payments
// REST API through BaseClient.
type PaymentsClient struct {
	base    *BaseClient
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// NewPaymentsClient creates a PaymentsClient with its own BaseClient.
func NewPaymentsClient(httpClient *http.Client, cfg PaymentsClientConfig) *PaymentsClient {
	base := NewBaseClient(
		httpClient,
		"payments",
		DefaultRetryPolicy(),
		"DodoLink/1.0",
	)
	return NewPaymentsClientWithBase(base, cfg)
}

// NewPaymentsClientWithBase creates a PaymentsClient with a pre-configured
// BaseClient. Useful for tests that control retry and breaker behavior.
func NewPaymentsClientWithBase(base *BaseClient, cfg PaymentsClientConfig) *PaymentsClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &PaymentsClient{
		base:    base,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		logger:  logger,
	}
}

// CreateCustomer creates a provider customer and returns its id.
func (c *PaymentsClient) CreateCustomer(ctx context.Context, req CreateCustomerRequest) (string, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/customers", req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", c.handleErrorResponse(resp, "CreateCustomer")
	}

	var created struct {
		CustomerID string `json:"customer_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", c.decodeError("CreateCustomer", err)
	}
	if created.CustomerID == "" {
		return "", types.NewAppError(
			types.ErrCodeUpstreamPayments,
			"CreateCustomer: payments provider response has no customer_id",
			nil,
		)
	}

	return created.CustomerID, nil
}

// CreateProduct creates a recurring-price product.
func (c *PaymentsClient) CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/products", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.handleErrorResponse(resp, "CreateProduct")
	}

	var product Product
	if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
		return nil, c.decodeError("CreateProduct", err)
	}

	return &product, nil
}

// CreateSubscription creates a subscription with a hosted payment link.
func (c *PaymentsClient) CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*SubscriptionCheckout, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/subscriptions", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.handleErrorResponse(resp, "CreateSubscription")
	}

	var checkout SubscriptionCheckout
	if err := json.NewDecoder(resp.Body).Decode(&checkout); err != nil {
		return nil, c.decodeError("CreateSubscription", err)
	}
	if checkout.SubscriptionID == "" {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamPayments,
			"CreateSubscription: payments provider response has no subscription_id",
			nil,
		)
	}

	return &checkout, nil
}

// ---------------------------------------------------------------------------
// Transport helpers
// ---------------------------------------------------------------------------

// doJSON performs an authenticated POST/GET with a JSON body against the
// payments API.
func (c *PaymentsClient) doJSON(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode payments request", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.base.Do(req)
}

// dodoErrorResponse covers the error body shapes the payments API emits.
type dodoErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Detail  string `json:"detail"`
	Code    string `json:"code"`
}

func (e *dodoErrorResponse) text() string {
	for _, s := range []string{e.Message, e.Error, e.Detail} {
		if s != "" {
			return s
		}
	}
	return ""
}

// handleErrorResponse maps a non-2xx payments response to a types.AppError.
func (c *PaymentsClient) handleErrorResponse(resp *http.Response, operation string) error {
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
	detail := ""
	if readErr == nil {
		var provider dodoErrorResponse
		if err := json.Unmarshal(body, &provider); err != nil {
			detail = strings.TrimSpace(string(body))
		} else {
			detail = provider.text()
		}
	}

	msg := fmt.Sprintf("%s: payments provider returned status %d", operation, resp.StatusCode)
	if detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, detail)
	}

	c.logger.Warn("payments provider call failed",
		slog.String("operation", operation),
		slog.Int("status", resp.StatusCode),
	)

	return types.NewAppErrorWithDetails(types.ErrCodeUpstreamPayments, msg, nil, map[string]any{
		"provider_status":  resp.StatusCode,
		"provider_message": detail,
	})
}

func (c *PaymentsClient) decodeError(operation string, err error) error {
	return types.NewAppError(
		types.ErrCodeUpstreamPayments,
		fmt.Sprintf("%s: payments provider returned an undecodable body", operation),
		err,
	)
}

var _ PaymentsService = (*PaymentsClient)(nil)
