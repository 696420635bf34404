package handlers

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"dodolink/internal/core"
	"dodolink/internal/external"
	"dodolink/internal/types"
)

// Allowed product currencies.
const (
	currencyUSD = "USD"
	currencyINR = "INR"
)

// defaultTaxCategory is applied when the request omits tax_category.
const defaultTaxCategory = "digital_products"

// CreateProductClientRequest is the request body for POST /api/products.
// Price is in major units (e.g. dollars); the handler converts to the
// provider's minor units.
type CreateProductClientRequest struct {
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
	Discount    float64 `json:"discount"`
	TaxCategory string  `json:"tax_category"`
}

// ProductView is the product block of the creation response.
type ProductView struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	BrandID     string          `json:"brand_id"`
	Price       json.RawMessage `json:"price"`
	TaxCategory string          `json:"tax_category"`
	CreatedAt   json.RawMessage `json:"created_at"`
}

// CreateProductResponse is the response for POST /api/products.
type CreateProductResponse struct {
	Success bool        `json:"success"`
	Product ProductView `json:"product"`
}

// ProductHandler creates recurring-price products at the payments provider.
type ProductHandler struct {
	payments external.PaymentsService
	logger   *slog.Logger
}

// NewProductHandler creates a ProductHandler with the provided dependencies.
func NewProductHandler(payments external.PaymentsService, l *slog.Logger) *ProductHandler {
	if l == nil {
		l = slog.Default()
	}
	return &ProductHandler{
		payments: payments,
		logger:   l,
	}
}

// RegisterRoutes mounts the product endpoints.
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Post("/products", h.CreateProduct)
}

// CreateProduct handles POST /api/products.
//
// All validation runs before any outbound call: a rejected request never
// reaches the provider. Messages match the wire contract the frontend
// asserts on.
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductClientRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := validateProductRequest(&req); err != nil {
		core.Error(w, r, err)
		return
	}

	payload := external.CreateProductRequest{
		Name:        req.Name,
		TaxCategory: req.TaxCategory,
		Price: external.ProductPrice{
			Currency:                   req.Currency,
			Discount:                   req.Discount,
			Price:                      minorUnits(req.Price),
			PurchasingPowerParity:      true,
			PaymentFrequencyCount:      1,
			PaymentFrequencyInterval:   "Month",
			SubscriptionPeriodCount:    1,
			SubscriptionPeriodInterval: "Month",
			Type:                       "recurring_price",
		},
	}

	product, err := h.payments.CreateProduct(r.Context(), payload)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, CreateProductResponse{
		Success: true,
		Product: ProductView{
			ID:          product.ProductID,
			Name:        product.Name,
			BrandID:     product.BrandID,
			Price:       product.Price,
			TaxCategory: product.TaxCategory,
			CreatedAt:   product.CreatedAt,
		},
	})
}

// validateProductRequest checks the request in place, applying defaults for
// currency and tax category. The bespoke messages are part of the contract,
// so this does not go through the struct-tag validator.
func validateProductRequest(req *CreateProductClientRequest) error {
	if req.Currency == "" {
		req.Currency = currencyUSD
	}
	if req.Currency != currencyUSD && req.Currency != currencyINR {
		return types.NewAppError(
			types.ErrCodeValidationInvalidField,
			"Only USD and INR currencies are supported",
			nil,
		)
	}

	if strings.TrimSpace(req.Name) == "" {
		return types.NewAppError(
			types.ErrCodeValidationMissingField,
			"Product name is required",
			nil,
		)
	}

	// Zero counts as missing, same as negative.
	if req.Price <= 0 {
		return types.NewAppError(
			types.ErrCodeValidationInvalidField,
			"Price is required and must be non-negative",
			nil,
		)
	}

	if req.Discount < 0 || req.Discount > 100 {
		return types.NewAppError(
			types.ErrCodeValidationInvalidField,
			"Discount must be between 0 and 100",
			nil,
		)
	}

	if req.TaxCategory == "" {
		req.TaxCategory = defaultTaxCategory
	}

	return nil
}

// minorUnits converts a major-unit price to the currency's minor units,
// rounding half away from zero (12.345 -> 1235).
func minorUnits(price float64) int64 {
	return int64(math.Round(price * 100))
}
