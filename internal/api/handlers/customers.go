package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dodolink/internal/core"
	"dodolink/internal/types"
)

// EnsureCustomerRequest is the request body for POST /api/customers.
type EnsureCustomerRequest struct {
	User EnsureCustomerUser `json:"user" validate:"required"`
}

// EnsureCustomerUser identifies the local user to link.
type EnsureCustomerUser struct {
	ID    string `json:"id" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name"`
}

// EnsureCustomerResponse is the response for POST /api/customers.
type EnsureCustomerResponse struct {
	DodoCustomerID string `json:"dodoCustomerId"`
}

// CustomerHandler exposes the explicit ensure-link operation for users whose
// registration-time linking failed or was skipped.
type CustomerHandler struct {
	linker    LinkEnsurer
	validator *core.Validator
	logger    *slog.Logger
}

// NewCustomerHandler creates a CustomerHandler with the provided dependencies.
func NewCustomerHandler(linker LinkEnsurer, v *core.Validator, l *slog.Logger) *CustomerHandler {
	if l == nil {
		l = slog.Default()
	}
	return &CustomerHandler{
		linker:    linker,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts the customer endpoints.
func (h *CustomerHandler) RegisterRoutes(r chi.Router) {
	r.Post("/customers", h.EnsureCustomer)
}

// EnsureCustomer handles POST /api/customers.
//
// Unlike the registration flow, this explicit retry surfaces provider
// failure to the caller: a provider_failed outcome answers 500 so the client
// knows the link still does not exist.
func (h *CustomerHandler) EnsureCustomer(w http.ResponseWriter, r *http.Request) {
	var req EnsureCustomerRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		core.Error(w, r, err)
		return
	}

	link := h.linker.EnsureLink(r.Context(), req.User.ID, req.User.Email, req.User.Name)
	if link.Status == types.LinkStatusProviderFailed {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"Failed to create customer",
			nil,
		))
		return
	}

	core.JSON(w, r, http.StatusOK, EnsureCustomerResponse{
		DodoCustomerID: link.DodoCustomerID,
	})
}
