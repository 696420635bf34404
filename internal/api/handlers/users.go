package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"dodolink/internal/core"
	"dodolink/internal/external"
	"dodolink/internal/types"
)

// ProfileReader is the slice of the profile repository the user handler needs.
type ProfileReader interface {
	Get(ctx context.Context, userID string) (*types.Profile, error)
}

// MappingReader looks up the user's payments-provider customer mapping.
// Returns (nil, nil) when no mapping exists.
type MappingReader interface {
	Get(ctx context.Context, userID string) (*types.CustomerMapping, error)
}

// ProfileView is the merged user block for GET /api/user/profile.
type ProfileView struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Name           string     `json:"name"`
	CreatedAt      *time.Time `json:"created_at"`
	DodoCustomerID *string    `json:"dodo_customer_id"`
	HasDodoAccount bool       `json:"has_dodo_account"`
}

// ProfileResponse is the response for GET /api/user/profile.
type ProfileResponse struct {
	Success bool        `json:"success"`
	User    ProfileView `json:"user"`
}

// UserHandler serves the merged profile view: local profile row, customer
// mapping, and the identity provider's user record.
type UserHandler struct {
	profiles  ProfileReader
	customers MappingReader
	identity  external.IdentityService
	logger    *slog.Logger
}

// NewUserHandler creates a UserHandler with the provided dependencies.
func NewUserHandler(
	profiles ProfileReader,
	customers MappingReader,
	identity external.IdentityService,
	l *slog.Logger,
) *UserHandler {
	if l == nil {
		l = slog.Default()
	}
	return &UserHandler{
		profiles:  profiles,
		customers: customers,
		identity:  identity,
		logger:    l,
	}
}

// RegisterRoutes mounts the user endpoints.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/user/profile", h.GetProfile)
}

// GetProfile handles GET /api/user/profile?userId=.
//
// The profile row and identity record are both required; their failures
// surface to the client. The customer mapping is an enrichment: absence or a
// lookup failure degrades to dodo_customer_id=null.
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"userId query parameter is required",
			nil,
		))
		return
	}

	profile, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		// The profile row is written at registration; its absence here is a
		// data problem, not a client error.
		core.Error(w, r, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"Failed to fetch profile data",
			err,
		))
		return
	}

	account, err := h.identity.GetUser(r.Context(), userID)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundUser {
			core.Error(w, r, err)
			return
		}
		// An unreachable identity provider is an internal failure of this
		// endpoint, not a client error.
		core.Error(w, r, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"Failed to fetch user profile",
			err,
		))
		return
	}

	var dodoCustomerID *string
	mapping, err := h.customers.Get(r.Context(), userID)
	if err != nil {
		h.logger.WarnContext(r.Context(), "customer mapping lookup failed for profile view",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
	} else if mapping != nil && mapping.DodoCustomerID != "" {
		dodoCustomerID = &mapping.DodoCustomerID
	}

	name := account.Name
	if name == "" {
		name = profile.FullName
	}

	var createdAt *time.Time
	if !account.CreatedAt.IsZero() {
		createdAt = &account.CreatedAt
	} else if !profile.CreatedAt.IsZero() {
		createdAt = &profile.CreatedAt
	}

	core.JSON(w, r, http.StatusOK, ProfileResponse{
		Success: true,
		User: ProfileView{
			ID:             account.ID,
			Email:          account.Email,
			Name:           name,
			CreatedAt:      createdAt,
			DodoCustomerID: dodoCustomerID,
			HasDodoAccount: dodoCustomerID != nil,
		},
	})
}
