// Package handlers contains the HTTP handler implementations for the
// dodolink API.
//
// This file implements the registration and login endpoints. Registration is
// the linking flow's entry point: it creates the identity-provider account,
// a local profile row, and (best-effort) a payments-provider customer with
// its mapping row.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dodolink/internal/core"
	"dodolink/internal/external"
	"dodolink/internal/types"
)

// --- Service Interfaces ---
//
// Interfaces are defined locally in the handler file and injected via the
// constructor, so tests can mock the contract without touching the concrete
// repository or client types.

// ProfileCreator is the slice of the profile repository the auth handler needs.
type ProfileCreator interface {
	Create(ctx context.Context, profile *types.Profile) error
}

// LinkEnsurer resolves or establishes the user's payments-provider customer.
type LinkEnsurer interface {
	EnsureLink(ctx context.Context, userID, email, name string) types.LinkResult
}

// --- Request/Response Models ---

// RegisterRequest is the request body for POST /api/auth/register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required"`
}

// RegisterResponse is the response for POST /api/auth/register.
//
// DodoCustomerID is a pointer so the original contract's explicit null
// survives: a failed provider link yields "dodoCustomerId": null, not an
// absent key. CustomerLink carries the structured outcome for callers that
// need to distinguish the partial-failure modes.
type RegisterResponse struct {
	Success        bool             `json:"success"`
	User           RegisteredUser   `json:"user"`
	DodoCustomerID *string          `json:"dodoCustomerId"`
	CustomerLink   types.LinkResult `json:"customerLink"`
	Message        string           `json:"message"`
}

// RegisteredUser is the user block of auth responses.
type RegisteredUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// LoginRequest is the request body for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the response for POST /api/auth/login.
type LoginResponse struct {
	Success bool           `json:"success"`
	User    RegisteredUser `json:"user"`
	Session *types.Session `json:"session"`
	Message string         `json:"message"`
}

// --- Auth Handler ---

// AuthHandler handles registration and login.
type AuthHandler struct {
	identity  external.IdentityService
	profiles  ProfileCreator
	linker    LinkEnsurer
	validator *core.Validator
	logger    *slog.Logger
}

// NewAuthHandler creates an AuthHandler with the provided dependencies.
func NewAuthHandler(
	identity external.IdentityService,
	profiles ProfileCreator,
	linker LinkEnsurer,
	v *core.Validator,
	l *slog.Logger,
) *AuthHandler {
	if l == nil {
		l = slog.Default()
	}
	return &AuthHandler{
		identity:  identity,
		profiles:  profiles,
		linker:    linker,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts the auth endpoints.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
}

// Register handles POST /api/auth/register.
//
// Flow:
//  1. Decode and validate the request (email, password, name all required).
//  2. Create the identity-provider account. A provider rejection aborts the
//     registration with the provider's message.
//  3. Insert the profile row. Failure is logged and swallowed: the auth
//     account already exists and registration must not report failure for a
//     secondary write.
//  4. Ensure the payments-provider customer link, also best-effort. The
//     outcome is reported in the response body, never as an HTTP failure.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		core.Error(w, r, err)
		return
	}

	account, err := h.identity.CreateUser(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	profile := &types.Profile{
		ID:       account.ID,
		FullName: req.Name,
		Email:    req.Email,
	}
	if err := h.profiles.Create(r.Context(), profile); err != nil {
		h.logger.ErrorContext(r.Context(), "profile insert failed after registration",
			slog.String("user_id", account.ID),
			slog.Any("error", err),
		)
	}

	link := h.linker.EnsureLink(r.Context(), account.ID, req.Email, req.Name)

	var dodoCustomerID *string
	if link.DodoCustomerID != "" {
		dodoCustomerID = &link.DodoCustomerID
	}

	core.JSON(w, r, http.StatusOK, RegisterResponse{
		Success: true,
		User: RegisteredUser{
			ID:    account.ID,
			Email: account.Email,
			Name:  req.Name,
		},
		DodoCustomerID: dodoCustomerID,
		CustomerLink:   link,
		Message:        "User created successfully",
	})
}

// Login handles POST /api/auth/login via the identity provider's password
// grant. Provider rejections come back as 401 Invalid credentials.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		core.Error(w, r, err)
		return
	}

	account, session, err := h.identity.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, LoginResponse{
		Success: true,
		User: RegisteredUser{
			ID:    account.ID,
			Email: account.Email,
			Name:  account.Name,
		},
		Session: session,
		Message: "Login successful",
	})
}
