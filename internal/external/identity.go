package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"dodolink/internal/types"
)

// authAPIPath is the GoTrue mount point under the project base URL.
const authAPIPath = "/auth/v1"

// IdentityClientConfig holds the configuration for creating an IdentityClient.
type IdentityClientConfig struct {
	BaseURL        string // project base URL, e.g. https://xyz.supabase.co
	ServiceRoleKey string // authorizes admin operations
	AnonKey        string // authorizes the password-grant token call
	Logger         *slog.Logger
}

// IdentityClient implements IdentityService against the Supabase GoTrue REST
// API through BaseClient, so admin and token calls share the platform's
// resilience infrastructure (circuit breaker, retries, error mapping).
type IdentityClient struct {
	base           *BaseClient
	baseURL        string
	serviceRoleKey string
	anonKey        string
	logger         *slog.Logger
}

// NewIdentityClient creates an IdentityClient with its own BaseClient.
func NewIdentityClient(httpClient *http.Client, cfg IdentityClientConfig) *IdentityClient {
	base := NewBaseClient(
		httpClient,
		"identity",
		DefaultRetryPolicy(),
		"DodoLink/1.0",
	)
	return NewIdentityClientWithBase(base, cfg)
}

// NewIdentityClientWithBase creates an IdentityClient with a pre-configured
// BaseClient. Useful for tests that control retry and breaker behavior.
func NewIdentityClientWithBase(base *BaseClient, cfg IdentityClientConfig) *IdentityClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &IdentityClient{
		base:           base,
		baseURL:        strings.TrimSuffix(cfg.BaseURL, "/") + authAPIPath,
		serviceRoleKey: cfg.ServiceRoleKey,
		anonKey:        cfg.AnonKey,
		logger:         logger,
	}
}

// ---------------------------------------------------------------------------
// IdentityService Implementation
// ---------------------------------------------------------------------------

// gotrueUser is the provider's user representation; only the fields the
// service consumes are decoded.
type gotrueUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	CreatedAt    types.FlexTime `json:"created_at"`
	UserMetadata struct {
		Name string `json:"name"`
	} `json:"user_metadata"`
}

func (u *gotrueUser) toAccount() *types.UserAccount {
	acct := &types.UserAccount{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.UserMetadata.Name,
	}
	if u.CreatedAt.Valid {
		acct.CreatedAt = u.CreatedAt.Time
	}
	return acct
}

// CreateUser provisions a confirmed user via the admin API. The email is
// marked confirmed at creation so the account is immediately usable without
// a verification round-trip.
func (c *IdentityClient) CreateUser(ctx context.Context, email, password, name string) (*types.UserAccount, error) {
	payload := map[string]any{
		"email":         email,
		"password":      password,
		"email_confirm": true,
		"user_metadata": map[string]any{"name": name},
	}

	resp, err := c.doJSON(ctx, http.MethodPost, "/admin/users", c.serviceRoleKey, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.handleErrorResponse(resp, "CreateUser", types.ErrCodeUpstreamIdentity)
	}

	var user gotrueUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamIdentity,
			"CreateUser: identity provider returned an undecodable body",
			err,
		)
	}

	return user.toAccount(), nil
}

// signInResponse is the GoTrue password-grant token response.
type signInResponse struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresIn    int        `json:"expires_in"`
	TokenType    string     `json:"token_type"`
	User         gotrueUser `json:"user"`
}

// SignIn exchanges credentials for a session via the password grant.
// Provider rejections (wrong password, unknown email) surface as
// ErrCodeAuthInvalidCreds so the handler can answer 401.
func (c *IdentityClient) SignIn(ctx context.Context, email, password string) (*types.UserAccount, *types.Session, error) {
	payload := map[string]any{
		"email":    email,
		"password": password,
	}

	resp, err := c.doJSON(ctx, http.MethodPost, "/token?grant_type=password", c.anonKey, payload)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := c.readErrorMessage(resp)
		return nil, nil, types.NewAppErrorWithDetails(
			types.ErrCodeAuthInvalidCreds,
			"Invalid credentials",
			nil,
			map[string]any{"provider_message": detail},
		)
	}

	var signIn signInResponse
	if err := json.NewDecoder(resp.Body).Decode(&signIn); err != nil {
		return nil, nil, types.NewAppError(
			types.ErrCodeUpstreamIdentity,
			"SignIn: identity provider returned an undecodable body",
			err,
		)
	}

	session := &types.Session{
		AccessToken:  signIn.AccessToken,
		RefreshToken: signIn.RefreshToken,
		ExpiresIn:    signIn.ExpiresIn,
		TokenType:    signIn.TokenType,
	}
	return signIn.User.toAccount(), session, nil
}

// GetUser fetches a user record by id via the admin API.
func (c *IdentityClient) GetUser(ctx context.Context, userID string) (*types.UserAccount, error) {
	path := "/admin/users/" + url.PathEscape(userID)

	resp, err := c.doJSON(ctx, http.MethodGet, path, c.serviceRoleKey, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, types.NewAppError(
			types.ErrCodeNotFoundUser,
			fmt.Sprintf("user %s not found at identity provider", userID),
			nil,
		)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.handleErrorResponse(resp, "GetUser", types.ErrCodeUpstreamIdentity)
	}

	var user gotrueUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamIdentity,
			"GetUser: identity provider returned an undecodable body",
			err,
		)
	}

	return user.toAccount(), nil
}

// ---------------------------------------------------------------------------
// Transport helpers
// ---------------------------------------------------------------------------

// doJSON performs an authenticated request with a JSON body against the
// GoTrue API. GoTrue expects both the apikey header and a bearer token.
func (c *IdentityClient) doJSON(ctx context.Context, method, path, key string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode identity request", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", key)
	req.Header.Set("Authorization", "Bearer "+key)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.base.Do(req)
}

// gotrueErrorResponse covers the error body shapes GoTrue emits across
// versions ({"msg":...}, {"message":...}, {"error_description":...}).
type gotrueErrorResponse struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
}

func (e *gotrueErrorResponse) text() string {
	for _, s := range []string{e.Msg, e.Message, e.ErrorDescription} {
		if s != "" {
			return s
		}
	}
	return ""
}

// readErrorMessage extracts the provider's human-readable message from an
// error response, tolerating non-JSON bodies.
func (c *IdentityClient) readErrorMessage(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return ""
	}
	var provider gotrueErrorResponse
	if err := json.Unmarshal(body, &provider); err != nil {
		return strings.TrimSpace(string(body))
	}
	return provider.text()
}

// handleErrorResponse maps a non-2xx GoTrue response to a types.AppError.
func (c *IdentityClient) handleErrorResponse(resp *http.Response, operation string, code types.ErrorCode) error {
	detail := c.readErrorMessage(resp)
	msg := fmt.Sprintf("%s: identity provider returned status %d", operation, resp.StatusCode)
	if detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, detail)
	}

	c.logger.Warn("identity provider call failed",
		slog.String("operation", operation),
		slog.Int("status", resp.StatusCode),
	)

	return types.NewAppErrorWithDetails(code, msg, nil, map[string]any{
		"provider_status":  resp.StatusCode,
		"provider_message": detail,
	})
}

var _ IdentityService = (*IdentityClient)(nil)
