package external

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dodolink/internal/types"
)

// newIdentityTestClient points an IdentityClient at the given test server.
func newIdentityTestClient(t *testing.T, serverURL string) *IdentityClient {
	t.Helper()
	base := NewBaseClient(
		&http.Client{Timeout: 5 * time.Second},
		"identity-test",
		RetryPolicy{MaxRetries: 0, MinWait: time.Millisecond, MaxWait: time.Millisecond},
		"DodoLink-Test/1.0",
		WithSleepFunc(noopSleep),
	)
	return NewIdentityClientWithBase(base, IdentityClientConfig{
		BaseURL:        serverURL,
		ServiceRoleKey: "service-key",
		AnonKey:        "anon-key",
	})
}

func TestIdentityCreateUser_Success(t *testing.T) {
	var gotPath, gotAuth, gotAPIKey string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotAPIKey = r.Header.Get("apikey")
		json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "user_123",
			"email": "jo@example.com",
			"created_at": "2026-01-02T03:04:05Z",
			"user_metadata": {"name": "Jo"}
		}`))
	}))
	defer server.Close()

	client := newIdentityTestClient(t, server.URL)

	account, err := client.CreateUser(context.Background(), "jo@example.com", "secret123", "Jo")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if gotPath != "/auth/v1/admin/users" {
		t.Errorf("unexpected path: %s", gotPath)
	}
	if gotAuth != "Bearer service-key" || gotAPIKey != "service-key" {
		t.Errorf("expected service role key on admin call, got auth=%q apikey=%q", gotAuth, gotAPIKey)
	}
	if gotBody["email_confirm"] != true {
		t.Error("expected email_confirm=true in create payload")
	}
	if account.ID != "user_123" || account.Email != "jo@example.com" || account.Name != "Jo" {
		t.Errorf("unexpected account: %+v", account)
	}
	if account.CreatedAt.IsZero() {
		t.Error("expected created_at to be parsed")
	}
}

func TestIdentityCreateUser_ProviderRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"msg":"A user with this email address has already been registered"}`))
	}))
	defer server.Close()

	client := newIdentityTestClient(t, server.URL)

	_, err := client.CreateUser(context.Background(), "jo@example.com", "secret123", "Jo")
	if err == nil {
		t.Fatal("expected error for provider rejection")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeUpstreamIdentity {
		t.Errorf("expected upstream_identity_provider, got %s", appErr.Code)
	}
	if appErr.Details["provider_message"] != "A user with this email address has already been registered" {
		t.Errorf("expected provider message in details, got %v", appErr.Details)
	}
}

func TestIdentitySignIn_Success(t *testing.T) {
	var gotAPIKey, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("apikey")
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{
			"access_token": "at",
			"refresh_token": "rt",
			"expires_in": 3600,
			"token_type": "bearer",
			"user": {"id": "user_123", "email": "jo@example.com", "user_metadata": {"name": "Jo"}}
		}`))
	}))
	defer server.Close()

	client := newIdentityTestClient(t, server.URL)

	account, session, err := client.SignIn(context.Background(), "jo@example.com", "secret123")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if gotAPIKey != "anon-key" {
		t.Errorf("expected anon key on token call, got %q", gotAPIKey)
	}
	if gotQuery != "grant_type=password" {
		t.Errorf("expected password grant, got query %q", gotQuery)
	}
	if session.AccessToken != "at" || session.ExpiresIn != 3600 {
		t.Errorf("unexpected session: %+v", session)
	}
	if account.ID != "user_123" {
		t.Errorf("unexpected account: %+v", account)
	}
}

func TestIdentitySignIn_InvalidCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error_description":"Invalid login credentials"}`))
	}))
	defer server.Close()

	client := newIdentityTestClient(t, server.URL)

	_, _, err := client.SignIn(context.Background(), "jo@example.com", "wrong")
	if err == nil {
		t.Fatal("expected error for rejected credentials")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeAuthInvalidCreds {
		t.Errorf("expected auth_invalid_credentials, got %s", appErr.Code)
	}
	if appErr.HTTPStatus() != http.StatusUnauthorized {
		t.Errorf("expected 401 mapping, got %d", appErr.HTTPStatus())
	}
}

func TestIdentityGetUser_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"msg":"User not found"}`))
	}))
	defer server.Close()

	client := newIdentityTestClient(t, server.URL)

	_, err := client.GetUser(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for missing user")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeNotFoundUser {
		t.Errorf("expected not_found_user, got %s", appErr.Code)
	}
}

func TestIdentityGetUser_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/admin/users/user_123" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"id":"user_123","email":"jo@example.com","user_metadata":{"name":"Jo"}}`))
	}))
	defer server.Close()

	client := newIdentityTestClient(t, server.URL)

	account, err := client.GetUser(context.Background(), "user_123")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if account.Name != "Jo" {
		t.Errorf("unexpected account: %+v", account)
	}
}
