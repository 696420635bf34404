package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dodolink/internal/core"
	"dodolink/internal/types"
)

func newCustomerHandler(linker *mockLinker) *CustomerHandler {
	return NewCustomerHandler(linker, core.NewValidator(nil), nil)
}

func TestEnsureCustomer_Success(t *testing.T) {
	linker := &mockLinker{result: types.LinkResult{Status: types.LinkStatusLinked, DodoCustomerID: "cus_1"}}
	h := newCustomerHandler(linker)

	rec := postJSON("/api/customers", `{"user":{"id":"user_1","email":"jo@example.com","name":"Jo"}}`, h.EnsureCustomer)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp EnsureCustomerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cus_1", resp.DodoCustomerID)
	assert.Equal(t, []string{"user_1"}, linker.calls)
}

func TestEnsureCustomer_IdempotentForExistingMapping(t *testing.T) {
	linker := &mockLinker{result: types.LinkResult{Status: types.LinkStatusLinked, DodoCustomerID: "cus_existing"}}
	h := newCustomerHandler(linker)

	body := `{"user":{"id":"user_1","email":"jo@example.com"}}`
	rec1 := postJSON("/api/customers", body, h.EnsureCustomer)
	rec2 := postJSON("/api/customers", body, h.EnsureCustomer)

	assert.Equal(t, http.StatusOK, rec1.Code)
	assert.Equal(t, http.StatusOK, rec2.Code)
	assert.JSONEq(t, rec1.Body.String(), rec2.Body.String())
}

func TestEnsureCustomer_ProviderFailure(t *testing.T) {
	linker := &mockLinker{result: types.LinkResult{Status: types.LinkStatusProviderFailed}}
	h := newCustomerHandler(linker)

	rec := postJSON("/api/customers", `{"user":{"id":"user_1","email":"jo@example.com"}}`, h.EnsureCustomer)

	// Unlike registration, the explicit retry endpoint reports the failure.
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Failed to create customer", resp["error"])
}

func TestEnsureCustomer_MappingFailureStillReturnsID(t *testing.T) {
	linker := &mockLinker{result: types.LinkResult{Status: types.LinkStatusMappingFailed, DodoCustomerID: "cus_orphan"}}
	h := newCustomerHandler(linker)

	rec := postJSON("/api/customers", `{"user":{"id":"user_1","email":"jo@example.com"}}`, h.EnsureCustomer)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp EnsureCustomerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cus_orphan", resp.DodoCustomerID)
}

func TestEnsureCustomer_Validation(t *testing.T) {
	cases := map[string]string{
		"missing user":  `{}`,
		"missing id":    `{"user":{"email":"jo@example.com"}}`,
		"missing email": `{"user":{"id":"user_1"}}`,
		"invalid email": `{"user":{"id":"user_1","email":"nope"}}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			linker := &mockLinker{}
			h := newCustomerHandler(linker)

			rec := postJSON("/api/customers", body, h.EnsureCustomer)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, linker.calls, "invalid requests never reach the linker")
		})
	}
}
