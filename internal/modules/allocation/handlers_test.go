package allocation

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T, devMode bool) *Handler {
	history := newTestHistoryRepository(t)
	return NewHandler(history, devMode, zerolog.Nop())
}

func TestHandleAllocate_ProRataSuccess(t *testing.T) {
	h := newTestHandler(t, false)

	body := allocateRequest{
		Order:    orderRequest{SecurityID: "912828ZZ1", Side: "BUY", Quantity: 10_000_000},
		Security: securityRequest{CUSIP: "912828ZZ1", Price: 0.985, MinDenomination: 1000},
		Accounts: []accountRequest{
			{AccountID: "A", AccountName: "Alpha", NAV: 100_000_000, AvailableCash: 50_000_000},
			{AccountID: "B", AccountName: "Bravo", NAV: 150_000_000, AvailableCash: 50_000_000},
		},
		Policy:      policyRequest{Kind: "PRO_RATA", BaseMetric: "NAV"},
		Constraints: constraintsRequest{RespectCash: true, MinAllocation: 1000, RoundToDenomination: true},
	}
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/allocate", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	h.HandleAllocate(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp allocationResultResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Errors)
	assert.Equal(t, 10_000_000.0, resp.Summary.TotalAllocated)
	assert.NotEmpty(t, resp.ID)
}

func TestHandleAllocate_InvalidBody(t *testing.T) {
	h := newTestHandler(t, false)

	req := httptest.NewRequest(http.MethodPost, "/allocate", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()
	h.HandleAllocate(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAllocate_EmptyAccountsReturnsErrors(t *testing.T) {
	h := newTestHandler(t, false)

	body := allocateRequest{
		Order:       orderRequest{SecurityID: "912828ZZ1", Side: "BUY", Quantity: 1000},
		Security:    securityRequest{Price: 1.0, MinDenomination: 1000},
		Policy:      policyRequest{Kind: "PRO_RATA"},
		Constraints: constraintsRequest{MinAllocation: 1000},
	}
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/allocate", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	h.HandleAllocate(w, req)

	var resp allocationResultResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, string(ErrNoAccounts), resp.Errors[0].Code)
}

func TestHandler_HealthCheck(t *testing.T) {
	h := newTestHandler(t, false)
	assert.NoError(t, h.HealthCheck(context.Background()))
}

func TestHandler_HealthCheckNilHistoryIsHealthy(t *testing.T) {
	h := NewHandler(nil, false, zerolog.Nop())
	assert.NoError(t, h.HealthCheck(context.Background()))
}

func TestHandleGetMock_DisabledWhenNotDevMode(t *testing.T) {
	h := newTestHandler(t, false)
	req := httptest.NewRequest(http.MethodGet, "/mock", nil)
	w := httptest.NewRecorder()
	h.HandleGetMock(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleGetMock_EnabledInDevMode(t *testing.T) {
	h := newTestHandler(t, true)
	req := httptest.NewRequest(http.MethodGet, "/mock?seed=5&accounts=3", nil)
	w := httptest.NewRecorder()
	h.HandleGetMock(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Accounts []accountRequest `json:"accounts"`
		Security securityRequest  `json:"security"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Accounts, 3)
	assert.Greater(t, resp.Security.Price, 0.0)
}

func TestHandleAllocateThenGetHistoryByID(t *testing.T) {
	history := newTestHistoryRepository(t)
	h := NewHandler(history, false, zerolog.Nop())

	body := allocateRequest{
		Order:       orderRequest{SecurityID: "912828ZZ1", Side: "BUY", Quantity: 10_000_000},
		Security:    securityRequest{CUSIP: "912828ZZ1", Price: 0.985, MinDenomination: 1000},
		Accounts:    []accountRequest{{AccountID: "A", NAV: 100_000_000, AvailableCash: 50_000_000}},
		Policy:      policyRequest{Kind: "PRO_RATA", BaseMetric: "NAV"},
		Constraints: constraintsRequest{RespectCash: true, MinAllocation: 1000, RoundToDenomination: true},
	}
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/allocate", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	h.HandleAllocate(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var allocated allocationResultResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &allocated))

	r := chi.NewRouter()
	r.Get("/history/{id}", h.HandleGetHistoryByID)

	getReq := httptest.NewRequest(http.MethodGet, "/history/"+allocated.ID, nil)
	getW := httptest.NewRecorder()
	r.ServeHTTP(getW, getReq)

	assert.Equal(t, http.StatusOK, getW.Code)

	var fetched allocationResultResponse
	require.NoError(t, json.Unmarshal(getW.Body.Bytes(), &fetched))
	assert.Equal(t, allocated.ID, fetched.ID)
}

func TestHandleGetHistoryByID_NotFound(t *testing.T) {
	h := newTestHandler(t, false)

	r := chi.NewRouter()
	r.Get("/history/{id}", h.HandleGetHistoryByID)

	req := httptest.NewRequest(http.MethodGet, "/history/does-not-exist", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
