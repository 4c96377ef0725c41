package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test helpers ---

func newTestSetup(handler http.Handler) (*Handlers, func()) {
	ts := httptest.NewServer(handler)
	client := NewCredInsightClient(Config{APIURL: ts.URL})
	h := NewHandlers(client)
	return h, ts.Close
}

func makeRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	if args == nil {
		args = map[string]any{}
	}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "expected at least one content block")
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

// ============================================================
// Client tests
// ============================================================

func TestClient_DoRequest_HTTPError_WithAPIMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "customer_not_found",
			"message": "No customer with that ID",
		})
	}))
	defer ts.Close()

	client := NewCredInsightClient(Config{APIURL: ts.URL})
	_, err := client.GetCustomer(context.Background(), "cus_missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "No customer with that ID")
}

func TestClient_DoRequest_HTTPError_NonJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream timeout"))
	}))
	defer ts.Close()

	client := NewCredInsightClient(Config{APIURL: ts.URL})
	_, err := client.AIStatus(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream timeout")
}

func TestClient_DoRequest_ConnectionRefused(t *testing.T) {
	client := NewCredInsightClient(Config{APIURL: "http://127.0.0.1:1"})
	_, err := client.AIStatus(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
}

func TestClient_DoRequest_CancelledContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Second)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	client := NewCredInsightClient(Config{APIURL: ts.URL})
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately
	_, err := client.AIStatus(ctx)
	require.Error(t, err)
}

func TestClient_ListCustomers_QueryParams(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/customers", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"customers":[],"count":0}`))
	}))
	defer ts.Close()

	client := NewCredInsightClient(Config{APIURL: ts.URL})
	_, err := client.ListCustomers(context.Background(), 5)
	require.NoError(t, err)
}

// ============================================================
// get_customer
// ============================================================

func TestHandleGetCustomer_Success(t *testing.T) {
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/customers/cus_abc123", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":         "cus_abc123",
			"fullName":   "Ada Obi",
			"email":      "ada.obi@example.com",
			"isVerified": false,
			"riskLevel":  "medium",
			"riskScore":  50,
		})
	}))
	defer done()

	result, err := h.HandleGetCustomer(context.Background(), makeRequest(map[string]any{
		"customer_id": "cus_abc123",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Ada Obi")
	assert.Contains(t, text, "NOT verified")
	assert.Contains(t, text, "medium")
}

func TestHandleGetCustomer_MissingID(t *testing.T) {
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("API should not be called without a customer ID")
	}))
	defer done()

	result, err := h.HandleGetCustomer(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "customer_id is required")
}

// ============================================================
// list_customers
// ============================================================

func TestHandleListCustomers_Success(t *testing.T) {
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"customers": []map[string]any{
				{"id": "cus_1", "fullName": "Ada Obi", "email": "ada@x.co", "isVerified": true, "riskLevel": "low", "riskScore": 10},
				{"id": "cus_2", "fullName": "Ben Eze", "email": "ben@x.co", "isVerified": false},
			},
			"count": 2,
		})
	}))
	defer done()

	result, err := h.HandleListCustomers(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Found 2 customer(s)")
	assert.Contains(t, text, "Ada Obi")
	assert.Contains(t, text, "not yet assessed")
}

func TestHandleListCustomers_Empty(t *testing.T) {
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"customers":[],"count":0}`))
	}))
	defer done()

	result, err := h.HandleListCustomers(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, "No customers found.", resultText(t, result))
}

// ============================================================
// assess_customer_risk
// ============================================================

func TestHandleAssessCustomerRisk_RuleBased(t *testing.T) {
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/risk/assess/cus_abc", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"assessment": map[string]any{
				"id":    "rsk_1",
				"score": 50,
				"level": "medium",
				"notes": "Assessed based on recent transactions and login activity.",
			},
		})
	}))
	defer done()

	result, err := h.HandleAssessCustomerRisk(context.Background(), makeRequest(map[string]any{
		"customer_id": "cus_abc",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Rule-based assessment")
	assert.Contains(t, text, "Score: 50 (medium)")
}

func TestHandleAssessCustomerRisk_WithAI(t *testing.T) {
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ai/assess-risk/cus_abc", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"assessment":   map[string]any{"id": "rsk_1", "score": 35, "level": "low"},
			"aiAssessment": map[string]any{"id": "rsk_2", "score": 85, "level": "high"},
			"aiAnalysis":   "Risk Score: 85. Repeated VPN logins.",
		})
	}))
	defer done()

	result, err := h.HandleAssessCustomerRisk(context.Background(), makeRequest(map[string]any{
		"customer_id": "cus_abc",
		"use_ai":      true,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Score: 35 (low)")
	assert.Contains(t, text, "AI assessment (independent)")
	assert.Contains(t, text, "Score: 85 (high)")
	assert.Contains(t, text, "Repeated VPN logins")
}

func TestHandleAssessCustomerRisk_AIUnavailable(t *testing.T) {
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":             "ai_unavailable",
			"message":           "AI service is cooling down after repeated rate limits.",
			"retryAfterSeconds": 270,
		})
	}))
	defer done()

	result, err := h.HandleAssessCustomerRisk(context.Background(), makeRequest(map[string]any{
		"customer_id": "cus_abc",
		"use_ai":      true,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "cooling down")
	assert.Contains(t, text, "Retry without use_ai")
}

// ============================================================
// analyze_transactions
// ============================================================

func TestHandleAnalyzeTransactions_Success(t *testing.T) {
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ai/analyze-transactions/cus_abc", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"analysis": map[string]any{
				"id":                "ana_1",
				"healthStatus":      "moderate",
				"suspicionLevel":    "severe",
				"variationFromNorm": "mild",
				"explanation":       "Unusual spike against history.",
			},
		})
	}))
	defer done()

	result, err := h.HandleAnalyzeTransactions(context.Background(), makeRequest(map[string]any{
		"customer_id": "cus_abc",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Suspicion level: severe")
	assert.Contains(t, text, "Unusual spike against history.")
}

func TestHandleAnalyzeTransactions_NoTransactions(t *testing.T) {
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "no_transactions",
			"message": "Customer has no transactions to analyze",
		})
	}))
	defer done()

	result, err := h.HandleAnalyzeTransactions(context.Background(), makeRequest(map[string]any{
		"customer_id": "cus_abc",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "no transactions to analyze")
}

// ============================================================
// ai_service_status
// ============================================================

func TestHandleAIServiceStatus_Open(t *testing.T) {
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health/ai-status", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"circuitBreakerOpen": true,
			"secondsUntilReset":  120,
			"message":            "AI service temporarily unavailable. Deterministic scoring remains available.",
		})
	}))
	defer done()

	result, err := h.HandleAIServiceStatus(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "UNAVAILABLE")
	assert.Contains(t, text, "120 seconds")
}

func TestHandleAIServiceStatus_Closed(t *testing.T) {
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"circuitBreakerOpen": false,
			"secondsUntilReset":  0,
			"message":            "AI service operating normally.",
		})
	}))
	defer done()

	result, err := h.HandleAIServiceStatus(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "available")
}

// ============================================================
// Formatter edge cases
// ============================================================

func TestFormatCustomerList_BadPayload(t *testing.T) {
	_, err := formatCustomerList(json.RawMessage(`"nope"`))
	require.Error(t, err)
}

func TestFormatAnalysis_MissingEnvelope(t *testing.T) {
	_, err := formatAnalysis(json.RawMessage(`{"other":1}`))
	require.Error(t, err)
}

func TestGetFloat_Fallback(t *testing.T) {
	m := map[string]any{"b": 2.5}
	v, ok := getFloat(m, "a", "b")
	assert.True(t, ok)
	assert.Equal(t, 2.5, v)
}

func TestGetString_NumericCoercion(t *testing.T) {
	m := map[string]any{"score": 42.0}
	assert.Equal(t, "42", getString(m, "score"))
}
