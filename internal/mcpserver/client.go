package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the configuration for connecting to the CredInsight platform.
type Config struct {
	APIURL string // Base URL, e.g. "http://localhost:8080"
}

// CredInsightClient is a pure HTTP client for the CredInsight platform API.
type CredInsightClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewCredInsightClient creates a new client for the CredInsight platform.
func NewCredInsightClient(cfg Config) *CredInsightClient {
	return &CredInsightClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the platform.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the platform and returns the response body.
func (c *CredInsightClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// GetCustomer fetches one customer record.
func (c *CredInsightClient) GetCustomer(ctx context.Context, customerID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/api/customers/"+customerID, nil, nil)
}

// ListCustomers lists customer records.
func (c *CredInsightClient) ListCustomers(ctx context.Context, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, http.MethodGet, "/api/customers", q, nil)
}

// AssessRisk runs the deterministic rule-based risk assessment.
func (c *CredInsightClient) AssessRisk(ctx context.Context, customerID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/api/risk/assess/"+customerID, nil, nil)
}

// AssessRiskAI runs the AI-assisted risk assessment.
func (c *CredInsightClient) AssessRiskAI(ctx context.Context, customerID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/api/ai/assess-risk/"+customerID, nil, nil)
}

// AnalyzeTransactions runs the AI transaction pattern analysis.
func (c *CredInsightClient) AnalyzeTransactions(ctx context.Context, customerID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/api/ai/analyze-transactions/"+customerID, nil, nil)
}

// ListAssessments returns a customer's assessment history.
func (c *CredInsightClient) ListAssessments(ctx context.Context, customerID string, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, http.MethodGet, "/api/customers/"+customerID+"/assessments", q, nil)
}

// AIStatus reports AI backend availability and circuit breaker state.
func (c *CredInsightClient) AIStatus(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/health/ai-status", nil, nil)
}
