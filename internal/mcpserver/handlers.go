package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *CredInsightClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *CredInsightClient) *Handlers {
	return &Handlers{client: client}
}

// HandleGetCustomer fetches a single customer record.
func (h *Handlers) HandleGetCustomer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	customerID := req.GetString("customer_id", "")
	if customerID == "" {
		return mcp.NewToolResultError("customer_id is required"), nil
	}

	raw, err := h.client.GetCustomer(ctx, customerID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get customer: %v", err)), nil
	}

	text, err := formatCustomer(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse customer: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleListCustomers lists customer records.
func (h *Handlers) HandleListCustomers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)

	raw, err := h.client.ListCustomers(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list customers: %v", err)), nil
	}

	text, err := formatCustomerList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse customers: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleAssessCustomerRisk runs an assessment, optionally AI-backed.
func (h *Handlers) HandleAssessCustomerRisk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	customerID := req.GetString("customer_id", "")
	if customerID == "" {
		return mcp.NewToolResultError("customer_id is required"), nil
	}
	useAI := req.GetBool("use_ai", false)

	if useAI {
		raw, err := h.client.AssessRiskAI(ctx, customerID)
		if err != nil {
			// The deterministic path still works while AI is down.
			return mcp.NewToolResultError(fmt.Sprintf(
				"AI assessment failed: %v\n\n"+
					"Retry without use_ai for the rule-based assessment, "+
					"or check ai_service_status.", err)), nil
		}
		text, err := formatAIAssessment(raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to parse assessment: %v", err)), nil
		}
		return mcp.NewToolResultText(text), nil
	}

	raw, err := h.client.AssessRisk(ctx, customerID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Assessment failed: %v", err)), nil
	}

	text, err := formatAssessmentEnvelope(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse assessment: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleAnalyzeTransactions runs the AI transaction pattern analysis.
func (h *Handlers) HandleAnalyzeTransactions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	customerID := req.GetString("customer_id", "")
	if customerID == "" {
		return mcp.NewToolResultError("customer_id is required"), nil
	}

	raw, err := h.client.AnalyzeTransactions(ctx, customerID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Transaction analysis failed: %v", err)), nil
	}

	text, err := formatAnalysis(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse analysis: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleAIServiceStatus reports AI backend availability.
func (h *Handlers) HandleAIServiceStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.AIStatus(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get AI status: %v", err)), nil
	}

	var status struct {
		CircuitBreakerOpen bool   `json:"circuitBreakerOpen"`
		SecondsUntilReset  int    `json:"secondsUntilReset"`
		Message            string `json:"message"`
	}
	if err := json.Unmarshal(raw, &status); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse AI status: %v", err)), nil
	}

	var sb strings.Builder
	if status.CircuitBreakerOpen {
		sb.WriteString("AI backend: UNAVAILABLE (circuit breaker open)\n")
		fmt.Fprintf(&sb, "Resets in: %d seconds\n", status.SecondsUntilReset)
	} else {
		sb.WriteString("AI backend: available\n")
	}
	if status.Message != "" {
		sb.WriteString(status.Message)
	}

	return mcp.NewToolResultText(sb.String()), nil
}

// --- Formatting helpers ---

func formatCustomer(raw json.RawMessage) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", err
	}
	return customerSummary(m), nil
}

func customerSummary(m map[string]any) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s)\n", getString(m, "fullName"), getString(m, "id"))
	fmt.Fprintf(&sb, "  Email: %s\n", getString(m, "email"))
	if v := getString(m, "documentType"); v != "" {
		fmt.Fprintf(&sb, "  Document: %s\n", v)
	}
	if verified, ok := m["isVerified"].(bool); ok {
		if verified {
			sb.WriteString("  Verification: verified\n")
		} else {
			sb.WriteString("  Verification: NOT verified\n")
		}
	}
	if level := getString(m, "riskLevel"); level != "" {
		score, _ := getFloat(m, "riskScore")
		fmt.Fprintf(&sb, "  Risk: %s (score %.0f)\n", level, score)
	} else {
		sb.WriteString("  Risk: not yet assessed\n")
	}
	return sb.String()
}

func formatCustomerList(raw json.RawMessage) (string, error) {
	var resp struct {
		Customers []map[string]any `json:"customers"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected customers response format")
	}
	if len(resp.Customers) == 0 {
		return "No customers found.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d customer(s):\n\n", len(resp.Customers))
	for i, c := range resp.Customers {
		fmt.Fprintf(&sb, "%d. %s", i+1, customerSummary(c))
		if i < len(resp.Customers)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

func formatAssessmentEnvelope(raw json.RawMessage) (string, error) {
	var resp struct {
		Assessment map[string]any `json:"assessment"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Assessment == nil {
		return "", fmt.Errorf("unexpected assessment response format")
	}
	return "Rule-based assessment:\n" + assessmentSummary(resp.Assessment), nil
}

func formatAIAssessment(raw json.RawMessage) (string, error) {
	var resp struct {
		Assessment   map[string]any `json:"assessment"`
		AIAssessment map[string]any `json:"aiAssessment"`
		AIAnalysis   string         `json:"aiAnalysis"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Assessment == nil {
		return "", fmt.Errorf("unexpected assessment response format")
	}

	var sb strings.Builder
	sb.WriteString("Rule-based assessment:\n")
	sb.WriteString(assessmentSummary(resp.Assessment))
	if resp.AIAssessment != nil {
		sb.WriteString("\nAI assessment (independent):\n")
		sb.WriteString(assessmentSummary(resp.AIAssessment))
	}
	if resp.AIAnalysis != "" {
		sb.WriteString("\nAI analysis:\n")
		sb.WriteString(resp.AIAnalysis)
	}
	return sb.String(), nil
}

func assessmentSummary(m map[string]any) string {
	var sb strings.Builder
	score, _ := getFloat(m, "score")
	fmt.Fprintf(&sb, "  Score: %.0f (%s)\n", score, getString(m, "level"))
	if notes := getString(m, "notes"); notes != "" {
		fmt.Fprintf(&sb, "  Notes: %s\n", notes)
	}
	if id := getString(m, "id"); id != "" {
		fmt.Fprintf(&sb, "  Assessment ID: %s\n", id)
	}
	return sb.String()
}

func formatAnalysis(raw json.RawMessage) (string, error) {
	var resp struct {
		Analysis map[string]any `json:"analysis"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Analysis == nil {
		return "", fmt.Errorf("unexpected analysis response format")
	}
	a := resp.Analysis

	var sb strings.Builder
	sb.WriteString("Transaction pattern analysis:\n")
	fmt.Fprintf(&sb, "  Health status: %s\n", getString(a, "healthStatus"))
	fmt.Fprintf(&sb, "  Suspicion level: %s\n", getString(a, "suspicionLevel"))
	fmt.Fprintf(&sb, "  Variation from norm: %s\n", getString(a, "variationFromNorm"))
	if v := getString(a, "explanation"); v != "" {
		fmt.Fprintf(&sb, "  Explanation: %s\n", v)
	}
	if id := getString(a, "id"); id != "" {
		fmt.Fprintf(&sb, "  Analysis ID: %s\n", id)
	}
	return sb.String(), nil
}

// getString extracts a string value from a map, trying multiple key names.
func getString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
			if f, ok := v.(float64); ok {
				return fmt.Sprintf("%g", f)
			}
		}
	}
	return ""
}

// getFloat extracts a float64 value from a map, trying multiple key names.
func getFloat(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if f, ok := v.(float64); ok {
				return f, true
			}
		}
	}
	return 0, false
}
