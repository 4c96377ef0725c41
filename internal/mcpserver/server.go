package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all CredInsight tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("credinsight", "1.0.0")
	client := NewCredInsightClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolGetCustomer, h.HandleGetCustomer)
	s.AddTool(ToolListCustomers, h.HandleListCustomers)
	s.AddTool(ToolAssessCustomerRisk, h.HandleAssessCustomerRisk)
	s.AddTool(ToolAnalyzeTransactions, h.HandleAnalyzeTransactions)
	s.AddTool(ToolAIServiceStatus, h.HandleAIServiceStatus)

	return s
}
