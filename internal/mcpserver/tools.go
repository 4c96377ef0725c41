package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the CredInsight MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolGetCustomer = mcp.NewTool("get_customer",
	mcp.WithDescription(
		"Fetch a KYC customer record by ID. "+
			"Returns identity fields, verification status, and the current risk profile "+
			"(score and level from the most recent assessment)."),
	mcp.WithString("customer_id",
		mcp.Required(),
		mcp.Description("The customer ID (e.g. 'cus_1a2b3c...')")),
)

var ToolListCustomers = mcp.NewTool("list_customers",
	mcp.WithDescription(
		"Browse registered KYC customers with their verification status and risk profiles. "+
			"Use this to find customer IDs before assessing risk."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of customers to return (default 20)")),
)

var ToolAssessCustomerRisk = mcp.NewTool("assess_customer_risk",
	mcp.WithDescription(
		"Run a risk assessment for a customer based on their transactions and login activity. "+
			"The rule-based assessment is always available; set use_ai to also get an "+
			"independent AI assessment of the same data. "+
			"Scores of 70+ are high risk, 40-69 medium, below 40 low."),
	mcp.WithString("customer_id",
		mcp.Required(),
		mcp.Description("The customer ID to assess")),
	mcp.WithBoolean("use_ai",
		mcp.Description("Also run the AI-assisted assessment (may be throttled or unavailable)")),
)

var ToolAnalyzeTransactions = mcp.NewTool("analyze_transactions",
	mcp.WithDescription(
		"Ask the AI backend to analyze a customer's newest transaction against their history. "+
			"Returns health status, suspicion level, and variation from the customer's norm, "+
			"each graded mild/moderate/severe/critical, with an explanation."),
	mcp.WithString("customer_id",
		mcp.Required(),
		mcp.Description("The customer ID whose transactions to analyze")),
)

var ToolAIServiceStatus = mcp.NewTool("ai_service_status",
	mcp.WithDescription(
		"Check whether the AI analysis backend is available. "+
			"Reports the circuit breaker state and, when open, how long until it resets. "+
			"Rule-based assessment keeps working while the AI backend is down."),
)
