package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mistagar/credinsight/internal/aiclient"
	"github.com/mistagar/credinsight/internal/customer"
	"github.com/mistagar/credinsight/internal/idgen"
	"github.com/mistagar/credinsight/internal/logging"
	"github.com/mistagar/credinsight/internal/prompt"
	"github.com/mistagar/credinsight/internal/risk"
	"github.com/mistagar/credinsight/internal/traces"
	"github.com/mistagar/credinsight/internal/validation"
)

// requireAI writes a 503 when no AI backend is configured
func (s *Server) requireAI(c *gin.Context) bool {
	if s.ai == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "ai_disabled",
			"message": "No AI backend configured. Set AI_API_KEY to enable AI analysis.",
		})
		return false
	}
	return true
}

// aiError maps AI client failures to HTTP responses
func (s *Server) aiError(c *gin.Context, err error) {
	var unavailable *aiclient.ServiceUnavailableError
	if errors.As(err, &unavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":             "ai_unavailable",
			"message":           "AI service is cooling down after repeated rate limits.",
			"retryAfterSeconds": int(unavailable.RetryAfter.Seconds()),
		})
		return
	}

	var rateLimited *aiclient.RateLimitedError
	if errors.As(err, &rateLimited) {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":   "ai_rate_limited",
			"message": "AI service rate limited after retries. Try again shortly.",
		})
		return
	}

	logging.L(c.Request.Context()).Error("AI backend error", "error", err)
	c.JSON(http.StatusBadGateway, gin.H{
		"error":   "ai_backend_error",
		"message": "AI backend request failed",
	})
}

// sendMessage handles POST /api/ai/send-message
func (s *Server) sendMessage(c *gin.Context) {
	if !s.requireAI(c) {
		return
	}
	ctx := c.Request.Context()

	var req struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "message is required",
		})
		return
	}

	reply, err := s.chat.Send(ctx, validation.SanitizeString(req.Message, validation.MaxStringLength))
	if err != nil {
		s.aiError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

// chatHistory handles GET /api/ai/chat-history
func (s *Server) chatHistory(c *gin.Context) {
	if !s.requireAI(c) {
		return
	}

	messages := s.chat.History()
	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"count":    len(messages),
	})
}

// addSystemMessage handles POST /api/ai/system-message
func (s *Server) addSystemMessage(c *gin.Context) {
	if !s.requireAI(c) {
		return
	}

	var req struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "message is required",
		})
		return
	}

	s.chat.AddSystemMessage(validation.SanitizeString(req.Message, validation.MaxStringLength))
	c.JSON(http.StatusOK, gin.H{"added": true})
}

// aiAssessRisk handles POST /api/ai/assess-risk/:customerId
//
// Runs the deterministic scorer first, then asks the AI backend for its own
// assessment of the same snapshot. Both results are persisted; neither is
// merged into the other.
func (s *Server) aiAssessRisk(c *gin.Context) {
	if !s.requireAI(c) {
		return
	}

	ctx, span := traces.StartSpan(c.Request.Context(), "ai.assess_risk",
		traces.CustomerID(c.Param("customerId")))
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	cust, txns, logins, ok := s.loadCustomerSnapshot(c)
	if !ok {
		return
	}

	// Deterministic result stands even if the AI call fails below.
	assessment := s.scorer.Score(cust, txns, logins)
	if err := s.recordAssessment(c, assessment); err != nil {
		return
	}

	reply, err := s.ai.SendWithRetry(ctx, prompt.RiskAssessment(cust, txns, logins), s.cfg.AIMaxRetries)
	if err != nil {
		s.aiError(c, err)
		return
	}

	aiAssessment := s.parser.ParseAssessment(cust.ID, reply)
	span.SetAttributes(traces.AssessmentID(aiAssessment.ID), traces.RiskLevel(string(aiAssessment.Level)))
	if err := s.recordAssessment(c, aiAssessment); err != nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"assessment":   assessment,
		"aiAssessment": aiAssessment,
		"aiAnalysis":   reply,
	})
}

// analyzeTransactions handles POST /api/ai/analyze-transactions/:customerId
//
// The newest transaction is analyzed against the rest of the history. The
// resulting analysis links to the customer's latest assessment; when none
// exists yet a neutral one is created first.
func (s *Server) analyzeTransactions(c *gin.Context) {
	if !s.requireAI(c) {
		return
	}

	ctx, span := traces.StartSpan(c.Request.Context(), "ai.analyze_transactions",
		traces.CustomerID(c.Param("customerId")))
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	cust, txns, _, ok := s.loadCustomerSnapshot(c)
	if !ok {
		return
	}
	if len(txns) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "no_transactions",
			"message": "Customer has no transactions to analyze",
		})
		return
	}

	assessment, err := s.latestOrDefaultAssessment(c, cust)
	if err != nil {
		return
	}

	candidate := newestTransaction(txns)
	history := make([]*customer.Transaction, 0, len(txns)-1)
	for _, txn := range txns {
		if txn.ID != candidate.ID {
			history = append(history, txn)
		}
	}

	reply, err := s.ai.SendWithRetry(ctx, prompt.TransactionAnalysis(history, candidate), s.cfg.AIMaxRetries)
	if err != nil {
		s.aiError(c, err)
		return
	}

	analysis := s.parser.ParseTransactionAnalysis(cust.ID, assessment.ID, reply)
	span.SetAttributes(traces.AnalysisID(analysis.ID))

	if err := s.risks.RecordAnalysis(ctx, analysis); err != nil {
		logging.L(ctx).Error("failed to record analysis", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to record analysis",
		})
		return
	}

	s.emitter.EmitAnalysisCompleted(cust.ID, analysis.ID, string(analysis.SuspicionLevel))
	s.realtimeHub.BroadcastAnalysis(map[string]interface{}{
		"customerId":     cust.ID,
		"analysisId":     analysis.ID,
		"suspicionLevel": string(analysis.SuspicionLevel),
		"healthStatus":   string(analysis.HealthStatus),
	})

	logging.L(ctx).Info("transaction analysis recorded",
		"customer_id", cust.ID,
		"analysis_id", analysis.ID,
		"suspicion", analysis.SuspicionLevel,
	)

	c.JSON(http.StatusOK, gin.H{"analysis": analysis})
}

// latestOrDefaultAssessment returns the customer's most recent assessment,
// creating a neutral medium one when the customer has never been assessed.
// Writes the error response itself on failure.
func (s *Server) latestOrDefaultAssessment(c *gin.Context, cust *customer.Customer) (*risk.Assessment, error) {
	ctx := c.Request.Context()

	assessments, err := s.risks.ListAssessmentsByCustomer(ctx, cust.ID, 1)
	if err != nil {
		logging.L(ctx).Error("failed to load assessments", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load assessments",
		})
		return nil, err
	}
	if len(assessments) > 0 {
		return assessments[0], nil
	}

	neutral := &risk.Assessment{
		ID:         idgen.WithPrefix("rsk_"),
		CustomerID: cust.ID,
		Score:      50,
		Level:      risk.LevelMedium,
		AssessedAt: time.Now(),
		Notes:      "Auto-created to anchor a transaction analysis.",
	}
	if err := s.risks.RecordAssessment(ctx, neutral); err != nil {
		logging.L(ctx).Error("failed to record anchor assessment", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to record assessment",
		})
		return nil, err
	}
	return neutral, nil
}

func newestTransaction(txns []*customer.Transaction) *customer.Transaction {
	newest := txns[0]
	for _, txn := range txns[1:] {
		if txn.Timestamp.After(newest.Timestamp) {
			newest = txn
		}
	}
	return newest
}

// kycCheck handles POST /api/ai/kyc-check/:customerId
//
// The caller submits the KYC fields the customer claimed during onboarding;
// the AI judges how well that identity hangs together as a whole.
func (s *Server) kycCheck(c *gin.Context) {
	if !s.requireAI(c) {
		return
	}

	ctx, span := traces.StartSpan(c.Request.Context(), "ai.kyc_check",
		traces.CustomerID(c.Param("customerId")))
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var claimed json.RawMessage
	if err := c.ShouldBindJSON(&claimed); err != nil || len(claimed) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Request body must be the claimed KYC record as JSON",
		})
		return
	}

	cust, _, _, ok := s.loadCustomerSnapshot(c)
	if !ok {
		return
	}

	reply, err := s.ai.SendWithRetry(ctx, prompt.KYCCrossCheck(string(claimed)), s.cfg.AIMaxRetries)
	if err != nil {
		s.aiError(c, err)
		return
	}

	logging.L(ctx).Info("kyc cross-check completed", "customer_id", cust.ID)
	c.JSON(http.StatusOK, gin.H{"analysis": reply})
}

// locationCheck handles POST /api/ai/location-check/:customerId
func (s *Server) locationCheck(c *gin.Context) {
	if !s.requireAI(c) {
		return
	}

	ctx, span := traces.StartSpan(c.Request.Context(), "ai.location_check",
		traces.CustomerID(c.Param("customerId")))
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	cust, _, logins, ok := s.loadCustomerSnapshot(c)
	if !ok {
		return
	}
	if len(logins) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "no_login_activity",
			"message": "Customer has no login activity to analyze",
		})
		return
	}

	reply, err := s.ai.SendWithRetry(ctx, prompt.LocationCheck(logins), s.cfg.AIMaxRetries)
	if err != nil {
		s.aiError(c, err)
		return
	}

	logging.L(ctx).Info("location check completed", "customer_id", cust.ID)
	c.JSON(http.StatusOK, gin.H{"analysis": reply})
}

// profileCheck handles POST /api/ai/profile-check/:customerId
func (s *Server) profileCheck(c *gin.Context) {
	if !s.requireAI(c) {
		return
	}

	ctx, span := traces.StartSpan(c.Request.Context(), "ai.profile_check",
		traces.CustomerID(c.Param("customerId")))
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	cust, _, _, ok := s.loadCustomerSnapshot(c)
	if !ok {
		return
	}

	reply, err := s.ai.SendWithRetry(ctx, prompt.PersonalInfo(cust), s.cfg.AIMaxRetries)
	if err != nil {
		s.aiError(c, err)
		return
	}

	logging.L(ctx).Info("profile check completed", "customer_id", cust.ID)
	c.JSON(http.StatusOK, gin.H{"analysis": reply})
}
