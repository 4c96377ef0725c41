package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mistagar/credinsight/internal/customer"
	"github.com/mistagar/credinsight/internal/logging"
	"github.com/mistagar/credinsight/internal/risk"
	"github.com/mistagar/credinsight/internal/traces"
)

// assessRisk handles POST /api/risk/assess/:customerId
//
// Rule-based scoring only; works with or without the AI backend.
func (s *Server) assessRisk(c *gin.Context) {
	ctx, span := traces.StartSpan(c.Request.Context(), "risk.assess",
		traces.CustomerID(c.Param("customerId")))
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	cust, txns, logins, ok := s.loadCustomerSnapshot(c)
	if !ok {
		return
	}

	assessment := s.scorer.Score(cust, txns, logins)
	span.SetAttributes(traces.AssessmentID(assessment.ID), traces.RiskLevel(string(assessment.Level)))

	if err := s.recordAssessment(c, assessment); err != nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{"assessment": assessment})
}

// listAssessments handles GET /api/customers/:customerId/assessments
func (s *Server) listAssessments(c *gin.Context) {
	ctx := c.Request.Context()
	customerID := c.Param("customerId")

	if _, err := s.customers.Get(ctx, customerID); err != nil {
		s.customerError(c, err, "Failed to list assessments")
		return
	}

	assessments, err := s.risks.ListAssessmentsByCustomer(ctx, customerID, listLimit(c))
	if err != nil {
		logging.L(ctx).Error("failed to list assessments", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list assessments",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"assessments": assessments,
		"count":       len(assessments),
	})
}

// listAnalyses handles GET /api/customers/:customerId/analyses
func (s *Server) listAnalyses(c *gin.Context) {
	ctx := c.Request.Context()
	customerID := c.Param("customerId")

	if _, err := s.customers.Get(ctx, customerID); err != nil {
		s.customerError(c, err, "Failed to list analyses")
		return
	}

	analyses, err := s.risks.ListAnalysesByCustomer(ctx, customerID, listLimit(c))
	if err != nil {
		logging.L(ctx).Error("failed to list analyses", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list analyses",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"analyses": analyses,
		"count":    len(analyses),
	})
}

// loadCustomerSnapshot fetches the customer with both histories, writing
// the error response itself when anything fails.
func (s *Server) loadCustomerSnapshot(c *gin.Context) (*customer.Customer, []*customer.Transaction, []*customer.LoginActivity, bool) {
	ctx := c.Request.Context()
	customerID := c.Param("customerId")

	cust, err := s.customers.Get(ctx, customerID)
	if err != nil {
		s.customerError(c, err, "Failed to load customer")
		return nil, nil, nil, false
	}
	txns, err := s.customers.ListTransactions(ctx, customerID)
	if err != nil {
		s.customerError(c, err, "Failed to load transactions")
		return nil, nil, nil, false
	}
	logins, err := s.customers.ListLogins(ctx, customerID)
	if err != nil {
		s.customerError(c, err, "Failed to load login activity")
		return nil, nil, nil, false
	}
	return cust, txns, logins, true
}

// recordAssessment persists an assessment, mirrors it onto the customer
// profile, and fans out webhook and realtime events. Writes the error
// response itself on failure.
func (s *Server) recordAssessment(c *gin.Context, a *risk.Assessment) error {
	ctx := c.Request.Context()

	if err := s.risks.RecordAssessment(ctx, a); err != nil {
		logging.L(ctx).Error("failed to record assessment", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to record assessment",
		})
		return err
	}

	// Profile mirror is best-effort; the assessment itself is the record.
	if err := s.customers.UpdateRiskProfile(ctx, a.CustomerID, a.Score, string(a.Level)); err != nil {
		logging.L(ctx).Warn("failed to update customer risk profile", "error", err)
	}

	s.emitter.EmitAssessmentCreated(a.CustomerID, a.ID, a.Score, string(a.Level))
	if a.Level == risk.LevelHigh {
		s.emitter.EmitAssessmentHighRisk(a.CustomerID, a.ID, a.Score)
	}
	s.realtimeHub.BroadcastAssessment(map[string]interface{}{
		"customerId":   a.CustomerID,
		"assessmentId": a.ID,
		"score":        a.Score,
		"level":        string(a.Level),
	})

	logging.L(ctx).Info("risk assessment recorded",
		"customer_id", a.CustomerID,
		"assessment_id", a.ID,
		"score", a.Score,
		"level", a.Level,
	)
	return nil
}

// listLimit reads the limit query param, defaulting to 100
func listLimit(c *gin.Context) int {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	return limit
}
