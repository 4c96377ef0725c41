package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/mistagar/credinsight/internal/customer"
	"github.com/mistagar/credinsight/internal/idgen"
	"github.com/mistagar/credinsight/internal/logging"
	"github.com/mistagar/credinsight/internal/metrics"
	"github.com/mistagar/credinsight/internal/validation"
)

// createCustomer handles POST /api/customers
func (s *Server) createCustomer(c *gin.Context) {
	ctx := c.Request.Context()

	var req struct {
		FullName         string `json:"fullName" binding:"required"`
		Email            string `json:"email" binding:"required"`
		PhoneNumber      string `json:"phoneNumber"`
		Address          string `json:"address"`
		NationalIDNumber string `json:"nationalIdNumber"`
		DocumentType     string `json:"documentType"`
		IsVerified       bool   `json:"isVerified"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "fullName and email are required",
		})
		return
	}

	if !validation.IsValidEmail(req.Email) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_email",
			"message": "email must be a valid address",
		})
		return
	}
	if req.DocumentType != "" && !validation.IsValidDocumentType(req.DocumentType) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_document_type",
			"message": "documentType must be one of: passport, national_id, drivers_license, voters_card",
		})
		return
	}

	cust := &customer.Customer{
		ID:               idgen.WithPrefix("cus_"),
		FullName:         validation.SanitizeString(req.FullName, 200),
		Email:            validation.SanitizeString(req.Email, 320),
		PhoneNumber:      validation.SanitizeString(req.PhoneNumber, 32),
		Address:          validation.SanitizeString(req.Address, validation.MaxStringLength),
		NationalIDNumber: validation.SanitizeString(req.NationalIDNumber, 64),
		DocumentType:     req.DocumentType,
		IsVerified:       req.IsVerified,
		CreatedAt:        time.Now(),
	}

	if err := s.customers.Create(ctx, cust); err != nil {
		logging.L(ctx).Error("failed to create customer", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to create customer",
		})
		return
	}

	metrics.CustomersCreatedTotal.Inc()
	s.realtimeHub.BroadcastCustomerCreated(map[string]interface{}{
		"customerId": cust.ID,
		"fullName":   cust.FullName,
	})

	logging.L(ctx).Info("customer created", "customer_id", cust.ID)
	c.JSON(http.StatusCreated, cust)
}

// listCustomers handles GET /api/customers
func (s *Server) listCustomers(c *gin.Context) {
	ctx := c.Request.Context()

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	customers, err := s.customers.List(ctx, limit)
	if err != nil {
		logging.L(ctx).Error("failed to list customers", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list customers",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"customers": customers,
		"count":     len(customers),
	})
}

// getCustomer handles GET /api/customers/:customerId
func (s *Server) getCustomer(c *gin.Context) {
	ctx := c.Request.Context()

	cust, err := s.customers.Get(ctx, c.Param("customerId"))
	if err != nil {
		s.customerError(c, err, "Failed to get customer")
		return
	}

	c.JSON(http.StatusOK, cust)
}

// deleteCustomer handles DELETE /api/customers/:customerId
func (s *Server) deleteCustomer(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("customerId")

	if err := s.customers.Delete(ctx, id); err != nil {
		s.customerError(c, err, "Failed to delete customer")
		return
	}

	logging.L(ctx).Info("customer deleted", "customer_id", id)
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// addTransaction handles POST /api/customers/:customerId/transactions
func (s *Server) addTransaction(c *gin.Context) {
	ctx := c.Request.Context()
	customerID := c.Param("customerId")

	var req struct {
		Amount             string    `json:"amount" binding:"required"`
		SourceAccount      string    `json:"sourceAccount"`
		DestinationAccount string    `json:"destinationAccount"`
		Timestamp          time.Time `json:"timestamp"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "amount is required",
		})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_amount",
			"message": "amount must be a decimal number",
		})
		return
	}

	txn := &customer.Transaction{
		ID:                 idgen.WithPrefix("txn_"),
		CustomerID:         customerID,
		Amount:             amount,
		SourceAccount:      validation.SanitizeString(req.SourceAccount, 64),
		DestinationAccount: validation.SanitizeString(req.DestinationAccount, 64),
		Timestamp:          req.Timestamp,
	}
	if txn.Timestamp.IsZero() {
		txn.Timestamp = time.Now()
	}

	if err := s.customers.AddTransaction(ctx, txn); err != nil {
		if errors.Is(err, customer.ErrInvalidAmount) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_amount",
				"message": "amount must be non-negative",
			})
			return
		}
		s.customerError(c, err, "Failed to record transaction")
		return
	}

	metrics.TransactionsRecordedTotal.Inc()
	c.JSON(http.StatusCreated, txn)
}

// listTransactions handles GET /api/customers/:customerId/transactions
func (s *Server) listTransactions(c *gin.Context) {
	ctx := c.Request.Context()

	txns, err := s.customers.ListTransactions(ctx, c.Param("customerId"))
	if err != nil {
		s.customerError(c, err, "Failed to list transactions")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": txns,
		"count":        len(txns),
	})
}

// addLogin handles POST /api/customers/:customerId/logins
func (s *Server) addLogin(c *gin.Context) {
	ctx := c.Request.Context()
	customerID := c.Param("customerId")

	var req struct {
		LoginTime      time.Time `json:"loginTime"`
		IPAddress      string    `json:"ipAddress"`
		Location       string    `json:"location"`
		Device         string    `json:"device"`
		UsedVPNOrProxy bool      `json:"usedVpnOrProxy"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	login := &customer.LoginActivity{
		ID:             idgen.WithPrefix("log_"),
		CustomerID:     customerID,
		LoginTime:      req.LoginTime,
		IPAddress:      validation.SanitizeString(req.IPAddress, 64),
		Location:       validation.SanitizeString(req.Location, 128),
		Device:         validation.SanitizeString(req.Device, 128),
		UsedVPNOrProxy: req.UsedVPNOrProxy,
	}
	if login.LoginTime.IsZero() {
		login.LoginTime = time.Now()
	}

	if err := s.customers.AddLogin(ctx, login); err != nil {
		s.customerError(c, err, "Failed to record login activity")
		return
	}

	c.JSON(http.StatusCreated, login)
}

// listLogins handles GET /api/customers/:customerId/logins
func (s *Server) listLogins(c *gin.Context) {
	ctx := c.Request.Context()

	logins, err := s.customers.ListLogins(ctx, c.Param("customerId"))
	if err != nil {
		s.customerError(c, err, "Failed to list login activity")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logins": logins,
		"count":  len(logins),
	})
}

// customerError maps store errors to HTTP responses
func (s *Server) customerError(c *gin.Context, err error, message string) {
	if errors.Is(err, customer.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "customer_not_found",
			"message": "No customer with that ID",
		})
		return
	}
	logging.L(c.Request.Context()).Error("store error", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "internal_error",
		"message": message,
	})
}
