// Package customer holds the KYC domain model: customers with their
// transaction and login-activity histories.
package customer

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Errors
var (
	ErrNotFound      = errors.New("customer: not found")
	ErrInvalidAmount = errors.New("customer: transaction amount must be non-negative")
)

// Customer is a KYC subject. RiskLevel and RiskScore mirror the most
// recent deterministic assessment (see the risk package for level values).
type Customer struct {
	ID               string    `json:"id"`
	FullName         string    `json:"fullName"`
	Email            string    `json:"email"`
	PhoneNumber      string    `json:"phoneNumber"`
	Address          string    `json:"address"`
	NationalIDNumber string    `json:"nationalIdNumber"`
	DocumentType     string    `json:"documentType"` // e.g. passport, driver_license
	IsVerified       bool      `json:"isVerified"`
	RiskLevel        string    `json:"riskLevel"`
	RiskScore        int       `json:"riskScore"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Transaction is an immutable money movement owned by one customer.
type Transaction struct {
	ID                 string          `json:"id"`
	CustomerID         string          `json:"customerId"`
	Amount             decimal.Decimal `json:"amount"`
	SourceAccount      string          `json:"sourceAccount"`
	DestinationAccount string          `json:"destinationAccount"`
	Timestamp          time.Time       `json:"timestamp"`
}

// LoginActivity is an immutable login event owned by one customer.
type LoginActivity struct {
	ID             string    `json:"id"`
	CustomerID     string    `json:"customerId"`
	LoginTime      time.Time `json:"loginTime"`
	IPAddress      string    `json:"ipAddress"`
	Location       string    `json:"location"`
	Device         string    `json:"device"`
	UsedVPNOrProxy bool      `json:"usedVpnOrProxy"`
}

// Store persists customers and their owned histories. Deleting a customer
// deletes its transactions and login activities with it; ownership is
// exclusive.
type Store interface {
	Create(ctx context.Context, c *Customer) error
	Get(ctx context.Context, id string) (*Customer, error)
	List(ctx context.Context, limit int) ([]*Customer, error)
	Delete(ctx context.Context, id string) error
	UpdateRiskProfile(ctx context.Context, id string, score int, level string) error

	AddTransaction(ctx context.Context, txn *Transaction) error
	ListTransactions(ctx context.Context, customerID string) ([]*Transaction, error)

	AddLogin(ctx context.Context, login *LoginActivity) error
	ListLogins(ctx context.Context, customerID string) ([]*LoginActivity, error)
}
