package customer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// PostgresStore persists customers in PostgreSQL. Schema lives in the
// goose migrations under migrations/.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed customer store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, c *Customer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers
			(id, full_name, email, phone_number, address, national_id_number,
			 document_type, is_verified, risk_level, risk_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		c.ID, c.FullName, c.Email, c.PhoneNumber, c.Address, c.NationalIDNumber,
		c.DocumentType, c.IsVerified, c.RiskLevel, c.RiskScore, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Customer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, full_name, email, phone_number, address, national_id_number,
		       document_type, is_verified, risk_level, risk_score, created_at
		FROM customers
		WHERE id = $1
	`, id)

	var c Customer
	err := row.Scan(&c.ID, &c.FullName, &c.Email, &c.PhoneNumber, &c.Address,
		&c.NationalIDNumber, &c.DocumentType, &c.IsVerified, &c.RiskLevel,
		&c.RiskScore, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]*Customer, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, full_name, email, phone_number, address, national_id_number,
		       document_type, is_verified, risk_level, risk_score, created_at
		FROM customers
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.FullName, &c.Email, &c.PhoneNumber, &c.Address,
			&c.NationalIDNumber, &c.DocumentType, &c.IsVerified, &c.RiskLevel,
			&c.RiskScore, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		result = append(result, &c)
	}
	return result, rows.Err()
}

// Delete removes the customer; transactions and login activities go with
// it via ON DELETE CASCADE.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateRiskProfile(ctx context.Context, id string, score int, level string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers SET risk_score = $2, risk_level = $3 WHERE id = $1
	`, id, score, level)
	if err != nil {
		return fmt.Errorf("failed to update risk profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AddTransaction(ctx context.Context, txn *Transaction) error {
	if txn.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions
			(id, customer_id, amount, source_account, destination_account, ts)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		txn.ID, txn.CustomerID, txn.Amount.String(), txn.SourceAccount,
		txn.DestinationAccount, txn.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to add transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTransactions(ctx context.Context, customerID string) ([]*Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, amount, source_account, destination_account, ts
		FROM transactions
		WHERE customer_id = $1
		ORDER BY ts DESC
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Transaction
	for rows.Next() {
		var txn Transaction
		var amount string
		if err := rows.Scan(&txn.ID, &txn.CustomerID, &amount, &txn.SourceAccount,
			&txn.DestinationAccount, &txn.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txn.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("failed to parse transaction amount: %w", err)
		}
		result = append(result, &txn)
	}
	return result, rows.Err()
}

func (s *PostgresStore) AddLogin(ctx context.Context, login *LoginActivity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO login_activities
			(id, customer_id, login_time, ip_address, location, device, used_vpn_or_proxy)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		login.ID, login.CustomerID, login.LoginTime, login.IPAddress,
		login.Location, login.Device, login.UsedVPNOrProxy,
	)
	if err != nil {
		return fmt.Errorf("failed to add login activity: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListLogins(ctx context.Context, customerID string) ([]*LoginActivity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, login_time, ip_address, location, device, used_vpn_or_proxy
		FROM login_activities
		WHERE customer_id = $1
		ORDER BY login_time DESC
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list login activities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*LoginActivity
	for rows.Next() {
		var login LoginActivity
		if err := rows.Scan(&login.ID, &login.CustomerID, &login.LoginTime, &login.IPAddress,
			&login.Location, &login.Device, &login.UsedVPNOrProxy); err != nil {
			return nil, fmt.Errorf("failed to scan login activity: %w", err)
		}
		result = append(result, &login)
	}
	return result, rows.Err()
}
