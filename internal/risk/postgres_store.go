package risk

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists assessments and analyses in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed assessment store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) RecordAssessment(ctx context.Context, a *Assessment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO risk_assessments (id, customer_id, score, level, assessed_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, a.ID, a.CustomerID, a.Score, string(a.Level), a.AssessedAt, a.Notes)
	if err != nil {
		return fmt.Errorf("failed to record assessment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAssessmentsByCustomer(ctx context.Context, customerID string, limit int) ([]*Assessment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, score, level, assessed_at, notes
		FROM risk_assessments
		WHERE customer_id = $1
		ORDER BY assessed_at DESC
		LIMIT $2
	`, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Assessment
	for rows.Next() {
		var a Assessment
		var level string
		if err := rows.Scan(&a.ID, &a.CustomerID, &a.Score, &level, &a.AssessedAt, &a.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}
		a.Level = Level(level)
		result = append(result, &a)
	}
	return result, rows.Err()
}

func (s *PostgresStore) RecordAnalysis(ctx context.Context, a *TransactionAnalysis) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transaction_analyses
			(id, customer_id, assessment_id, health_status, suspicion_level,
			 variation_from_norm, explanation, raw_patterns, analyzed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.ID, a.CustomerID, a.AssessmentID, string(a.HealthStatus), string(a.SuspicionLevel),
		string(a.VariationFromNorm), a.Explanation, a.RawPatterns, a.AnalyzedAt)
	if err != nil {
		return fmt.Errorf("failed to record analysis: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAnalysesByCustomer(ctx context.Context, customerID string, limit int) ([]*TransactionAnalysis, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, assessment_id, health_status, suspicion_level,
		       variation_from_norm, explanation, raw_patterns, analyzed_at
		FROM transaction_analyses
		WHERE customer_id = $1
		ORDER BY analyzed_at DESC
		LIMIT $2
	`, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*TransactionAnalysis
	for rows.Next() {
		var a TransactionAnalysis
		var health, suspicion, variation string
		if err := rows.Scan(&a.ID, &a.CustomerID, &a.AssessmentID, &health, &suspicion,
			&variation, &a.Explanation, &a.RawPatterns, &a.AnalyzedAt); err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		a.HealthStatus = Severity(health)
		a.SuspicionLevel = Severity(suspicion)
		a.VariationFromNorm = Severity(variation)
		result = append(result, &a)
	}
	return result, rows.Err()
}
