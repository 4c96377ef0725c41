// Package risk implements deterministic rule-based KYC risk scoring and
// the parsing of AI analysis output into structured records.
//
// The rule scorer is pure and always available; AI enrichment is optional
// and produces its own independent assessment. The two are never merged —
// both are persisted and returned side by side.
package risk

import (
	"context"
	"time"
)

// Level is the categorical risk bucket derived from a numeric score.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Score thresholds for level mapping.
const (
	HighThreshold   = 70
	MediumThreshold = 40
)

// LevelForScore maps a numeric score to its categorical level.
func LevelForScore(score int) Level {
	switch {
	case score >= HighThreshold:
		return LevelHigh
	case score >= MediumThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Severity grades a single dimension of an AI transaction analysis.
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityCritical Severity = "critical"
)

// Assessment is one risk evaluation of a customer. Assessments accumulate
// historically and are never mutated after creation.
type Assessment struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customerId"`
	Score      int       `json:"score"`
	Level      Level     `json:"level"`
	AssessedAt time.Time `json:"assessedAt"`
	Notes      string    `json:"notes"`
}

// TransactionAnalysis is an AI-derived pattern analysis linked to one
// customer and the assessment it was produced alongside.
type TransactionAnalysis struct {
	ID                string    `json:"id"`
	CustomerID        string    `json:"customerId"`
	AssessmentID      string    `json:"assessmentId"`
	HealthStatus      Severity  `json:"healthStatus"`
	SuspicionLevel    Severity  `json:"suspicionLevel"`
	VariationFromNorm Severity  `json:"variationFromNorm"`
	Explanation       string    `json:"explanation"`
	RawPatterns       string    `json:"rawPatterns"` // raw model output, kept verbatim
	AnalyzedAt        time.Time `json:"analyzedAt"`
}

// Store persists assessments and analyses for the audit trail.
type Store interface {
	RecordAssessment(ctx context.Context, a *Assessment) error
	ListAssessmentsByCustomer(ctx context.Context, customerID string, limit int) ([]*Assessment, error)
	RecordAnalysis(ctx context.Context, a *TransactionAnalysis) error
	ListAnalysesByCustomer(ctx context.Context, customerID string, limit int) ([]*TransactionAnalysis, error)
}
