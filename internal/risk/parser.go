package risk

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mistagar/credinsight/internal/idgen"
)

// Parsing never fails the caller: malformed model output degrades to
// default-valued records, it is never surfaced as an error.

const (
	defaultParsedScore = 50
	maxNotesLen        = 500

	defaultExplanation  = "No detailed analysis available"
	fallbackExplanation = "Transaction analysis completed. See raw patterns for details."
)

var (
	// "Risk Score: 85", "score 85", "risk score is 85" — a 1-3 digit number
	// shortly after the keyword.
	scoreRe = regexp.MustCompile(`(?i)(?:risk\s*)?score[^0-9]{0,10}(\d{1,3})`)

	highRiskRe = regexp.MustCompile(`(?i)high[\s-]risk`)
	lowRiskRe  = regexp.MustCompile(`(?i)low[\s-]risk`)

	// First brace-delimited object in the reply. Models tend to wrap the
	// JSON in prose; a non-greedy match pulls out the object itself.
	jsonObjectRe = regexp.MustCompile(`(?s)\{.*?\}`)
)

// Parser extracts structured fields from free-text AI output.
type Parser struct{}

// NewParser creates an AI response parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseAssessment extracts a risk score and level from model output.
// The score defaults to 50 when no recognizable number is present and is
// clamped to [0, 100]. Literal "high risk"/"low risk" mentions override
// the score-derived level.
func (p *Parser) ParseAssessment(customerID, text string) *Assessment {
	score := defaultParsedScore
	if m := scoreRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			score = clamp(n, 0, 100)
		}
	}

	level := LevelMedium
	switch {
	case highRiskRe.MatchString(text) || score >= HighThreshold:
		level = LevelHigh
	case lowRiskRe.MatchString(text) || score <= 30:
		level = LevelLow
	}

	return &Assessment{
		ID:         idgen.WithPrefix("rsk_"),
		CustomerID: customerID,
		Score:      score,
		Level:      level,
		AssessedAt: time.Now(),
		Notes:      truncate(text, maxNotesLen),
	}
}

// transactionAnalysisReply is the four-field JSON shape the transaction
// prompt demands from the model.
type transactionAnalysisReply struct {
	HealthStatus      string `json:"healthStatus"`
	SuspicionLevel    string `json:"suspicionLevel"`
	VariationFromNorm string `json:"variationFromNorm"`
	Explanation       string `json:"explanation"`
}

// ParseTransactionAnalysis decodes the first JSON object found in the model
// output. Missing fields get per-field defaults; if no object decodes at
// all, a fixed default record is returned with the raw text stored verbatim.
func (p *Parser) ParseTransactionAnalysis(customerID, assessmentID, text string) *TransactionAnalysis {
	analysis := &TransactionAnalysis{
		ID:                idgen.WithPrefix("ana_"),
		CustomerID:        customerID,
		AssessmentID:      assessmentID,
		HealthStatus:      SeverityModerate,
		SuspicionLevel:    SeverityMild,
		VariationFromNorm: SeverityMild,
		Explanation:       fallbackExplanation,
		RawPatterns:       text,
		AnalyzedAt:        time.Now(),
	}

	raw := jsonObjectRe.FindString(text)
	if raw == "" {
		return analysis
	}

	var reply transactionAnalysisReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return analysis
	}

	analysis.HealthStatus = severityOrDefault(reply.HealthStatus, SeverityModerate)
	analysis.SuspicionLevel = severityOrDefault(reply.SuspicionLevel, SeverityMild)
	analysis.VariationFromNorm = severityOrDefault(reply.VariationFromNorm, SeverityMild)
	if reply.Explanation != "" {
		analysis.Explanation = reply.Explanation
	} else {
		analysis.Explanation = defaultExplanation
	}
	analysis.RawPatterns = raw
	return analysis
}

func severityOrDefault(s string, def Severity) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityMild:
		return SeverityMild
	case SeverityModerate:
		return SeverityModerate
	case SeveritySevere:
		return SeveritySevere
	case SeverityCritical:
		return SeverityCritical
	default:
		return def
	}
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// truncate cuts s to at most max bytes without splitting a multi-byte rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
