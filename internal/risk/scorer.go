package risk

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/mistagar/credinsight/internal/customer"
	"github.com/mistagar/credinsight/internal/idgen"
)

// Rule point values. Each rule is evaluated once over the full dataset and
// contributions are additive; the outlier-transaction rule applies once per
// qualifying transaction.
const (
	pointsUnverified       = 20
	pointsOutlierTxn       = 25
	pointsManySmallTxns    = 20
	pointsManyDestinations = 15
	pointsVPNLogin         = 15
	pointsManyLocations    = 15

	outlierMultiplier     = 5
	smallTxnLimit         = 100
	smallTxnCountLimit    = 5
	destinationLimit      = 3
	distinctLocationLimit = 3
)

const scorerNotes = "Assessed based on recent transactions and login activity."

var assessmentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "credinsight",
	Subsystem: "risk",
	Name:      "assessments_total",
	Help:      "Deterministic risk assessments produced, by level.",
}, []string{"level"})

func init() {
	prometheus.MustRegister(assessmentsTotal)
}

// Scorer computes deterministic rule-based risk scores. It is stateless
// and safe for concurrent use; it must keep working when the AI backend
// is degraded.
type Scorer struct{}

// NewScorer creates a rule-based scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score evaluates a customer snapshot and returns a fresh assessment.
//
// The summed score is intentionally not clamped to 100: the upper bound is
// open while the AI-parsed score is clamped. Observed behavior, kept as is
// until product says otherwise.
func (s *Scorer) Score(c *customer.Customer, txns []*customer.Transaction, logins []*customer.LoginActivity) *Assessment {
	score := 0

	if !c.IsVerified {
		score += pointsUnverified
	}

	avg := decimal.Zero
	if len(txns) > 0 {
		sum := decimal.Zero
		for _, txn := range txns {
			sum = sum.Add(txn.Amount)
		}
		avg = sum.Div(decimal.NewFromInt(int64(len(txns))))
	}

	outlierBar := avg.Mul(decimal.NewFromInt(outlierMultiplier))
	smallTxns := 0
	destinations := make(map[string]struct{})
	for _, txn := range txns {
		if txn.Amount.GreaterThan(outlierBar) {
			score += pointsOutlierTxn
		}
		if txn.Amount.LessThan(decimal.NewFromInt(smallTxnLimit)) {
			smallTxns++
		}
		destinations[txn.DestinationAccount] = struct{}{}
	}
	if smallTxns > smallTxnCountLimit {
		score += pointsManySmallTxns
	}
	if len(destinations) > destinationLimit {
		score += pointsManyDestinations
	}

	locations := make(map[string]struct{})
	vpnSeen := false
	for _, login := range logins {
		if login.UsedVPNOrProxy {
			vpnSeen = true
		}
		locations[login.Location] = struct{}{}
	}
	if vpnSeen {
		score += pointsVPNLogin
	}
	if len(locations) > distinctLocationLimit {
		score += pointsManyLocations
	}

	level := LevelForScore(score)
	assessmentsTotal.WithLabelValues(string(level)).Inc()

	return &Assessment{
		ID:         idgen.WithPrefix("rsk_"),
		CustomerID: c.ID,
		Score:      score,
		Level:      level,
		AssessedAt: time.Now(),
		Notes:      scorerNotes,
	}
}
