package risk

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mistagar/credinsight/internal/customer"
)

func testCustomer(verified bool) *customer.Customer {
	return &customer.Customer{
		ID:         "cus_test",
		FullName:   "Ada Example",
		IsVerified: verified,
	}
}

func txn(amount string, dest string) *customer.Transaction {
	return &customer.Transaction{
		CustomerID:         "cus_test",
		Amount:             decimal.RequireFromString(amount),
		DestinationAccount: dest,
		Timestamp:          time.Now(),
	}
}

func login(location string, vpn bool) *customer.LoginActivity {
	return &customer.LoginActivity{
		CustomerID:     "cus_test",
		LoginTime:      time.Now(),
		Location:       location,
		UsedVPNOrProxy: vpn,
	}
}

func TestScore_UnverifiedNoActivity(t *testing.T) {
	a := NewScorer().Score(testCustomer(false), nil, nil)

	if a.Score != 20 {
		t.Fatalf("expected score 20, got %d", a.Score)
	}
	if a.Level != LevelLow {
		t.Fatalf("expected low, got %s", a.Level)
	}
	if a.CustomerID != "cus_test" || a.ID == "" || a.Notes == "" {
		t.Fatal("assessment should carry id, customer id, and notes")
	}
}

func TestScore_VerifiedNoActivityIsZero(t *testing.T) {
	a := NewScorer().Score(testCustomer(true), nil, nil)
	if a.Score != 0 {
		t.Fatalf("expected score 0, got %d", a.Score)
	}
	if a.Level != LevelLow {
		t.Fatalf("expected low, got %s", a.Level)
	}
}

func TestScore_OutlierTransactionAppliesPerTransaction(t *testing.T) {
	// avg = 590 over nine 100s and one 5000; only the 5000 exceeds 5*avg.
	txns := []*customer.Transaction{}
	for i := 0; i < 9; i++ {
		txns = append(txns, txn("100", "acct-base"))
	}
	txns = append(txns, txn("5000", "acct-spike"))

	a := NewScorer().Score(testCustomer(true), txns, nil)
	if a.Score != 25 {
		t.Fatalf("expected 25 (one outlier), got %d", a.Score)
	}
}

func TestScore_EqualAmountsNeverTriggerOutlier(t *testing.T) {
	txns := []*customer.Transaction{}
	for i := 0; i < 10; i++ {
		txns = append(txns, txn("250", "acct-1"))
	}
	a := NewScorer().Score(testCustomer(true), txns, nil)
	if a.Score != 0 {
		t.Fatalf("equal amounts should add nothing, got %d", a.Score)
	}
}

func TestScore_ManySmallTransactions(t *testing.T) {
	txns := []*customer.Transaction{}
	for i := 0; i < 6; i++ {
		txns = append(txns, txn("50", "acct-1"))
	}
	a := NewScorer().Score(testCustomer(true), txns, nil)
	if a.Score != 20 {
		t.Fatalf("expected 20 for >5 small transactions, got %d", a.Score)
	}
}

func TestScore_ExactlyFiveSmallTransactionsDoNotTrigger(t *testing.T) {
	txns := []*customer.Transaction{}
	for i := 0; i < 5; i++ {
		txns = append(txns, txn("50", "acct-1"))
	}
	a := NewScorer().Score(testCustomer(true), txns, nil)
	if a.Score != 0 {
		t.Fatalf("exactly 5 small transactions should add nothing, got %d", a.Score)
	}
}

func TestScore_ManyDistinctDestinations(t *testing.T) {
	txns := []*customer.Transaction{
		txn("500", "acct-1"),
		txn("500", "acct-2"),
		txn("500", "acct-3"),
		txn("500", "acct-4"),
	}
	a := NewScorer().Score(testCustomer(true), txns, nil)
	if a.Score != 15 {
		t.Fatalf("expected 15 for >3 destinations, got %d", a.Score)
	}
}

func TestScore_VPNAndLocations(t *testing.T) {
	logins := []*customer.LoginActivity{
		login("Oslo", true),
		login("Lagos", false),
		login("Lima", false),
		login("Berlin", false),
		login("Osaka", false),
	}
	a := NewScorer().Score(testCustomer(true), nil, logins)

	// 15 (VPN) + 15 (5 distinct locations) = 30, still low.
	if a.Score != 30 {
		t.Fatalf("expected 30, got %d", a.Score)
	}
	if a.Level != LevelLow {
		t.Fatalf("expected low, got %s", a.Level)
	}
}

func TestScore_LevelBoundaries(t *testing.T) {
	tests := []struct {
		score int
		want  Level
	}{
		{0, LevelLow},
		{39, LevelLow},
		{40, LevelMedium},
		{69, LevelMedium},
		{70, LevelHigh},
		{120, LevelHigh},
	}
	for _, tt := range tests {
		if got := LevelForScore(tt.score); got != tt.want {
			t.Errorf("LevelForScore(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestScore_SumIsNotClampedTo100(t *testing.T) {
	// The parser clamps its score to 100; the rule scorer does not.
	// Kept as observed. 20 unverified + 25 outlier + 20 small txns +
	// 15 destinations + 15 VPN + 15 locations = 110.
	txns := []*customer.Transaction{}
	for i := 0; i < 9; i++ {
		txns = append(txns, txn("50", fmt.Sprintf("acct-%d", i)))
	}
	txns = append(txns, txn("5000", "acct-spike"))
	logins := []*customer.LoginActivity{
		login("Oslo", true),
		login("Lagos", false),
		login("Lima", false),
		login("Berlin", false),
	}

	a := NewScorer().Score(testCustomer(false), txns, logins)
	if a.Score != 110 {
		t.Fatalf("expected unclamped score 110, got %d", a.Score)
	}
	if a.Level != LevelHigh {
		t.Fatalf("expected high, got %s", a.Level)
	}
}

func TestScore_RandomizedInputsHoldInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	scorer := NewScorer()

	for i := 0; i < 200; i++ {
		var txns []*customer.Transaction
		for j := 0; j < rng.Intn(12); j++ {
			txns = append(txns, txn(
				fmt.Sprintf("%d", rng.Intn(10000)),
				fmt.Sprintf("acct-%d", rng.Intn(6)),
			))
		}
		var logins []*customer.LoginActivity
		for j := 0; j < rng.Intn(8); j++ {
			logins = append(logins, login(
				fmt.Sprintf("city-%d", rng.Intn(6)),
				rng.Intn(4) == 0,
			))
		}

		a := scorer.Score(testCustomer(rng.Intn(2) == 0), txns, logins)
		if a.Score < 0 {
			t.Fatalf("score must be non-negative, got %d", a.Score)
		}
		if a.Level != LevelForScore(a.Score) {
			t.Fatalf("level %s inconsistent with score %d", a.Level, a.Score)
		}
	}
}
