//go:build integration

package customer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mistagar/credinsight/internal/testutil"
)

func setupStore(t *testing.T) (*PostgresStore, func()) {
	t.Helper()
	db, cleanup := testutil.PGTest(t)
	return NewPostgresStore(db), cleanup
}

func TestPostgresCustomer_CreateAndGet(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	cust := &Customer{
		ID:               "cus_test000000000000000001",
		FullName:         "Ada Obi",
		Email:            "ada@example.com",
		PhoneNumber:      "+2348012345678",
		Address:          "12 Marina Rd, Lagos",
		NationalIDNumber: "A123456789",
		DocumentType:     "passport",
		IsVerified:       true,
		CreatedAt:        now,
	}
	if err := store.Create(ctx, cust); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.Get(ctx, cust.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.FullName != "Ada Obi" {
		t.Errorf("FullName: got %s, want Ada Obi", got.FullName)
	}
	if got.Email != "ada@example.com" {
		t.Errorf("Email: got %s, want ada@example.com", got.Email)
	}
	if !got.IsVerified {
		t.Error("IsVerified: got false, want true")
	}
	if got.DocumentType != "passport" {
		t.Errorf("DocumentType: got %s, want passport", got.DocumentType)
	}
}

func TestPostgresCustomer_GetNotFound(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	_, err := store.Get(context.Background(), "cus_deadbeefdeadbeefdeadbeef")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresCustomer_ListLimit(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		cust := &Customer{
			ID:        fmt.Sprintf("cus_test0000000000000001%02d", i),
			FullName:  "Customer",
			Email:     "c@example.com",
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		}
		if err := store.Create(ctx, cust); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	list, err := store.List(ctx, 3)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 customers, got %d", len(list))
	}
	// Newest first.
	if list[0].CreatedAt.Before(list[1].CreatedAt) {
		t.Error("expected descending created_at order")
	}
}

func TestPostgresCustomer_DeleteCascades(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	cust := &Customer{
		ID:        "cus_test000000000000000002",
		FullName:  "Bayo Ade",
		Email:     "bayo@example.com",
		CreatedAt: time.Now().UTC(),
	}
	if err := store.Create(ctx, cust); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	txn := &Transaction{
		ID:                 "txn_test000000000000000001",
		CustomerID:         cust.ID,
		Amount:             decimal.NewFromInt(250),
		SourceAccount:      "acct-1",
		DestinationAccount: "acct-2",
		Timestamp:          time.Now().UTC(),
	}
	if err := store.AddTransaction(ctx, txn); err != nil {
		t.Fatalf("AddTransaction failed: %v", err)
	}
	login := &LoginActivity{
		ID:         "log_test000000000000000001",
		CustomerID: cust.ID,
		LoginTime:  time.Now().UTC(),
		IPAddress:  "203.0.113.7",
		Location:   "Lagos, NG",
		Device:     "iPhone 15",
	}
	if err := store.AddLogin(ctx, login); err != nil {
		t.Fatalf("AddLogin failed: %v", err)
	}

	if err := store.Delete(ctx, cust.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := store.Get(ctx, cust.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	txns, err := store.ListTransactions(ctx, cust.ID)
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(txns) != 0 {
		t.Errorf("expected cascaded transaction delete, got %d rows", len(txns))
	}
	logins, err := store.ListLogins(ctx, cust.ID)
	if err != nil {
		t.Fatalf("ListLogins failed: %v", err)
	}
	if len(logins) != 0 {
		t.Errorf("expected cascaded login delete, got %d rows", len(logins))
	}
}

func TestPostgresCustomer_TransactionAmountRoundTrip(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	cust := &Customer{
		ID:        "cus_test000000000000000003",
		FullName:  "Chi Eze",
		Email:     "chi@example.com",
		CreatedAt: time.Now().UTC(),
	}
	if err := store.Create(ctx, cust); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	amount, _ := decimal.NewFromString("1234.56789")
	txn := &Transaction{
		ID:         "txn_test000000000000000002",
		CustomerID: cust.ID,
		Amount:     amount,
		Timestamp:  time.Now().UTC(),
	}
	if err := store.AddTransaction(ctx, txn); err != nil {
		t.Fatalf("AddTransaction failed: %v", err)
	}

	txns, err := store.ListTransactions(ctx, cust.ID)
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txns))
	}
	if !txns[0].Amount.Equal(amount) {
		t.Errorf("Amount: got %s, want %s", txns[0].Amount, amount)
	}
}

func TestPostgresCustomer_UpdateRiskProfile(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	cust := &Customer{
		ID:        "cus_test000000000000000004",
		FullName:  "Dele Ojo",
		Email:     "dele@example.com",
		CreatedAt: time.Now().UTC(),
	}
	if err := store.Create(ctx, cust); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.UpdateRiskProfile(ctx, cust.ID, 85, "high"); err != nil {
		t.Fatalf("UpdateRiskProfile failed: %v", err)
	}

	got, err := store.Get(ctx, cust.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.RiskLevel != "high" {
		t.Errorf("RiskLevel: got %s, want high", got.RiskLevel)
	}
	if got.RiskScore != 85 {
		t.Errorf("RiskScore: got %d, want 85", got.RiskScore)
	}

	if err := store.UpdateRiskProfile(ctx, "cus_deadbeefdeadbeefdeadbeef", 10, "low"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown customer, got %v", err)
	}
}
