package customer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func seedCustomer(t *testing.T, s *MemoryStore, id string) {
	t.Helper()
	err := s.Create(context.Background(), &Customer{
		ID:        id,
		FullName:  "Ada Example",
		Email:     "ada@example.com",
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
}

func TestMemoryStore_CreateGet(t *testing.T) {
	s := NewMemoryStore()
	seedCustomer(t, s, "cus_1")

	got, err := s.Get(context.Background(), "cus_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.FullName != "Ada Example" {
		t.Fatalf("unexpected customer: %+v", got)
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "cus_missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_DeleteCascades(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedCustomer(t, s, "cus_1")

	err := s.AddTransaction(ctx, &Transaction{
		ID:         "txn_1",
		CustomerID: "cus_1",
		Amount:     decimal.NewFromInt(100),
		Timestamp:  time.Now(),
	})
	if err != nil {
		t.Fatalf("add transaction: %v", err)
	}
	err = s.AddLogin(ctx, &LoginActivity{
		ID:         "log_1",
		CustomerID: "cus_1",
		LoginTime:  time.Now(),
	})
	if err != nil {
		t.Fatalf("add login: %v", err)
	}

	if err := s.Delete(ctx, "cus_1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// Owned records are gone with the customer.
	if _, err := s.ListTransactions(ctx, "cus_1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for transactions, got %v", err)
	}
	if _, err := s.ListLogins(ctx, "cus_1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for logins, got %v", err)
	}
}

func TestMemoryStore_AddTransactionRejectsNegative(t *testing.T) {
	s := NewMemoryStore()
	seedCustomer(t, s, "cus_1")

	err := s.AddTransaction(context.Background(), &Transaction{
		ID:         "txn_1",
		CustomerID: "cus_1",
		Amount:     decimal.NewFromInt(-5),
	})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestMemoryStore_AddTransactionUnknownCustomer(t *testing.T) {
	s := NewMemoryStore()
	err := s.AddTransaction(context.Background(), &Transaction{
		ID:         "txn_1",
		CustomerID: "cus_missing",
		Amount:     decimal.NewFromInt(5),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_UpdateRiskProfile(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedCustomer(t, s, "cus_1")

	if err := s.UpdateRiskProfile(ctx, "cus_1", 85, "high"); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := s.Get(ctx, "cus_1")
	if got.RiskScore != 85 || got.RiskLevel != "high" {
		t.Fatalf("risk profile not updated: %+v", got)
	}
}

func TestMemoryStore_ListNewestFirstWithLimit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"cus_1", "cus_2", "cus_3"} {
		err := s.Create(ctx, &Customer{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, err := s.List(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "cus_3" || got[1].ID != "cus_2" {
		t.Fatalf("unexpected list order: %+v", got)
	}
}
