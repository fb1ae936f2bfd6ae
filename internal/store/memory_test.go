package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/reflink/payoutledger/internal/domain"
)

func TestMemoryRejectsDuplicateCommissionEvent(t *testing.T) {
	t.Parallel()
	mem := NewMemory()

	acc := domain.NewAccount("aff1", "USD", time.Now())
	acc.Credit = domain.Money{Units: 100, Currency: "USD"}
	amount := domain.Money{Units: 100, Currency: "USD"}

	if err := mem.RecordCommission(context.Background(), "e1", amount, acc); err != nil {
		t.Fatalf("first record: %v", err)
	}
	err := mem.RecordCommission(context.Background(), "e1", amount, acc)
	if !errors.Is(err, domain.ErrDuplicateCommissionEvent) {
		t.Fatalf("expected ErrDuplicateCommissionEvent, got %v", err)
	}
}

func TestMemoryLoadStateRoundTrip(t *testing.T) {
	t.Parallel()
	mem := NewMemory()
	now := time.Now()

	acc := domain.NewAccount("aff1", "USD", now)
	acc.Credit = domain.Money{Units: 500, Currency: "USD"}
	if err := mem.RecordCommission(context.Background(), "e1", acc.Credit, acc); err != nil {
		t.Fatalf("record commission: %v", err)
	}

	req := domain.PayoutRequest{
		ID:          "req-1",
		AffiliateID: "aff1",
		Method:      domain.MethodPayPal,
		Amount:      domain.Money{Units: 500, Currency: "USD"},
		Fee:         domain.Money{Units: 15, Currency: "USD"},
		Net:         domain.Money{Units: 485, Currency: "USD"},
		Status:      domain.PayoutPending,
		Reference:   "PAY-2026-000001",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	acc.Credit = domain.Money{Units: 0, Currency: "USD"}
	acc.Pending = domain.Money{Units: 500, Currency: "USD"}
	if err := mem.RecordPayout(context.Background(), req, acc); err != nil {
		t.Fatalf("record payout: %v", err)
	}

	st, err := mem.LoadState(context.Background())
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if len(st.Accounts) != 1 || st.Accounts[0].Pending.Units != 500 {
		t.Fatalf("accounts wrong: %+v", st.Accounts)
	}
	if len(st.Payouts) != 1 || st.Payouts[0].ID != "req-1" {
		t.Fatalf("payouts wrong: %+v", st.Payouts)
	}
	if len(st.EventIDs) != 1 || st.EventIDs[0] != "e1" {
		t.Fatalf("event ids wrong: %+v", st.EventIDs)
	}
}

func TestMemoryFailWithBlocksWrites(t *testing.T) {
	t.Parallel()
	mem := NewMemory()
	boom := errors.New("boom")
	mem.FailWith(boom)

	acc := domain.NewAccount("aff1", "USD", time.Now())
	if err := mem.RecordCommission(context.Background(), "e1", domain.Money{Units: 1, Currency: "USD"}, acc); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}

	st, _ := mem.LoadState(context.Background())
	if len(st.Accounts) != 0 || len(st.EventIDs) != 0 {
		t.Fatalf("failed write left state: %+v", st)
	}
}
