package domain

import (
	"errors"
	"testing"
)

func TestMoneyAddSub(t *testing.T) {
	t.Parallel()

	a := Money{Units: 10000, Currency: "USD"}
	b := Money{Units: 2500, Currency: "USD"}

	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if sum.Units != 12500 {
		t.Fatalf("expected 12500, got %d", sum.Units)
	}

	diff, err := a.Sub(b)
	if err != nil {
		t.Fatalf("sub: %v", err)
	}
	if diff.Units != 7500 {
		t.Fatalf("expected 7500, got %d", diff.Units)
	}
}

func TestMoneySubNeverGoesNegative(t *testing.T) {
	t.Parallel()

	a := Money{Units: 100, Currency: "USD"}
	b := Money{Units: 101, Currency: "USD"}
	if _, err := a.Sub(b); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestMoneyCurrencyMismatch(t *testing.T) {
	t.Parallel()

	usd := Money{Units: 100, Currency: "USD"}
	eur := Money{Units: 100, Currency: "EUR"}

	if _, err := usd.Add(eur); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("add: expected ErrCurrencyMismatch, got %v", err)
	}
	if _, err := usd.Sub(eur); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("sub: expected ErrCurrencyMismatch, got %v", err)
	}
	if _, err := usd.Cmp(eur); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("cmp: expected ErrCurrencyMismatch, got %v", err)
	}
}

func TestMoneyPercentOfRoundsHalfUp(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		units int64
		bps   int64
		want  int64
	}{
		{"exact", 10000, 300, 300},          // 3% of $100.00 = $3.00
		{"round up", 101, 250, 3},           // 2.5% of $1.01 = 2.525c -> 3c
		{"half up", 50, 100, 1},             // 1% of $0.50 = 0.5c -> 1c
		{"round down", 101, 100, 1},         // 1% of $1.01 = 1.01c -> 1c
		{"zero rate", 10000, 0, 0},          //
		{"full rate", 12345, 10000, 12345},  // 100%
		{"large", 1000000000, 290, 29000000}, // 2.9% of $10M
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := Money{Units: tc.units, Currency: "USD"}
			got, err := m.PercentOf(tc.bps)
			if err != nil {
				t.Fatalf("percent: %v", err)
			}
			if got.Units != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got.Units)
			}
			if got.Currency != "USD" {
				t.Fatalf("currency lost: %q", got.Currency)
			}
		})
	}
}

func TestNewMoneyRejectsBadInput(t *testing.T) {
	t.Parallel()

	if _, err := NewMoney(-1, "USD"); !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("expected ErrNegativeAmount, got %v", err)
	}
	if _, err := NewMoney(100, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
