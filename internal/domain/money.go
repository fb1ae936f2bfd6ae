package domain

import "fmt"

// Money is a fixed-point currency amount. Units holds the amount in the
// currency's minor unit (cents for USD), so balance arithmetic never touches
// binary floating point.
type Money struct {
	Units    int64  `json:"amount_minor"`
	Currency string `json:"currency"`
}

// bpsDenom is the divisor for basis-point percentages (1 bp = 0.01%).
const bpsDenom = 10000

// NewMoney builds a non-negative Money value.
func NewMoney(units int64, currency string) (Money, error) {
	if units < 0 {
		return Money{}, fmt.Errorf("%w: amount %d", ErrNegativeAmount, units)
	}
	if currency == "" {
		return Money{}, fmt.Errorf("%w: currency is required", ErrInvalidInput)
	}
	return Money{Units: units, Currency: currency}, nil
}

// Zero returns the zero amount in the given currency.
func Zero(currency string) Money {
	return Money{Units: 0, Currency: currency}
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Units == 0
}

// Add returns m + other. Both operands must share a currency.
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Units: m.Units + other.Units, Currency: m.Currency}, nil
}

// Sub returns m - other. The result must be non-negative; balances in this
// ledger never go below zero, so a would-be-negative result is reported as
// ErrInsufficientFunds.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	if other.Units > m.Units {
		return Money{}, fmt.Errorf("%w: %d - %d %s", ErrInsufficientFunds, m.Units, other.Units, m.Currency)
	}
	return Money{Units: m.Units - other.Units, Currency: m.Currency}, nil
}

// PercentOf returns the given basis-point share of m, rounded half-up to the
// minor unit. 250 bps = 2.5%.
func (m Money) PercentOf(bps int64) (Money, error) {
	if bps < 0 {
		return Money{}, fmt.Errorf("%w: negative rate %d bps", ErrInvalidInput, bps)
	}
	raw := m.Units * bps
	units := raw / bpsDenom
	if raw%bpsDenom*2 >= bpsDenom {
		units++
	}
	return Money{Units: units, Currency: m.Currency}, nil
}

// Cmp compares two amounts of the same currency: -1 if m < other, 0 if equal,
// +1 if m > other.
func (m Money) Cmp(other Money) (int, error) {
	if err := m.sameCurrency(other); err != nil {
		return 0, err
	}
	switch {
	case m.Units < other.Units:
		return -1, nil
	case m.Units > other.Units:
		return 1, nil
	default:
		return 0, nil
	}
}

func (m Money) String() string {
	return fmt.Sprintf("%d.%02d %s", m.Units/100, m.Units%100, m.Currency)
}

func (m Money) sameCurrency(other Money) error {
	if m.Currency != other.Currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return nil
}
