package store

import (
	"context"

	"github.com/reflink/payoutledger/internal/domain"
)

// Journal is the persistence boundary behind the ledger service. Every
// balance-mutating operation writes through it while holding the account
// lock, so implementations must make each call atomic: either all rows in
// the call are written or none are.
type Journal interface {
	// RecordCommission persists a commission application: the event id (for
	// dedup across restarts) plus the account's new balances. A replayed
	// event id fails with domain.ErrDuplicateCommissionEvent.
	RecordCommission(ctx context.Context, eventID string, amount domain.Money, account domain.Account) error

	// RecordPayout persists a payout request (insert or status update)
	// together with the account's new balances.
	RecordPayout(ctx context.Context, req domain.PayoutRequest, account domain.Account) error

	// LoadState restores the full ledger state at boot.
	LoadState(ctx context.Context) (State, error)

	// Ping checks the backing store is reachable.
	Ping(ctx context.Context) error

	Close()
}

// State is a point-in-time snapshot of everything the ledger owns.
type State struct {
	Accounts []domain.Account
	Payouts  []domain.PayoutRequest
	EventIDs []string
}
