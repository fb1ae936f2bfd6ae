package store

import (
	"context"
	"sync"

	"github.com/reflink/payoutledger/internal/domain"
)

// Memory is an in-process Journal for single-node deployments and tests.
// It keeps the same atomicity contract as the Postgres implementation: a
// call either lands fully or returns an error having written nothing.
type Memory struct {
	mu       sync.Mutex
	accounts map[string]domain.Account
	payouts  map[string]domain.PayoutRequest
	order    []string
	events   map[string]struct{}
	failWith error
}

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]domain.Account),
		payouts:  make(map[string]domain.PayoutRequest),
		events:   make(map[string]struct{}),
	}
}

// FailWith forces every subsequent write to return err. Tests use it to
// exercise the ledger's no-partial-effect guarantee.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

func (m *Memory) RecordCommission(ctx context.Context, eventID string, amount domain.Money, account domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, seen := m.events[eventID]; seen {
		return domain.ErrDuplicateCommissionEvent
	}
	m.events[eventID] = struct{}{}
	m.accounts[account.AffiliateID] = account
	return nil
}

func (m *Memory) RecordPayout(ctx context.Context, req domain.PayoutRequest, account domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, exists := m.payouts[req.ID]; !exists {
		m.order = append(m.order, req.ID)
	}
	m.payouts[req.ID] = req
	m.accounts[account.AffiliateID] = account
	return nil
}

func (m *Memory) LoadState(ctx context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var st State
	for _, acc := range m.accounts {
		st.Accounts = append(st.Accounts, acc)
	}
	for _, id := range m.order {
		st.Payouts = append(st.Payouts, m.payouts[id])
	}
	for id := range m.events {
		st.EventIDs = append(st.EventIDs, id)
	}
	return st, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() {}
