package domain

import "time"

// Account holds one affiliate's balances. Credit is commission earned and
// available to request; Pending is the sum of in-flight payout requests.
// Only the ledger service mutates these.
type Account struct {
	AffiliateID string    `json:"affiliate_id"`
	Credit      Money     `json:"credit_balance"`
	Pending     Money     `json:"pending_payout_balance"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewAccount creates an empty account in the given currency. Accounts are
// created lazily on an affiliate's first commission credit and never deleted.
func NewAccount(affiliateID, currency string, now time.Time) Account {
	return Account{
		AffiliateID: affiliateID,
		Credit:      Zero(currency),
		Pending:     Zero(currency),
		CreatedAt:   now,
	}
}
