package domain

import "time"

type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutProcessing PayoutStatus = "processing"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutFailed     PayoutStatus = "failed"
	PayoutCancelled  PayoutStatus = "cancelled"
)

// KnownStatus reports whether s is a recognized payout status.
func KnownStatus(s PayoutStatus) bool {
	switch s {
	case PayoutPending, PayoutProcessing, PayoutCompleted, PayoutFailed, PayoutCancelled:
		return true
	}
	return false
}

// transitions is the complete set of legal status moves. failed -> pending is
// the retry path; completed and cancelled are terminal.
var transitions = map[PayoutStatus][]PayoutStatus{
	PayoutPending:    {PayoutProcessing, PayoutFailed, PayoutCancelled},
	PayoutProcessing: {PayoutCompleted, PayoutFailed, PayoutCancelled},
	PayoutFailed:     {PayoutPending},
}

// CanTransition reports whether moving from to target is legal.
func CanTransition(from, to PayoutStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// PayoutRequest is a single disbursement instance. Fee and Net are quoted
// once at creation and never recomputed; a re-quote means a new request.
// Requests are never deleted, failed and cancelled ones stay for audit.
type PayoutRequest struct {
	ID          string       `json:"id"`
	AffiliateID string       `json:"affiliate_id"`
	Method      PayoutMethod `json:"method"`
	Amount      Money        `json:"requested_amount"`
	Fee         Money        `json:"processing_fee"`
	Net         Money        `json:"net_amount"`
	Status      PayoutStatus `json:"status"`
	RetryCount  int          `json:"retry_count"`
	Reference   string       `json:"reference"`
	Notes       string       `json:"notes,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"last_updated_at"`
}
