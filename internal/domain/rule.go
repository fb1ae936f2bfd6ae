package domain

import "fmt"

type EventType string

const (
	EventPerClick EventType = "per_click"
	EventPerSale  EventType = "per_sale"
)

type ApprovalType string

const (
	ApprovalManual    ApprovalType = "manual"
	ApprovalAutomatic ApprovalType = "automatic"
)

type ValueType string

const (
	ValueFixed      ValueType = "fixed"
	ValuePercentage ValueType = "percentage"
)

// CommissionRule describes how a campaign converts a tracked event into a
// commission credit. Rules are owned by campaign configuration; the ledger
// only reads them.
type CommissionRule struct {
	EventType    EventType    `json:"event_type"`
	Enabled      bool         `json:"enabled"`
	ApprovalType ApprovalType `json:"approval_type"`
	ValueType    ValueType    `json:"value_type"`
	// FixedAmount is the credit for ValueFixed rules.
	FixedAmount Money `json:"fixed_amount,omitempty"`
	// RateBps is the commission rate in basis points for ValuePercentage
	// rules, 0..10000 (= 0%..100%).
	RateBps int64 `json:"rate_bps,omitempty"`
}

// CommissionEvent is a click or sale reported by the upstream tracker.
// EventID must be unique per event; the ledger dedups on it.
type CommissionEvent struct {
	EventID     string    `json:"event_id"`
	AffiliateID string    `json:"affiliate_id"`
	CampaignID  string    `json:"campaign_id"`
	EventType   EventType `json:"event_type"`
	// BaseAmount is the order/sale amount; required for percentage rules.
	BaseAmount *Money `json:"base_amount,omitempty"`
}

// Validate checks the rule's own consistency.
func (r CommissionRule) Validate() error {
	switch r.EventType {
	case EventPerClick, EventPerSale:
	default:
		return fmt.Errorf("%w: unknown event type %q", ErrInvalidInput, r.EventType)
	}
	switch r.ApprovalType {
	case ApprovalManual, ApprovalAutomatic:
	default:
		return fmt.Errorf("%w: unknown approval type %q", ErrInvalidInput, r.ApprovalType)
	}
	switch r.ValueType {
	case ValueFixed:
		if r.FixedAmount.Units < 0 {
			return fmt.Errorf("%w: fixed commission", ErrNegativeAmount)
		}
	case ValuePercentage:
		if r.RateBps < 0 || r.RateBps > bpsDenom {
			return fmt.Errorf("%w: rate %d bps outside [0,10000]", ErrInvalidInput, r.RateBps)
		}
	default:
		return fmt.Errorf("%w: unknown value type %q", ErrInvalidInput, r.ValueType)
	}
	return nil
}

// Evaluate computes the commission credit the event earns under this rule.
// A disabled rule never produces a credit.
func (r CommissionRule) Evaluate(ev CommissionEvent) (Money, error) {
	if err := r.Validate(); err != nil {
		return Money{}, err
	}
	if !r.Enabled {
		return Money{}, ErrRuleDisabled
	}
	if ev.EventType != r.EventType {
		return Money{}, fmt.Errorf("%w: rule %s, event %s", ErrEventTypeMismatch, r.EventType, ev.EventType)
	}
	switch r.ValueType {
	case ValueFixed:
		return r.FixedAmount, nil
	default:
		if ev.BaseAmount == nil {
			return Money{}, ErrMissingBaseAmount
		}
		return ev.BaseAmount.PercentOf(r.RateBps)
	}
}
