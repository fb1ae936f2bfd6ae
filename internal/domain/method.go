package domain

import "fmt"

type PayoutMethod string

const (
	MethodStripe       PayoutMethod = "stripe"
	MethodPayPal       PayoutMethod = "paypal"
	MethodWise         PayoutMethod = "wise"
	MethodBankTransfer PayoutMethod = "bank_transfer"
)

// KnownMethod reports whether m names a supported payment rail.
func KnownMethod(m PayoutMethod) bool {
	switch m {
	case MethodStripe, MethodPayPal, MethodWise, MethodBankTransfer:
		return true
	}
	return false
}

// MethodProfile is the per-rail payout configuration supplied by the
// country/method configuration source.
type MethodProfile struct {
	Method             PayoutMethod `json:"method"`
	Configured         bool         `json:"configured"`
	FeeBps             int64        `json:"fee_bps"`
	MinAmount          Money        `json:"min_amount"`
	MaxAmount          Money        `json:"max_amount"`
	SupportedCountries []string     `json:"supported_countries"`
	// ProcessingTime is informational only, e.g. "1-3 business days".
	ProcessingTime string `json:"processing_time,omitempty"`
}

// SupportsCountry reports whether the rail pays out to the given ISO country
// code.
func (p MethodProfile) SupportsCountry(country string) bool {
	for _, c := range p.SupportedCountries {
		if c == country {
			return true
		}
	}
	return false
}

// ValidatePayout runs the payout preconditions in the order callers observe
// them: configuration, country, then amount limits. Funds checks belong to
// the ledger, not the profile.
func (p MethodProfile) ValidatePayout(amount Money, country string) error {
	if !p.Configured {
		return fmt.Errorf("%w: %s", ErrMethodNotConfigured, p.Method)
	}
	if !p.SupportsCountry(country) {
		return fmt.Errorf("%w: %s via %s", ErrUnsupportedCountry, country, p.Method)
	}
	if below, err := amount.Cmp(p.MinAmount); err != nil {
		return err
	} else if below < 0 {
		return fmt.Errorf("%w: %s below minimum %s", ErrAmountOutOfRange, amount, p.MinAmount)
	}
	if above, err := amount.Cmp(p.MaxAmount); err != nil {
		return err
	} else if above > 0 {
		return fmt.Errorf("%w: %s above maximum %s", ErrAmountOutOfRange, amount, p.MaxAmount)
	}
	return nil
}
