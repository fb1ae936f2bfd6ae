package ledger

import (
	"github.com/reflink/payoutledger/internal/domain"
)

// Stats is an aggregate view over the payout request set. All sums share one
// currency; mixed-currency request sets fail with ErrCurrencyMismatch.
type Stats struct {
	TotalRequested  domain.Money `json:"total_requested"`
	TotalCompleted  domain.Money `json:"total_completed"`
	TotalPending    domain.Money `json:"total_pending"`
	TotalProcessing domain.Money `json:"total_processing"`
	TotalFailed     domain.Money `json:"total_failed"`
	TotalCancelled  domain.Money `json:"total_cancelled"`
	// FeesCollected counts fees on completed payouts only; fees on failed or
	// cancelled requests were never charged by the rail.
	FeesCollected domain.Money               `json:"fees_collected"`
	Counts        map[domain.PayoutStatus]int `json:"counts"`
}

// ComputeStats aggregates matching payout requests. It works on a snapshot
// taken under the registry read lock; no account lock is held, so a slightly
// stale read during concurrent writes is acceptable for reporting.
func (s *Service) ComputeStats(f Filter) (Stats, error) {
	requests := s.ListPayouts(f)

	currency := ""
	if len(requests) > 0 {
		currency = requests[0].Amount.Currency
	}

	stats := Stats{
		TotalRequested:  domain.Zero(currency),
		TotalCompleted:  domain.Zero(currency),
		TotalPending:    domain.Zero(currency),
		TotalProcessing: domain.Zero(currency),
		TotalFailed:     domain.Zero(currency),
		TotalCancelled:  domain.Zero(currency),
		FeesCollected:   domain.Zero(currency),
		Counts:          make(map[domain.PayoutStatus]int),
	}

	var err error
	for _, req := range requests {
		stats.Counts[req.Status]++
		if stats.TotalRequested, err = stats.TotalRequested.Add(req.Amount); err != nil {
			return Stats{}, err
		}
		switch req.Status {
		case domain.PayoutCompleted:
			if stats.TotalCompleted, err = stats.TotalCompleted.Add(req.Amount); err != nil {
				return Stats{}, err
			}
			if stats.FeesCollected, err = stats.FeesCollected.Add(req.Fee); err != nil {
				return Stats{}, err
			}
		case domain.PayoutPending:
			if stats.TotalPending, err = stats.TotalPending.Add(req.Amount); err != nil {
				return Stats{}, err
			}
		case domain.PayoutProcessing:
			if stats.TotalProcessing, err = stats.TotalProcessing.Add(req.Amount); err != nil {
				return Stats{}, err
			}
		case domain.PayoutFailed:
			if stats.TotalFailed, err = stats.TotalFailed.Add(req.Amount); err != nil {
				return Stats{}, err
			}
		case domain.PayoutCancelled:
			if stats.TotalCancelled, err = stats.TotalCancelled.Add(req.Amount); err != nil {
				return Stats{}, err
			}
		}
	}
	return stats, nil
}
