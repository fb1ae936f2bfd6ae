package ledger

import (
	"context"
	"sync"

	"github.com/reflink/payoutledger/internal/domain"
)

// BulkResult is the outcome of one member of a batch advance.
type BulkResult struct {
	RequestID string                `json:"request_id"`
	Request   *domain.PayoutRequest `json:"request,omitempty"`
	Err       error                 `json:"-"`
}

// BulkAdvance applies AdvanceStatus to each id independently. The batch is
// deliberately not atomic: each member acquires its own account lock, so one
// stuck account fails only its own entry. Results are returned in input
// order, one per id.
func (s *Service) BulkAdvance(ctx context.Context, requestIDs []string, target domain.PayoutStatus) []BulkResult {
	results := make([]BulkResult, len(requestIDs))
	if len(requestIDs) == 0 {
		return results
	}

	workers := s.bulkWorkers
	if workers > len(requestIDs) {
		workers = len(requestIDs)
	}

	indexCh := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for idx := range indexCh {
				id := requestIDs[idx]
				req, err := s.AdvanceStatus(ctx, id, target)
				if err != nil {
					results[idx] = BulkResult{RequestID: id, Err: err}
					continue
				}
				results[idx] = BulkResult{RequestID: id, Request: &req}
			}
		}()
	}

Loop:
	for i := 0; i < len(requestIDs); i++ {
		select {
		case indexCh <- i:
		case <-ctx.Done():
			for j := i; j < len(requestIDs); j++ {
				results[j] = BulkResult{RequestID: requestIDs[j], Err: ctx.Err()}
			}
			break Loop
		}
	}
	close(indexCh)
	wg.Wait()
	return results
}
