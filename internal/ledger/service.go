package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reflink/payoutledger/internal/domain"
	"github.com/reflink/payoutledger/internal/store"
)

const (
	defaultLockWait    = 2 * time.Second
	defaultLockRetries = 2
	defaultBulkWorkers = 4
)

// Options configures a Service.
type Options struct {
	Journal store.Journal
	Logger  *zap.Logger
	// LockWait bounds how long a single operation waits for an account lock.
	LockWait time.Duration
	// LockRetries is how many times a timed-out acquisition is retried
	// internally before domain.ErrLockTimeout surfaces to the caller.
	LockRetries int
	// BulkWorkers sizes the BulkAdvance worker pool.
	BulkWorkers int
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Service is the authoritative commission and payout ledger. It owns every
// affiliate account and payout request; balance-mutating operations for one
// affiliate are serialized by a per-account lock, operations on different
// affiliates run in parallel.
type Service struct {
	journal     store.Journal
	log         *zap.Logger
	now         func() time.Time
	lockWait    time.Duration
	lockRetries int
	bulkWorkers int

	locks *accountLocks

	mu       sync.RWMutex
	accounts map[string]domain.Account
	payouts  map[string]domain.PayoutRequest
	order    []string
	events   map[string]struct{}
	staged   map[string]stagedCredit
	methods  map[domain.PayoutMethod]domain.MethodProfile
	refSeq   int64
}

// stagedCredit is an evaluated commission waiting on a manual approval
// signal. It is not yet part of any balance.
type stagedCredit struct {
	AffiliateID string
	Amount      domain.Money
}

// New builds a Service and restores state from the journal.
func New(ctx context.Context, opts Options) (*Service, error) {
	if opts.Journal == nil {
		return nil, errors.New("ledger: journal is required")
	}
	s := &Service{
		journal:     opts.Journal,
		log:         opts.Logger,
		now:         opts.Now,
		lockWait:    opts.LockWait,
		lockRetries: opts.LockRetries,
		bulkWorkers: opts.BulkWorkers,
		locks:       newAccountLocks(),
		accounts:    make(map[string]domain.Account),
		payouts:     make(map[string]domain.PayoutRequest),
		events:      make(map[string]struct{}),
		staged:      make(map[string]stagedCredit),
		methods:     make(map[domain.PayoutMethod]domain.MethodProfile),
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.lockWait <= 0 {
		s.lockWait = defaultLockWait
	}
	if s.lockRetries < 0 {
		s.lockRetries = defaultLockRetries
	}
	if s.bulkWorkers <= 0 {
		s.bulkWorkers = defaultBulkWorkers
	}

	st, err := opts.Journal.LoadState(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: restore state: %w", err)
	}
	for _, acc := range st.Accounts {
		s.accounts[acc.AffiliateID] = acc
	}
	for _, req := range st.Payouts {
		s.payouts[req.ID] = req
		s.order = append(s.order, req.ID)
	}
	for _, id := range st.EventIDs {
		s.events[id] = struct{}{}
	}
	s.refSeq = int64(len(s.payouts))
	return s, nil
}

// RegisterMethod installs or replaces a payout method profile. Profiles come
// from the method configuration source; the ledger treats them as read-only.
func (s *Service) RegisterMethod(p domain.MethodProfile) error {
	if !domain.KnownMethod(p.Method) {
		return fmt.Errorf("%w: unknown payout method %q", domain.ErrInvalidInput, p.Method)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods[p.Method] = p
	return nil
}

// Methods returns the registered method profiles.
func (s *Service) Methods() []domain.MethodProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.MethodProfile, 0, len(s.methods))
	for _, p := range s.methods {
		out = append(out, p)
	}
	return out
}

// ApplyCommission credits amount to the affiliate's account. eventID must be
// unique per upstream event; a replay returns ErrDuplicateCommissionEvent
// and leaves the balance untouched. This is the only way credit increases.
func (s *Service) ApplyCommission(ctx context.Context, eventID, affiliateID string, amount domain.Money) (domain.Account, error) {
	if eventID == "" || affiliateID == "" {
		return domain.Account{}, fmt.Errorf("%w: event id and affiliate id are required", domain.ErrInvalidInput)
	}
	if _, err := domain.NewMoney(amount.Units, amount.Currency); err != nil {
		return domain.Account{}, err
	}

	var result domain.Account
	err := s.withAccountLock(ctx, affiliateID, func() error {
		s.mu.RLock()
		_, seen := s.events[eventID]
		acc, exists := s.accounts[affiliateID]
		s.mu.RUnlock()
		if seen {
			return domain.ErrDuplicateCommissionEvent
		}
		if !exists {
			acc = domain.NewAccount(affiliateID, amount.Currency, s.now())
		}

		credit, err := acc.Credit.Add(amount)
		if err != nil {
			return err
		}
		acc.Credit = credit

		if err := s.journal.RecordCommission(ctx, eventID, amount, acc); err != nil {
			return err
		}

		s.mu.Lock()
		s.events[eventID] = struct{}{}
		s.accounts[affiliateID] = acc
		s.mu.Unlock()

		result = acc
		return nil
	})
	if err != nil {
		return domain.Account{}, err
	}

	commissionsApplied.Inc()
	s.log.Info("commission applied",
		zap.String("event_id", eventID),
		zap.String("affiliate_id", affiliateID),
		zap.Int64("amount_minor", amount.Units),
		zap.String("currency", amount.Currency))
	return result, nil
}

// IngestEvent evaluates a commission event against its campaign rule. For
// automatic rules the credit is applied immediately; for manual rules it is
// staged until ResolveApproval. The returned bool reports whether the credit
// has been applied.
func (s *Service) IngestEvent(ctx context.Context, rule domain.CommissionRule, ev domain.CommissionEvent) (domain.Money, bool, error) {
	amount, err := rule.Evaluate(ev)
	if err != nil {
		return domain.Money{}, false, err
	}
	if ev.EventID == "" || ev.AffiliateID == "" {
		return domain.Money{}, false, fmt.Errorf("%w: event id and affiliate id are required", domain.ErrInvalidInput)
	}

	if rule.ApprovalType == domain.ApprovalManual {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, seen := s.events[ev.EventID]; seen {
			return domain.Money{}, false, domain.ErrDuplicateCommissionEvent
		}
		if _, seen := s.staged[ev.EventID]; seen {
			return domain.Money{}, false, domain.ErrDuplicateCommissionEvent
		}
		s.staged[ev.EventID] = stagedCredit{AffiliateID: ev.AffiliateID, Amount: amount}
		s.log.Info("commission staged for approval",
			zap.String("event_id", ev.EventID),
			zap.String("affiliate_id", ev.AffiliateID))
		return amount, false, nil
	}

	if _, err := s.ApplyCommission(ctx, ev.EventID, ev.AffiliateID, amount); err != nil {
		return domain.Money{}, false, err
	}
	return amount, true, nil
}

// ResolveApproval consumes a manual-approval signal for a staged commission.
// Approval applies the credit; rejection discards it. Either way the staged
// entry is gone afterwards.
func (s *Service) ResolveApproval(ctx context.Context, eventID string, approve bool) (domain.Account, error) {
	s.mu.Lock()
	sc, ok := s.staged[eventID]
	if !ok {
		s.mu.Unlock()
		return domain.Account{}, domain.ErrApprovalNotFound
	}
	if !approve {
		delete(s.staged, eventID)
		acc := s.accounts[sc.AffiliateID]
		s.mu.Unlock()
		s.log.Info("staged commission rejected", zap.String("event_id", eventID))
		return acc, nil
	}
	s.mu.Unlock()

	acc, err := s.ApplyCommission(ctx, eventID, sc.AffiliateID, sc.Amount)
	if err != nil {
		return domain.Account{}, err
	}
	s.mu.Lock()
	delete(s.staged, eventID)
	s.mu.Unlock()
	return acc, nil
}

// CreatePayoutInput describes a payout request. A nil Amount requests the
// account's entire credit balance.
type CreatePayoutInput struct {
	AffiliateID string
	Method      domain.PayoutMethod
	Amount      *domain.Money
	Country     string
	Notes       string
}

// CreatePayoutRequest validates the request against the method profile and
// the account's credit, quotes the fee, and moves the amount from credit to
// pending. Validation and mutation happen under the account lock; on journal
// failure no balance changes.
func (s *Service) CreatePayoutRequest(ctx context.Context, in CreatePayoutInput) (domain.PayoutRequest, error) {
	if in.AffiliateID == "" {
		return domain.PayoutRequest{}, fmt.Errorf("%w: affiliate id is required", domain.ErrInvalidInput)
	}
	s.mu.RLock()
	profile, ok := s.methods[in.Method]
	s.mu.RUnlock()
	if !ok || !profile.Configured {
		return domain.PayoutRequest{}, fmt.Errorf("%w: %s", domain.ErrMethodNotConfigured, in.Method)
	}

	var result domain.PayoutRequest
	err := s.withAccountLock(ctx, in.AffiliateID, func() error {
		s.mu.RLock()
		acc, exists := s.accounts[in.AffiliateID]
		s.mu.RUnlock()
		if !exists {
			acc = domain.NewAccount(in.AffiliateID, profile.MinAmount.Currency, s.now())
		}

		amount := acc.Credit
		if in.Amount != nil {
			amount = *in.Amount
		}
		if err := profile.ValidatePayout(amount, in.Country); err != nil {
			return err
		}
		if cmp, err := amount.Cmp(acc.Credit); err != nil {
			return err
		} else if cmp > 0 {
			return fmt.Errorf("%w: requested %s, available %s", domain.ErrInsufficientFunds, amount, acc.Credit)
		}

		fee, err := amount.PercentOf(profile.FeeBps)
		if err != nil {
			return err
		}
		net, err := amount.Sub(fee)
		if err != nil {
			return err
		}

		credit, err := acc.Credit.Sub(amount)
		if err != nil {
			return err
		}
		pending, err := acc.Pending.Add(amount)
		if err != nil {
			return err
		}
		acc.Credit = credit
		acc.Pending = pending

		now := s.now()
		req := domain.PayoutRequest{
			ID:          uuid.NewString(),
			AffiliateID: in.AffiliateID,
			Method:      in.Method,
			Amount:      amount,
			Fee:         fee,
			Net:         net,
			Status:      domain.PayoutPending,
			Reference:   s.nextReference(now),
			Notes:       in.Notes,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := s.journal.RecordPayout(ctx, req, acc); err != nil {
			return err
		}

		s.mu.Lock()
		s.accounts[in.AffiliateID] = acc
		s.payouts[req.ID] = req
		s.order = append(s.order, req.ID)
		s.mu.Unlock()

		result = req
		return nil
	})
	if err != nil {
		return domain.PayoutRequest{}, err
	}

	payoutsCreated.Inc()
	s.log.Info("payout request created",
		zap.String("request_id", result.ID),
		zap.String("reference", result.Reference),
		zap.String("affiliate_id", result.AffiliateID),
		zap.String("method", string(result.Method)),
		zap.Int64("amount_minor", result.Amount.Units))
	return result, nil
}

// AdvanceStatus moves a payout request to target and applies the balance
// effects of the transition. Illegal moves fail with
// ErrInvalidStatusTransition and change nothing.
func (s *Service) AdvanceStatus(ctx context.Context, requestID string, target domain.PayoutStatus) (domain.PayoutRequest, error) {
	if !domain.KnownStatus(target) {
		return domain.PayoutRequest{}, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidStatusTransition, target)
	}
	s.mu.RLock()
	req, ok := s.payouts[requestID]
	s.mu.RUnlock()
	if !ok {
		return domain.PayoutRequest{}, domain.ErrPayoutNotFound
	}

	var result domain.PayoutRequest
	err := s.withAccountLock(ctx, req.AffiliateID, func() error {
		s.mu.RLock()
		req := s.payouts[requestID]
		acc := s.accounts[req.AffiliateID]
		s.mu.RUnlock()

		if !domain.CanTransition(req.Status, target) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidStatusTransition, req.Status, target)
		}

		switch target {
		case domain.PayoutProcessing:
			// No balance movement; funds stay pending.

		case domain.PayoutCompleted:
			pending, err := acc.Pending.Sub(req.Amount)
			if err != nil {
				return err
			}
			acc.Pending = pending

		case domain.PayoutFailed, domain.PayoutCancelled:
			pending, err := acc.Pending.Sub(req.Amount)
			if err != nil {
				return err
			}
			credit, err := acc.Credit.Add(req.Amount)
			if err != nil {
				return err
			}
			acc.Pending = pending
			acc.Credit = credit

		case domain.PayoutPending:
			// Retry of a failed request: funds must still be available.
			credit, err := acc.Credit.Sub(req.Amount)
			if err != nil {
				return err
			}
			pending, err := acc.Pending.Add(req.Amount)
			if err != nil {
				return err
			}
			acc.Credit = credit
			acc.Pending = pending
			req.RetryCount++
		}

		req.Status = target
		req.UpdatedAt = s.now()

		if err := s.journal.RecordPayout(ctx, req, acc); err != nil {
			return err
		}

		s.mu.Lock()
		s.payouts[requestID] = req
		s.accounts[acc.AffiliateID] = acc
		s.mu.Unlock()

		result = req
		return nil
	})
	if err != nil {
		return domain.PayoutRequest{}, err
	}

	payoutTransitions.WithLabelValues(string(target)).Inc()
	s.log.Info("payout status advanced",
		zap.String("request_id", result.ID),
		zap.String("status", string(result.Status)),
		zap.Int("retry_count", result.RetryCount))
	return result, nil
}

// GetAccount returns the account for affiliateID.
func (s *Service) GetAccount(affiliateID string) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[affiliateID]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return acc, nil
}

// Filter narrows payout listings and statistics. Zero values match all.
type Filter struct {
	AffiliateID string
	Status      domain.PayoutStatus
	Method      domain.PayoutMethod
}

func (f Filter) matches(req domain.PayoutRequest) bool {
	if f.AffiliateID != "" && req.AffiliateID != f.AffiliateID {
		return false
	}
	if f.Status != "" && req.Status != f.Status {
		return false
	}
	if f.Method != "" && req.Method != f.Method {
		return false
	}
	return true
}

// ListPayouts returns matching payout requests in creation order.
func (s *Service) ListPayouts(f Filter) []domain.PayoutRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.PayoutRequest, 0)
	for _, id := range s.order {
		if req := s.payouts[id]; f.matches(req) {
			out = append(out, req)
		}
	}
	return out
}

// Ping reports journal health.
func (s *Service) Ping(ctx context.Context) error {
	return s.journal.Ping(ctx)
}

// withAccountLock serializes fn against every other balance mutation for the
// same affiliate. A bounded number of timed-out acquisitions are retried
// before ErrLockTimeout surfaces; validation errors inside fn are never
// retried.
func (s *Service) withAccountLock(ctx context.Context, affiliateID string, fn func() error) error {
	attempts := s.lockRetries + 1
	for i := 0; i < attempts; i++ {
		release, err := s.locks.acquire(ctx, affiliateID, s.lockWait)
		if err != nil {
			if errors.Is(err, domain.ErrLockTimeout) {
				lockTimeouts.Inc()
				if i < attempts-1 {
					continue
				}
				s.log.Warn("account lock timeout", zap.String("affiliate_id", affiliateID))
			}
			return err
		}
		defer release()
		return fn()
	}
	return domain.ErrLockTimeout
}

func (s *Service) nextReference(now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refSeq++
	return fmt.Sprintf("PAY-%d-%06d", now.Year(), s.refSeq)
}
