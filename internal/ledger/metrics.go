package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commissionsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_commissions_applied_total",
		Help: "Commission credits applied to affiliate accounts",
	})

	payoutsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_payout_requests_created_total",
		Help: "Payout requests created",
	})

	payoutTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_payout_transitions_total",
		Help: "Payout status transitions, labeled by target status",
	}, []string{"target"})

	lockTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_account_lock_timeouts_total",
		Help: "Account lock acquisitions that exceeded the wait bound",
	})
)
