package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires all ledger routes.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.HealthHandler).Methods("GET")

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/commissions", h.ApplyCommissionHandler).Methods("POST")
	apiV1.HandleFunc("/commission-events", h.IngestEventHandler).Methods("POST")
	apiV1.HandleFunc("/approvals", h.ResolveApprovalHandler).Methods("POST")
	apiV1.HandleFunc("/accounts/{affiliateId}", h.GetAccountHandler).Methods("GET")
	apiV1.HandleFunc("/payouts", h.CreatePayoutHandler).Methods("POST")
	apiV1.HandleFunc("/payouts", h.ListPayoutsHandler).Methods("GET")
	apiV1.HandleFunc("/payouts/bulk-status", h.BulkAdvanceHandler).Methods("POST")
	apiV1.HandleFunc("/payouts/{id}/status", h.AdvanceStatusHandler).Methods("POST")
	apiV1.HandleFunc("/stats", h.StatsHandler).Methods("GET")
	apiV1.HandleFunc("/methods", h.ListMethodsHandler).Methods("GET")

	return r
}
