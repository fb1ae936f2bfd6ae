package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/reflink/payoutledger/internal/domain"
	"github.com/reflink/payoutledger/internal/ledger"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

type Handler struct {
	ledger *ledger.Service
	log    *zap.Logger
}

func NewHandler(svc *ledger.Service, log *zap.Logger) *Handler {
	return &Handler{ledger: svc, log: log}
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Ping(r.Context()); err != nil {
		h.respondError(w, http.StatusServiceUnavailable, "store unreachable", "GET", "/health")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"}, "GET", "/health")
}

type applyCommissionRequest struct {
	EventID     string `json:"event_id"`
	AffiliateID string `json:"affiliate_id"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
}

func (h *Handler) ApplyCommissionHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/commissions"))
	defer timer.ObserveDuration()

	var req applyCommissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "malformed JSON body", "POST", "/commissions")
		return
	}

	amount, err := domain.NewMoney(req.AmountMinor, req.Currency)
	if err != nil {
		h.respondError(w, http.StatusUnprocessableEntity, err.Error(), "POST", "/commissions")
		return
	}

	acc, err := h.ledger.ApplyCommission(r.Context(), req.EventID, req.AffiliateID, amount)
	if err != nil {
		h.respondLedgerError(w, err, "POST", "/commissions")
		return
	}
	h.respondJSON(w, http.StatusCreated, acc, "POST", "/commissions")
}

type ingestEventRequest struct {
	Rule  domain.CommissionRule  `json:"rule"`
	Event domain.CommissionEvent `json:"event"`
}

type ingestEventResponse struct {
	Credit  domain.Money `json:"credit"`
	Applied bool         `json:"applied"`
}

// IngestEventHandler evaluates a tracked click/sale against its campaign
// rule. Manual-approval rules stage the credit; automatic rules apply it.
func (h *Handler) IngestEventHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/commission-events"))
	defer timer.ObserveDuration()

	var req ingestEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "malformed JSON body", "POST", "/commission-events")
		return
	}

	credit, applied, err := h.ledger.IngestEvent(r.Context(), req.Rule, req.Event)
	if err != nil {
		h.respondLedgerError(w, err, "POST", "/commission-events")
		return
	}
	code := http.StatusAccepted
	if applied {
		code = http.StatusCreated
	}
	h.respondJSON(w, code, ingestEventResponse{Credit: credit, Applied: applied}, "POST", "/commission-events")
}

type resolveApprovalRequest struct {
	EventID string `json:"event_id"`
	Approve bool   `json:"approve"`
}

func (h *Handler) ResolveApprovalHandler(w http.ResponseWriter, r *http.Request) {
	var req resolveApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "malformed JSON body", "POST", "/approvals")
		return
	}

	acc, err := h.ledger.ResolveApproval(r.Context(), req.EventID, req.Approve)
	if err != nil {
		h.respondLedgerError(w, err, "POST", "/approvals")
		return
	}
	h.respondJSON(w, http.StatusOK, acc, "POST", "/approvals")
}

func (h *Handler) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	affiliateID := mux.Vars(r)["affiliateId"]
	acc, err := h.ledger.GetAccount(affiliateID)
	if err != nil {
		h.respondLedgerError(w, err, "GET", "/accounts/{affiliateId}")
		return
	}
	h.respondJSON(w, http.StatusOK, acc, "GET", "/accounts/{affiliateId}")
}

type createPayoutRequest struct {
	AffiliateID string `json:"affiliate_id"`
	Method      string `json:"method"`
	// AmountMinor omitted means the full credit balance.
	AmountMinor *int64 `json:"amount_minor,omitempty"`
	Currency    string `json:"currency,omitempty"`
	Country     string `json:"country"`
	Notes       string `json:"notes,omitempty"`
}

func (h *Handler) CreatePayoutHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/payouts"))
	defer timer.ObserveDuration()

	var req createPayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "malformed JSON body", "POST", "/payouts")
		return
	}

	in := ledger.CreatePayoutInput{
		AffiliateID: req.AffiliateID,
		Method:      domain.PayoutMethod(req.Method),
		Country:     req.Country,
		Notes:       req.Notes,
	}
	if req.AmountMinor != nil {
		amount, err := domain.NewMoney(*req.AmountMinor, req.Currency)
		if err != nil {
			h.respondError(w, http.StatusUnprocessableEntity, err.Error(), "POST", "/payouts")
			return
		}
		in.Amount = &amount
	}

	created, err := h.ledger.CreatePayoutRequest(r.Context(), in)
	if err != nil {
		h.respondLedgerError(w, err, "POST", "/payouts")
		return
	}
	w.Header().Set("Location", "/api/v1/payouts/"+created.ID)
	h.respondJSON(w, http.StatusCreated, created, "POST", "/payouts")
}

func (h *Handler) ListPayoutsHandler(w http.ResponseWriter, r *http.Request) {
	f := ledger.Filter{
		AffiliateID: r.URL.Query().Get("affiliate_id"),
		Status:      domain.PayoutStatus(r.URL.Query().Get("status")),
		Method:      domain.PayoutMethod(r.URL.Query().Get("method")),
	}
	h.respondJSON(w, http.StatusOK, h.ledger.ListPayouts(f), "GET", "/payouts")
}

type advanceStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) AdvanceStatusHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/payouts/{id}/status"))
	defer timer.ObserveDuration()

	var req advanceStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "malformed JSON body", "POST", "/payouts/{id}/status")
		return
	}

	updated, err := h.ledger.AdvanceStatus(r.Context(), mux.Vars(r)["id"], domain.PayoutStatus(req.Status))
	if err != nil {
		h.respondLedgerError(w, err, "POST", "/payouts/{id}/status")
		return
	}
	h.respondJSON(w, http.StatusOK, updated, "POST", "/payouts/{id}/status")
}

type bulkAdvanceRequest struct {
	RequestIDs []string `json:"request_ids"`
	Status     string   `json:"status"`
}

type bulkAdvanceItem struct {
	RequestID string                `json:"request_id"`
	Request   *domain.PayoutRequest `json:"request,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// BulkAdvanceHandler advances a batch with partial-failure semantics: the
// response always carries one entry per id, success or not.
func (h *Handler) BulkAdvanceHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/payouts/bulk-status"))
	defer timer.ObserveDuration()

	var req bulkAdvanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "malformed JSON body", "POST", "/payouts/bulk-status")
		return
	}
	if len(req.RequestIDs) == 0 {
		h.respondError(w, http.StatusUnprocessableEntity, "request_ids is required", "POST", "/payouts/bulk-status")
		return
	}

	results := h.ledger.BulkAdvance(r.Context(), req.RequestIDs, domain.PayoutStatus(req.Status))
	items := make([]bulkAdvanceItem, len(results))
	for i, res := range results {
		items[i] = bulkAdvanceItem{RequestID: res.RequestID, Request: res.Request}
		if res.Err != nil {
			items[i].Error = res.Err.Error()
		}
	}
	h.respondJSON(w, http.StatusMultiStatus, items, "POST", "/payouts/bulk-status")
}

func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	f := ledger.Filter{
		AffiliateID: r.URL.Query().Get("affiliate_id"),
		Status:      domain.PayoutStatus(r.URL.Query().Get("status")),
		Method:      domain.PayoutMethod(r.URL.Query().Get("method")),
	}
	stats, err := h.ledger.ComputeStats(f)
	if err != nil {
		h.respondLedgerError(w, err, "GET", "/stats")
		return
	}
	h.respondJSON(w, http.StatusOK, stats, "GET", "/stats")
}

func (h *Handler) ListMethodsHandler(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.ledger.Methods(), "GET", "/methods")
}

// respondLedgerError translates the ledger's error taxonomy into HTTP codes.
func (h *Handler) respondLedgerError(w http.ResponseWriter, err error, method, endpoint string) {
	var code int
	switch {
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrPayoutNotFound),
		errors.Is(err, domain.ErrApprovalNotFound):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateCommissionEvent):
		code = http.StatusConflict
	case errors.Is(err, domain.ErrLockTimeout):
		code = http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrInvalidInput):
		code = http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrMethodNotConfigured),
		errors.Is(err, domain.ErrUnsupportedCountry),
		errors.Is(err, domain.ErrAmountOutOfRange),
		errors.Is(err, domain.ErrInvalidStatusTransition),
		errors.Is(err, domain.ErrCurrencyMismatch),
		errors.Is(err, domain.ErrRuleDisabled),
		errors.Is(err, domain.ErrMissingBaseAmount),
		errors.Is(err, domain.ErrEventTypeMismatch),
		errors.Is(err, domain.ErrNegativeAmount):
		code = http.StatusUnprocessableEntity
	default:
		h.log.Error("unexpected ledger error", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "internal server error", method, endpoint)
		return
	}
	h.respondError(w, code, err.Error(), method, endpoint)
}

func (h *Handler) respondJSON(w http.ResponseWriter, code int, payload interface{}, method, endpoint string) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, code int, msg, method, endpoint string) {
	h.respondJSON(w, code, map[string]string{"error": msg}, method, endpoint)
}
