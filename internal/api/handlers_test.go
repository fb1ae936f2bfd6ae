package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/reflink/payoutledger/internal/domain"
	"github.com/reflink/payoutledger/internal/ledger"
	"github.com/reflink/payoutledger/internal/store"
)

func newTestRouter(t *testing.T) (*ledger.Service, http.Handler) {
	t.Helper()
	svc, err := ledger.New(context.Background(), ledger.Options{Journal: store.NewMemory()})
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	err = svc.RegisterMethod(domain.MethodProfile{
		Method:             domain.MethodPayPal,
		Configured:         true,
		FeeBps:             300,
		MinAmount:          domain.Money{Units: 1000, Currency: "USD"},
		MaxAmount:          domain.Money{Units: 10000000, Currency: "USD"},
		SupportedCountries: []string{"US"},
	})
	if err != nil {
		t.Fatalf("register method: %v", err)
	}
	return svc, NewRouter(NewHandler(svc, zap.NewNop()))
}

func doJSON(t *testing.T, router http.Handler, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestApplyCommissionEndpoint(t *testing.T) {
	t.Parallel()
	_, router := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/v1/commissions", map[string]interface{}{
		"event_id":     "e1",
		"affiliate_id": "aff1",
		"amount_minor": 10000,
		"currency":     "USD",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}

	var acc domain.Account
	if err := json.Unmarshal(rec.Body.Bytes(), &acc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if acc.Credit.Units != 10000 {
		t.Fatalf("expected credit 10000, got %d", acc.Credit.Units)
	}

	// Replay maps to 409.
	rec = doJSON(t, router, "POST", "/api/v1/commissions", map[string]interface{}{
		"event_id":     "e1",
		"affiliate_id": "aff1",
		"amount_minor": 10000,
		"currency":     "USD",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on replay, got %d", rec.Code)
	}
}

func TestCreatePayoutEndpoint(t *testing.T) {
	t.Parallel()
	_, router := newTestRouter(t)

	doJSON(t, router, "POST", "/api/v1/commissions", map[string]interface{}{
		"event_id": "e1", "affiliate_id": "aff1", "amount_minor": 10000, "currency": "USD",
	})

	rec := doJSON(t, router, "POST", "/api/v1/payouts", map[string]interface{}{
		"affiliate_id": "aff1",
		"method":       "paypal",
		"amount_minor": 10000,
		"currency":     "USD",
		"country":      "US",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	if rec.Header().Get("Location") == "" {
		t.Fatal("missing Location header")
	}

	var req domain.PayoutRequest
	if err := json.Unmarshal(rec.Body.Bytes(), &req); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.Fee.Units != 300 || req.Net.Units != 9700 {
		t.Fatalf("fee quote wrong: fee %d net %d", req.Fee.Units, req.Net.Units)
	}

	// Second full-balance request has nothing left to draw on.
	rec = doJSON(t, router, "POST", "/api/v1/payouts", map[string]interface{}{
		"affiliate_id": "aff1",
		"method":       "paypal",
		"amount_minor": 10000,
		"currency":     "USD",
		"country":      "US",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body)
	}
}

func TestPayoutStatusEndpoint(t *testing.T) {
	t.Parallel()
	svc, router := newTestRouter(t)

	doJSON(t, router, "POST", "/api/v1/commissions", map[string]interface{}{
		"event_id": "e1", "affiliate_id": "aff1", "amount_minor": 10000, "currency": "USD",
	})
	amount := domain.Money{Units: 10000, Currency: "USD"}
	created, err := svc.CreatePayoutRequest(context.Background(), ledger.CreatePayoutInput{
		AffiliateID: "aff1", Method: domain.MethodPayPal, Amount: &amount, Country: "US",
	})
	if err != nil {
		t.Fatalf("create payout: %v", err)
	}

	rec := doJSON(t, router, "POST", "/api/v1/payouts/"+created.ID+"/status", map[string]string{"status": "processing"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	// processing -> pending is not a legal move.
	rec = doJSON(t, router, "POST", "/api/v1/payouts/"+created.ID+"/status", map[string]string{"status": "pending"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 on illegal transition, got %d", rec.Code)
	}

	rec = doJSON(t, router, "POST", "/api/v1/payouts/unknown/status", map[string]string{"status": "processing"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown payout, got %d", rec.Code)
	}
}

func TestBulkStatusEndpoint(t *testing.T) {
	t.Parallel()
	svc, router := newTestRouter(t)

	doJSON(t, router, "POST", "/api/v1/commissions", map[string]interface{}{
		"event_id": "e1", "affiliate_id": "aff1", "amount_minor": 10000, "currency": "USD",
	})
	amount := domain.Money{Units: 10000, Currency: "USD"}
	created, err := svc.CreatePayoutRequest(context.Background(), ledger.CreatePayoutInput{
		AffiliateID: "aff1", Method: domain.MethodPayPal, Amount: &amount, Country: "US",
	})
	if err != nil {
		t.Fatalf("create payout: %v", err)
	}

	rec := doJSON(t, router, "POST", "/api/v1/payouts/bulk-status", map[string]interface{}{
		"request_ids": []string{created.ID, "missing"},
		"status":      "processing",
	})
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("expected 207, got %d: %s", rec.Code, rec.Body)
	}

	var items []bulkAdvanceItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Error != "" || items[0].Request == nil {
		t.Fatalf("first item should succeed: %+v", items[0])
	}
	if items[1].Error == "" {
		t.Fatalf("second item should carry an error: %+v", items[1])
	}
}

func TestGetAccountEndpoint(t *testing.T) {
	t.Parallel()
	_, router := newTestRouter(t)

	rec := doJSON(t, router, "GET", "/api/v1/accounts/aff1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	doJSON(t, router, "POST", "/api/v1/commissions", map[string]interface{}{
		"event_id": "e1", "affiliate_id": "aff1", "amount_minor": 500, "currency": "USD",
	})
	rec = doJSON(t, router, "GET", "/api/v1/accounts/aff1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	t.Parallel()
	_, router := newTestRouter(t)

	doJSON(t, router, "POST", "/api/v1/commissions", map[string]interface{}{
		"event_id": "e1", "affiliate_id": "aff1", "amount_minor": 10000, "currency": "USD",
	})
	doJSON(t, router, "POST", "/api/v1/payouts", map[string]interface{}{
		"affiliate_id": "aff1", "method": "paypal", "amount_minor": 10000,
		"currency": "USD", "country": "US",
	})

	rec := doJSON(t, router, "GET", "/api/v1/stats?affiliate_id=aff1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats ledger.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.TotalPending.Units != 10000 {
		t.Fatalf("expected pending total 10000, got %d", stats.TotalPending.Units)
	}
}

func TestIngestEventEndpointStagesManualCredit(t *testing.T) {
	t.Parallel()
	_, router := newTestRouter(t)

	payload := map[string]interface{}{
		"rule": map[string]interface{}{
			"event_type":    "per_sale",
			"enabled":       true,
			"approval_type": "manual",
			"value_type":    "percentage",
			"rate_bps":      1000,
		},
		"event": map[string]interface{}{
			"event_id":     "e1",
			"affiliate_id": "aff1",
			"campaign_id":  "c1",
			"event_type":   "per_sale",
			"base_amount":  map[string]interface{}{"amount_minor": 10000, "currency": "USD"},
		},
	}
	rec := doJSON(t, router, "POST", "/api/v1/commission-events", payload)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 for staged credit, got %d: %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, router, "POST", "/api/v1/approvals", map[string]interface{}{
		"event_id": "e1",
		"approve":  true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var acc domain.Account
	if err := json.Unmarshal(rec.Body.Bytes(), &acc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if acc.Credit.Units != 1000 {
		t.Fatalf("expected credit 1000 after approval, got %d", acc.Credit.Units)
	}
}
