package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/finvista/finvista-gateway-go/internal/domain"
	"github.com/finvista/finvista-gateway-go/internal/handler"
	"github.com/finvista/finvista-gateway-go/internal/infra/cache"
	"github.com/finvista/finvista-gateway-go/internal/infra/memstore"
	"github.com/finvista/finvista-gateway-go/internal/infra/observability"
	"github.com/finvista/finvista-gateway-go/internal/recon"
	"github.com/finvista/finvista-gateway-go/internal/service"
)

func txn(id, date string, amount float64, desc string) domain.Transaction {
	d, _ := time.Parse("2006-01-02", date)
	return domain.Transaction{
		ID:          id,
		Date:        d,
		Amount:      decimal.NewFromFloat(amount),
		Description: desc,
	}
}

func newTestRouter(t *testing.T, jwtSecret string) http.Handler {
	t.Helper()

	store := memstore.New()
	store.SeedTransactions("client-1",
		[]domain.Transaction{
			txn("b1", "2026-03-10", -125.50, "Office supplies"),
			txn("b2", "2026-03-12", -80.00, "Cloud hosting"),
		},
		[]domain.Transaction{
			txn("r1", "2026-03-10", -125.50, "Office supplies"),
			txn("r2", "2026-03-13", -80.00, "Cloud hosting monthly"),
		},
	)
	store.SeedClient(domain.Client{ID: "client-1", Name: "Acme GmbH", Status: "active"})

	batchCache := cache.New[domain.TransactionBatch](time.Minute)
	t.Cleanup(batchCache.Stop)

	metrics := observability.NewMetrics()
	logger := zap.NewNop()

	reconSvc := service.NewRecon(store, store, batchCache, metrics, logger, service.ReconConfig{
		MinConfidence: 0.5,
		Scorer:        recon.DefaultScorerConfig(),
	})

	return handler.NewRouter(handler.Deps{
		Recon:          reconSvc,
		Clients:        service.NewClients(store, logger),
		Reports:        service.NewReports(reconSvc),
		Metrics:        metrics,
		Logger:         logger,
		AllowedOrigins: []string{"*"},
		JWTSecret:      jwtSecret,
	})
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rec.Body.String())
	}
	return out
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t, "")

	rec := doJSON(t, router, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	router := newTestRouter(t, "")

	rec := doJSON(t, router, http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, "")

	rec := doJSON(t, router, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReconciliationFlow(t *testing.T) {
	router := newTestRouter(t, "")

	// create a session
	rec := doJSON(t, router, http.MethodPost, "/v1/reconciliation/sessions", domain.CreateSessionRequest{
		ClientID:   "client-1",
		Currency:   "EUR",
		PeriodFrom: "2026-03-01",
		PeriodTo:   "2026-03-31",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	info := decodeBody[domain.SessionInfo](t, rec)
	base := "/v1/reconciliation/sessions/" + info.ID

	// list candidates
	rec = doJSON(t, router, http.MethodGet, base+"/candidates", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("candidates: expected 200, got %d", rec.Code)
	}
	candsResp := decodeBody[struct {
		Candidates []domain.MatchCandidate `json:"candidates"`
		Count      int                     `json:"count"`
	}](t, rec)
	if candsResp.Count == 0 {
		t.Fatal("expected at least one candidate")
	}

	// accept the top candidate
	rec = doJSON(t, router, http.MethodPost, base+"/candidates/"+candsResp.Candidates[0].ID+"/accept", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("accept: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	// second accept of the same candidate fails with 404 (no longer suggested)
	rec = doJSON(t, router, http.MethodPost, base+"/candidates/"+candsResp.Candidates[0].ID+"/accept", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("re-accept: expected 404, got %d", rec.Code)
	}

	// progress is now positive
	rec = doJSON(t, router, http.MethodGet, base+"/progress", nil)
	progress := decodeBody[domain.ProgressResponse](t, rec)
	if progress.Progress <= 0 {
		t.Errorf("progress = %v, want > 0", progress.Progress)
	}

	// close, then further mutation conflicts
	rec = doJSON(t, router, http.MethodPost, base+"/close", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("close: expected 200, got %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodPost, base+"/bulk-accept", domain.BulkAcceptRequest{MinConfidence: 0.5})
	if rec.Code != http.StatusConflict {
		t.Errorf("mutation after close: expected 409, got %d", rec.Code)
	}
}

func TestManualMatchValidation(t *testing.T) {
	router := newTestRouter(t, "")

	rec := doJSON(t, router, http.MethodPost, "/v1/reconciliation/sessions", domain.CreateSessionRequest{
		ClientID:   "client-1",
		PeriodFrom: "2026-03-01",
		PeriodTo:   "2026-03-31",
	})
	info := decodeBody[domain.SessionInfo](t, rec)

	rec = doJSON(t, router, http.MethodPost, "/v1/reconciliation/sessions/"+info.ID+"/manual-match",
		domain.ManualMatchRequest{BankTransactionID: "ghost", RecordedTransactionID: "r1"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown id: expected 400, got %d", rec.Code)
	}
}

func TestSessionNotFoundIs404(t *testing.T) {
	router := newTestRouter(t, "")

	rec := doJSON(t, router, http.MethodGet, "/v1/reconciliation/sessions/nope/progress", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestClientsEndpoints(t *testing.T) {
	router := newTestRouter(t, "")

	rec := doJSON(t, router, http.MethodGet, "/v1/clients/client-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get client: expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/clients/", domain.Client{Name: "Beta Ltd"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create client: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/clients/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list clients: expected 200, got %d", rec.Code)
	}
	list := decodeBody[domain.ListResponse[domain.Client]](t, rec)
	if len(list.Data) != 2 {
		t.Errorf("got %d clients, want 2", len(list.Data))
	}
}

func TestReconciliationReport(t *testing.T) {
	router := newTestRouter(t, "")

	rec := doJSON(t, router, http.MethodPost, "/v1/reconciliation/sessions", domain.CreateSessionRequest{
		ClientID:   "client-1",
		PeriodFrom: "2026-03-01",
		PeriodTo:   "2026-03-31",
	})
	info := decodeBody[domain.SessionInfo](t, rec)

	rec = doJSON(t, router, http.MethodGet, "/v1/reports/reconciliation/"+info.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("report: expected 200, got %d", rec.Code)
	}
	report := decodeBody[domain.ReconciliationReport](t, rec)
	if report.Summary.BankTotal != 2 {
		t.Errorf("bank total = %d, want 2", report.Summary.BankTotal)
	}
}

func TestReconMetricsSnapshot(t *testing.T) {
	router := newTestRouter(t, "")

	doJSON(t, router, http.MethodPost, "/v1/reconciliation/sessions", domain.CreateSessionRequest{
		ClientID:   "client-1",
		PeriodFrom: "2026-03-01",
		PeriodTo:   "2026-03-31",
	})

	rec := doJSON(t, router, http.MethodGet, "/v1/metrics/reconciliation", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	snap := decodeBody[domain.ReconMetricsSnapshot](t, rec)
	if snap.SessionsCreated != 1 {
		t.Errorf("sessions created = %d, want 1", snap.SessionsCreated)
	}
}
