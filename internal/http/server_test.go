package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"simplemoney/internal/core"
	"simplemoney/internal/requestctx"
	"simplemoney/internal/services"
	"simplemoney/internal/storage/memory"
)

const testUser = "user-1"

var fixedNow = time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)

// flakyStore fails selected calls on top of the memory store.
type flakyStore struct {
	*memory.Store
	mu          sync.Mutex
	failList    bool
	failBalance bool
}

func (f *flakyStore) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	f.mu.Lock()
	fail := f.failList
	f.mu.Unlock()
	if fail {
		return nil, errors.New("connection refused")
	}
	return f.Store.ListTransactions(ctx, userID)
}

func (f *flakyStore) SaveBalance(ctx context.Context, userID string, balance core.Money, at time.Time) error {
	f.mu.Lock()
	fail := f.failBalance
	f.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return f.Store.SaveBalance(ctx, userID, balance, at)
}

func newTestServer(t *testing.T, opts Options) (*Server, *flakyStore) {
	t.Helper()
	store := &flakyStore{Store: memory.New()}
	ledger := services.NewLedgerService(store, nil, services.LedgerConfig{
		BackendTimeout: time.Second,
		Currency:       "BRL",
		Now:            func() time.Time { return fixedNow },
	})
	srv := NewServer(":0", ledger, opts)
	t.Cleanup(srv.stopBackground)
	return srv, store
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set(requestctx.HeaderUserID, testUser)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []any {
	t.Helper()
	var out []any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rec.Code)
		}
	}
}

func TestMissingUserHeader(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transactions", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if got := decode(t, rec)["error"].(map[string]any)["code"]; got != "bad_request" {
		t.Errorf("unexpected error code %v", got)
	}
}

func TestMiddlewareHeaders(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	rec := do(t, srv, http.MethodGet, "/api/categories", "")
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
	if !strings.HasPrefix(rec.Header().Get("X-Request-ID"), "req_") {
		t.Errorf("missing request id, got %q", rec.Header().Get("X-Request-ID"))
	}
}

func TestTransactionLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodPost, "/api/transactions",
		`{"name":"Salário","value":1000,"type":"income","category":"Trabalho","date":"2025-03-10"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add: expected 201, got %d: %s", rec.Code, rec.Body)
	}
	body := decode(t, rec)
	tx := body["transaction"].(map[string]any)
	id := tx["id"].(string)
	if got := body["cascade"].(map[string]any)["balance"]; got != 1000.0 {
		t.Errorf("expected balance 1000, got %v", got)
	}

	rec = do(t, srv, http.MethodPost, "/api/transactions",
		`{"name":"Mercado","value":"150,50","type":"expense","category":"Comida","date":"2025-03-12"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add expense: %d %s", rec.Code, rec.Body)
	}

	rec = do(t, srv, http.MethodGet, "/api/transactions?type=expense", "")
	if list := decodeList(t, rec); len(list) != 1 {
		t.Fatalf("expected 1 expense, got %d", len(list))
	}
	rec = do(t, srv, http.MethodGet, "/api/transactions?start=2025-03-11&end=2025-03-31", "")
	if list := decodeList(t, rec); len(list) != 1 {
		t.Fatalf("expected 1 entry in range, got %d", len(list))
	}

	rec = do(t, srv, http.MethodGet, "/api/categories", "")
	if cats := decodeList(t, rec); len(cats) != 2 || cats[0] != "Comida" {
		t.Errorf("unexpected categories %v", cats)
	}

	rec = do(t, srv, http.MethodPatch, "/api/transactions/"+id, `{"value":900}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: %d %s", rec.Code, rec.Body)
	}
	if got := decode(t, rec)["cascade"].(map[string]any)["balance"]; got != 749.5 {
		t.Errorf("expected balance 749.5, got %v", got)
	}

	rec = do(t, srv, http.MethodDelete, "/api/transactions/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body)
	}
	rec = do(t, srv, http.MethodDelete, "/api/transactions/"+id, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", rec.Code)
	}
}

func TestTransactionValidation(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	tests := []struct {
		name   string
		body   string
		status int
		field  string
	}{
		{"negative value", `{"name":"x","value":-5,"type":"income","category":"c","date":"2025-03-10"}`, 422, "value"},
		{"bad amount", `{"name":"x","value":"abc","type":"income","category":"c","date":"2025-03-10"}`, 422, "value"},
		{"amount above max", `{"name":"x","value":184467440737095517.16,"type":"income","category":"c","date":"2025-03-10"}`, 422, "value"},
		{"bad type", `{"name":"x","value":5,"type":"gift","category":"c","date":"2025-03-10"}`, 422, "type"},
		{"missing date", `{"name":"x","value":5,"type":"income","category":"c"}`, 422, "date"},
		{"malformed", `{"name":`, 400, ""},
		{"unknown field", `{"nome":"x"}`, 400, ""},
		{"empty body", ``, 400, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/transactions", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body)
			}
			if tt.field != "" {
				if got := decode(t, rec)["error"].(map[string]any)["field"]; got != tt.field {
					t.Errorf("expected field %q, got %v", tt.field, got)
				}
			}
		})
	}

	rec := do(t, srv, http.MethodPatch, "/api/transactions/nope", `{}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty patch: expected 422, got %d", rec.Code)
	}
	rec = do(t, srv, http.MethodGet, "/api/transactions?start=yesterday", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad start: expected 422, got %d", rec.Code)
	}
}

func TestGoalFunding(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodPost, "/api/goals", `{"title":"Viagem","targetValue":100,"category":"Lazer"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create goal: %d %s", rec.Code, rec.Body)
	}
	goalID := decode(t, rec)["id"].(string)

	rec = do(t, srv, http.MethodPost, "/api/goals/"+goalID+"/fund", `{"amount":50}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("fund without balance: %d %s", rec.Code, rec.Body)
	}
	body := decode(t, rec)
	if body["success"] != false || body["message"] != "Saldo insuficiente! Você tem 0,00 mas precisa de 50,00" {
		t.Errorf("unexpected insufficient funds result %v", body)
	}

	rec = do(t, srv, http.MethodPost, "/api/balance/topup", `{"amount":"80"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("top up: %d %s", rec.Code, rec.Body)
	}
	if got := decode(t, rec)["message"]; got != "Saldo de R$ 80,00 adicionado com sucesso! +80 pontos!" {
		t.Errorf("unexpected top-up message %v", got)
	}

	rec = do(t, srv, http.MethodPost, "/api/goals/"+goalID+"/fund", `{"amount":60}`)
	body = decode(t, rec)
	if body["success"] != true || body["message"] != "R$ 60,00 adicionado à meta com sucesso!" {
		t.Fatalf("unexpected funding result %v", body)
	}
	if got := body["goal"].(map[string]any)["progress"]; got != 60.0 {
		t.Errorf("expected progress 60, got %v", got)
	}
	if got := body["balance"]; got != 20.0 {
		t.Errorf("expected balance 20, got %v", got)
	}

	rec = do(t, srv, http.MethodPost, "/api/goals/missing/fund", `{"amount":1}`)
	if got := decode(t, rec)["message"]; got != "Meta não encontrada" {
		t.Errorf("unexpected not-found message %v", got)
	}

	rec = do(t, srv, http.MethodPatch, "/api/goals/"+goalID, `{"targetValue":10}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("target below current: expected 422, got %d", rec.Code)
	}

	rec = do(t, srv, http.MethodGet, "/api/goals", "")
	if got := decode(t, rec)["overallProgress"]; got != 60.0 {
		t.Errorf("expected overall progress 60, got %v", got)
	}

	rec = do(t, srv, http.MethodDelete, "/api/goals/"+goalID, "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("remove goal: expected 204, got %d", rec.Code)
	}
}

func TestChallenges(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodGet, "/api/challenges/catalog", "")
	if list := decodeList(t, rec); len(list) != 8 {
		t.Fatalf("expected 8 catalog entries, got %d", len(list))
	}

	do(t, srv, http.MethodPost, "/api/transactions",
		`{"name":"Café","value":5,"type":"expense","category":"Comida","date":"2025-03-14"}`)

	rec = do(t, srv, http.MethodPost, "/api/challenges", `{"challengeId":"5"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("accept: %d %s", rec.Code, rec.Body)
	}
	c := decode(t, rec)["challenge"].(map[string]any)
	if c["status"] != "completed" || c["rewarded"] != true {
		t.Errorf("expected completed and rewarded instance, got %v", c)
	}

	rec = do(t, srv, http.MethodPost, "/api/challenges", `{"challengeId":"5"}`)
	if rec.Code != http.StatusOK || decode(t, rec)["created"] != false {
		t.Errorf("re-accept should be a no-op, got %d %s", rec.Code, rec.Body)
	}

	rec = do(t, srv, http.MethodPost, "/api/challenges", `{"challengeId":"99"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown challenge: expected 422, got %d", rec.Code)
	}

	rec = do(t, srv, http.MethodPost, "/api/challenges/"+c["id"].(string)+"/abandon", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("abandon completed: expected 409, got %d", rec.Code)
	}

	rec = do(t, srv, http.MethodPost, "/api/challenges", `{"challengeId":"4"}`)
	active := decode(t, rec)["challenge"].(map[string]any)
	rec = do(t, srv, http.MethodPost, "/api/challenges/"+active["id"].(string)+"/abandon", "")
	if rec.Code != http.StatusOK || decode(t, rec)["status"] != "abandoned" {
		t.Errorf("abandon active: got %d %s", rec.Code, rec.Body)
	}

	rec = do(t, srv, http.MethodGet, "/api/challenges", "")
	if list := decodeList(t, rec); len(list) != 1 {
		t.Errorf("expected only the completed instance, got %d", len(list))
	}

	rec = do(t, srv, http.MethodGet, "/api/profile", "")
	profile := decode(t, rec)
	if profile["points"] != 50.0 {
		t.Errorf("expected 50 points, got %v", profile["points"])
	}
	if achievements := profile["achievements"].([]any); len(achievements) != 1 {
		t.Errorf("expected 1 achievement, got %d", len(achievements))
	}
}

func TestDashboardCacheInvalidation(t *testing.T) {
	srv, _ := newTestServer(t, Options{CacheTTL: time.Minute})

	rec := do(t, srv, http.MethodGet, "/api/dashboard", "")
	if got := decode(t, rec)["transactionCount"]; got != 0.0 {
		t.Fatalf("expected empty dashboard, got %v", got)
	}

	do(t, srv, http.MethodPost, "/api/transactions",
		`{"name":"Salário","value":100,"type":"income","category":"Trabalho","date":"2025-03-10"}`)

	rec = do(t, srv, http.MethodGet, "/api/dashboard", "")
	body := decode(t, rec)
	if body["transactionCount"] != 1.0 || body["balance"] != 100.0 {
		t.Errorf("dashboard not refreshed after mutation: %v", body)
	}
}

func TestBackendErrorsMapTo503(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	store.mu.Lock()
	store.failList = true
	store.mu.Unlock()

	rec := do(t, srv, http.MethodGet, "/api/transactions", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if strings.Contains(rec.Body.String(), "connection refused") {
		t.Error("backend cause must not leak to clients")
	}
}

func TestPartialMutationReturns202(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	store.mu.Lock()
	store.failBalance = true
	store.mu.Unlock()

	rec := do(t, srv, http.MethodPost, "/api/transactions",
		`{"name":"Salário","value":100,"type":"income","category":"Trabalho","date":"2025-03-10"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body)
	}
	if rec.Header().Get(HeaderReconcilePending) != "true" {
		t.Error("expected reconcile header")
	}
	if id := decode(t, rec)["transaction"].(map[string]any)["id"]; id == "" {
		t.Error("committed transaction should be returned")
	}
}

func TestRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, Options{RateLimitPerMinute: 2})
	for i := range 2 {
		if rec := do(t, srv, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: %d", i+1, rec.Code)
		}
	}
	rec := do(t, srv, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if decode(t, rec)["error"].(map[string]any)["code"] != "rate_limited" {
		t.Error("expected JSON rate limit body")
	}
}
