package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kakeibo/internal/log"
	"kakeibo/internal/memory"
	"kakeibo/internal/services"
	"kakeibo/internal/taxonomy"
)

var testNow = time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

type testEnv struct {
	srv      *Server
	store    *memory.Store
	recorder *services.AsyncRecorder
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	store := memory.New().WithClock(clock)
	logger := log.Discard()
	recorder := services.NewAsyncRecorder(store, time.Second, logger)
	categories := services.NewCategoryService(store, store, recorder, logger)
	analytics := services.NewAnalyticsService(store, services.AnalyticsConfig{CacheTTL: time.Minute, CacheSize: 32, Now: clock}, logger)
	ledger := services.NewLedgerService(store, clock, logger)
	categories.OnChange(analytics.Invalidate)
	ledger.OnChange(analytics.Invalidate)

	cfg.Now = clock
	srv := NewServer(cfg, Services{
		Seeder:     services.NewSeeder(store, store, store, store, services.SeederConfig{Now: clock}, logger),
		Categories: categories,
		Analytics:  analytics,
		Ledger:     ledger,
		Store:      store,
	}, logger)
	t.Cleanup(func() {
		recorder.Wait()
		_ = srv.Shutdown(context.Background())
	})
	return &testEnv{srv: srv, store: store, recorder: recorder}
}

func (e *testEnv) do(t *testing.T, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		req.Header.Set(UserIDHeader, user)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status=%d want %d body=%s", rr.Code, want, rr.Body.String())
	}
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, Config{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.do(t, http.MethodGet, path, "", "")
		expectStatus(t, rr, http.StatusOK)
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Fatalf("%s: missing security headers", path)
		}
		if !strings.HasPrefix(rr.Header().Get("X-Request-ID"), "req_") {
			t.Fatalf("%s: missing request id, got %q", path, rr.Header().Get("X-Request-ID"))
		}
	}

	env.srv.svc.Store = failingPinger{}
	rr := env.do(t, http.MethodGet, "/readyz", "", "")
	expectStatus(t, rr, http.StatusServiceUnavailable)
	body := decode[map[string]any](t, rr)
	if body["status"] != "not_ready" {
		t.Fatalf("unexpected readiness body %v", body)
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	env := newTestEnv(t, Config{})
	req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	req.Header.Set("X-Request-ID", "abc123")
	rr := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rr, req)

	expectStatus(t, rr, http.StatusUnauthorized)
	if rr.Header().Get("X-Request-ID") != "abc123" {
		t.Fatalf("request id not echoed: %q", rr.Header().Get("X-Request-ID"))
	}
	if body := decode[errorBody](t, rr); body.RequestID != "abc123" {
		t.Fatalf("error body should carry request id, got %+v", body)
	}
}

func TestMissingUserID(t *testing.T) {
	env := newTestEnv(t, Config{})
	for _, user := range []string{"", "   ", "a|b", strings.Repeat("x", 200)} {
		rr := env.do(t, http.MethodGet, "/api/categories", user, "")
		expectStatus(t, rr, http.StatusUnauthorized)
	}
	if got := env.srv.SecurityStats().MissingUserIDs; got != 4 {
		t.Fatalf("MissingUserIDs=%d want 4", got)
	}
}

func TestProfileAndBootstrap(t *testing.T) {
	env := newTestEnv(t, Config{})

	expectStatus(t, env.do(t, http.MethodPost, "/api/profiles", "u1", ""), http.StatusCreated)
	expectStatus(t, env.do(t, http.MethodPost, "/api/profiles", "u1", ""), http.StatusConflict)

	rr := env.do(t, http.MethodPost, "/api/bootstrap", "u1", "")
	expectStatus(t, rr, http.StatusAccepted)
	res := decode[services.BootstrapResult](t, rr)
	// Only subcategories whose parent is a default category are seeded.
	wantSubs := 0
	for _, sub := range taxonomy.Subcategories() {
		if taxonomy.IsDefault(sub.ParentKey()) {
			wantSubs++
		}
	}
	if wantSubs != 31 {
		t.Fatalf("catalog has %d seedable subcategories, want 31", wantSubs)
	}
	if res.Categories.Inserted != len(taxonomy.Categories()) || res.Subcategories.Inserted != wantSubs {
		t.Fatalf("unexpected first bootstrap %+v", res)
	}

	rr = env.do(t, http.MethodPost, "/api/bootstrap", "u1", "")
	expectStatus(t, rr, http.StatusAccepted)
	res = decode[services.BootstrapResult](t, rr)
	if res.Categories.Inserted != 0 || res.Categories.Skipped != services.SkipNothingMissing {
		t.Fatalf("second bootstrap should insert nothing, got %+v", res)
	}

	// Unknown users still get 202, with the skip reason.
	rr = env.do(t, http.MethodPost, "/api/bootstrap", "ghost", "")
	expectStatus(t, rr, http.StatusAccepted)
	if res := decode[services.BootstrapResult](t, rr); res.Categories.Skipped != services.SkipNoProfile {
		t.Fatalf("expected no_profile, got %+v", res)
	}

	rr = env.do(t, http.MethodGet, "/api/categories?type=income", "u1", "")
	expectStatus(t, rr, http.StatusOK)
	cats := decode[[]categoryJSON](t, rr)
	if len(cats) == 0 {
		t.Fatal("expected income categories")
	}
	for _, c := range cats {
		if c.Type != "income" || !c.IsDefault {
			t.Fatalf("unexpected category %+v", c)
		}
	}

	expectStatus(t, env.do(t, http.MethodGet, "/api/categories?type=weekly", "u1", ""), http.StatusUnprocessableEntity)

	rr = env.do(t, http.MethodGet, "/api/subcategories", "u1", "")
	expectStatus(t, rr, http.StatusOK)
	if subs := decode[[]subcategoryJSON](t, rr); len(subs) != len(taxonomy.Subcategories()) {
		t.Fatalf("got %d subcategories, want %d", len(subs), len(taxonomy.Subcategories()))
	}
}

func TestCategoryLifecycle(t *testing.T) {
	env := newTestEnv(t, Config{})

	rr := env.do(t, http.MethodPost, "/api/categories", "u1", `{"name":" 趣味 ","type":"expense"}`)
	expectStatus(t, rr, http.StatusCreated)
	c := decode[categoryJSON](t, rr)
	if c.Name != "趣味" || c.IsDefault || rr.Header().Get("Location") != "/api/categories/"+c.ID {
		t.Fatalf("unexpected created category %+v location=%q", c, rr.Header().Get("Location"))
	}

	expectStatus(t, env.do(t, http.MethodPost, "/api/categories", "u1", `{"name":"x","type":"gift"}`), http.StatusUnprocessableEntity)
	expectStatus(t, env.do(t, http.MethodPost, "/api/categories", "u1", `{"name":"","type":"expense"}`), http.StatusUnprocessableEntity)
	expectStatus(t, env.do(t, http.MethodPost, "/api/categories", "u1", `{"name":"x","type":"expense","color":"red"}`), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodPost, "/api/categories", "u1", `{"name":`), http.StatusBadRequest)

	rr = env.do(t, http.MethodGet, "/api/categories/"+c.ID+"/subcategories", "u1", "")
	expectStatus(t, rr, http.StatusOK)
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("expected empty list, got %s", rr.Body.String())
	}

	expectStatus(t, env.do(t, http.MethodDelete, "/api/categories/"+c.ID, "u2", ""), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodDelete, "/api/categories/"+c.ID, "u1", ""), http.StatusNoContent)
	expectStatus(t, env.do(t, http.MethodDelete, "/api/categories/"+c.ID, "u1", ""), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodPut, "/api/categories/"+c.ID, "u1", ""), http.StatusMethodNotAllowed)
}

func TestDeleteDefaultCategoryRecordsTombstone(t *testing.T) {
	env := newTestEnv(t, Config{})
	expectStatus(t, env.do(t, http.MethodPost, "/api/profiles", "u1", ""), http.StatusCreated)
	expectStatus(t, env.do(t, http.MethodPost, "/api/bootstrap", "u1", ""), http.StatusAccepted)

	cats := decode[[]categoryJSON](t, env.do(t, http.MethodGet, "/api/categories?type=expense", "u1", ""))
	var food categoryJSON
	for _, c := range cats {
		if c.Name == "食費" {
			food = c
		}
	}
	if food.ID == "" {
		t.Fatal("default category 食費 missing")
	}
	expectStatus(t, env.do(t, http.MethodDelete, "/api/categories/"+food.ID, "u1", ""), http.StatusNoContent)

	env.recorder.Wait()
	tombs, err := env.store.ListTombstones(context.Background(), "u1")
	if err != nil || len(tombs) != 1 || tombs[0].CategoryName != "食費" {
		t.Fatalf("unexpected tombstones %+v %v", tombs, err)
	}
}

func TestTransactionsAndAnalytics(t *testing.T) {
	env := newTestEnv(t, Config{})
	food := decode[categoryJSON](t, env.do(t, http.MethodPost, "/api/categories", "u1", `{"name":"食費","type":"expense"}`))
	rent := decode[categoryJSON](t, env.do(t, http.MethodPost, "/api/categories", "u1", `{"name":"住居","type":"expense"}`))
	salary := decode[categoryJSON](t, env.do(t, http.MethodPost, "/api/categories", "u1", `{"name":"給与","type":"income"}`))

	for _, body := range []string{
		fmt.Sprintf(`{"type":"expense","amount":"1,200","date":"2024-03-02","category_id":%q}`, food.ID),
		fmt.Sprintf(`{"type":"expense","amount":800,"date":"2024-03-10","category_id":%q,"description":"スーパー"}`, food.ID),
		fmt.Sprintf(`{"type":"expense","amount":3000,"date":"2024-02-25","category_id":%q}`, rent.ID),
		fmt.Sprintf(`{"type":"income","amount":10000,"date":"2024-03-01","category_id":%q}`, salary.ID),
		`{"type":"income","amount":5000,"date":"2023-03-05"}`,
		`{"type":"expense","amount":400}`,
	} {
		expectStatus(t, env.do(t, http.MethodPost, "/api/transactions", "u1", body), http.StatusCreated)
	}

	expectStatus(t, env.do(t, http.MethodPost, "/api/transactions", "u1", `{"type":"expense","amount":"-5"}`), http.StatusUnprocessableEntity)
	expectStatus(t, env.do(t, http.MethodPost, "/api/transactions", "u1", `{"type":"expense","amount":5,"date":"15/03/2024"}`), http.StatusUnprocessableEntity)
	expectStatus(t, env.do(t, http.MethodPost, "/api/transactions", "u2", fmt.Sprintf(`{"type":"expense","amount":5,"category_id":%q}`, food.ID)), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodPost, "/api/transactions", "u1", `{"type":"expense","amount":5,"subcategory_id":"s1"}`), http.StatusUnprocessableEntity)
	expectStatus(t, env.do(t, http.MethodPost, "/api/transactions", "u1", fmt.Sprintf(`{"type":"expense","amount":5,"category_id":%q,"subcategory_id":"s1"}`, food.ID)), http.StatusNotFound)

	rr := env.do(t, http.MethodGet, "/api/transactions?type=expense", "u1", "")
	expectStatus(t, rr, http.StatusOK)
	listed := decode[struct {
		Transactions []transactionJSON `json:"transactions"`
	}](t, rr)
	if len(listed.Transactions) != 3 || listed.Transactions[0].Date != "2024-03-15" {
		t.Fatalf("unexpected march expenses %+v", listed.Transactions)
	}

	sum := decode[summaryJSON](t, env.do(t, http.MethodGet, "/api/analytics/summary", "u1", ""))
	if sum.Totals != (totalsJSON{Income: 10000, Expense: 2400, Balance: 7600}) || sum.Count != 4 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if sum.Range != (rangeJSON{Start: "2024-03-01", End: "2024-03-31"}) {
		t.Fatalf("default range should be this month, got %+v", sum.Range)
	}

	monthly := decode[struct {
		Months []monthJSON `json:"months"`
	}](t, env.do(t, http.MethodGet, "/api/analytics/monthly?start=2024-01-01&end=2024-03-31", "u1", ""))
	if len(monthly.Months) != 3 || monthly.Months[0].Expense != 0 || monthly.Months[1].Expense != 3000 {
		t.Fatalf("unexpected monthly series %+v", monthly.Months)
	}

	trend := decode[struct {
		Months []monthJSON `json:"months"`
	}](t, env.do(t, http.MethodGet, "/api/analytics/trend", "u1", ""))
	if len(trend.Months) != services.TrendMonths || trend.Months[len(trend.Months)-1].Month != "2024-03" {
		t.Fatalf("unexpected trend %+v", trend.Months)
	}

	breakdown := decode[struct {
		Type       string      `json:"type"`
		Categories []shareJSON `json:"categories"`
	}](t, env.do(t, http.MethodGet, "/api/analytics/categories?period=thisMonth", "u1", ""))
	if breakdown.Type != "expense" || len(breakdown.Categories) != 2 {
		t.Fatalf("unexpected breakdown %+v", breakdown)
	}
	if breakdown.Categories[0].Name != "食費" || breakdown.Categories[0].Amount != 2000 {
		t.Fatalf("largest share should be 食費, got %+v", breakdown.Categories)
	}
	if members := breakdown.Categories[0].Transactions; len(members) != 2 ||
		members[0].Date != "2024-03-10" || members[0].Description != "スーパー" ||
		members[1].Date != "2024-03-02" || members[1].Amount != 1200 {
		t.Fatalf("食費 drill-down should list its transactions newest first, got %+v", members)
	}

	cmp := decode[comparisonJSON](t, env.do(t, http.MethodGet, "/api/analytics/comparison", "u1", ""))
	if cmp.PreviousRange.Start != "2023-03-01" || cmp.Previous.Income != 5000 || cmp.Income.ChangePercent != 100 {
		t.Fatalf("unexpected comparison %+v", cmp)
	}

	// Deleting a category invalidates cached aggregates.
	expectStatus(t, env.do(t, http.MethodDelete, "/api/categories/"+food.ID, "u1", ""), http.StatusNoContent)
	breakdown = decode[struct {
		Type       string      `json:"type"`
		Categories []shareJSON `json:"categories"`
	}](t, env.do(t, http.MethodGet, "/api/analytics/categories?period=thisMonth", "u1", ""))
	if breakdown.Categories[0].Name != "未分類" || breakdown.Categories[0].Amount != 2400 {
		t.Fatalf("deleted category should fold into 未分類, got %+v", breakdown.Categories)
	}

	expectStatus(t, env.do(t, http.MethodGet, "/api/analytics/summary?start=2024-03-10", "u1", ""), http.StatusUnprocessableEntity)
	expectStatus(t, env.do(t, http.MethodGet, "/api/analytics/summary?period=fortnight", "u1", ""), http.StatusUnprocessableEntity)
}

func TestRateLimitAppliesToPOSTOnly(t *testing.T) {
	env := newTestEnv(t, Config{RateLimit: 2, RateWindow: time.Minute})

	for i := 0; i < 2; i++ {
		expectStatus(t, env.do(t, http.MethodPost, "/api/bootstrap", "u1", ""), http.StatusAccepted)
	}
	rr := env.do(t, http.MethodPost, "/api/bootstrap", "u1", "")
	expectStatus(t, rr, http.StatusTooManyRequests)
	if rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("Retry-After=%q", rr.Header().Get("Retry-After"))
	}
	expectStatus(t, env.do(t, http.MethodGet, "/api/categories", "u1", ""), http.StatusOK)
	if env.srv.SecurityStats().RateLimitHits != 1 {
		t.Fatalf("expected one rate limit hit, got %+v", env.srv.SecurityStats())
	}

	rr = env.do(t, http.MethodGet, "/metrics", "", "")
	expectStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), "rate_limit_hits_total 1") || !strings.Contains(rr.Body.String(), "bootstraps_total 2") {
		t.Fatalf("unexpected metrics:\n%s", rr.Body.String())
	}
}
