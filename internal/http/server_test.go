package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"finan/internal/auth"
	"finan/internal/core"
	"finan/internal/ledger"
	"finan/internal/metrics"
	"finan/internal/middleware/ratelimit"
	"finan/internal/notify"
	"finan/internal/storage"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var fixedNow = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	srv     *Server
	repo    *storage.SQLiteRepository
	ledger  *ledger.Service
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T, rl ratelimit.Config, ensureSchema bool) *testEnv {
	t.Helper()
	repo, err := storage.Open(filepath.Join(t.TempDir(), "api.db"), storage.WithLocation(time.UTC))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	if ensureSchema {
		if err := repo.EnsureSchema(context.Background()); err != nil {
			t.Fatalf("EnsureSchema: %v", err)
		}
	}

	m := metrics.New()
	notices := notify.NewBuffer(16, 10, time.Hour)
	clock := func() time.Time { return fixedNow }
	svc := ledger.New(repo,
		ledger.WithNotifier(notices),
		ledger.WithMetrics(m),
		ledger.WithClock(clock),
		ledger.WithLocation(time.UTC),
	)
	t.Cleanup(svc.Wait)

	srv, err := NewServer(":0", Dependencies{
		Ledger:    svc,
		Users:     auth.NewPasswordAuthenticator(repo, bcrypt.MinCost),
		Tokens:    auth.NewJWTManager(testSecret, time.Hour),
		Notices:   notices,
		Metrics:   m,
		Location:  time.UTC,
		RateLimit: rl,
		Now:       clock,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, repo: repo, ledger: svc, metrics: m}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) register(t *testing.T, email string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Ana", "email": email, "password": "s3cret-pass",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d body=%s", rec.Code, rec.Body)
	}
	return decodeAs[sessionResponse](t, rec).Token
}

func (e *testEnv) categoryID(t *testing.T, token, name string) int64 {
	t.Helper()
	rec := e.do(t, http.MethodGet, "/api/categories", token, nil)
	for _, c := range decodeAs[[]core.Category](t, rec) {
		if c.Name == name {
			return c.ID
		}
	}
	t.Fatalf("category %q not listed", name)
	return 0
}

func decodeAs[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T from %q: %v", v, rec.Body.String(), err)
	}
	return v
}

func TestHealthAndReadiness(t *testing.T) {
	env := newTestEnv(t, ratelimit.Config{}, false)

	if rec := env.do(t, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}
	rec := env.do(t, http.MethodGet, "/readyz", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz before schema = %d", rec.Code)
	}
	if body := decodeAs[ErrorBody](t, rec); body.Code != CodeNotReady || body.RequestID == "" {
		t.Errorf("body = %+v", body)
	}

	if err := env.repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if rec := env.do(t, http.MethodGet, "/readyz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("readyz after schema = %d", rec.Code)
	}
}

func TestRegisterLoginAndProfile(t *testing.T) {
	env := newTestEnv(t, ratelimit.Config{}, true)
	token := env.register(t, "ana@example.com")

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Other", "email": "ANA@example.com", "password": "another-pass",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate register = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ana@example.com", "password": "wrong-pass"})
	if rec.Code != http.StatusUnauthorized || rec.Header().Get("WWW-Authenticate") == "" {
		t.Errorf("bad login = %d, WWW-Authenticate %q", rec.Code, rec.Header().Get("WWW-Authenticate"))
	}
	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ana@example.com", "password": "s3cret-pass"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d", rec.Code)
	}

	if rec := env.do(t, http.MethodGet, "/api/profile", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("profile without token = %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/profile", token, nil)
	if u := decodeAs[core.User](t, rec); rec.Code != http.StatusOK || u.Email != "ana@example.com" {
		t.Errorf("profile = %d %+v", rec.Code, u)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Errorf("profile leaks password hash: %s", rec.Body)
	}

	rec = env.do(t, http.MethodPut, "/api/profile", token, map[string]string{"name": "Ana Maria", "email": "ana.maria@example.com"})
	if u := decodeAs[core.User](t, rec); rec.Code != http.StatusOK || u.Name != "Ana Maria" {
		t.Errorf("update profile = %d %+v", rec.Code, u)
	}
	rec = env.do(t, http.MethodPut, "/api/profile/photo", token, map[string]string{"photo": "data:text/plain;base64,aGk="})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad photo = %d", rec.Code)
	}
	rec = env.do(t, http.MethodPut, "/api/profile/photo", token, map[string]string{"photo": "data:image/png;base64,aGk="})
	if rec.Code != http.StatusNoContent {
		t.Errorf("photo = %d", rec.Code)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	env := newTestEnv(t, ratelimit.Config{}, true)
	token := env.register(t, "ana@example.com")
	food := env.categoryID(t, token, "Food")
	salary := env.categoryID(t, token, "Salary")

	rec := env.do(t, http.MethodGet, "/api/categories?kind=income", token, nil)
	for _, c := range decodeAs[[]core.Category](t, rec) {
		if c.Kind != core.KindIncome {
			t.Errorf("kind filter returned %+v", c)
		}
	}

	rec = env.do(t, http.MethodPost, "/api/transactions", token, map[string]any{
		"kind": "income", "amount": 3000, "categoryId": salary, "description": "March salary", "date": "2025-03-01",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create income = %d %s", rec.Code, rec.Body)
	}
	rec = env.do(t, http.MethodPost, "/api/transactions", token, map[string]any{
		"kind": "expense", "amount": "12,50", "categoryId": food, "description": "Lunch", "date": "2025-03-02",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create expense = %d %s", rec.Code, rec.Body)
	}
	created := decodeAs[core.Transaction](t, rec)
	if created.Amount.Cents != 1250 || created.UserID == 0 {
		t.Errorf("created = %+v", created)
	}

	rec = env.do(t, http.MethodGet, "/api/summary/monthly?year=2025&month=3", token, nil)
	sum := decodeAs[monthSummaryResponse](t, rec)
	if sum.Income.Cents != 300000 || sum.Expense.Cents != 1250 || sum.Balance.Cents != 298750 || sum.MonthLabel != "March" {
		t.Errorf("monthly summary = %+v", sum)
	}

	path := fmt.Sprintf("/api/transactions/%d", created.ID)
	rec = env.do(t, http.MethodPut, path, token, map[string]any{
		"kind": "expense", "amount": 20, "categoryId": food, "description": "Dinner",
	})
	if updated := decodeAs[core.Transaction](t, rec); rec.Code != http.StatusOK || updated.Amount.Cents != 2000 || !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("update = %d %+v", rec.Code, updated)
	}

	rec = env.do(t, http.MethodGet, "/api/summary/categories", token, nil)
	shares := decodeAs[categorySharesResponse](t, rec)
	if len(shares.Categories) != 1 || shares.Categories[0].Percent != 100 {
		t.Errorf("shares = %+v", shares)
	}

	if rec := env.do(t, http.MethodDelete, path, token, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, path, token, nil); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/transactions", token, nil)
	if txs := decodeAs[[]core.Transaction](t, rec); len(txs) != 1 {
		t.Errorf("list = %d transactions", len(txs))
	}
}

func TestValidationAndBadRequests(t *testing.T) {
	env := newTestEnv(t, ratelimit.Config{}, true)
	token := env.register(t, "ana@example.com")
	food := env.categoryID(t, token, "Food")
	salary := env.categoryID(t, token, "Salary")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"zero amount", http.MethodPost, "/api/transactions", map[string]any{"kind": "expense", "amount": 0, "categoryId": food, "description": "x"}, 422, CodeValidation},
		{"kind mismatch", http.MethodPost, "/api/transactions", map[string]any{"kind": "expense", "amount": 5, "categoryId": salary, "description": "x"}, 422, CodeValidation},
		{"unknown category", http.MethodPost, "/api/transactions", map[string]any{"kind": "expense", "amount": 5, "categoryId": 9999, "description": "x"}, 422, CodeValidation},
		{"malformed json", http.MethodPost, "/api/transactions", "{", 400, CodeBadRequest},
		{"bad month", http.MethodGet, "/api/summary/monthly?month=13", nil, 422, CodeValidation},
		{"bad period", http.MethodGet, "/api/statistics?period=year", nil, 422, CodeValidation},
		{"bad count", http.MethodGet, "/api/history?count=lots", nil, 422, CodeValidation},
		{"bad id", http.MethodDelete, "/api/transactions/abc", nil, 422, CodeValidation},
		{"bad format", http.MethodGet, "/api/export/transactions?format=pdf", nil, 422, CodeValidation},
		{"bad category kind", http.MethodPost, "/api/categories", map[string]any{"name": "Gifts", "kind": "gift"}, 422, CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, token, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body)
			}
			if body := decodeAs[ErrorBody](t, rec); body.Code != tt.code {
				t.Errorf("code = %q, want %q", body.Code, tt.code)
			}
		})
	}
}

func TestUsersAreIsolated(t *testing.T) {
	env := newTestEnv(t, ratelimit.Config{}, true)
	ana := env.register(t, "ana@example.com")
	bob := env.register(t, "bob@example.com")

	rec := env.do(t, http.MethodPost, "/api/categories", ana, map[string]any{"name": "Pets", "kind": "expense"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create category = %d %s", rec.Code, rec.Body)
	}
	pets := decodeAs[core.Category](t, rec)

	rec = env.do(t, http.MethodPost, "/api/transactions", ana, map[string]any{
		"kind": "expense", "amount": 40, "categoryId": pets.ID, "description": "Vet",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body)
	}
	tx := decodeAs[core.Transaction](t, rec)
	path := fmt.Sprintf("/api/transactions/%d", tx.ID)

	if rec := env.do(t, http.MethodGet, path, bob, nil); rec.Code != http.StatusNotFound {
		t.Errorf("bob get = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, path, bob, nil); rec.Code != http.StatusNotFound {
		t.Errorf("bob delete = %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/api/transactions", bob, map[string]any{
		"kind": "expense", "amount": 1, "categoryId": pets.ID, "description": "x",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bob using ana's category = %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/categories", bob, nil)
	for _, c := range decodeAs[[]core.Category](t, rec) {
		if c.ID == pets.ID {
			t.Errorf("bob sees ana's category")
		}
	}
}

func TestStatisticsAndHistory(t *testing.T) {
	env := newTestEnv(t, ratelimit.Config{}, true)
	token := env.register(t, "ana@example.com")
	food := env.categoryID(t, token, "Food")
	salary := env.categoryID(t, token, "Salary")

	for _, body := range []map[string]any{
		{"kind": "income", "amount": 1000, "categoryId": salary, "description": "Feb", "date": "2025-02-01"},
		{"kind": "expense", "amount": 400, "categoryId": food, "description": "Feb food", "date": "2025-02-10"},
		{"kind": "income", "amount": 1000, "categoryId": salary, "description": "Mar", "date": "2025-03-01"},
		{"kind": "expense", "amount": 300, "categoryId": food, "description": "Mar food", "date": "2025-03-05"},
	} {
		if rec := env.do(t, http.MethodPost, "/api/transactions", token, body); rec.Code != http.StatusCreated {
			t.Fatalf("create = %d %s", rec.Code, rec.Body)
		}
	}

	rec := env.do(t, http.MethodGet, "/api/summary/comparison", token, nil)
	if cmp := decodeAs[core.Comparison](t, rec); cmp.ExpenseChange != -25 || cmp.IncomeChange != 0 {
		t.Errorf("comparison = %+v", cmp)
	}
	rec = env.do(t, http.MethodGet, "/api/summary/previous", token, nil)
	if prev := decodeAs[monthSummaryResponse](t, rec); prev.Month != 2 || prev.Expense.Cents != 40000 {
		t.Errorf("previous = %+v", prev)
	}
	rec = env.do(t, http.MethodGet, "/api/summary/total", token, nil)
	if total := decodeAs[core.Summary](t, rec); total.Balance.Cents != 130000 {
		t.Errorf("total = %+v", total)
	}
	rec = env.do(t, http.MethodGet, "/api/history?count=1", token, nil)
	if hist := decodeAs[[]core.MonthHistory](t, rec); len(hist) != 1 || hist[0].Month != 3 {
		t.Errorf("history = %+v", hist)
	}

	rec = env.do(t, http.MethodGet, "/api/statistics?period=quarter", token, nil)
	st := decodeAs[ledger.Statistics](t, rec)
	if st.Period != ledger.PeriodQuarter || st.Summary.Expense.Cents != 70000 || !st.HasData {
		t.Errorf("quarter statistics = %+v", st)
	}
	rec = env.do(t, http.MethodGet, "/api/statistics", token, nil)
	if st := decodeAs[ledger.Statistics](t, rec); st.Period != ledger.PeriodMonth || st.Comparison == nil {
		t.Errorf("month statistics = %+v", st)
	}
}

func TestNotificationsDrain(t *testing.T) {
	env := newTestEnv(t, ratelimit.Config{}, true)
	token := env.register(t, "ana@example.com")
	food := env.categoryID(t, token, "Food")

	env.do(t, http.MethodPost, "/api/transactions", token, map[string]any{
		"kind": "expense", "amount": 3, "categoryId": food, "description": "Coffee",
	})

	type notices struct {
		Notifications []notify.Notice `json:"notifications"`
	}
	got := decodeAs[notices](t, env.do(t, http.MethodGet, "/api/notifications", token, nil))
	if len(got.Notifications) != 1 || got.Notifications[0].Message != "Transaction recorded." {
		t.Fatalf("notifications = %+v", got)
	}
	got = decodeAs[notices](t, env.do(t, http.MethodGet, "/api/notifications", token, nil))
	if len(got.Notifications) != 0 {
		t.Errorf("notifications not drained: %+v", got)
	}
}

func TestExportAndStatement(t *testing.T) {
	env := newTestEnv(t, ratelimit.Config{}, true)
	token := env.register(t, "ana@example.com")
	food := env.categoryID(t, token, "Food")
	env.do(t, http.MethodPost, "/api/transactions", token, map[string]any{
		"kind": "expense", "amount": 9.99, "categoryId": food, "description": "Pizza", "date": "2025-03-03",
	})

	rec := env.do(t, http.MethodGet, "/api/export/transactions?format=csv", token, nil)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("csv export = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "2025-03-03,expense,Food,Pizza,9.99") {
		t.Errorf("csv body = %q", rec.Body)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "transactions-2025-03-15.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	rec = env.do(t, http.MethodGet, "/api/export/transactions", token, nil)
	if rec.Header().Get("Content-Type") != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" ||
		!bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Errorf("xlsx export = %q", rec.Header().Get("Content-Type"))
	}

	rec = env.do(t, http.MethodGet, "/api/reports/statement?year=2025&month=3", token, nil)
	if rec.Code != http.StatusOK || !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
		t.Errorf("statement = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
}

func TestRateLimitOnlyMutations(t *testing.T) {
	env := newTestEnv(t, ratelimit.Config{RequestsPerMinute: 2}, true)
	login := map[string]string{"email": "nobody@example.com", "password": "whatever1"}

	for i := 0; i < 2; i++ {
		if rec := env.do(t, http.MethodPost, "/api/auth/login", "", login); rec.Code != http.StatusUnauthorized {
			t.Fatalf("login %d = %d", i, rec.Code)
		}
	}
	rec := env.do(t, http.MethodPost, "/api/auth/login", "", login)
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("third login = %d, Retry-After %q", rec.Code, rec.Header().Get("Retry-After"))
	}
	if body := decodeAs[ErrorBody](t, rec); body.Code != CodeRateLimited {
		t.Errorf("code = %q", body.Code)
	}
	if rec := env.do(t, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Errorf("reads limited: %d", rec.Code)
	}
}

func TestMiddlewareHeadersAndMetrics(t *testing.T) {
	env := newTestEnv(t, ratelimit.Config{}, true)

	rec := env.do(t, http.MethodGet, "/api/categories", "", nil)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q", rec.Header().Get("Cache-Control"))
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing nosniff")
	}
	if body := decodeAs[ErrorBody](t, rec); body.RequestID != rec.Header().Get("X-Request-ID") {
		t.Errorf("body request id %q, header %q", body.RequestID, rec.Header().Get("X-Request-ID"))
	}

	rec = env.do(t, http.MethodGet, "/metrics", "", nil)
	if !strings.Contains(rec.Body.String(), `finan_http_requests_total{code="401",method="GET",route="GET /api/categories"} 1`) {
		t.Errorf("metrics missing request counter:\n%s", rec.Body)
	}
}

func TestTransactionStream(t *testing.T) {
	env := newTestEnv(t, ratelimit.Config{}, true)
	token := env.register(t, "ana@example.com")
	food := env.categoryID(t, token, "Food")

	ts := httptest.NewServer(env.srv.Handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream/transactions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	events := make(chan []core.Transaction, 4)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			data, ok := strings.CutPrefix(sc.Text(), "data: ")
			if !ok {
				continue
			}
			var txs []core.Transaction
			if json.Unmarshal([]byte(data), &txs) == nil {
				events <- txs
			}
		}
		close(events)
	}()

	if rec := env.do(t, http.MethodPost, "/api/transactions", token, map[string]any{
		"kind": "expense", "amount": 7, "categoryId": food, "description": "Books",
	}); rec.Code != http.StatusCreated {
		t.Fatalf("create = %d", rec.Code)
	}

	for {
		select {
		case txs, ok := <-events:
			if !ok {
				t.Fatal("stream closed before the new transaction arrived")
			}
			if len(txs) == 1 && txs[0].Description == "Books" {
				return
			}
		case <-ctx.Done():
			t.Fatal("timed out waiting for snapshot event")
		}
	}
}
