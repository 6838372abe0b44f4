package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"daisycash/internal/auth"
	"daisycash/internal/backend"
	"daisycash/internal/blob/local"
	"daisycash/internal/cache"
	"daisycash/internal/core"
	applog "daisycash/internal/log"
	"daisycash/internal/middleware/ratelimit"
	"daisycash/internal/services"
	"daisycash/internal/store/memory"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testEmail    = "owner@example.com"
	testPassword = "correct horse battery"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type testEnv struct {
	srv   *Server
	token string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	st := memory.New([]core.Category{
		{ID: "salary", Name: "Salary", Kind: core.Credit},
		{ID: "food", Name: "Food", Kind: core.Debit},
		{ID: "other", Name: "Other", Kind: core.Both},
	})
	blobs, err := local.New(t.TempDir(), backend.FilesPath)
	if err != nil {
		t.Fatalf("local.New: %v", err)
	}
	txs := services.NewTransactionService(st, blobs, nil)
	reports := services.NewReportService(st, txs, cache.NewLRUCache[core.Report](16, time.Minute))
	authSvc := auth.NewService(st, testSecret, time.Hour)
	if _, err := authSvc.EnsureUser(ctx, testEmail, testPassword); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	sess, err := authSvc.Login(ctx, testEmail, testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	srv := NewServer(":0", Deps{
		Store:        st,
		Auth:         authSvc,
		Transactions: txs,
		Reports:      reports,
		Blobs:        blobs,
		Logger:       applog.New(applog.Config{Output: io.Discard}),
		RateLimit:    ratelimit.Config{RequestsPerSecond: 1000, Burst: 1000},
	})
	srv.WithClock(func() time.Time { return time.Date(2025, time.January, 20, 12, 0, 0, 0, time.UTC) })
	return &testEnv{srv: srv, token: sess.Token}
}

// do sends an authenticated request with an optional JSON body.
func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.token)
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) upload(t *testing.T, path string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "upload.bin")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fw.Write(content)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+e.token)
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

func groceries() map[string]any {
	return map[string]any{
		"occurredOn": "2025-01-10",
		"kind":       "debit",
		"title":      "Groceries",
		"amount":     "12.50",
		"categoryId": "food",
	}
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		env.srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body.String())
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Fatalf("%s missing request id", path)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Fatalf("%s missing security headers", path)
		}
	}
}

func TestGuardRejectsAnonymousCallers(t *testing.T) {
	env := newTestEnv(t)

	rr := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/transactions", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("api status=%d, want 401", rr.Code)
	}

	rr = httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != auth.LoginPath {
		t.Fatalf("page status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}
}

func TestLoginLogoutFlow(t *testing.T) {
	env := newTestEnv(t)
	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		env.srv.Handler.ServeHTTP(rr, req)
		return rr
	}

	if rr := post(`{"email":"owner@example.com","password":"wrong"}`); rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status=%d", rr.Code)
	}
	if rr := post(`{"email":"","password":""}`); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty credentials status=%d", rr.Code)
	}
	if rr := post(`not json`); rr.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status=%d", rr.Code)
	}

	rr := post(`{"email":"owner@example.com","password":"correct horse battery"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", rr.Code, rr.Body.String())
	}
	var cookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.CookieName {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" || !cookie.HttpOnly {
		t.Fatalf("session cookie not set: %+v", rr.Result().Cookies())
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	req.AddCookie(cookie)
	rr = httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != auth.DashboardPath {
		t.Fatalf("authenticated login page status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}

	req = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(cookie)
	rr = httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("logout status=%d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	req.AddCookie(cookie)
	rr = httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("revoked session status=%d, want 401", rr.Code)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/transactions", groceries())
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	created := decode[core.Transaction](t, rr)
	if created.ID == "" || created.Category.Name != "Food" || created.Amount.String() != "12.5" {
		t.Fatalf("unexpected created transaction: %+v", created)
	}
	if rr.Header().Get("Location") != "/api/transactions/"+created.ID {
		t.Fatalf("Location = %q", rr.Header().Get("Location"))
	}

	if rr := env.do(t, http.MethodGet, "/api/transactions/"+created.ID, nil); rr.Code != http.StatusOK {
		t.Fatalf("get status=%d", rr.Code)
	}

	tests := []struct {
		query string
		code  int
		count int
	}{
		{query: "", code: http.StatusOK, count: 1},
		{query: "?type=all", code: http.StatusOK, count: 1},
		{query: "?type=debit", code: http.StatusOK, count: 1},
		{query: "?type=credit", code: http.StatusOK, count: 0},
		{query: "?from=2025-01-11", code: http.StatusOK, count: 0},
		{query: "?from=2025-01-01&to=2025-01-31", code: http.StatusOK, count: 1},
		{query: "?type=both", code: http.StatusBadRequest},
		{query: "?from=yesterday", code: http.StatusBadRequest},
	}
	for _, tt := range tests {
		rr := env.do(t, http.MethodGet, "/api/transactions"+tt.query, nil)
		if rr.Code != tt.code {
			t.Fatalf("list%s status=%d, want %d", tt.query, rr.Code, tt.code)
		}
		if tt.code != http.StatusOK {
			continue
		}
		if got := decode[struct{ Count int }](t, rr); got.Count != tt.count {
			t.Fatalf("list%s count=%d, want %d", tt.query, got.Count, tt.count)
		}
	}

	mismatch := groceries()
	mismatch["kind"] = "credit"
	if rr := env.do(t, http.MethodPut, "/api/transactions/"+created.ID, mismatch); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("kind mismatch status=%d body=%s", rr.Code, rr.Body.String())
	}

	updated := groceries()
	updated["title"] = "Market"
	updated["categoryId"] = "missing"
	rr = env.do(t, http.MethodPut, "/api/transactions/"+created.ID, updated)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := decode[core.Transaction](t, rr); got.Title != "Market" || got.Category.Name != core.Uncategorized {
		t.Fatalf("unexpected update result: %+v", got)
	}

	if rr := env.do(t, http.MethodDelete, "/api/transactions/"+created.ID, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/api/transactions/"+created.ID, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete status=%d", rr.Code)
	}
	if got := decode[errorBody](t, rr); got.Error == "" {
		t.Fatalf("404 without error body")
	}
}

func TestTransactionValidation(t *testing.T) {
	env := newTestEnv(t)

	noTitle := groceries()
	noTitle["title"] = "  "
	negative := groceries()
	negative["amount"] = "-3"
	badDate := groceries()
	badDate["occurredOn"] = "10/01/2025"
	unknownField := groceries()
	unknownField["extra"] = true

	tests := []struct {
		name string
		body any
		code int
	}{
		{name: "empty title", body: noTitle, code: http.StatusUnprocessableEntity},
		{name: "negative amount", body: negative, code: http.StatusUnprocessableEntity},
		{name: "bad date", body: badDate, code: http.StatusUnprocessableEntity},
		{name: "unknown field", body: unknownField, code: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := env.do(t, http.MethodPost, "/api/transactions", tt.body); rr.Code != tt.code {
				t.Fatalf("status=%d, want %d body=%s", rr.Code, tt.code, rr.Body.String())
			}
		})
	}
}

func TestReceiptUploadAndServe(t *testing.T) {
	env := newTestEnv(t)
	created := decode[core.Transaction](t, env.do(t, http.MethodPost, "/api/transactions", groceries()))

	rr := env.upload(t, "/api/transactions/"+created.ID+"/receipt", []byte("just text"))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("non-image upload status=%d", rr.Code)
	}

	rr = env.upload(t, "/api/transactions/"+created.ID+"/receipt", pngHeader)
	if rr.Code != http.StatusOK {
		t.Fatalf("upload status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := decode[transactionView](t, rr)
	if got.ImageRef == "" || got.ReceiptURL != backend.FilesPath+"/"+got.ImageRef {
		t.Fatalf("unexpected receipt fields: ref=%q url=%q", got.ImageRef, got.ReceiptURL)
	}

	rr = env.do(t, http.MethodGet, got.ReceiptURL, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("file status=%d", rr.Code)
	}
	if rr.Header().Get("Content-Type") != "image/png" || !bytes.Equal(rr.Body.Bytes(), pngHeader) {
		t.Fatalf("unexpected file response: %q %q", rr.Header().Get("Content-Type"), rr.Body.Bytes())
	}

	if rr := env.do(t, http.MethodGet, "/files/nope.png", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("missing file status=%d", rr.Code)
	}
	if rr := env.upload(t, "/api/transactions/missing/receipt", pngHeader); rr.Code != http.StatusNotFound {
		t.Fatalf("receipt for missing transaction status=%d", rr.Code)
	}
}

func TestCategories(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/categories?kind=credit", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status=%d", rr.Code)
	}
	var names []string
	for _, c := range decode[struct{ Categories []core.Category }](t, rr).Categories {
		names = append(names, c.Name)
	}
	if strings.Join(names, ",") != "Other,Salary" && strings.Join(names, ",") != "Salary,Other" {
		t.Fatalf("credit categories = %v", names)
	}

	if rr := env.do(t, http.MethodGet, "/api/categories?kind=sideways", nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad kind status=%d", rr.Code)
	}

	bad := map[string]any{"name": "Rent", "kind": "debit", "color": "blue"}
	if rr := env.do(t, http.MethodPost, "/api/categories", bad); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad color status=%d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "Rent", "kind": "debit", "color": "#aa0000"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	c := decode[core.Category](t, rr)

	rr = env.do(t, http.MethodPut, "/api/categories/"+c.ID, map[string]any{"name": "Housing", "kind": "debit"})
	if rr.Code != http.StatusOK || decode[core.Category](t, rr).Name != "Housing" {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr := env.do(t, http.MethodDelete, "/api/categories/"+c.ID, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodDelete, "/api/categories/"+c.ID, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d", rr.Code)
	}
}

func TestReports(t *testing.T) {
	env := newTestEnv(t)
	salary := map[string]any{
		"occurredOn": "2025-01-02", "kind": "credit", "title": "Pay", "amount": "500", "categoryId": "salary",
	}
	for _, body := range []any{salary, groceries()} {
		if rr := env.do(t, http.MethodPost, "/api/transactions", body); rr.Code != http.StatusCreated {
			t.Fatalf("seed status=%d body=%s", rr.Code, rr.Body.String())
		}
	}

	rr := env.do(t, http.MethodGet, "/api/reports/monthly?year=2025&month=1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("monthly status=%d", rr.Code)
	}
	rep := decode[map[string]any](t, rr)
	if rep["totalCredit"] != "500" || rep["totalDebit"] != "12.5" || rep["netBalance"] != "487.5" {
		t.Fatalf("unexpected monthly totals: %v", rep)
	}

	rr = env.do(t, http.MethodGet, "/api/reports/monthly", nil)
	if rr.Code != http.StatusOK || decode[map[string]any](t, rr)["netBalance"] != "487.5" {
		t.Fatalf("default month should be the current one: %s", rr.Body.String())
	}
	if rr := env.do(t, http.MethodGet, "/api/reports/monthly?month=13", nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("month 13 status=%d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/reports/dashboard", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("dashboard status=%d", rr.Code)
	}
	dash := decode[struct {
		Recent []core.Transaction
	}](t, rr)
	if len(dash.Recent) != 2 {
		t.Fatalf("dashboard recent = %d, want 2", len(dash.Recent))
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	if rr := env.do(t, http.MethodPost, "/api/transactions", groceries()); rr.Code != http.StatusCreated {
		t.Fatalf("seed status=%d", rr.Code)
	}

	rr := env.do(t, http.MethodGet, "/api/reports/export?year=2025&month=1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("export status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Content-Type") != xlsxContentType {
		t.Fatalf("Content-Type = %q", rr.Header().Get("Content-Type"))
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "transactions_01_2025.xlsx") {
		t.Fatalf("Content-Disposition = %q", rr.Header().Get("Content-Disposition"))
	}
	workbook := rr.Body.Bytes()

	rr = env.upload(t, "/api/reports/import", workbook)
	if rr.Code != http.StatusOK {
		t.Fatalf("import status=%d body=%s", rr.Code, rr.Body.String())
	}
	out := decode[struct{ Succeeded, Skipped, Failed int }](t, rr)
	if out.Succeeded != 0 || out.Skipped != 1 || out.Failed != 0 {
		t.Fatalf("re-import outcome = %+v, want everything skipped", out)
	}

	if rr := env.upload(t, "/api/reports/import", []byte("not a workbook")); rr.Code != http.StatusBadRequest {
		t.Fatalf("garbage import status=%d", rr.Code)
	}
}

func TestRateLimitAnswersJSON(t *testing.T) {
	env := newTestEnv(t)
	env.srv = NewServer(":0", Deps{
		Store:        env.srv.store,
		Auth:         env.srv.auth,
		Transactions: env.srv.txs,
		Reports:      env.srv.reports,
		Logger:       applog.New(applog.Config{Output: io.Discard}),
		RateLimit:    ratelimit.Config{RequestsPerSecond: 0.001, Burst: 1},
	})

	if rr := env.do(t, http.MethodGet, "/healthz", nil); rr.Code != http.StatusOK {
		t.Fatalf("first request status=%d", rr.Code)
	}
	rr := env.do(t, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status=%d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" || decode[errorBody](t, rr).Error == "" {
		t.Fatalf("429 missing Retry-After or JSON body")
	}
}
