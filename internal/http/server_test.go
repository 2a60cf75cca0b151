package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financas/internal/core"
	"financas/internal/services"
	"financas/internal/storage"
)

type testEnv struct {
	srv  *Server
	repo *storage.SQLiteRepository
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "financas.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	scheduler, err := services.NewInstallmentScheduler(core.DayOverflowClamp)
	require.NoError(t, err)
	reports := services.NewReportService(repo, time.Minute)
	ledger := services.NewLedgerService(repo, reports)
	cards := services.NewCardService(repo, scheduler, nil, reports)

	if opts.RateLimitPerMinute == 0 {
		opts.RateLimitPerMinute = 1000
	}
	srv, err := NewServer(":0", cards, ledger, reports, repo, opts)
	require.NoError(t, err)
	srv.now = func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, repo: repo}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func (e *testEnv) createCard(t *testing.T) cardResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/cards", map[string]any{
		"name": "Nubank", "limit": 5000, "closing_day": 10, "due_day": 17,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[cardResponse](t, rec)
}

func TestCards_CRUD(t *testing.T) {
	env := newTestEnv(t, Options{})

	card := env.createCard(t)
	assert.Equal(t, "Nubank", card.Name)
	assert.Equal(t, core.DefaultCardColor, card.Color)
	assert.Equal(t, int64(500000), card.AvailableLimit.Cents)
	assert.Zero(t, card.UsedLimit.Cents)

	rec := env.do(t, http.MethodPut, fmt.Sprintf("/api/cards/%d", card.ID), map[string]any{
		"name": "Nubank Gold", "limit": "6000.50", "closing_day": 5, "due_day": 12, "color": "purple",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[cardResponse](t, rec)
	assert.Equal(t, "Nubank Gold", updated.Name)
	assert.Equal(t, int64(600050), updated.Limit.Cents)

	rec = env.do(t, http.MethodGet, "/api/cards", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]cardResponse](t, rec), 1)

	rec = env.do(t, http.MethodPost, "/api/cards", map[string]any{"name": "Bad", "limit": 10, "closing_day": 40, "due_day": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/cards/%d", card.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/cards/%d", card.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPurchases_ScheduleAndDeleteGuard(t *testing.T) {
	env := newTestEnv(t, Options{})
	card := env.createCard(t)

	rec := env.do(t, http.MethodPost, "/api/purchases", map[string]any{
		"description": "TV", "amount": 300, "date": "2024-01-15", "installments": 3, "card_id": card.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	purchase := decode[purchaseResponse](t, rec)
	require.Len(t, purchase.Schedule, 3)
	for i, want := range []string{"2024-02-17", "2024-03-17", "2024-04-17"} {
		assert.Equal(t, want, purchase.Schedule[i].DueDate.String())
		assert.Equal(t, int64(10000), purchase.Schedule[i].Amount.Cents)
		assert.Equal(t, i+1, purchase.Schedule[i].Number)
	}

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/cards/%d", card.ID), nil)
	got := decode[cardResponse](t, rec)
	assert.Equal(t, int64(30000), got.UsedLimit.Cents)
	assert.Equal(t, int64(470000), got.AvailableLimit.Cents)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/cards/%d", card.ID), nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, 3, body.PendingInstallments)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/cards/%d/installments", card.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	installments := decode[[]installmentResponse](t, rec)
	require.Len(t, installments, 3)
	assert.Equal(t, "TV", installments[0].PurchaseDescription)

	for _, in := range installments {
		rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/installments/%d/pay", in.ID), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, decode[installmentResponse](t, rec).Paid)
	}
	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/installments/%d/pay", installments[0].ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code, "paying twice is not an error")

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/cards/%d", card.ID), nil)
	assert.Zero(t, decode[cardResponse](t, rec).UsedLimit.Cents)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/cards/%d", card.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestPurchases_Errors(t *testing.T) {
	env := newTestEnv(t, Options{})
	card := env.createCard(t)

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"unknown card", map[string]any{"description": "X", "amount": 10, "installments": 1, "card_id": card.ID + 50}, http.StatusNotFound},
		{"zero installments", map[string]any{"description": "X", "amount": 10, "installments": 0, "card_id": card.ID}, http.StatusBadRequest},
		{"too many installments", map[string]any{"description": "X", "amount": 10, "installments": 10000000, "card_id": card.ID}, http.StatusBadRequest},
		{"negative installments", map[string]any{"description": "X", "amount": 10, "installments": -3, "card_id": card.ID}, http.StatusBadRequest},
		{"missing description", map[string]any{"amount": 10, "installments": 1, "card_id": card.ID}, http.StatusBadRequest},
		{"unknown category", map[string]any{"description": "X", "amount": 10, "installments": 1, "card_id": card.ID, "category_id": 9999}, http.StatusBadRequest},
		{"malformed json", `{"description":`, http.StatusBadRequest},
		{"bad date", map[string]any{"description": "X", "amount": 10, "installments": 1, "card_id": card.ID, "date": "15/01/2024"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/purchases", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[errorBody](t, rec).Error)
		})
	}

	rec := env.do(t, http.MethodGet, fmt.Sprintf("/api/cards/%d/purchases", card.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestPurchases_CustomAmountsAndUpdate(t *testing.T) {
	env := newTestEnv(t, Options{})
	card := env.createCard(t)

	rec := env.do(t, http.MethodPost, "/api/purchases", map[string]any{
		"description": "Sofa", "amount": 100, "date": "2024-03-01", "installments": 2,
		"card_id": card.ID, "custom_amounts": []float64{70, 30},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	purchase := decode[purchaseResponse](t, rec)
	assert.Equal(t, int64(7000), purchase.Schedule[0].Amount.Cents)
	assert.Equal(t, int64(3000), purchase.Schedule[1].Amount.Cents)

	rec = env.do(t, http.MethodPut, fmt.Sprintf("/api/purchases/%d", purchase.ID), map[string]any{"description": "Couch"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Couch", decode[purchaseResponse](t, rec).Description)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/purchases/%d", purchase.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/purchases/%d", purchase.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCategories(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodGet, "/api/categories?type=expense", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, c := range decode[[]categoryResponse](t, rec) {
		assert.Equal(t, core.Expense, c.Type)
	}

	rec = env.do(t, http.MethodGet, "/api/categories?type=other", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "Pets", "type": "expense"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	pets := decode[categoryResponse](t, rec)

	rec = env.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "Pets", "type": "expense"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/transactions", map[string]any{
		"description": "Vet", "amount": 80, "type": "expense", "category_id": pets.ID, "date": "2024-03-02",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tx := decode[transactionResponse](t, rec)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/categories/%d", pets.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/transactions/%d", tx.ID), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/categories/%d", pets.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestTransactionsAndReports(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodGet, "/api/categories?type=expense", nil)
	category := decode[[]categoryResponse](t, rec)[0]

	for _, body := range []map[string]any{
		{"description": "Salary", "amount": 1000, "type": "income", "date": "2024-01-05"},
		{"description": "Market", "amount": 250.5, "type": "expense", "date": "2024-01-20", "category_id": category.ID},
		{"description": "Rent", "amount": 400, "type": "expense", "date": "2024-02-01"},
	} {
		rec := env.do(t, http.MethodPost, "/api/transactions", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/reports/summary?from=2024-01-01&to=2024-01-31", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decode[summaryResponse](t, rec)
	assert.Equal(t, int64(100000), sum.Income.Cents)
	assert.Equal(t, int64(25050), sum.Expense.Cents)
	assert.Equal(t, int64(74950), sum.Balance.Cents)

	rec = env.do(t, http.MethodGet, "/api/reports/expenses-by-category", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	totals := decode[[]categoryTotalResponse](t, rec)
	require.Len(t, totals, 1, "uncategorized transactions are left out")
	assert.Equal(t, category.Name, totals[0].Category)
	assert.Equal(t, int64(25050), totals[0].Total.Cents)

	rec = env.do(t, http.MethodGet, "/api/reports/income-by-category?from=2025-01-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/reports/cash-flow?year=2024", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	flow := decode[[]monthlyFlowResponse](t, rec)
	require.Len(t, flow, 2)
	assert.Equal(t, "2024-01", flow[0].Month)
	assert.Equal(t, int64(-40000), flow[1].Balance.Cents)

	rec = env.do(t, http.MethodPost, "/api/transactions", map[string]any{"description": "Gift", "amount": 50, "type": "income", "date": "2024-02-10"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/reports/cash-flow?year=2024", nil)
	flow = decode[[]monthlyFlowResponse](t, rec)
	assert.Equal(t, int64(-35000), flow[1].Balance.Cents, "writes invalidate cached reports")

	for _, path := range []string{
		"/api/reports/summary?from=yesterday",
		"/api/reports/summary?from=2024-02-01&to=2024-01-01",
		"/api/reports/cash-flow?year=abc",
	} {
		assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, path, nil).Code, path)
	}
}

func TestTransactions_Validation(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodPost, "/api/transactions", map[string]any{"description": "X", "amount": 1, "type": "transfer"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/transactions", map[string]any{"description": "X", "amount": 0, "type": "income"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/transactions", map[string]any{"description": "Tip", "amount": 5, "type": "income"})
	require.Equal(t, http.StatusCreated, rec.Code)
	tx := decode[transactionResponse](t, rec)
	assert.Equal(t, time.Now().UTC().Format(core.DateLayout), tx.Date.String())

	rec = env.do(t, http.MethodPut, fmt.Sprintf("/api/transactions/%d", tx.ID), map[string]any{
		"description": "Tip", "amount": 7, "type": "income", "date": "2024-01-01",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(700), decode[transactionResponse](t, rec).Amount.Cents)

	rec = env.do(t, http.MethodGet, "/api/transactions/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/transactions/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouting(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"route not found"}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = env.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/cards", nil)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.createCard(t)

	rec := env.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Nubank")
	assert.Contains(t, rec.Body.String(), "R$ 5000.00")
	assert.Contains(t, rec.Body.String(), "March 2024")

	rec = env.do(t, http.MethodGet, "/static/app.css", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("database is locked") }

type panickingCards struct{ CardAPI }

func (panickingCards) ListCards(context.Context) ([]core.CardUsage, error) { panic("boom") }

type brokenCards struct{ CardAPI }

func (brokenCards) GetCard(context.Context, int64) (core.CardUsage, error) {
	return core.CardUsage{}, errors.New("disk I/O error: /var/lib/financas.db")
}

func TestFailureModes(t *testing.T) {
	env := newTestEnv(t, Options{})

	srv, err := NewServer(":0", panickingCards{}, env.srv.ledger, env.srv.reports, failingPinger{}, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cards", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	srv2, err := NewServer(":0", brokenCards{}, env.srv.ledger, env.srv.reports, nil, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv2.Shutdown(context.Background()) })

	rec = httptest.NewRecorder()
	srv2.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cards/1", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, strings.Contains(rec.Body.String(), "disk I/O"), "internal details leaked: %s", rec.Body.String())
}

func TestRateLimitOnMutatingRequests(t *testing.T) {
	env := newTestEnv(t, Options{RateLimitPerMinute: 2})

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodPost, "/api/categories", map[string]any{"name": fmt.Sprintf("C%d", i), "type": "income"})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := env.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "C3", "type": "income"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/categories", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
