package http

import (
	"context"
	"net/http"
	"strconv"

	"financas/internal/core"
)

func (s *Server) registerReportRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/reports/summary", s.handleSummary)
	mux.HandleFunc("GET /api/reports/expenses-by-category", s.handleByCategory(s.reports.ExpensesByCategory))
	mux.HandleFunc("GET /api/reports/income-by-category", s.handleByCategory(s.reports.IncomeByCategory))
	mux.HandleFunc("GET /api/reports/cash-flow", s.handleCashFlow)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	p, err := parsePeriod(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := s.reports.Summary(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{Income: sum.Income, Expense: sum.Expense, Balance: sum.Balance})
}

type categoryReport func(ctx context.Context, p core.Period) ([]core.CategoryTotal, error)

func (s *Server) handleByCategory(report categoryReport) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := parsePeriod(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		totals, err := report(r.Context(), p)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, mapSlice(totals, func(t core.CategoryTotal) categoryTotalResponse {
			return categoryTotalResponse{Category: t.Category, Total: t.Total}
		}))
	}
}

func (s *Server) handleCashFlow(w http.ResponseWriter, r *http.Request) {
	year := s.now().Year()
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1900 || y > 9999 {
			writeError(w, r, newBadRequest("invalid year %q", v))
			return
		}
		year = y
	}
	flow, err := s.reports.CashFlow(r.Context(), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(flow, func(m core.MonthlyFlow) monthlyFlowResponse {
		return monthlyFlowResponse{Month: m.Month, Income: m.Income, Expense: m.Expense, Balance: m.Balance}
	}))
}
