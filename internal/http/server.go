package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"financas/internal/core"
	"financas/internal/middleware/ratelimit"
	"financas/internal/middleware/security"
	"financas/internal/middleware/trace"
	"financas/internal/services"
	appweb "financas/web"
)

// CardAPI is the card, purchase and installment surface used by the handlers.
type CardAPI interface {
	ListCards(ctx context.Context) ([]core.CardUsage, error)
	GetCard(ctx context.Context, id int64) (core.CardUsage, error)
	CreateCard(ctx context.Context, c core.Card) (core.CardUsage, error)
	UpdateCard(ctx context.Context, c core.Card) (core.CardUsage, error)
	DeleteCard(ctx context.Context, id int64) error

	CreatePurchase(ctx context.Context, in services.PurchaseInput) (services.PurchaseDetail, error)
	GetPurchase(ctx context.Context, id int64) (services.PurchaseDetail, error)
	ListPurchases(ctx context.Context, cardID int64) ([]core.Purchase, error)
	UpdatePurchase(ctx context.Context, id int64, description string, categoryID *int64) (core.Purchase, error)
	DeletePurchase(ctx context.Context, id int64) error

	ListInstallments(ctx context.Context, cardID int64) ([]core.Installment, error)
	PayInstallment(ctx context.Context, id int64) (core.Installment, error)
}

// LedgerAPI covers transactions and categories.
type LedgerAPI interface {
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error

	ListCategories(ctx context.Context, typ core.TransactionType) ([]core.Category, error)
	GetCategory(ctx context.Context, id int64) (core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	UpdateCategory(ctx context.Context, c core.Category) (core.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
}

// ReportAPI serves the aggregated views.
type ReportAPI interface {
	Summary(ctx context.Context, p core.Period) (core.Summary, error)
	ExpensesByCategory(ctx context.Context, p core.Period) ([]core.CategoryTotal, error)
	IncomeByCategory(ctx context.Context, p core.Period) ([]core.CategoryTotal, error)
	CashFlow(ctx context.Context, year int) ([]core.MonthlyFlow, error)
}

var (
	_ CardAPI   = (*services.CardService)(nil)
	_ LedgerAPI = (*services.LedgerService)(nil)
	_ ReportAPI = (*services.ReportService)(nil)
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tunes the middleware chain.
type Options struct {
	RateLimitPerMinute int
	TrustedProxies     []string
	StaticMaxAge       time.Duration
}

type Server struct {
	http.Server
	templates *template.Template

	cards   CardAPI
	ledger  LedgerAPI
	reports ReportAPI
	db      Pinger

	limiter      *ratelimit.Limiter
	shutdownOnce sync.Once
	now          func() time.Time
}

// NewServer builds the JSON API and dashboard on a ServeMux and wraps it in
// trace, security header, rate limit and panic recovery middleware.
func NewServer(addr string, cards CardAPI, ledger LedgerAPI, reports ReportAPI, db Pinger, opts Options) (*Server, error) {
	resolver, err := security.NewIPResolver(opts.TrustedProxies...)
	if err != nil {
		return nil, err
	}
	if opts.StaticMaxAge <= 0 {
		opts.StaticMaxAge = time.Hour
	}

	limiterCfg := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limiterCfg.RequestsPerMinute = opts.RateLimitPerMinute
	}

	s := &Server{
		cards:   cards,
		ledger:  ledger,
		reports: reports,
		db:      db,
		limiter: ratelimit.NewLimiter(limiterCfg),
		now:     time.Now,
	}

	t, err := template.New("").Funcs(template.FuncMap{"money": formatMoney}).
		ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(int(opts.StaticMaxAge.Seconds()))(static))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	s.registerCardRoutes(mux)
	s.registerLedgerRoutes(mux)
	s.registerReportRoutes(mux)
	mux.HandleFunc("/", handleNotFound)

	var handler http.Handler = mux
	handler = recoverer(handler)
	handler = s.limiter.Middleware(resolver.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
	})(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = trace.NewMiddleware(resolver.ClientIP).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s, nil
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			slog.WarnContext(r.Context(), "Readiness check failed", "error", err)
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody{Error: "route not found"})
}

// dashboardCard is the view model of one card on the dashboard.
type dashboardCard struct {
	Name       string
	Color      string
	ClosingDay int
	DueDay     int
	Limit      core.Money
	Used       core.Money
	Available  core.Money
	UsedPct    int
}

type dashboardData struct {
	Year    int
	Month   string
	Cards   []dashboardCard
	Summary core.Summary
	Flow    []core.MonthlyFlow
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	now := s.now()
	data := dashboardData{Year: now.Year(), Month: now.Format("January 2006")}

	usages, err := s.cards.ListCards(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list cards for dashboard", "error", err)
	}
	for _, u := range usages {
		data.Cards = append(data.Cards, newDashboardCard(u))
	}

	month := core.Period{
		From: core.NewDate(now.Year(), int(now.Month()), 1),
		To:   core.NewDate(now.Year(), int(now.Month())+1, 0),
	}
	if data.Summary, err = s.reports.Summary(ctx, month); err != nil {
		slog.ErrorContext(ctx, "Failed to load dashboard summary", "error", err)
	}
	if data.Flow, err = s.reports.CashFlow(ctx, now.Year()); err != nil {
		slog.ErrorContext(ctx, "Failed to load dashboard cash flow", "error", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.ErrorContext(ctx, "Index template execution failed", "error", err, "template", "index.html")
		http.Error(w, "failed to render dashboard", http.StatusInternalServerError)
	}
}

func newDashboardCard(u core.CardUsage) dashboardCard {
	c := dashboardCard{
		Name:       u.Card.Name,
		Color:      u.Card.Color,
		ClosingDay: u.Card.ClosingDay,
		DueDay:     u.Card.DueDay,
		Limit:      u.Card.Limit,
		Used:       u.Used,
		Available:  u.Available,
	}
	if u.Card.Limit.Cents > 0 {
		pct := u.Used.Cents * 100 / u.Card.Limit.Cents
		c.UsedPct = int(min(max(pct, 0), 100))
	}
	return c
}

func formatMoney(m core.Money) string {
	return fmt.Sprintf("R$ %s", m.String())
}

// recoverer turns a panic in a handler into a JSON 500.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			slog.ErrorContext(r.Context(), "Panic while handling request",
				"panic", fmt.Sprint(rec),
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", trace.GetRequestID(r.Context()))
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
		}()
		next.ServeHTTP(w, r)
	})
}

var errInvalidID = errors.New("invalid id")
