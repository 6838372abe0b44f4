package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"daisycash/internal/auth"
	"daisycash/internal/blob"
	applog "daisycash/internal/log"
	"daisycash/internal/middleware/ratelimit"
	"daisycash/internal/middleware/security"
	"daisycash/internal/middleware/trace"
	"daisycash/internal/services"
	"daisycash/internal/store"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 120 * time.Second
)

// Deps are the collaborators the server routes to. Blobs may be nil, in
// which case receipt uploads fail and /files answers 404.
type Deps struct {
	Store        store.Store
	Auth         *auth.Service
	Transactions *services.TransactionService
	Reports      *services.ReportService
	Blobs        blob.Store
	Logger       *applog.Logger
	CookieSecure bool
	RateLimit    ratelimit.Config
}

type Server struct {
	http.Server
	store        store.Store
	auth         *auth.Service
	txs          *services.TransactionService
	reports      *services.ReportService
	blobs        blob.Store
	logger       *applog.Logger
	events       *applog.StructuredLogger
	tracer       *trace.Middleware
	limiter      *ratelimit.Limiter
	cookieSecure bool

	now          func() time.Time
	startedAt    time.Time
	shutdownOnce sync.Once
}

// NewServer wires routes and the middleware chain.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	httpLogger := logger.WithComponent(applog.ComponentHTTP)
	ips := security.NewIPResolver()

	s := &Server{
		store:        deps.Store,
		auth:         deps.Auth,
		txs:          deps.Transactions,
		reports:      deps.Reports,
		blobs:        deps.Blobs,
		logger:       httpLogger,
		events:       applog.NewStructuredLogger(httpLogger),
		tracer:       trace.NewMiddleware(ips.ExtractClientIP, httpLogger),
		limiter:      ratelimit.NewLimiter(deps.RateLimit),
		cookieSecure: deps.CookieSecure,
		now:          time.Now,
		startedAt:    time.Now(),
	}

	var handler http.Handler = s.routes()
	handler = s.limiter.Middleware(ips.ExtractClientIP, writeRateLimited)(handler)
	handler = security.NoStore(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = applog.RequestIDMiddleware(trace.RequestIDFromRequest)(handler)
	handler = applog.Middleware(httpLogger)(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	return s
}

// WithClock overrides the time source used for default report months.
func (s *Server) WithClock(now func() time.Time) *Server {
	s.now = now
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	guard := func(h http.HandlerFunc) http.Handler { return s.auth.Guard(h) }

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.Handle("GET /auth/login", s.auth.RedirectIfAuthenticated(http.HandlerFunc(s.handleLoginPage)))
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.Handle("POST /auth/logout", guard(s.handleLogout))
	mux.Handle("GET /dashboard", guard(s.handleDashboard))

	mux.Handle("GET /api/transactions", guard(s.handleListTransactions))
	mux.Handle("POST /api/transactions", guard(s.handleCreateTransaction))
	mux.Handle("GET /api/transactions/{id}", guard(s.handleGetTransaction))
	mux.Handle("PUT /api/transactions/{id}", guard(s.handleUpdateTransaction))
	mux.Handle("DELETE /api/transactions/{id}", guard(s.handleDeleteTransaction))
	mux.Handle("POST /api/transactions/{id}/receipt", guard(s.handleUploadReceipt))

	mux.Handle("GET /api/categories", guard(s.handleListCategories))
	mux.Handle("POST /api/categories", guard(s.handleCreateCategory))
	mux.Handle("PUT /api/categories/{id}", guard(s.handleUpdateCategory))
	mux.Handle("DELETE /api/categories/{id}", guard(s.handleDeleteCategory))

	mux.Handle("GET /api/reports/dashboard", guard(s.handleDashboard))
	mux.Handle("GET /api/reports/monthly", guard(s.handleMonthlyReport))
	mux.Handle("GET /api/reports/export", guard(s.handleExport))
	mux.Handle("POST /api/reports/import", guard(s.handleImport))

	mux.Handle("GET "+blobFilesPattern, guard(s.handleFile))

	return mux
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		m := s.tracer.GetMetrics()
		s.logger.Info("HTTP server shutting down",
			"total_requests", m.TotalRequests,
			"server_errors", m.ServerErrors,
			"rate_limit", s.limiter.GetMetrics())
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func writeRateLimited(w http.ResponseWriter, _ *http.Request) {
	ErrorResponse(http.StatusTooManyRequests, "too many requests").Write(w)
}
