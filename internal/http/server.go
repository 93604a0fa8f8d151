package http

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"finan/internal/auth"
	"finan/internal/core"
	"finan/internal/ledger"
	"finan/internal/log"
	"finan/internal/metrics"
	"finan/internal/middleware/ratelimit"
	"finan/internal/middleware/security"
	"finan/internal/middleware/trace"
	"finan/internal/notify"
)

const defaultHistoryCount = 3

// Dependencies wires the server to the ledger and its collaborators.
// Ledger, Users and Tokens are required.
type Dependencies struct {
	Ledger  *ledger.Service
	Users   *auth.PasswordAuthenticator
	Tokens  *auth.JWTManager
	Notices *notify.Buffer
	Metrics *metrics.Metrics
	Logger  *log.Logger

	Location     *time.Location
	RateLimit    ratelimit.Config
	HistoryCount int

	// TrustedProxies extends the private ranges trusted for X-Forwarded-For.
	TrustedProxies []string

	// Now replaces time.Now for default year/month query values.
	Now func() time.Time
}

type Server struct {
	http.Server
	ledger   *ledger.Service
	users    *auth.PasswordAuthenticator
	tokens   *auth.JWTManager
	notices  *notify.Buffer
	metrics  *metrics.Metrics
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	loc          *time.Location
	now          func() time.Time
	historyCount int

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Dependencies) (*Server, error) {
	s := &Server{
		ledger:       deps.Ledger,
		users:        deps.Users,
		tokens:       deps.Tokens,
		notices:      deps.Notices,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		loc:          deps.Location,
		now:          deps.Now,
		historyCount: deps.HistoryCount,
		limiter:      ratelimit.NewLimiter(deps.RateLimit),
		detector:     security.NewDetector(),
	}
	if s.logger == nil {
		s.logger = log.New(log.DefaultConfig())
	}
	s.logger = s.logger.WithComponent(log.ComponentHTTP)
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.historyCount == 0 {
		s.historyCount = defaultHistoryCount
	}
	if s.notices == nil {
		s.notices = notify.NewBuffer(1024, 20, time.Hour)
	}
	for _, cidr := range deps.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.limiter.Stop()
			return nil, err
		}
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, s.metrics)
	s.metrics.RegisterGauge("ratelimit", "active_clients", "Client IPs tracked by the rate limiter.", func() float64 {
		return float64(s.limiter.ActiveClients())
	})
	s.metrics.RegisterGauge("security", "suspicious_requests", "Requests flagged as suspicious since start.", func() float64 {
		return float64(s.detector.SuspiciousRequests())
	})

	mux := http.NewServeMux()
	s.routes(mux)

	streams, cancelStreams := context.WithCancel(context.Background())
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return streams },
	}
	s.RegisterOnShutdown(cancelStreams)
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)

	mux.Handle("GET /api/profile", s.authed(s.handleProfile))
	mux.Handle("PUT /api/profile", s.authed(s.handleUpdateProfile))
	mux.Handle("PUT /api/profile/photo", s.authed(s.handleUpdatePhoto))
	mux.Handle("GET /api/notifications", s.authed(s.handleNotifications))

	mux.Handle("GET /api/categories", s.authed(s.handleListCategories))
	mux.Handle("POST /api/categories", s.authed(s.handleCreateCategory))

	mux.Handle("GET /api/transactions", s.authed(s.handleListTransactions))
	mux.Handle("POST /api/transactions", s.authed(s.handleCreateTransaction))
	mux.Handle("GET /api/transactions/{id}", s.authed(s.handleGetTransaction))
	mux.Handle("PUT /api/transactions/{id}", s.authed(s.handleUpdateTransaction))
	mux.Handle("DELETE /api/transactions/{id}", s.authed(s.handleDeleteTransaction))

	mux.Handle("GET /api/summary/monthly", s.authed(s.handleMonthlySummary))
	mux.Handle("GET /api/summary/previous", s.authed(s.handlePreviousSummary))
	mux.Handle("GET /api/summary/total", s.authed(s.handleTotalSummary))
	mux.Handle("GET /api/summary/comparison", s.authed(s.handleComparison))
	mux.Handle("GET /api/summary/categories", s.authed(s.handleCategoryShares))
	mux.Handle("GET /api/history", s.authed(s.handleHistory))
	mux.Handle("GET /api/statistics", s.authed(s.handleStatistics))

	mux.Handle("GET /api/stream/transactions", s.authed(s.handleTransactionStream))
	mux.Handle("GET /api/stream/categories", s.authed(s.handleCategoryStream))

	mux.Handle("GET /api/export/transactions", s.authed(s.handleExportTransactions))
	mux.Handle("GET /api/reports/statement", s.authed(s.handleStatement))
}

// middleware wraps h, outermost first: logger, trace, security headers,
// suspicious request detection, rate limit.
func (s *Server) middleware(h http.Handler) http.Handler {
	h = s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded, retry later").
			RequestID(trace.GetRequestID(r.Context())).
			Write(w)
	})(h)
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)
	return log.Middleware(s.logger)(h)
}

// userHandler is a handler behind RequireAuth.
type userHandler func(w http.ResponseWriter, r *http.Request, userID int64)

func (s *Server) authed(h userHandler) http.Handler {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := auth.UserIDFromContext(r.Context())
		ctx := log.NewContext(r.Context(), log.FromContext(r.Context()).With(log.FieldUserID, userID))
		h(w, r.WithContext(ctx), userID)
	})
	return auth.RequireAuth(s.tokens, writeError)(next)
}

// today returns the current calendar month in the ledger location.
func (s *Server) today() time.Time {
	return s.now().In(s.loc)
}

// Shutdown stops background work, ends open event streams and shuts down
// the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady answers 503 until schema and seed data are confirmed.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	select {
	case <-s.ledger.Ready():
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	default:
		writeError(w, r, core.ErrNotReady)
	}
}
