package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/rs/cors"

	"casa/internal/agenda"
	"casa/internal/auth"
	applog "casa/internal/log"
	"casa/internal/middleware/ratelimit"
	"casa/internal/middleware/security"
	"casa/internal/middleware/trace"
	"casa/internal/services"
	"casa/internal/store"
)

// Deps are the collaborators the handlers call into.
type Deps struct {
	Backend      store.Backend
	Agenda       *agenda.Registry
	Transactions *services.TransactionService
	Dashboard    *services.DashboardService
	Shopping     *services.ShoppingService
	Tokens       *auth.Tokens
	Logger       *applog.Logger
	// Now is the household clock; it decides "today" for agenda and
	// countdowns.
	Now store.Clock
	// Ready reports whether dependencies answer. Nil means always ready.
	Ready func(ctx context.Context) error
}

// Options tune the middleware stack.
type Options struct {
	AllowedOrigins     []string
	RateLimitPerMinute int
	BlockSuspicious    bool
	TrustedProxies     []string
}

type Server struct {
	http.Server
	deps     Deps
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = applog.New(applog.DefaultConfig())
	}

	detector := security.NewDetector(opts.BlockSuspicious)
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			deps.Logger.Warn("Ignoring trusted proxy", "cidr", cidr, "error", err)
		}
	}

	limits := ratelimit.DefaultConfig()
	limits.RequestsPerMinute = opts.RateLimitPerMinute

	s := &Server{
		deps:     deps,
		limiter:  ratelimit.NewLimiter(limits),
		detector: detector,
		tracer:   trace.NewMiddleware(deps.Logger.WithComponent(applog.ComponentHTTP), detector.ExtractClientIP),
		started:  time.Now(),
	}

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", s.handleHealth)
	root.HandleFunc("GET /readyz", s.handleReady)

	api := http.NewServeMux()
	s.routes(api)

	authn := auth.New(deps.Tokens, func(w http.ResponseWriter, r *http.Request, err error) {
		UnauthorizedError(err.Error()).Write(w)
	})
	limit := s.limiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
	})
	root.Handle("/api/", limit(authn.Wrap(api)))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var handler http.Handler = detector.Middleware(root)
	handler = headers.Middleware(handler)
	handler = s.tracer.Middleware(handler)
	handler = newCORS(opts.AllowedOrigins).Handler(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	// group registers handlers whose request logger carries component.
	group := func(component string) func(pattern string, h http.HandlerFunc) {
		tag := applog.ComponentMiddleware(component)
		return func(pattern string, h http.HandlerFunc) {
			mux.Handle(pattern, tag(h))
		}
	}

	agendaRoute := group(applog.ComponentAgenda)
	agendaRoute("GET /api/tasks", s.handleListTasks)
	agendaRoute("POST /api/tasks", s.handleCreateTask)
	agendaRoute("PATCH /api/tasks/{id}", s.handleUpdateTask)
	agendaRoute("DELETE /api/tasks/{id}", s.handleDeleteTask)
	agendaRoute("GET /api/agenda", s.handleAgendaDay)
	agendaRoute("GET /api/agenda/month", s.handleAgendaMonth)
	agendaRoute("GET /api/countdowns", s.handleListCountdowns)
	agendaRoute("POST /api/countdowns", s.handleCreateCountdown)
	agendaRoute("PUT /api/countdowns/{id}", s.handleUpdateCountdown)
	agendaRoute("DELETE /api/countdowns/{id}", s.handleDeleteCountdown)

	ledgerRoute := group(applog.ComponentLedger)
	ledgerRoute("GET /api/transactions", s.handleListTransactions)
	ledgerRoute("POST /api/transactions", s.handleCreateTransaction)
	ledgerRoute("GET /api/transactions/{id}", s.handleGetTransaction)
	ledgerRoute("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	ledgerRoute("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	ledgerRoute("GET /api/dashboard", s.handleDashboard)
	ledgerRoute("GET /api/responsibles", s.handleResponsibles)
	ledgerRoute("GET /api/categories", s.handleListCategories)
	ledgerRoute("POST /api/categories", s.handleCreateCategory)
	ledgerRoute("PUT /api/categories/{id}", s.handleUpdateCategory)
	ledgerRoute("DELETE /api/categories/{id}", s.handleDeleteCategory)

	shoppingRoute := group(applog.ComponentShopping)
	shoppingRoute("GET /api/shopping", s.handleListShopping)
	shoppingRoute("POST /api/shopping", s.handleAddShopping)
	shoppingRoute("POST /api/shopping/finish", s.handleFinishShopping)
	shoppingRoute("GET /api/shopping/suggestions", s.handleShoppingSuggestions)
	shoppingRoute("PUT /api/shopping/{id}", s.handleEditShopping)
	shoppingRoute("DELETE /api/shopping/{id}", s.handleRemoveShopping)
	shoppingRoute("POST /api/shopping/{id}/toggle", s.handleToggleShopping)
}

func newCORS(origins []string) *cors.Cors {
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", trace.HeaderRequestID},
		ExposedHeaders:   []string{trace.HeaderRequestID, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           600,
	})
}

// ListenAndServe serves until the listener fails. http.ErrServerClosed
// after Shutdown is not an error.
func (s *Server) ListenAndServe() error {
	slog.Info("HTTP server listening", "addr", s.Addr)
	if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the background goroutines and drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
