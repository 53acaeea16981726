package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"sheetledger/internal/log"
	"sheetledger/internal/middleware/ratelimit"
	"sheetledger/internal/middleware/security"
	"sheetledger/internal/middleware/trace"
	"sheetledger/internal/services"
	"sheetledger/internal/ui"
	appweb "sheetledger/web"
)

// Routes served by the ledger.
const (
	RouteIndex        = "/"
	RouteView         = "/ui/view"
	RouteViewToggle   = "/ui/view/toggle"
	RouteChartData    = "/ui/chart-data"
	RouteMonth        = "/ui/month"
	RouteMonths       = "/ui/months"
	RouteBudgetPanel  = "/ui/budget"
	RouteSetBudget    = "/budget"
	RouteRecords      = "/records"
	RouteRecordEdit   = "/records/edit"
	RouteRecordDelete = "/records/delete"
	RouteReload       = "/records/reload"
	RouteHealth       = "/healthz"
	RouteReady        = "/readyz"
	RouteMetrics      = "/metrics"
)

var knownRoutes = map[string]struct{}{
	RouteIndex: {}, RouteView: {}, RouteViewToggle: {}, RouteChartData: {}, RouteMonth: {},
	RouteMonths: {}, RouteBudgetPanel: {}, RouteSetBudget: {}, RouteRecords: {},
	RouteRecordEdit: {}, RouteRecordDelete: {}, RouteReload: {},
	RouteHealth: {}, RouteReady: {}, RouteMetrics: {},
}

// Options carries the server's collaborators.
type Options struct {
	Service   *services.RecordService
	State     *ui.State
	Logger    *log.Logger
	RateLimit ratelimit.Config

	// HandlerTimeout bounds each store-facing request, including the settle
	// wait and the reload after a mutation (default: 7s). WriteTimeout is
	// derived from it so a response is always written in time.
	HandlerTimeout time.Duration

	// Now defaults to time.Now; the entry form's date defaults to its day.
	Now func() time.Time
}

const (
	defaultHandlerTimeout = 7 * time.Second

	// writeSlack leaves room to render and write the response after the
	// handler deadline.
	writeSlack = 3 * time.Second
)

// Server serves the ledger page, its HTMX partials and the operational
// endpoints.
type Server struct {
	http.Server

	service   *services.RecordService
	state     *ui.State
	templates *template.Template
	metrics   *Metrics
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	logger    *log.Logger
	now       func() time.Time
	started   time.Time

	handlerTimeout time.Duration

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(addr string, opts Options) *Server {
	if opts.State == nil {
		opts.State = ui.NewState()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.HandlerTimeout <= 0 {
		opts.HandlerTimeout = defaultHandlerTimeout
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:           addr,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   opts.HandlerTimeout + writeSlack,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 1 << 16, // 64KB
		},
		service:  opts.Service,
		state:    opts.State,
		metrics:  NewMetrics(opts.Service),
		limiter:  ratelimit.NewLimiter(opts.RateLimit),
		detector: security.NewDetector(),
		logger:   opts.Logger.WithComponent(log.ComponentHTTP),
		now:      opts.Now,
		started:  opts.Now(),

		handlerTimeout: opts.HandlerTimeout,
	}

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.WithComponent(log.ComponentTemplate).Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc(RouteIndex, s.handleIndex)
	mux.HandleFunc(RouteView, s.handleView)
	mux.Handle(RouteViewToggle, s.limited(s.handleToggleView))
	mux.HandleFunc(RouteChartData, s.handleChartData)
	mux.Handle(RouteMonth, s.limited(s.handleSetMonth))
	mux.HandleFunc(RouteMonths, s.handleMonths)
	mux.HandleFunc(RouteBudgetPanel, s.handleBudgetPanel)
	mux.Handle(RouteSetBudget, s.limited(s.handleSetBudget))
	mux.Handle(RouteRecords, s.limited(s.handleCreateRecord))
	mux.Handle(RouteRecordEdit, s.limited(s.handleEditRecord))
	mux.Handle(RouteRecordDelete, s.limited(s.handleDeleteRecord))
	mux.Handle(RouteReload, s.limited(s.handleReload))
	mux.HandleFunc(RouteHealth, s.handleHealth)
	mux.HandleFunc(RouteReady, s.handleReady)
	mux.Handle(RouteMetrics, s.metrics.Handler())

	var h http.Handler = mux
	h = s.detector.Middleware(func(r *http.Request) {
		s.metrics.Suspicious.Inc()
		log.FromContext(r.Context()).WithComponent(log.ComponentSecurity).WarnContext(r.Context(), "Suspicious request rejected",
			log.NewFields().WithClientIP(s.detector.ExtractClientIP(r)).
				WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()).ToSlice()...)
	})(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = log.Middleware(s.logger, trace.RequestID)(h)
	h = trace.NewMiddleware(s.metrics.ObserveRequest).Middleware(h)
	s.Handler = h

	return s
}

// limited applies the per-client rate limit to a state-changing handler.
func (s *Server) limited(next http.HandlerFunc) http.Handler {
	return s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.metrics.RateLimited.Inc()
		log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
			log.NewFields().WithClientIP(s.detector.ExtractClientIP(r)).
				WithHTTPRequest(r.Method, r.URL.Path, "", "").ToSlice()...)
		ErrorResponse(http.StatusTooManyRequests, "Too many requests, slow down").Write(w)
	})(next)
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
