package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"finpulse/internal/amqp"
	"finpulse/internal/cache"
	"finpulse/internal/core"
	"finpulse/internal/feed"
	"finpulse/internal/log"
	"finpulse/internal/middleware/ratelimit"
	"finpulse/internal/middleware/security"
	"finpulse/internal/middleware/trace"
	"finpulse/internal/services"
	"finpulse/internal/store"
	appweb "finpulse/web"
)

// ExportQueue hands export requests to the background worker.
type ExportQueue interface {
	PublishExportRequest(ctx context.Context, msg *amqp.ExportRequestMessage) error
}

// Deps are the collaborators of the HTTP server. Exports and Ping are optional.
type Deps struct {
	Expenses *services.ExpenseService
	Reports  *services.ReportService
	Store    *store.Observable
	Exports  ExportQueue
	Ping     func(ctx context.Context) error
	Logger   *log.Logger
}

type Server struct {
	http.Server
	templates *template.Template
	expenses  *services.ExpenseService
	reports   *services.ReportService
	store     *store.Observable
	exports   ExportQueue
	ping      func(ctx context.Context) error

	logger     *log.Logger
	structured *log.StructuredLogger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	// report summaries keyed by filter and day, dropped on every store change
	summaries    *cache.LRUCache[summaryKey, core.Summary]
	cacheManager *cache.Manager
	stopWatch    context.CancelFunc

	metrics      appMetrics
	shutdownOnce sync.Once
}

type summaryKey struct {
	filter string
	day    string
}

type appMetrics struct {
	started         time.Time
	expensesCreated int64
	exportsServed   int64
	exportsQueued   int64
	cacheHits       int64
	cacheMisses     int64
	streams         int64
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.FromSlog(nil, log.ComponentHTTP)
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:           addr,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 1 << 16,
		},
		expenses:     deps.Expenses,
		reports:      deps.Reports,
		store:        deps.Store,
		exports:      deps.Exports,
		ping:         deps.Ping,
		logger:       logger,
		structured:   log.NewStructuredLogger(logger),
		limiter:      ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector:     security.NewDetector(),
		summaries:    cache.NewLRUCache[summaryKey, core.Summary](64, 5*time.Minute),
		cacheManager: cache.NewManager(),
		metrics:      appMetrics{started: time.Now()},
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	s.cacheManager.Register(s.summaries)
	s.cacheManager.StartCleanup(10 * time.Minute)
	if s.store != nil {
		s.watchChanges(s.store.Notifier())
	}

	t, err := template.New("").Funcs(templateFuncs(s.currencySymbol(), s.location())).
		ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", "error", err, "error_type", log.ErrorTypeConfiguration)
	} else {
		s.templates = t
	}

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/expenses", s.handleCreateExpense)
	mux.HandleFunc("/categories", s.handleCreateCategory)
	mux.HandleFunc("/ui/expenses", s.handleExpenseList)
	mux.HandleFunc("/ui/report", s.handleReport)
	mux.HandleFunc("/events/expenses", s.handleExpenseEvents)
	mux.Handle("/export/report.pdf", security.NoStore(http.HandlerFunc(s.handleExportPDF)))
	mux.Handle("/export/expenses.csv", security.NoStore(http.HandlerFunc(s.handleExportCSV)))
	mux.HandleFunc("/exports", s.handleQueueExport)
	mux.Handle("/exports/", security.NoStore(http.HandlerFunc(s.handleDownloadExport)))

	s.Handler = s.withMiddleware(mux)
	return s
}

// withMiddleware wraps every route: tracing and request logging outermost,
// then suspicious request detection, security headers and POST rate limiting.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		NewHTMXResponse().
			Status(http.StatusTooManyRequests).
			Header("Retry-After", "60").
			TriggerNotification(NotificationWarning, "Too many requests", 5000).
			BodyHTML(`<div class="error">Too many requests. Please try again later.</div>`).
			Write(w)
	}

	h := s.limiter.Middleware(s.detector.ExtractClientIP, onLimit, http.MethodPost)(next)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	h = log.RequestIDMiddleware(func(r *http.Request) string { return trace.GetRequestID(r.Context()) })(h)
	h = log.Middleware(s.logger)(h)
	return s.tracer.Middleware(h)
}

// watchChanges clears cached summaries whenever the store reports a write.
func (s *Server) watchChanges(n feed.Notifier) {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopWatch = cancel
	changes := n.Subscribe(ctx)
	go func() {
		for range changes {
			s.summaries.Clear()
			s.logger.WithComponent(log.ComponentCache).Debug("Report cache invalidated")
		}
	}()
}

// Shutdown gracefully shuts down the server and its background routines
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if s.stopWatch != nil {
			s.stopWatch()
		}
		s.cacheManager.Stop()
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) location() *time.Location {
	if s.reports != nil {
		return s.reports.Location()
	}
	return time.Local
}

func (s *Server) currencySymbol() string {
	if s.reports != nil {
		return s.reports.CurrencySymbol()
	}
	return ""
}

func (s *Server) now() time.Time {
	if s.reports != nil {
		return s.reports.Now()
	}
	return time.Now()
}
