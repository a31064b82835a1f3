package http

import (
	"bytes"
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"finanzen/internal/auth"
	"finanzen/internal/cache"
	"finanzen/internal/core"
	"finanzen/internal/log"
	"finanzen/internal/middleware/ratelimit"
	"finanzen/internal/middleware/security"
	"finanzen/internal/middleware/trace"
	"finanzen/internal/services"
	"finanzen/internal/session"
	"finanzen/internal/storage"
	appweb "finanzen/web"
)

// HistoryStore is the read side of the analysis history.
type HistoryStore interface {
	ListRecent(ctx context.Context, userEmail string, limit int) ([]storage.Analysis, error)
	GetAnalysis(ctx context.Context, id int64) (*storage.Analysis, error)
	Ping(ctx context.Context) error
}

// Options wires the server's collaborators. Auth and History are optional.
type Options struct {
	Addr     string
	Logger   *log.Logger
	Analysis *services.AnalysisService
	Sessions *session.Store
	Auth     *auth.Provider
	History  HistoryStore

	AnalyzeRatePerMinute int
	TrustedProxies       []string

	// Now is overridden in tests.
	Now func() time.Time
}

type Server struct {
	http.Server
	templates *template.Template
	logger    *log.Logger

	analysis *services.AnalysisService
	sessions *session.Store
	auth     *auth.Provider
	history  HistoryStore

	analyzeLimiter   *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	cacheManager     *cache.Manager
	appMetrics       *appMetrics
	now              func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	rate := opts.AnalyzeRatePerMinute
	if rate <= 0 {
		rate = 6
	}

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring invalid trusted proxy", "cidr", cidr, log.FieldError, err)
		}
	}

	s := &Server{
		logger:           logger.WithComponent(log.ComponentHTTP),
		analysis:         opts.Analysis,
		sessions:         opts.Sessions,
		auth:             opts.Auth,
		history:          opts.History,
		analyzeLimiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: rate, CleanupInterval: 5 * time.Minute}),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(logger, detector.ExtractClientIP),
		cacheManager:     cache.NewManager(logger.Logger),
		appMetrics:       newAppMetrics(),
		now:              now,
	}
	if s.sessions == nil {
		s.sessions = session.NewStore(10000, 12*time.Hour, false)
	}
	s.cacheManager.Register("sessions", s.sessions.Cache())
	s.cacheManager.StartCleanup(10 * time.Minute)

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.WithComponent(log.ComponentTemplate).Error("Failed parsing templates", log.FieldError, err)
	} else {
		s.templates = t
	}

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/items/add", s.handleAddItem)
	mux.HandleFunc("/items/remove", s.handleRemoveItem)
	mux.HandleFunc("/items/update", s.handleUpdateItem)
	mux.HandleFunc("/forecast", s.handleForecast)
	mux.HandleFunc("/ui/summary", s.handleSummaryPartial)

	onLimit := func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Analyze rate limit exceeded", log.FieldClientIP, detector.ExtractClientIP(r))
		TooManyRequestsError("Muitas análises em pouco tempo. Aguarde um minuto e tente novamente.").Write(w)
	}
	analyze := s.analyzeLimiter.Middleware(detector.ExtractClientIP, onLimit)(http.HandlerFunc(s.handleAnalyze))
	mux.Handle("/analyze", analyze)
	mux.HandleFunc("/dashboard", s.handleDashboard)
	mux.HandleFunc("/edit", s.handleEdit)
	mux.HandleFunc("/save", s.handleSave)
	mux.HandleFunc("/reports/open", s.handleOpenReport)
	mux.HandleFunc("/history", s.handleHistory)
	mux.HandleFunc("/history/restore", s.handleRestore)

	mux.HandleFunc("/api/summary", s.handleAPISummary)
	mux.HandleFunc("/api/projection", s.handleAPIProjection)

	mux.HandleFunc("/auth/login", s.handleLogin)
	mux.HandleFunc("/auth/callback", s.handleCallback)
	mux.HandleFunc("/auth/logout", s.handleLogout)

	var handler http.Handler = mux
	handler = detector.Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Analyses wait on the narrative provider.
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

var templateFuncs = template.FuncMap{
	"brl":  core.FormatBRL,
	"date": core.FormatDate,
}

// Shutdown stops background cleanup and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.analyzeLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// render executes a named template, logging and answering 500 on failure.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path,
			"error_type", log.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err,
			"template", name)
		http.Error(w, "Erro ao montar a página", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// pageData is shared by every full page.
type pageData struct {
	Title   string
	Flash   string
	User    *auth.Profile
	LoginOn bool
	History bool
	Active  string
	Content any
}

func (s *Server) page(sess *session.Session, title, active string, content any) pageData {
	return pageData{
		Title:   title,
		Flash:   sess.TakeFlash(),
		User:    sess.Profile(),
		LoginOn: s.auth != nil,
		History: s.history != nil && sess.Profile() != nil,
		Active:  active,
		Content: content,
	}
}
