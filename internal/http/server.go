package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"kakeibo/internal/cache"
	"kakeibo/internal/core"
	applog "kakeibo/internal/log"
	"kakeibo/internal/sheets"
	"kakeibo/internal/storage"
	appweb "kakeibo/web"
)

const (
	listingKey    = "all"
	ledgerTimeout = 10 * time.Second
	pingTimeout   = 3 * time.Second
)

// Options tunes the server. Zero values fall back to defaults.
type Options struct {
	CacheSize          int
	CacheTTL           time.Duration
	RateLimitPerMinute int
	Logger             *applog.Logger
	// Mirror, when set, is reported by /readyz.
	Mirror MirrorStatus
}

// MirrorStatus reports the last refresh of the local mirror.
type MirrorStatus interface {
	LastSync(ctx context.Context) (storage.SyncState, bool, error)
}

type Server struct {
	http.Server
	templates *template.Template
	ledger    sheets.Ledger
	mirror    MirrorStatus

	logger  *applog.Logger
	metrics *securityMetrics

	rateLimiter *rateLimiter

	// listing of the whole ledger, purged on every mutation
	listCache *cache.LRUCache[[]core.Entry]
	caches    *cache.Manager
	// listGen is bumped by invalidate; a read started under an older
	// generation must not repopulate the cache.
	listMu  sync.Mutex
	listGen uint64

	started      time.Time
	shutdownOnce sync.Once
}

// pinger is implemented by ledgers that can check their backend.
type pinger interface {
	Ping(ctx context.Context) error
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, ledger sheets.Ledger, opts Options) *Server {
	if opts.CacheSize < 1 {
		opts.CacheSize = 16
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 2 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		ledger:      ledger,
		mirror:      opts.Mirror,
		logger:      logger,
		metrics:     &securityMetrics{},
		rateLimiter: newRateLimiter(opts.RateLimitPerMinute),
		listCache:   cache.NewLRUCache[[]core.Entry](opts.CacheSize, opts.CacheTTL),
		caches:      cache.NewManager(),
		started:     time.Now(),
	}
	s.caches.Register(s.listCache)
	s.caches.StartCleanup(opts.CacheTTL)

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	mux := http.NewServeMux()
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			static.ServeHTTP(w, r)
		}))
	} else {
		logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/entries", s.handleCreateEntry)
	mux.HandleFunc("/entries/delete", s.handleDeleteEntry)
	// UI partials
	mux.HandleFunc("GET /ui/categories", s.handleCategoryOptions)
	mux.HandleFunc("GET /ui/ledger", s.handleLedger)

	s.Server = http.Server{
		Addr: addr,
		Handler: applog.Middleware(logger)(
			applog.RequestIDMiddleware(requestID)(
				s.withSecurity(mux))),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

var templateFuncs = template.FuncMap{
	"yen":   core.FormatYen,
	"label": func(t core.EntryType) string { return t.Label() },
}

// Shutdown stops background goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// requestID reuses an incoming X-Request-ID of sane length, otherwise it
// generates one and stores it on the request for later middleware.
func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" && len(id) <= 64 {
		return id
	}
	id := generateRequestID()
	r.Header.Set("X-Request-ID", id)
	return id
}

// withSecurity adds security headers, rate limits POSTs and logs each
// request on completion.
func (s *Server) withSecurity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		clientIP := extractClientIP(r)

		if detectSuspiciousRequest(r, s.metrics) {
			applog.FromContext(ctx).WarnContext(ctx, "Suspicious request",
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
		}

		setSecurityHeaders(w.Header())
		w.Header().Set("X-Request-ID", r.Header.Get("X-Request-ID"))

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP, start, s.metrics) {
			applog.FromContext(ctx).WarnContext(ctx, "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldPath, r.URL.Path)
			rw.Header().Set("Retry-After", "60")
			http.Error(rw, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		} else {
			next.ServeHTTP(rw, r)
		}

		eventLog(ctx).LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	})
}

// responseWriter captures the status code for the access log.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// listing returns the ledger, served from cache until the next mutation
// or until the TTL passes. Callers must not modify the result.
func (s *Server) listing(ctx context.Context) ([]core.Entry, error) {
	if entries, ok := s.listCache.Get(listingKey); ok {
		applog.FromContext(ctx).DebugContext(ctx, "Listing cache hit", "count", len(entries))
		return entries, nil
	}
	s.listMu.Lock()
	gen := s.listGen
	s.listMu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, ledgerTimeout)
	defer cancel()
	entries, err := s.ledger.ListAll(cctx)
	if err != nil {
		return nil, err
	}

	s.listMu.Lock()
	defer s.listMu.Unlock()
	if gen == s.listGen {
		s.listCache.Set(listingKey, entries)
	}
	return entries, nil
}

// invalidate drops the cached listing after a mutation or a stale
// position was detected.
func (s *Server) invalidate() {
	s.listMu.Lock()
	defer s.listMu.Unlock()
	s.listGen++
	s.listCache.Purge()
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded", "template", name)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		eventLog(r.Context()).LogError(r.Context(), "Template execution failed", err, applog.OpRender,
			applog.LogFields{"template": name})
	}
}

// eventLog returns a structured logger carrying the request's fields.
func eventLog(ctx context.Context) *applog.StructuredLogger {
	return applog.NewStructuredLogger(applog.FromContext(ctx))
}
