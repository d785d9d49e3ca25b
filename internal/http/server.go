package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"vet/internal/archive"
	"vet/internal/cache"
	"vet/internal/core"
	applog "vet/internal/log"
	"vet/internal/middleware/ratelimit"
	"vet/internal/middleware/security"
	"vet/internal/middleware/trace"
)

// Archive is what the server needs from the expense archive.
type Archive interface {
	Ingest(ctx context.Context, items []core.Expense) ([]archive.Record, error)
	List() ([]archive.Record, error)
}

// ServerConfig holds the HTTP options for NewServer.
type ServerConfig struct {
	Addr            string
	UploadsDir      string
	MaxPayloadBytes int64
	CORSAllowOrigin string
	// SyncRateLimit is requests per minute per client on /api/sync; 0 disables.
	SyncRateLimit int
}

type Server struct {
	http.Server
	archive     Archive
	logger      *applog.Logger
	structured  *applog.StructuredLogger
	tracer      *trace.Middleware
	rateLimiter *ratelimit.Limiter
	maxPayload  int64
	appMetrics  *appMetrics

	// encoded GET /api/expenses bodies, purged on every archived batch
	listCache      *cache.LRUCache[[]byte]
	listGeneration int64
	cacheManager   *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg ServerConfig, arch Archive, logger *applog.Logger) *Server {
	if cfg.MaxPayloadBytes <= 0 {
		cfg.MaxPayloadBytes = 50 << 20
	}
	httpLogger := logger.WithComponent(applog.ComponentHTTP)

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		archive:      arch,
		logger:       httpLogger,
		structured:   applog.NewStructuredLogger(httpLogger),
		tracer:       trace.NewMiddleware(logger.WithComponent(applog.ComponentTrace)),
		maxPayload:   cfg.MaxPayloadBytes,
		appMetrics:   newAppMetrics(),
		listCache:    cache.NewLRUCache[[]byte](1, 5*time.Minute),
		cacheManager: cache.NewManager(),
	}
	s.cacheManager.Register(s.listCache)
	s.cacheManager.StartCleanup(time.Minute)

	syncHandler := http.Handler(http.HandlerFunc(s.handleSync))
	if cfg.SyncRateLimit > 0 {
		s.rateLimiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.SyncRateLimit})
		syncHandler = s.rateLimiter.Middleware(trace.ClientIP, func(w http.ResponseWriter, r *http.Request) {
			TooManyRequestsError().Write(w)
		})(syncHandler)
	}

	mux.Handle("POST /api/sync", syncHandler)
	mux.HandleFunc("GET /api/expenses", s.handleExpenses)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)
	if cfg.UploadsDir != "" {
		uploads := http.StripPrefix(archive.UploadsURLPrefix, http.FileServer(http.Dir(cfg.UploadsDir)))
		mux.Handle("GET "+archive.UploadsURLPrefix, security.StaticAssetMiddleware(86400)(uploads))
	}

	headers := security.DefaultHeadersConfig()
	if cfg.CORSAllowOrigin != "" {
		headers.AllowOrigin = cfg.CORSAllowOrigin
	}

	var handler http.Handler = mux
	handler = applog.RequestIDMiddleware(trace.RequestIDFromRequest)(handler)
	handler = applog.Middleware(httpLogger)(handler)
	handler = security.NewHeadersMiddleware(headers).Middleware(handler)
	handler = s.tracer.Middleware(handler)
	s.Handler = handler

	return s
}

// Shutdown gracefully shuts down the server and its background routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
