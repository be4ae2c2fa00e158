package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/sound-archive/pkg/soundarchive"
)

// RouterConfig wires the HTTP surface.
type RouterConfig struct {
	Service soundarchive.Service

	// Files serves presigned downloads for the fs and memory stores under FilesRoot.
	Files     http.Handler
	FilesRoot string

	RateLimit      RateLimitConfig
	MaxUploadBytes int64
	RequestTimeout time.Duration

	// Instrument wraps every request; Metrics is served at /metrics.
	Instrument func(http.Handler) http.Handler
	Metrics    http.Handler

	// AllowedOrigins enables CORS for browser clients.
	AllowedOrigins []string
}

// NewRouter builds the archive router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if cfg.Instrument != nil {
		r.Use(cfg.Instrument)
	}
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	app.RoutesHealthz(r)
	app.RoutesHealthzReady(r)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}
	if cfg.Files != nil {
		root := cfg.FilesRoot
		if root == "" {
			root = "/files"
		}
		r.Handle(root+"/*", cfg.Files)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r.Group(func(r chi.Router) {
		r.Use(Authenticator(cfg.Service))
		r.Use(middleware.Timeout(timeout))

		r.Get("/me", Me)
		r.Mount("/content", NewContentHandler(cfg.Service, cfg.MaxUploadBytes).Routes())
		r.Mount("/media", NewMediaHandler(cfg.Service, NewRateLimiter(cfg.RateLimit)).Routes())
		r.Mount("/admin", NewAdminHandler(cfg.Service).Routes())
	})

	return r
}
