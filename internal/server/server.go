package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/backoffice/internal/api/ws"
	"github.com/gosuda/backoffice/internal/config"
	"github.com/gosuda/backoffice/internal/feature"
	"github.com/gosuda/backoffice/internal/publicflow"
	"github.com/gosuda/backoffice/internal/server/middleware"
	"github.com/gosuda/backoffice/internal/table"
)

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	features   *feature.Features
	public     *publicflow.Service
	hub        *ws.Hub
	views      *ws.Views
	cfg        *config.Config
}

// New creates a Server with all routes wired. ctx bounds the background
// cleanup of the rate limiters. webAssets may be nil; when provided and the
// UI is enabled, the dashboard SPA is served on all unmatched routes.
func New(ctx context.Context, cfg *config.Config, features *feature.Features, public *publicflow.Service, sessions middleware.SessionChecker, webAssets fs.FS) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(middleware.RequestLogger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	defaults := table.Defaults{Limit: cfg.UI.DefaultPageSize, MaxLimit: cfg.UI.MaxPageSize}
	origins := originPatterns(cfg.Server.CORSOrigins)
	hub := ws.NewHub(origins)
	views := ws.NewViews(origins, defaults, cfg.UI.SearchDebounce)
	registerViews(views, features)

	s := &Server{
		router:   router,
		features: features,
		public:   public,
		hub:      hub,
		views:    views,
		cfg:      cfg,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	limit := middleware.RateLimitByIP(ctx, cfg.Server.RateLimit, cfg.Server.RateBurst)

	// Mount API routes on /api/v1 with two sub-groups:
	// 1. Open group for the session and the token-scoped public flows.
	// 2. Session-guarded group for the dashboard features.
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(limit)

		r.Group(func(r chi.Router) {
			openConfig := huma.DefaultConfig("Backoffice Public API", "1.0.0")
			openConfig.Servers = []*huma.Server{
				{URL: "/api/v1"},
			}
			openConfig.OpenAPIPath = "/openapi-public"
			openConfig.DocsPath = ""
			openConfig.SchemasPath = "/schemas-public"
			openAPI := humachi.New(r, openConfig)
			registerOpenRoutes(openAPI, features, public)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(sessions))

			apiConfig := huma.DefaultConfig("Backoffice API", "1.0.0")
			apiConfig.Servers = []*huma.Server{
				{URL: "/api/v1"},
			}
			api := humachi.New(r, apiConfig)
			registerAPIRoutes(api, features, defaults)
		})
	})

	// WebSocket routes.
	router.Route("/ws", func(r chi.Router) {
		r.Use(limit)
		r.Use(middleware.RequireSession(sessions))
		registerWSRoutes(r, hub, views)
	})

	// Health check (unauthenticated).
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Serve the embedded SPA on all unmatched routes.
	// This must be the last route registered so API/WS routes take priority.
	if webAssets != nil && cfg.Server.ServeUI {
		router.NotFound(spaFileServer(webAssets).ServeHTTP)
		log.Info().Msg("embedded dashboard enabled")
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub is the notification hub behind /ws/notifications. Register it as a
// toast sink or feed it from a relay.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// Views lists the features served over /ws/views.
func (s *Server) Views() []string {
	return s.views.Names()
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

// originPatterns turns CORS origins into the host patterns websocket.Accept
// checks. Unparseable entries are skipped.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			out = append(out, "*")
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			log.Warn().Str("origin", o).Msg("skipping websocket origin")
			continue
		}
		out = append(out, u.Host)
	}
	return out
}
