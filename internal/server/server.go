// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer: it connects stores, services,
// handlers, middleware, and routes. It decides:
//   - Which URL patterns map to which handler functions
//   - What middleware runs on which routes
//   - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// cmd/server opens the infrastructure (store, media, redis) and passes it
// in as Deps. New then builds:
//
//	Store   → services (auth, follow, feed, post, profile, search)
//	Hub     → live handler, and the post service's publisher
//	Services → handlers → routes
//
// This is the "composition root" pattern: every dependency is wired in one
// place instead of scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/fitted/fitted/internal/auth"
	"github.com/fitted/fitted/internal/config"
	"github.com/fitted/fitted/internal/handler"
	"github.com/fitted/fitted/internal/live"
	"github.com/fitted/fitted/internal/media"
	"github.com/fitted/fitted/internal/metrics"
	"github.com/fitted/fitted/internal/middleware"
	"github.com/fitted/fitted/internal/repository"
	"github.com/fitted/fitted/internal/service"
	"github.com/fitted/fitted/internal/weather"
)

// Deps are the long-lived resources the server uses but does not create.
// The server takes ownership: Shutdown closes them.
type Deps struct {
	Store     repository.Store
	Media     media.Store
	UploadDir string        // served under /uploads; empty when media lives elsewhere
	Redis     *redis.Client // optional
	Metrics   *metrics.Metrics
}

// Server represents the HTTP server and all its dependencies.
type Server struct {
	router *chi.Mux
	config *config.Config
	deps   Deps
	logger *slog.Logger

	hub         *live.Hub
	relay       *live.RedisRelay
	relayCancel context.CancelFunc
	relayDone   chan struct{}

	closeOnce sync.Once
}

// New builds the services and routes on top of deps.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		deps:   deps,
		logger: logger,
		hub:    live.NewHub(logger, deps.Metrics),
	}

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, for tests and for embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// publisher picks where new-post events go: through Redis when it is
// configured, so every instance sees them, else straight to the local hub.
func (s *Server) publisher() live.Publisher {
	if s.deps.Redis == nil {
		return s.hub
	}
	s.relay = live.NewRedisRelay(s.deps.Redis, s.hub, s.logger)
	return s.relay
}

func (s *Server) weatherCache() weather.Cache {
	if s.deps.Redis != nil {
		return weather.NewRedisCache(s.deps.Redis)
	}
	return weather.NewMemoryCache()
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE (all under BASE_PATH):
//
//	GET    /                              → feed page (HTML)
//	GET    /static/*, /uploads/*          → assets and locally stored images
//	GET    /ws                            → live channel
//	GET    /metrics                       → Prometheus
//	POST   /api/users                     → register
//	GET    /api/users/search              → user search
//	GET    /api/users/{username}          → profile
//	POST   /api/users/{username}/follow   → toggle follow          [auth]
//	POST   /api/login                     → log in (must be logged out)
//	GET    /api/login                     → session status
//	DELETE /api/login                     → log out
//	GET    /api/auth/github/{login,callback}
//	GET    /api/posts                     → global feed page
//	POST   /api/posts                     → create post            [auth]
//	GET    /api/posts/mine                → own posts              [auth]
//	GET    /api/posts/following           → following feed         [auth]
//	GET    /api/posts/search              → post search
//	GET    /api/me/counts                 → sidebar counts         [auth]
//	GET    /api/me/picture                → redirect to picture    [auth]
//	POST   /api/me/picture                → upload picture         [auth]
//	GET    /api/weather                   → weather proxy
//	GET    /api/date                      → server date
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: assigns unique ID to each request (for tracing)
//  2. RealIP: extracts real client IP from proxy headers
//  3. Logger: logs each request with timing info
//  4. Metrics: counts requests per route pattern
//  5. Recoverer: catches panics and returns 500 instead of crashing
func (s *Server) setupRoutes() error {
	cfg := s.config
	m := s.deps.Metrics

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics(m))
	s.router.Use(chimiddleware.Recoverer)

	// === Auth primitives ===
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService(cfg.BcryptCost)

	var github *auth.GitHubProvider
	if cfg.GitHubEnabled() {
		github = auth.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubCallbackURL)
	}

	// === Services ===
	// The handler never touches the store directly; the services never
	// touch HTTP.
	store := s.deps.Store
	processor := media.NewProcessor()

	authService := service.NewAuthService(store, tokens, passwords, s.logger)
	followService := service.NewFollowService(store, store, m, s.logger)
	feedService := service.NewFeedService(store, store)
	postService := service.NewPostService(store, processor, s.deps.Media, s.publisher(), m, s.logger)
	profileService := service.NewProfileService(store, store, store, processor, s.deps.Media, s.logger)
	searchService := service.NewSearchService(store, store)
	weatherClient := weather.NewClient(cfg.WeatherAPIURL, s.weatherCache(), cfg.WeatherCacheTTL, s.logger, m)

	// === Handlers ===
	pages, err := handler.NewPageHandler(cfg.TemplateDir, cfg.BasePath, github != nil, s.logger)
	if err != nil {
		return fmt.Errorf("creating page handler: %w", err)
	}
	authHandler := handler.NewAuthHandler(authService, github, cfg.SecureCookie, cfg.BasePath, s.logger)
	postHandler := handler.NewPostHandler(postService, feedService, searchService, s.logger)
	userHandler := handler.NewUserHandler(profileService, followService, searchService, cfg.BasePath, s.logger)
	infoHandler := handler.NewInfoHandler(weatherClient, s.logger)

	requireAuth := auth.RequireAuth(tokens)
	optionalAuth := auth.OptionalAuth(tokens)

	routes := func(r chi.Router) {
		// === Static Files ===
		// GET /static/css/style.css → serves {StaticDir}/css/style.css
		r.Handle("/static/*", http.StripPrefix(cfg.BasePath+"/static/", http.FileServer(http.Dir(cfg.StaticDir))))
		if s.deps.UploadDir != "" {
			r.Handle("/uploads/*", http.StripPrefix(cfg.BasePath+"/uploads/", http.FileServer(http.Dir(s.deps.UploadDir))))
		}

		r.With(optionalAuth).Get("/", pages.HandleFeed)
		r.With(optionalAuth).Handle("/ws", live.NewHandler(s.hub, s.logger))
		r.Handle("/metrics", m.Handler())

		r.Route("/api", func(r chi.Router) {
			r.Post("/users", authHandler.HandleRegister)
			r.Get("/users/search", userHandler.HandleSearch)
			r.With(optionalAuth).Get("/users/{username}", userHandler.HandleProfile)
			r.With(requireAuth).Post("/users/{username}/follow", userHandler.HandleFollow)

			r.With(optionalAuth).Post("/login", authHandler.HandleLogin)
			r.With(optionalAuth).Get("/login", authHandler.HandleStatus)
			r.Delete("/login", authHandler.HandleLogout)
			r.Get("/auth/github/login", authHandler.HandleGitHubLogin)
			r.Get("/auth/github/callback", authHandler.HandleGitHubCallback)

			r.Get("/posts", postHandler.HandleList)
			r.Get("/posts/search", postHandler.HandleSearch)
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/posts", postHandler.HandleCreate)
				r.Get("/posts/mine", postHandler.HandleMine)
				r.Get("/posts/following", postHandler.HandleFollowing)
				r.Get("/me/counts", userHandler.HandleCounts)
				r.Get("/me/picture", userHandler.HandlePicture)
				r.Post("/me/picture", userHandler.HandleUploadPicture)
			})

			r.Get("/weather", infoHandler.HandleWeather)
			r.Get("/date", infoHandler.HandleDate)
		})
	}

	if cfg.BasePath == "" {
		routes(s.router)
	} else {
		s.router.Route(cfg.BasePath, routes)
	}

	return nil
}

// startRelay runs the Redis subscription until Shutdown.
func (s *Server) startRelay() {
	if s.relay == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.relayCancel = cancel
	s.relayDone = make(chan struct{})
	go func() {
		defer close(s.relayDone)
		if err := s.relay.Run(ctx); err != nil {
			s.logger.Error("live relay stopped", slog.String("error", err.Error()))
		}
	}()
}

// Start runs the HTTP server and blocks until SIGINT/SIGTERM or a listen
// error.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Close websocket clients (they would otherwise hold Shutdown open)
//  3. Wait for in-flight requests to finish (30s timeout)
//  4. Stop the relay, then close redis and the store
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second, // uploads are processed inside the request
		IdleTimeout:  60 * time.Second,
	}
	// Hijacked websocket connections are not tracked by Shutdown.
	srv.RegisterOnShutdown(s.hub.Close)

	s.startRelay()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d%s/", s.config.Port, s.config.BasePath)),
			slog.String("store", s.config.Store),
			slog.String("media", s.config.MediaBackend),
			slog.Bool("redis", s.deps.Redis != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Close releases everything the server owns. Safe to call more than once.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.hub.Close()
		if s.relayCancel != nil {
			s.relayCancel()
			<-s.relayDone
		}
		if s.deps.Redis != nil {
			if err := s.deps.Redis.Close(); err != nil {
				s.logger.Warn("closing redis", slog.String("error", err.Error()))
			}
		}
		if s.deps.Store != nil {
			if err := s.deps.Store.Close(); err != nil {
				s.logger.Warn("closing store", slog.String("error", err.Error()))
			}
		}
	})
}
