package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/menucraft/apiserver/config"
	"github.com/menucraft/apiserver/internal/auth"
	"github.com/menucraft/apiserver/internal/db"
	"github.com/menucraft/apiserver/internal/events"
	"github.com/menucraft/apiserver/internal/handlers"
	"github.com/menucraft/apiserver/internal/media"
	"github.com/menucraft/apiserver/internal/services"
	"github.com/menucraft/apiserver/internal/store"
)

// Development fallbacks for the token secret and the OAuth internal key.
// Refused outright when ENV=production.
const (
	devJWTSecret   = "dev-insecure-jwt-secret"
	devInternalKey = "dev-insecure-internal-key"
)

// Server wraps the HTTP server, router, and long-lived connections.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	events     *events.Bus
}

// New constructs a Server with all dependencies wired.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	jwtSecret, err := resolveSecret(cfg, cfg.Auth.JWTSecret, "JWT_SECRET", devJWTSecret)
	if err != nil {
		return nil, err
	}
	internalKey, err := resolveSecret(cfg, cfg.Auth.InternalKey, "INTERNAL_API_KEY", devInternalKey)
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	mediaStore, err := media.Connect(ctx, cfg.Media)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("media store: %w", err)
	}

	eventBus, err := events.Connect(ctx, cfg.Events)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("event bus: %w", err)
	}

	userRepo := store.NewUserRepository(dbConn)
	itemRepo := store.NewItemRepository(dbConn)

	var publisher services.EventPublisher
	if eventBus != nil {
		publisher = eventBus
	}

	tokenService := auth.NewTokenService(jwtSecret)
	userService := services.NewUserService(userRepo)
	itemService := services.NewItemService(itemRepo, publisher, cfg.Events.Channel)

	authMiddleware := handlers.RequireAuth(tokenService)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Internal-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/healthz", handlers.Healthz)
	router.Route("/items", func(r chi.Router) {
		handlers.ItemRouter(r, itemService, mediaStore, authMiddleware)
	})
	router.Route("/products", func(r chi.Router) {
		handlers.ProductRouter(r, itemService, authMiddleware)
	})
	router.Route("/media", func(r chi.Router) {
		handlers.MediaRouter(r, itemService, mediaStore)
	})
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, tokenService, internalKey)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		events:     eventBus,
	}, nil
}

// resolveSecret returns the configured value, or the development fallback
// outside production. A production profile with a missing secret refuses to
// start rather than run with a guessable key.
func resolveSecret(cfg config.Config, value, name, devDefault string) (string, error) {
	if value != "" {
		return value, nil
	}
	if cfg.IsProduction() {
		return "", errors.New(name + " is required in production")
	}
	slog.Warn("using insecure development default", "secret", name)
	return devDefault, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests, then closes the database pool and
// the event bus.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.events != nil {
		_ = s.events.Close()
	}
	return err
}
