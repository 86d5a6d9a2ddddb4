package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/finevents/apiserver/config"
	"github.com/finevents/apiserver/internal/auth"
	"github.com/finevents/apiserver/internal/db"
	"github.com/finevents/apiserver/internal/handlers"
	"github.com/finevents/apiserver/internal/metrics"
	"github.com/finevents/apiserver/internal/mq"
	"github.com/finevents/apiserver/internal/services"
	"github.com/finevents/apiserver/internal/session"
	"github.com/finevents/apiserver/internal/storage"
	"github.com/finevents/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// SessionStore is the full session contract: the resolver reads it and the
// auth service binds and destroys entries.
type SessionStore interface {
	auth.SessionReader
	services.SessionStore
}

// Components are the collaborators the router is assembled from.
type Components struct {
	Users     services.UserRepository
	Events    services.EventRepository
	Sessions  SessionStore
	Receipts  services.ReceiptStorage
	Publisher services.Publisher
	Metrics   *metrics.Metrics
	Log       logrus.FieldLogger
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        logrus.FieldLogger
	db         *sql.DB
	redis      *redis.Client
	mq         *mq.MQ
}

// New connects every backend named in cfg and assembles the server.
func New(ctx context.Context, cfg config.Config, log *logrus.Logger) (*Server, error) {
	if err := ValidateAuthConfig(cfg.Auth); err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	redisClient, err := session.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		_ = redisClient.Close()
		_ = dbConn.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = redisClient.Close()
		_ = dbConn.Close()
		return nil, fmt.Errorf("open mq: %w", err)
	}

	var receipts services.ReceiptStorage
	if objects != nil {
		receipts = objects
	}

	router := NewRouter(cfg.Auth, Components{
		Users:     store.NewUserRepository(dbConn),
		Events:    store.NewEventRepository(dbConn),
		Sessions:  session.NewRedisStore(redisClient, cfg.Redis.KeyPrefix, cfg.Auth.SessionTTL),
		Receipts:  receipts,
		Publisher: broker,
		Metrics:   metrics.New(),
		Log:       log,
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

	log.WithFields(logrus.Fields{
		"port":    port,
		"storage": cfg.Storage.Backend,
		"mq":      cfg.MQ.Backend,
	}).Info("server configured")

	return &Server{
		httpServer: httpServer,
		router:     router,
		log:        log,
		db:         dbConn,
		redis:      redisClient,
		mq:         broker,
	}, nil
}

// ValidateAuthConfig rejects configurations that cannot sign tokens or cookies.
func ValidateAuthConfig(cfg config.AuthConfig) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if cfg.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required")
	}
	return nil
}

// NewRouter builds the HTTP routes over the given components.
func NewRouter(cfg config.AuthConfig, c Components) *chi.Mux {
	log := c.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	hasher := auth.NewPasswordHasher(cfg.HashCost, cfg.HashConcurrency, c.Metrics)
	tokens := auth.NewTokenAuthority(cfg.JWTSecret)
	cookies := session.NewCookies(cfg.CookieName, cfg.SessionSecret, cfg.CookieSecure, cfg.SessionTTL)
	resolver := auth.NewResolver(tokens, c.Sessions, c.Metrics)
	authn := handlers.NewAuthenticator(resolver, cookies, log)

	authService := services.NewAuthService(c.Users, hasher, tokens, c.Sessions, c.Publisher, c.Metrics, log)
	eventService := services.NewEventService(c.Events, c.Receipts, c.Publisher, log)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: log, NoColor: true}),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	if c.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", c.Metrics.Handler())
	}
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authService, cookies, authn, log)
	})
	router.Route("/events", func(r chi.Router) {
		handlers.EventRouter(r, eventService, authn, log)
	})

	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and then releases every backend.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.mq != nil {
		if closeErr := s.mq.Close(); closeErr != nil {
			s.log.WithError(closeErr).Warn("close mq")
		}
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
