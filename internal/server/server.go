package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/newsdesk/apiserver/config"
	"github.com/newsdesk/apiserver/internal/db"
	"github.com/newsdesk/apiserver/internal/handlers"
	"github.com/newsdesk/apiserver/internal/mq"
	"github.com/newsdesk/apiserver/internal/services"
	"github.com/newsdesk/apiserver/internal/storage"
	"github.com/newsdesk/apiserver/internal/store"
	"github.com/rs/zerolog"
)

// Server wraps the HTTP server and its long-lived resources.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     *mq.MQ
	log        zerolog.Logger
}

// New constructs a fully wired Server: database, repositories, services,
// object storage, optional broker, routes and middleware.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Server, error) {
	jwtSecret := strings.TrimSpace(cfg.JWT.Secret)
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	images, err := newImageStorage(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	if err := images.EnsureBucket(ctx); err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	articleRepo := store.NewArticleRepository(dbConn)
	categoryRepo := store.NewCategoryRepository(dbConn)

	userService := services.NewUserService(userRepo)
	categoryService := services.NewCategoryService(categoryRepo)
	articleService := services.NewArticleService(articleRepo, categoryService, images, cfg.Uploads, log)

	broker, err := newBroker(ctx, cfg.Broker)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	if broker != nil {
		articleService.SetEventPublisher(broker, cfg.Broker.Channel)
		log.Info().Str("backend", cfg.Broker.Backend).Str("channel", cfg.Broker.Channel).Msg("event publishing enabled")
	}

	if err := userService.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		log.Warn().Err(err).Msg("failed to seed admin account")
	}

	auth := handlers.NewAuthHandler(userService, jwtSecret, time.Duration(cfg.JWT.TTLHours)*time.Hour)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		requestLogger(log),
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, auth)
	})
	router.Route("/news", func(r chi.Router) {
		handlers.NewsRouter(r, articleService, cfg.Uploads.MaxBytes, auth)
	})
	router.Route("/categories", func(r chi.Router) {
		handlers.CategoryRouter(r, categoryService, auth)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, userService, auth)
	})
	router.Route("/uploads", func(r chi.Router) {
		handlers.UploadRouter(r, images)
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
		broker:     broker,
		log:        log,
	}, nil
}

// newImageStorage selects the object storage backend for article images.
func newImageStorage(ctx context.Context, cfg config.StorageConfig) (*storage.Storage, error) {
	switch cfg.Backend {
	case "", "local":
		client, err := storage.NewLocalClient(cfg.Local.Dir)
		if err != nil {
			return nil, err
		}
		return storage.NewStorage(client), nil
	case "minio":
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		return storage.NewStorage(client), nil
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		return storage.NewStorage(client), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// newBroker selects the message broker, or nil when events are disabled.
func newBroker(ctx context.Context, cfg config.BrokerConfig) (*mq.MQ, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "rabbitmq":
		client, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil
	case "pubsub":
		client, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil
	default:
		return nil, fmt.Errorf("unknown broker backend %q", cfg.Backend)
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("server listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.broker != nil {
		_ = s.broker.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
