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
	"github.com/go-chi/cors"
	"github.com/mycolab/apiserver/config"
	"github.com/mycolab/apiserver/internal/auth"
	"github.com/mycolab/apiserver/internal/db"
	"github.com/mycolab/apiserver/internal/handlers"
	"github.com/mycolab/apiserver/internal/mq"
	"github.com/mycolab/apiserver/internal/services"
	"github.com/mycolab/apiserver/internal/storage"
	"github.com/mycolab/apiserver/internal/store"
)

// Server wraps the HTTP server and its long-lived dependencies.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     *mq.MQ
}

// New constructs a Server with all repositories, services, and routes
// wired.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	jwtSecret := strings.TrimSpace(cfg.JWT.Secret)
	if jwtSecret == "" {
		_ = dbConn.Close()
		return nil, errors.New("JWT_SECRET is required")
	}

	objectStore, err := newObjectStorage(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	broker, err := newBroker(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	taskRepo := store.NewTaskRepository(dbConn)
	materialRepo := store.NewMaterialRepository(dbConn)
	purchaseRepo := store.NewPurchaseRepository(dbConn)
	receiptRepo := store.NewReceiptRepository(dbConn)

	userService := services.NewUserService(userRepo)
	taskService := services.NewTaskService(taskRepo)
	materialService := services.NewMaterialService(materialRepo)
	purchaseService := services.NewPurchaseService(purchaseRepo, broker, cfg.MQ.Channel)
	uploadCoordinator := services.NewUploadCoordinator(
		objectStore,
		receiptRepo,
		cfg.Storage.PublicBaseURL,
		cfg.Storage.GrantTTL,
	)

	ledger := auth.NewMemoryLedger()
	authHandler := handlers.NewAuthHandler(userService, ledger, jwtSecret, cfg.JWT.TokenTTL)
	userHandler := handlers.NewUserHandler(userService, cfg.AdminSignupCode)
	taskHandler := handlers.NewTaskHandler(taskService)
	materialHandler := handlers.NewMaterialHandler(materialService)
	purchaseHandler := handlers.NewPurchaseHandler(purchaseService)
	receiptHandler := handlers.NewReceiptHandler(uploadCoordinator)

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
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler)
	})
	router.Route("/users", func(r chi.Router) {
		r.Use(authHandler.RequireAuth)
		handlers.UserRouter(r, userHandler)
	})
	router.Route("/tasks", func(r chi.Router) {
		r.Use(authHandler.RequireAuth)
		handlers.TaskRouter(r, taskHandler)
	})
	router.Route("/raw-materials", func(r chi.Router) {
		r.Use(authHandler.RequireAuth)
		handlers.MaterialRouter(r, materialHandler)
	})
	router.Route("/purchase-logs", func(r chi.Router) {
		r.Use(authHandler.RequireAuth)
		handlers.PurchaseRouter(r, purchaseHandler)
	})
	router.Route("/receipts", func(r chi.Router) {
		r.Use(authHandler.RequireAuth)
		handlers.ReceiptRouter(r, receiptHandler)
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
	}, nil
}

func newObjectStorage(ctx context.Context, cfg config.Config) (*storage.Storage, error) {
	switch cfg.Storage.Backend {
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.Storage.GCS)
		if err != nil {
			return nil, err
		}
		return storage.NewStorage(client), nil
	case "", "minio":
		client, err := storage.NewMinioClient(cfg.Storage.Minio)
		if err != nil {
			return nil, err
		}
		return storage.NewStorage(client), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func newBroker(ctx context.Context, cfg config.Config) (*mq.MQ, error) {
	switch cfg.MQ.Backend {
	case "rabbitmq":
		client, err := mq.NewRabbitMQClient(cfg.MQ.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil
	case "pubsub":
		client, err := mq.NewPubSubClient(ctx, cfg.MQ.PubSub)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil
	case "", "none":
		return mq.New(mq.NoopBackend{}), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.MQ.Backend)
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.broker != nil {
		_ = s.broker.Close()
	}
	return s.httpServer.Close()
}
