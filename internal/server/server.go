package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rmgwatch/apiserver/config"
	"github.com/rmgwatch/apiserver/internal/db"
	"github.com/rmgwatch/apiserver/internal/handlers"
	"github.com/rmgwatch/apiserver/internal/logging"
	"github.com/rmgwatch/apiserver/internal/mq"
	"github.com/rmgwatch/apiserver/internal/services"
	"github.com/rmgwatch/apiserver/internal/storage"
	"github.com/rmgwatch/apiserver/internal/store"
)

// Server wraps the HTTP server, router and the background consumers.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
	log        logging.Logger

	cancelConsumers context.CancelFunc
}

// New wires the full application: database, repositories, services,
// optional object storage and message queue, and the HTTP routes.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	log := logging.NewJSONLogger()

	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	sessionRepo := store.NewSessionRepository(dbConn)
	entityRepo := store.NewEntityRepository(dbConn)
	reportRepo := store.NewReportRepository(dbConn)
	countryRepo := store.NewCountryRepository(dbConn)
	auditRepo := store.NewAuditRepository(dbConn)

	recorder := services.NewAuditRecorder(auditRepo, log)

	evidenceStore, err := newEvidenceStore(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	queue, err := newQueue(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	var publisher services.EventPublisher
	if queue != nil {
		publisher = queue
	}

	authService := services.NewAuthService(userRepo, sessionRepo, recorder, jwtSecret)
	entityService := services.NewEntityService(entityRepo, recorder)
	reportService := services.NewReportService(reportRepo, entityRepo, evidenceStore, publisher, recorder, log)
	countryService := services.NewCountryService(countryRepo, entityRepo, reportRepo)
	adminService := services.NewAdminService(userRepo, entityRepo, reportRepo, auditRepo, recorder)

	authHandler := handlers.NewAuthHandler(authService)
	requireAuth := authHandler.RequireAuth
	optionalAuth := authHandler.OptionalAuth

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authService)
	})
	router.Route("/account", func(r chi.Router) {
		handlers.AccountRouter(r, authService, requireAuth)
	})
	router.Route("/entities", func(r chi.Router) {
		handlers.EntityRouter(r, entityService, reportService, requireAuth)
	})
	router.Route("/reports", func(r chi.Router) {
		handlers.ReportRouter(r, reportService, requireAuth, optionalAuth)
	})
	router.Route("/countries", func(r chi.Router) {
		handlers.CountryRouter(r, countryService)
	})
	router.Route("/admin", func(r chi.Router) {
		handlers.AdminRouter(r, adminService, countryService, requireAuth)
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

	server := &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
		log:        log,
	}

	if queue != nil {
		consumerCtx, cancel := context.WithCancel(context.Background())
		server.cancelConsumers = cancel
		server.startStatisticsConsumer(consumerCtx, countryService)
	}

	return server, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the consumers and closes the server's resources.
func (s *Server) Shutdown() error {
	if s.cancelConsumers != nil {
		s.cancelConsumers()
	}
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}

// startStatisticsConsumer subscribes to report lifecycle events and
// refreshes the affected country's aggregates as reports are submitted
// and reviewed.
func (s *Server) startStatisticsConsumer(ctx context.Context, countries *services.CountryService) {
	handler := func(ctx context.Context, msg mq.Message) error {
		event, err := services.DecodeReportEvent(msg.Data)
		if err != nil {
			s.log.Error(ctx, "malformed report event", "message_id", msg.ID, "error", err)
			// Do not redeliver unparseable payloads.
			return nil
		}
		if event.CountryCode == "" {
			return nil
		}
		if _, err := countries.Recompute(ctx, event.CountryCode); err != nil {
			s.log.Error(ctx, "country recompute failed", "country", event.CountryCode, "error", err)
			return err
		}
		return nil
	}

	for _, channel := range []string{services.ChannelReportSubmitted, services.ChannelReportReviewed} {
		go func(channel string) {
			if err := s.queue.Subscribe(ctx, channel, handler); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Error(ctx, "event subscription stopped", "channel", channel, "error", err)
			}
		}(channel)
	}
}

// newEvidenceStore builds the configured object-storage backend, or
// returns nil when evidence uploads are disabled.
func newEvidenceStore(ctx context.Context, cfg config.Config) (services.EvidenceStore, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendMinio:
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		wrapped := storage.NewStorage(client)
		if err := wrapped.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return wrapped, nil

	case config.StorageBackendGCS:
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		wrapped := storage.NewStorage(client)
		if err := wrapped.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return wrapped, nil

	case config.StorageBackendNone, "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// newQueue builds the configured message-queue backend, or returns nil
// when eventing is disabled.
func newQueue(ctx context.Context, cfg config.Config) (*mq.MQ, error) {
	switch cfg.MQBackend {
	case config.MQBackendRabbitMQ:
		client, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil

	case config.MQBackendPubSub:
		client, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil

	case config.MQBackendNone, "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.MQBackend)
	}
}
