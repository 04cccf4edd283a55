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

	"github.com/dekyc/apiserver/config"
	"github.com/dekyc/apiserver/internal/db"
	"github.com/dekyc/apiserver/internal/handlers"
	"github.com/dekyc/apiserver/internal/logger"
	"github.com/dekyc/apiserver/internal/mq"
	"github.com/dekyc/apiserver/internal/roster"
	"github.com/dekyc/apiserver/internal/services"
	"github.com/dekyc/apiserver/internal/storage"
	"github.com/dekyc/apiserver/internal/store"
	"github.com/dekyc/apiserver/types"
)

// UserStore is the user persistence the server needs.
type UserStore interface {
	services.UserRepository
	services.RosterRepository
	Seed(ctx context.Context, users []types.User) (int, error)
}

// Dependencies are the backends the HTTP API runs on.
type Dependencies struct {
	Users     UserStore
	Documents services.DocumentRepository
	Objects   services.ObjectStore
	// Publisher is nil when no message queue is configured.
	Publisher services.EventPublisher
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
	log        *logger.Logger
}

// New builds the store, object storage and message queue named by cfg and
// constructs a Server on top of them.
func New(ctx context.Context, cfg config.Config, log *logger.Logger) (*Server, error) {
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	if log == nil {
		log = logger.Noop()
	}
	s := &Server{log: log}
	var deps Dependencies

	switch cfg.StoreBackend {
	case config.StoreMemory:
		deps.Users = store.NewMemoryUserRepository(nil)
		deps.Documents = store.NewMemoryDocumentRepository()
	case config.StorePostgres, "":
		dbConn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		s.db = dbConn
		deps.Users = store.NewUserRepository(dbConn)
		deps.Documents = store.NewDocumentRepository(dbConn)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		s.closeBackends()
		return nil, err
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		s.closeBackends()
		return nil, fmt.Errorf("failed to ensure bucket %s: %w", objects.Bucket(), err)
	}
	deps.Objects = objects

	queue, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		s.closeBackends()
		return nil, err
	}
	if queue != nil {
		s.queue = queue
		deps.Publisher = queue
	}

	if cfg.SeedRoster || cfg.StoreBackend == config.StoreMemory {
		n, err := deps.Users.Seed(ctx, roster.Seed())
		if err != nil {
			s.closeBackends()
			return nil, fmt.Errorf("failed to seed roster: %w", err)
		}
		log.Info("roster seeded", "inserted", n)
	}

	if cfg.Admin.Email != "" && cfg.Admin.Password != "" {
		admin, created, err := services.NewUserService(deps.Users).EnsureAdmin(ctx, cfg.Admin.Name, cfg.Admin.Email, cfg.Admin.Password)
		if err != nil {
			s.closeBackends()
			return nil, fmt.Errorf("failed to bootstrap admin: %w", err)
		}
		log.Info("admin account ready", "user_id", admin.ID, "created", created)
	}

	s.router = NewRouter(cfg, deps, log)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// NewRouter mounts every route of the API on a chi router.
func NewRouter(cfg config.Config, deps Dependencies, log *logger.Logger) *chi.Mux {
	if log == nil {
		log = logger.Noop()
	}

	userService := services.NewUserService(deps.Users)
	rosterService := services.NewRosterService(deps.Users, deps.Publisher, log)
	documentService := services.NewDocumentService(deps.Documents, deps.Objects, deps.Publisher, log)

	authMiddleware := handlers.RequireAuth(cfg.JWT.Secret)
	adminMiddleware := handlers.RequireAdmin(userService)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		requestLogger(log),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Post("/password/strength", handlers.PasswordStrength)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, handlers.AuthConfig{
			Secret:           cfg.JWT.Secret,
			TokenTTL:         cfg.JWT.TokenTTL,
			MinPasswordScore: cfg.Password.MinScore,
		})
	})
	router.Route("/admin/users", func(r chi.Router) {
		r.Use(authMiddleware, adminMiddleware)
		handlers.RosterRouter(r, rosterService, documentService)
	})
	router.Route("/documents", func(r chi.Router) {
		r.Use(authMiddleware)
		handlers.DocumentRouter(r, documentService, log)
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the backends.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.closeBackends()
	return err
}

func (s *Server) closeBackends() {
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
