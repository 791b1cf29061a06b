package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/lostfound/apiserver/config"
	"github.com/lostfound/apiserver/internal/handlers"
	"github.com/lostfound/apiserver/internal/mq"
	"github.com/lostfound/apiserver/internal/services"
	"github.com/lostfound/apiserver/internal/storage"
	"github.com/lostfound/apiserver/internal/store"
)

// ShutdownGrace is how long in-flight requests get to finish on shutdown.
const ShutdownGrace = 10 * time.Second

// Server wraps the HTTP server and the resources it owns.
type Server struct {
	httpServer *http.Server
	store      store.ItemStore
	objects    *storage.Storage
	events     *mq.Publisher
	logger     *zap.Logger
}

// openObjectStorage is replaced in tests.
var openObjectStorage = storage.NewFromConfig

// RouterOptions carries what NewRouter needs besides the services.
type RouterOptions struct {
	Backend     string
	CORSOrigins []string
	Logger      *zap.Logger
}

// New opens the item store, asset storage and event backend selected by
// cfg and assembles the router. Any error means the process must not serve.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	itemStore, err := store.Open(ctx, cfg, logger.Named("store"))
	if err != nil {
		return nil, err
	}

	objects, err := openObjectStorage(ctx, cfg.Assets)
	if err != nil {
		_ = itemStore.Close()
		return nil, fmt.Errorf("asset storage: %w", err)
	}

	backend, err := mq.NewBackend(ctx, cfg.Events)
	if err != nil {
		if closeErr := objects.Close(); closeErr != nil {
			logger.Warn("close asset storage", zap.Error(closeErr))
		}
		_ = itemStore.Close()
		return nil, fmt.Errorf("events backend: %w", err)
	}
	events := mq.NewPublisher(backend, cfg.Events.Channel, logger.Named("events"))

	assets := services.NewAssetManager(objects, logger.Named("assets"))
	items := services.NewItemService(itemStore, assets, events, logger.Named("items"))

	router := NewRouter(items, assets, RouterOptions{
		Backend:     string(cfg.Backend()),
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger.Named("http"),
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		store:      itemStore,
		objects:    objects,
		events:     events,
		logger:     logger,
	}, nil
}

// NewRouter builds the HTTP surface. Item routes are served both at the
// root and under /api.
func NewRouter(items *services.ItemService, assets *services.AssetManager, opts RouterOptions) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	system := handlers.NewSystemHandler(items, assets, opts.Backend, logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
		cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}),
	)
	router.NotFound(handlers.NotFound)
	router.MethodNotAllowed(handlers.MethodNotAllowed)

	mount := func(r chi.Router) {
		r.Get("/health", system.Health)
		r.Get("/ready", system.Ready)
		r.Route("/items", func(r chi.Router) {
			handlers.ItemRouter(r, items, logger)
		})
	}
	mount(router)
	router.Route("/api", mount)
	router.Get("/uploads/{name}", system.Upload)

	return router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones, then closes
// the event publisher, asset storage and store in that order. Closing the
// snapshot store writes its final snapshot.
func (s *Server) Shutdown(ctx context.Context) error {
	httpErr := s.httpServer.Shutdown(ctx)
	if httpErr != nil {
		s.logger.Warn("http shutdown", zap.Error(httpErr))
	}
	if err := s.events.Close(); err != nil {
		s.logger.Warn("close events backend", zap.Error(err))
	}
	if err := s.objects.Close(); err != nil {
		s.logger.Warn("close asset storage", zap.Error(err))
	}
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("close item store: %w", err)
	}
	return httpErr
}
