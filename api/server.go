package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"mspb-config/api/handlers"
	"mspb-config/config"
	"mspb-config/core/auth"
	"mspb-config/core/directory"
	"mspb-config/core/hierarchy"
	"mspb-config/core/mfa"
	"mspb-config/core/store"
	"mspb-config/core/utils"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

type Server struct {
	cfg        *config.AppConfig
	router     *chi.Mux
	httpServer *http.Server
	logger     *utils.Logger
	db         *sql.DB

	tokens    *auth.TokenManager
	overrides store.OverridesStore
	specs     store.SpecsStore
	users     store.DirectoryStore
	identity  *directory.Resolver
	hier      *hierarchy.Resolver
	engine    *mfa.Engine
	probe     *mfa.Probe

	handlerMetrics *handlers.Metrics
	requestsTotal  *prometheus.CounterVec
}

func NewServer(cfg *config.AppConfig, db, directoryDB *sql.DB, logger *utils.Logger) *Server {
	overrides := store.NewOverridesStore(db)
	specs := store.NewSpecsStore(db)
	users := store.NewDirectoryStore(directoryDB)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.ExternalJWTSecret, cfg.Auth.Issuer)
	secrets := mfa.NewHTTPSecretService(cfg.MFA.SecretServiceURL, cfg.MFA.SecretServiceCode, cfg.MFA.SecretServiceTimeout, logger)
	engine := mfa.NewEngine(secrets, cfg.MFA.Issuer, cfg.MFA.Window, logger)

	s := &Server{
		cfg:            cfg,
		router:         chi.NewRouter(),
		logger:         logger,
		db:             db,
		tokens:         tokens,
		overrides:      overrides,
		specs:          specs,
		users:          users,
		identity:       directory.NewResolver(tokens, users),
		hier:           hierarchy.NewResolver(overrides),
		engine:         engine,
		handlerMetrics: handlers.NewMetrics(),
	}
	if cfg.Probe.Enabled {
		s.probe = mfa.NewProbe(secrets, cfg.Probe.Schedule, logger)
	}
	s.registerRoutes()
	s.registerObservabilityRoutes()
	return s
}

func (s *Server) Start() error {
	if s.probe != nil {
		if err := s.probe.Start(); err != nil {
			return err
		}
	}
	s.httpServer = &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.probe != nil {
		s.probe.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routed mux for handler tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
