package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/signcast/internal/broadcast"
	"github.com/pscheid92/signcast/internal/config"
	"github.com/pscheid92/signcast/internal/domain"
	apperrors "github.com/pscheid92/signcast/internal/errors"
	"github.com/pscheid92/signcast/internal/feedcache"
	"github.com/pscheid92/signcast/internal/liveness"
	"github.com/pscheid92/signcast/internal/registry"
)

// postgresHealthChecker is the minimal pool surface the readiness probe
// needs. Satisfied by *pgxpool.Pool.
type postgresHealthChecker interface {
	Ping(ctx context.Context) error
}

// Dependencies bundles everything the HTTP surface is wired to.
type Dependencies struct {
	Clock       clockwork.Clock
	Registry    *registry.Registry
	Broadcaster *broadcast.Broadcaster
	Liveness    *liveness.Service
	Feeds       *feedcache.Service
	Displays    domain.DisplayRepository
	Slideshows  domain.SlideshowRepository

	Postgres postgresHealthChecker
	Redis    *goredis.Client // nil when no relay is configured
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	deps      Dependencies
	startTime time.Time
}

func NewServer(cfg *config.Config, deps Dependencies) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:      e,
		config:    cfg,
		deps:      deps,
		startTime: deps.Clock.Now(),
	}
	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
