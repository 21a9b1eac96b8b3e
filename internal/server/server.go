// Package server exposes the HTTP surface: the chat test page, the WebSocket
// endpoint, and the observability endpoints.
package server

import (
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/avollmer/chatrelay/internal/config"
	"github.com/avollmer/chatrelay/internal/registry"
	"github.com/avollmer/chatrelay/internal/session"
	"github.com/avollmer/chatrelay/web"
)

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	registry  *registry.Registry
	sessions  *session.Handler
	limiter   *connectionLimiter
	clock     clockwork.Clock
	templates *template.Template
	startTime time.Time
}

func NewServer(cfg *config.Config, reg *registry.Registry, sessions *session.Handler, clock clockwork.Clock) (*Server, error) {
	templates, err := template.ParseFS(web.TemplateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	srv := &Server{
		echo:      e,
		config:    cfg,
		registry:  reg,
		sessions:  sessions,
		limiter:   newConnectionLimiter(cfg.MaxConnections),
		clock:     clock,
		templates: templates,
		startTime: clock.Now(),
	}

	srv.registerRoutes()

	return srv, nil
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
