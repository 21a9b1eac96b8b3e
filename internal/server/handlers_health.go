package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avollmer/chatrelay/internal/version"
)

func (s *Server) handleLiveness(c echo.Context) error {
	uptime := s.clock.Since(s.startTime).Seconds()
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": uptime,
	})
}

// handleReadiness reports readiness. The relay has no external storage, so
// readiness only reflects connection capacity.
func (s *Server) handleReadiness(c echo.Context) error {
	current := s.limiter.Current()
	if current >= s.config.MaxConnections {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status":      "at_capacity",
			"connections": current,
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":      "ready",
		"connections": current,
		"clients":     s.registry.Size(),
	})
}

func (s *Server) handleVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, version.Get())
}
