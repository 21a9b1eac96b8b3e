package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/avollmer/chatrelay/internal/logging"
	"github.com/avollmer/chatrelay/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the test page connects from arbitrary hosts
	},
}

func (s *Server) handleChatPage(c echo.Context) error {
	return s.templates.ExecuteTemplate(c.Response(), "chat.html", nil)
}

// handleWebSocket runs one client session: handshake, registration, read
// loop, teardown. Client ids are client-supplied and uncontrolled; the
// connection uuid gives logs a stable identity across id collisions.
func (s *Server) handleWebSocket(c echo.Context) error {
	clientID := c.Param("client_id")
	if clientID == "" {
		return c.String(http.StatusBadRequest, "client id required")
	}

	if !s.limiter.Acquire() {
		metrics.ConnectionsRejectedTotal.Inc()
		logging.WithClient(clientID).Warn("Rejecting connection at capacity",
			"max_connections", s.config.MaxConnections)
		return c.String(http.StatusServiceUnavailable, "server at capacity")
	}
	defer s.limiter.Release()

	rawConn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Handshake rejected; the session never starts.
		return nil
	}

	connID := uuid.NewString()
	log := logging.WithClient(clientID).With("conn_id", connID)
	log.Info("WebSocket session opened")

	conn := newWSConn(rawConn, s.clock)
	defer conn.Close()

	s.sessions.Open(clientID, conn)
	defer s.sessions.Close(clientID, conn)

	ctx := c.Request().Context()
	for {
		_, payload, err := rawConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("WebSocket closed abruptly", "error", err)
			} else {
				log.Info("WebSocket session closed")
			}
			return nil
		}
		s.sessions.HandleFrame(ctx, clientID, payload)
	}
}
