package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/signcast/internal/broadcast"
	apperrors "github.com/pscheid92/signcast/internal/errors"
	"github.com/pscheid92/signcast/internal/logging"
	"github.com/pscheid92/signcast/internal/registry"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Consoles and displays connect from arbitrary origins on the
		// local network.
		return true
	},
}

// welcomeFrame is the first message on every push stream. It hands the
// client its connection id, which origin-routed requests echo back.
type welcomeFrame struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connection_id"`
}

func (s *Server) handleConsoleSocket(c echo.Context) error {
	return s.servePush(c, registry.ScopeConsole, "")
}

func (s *Server) handleDisplaySocket(c echo.Context) error {
	name := c.Param("name")
	if name == "" {
		return apperrors.ValidationError("display name is required")
	}
	return s.servePush(c, registry.ScopeDisplay, name)
}

// servePush upgrades the request, registers the connection, and blocks on
// the read pump until the client goes away. The writer owns all socket
// writes; a write or ping failure closes the socket, which also errors the
// read pump out.
func (s *Server) servePush(c echo.Context, scope registry.Scope, display string) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Warn("Failed to upgrade push connection", "error", err)
		return nil
	}

	writer := broadcast.NewWriter(conn, s.deps.Clock, s.config.PushSendBuffer, s.config.PushPingInterval, nil)
	entry := s.deps.Registry.Register(scope, display, writer)

	logger := logging.WithConnection(entry.ID.String()).With("scope", scope)
	if display != "" {
		logger = logger.With("display", display)
	}
	logger.Info("Push connection opened")

	welcome, err := json.Marshal(welcomeFrame{
		Type:         "connection.established",
		ConnectionID: entry.ID.String(),
	})
	if err == nil && !writer.TrySend(welcome) {
		logger.Warn("Failed to enqueue welcome frame")
	}

	// Read pump. Inbound frames are ignored; reading keeps pong handling
	// alive and detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.deps.Registry.Unregister(entry.ID)
	writer.Stop()
	logger.Info("Push connection closed")

	return nil
}
