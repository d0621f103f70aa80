package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	wsWriteTimeout   = 10 * time.Second
	wsReadTimeout    = 120 * time.Second
	wsPingInterval   = 30 * time.Second
	wsMaxMessageSize = 16 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin policy is enforced at the edge proxy.
		return true
	},
}

// inboundMessage is what the client sends over the socket.
type inboundMessage struct {
	Message string `json:"message"`
}

// handleChatSocket upgrades to WebSocket and serves the streaming chat
// protocol: the client sends messages, the server answers each with a
// sequence of frames ending in a done frame. Messages are handled strictly
// in order on one connection.
func (s *Server) handleChatSocket(c echo.Context) error {
	userID := c.Param("user_id")
	sessionID := c.Param("session_id")
	if userID == "" || sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id and session_id are required")
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("server.ws.upgrade_failed", "error", err.Error())
		return err
	}

	conn := &wsConn{ws: ws}
	defer conn.close()

	s.logger.Info("server.ws.connected", "user_id", userID, "session_id", sessionID)

	stopPing := conn.startPing()
	defer stopPing()

	ws.SetReadLimit(wsMaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(wsReadTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	ctx := c.Request().Context()
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("server.ws.read_failed", "error", err.Error())
			}
			return nil
		}
		_ = ws.SetReadDeadline(time.Now().Add(wsReadTimeout))

		var in inboundMessage
		if err := json.Unmarshal(raw, &in); err != nil || in.Message == "" {
			_ = conn.writeJSON(map[string]string{"type": "error", "content": "expected {\"message\": \"...\"}"})
			continue
		}

		for frame := range s.engine.ProcessMessage(ctx, userID, sessionID, in.Message) {
			if err := conn.writeJSON(frame); err != nil {
				s.logger.Warn("server.ws.write_failed", "error", err.Error())
				return nil
			}
		}
	}
}

// wsConn serializes writes to one websocket connection; frame writes and
// pings come from different goroutines.
type wsConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.ws.WriteJSON(v)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}

func (c *wsConn) startPing() func() {
	ticker := time.NewTicker(wsPingInterval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := c.ping(); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(done)
	}
}

func (c *wsConn) close() { _ = c.ws.Close() }
