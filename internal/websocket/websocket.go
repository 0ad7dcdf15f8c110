// Package websocket serves the gateway over gorilla/websocket.
package websocket

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"duelgate/internal/config"
	"duelgate/internal/gateway"
	"duelgate/internal/handle/message"
	"duelgate/internal/observability"
	"duelgate/internal/types"
)

const maxMessageSize = 64 << 10

// Server upgrades HTTP requests and runs the pumps of each client.
type Server struct {
	cfg      config.WSConfig
	gw       *gateway.Gateway
	hub      *Hub
	handler  *message.Handler
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewServer creates a Server. hub must be the transport gw was built with.
func NewServer(cfg config.WSConfig, gw *gateway.Gateway, hub *Hub, handler *message.Handler, logger *zap.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		gw:      gw,
		hub:     hub,
		handler: handler,
		log:     observability.OrNop(logger).Named("ws"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.cfg.AllowedOrigin == "" {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || origin == s.cfg.AllowedOrigin
}

// tokenCookie carries the player token for browser clients.
const tokenCookie = "access_token"

// tokenFrom reads the player token from ?token=, the access_token cookie
// or a bearer header, in that order.
func tokenFrom(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if c, err := r.Cookie(tokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if t, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(t)
	}
	return ""
}

// ServeWS upgrades the request, identifies the player and starts the
// client's pumps. A connection whose token is rejected is closed.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := types.NewClient(conn, s.cfg.SendBuffer)
	s.hub.Add(client)
	go s.writePump(client)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	id, err := s.gw.Connect(ctx, client, tokenFrom(r))
	cancel()
	if err != nil {
		return
	}

	s.log.Info("client connected",
		zap.String("conn", client.ID()),
		zap.Int64("player", int64(id)),
		zap.String("addr", client.RemoteAddr()))

	go s.readPump(client)
	go s.processMessages(client)
}

func (s *Server) teardown(c *types.Client) {
	c.Once.Do(func() {
		s.hub.Remove(c)
		c.CloseSend()
		c.Conn.Close()
		s.gw.Disconnect(c)
		s.log.Info("client disconnected", zap.String("conn", c.ID()), zap.String("addr", c.RemoteAddr()))
	})
}

func (s *Server) readPump(c *types.Client) {
	defer func() {
		close(c.Inbox)
		s.teardown(c)
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("read error", zap.String("conn", c.ID()), zap.Error(err))
			}
			return
		}
		c.Inbox <- msg
	}
}

func (s *Server) writePump(c *types.Client) {
	defer s.teardown(c)

	for msg := range c.Send() {
		if s.cfg.WriteTimeout > 0 {
			_ = c.Conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		}
		if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			s.log.Debug("write error", zap.String("conn", c.ID()), zap.Error(err))
			return
		}
	}
	_ = c.Conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

func (s *Server) processMessages(c *types.Client) {
	for msg := range c.Inbox {
		s.handleGameMessage(c, msg)
	}
}
