package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"realtime-chat/internal/session"
	"realtime-chat/internal/websocket"
)

// SessionOpener starts a chat session on an upgraded connection.
type SessionOpener interface {
	Open(ctx context.Context, conn session.Transport, token string) (*session.Session, error)
}

type WSHandler struct {
	sessions SessionOpener
	upgrader gorilla.Upgrader
	opts     websocket.Options
	logger   *zap.Logger
}

// NewWSHandler creates the handler. allowedOrigins lists the browser
// origins allowed to connect; "*" allows any.
func NewWSHandler(sessions SessionOpener, opts websocket.Options, allowedOrigins []string, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		opts:   opts,
		logger: logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// HandleWebSocket upgrades the request and runs a chat session on it. The
// token query parameter is checked after the upgrade so that a bad token is
// reported as an "error" event rather than an HTTP status.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade connection", zap.Error(err))
		return
	}

	client := websocket.NewClient(conn, h.opts, h.logger)
	go client.WritePump()

	ctx := c.Request.Context()
	sess, err := h.sessions.Open(ctx, client, token)
	if err != nil {
		return
	}

	client.ReadPump(func(frame []byte) {
		sess.HandleFrame(ctx, frame)
	})
	sess.Close()
}
