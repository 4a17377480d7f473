package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"vibecall/backend/internal/notify"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Дозволяє з'єднання з будь-якого домену. У продакшені налаштувати!
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket оновлює HTTP-з'єднання до WebSocket. Користувач уже автентифікований
// через AuthRequired (токен у ?token=).
func (h *Handler) ServeWebSocket(c *gin.Context) {
	userID := currentUserID(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Str("module", "api").Str("user_id", userID).Err(err).Msg("websocket upgrade failed")
		return
	}

	client := notify.NewWebSocketClient(userID, conn, h.Fanout, h.Engine.Heartbeat)
	if !h.Fanout.Register(client) {
		conn.Close()
		return
	}
	client.Run()
}
