package notify

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"vibecall/backend/internal/models"
)

// Константи з'єднання
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
)

// HeartbeatFunc records a client heartbeat and returns the server time.
type HeartbeatFunc func(userID string, clientTS time.Time) time.Time

// WebSocketClient реалізує інтерфейс notify.Client
type WebSocketClient struct {
	UserID      string
	Conn        *websocket.Conn
	Fanout      *Fanout
	Send        chan models.Event
	OnHeartbeat HeartbeatFunc

	mu     sync.Mutex
	closed bool
}

func NewWebSocketClient(userID string, conn *websocket.Conn, fanout *Fanout, onHeartbeat HeartbeatFunc) *WebSocketClient {
	return &WebSocketClient{
		UserID:      userID,
		Conn:        conn,
		Fanout:      fanout,
		Send:        make(chan models.Event, sendBuffer),
		OnHeartbeat: onHeartbeat,
	}
}

func (c *WebSocketClient) GetUserID() string                    { return c.UserID }
func (c *WebSocketClient) GetSendChannel() chan<- models.Event { return c.Send }

// Run запускає 'pumps' для WebSocket
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close закриває Send канал (що зупинить writePump)
func (c *WebSocketClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// reply queues evt unless the client is closed or its buffer is full.
func (c *WebSocketClient) reply(evt models.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- evt:
	default:
	}
}

// readPump handles heartbeat frames. Everything else the client sends is ignored.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.Fanout.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Str("module", "notify").Str("user_id", c.UserID).Err(err).Msg("websocket read failed")
			}
			return
		}

		var frame models.ClientFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			log.Debug().Str("module", "notify").Str("user_id", c.UserID).Err(err).Msg("invalid client frame")
			continue
		}
		if frame.Type != "heartbeat" || c.OnHeartbeat == nil {
			continue
		}

		var clientTS time.Time
		if frame.Timestamp > 0 {
			clientTS = time.UnixMilli(frame.Timestamp)
		}
		serverTime := c.OnHeartbeat(c.UserID, clientTS)
		c.reply(models.Event{Type: models.EventHeartbeatAck, UserID: c.UserID, SentAt: serverTime.UnixMilli()})
	}
}

// writePump читає події з каналу Send і записує їх у WebSocket.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Канал закрито, закриваємо з'єднання WS
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(evt); err != nil {
				log.Debug().Str("module", "notify").Str("user_id", c.UserID).Err(err).Msg("websocket write failed")
				return
			}

		case <-ticker.C:
			// Надсилаємо Ping для підтримки з'єднання активним
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
