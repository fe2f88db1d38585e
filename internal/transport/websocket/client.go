package websocket

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/iamasit07/guess-master/backend/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

// Client is one websocket connection. Only writePump writes to conn.
type Client struct {
	ID     string
	UserID domain.PlayerID

	conn    *websocket.Conn
	send    chan domain.ServerMessage
	limiter *rate.Limiter

	// guarded by Hub.mu
	rooms  map[string]struct{}
	closed bool
}

func NewClient(id string, user domain.PlayerID, conn *websocket.Conn, limiter *rate.Limiter) *Client {
	return &Client{
		ID:      id,
		UserID:  user,
		conn:    conn,
		send:    make(chan domain.ServerMessage, sendBuffer),
		limiter: limiter,
		rooms:   make(map[string]struct{}),
	}
}

// enqueue must be called with the hub lock held
func (c *Client) enqueue(message domain.ServerMessage) bool {
	if c.closed {
		return true
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// Allow reports whether another inbound frame fits the client's rate limit
func (c *Client) Allow() bool {
	return c.limiter == nil || c.limiter.Allow()
}

// writePump drains the send queue and keeps the connection alive with pings.
// It closes the connection once the queue is closed or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				log.Debug().Err(err).Str("component", "ws").Str("client", c.ID).Msg("write failed")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
