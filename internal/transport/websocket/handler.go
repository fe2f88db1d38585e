package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/iamasit07/guess-master/backend/internal/domain"
	"github.com/iamasit07/guess-master/backend/pkg/auth"
	"github.com/iamasit07/guess-master/backend/pkg/httputil"
	"github.com/iamasit07/guess-master/backend/pkg/uid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	initWait = 10 * time.Second

	// inbound frames per second allowed per connection, with burst
	defaultMessageRate  = 5
	defaultMessageBurst = 10
)

type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*auth.Claims, error)
}

// SessionChecker reports whether a session code exists
type SessionChecker interface {
	Exists(ctx context.Context, code string) (bool, error)
}

// Handler upgrades /ws requests and runs the subscription protocol:
// an init frame carrying a JWT, then joinSession / leaveSession frames.
type Handler struct {
	Hub      *Hub
	Tokens   TokenValidator
	Sessions SessionChecker
	Upgrader websocket.Upgrader

	MessageRate  rate.Limit
	MessageBurst int
}

func NewHandler(hub *Hub, tokens TokenValidator, sessions SessionChecker, allowedOrigins []string) *Handler {
	return &Handler{
		Hub:      hub,
		Tokens:   tokens,
		Sessions: sessions,
		Upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		MessageRate:  defaultMessageRate,
		MessageBurst: defaultMessageBurst,
	}
}

// originChecker allows requests without an Origin header (non-browser clients)
// and browser requests from one of the allowed origins
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set["*"]; ok {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// HandleWebSocket is the gin handler that upgrades the connection
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("component", "ws").Msg("upgrade failed")
		return
	}
	h.handleConnection(conn, c.Request)
}

func (h *Handler) handleConnection(conn *websocket.Conn, r *http.Request) {
	user, ok := h.authenticate(conn, r)
	if !ok {
		conn.Close()
		return
	}

	client := NewClient(uid.NewClientID(), user, conn, rate.NewLimiter(h.MessageRate, h.MessageBurst))
	h.Hub.Register(client)
	go client.writePump()
	defer h.Hub.Unregister(client)

	log.Info().Str("component", "ws").Str("client", client.ID).Str("user", user.String()).Msg("connection initialized")

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("component", "ws").Str("client", client.ID).Msg("disconnected unexpectedly")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		if !client.Allow() {
			h.sendError(client, "", "Too many messages")
			continue
		}

		var msg domain.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(client, "", "Invalid message format")
			continue
		}
		h.processMessage(r.Context(), client, msg)
	}
}

// authenticate reads the init frame. The token comes from the frame, or from
// the upgrade request's cookie or Authorization header when the frame has none.
func (h *Handler) authenticate(conn *websocket.Conn, r *http.Request) (domain.PlayerID, bool) {
	conn.SetReadDeadline(time.Now().Add(initWait))
	_, data, err := conn.ReadMessage()
	if err != nil {
		log.Debug().Err(err).Str("component", "ws").Msg("read failed during init")
		return "", false
	}

	var msg domain.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "init" {
		writeDirect(conn, domain.ServerMessage{Type: domain.EventError, Message: "Expected init frame"})
		return "", false
	}

	token := msg.JWT
	if token == "" {
		token, _ = httputil.GetTokenFromRequest(r)
	}
	if token == "" {
		writeDirect(conn, domain.ServerMessage{Type: domain.EventError, Message: domain.ErrUnauthenticated.Message})
		return "", false
	}

	claims, err := h.Tokens.ValidateAccessToken(token)
	if err != nil {
		log.Debug().Err(err).Str("component", "ws").Msg("invalid token during init")
		writeDirect(conn, domain.ServerMessage{Type: domain.EventError, Message: "Invalid token"})
		return "", false
	}
	return domain.ToPlayerID(claims.UserID), true
}

// writeDirect is used only before the client's writer goroutine exists
func writeDirect(conn *websocket.Conn, message domain.ServerMessage) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteJSON(message)
}

func (h *Handler) processMessage(ctx context.Context, client *Client, msg domain.ClientMessage) {
	switch msg.Type {
	case "joinSession":
		code := domain.NormalizeCode(msg.Code)
		if code == "" {
			h.sendError(client, "", domain.ErrJoinCodeRequired.Message)
			return
		}
		exists, err := h.Sessions.Exists(ctx, code)
		if err != nil {
			log.Error().Err(err).Str("component", "ws").Str("code", code).Msg("session lookup failed")
			h.sendError(client, code, "Internal server error")
			return
		}
		if !exists {
			h.sendError(client, code, domain.ErrSessionNotFound.Message)
			return
		}
		h.Hub.Join(client, code)
		h.Hub.Send(client, domain.ServerMessage{Type: domain.EventSubscribed, Code: code})

	case "leaveSession":
		code := domain.NormalizeCode(msg.Code)
		h.Hub.Leave(client, code)
		h.Hub.Send(client, domain.ServerMessage{Type: domain.EventUnsubscribed, Code: code})

	default:
		h.sendError(client, "", "Unknown message type")
	}
}

func (h *Handler) sendError(client *Client, code, message string) {
	h.Hub.Send(client, domain.ServerMessage{Type: domain.EventError, Code: code, Message: message})
}
