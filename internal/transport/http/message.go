package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/guess-master/backend/internal/domain"
	"github.com/iamasit07/guess-master/backend/internal/service/chat"
	"github.com/iamasit07/guess-master/backend/internal/transport/http/middleware"
)

type MessageService interface {
	Send(ctx context.Context, sessionID string, author domain.PlayerID, content, rawType string) (*chat.MessageView, error)
	List(ctx context.Context, sessionID string) ([]chat.MessageView, error)
}

type MessageHandler struct {
	Messages MessageService
}

func NewMessageHandler(messages MessageService) *MessageHandler {
	return &MessageHandler{Messages: messages}
}

type sendMessageRequest struct {
	SessionID string `json:"sessionId"`
	Content   string `json:"content"`
	Type      string `json:"type"`
}

func (h *MessageHandler) Send(c *gin.Context) {
	var req sendMessageRequest
	if !bindJSON(c, &req) {
		return
	}

	view, err := h.Messages.Send(c.Request.Context(), req.SessionID, middleware.UserID(c), req.Content, req.Type)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Message sent", "data": view})
}

func (h *MessageHandler) List(c *gin.Context) {
	msgs, err := h.Messages.List(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		respondError(c, err)
		return
	}
	if msgs == nil {
		msgs = []chat.MessageView{}
	}
	c.JSON(http.StatusOK, msgs)
}
