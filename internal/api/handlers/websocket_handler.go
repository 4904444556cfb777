package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/sales-agent/backend/internal/dialogue"
	"github.com/sales-agent/backend/internal/kg/builder"
	"github.com/sales-agent/backend/internal/kg/service"
	"github.com/sales-agent/backend/internal/metrics"
	"github.com/sales-agent/backend/pkg/logger"
)

type WebSocketHandler struct {
	composer *dialogue.Composer
	svc      *service.Service
}

func NewWebSocketHandler(composer *dialogue.Composer, svc *service.Service) *WebSocketHandler {
	return &WebSocketHandler{composer: composer, svc: svc}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type      string `json:"type"`
			SessionID string `json:"session_id"`
			Message   string `json:"message"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.Type != "chat" || strings.TrimSpace(msg.Message) == "" {
			continue
		}

		if err := h.respond(c, msg.SessionID, strings.TrimSpace(msg.Message)); err != nil {
			logger.Error("Failed to answer over WebSocket", zap.Error(err))
			h.sendError(c, "Failed to compose reply")
		}
	}
}

func (h *WebSocketHandler) respond(c *websocket.Conn, sessionID, message string) error {
	ctx := context.Background()

	if sessionID != "" {
		if err := h.svc.AppendSessionMessage(sessionID, builder.RoleCustomer, message); err != nil {
			logger.Warn("Failed to record customer turn", zap.Error(err))
		}
	}

	reply, err := h.composer.Respond(ctx, message)
	if err != nil {
		return err
	}

	if sessionID != "" {
		if err := h.svc.AppendSessionMessage(sessionID, builder.RoleAgent, reply.Reply); err != nil {
			logger.Warn("Failed to record agent turn", zap.Error(err))
		}
	}

	// Replies stream word by word so the UI can render them as they arrive.
	words := strings.Fields(reply.Reply)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 {
			chunk += " "
		}
		if err := c.WriteJSON(map[string]string{"type": "chunk", "content": chunk}); err != nil {
			return err
		}
	}

	metrics.ChatRepliesTotal.WithLabelValues(reply.Action).Inc()

	return c.WriteJSON(map[string]string{"type": "done", "action": reply.Action})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, message string) {
	if err := c.WriteJSON(map[string]string{"type": "error", "content": message}); err != nil {
		logger.Debug("Failed to send WebSocket error", zap.Error(err))
	}
}
