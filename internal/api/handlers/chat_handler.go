package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sales-agent/backend/internal/dialogue"
	"github.com/sales-agent/backend/internal/kg/builder"
	"github.com/sales-agent/backend/internal/kg/service"
	"github.com/sales-agent/backend/internal/metrics"
	"github.com/sales-agent/backend/pkg/logger"
)

type ChatHandler struct {
	composer *dialogue.Composer
	svc      *service.Service
}

func NewChatHandler(composer *dialogue.Composer, svc *service.Service) *ChatHandler {
	return &ChatHandler{composer: composer, svc: svc}
}

// Chat answers one conversational turn and records both sides of it in the
// session transcript so it can be mined later.
func (h *ChatHandler) Chat(c *fiber.Ctx) error {
	var req struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message is required",
		})
	}

	if req.SessionID != "" {
		if err := h.svc.AppendSessionMessage(req.SessionID, builder.RoleCustomer, message); err != nil {
			logger.Warn("Failed to record customer turn", zap.Error(err))
		}
	}

	reply, err := h.composer.Respond(c.Context(), message)
	if err != nil {
		logger.Error("Failed to compose reply", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compose reply",
		})
	}

	if req.SessionID != "" {
		if err := h.svc.AppendSessionMessage(req.SessionID, builder.RoleAgent, reply.Reply); err != nil {
			logger.Warn("Failed to record agent turn", zap.Error(err))
		}
	}

	metrics.ChatRepliesTotal.WithLabelValues(reply.Action).Inc()

	return c.JSON(reply)
}
