package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sales-agent/backend/internal/kg/builder"
	"github.com/sales-agent/backend/internal/kg/service"
	"github.com/sales-agent/backend/pkg/logger"
)

type SessionHandler struct {
	svc *service.Service
}

func NewSessionHandler(svc *service.Service) *SessionHandler {
	return &SessionHandler{svc: svc}
}

func (h *SessionHandler) ListSessions(c *fiber.Ctx) error {
	sessions, err := h.svc.Sessions()
	if err != nil {
		logger.Error("Failed to list sessions", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list sessions",
		})
	}
	return c.JSON(fiber.Map{"sessions": sessions})
}

func (h *SessionHandler) AppendMessage(c *fiber.Ctx) error {
	sessionID := c.Params("sessionID")

	var req struct {
		Role string `json:"role"`
		Text string `json:"text"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role != builder.RoleCustomer && role != builder.RoleAgent && role != "user" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Role must be customer, user, or agent",
		})
	}
	if strings.TrimSpace(req.Text) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Text is required",
		})
	}

	if err := h.svc.AppendSessionMessage(sessionID, role, req.Text); err != nil {
		logger.Error("Failed to append message", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to append message",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":     "recorded",
		"session_id": sessionID,
	})
}

func (h *SessionHandler) GetMessages(c *fiber.Ctx) error {
	sessionID := c.Params("sessionID")

	messages, err := h.svc.SessionMessages(sessionID)
	if err != nil {
		logger.Error("Failed to read session messages", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read session messages",
		})
	}

	return c.JSON(fiber.Map{
		"session_id": sessionID,
		"messages":   messages,
	})
}

// BuildGraph mines the session transcript into the knowledge graph.
func (h *SessionHandler) BuildGraph(c *fiber.Ctx) error {
	sessionID := c.Params("sessionID")

	summary, err := h.svc.BuildFromSession(c.Context(), sessionID)
	if err != nil {
		logger.Error("Failed to build graph from session",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "Failed to build graph from session",
		})
	}

	snap := h.svc.Snapshot()
	return c.JSON(fiber.Map{
		"status":      "built",
		"session_id":  sessionID,
		"topic_count": summary.TopicCount,
		"qa_count":    summary.QACount,
		"node_count":  len(snap.Nodes),
		"edge_count":  len(snap.Edges),
	})
}
