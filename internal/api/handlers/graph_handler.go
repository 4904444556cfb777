package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sales-agent/backend/internal/graph"
	"github.com/sales-agent/backend/internal/kg/service"
	"github.com/sales-agent/backend/pkg/logger"
)

type GraphHandler struct {
	svc *service.Service
}

func NewGraphHandler(svc *service.Service) *GraphHandler {
	return &GraphHandler{svc: svc}
}

func (h *GraphHandler) GetGraph(c *fiber.Ctx) error {
	return c.JSON(h.svc.Snapshot())
}

func (h *GraphHandler) ResetGraph(c *fiber.Ctx) error {
	if err := h.svc.Reset(c.Context()); err != nil {
		logger.Error("Failed to reset graph", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to reset graph",
		})
	}

	snap := h.svc.Snapshot()
	return c.JSON(fiber.Map{
		"status":     "reset",
		"node_count": len(snap.Nodes),
		"edge_count": len(snap.Edges),
	})
}

func (h *GraphHandler) ApplyFeedback(c *fiber.Ctx) error {
	var req struct {
		EdgeID string `json:"edge_id"`
		Value  int    `json:"value"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	edge, err := h.svc.ApplyFeedback(c.Context(), req.EdgeID, req.Value)
	if err != nil {
		return graphError(c, err, "Failed to apply feedback")
	}

	return c.JSON(fiber.Map{
		"edge_id":    edge.ID,
		"confidence": edge.Confidence,
		"feedback":   edge.Metadata["feedback"],
	})
}

func (h *GraphHandler) GetFeedbackLog(c *fiber.Ctx) error {
	edgeID := c.Params("edgeID")

	records, err := h.svc.FeedbackLog(edgeID)
	if err != nil {
		logger.Error("Failed to read feedback log", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read feedback log",
		})
	}

	return c.JSON(fiber.Map{"edge_id": edgeID, "records": records})
}

func (h *GraphHandler) UpdateAnswer(c *fiber.Ctx) error {
	var req struct {
		EdgeID  string `json:"edge_id"`
		NewText string `json:"new_text"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if _, err := h.svc.UpdateAnswer(c.Context(), req.EdgeID, req.NewText); err != nil {
		return graphError(c, err, "Failed to update answer")
	}

	return c.JSON(fiber.Map{
		"status":  "updated",
		"edge_id": req.EdgeID,
	})
}

func (h *GraphHandler) GetTasks(c *fiber.Ctx) error {
	tasks := h.svc.ConfirmationTasks()
	return c.JSON(fiber.Map{"tasks": tasks})
}

func (h *GraphHandler) RepairTopicLinks(c *fiber.Ctx) error {
	repaired, err := h.svc.RepairTopicLinks(c.Context())
	if err != nil {
		logger.Error("Failed to repair topic links", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to repair topic links",
		})
	}

	return c.JSON(fiber.Map{"repaired": repaired})
}

func graphError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, graph.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Edge not found",
		})
	case errors.Is(err, graph.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	default:
		logger.Error(fallback, zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fallback,
		})
	}
}
