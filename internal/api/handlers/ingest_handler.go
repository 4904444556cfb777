package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sales-agent/backend/internal/crawl"
	"github.com/sales-agent/backend/internal/kg/service"
	"github.com/sales-agent/backend/internal/llm"
	"github.com/sales-agent/backend/internal/metrics"
	"github.com/sales-agent/backend/pkg/logger"
)

type IngestHandler struct {
	crawler *crawl.Crawler
	llm     *llm.Client
	svc     *service.Service
}

func NewIngestHandler(crawler *crawl.Crawler, llmClient *llm.Client, svc *service.Service) *IngestHandler {
	return &IngestHandler{crawler: crawler, llm: llmClient, svc: svc}
}

// IngestWebsite crawls a site, extracts topics and QAs from its text, and
// rebuilds the knowledge graph from the extraction.
func (h *IngestHandler) IngestWebsite(c *fiber.Ctx) error {
	var req struct {
		URL string `json:"url"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	url := strings.TrimSpace(req.URL)
	if url == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "URL is required",
		})
	}

	logger.Info("website ingest started", zap.String("url", url))

	result, err := h.crawler.Crawl(c.Context(), url)
	if err != nil {
		logger.Error("Failed to crawl website", zap.String("url", url), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to crawl website",
		})
	}
	metrics.PagesCrawled.Add(float64(len(result.Pages)))

	extraction, err := h.llm.ExtractKnowledge(c.Context(), h.crawler.Corpus(result))
	if err != nil {
		logger.Error("Failed to extract knowledge", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to extract knowledge from website",
		})
	}

	summary, err := h.svc.BuildFromExtraction(c.Context(), extraction, url)
	if err != nil {
		logger.Error("Failed to build graph from extraction", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to build graph",
		})
	}

	snap := h.svc.Snapshot()
	return c.JSON(fiber.Map{
		"status":        "ingested",
		"website":       url,
		"pages_crawled": len(result.Pages),
		"topic_count":   summary.TopicCount,
		"qa_count":      summary.QACount,
		"node_count":    len(snap.Nodes),
		"edge_count":    len(snap.Edges),
	})
}
