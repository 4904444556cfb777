package handlers

import (
	"encoding/base64"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sales-agent/backend/internal/kg/service"
	"github.com/sales-agent/backend/internal/llm"
	"github.com/sales-agent/backend/pkg/logger"
)

type QAHandler struct {
	svc *service.Service
	llm *llm.Client
}

func NewQAHandler(svc *service.Service, llmClient *llm.Client) *QAHandler {
	return &QAHandler{svc: svc, llm: llmClient}
}

func (h *QAHandler) Ask(c *fiber.Ctx) error {
	var req struct {
		Question string `json:"question"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resolution, err := h.svc.Ask(c.Context(), strings.TrimSpace(req.Question))
	if err != nil {
		logger.Error("Failed to answer question", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to answer question",
		})
	}

	return c.JSON(resolution)
}

// AskTTS answers a question and additionally returns the spoken answer as
// base64 MP3. Synthesis failure degrades to a text-only response.
func (h *QAHandler) AskTTS(c *fiber.Ctx) error {
	var req struct {
		Question string `json:"question"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resolution, err := h.svc.Ask(c.Context(), strings.TrimSpace(req.Question))
	if err != nil {
		logger.Error("Failed to answer question", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to answer question",
		})
	}

	response := fiber.Map{
		"answer":       resolution.Answer,
		"audio_base64": nil,
		"actions":      resolution.Actions,
	}
	if resolution.Reason != "" {
		response["reason"] = resolution.Reason
	}

	if resolution.Answer != nil && *resolution.Answer != "" {
		audio, err := h.llm.Synthesize(c.Context(), *resolution.Answer)
		if err != nil {
			logger.Warn("Speech synthesis failed", zap.Error(err))
		} else {
			response["audio_base64"] = base64.StdEncoding.EncodeToString(audio)
		}
	}

	return c.JSON(response)
}

// VoiceQA transcribes uploaded audio, answers from the graph, and speaks the
// answer back.
func (h *QAHandler) VoiceQA(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Audio file is required",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to open uploaded file",
		})
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to read uploaded file",
		})
	}

	transcript, err := h.llm.Transcribe(c.Context(), fileHeader.Filename, audio)
	if err != nil {
		logger.Error("Transcription failed", zap.Error(err))
		transcript = ""
	}

	if transcript == "" {
		return c.JSON(fiber.Map{
			"transcript":   "",
			"answer":       nil,
			"audio_base64": nil,
			"actions":      []any{},
			"reason":       "Unable to transcribe audio",
		})
	}

	resolution, err := h.svc.Ask(c.Context(), transcript)
	if err != nil {
		logger.Error("Failed to answer question", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to answer question",
		})
	}

	response := fiber.Map{
		"transcript":   transcript,
		"answer":       resolution.Answer,
		"audio_base64": nil,
		"actions":      resolution.Actions,
	}
	if resolution.Reason != "" {
		response["reason"] = resolution.Reason
	}

	if resolution.Answer != nil && *resolution.Answer != "" {
		speech, err := h.llm.Synthesize(c.Context(), *resolution.Answer)
		if err != nil {
			logger.Warn("Speech synthesis failed", zap.Error(err))
		} else {
			response["audio_base64"] = base64.StdEncoding.EncodeToString(speech)
		}
	}

	return c.JSON(response)
}
