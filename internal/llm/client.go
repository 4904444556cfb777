package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/sales-agent/backend/internal/kg/builder"
	"github.com/sales-agent/backend/pkg/circuitbreaker"
	"github.com/sales-agent/backend/pkg/config"
	"github.com/sales-agent/backend/pkg/logger"
	"github.com/sales-agent/backend/pkg/retry"
)

type Client struct {
	client      *openai.Client
	model       string
	embedModel  string
	ttsModel    string
	ttsVoice    string
	speechModel string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
	JSONMode     bool
}

type CompletionResponse struct {
	Content string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func NewClient(cfg config.LLMConfig) *Client {
	client := openai.NewClient(cfg.APIKey)

	cb := circuitbreaker.New("llm", circuitbreaker.Config{
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	logger.Info("LLM client initialized",
		zap.String("model", cfg.Model),
		zap.String("embedding_model", cfg.EmbeddingModel),
	)

	return &Client{
		client:      client,
		model:       cfg.Model,
		embedModel:  cfg.EmbeddingModel,
		ttsModel:    cfg.TTSModel,
		ttsVoice:    cfg.TTSVoice,
		speechModel: cfg.SpeechModel,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     timeout,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	chatReq := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	if req.JSONMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	var result *CompletionResponse

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(ctx, chatReq)
			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("completion returned no choices")
			}

			logger.Debug("LLM completion generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			result = &CompletionResponse{
				Content: resp.Choices[0].Message.Content,
				Usage: Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				},
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var embedding []float32

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
				Input: []string{text},
				Model: openai.EmbeddingModel(c.embedModel),
			})
			if err != nil {
				return fmt.Errorf("failed to generate embedding: %w", err)
			}
			if len(resp.Data) == 0 {
				return fmt.Errorf("embedding response was empty")
			}

			embedding = make([]float32, len(resp.Data[0].Embedding))
			copy(embedding, resp.Data[0].Embedding)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return embedding, nil
}

func (c *Client) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var embeddings [][]float32

	batchSize := 100
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]

		err := c.cb.Execute(ctx, func() error {
			return retry.Do(ctx, c.retryConfig, func() error {
				resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
					Input: batch,
					Model: openai.EmbeddingModel(c.embedModel),
				})
				if err != nil {
					return fmt.Errorf("failed to generate batch embeddings: %w", err)
				}

				for _, data := range resp.Data {
					embedding := make([]float32, len(data.Embedding))
					copy(embedding, data.Embedding)
					embeddings = append(embeddings, embedding)
				}
				return nil
			})
		})
		if err != nil {
			return nil, err
		}
	}

	logger.Debug("Batch embeddings generated", zap.Int("count", len(embeddings)))

	return embeddings, nil
}

const extractSystemPrompt = `You are a sales enablement system that builds a knowledge graph for a business.

You will be given TEXT extracted from the business website: page titles and paragraphs.
From this, extract:

1) Topics with a short label (2-5 words).
2) QAs: for each, include:
   - topic_label (one of the topic labels)
   - question (realistic customer question)
   - answer (concise answer based ONLY on the text)
   - action (one of: "Take order", "Book pickup time", "Update order ledger", or "")

Return STRICTLY valid JSON with this schema:

{
  "topics": [ { "label": "Some topic" }, ... ],
  "qas": [
    {
      "topic_label": "Some topic",
      "question": "Customer question...",
      "answer": "Answer text...",
      "action": "Take order"
    }
  ]
}`

// ExtractKnowledge turns website corpus text into a structured topic/QA
// extraction. Model output that is not pure JSON is salvaged by taking the
// outermost object.
func (c *Client) ExtractKnowledge(ctx context.Context, corpus string) (*builder.Extraction, error) {
	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: extractSystemPrompt,
		UserPrompt:   fmt.Sprintf("WEBSITE TEXT:\n\n%s", corpus),
		Temperature:  0.3,
		MaxTokens:    2048,
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge extraction failed: %w", err)
	}

	var extraction builder.Extraction
	if err := unmarshalSalvaged(resp.Content, &extraction); err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}

	logger.Info("knowledge extracted",
		zap.Int("topics", len(extraction.Topics)),
		zap.Int("qas", len(extraction.QAs)),
	)

	return &extraction, nil
}

type RouteCandidate struct {
	ID       string `json:"id"`
	Question string `json:"question"`
}

const routeSystemPrompt = `You are a router for a knowledge graph of Q&A.

You will be given:
- user_question: the actual question from the user
- candidates: a list of known question nodes, each with an id and question text

You MUST choose ONE of the candidate ids that best matches the user question,
or "NONE" if none are relevant.

Return STRICTLY valid JSON:
{ "best_id": "...", "confidence": 0.0 }`

// RouteQuestion picks the candidate question node that best matches the user
// question. It returns an empty id when the model answers NONE or cannot be
// parsed; the caller decides whether the id actually exists.
func (c *Client) RouteQuestion(ctx context.Context, question string, candidates []RouteCandidate) (string, float64, error) {
	payload, err := json.Marshal(map[string]any{
		"user_question": question,
		"candidates":    candidates,
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to encode router payload: %w", err)
	}

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: routeSystemPrompt,
		UserPrompt:   string(payload),
		Temperature:  0.01,
		MaxTokens:    256,
	})
	if err != nil {
		return "", 0, fmt.Errorf("question routing failed: %w", err)
	}

	var data struct {
		BestID     string  `json:"best_id"`
		Confidence float64 `json:"confidence"`
	}
	if err := unmarshalSalvaged(resp.Content, &data); err != nil {
		logger.Warn("router response was not JSON", zap.Error(err))
		return "", 0, nil
	}

	bestID := strings.TrimSpace(data.BestID)
	if bestID == "" || strings.EqualFold(bestID, "NONE") {
		return "", 0, nil
	}
	return bestID, data.Confidence, nil
}

type ComposeRequest struct {
	Message      string
	GraphAnswer  string
	ActionLabels []string
	OrderIntent  bool
	Reason       string
}

type ComposeResult struct {
	Reply  string `json:"reply"`
	Action string `json:"action"`
}

const composeSystemPrompt = `You are Nema, a warm, thoughtful sales assistant for a flower shop.

You are given:
- The user's question.
- Facts from a memory graph (graph_answer).
- Suggested actions from the graph (graph_actions).
- A boolean flag indicating whether the user clearly wants to place an order (order_intent).

Your goals:
- Be graceful and non-abrasive.
- Use the graph facts as your primary source of truth when they exist.
- If the graph has no facts, still try to be helpful:
  - You may use general knowledge, but be honest that you are answering based on your best judgment.
  - Offer to clarify or ask followup questions instead of saying "I don't know" abruptly.
- When the user clearly wants to place an order (order_intent = true),
  or the graph suggests something like "Take order", you should gently move toward placing/confirming an order:
  - Confirm that you can help.
  - Ask at least TWO simple questions to move the order forward:
    - For example: "What occasion is it for?" and "When would you like it delivered or picked up?"
  - Keep it conversational and reassuring, not like a rigid form.

You must return JSON with:
{
  "reply": "<what you say to the user in one or two sentences>",
  "action": "<one of TAKE_ORDER | BOOK_PICKUP | NONE>"
}

Guidance:
- Use "TAKE_ORDER" when the user is clearly trying to buy/place an order, even if graph_actions is NONE.
- Use "BOOK_PICKUP" when you're guiding the user to choose a pickup time.
- Use "NONE" otherwise.

Do NOT simply restate the graph facts as a single sentence.
When order_intent is true, your reply MUST:
  - Confirm you can help
  - AND ask at least two short, concrete followup questions.
Never mention internal details like "graph answer" or "reason" explicitly.`

// ComposeReply rewrites a resolved graph answer into a conversational reply
// with an action label. The caller owns fallback behavior when the model
// fails or returns empty fields.
func (c *Client) ComposeReply(ctx context.Context, req ComposeRequest) (*ComposeResult, error) {
	actionLabels := "NONE"
	if len(req.ActionLabels) > 0 {
		actionLabels = strings.Join(req.ActionLabels, ", ")
	}

	userPrompt := fmt.Sprintf(`User question:
%s

Graph answer (may be empty):
%s

Graph actions (labels, may be NONE):
%s

order_intent flag:
%t

Graph internal reason (for you to consider, do NOT repeat literally):
%s`,
		req.Message,
		orDefault(req.GraphAnswer, "None"),
		actionLabels,
		req.OrderIntent,
		orDefault(req.Reason, "None"),
	)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: composeSystemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.4,
		JSONMode:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("reply composition failed: %w", err)
	}

	var result ComposeResult
	if err := unmarshalSalvaged(resp.Content, &result); err != nil {
		return nil, fmt.Errorf("failed to parse composed reply: %w", err)
	}

	return &result, nil
}

// Transcribe converts spoken audio to text using the speech model.
func (c *Client) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var text string

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
				Model:    c.speechModel,
				FilePath: filename,
				Reader:   bytes.NewReader(audio),
			})
			if err != nil {
				return fmt.Errorf("failed to transcribe audio: %w", err)
			}
			text = strings.TrimSpace(resp.Text)
			return nil
		})
	})
	if err != nil {
		return "", err
	}

	return text, nil
}

// Synthesize renders text as MP3 speech audio.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var audio []byte

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
				Model:          openai.SpeechModel(c.ttsModel),
				Input:          text,
				Voice:          openai.SpeechVoice(c.ttsVoice),
				ResponseFormat: openai.SpeechResponseFormatMp3,
			})
			if err != nil {
				return fmt.Errorf("failed to synthesize speech: %w", err)
			}
			defer resp.Close()

			audio, err = io.ReadAll(resp)
			if err != nil {
				return fmt.Errorf("failed to read speech audio: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return audio, nil
}

// unmarshalSalvaged parses content as JSON, falling back to the outermost
// object when the model wrapped it in prose or code fences.
func unmarshalSalvaged(content string, v any) error {
	if err := json.Unmarshal([]byte(content), v); err == nil {
		return nil
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object found in response")
	}
	return json.Unmarshal([]byte(content[start:end+1]), v)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
