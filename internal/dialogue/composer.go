// Package dialogue turns grounded graph answers into conversational replies.
package dialogue

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sales-agent/backend/internal/llm"
	"github.com/sales-agent/backend/internal/query"
	"github.com/sales-agent/backend/pkg/logger"
)

const (
	ActionTakeOrder  = "TAKE_ORDER"
	ActionBookPickup = "BOOK_PICKUP"
	ActionNone       = "NONE"
)

const fallbackReply = "Let me help you think this through based on what I know."

// orderPhrases marks explicit order intent regardless of what the graph
// suggests.
var orderPhrases = []string{
	"order flowers",
	"place an order",
	"buy flowers",
	"buy some flowers",
	"i want to order",
	"i would like to order",
	"i would like to place an order",
	"can i place an order",
}

// Answerer resolves a free-form question against the knowledge graph.
type Answerer interface {
	Ask(ctx context.Context, question string) (*query.Resolution, error)
}

type replyModel interface {
	ComposeReply(ctx context.Context, req llm.ComposeRequest) (*llm.ComposeResult, error)
}

type ChatReply struct {
	Reply  string `json:"reply"`
	Action string `json:"action"`
}

type Composer struct {
	answerer Answerer
	model    replyModel
}

func NewComposer(answerer Answerer, model replyModel) *Composer {
	return &Composer{answerer: answerer, model: model}
}

// Respond answers a chat message: graph QA first, then the LLM rewrites the
// grounded facts into a graceful reply with an action label. LLM failure
// degrades to the raw graph answer rather than an error.
func (c *Composer) Respond(ctx context.Context, message string) (*ChatReply, error) {
	resolution, err := c.answerer.Ask(ctx, message)
	if err != nil {
		logger.Warn("graph QA failed, composing without facts", zap.Error(err))
		resolution = &query.Resolution{}
	}

	baseAnswer := ""
	if resolution.Answer != nil {
		baseAnswer = *resolution.Answer
	}

	// Routing misses are an internal detail, not something to tell the user.
	reason := resolution.Reason
	if strings.Contains(reason, query.ReasonRouterNoMatch) {
		reason = ""
	}

	orderIntent := detectOrderIntent(message)

	actionLabels := make([]string, 0, len(resolution.Actions))
	for _, a := range resolution.Actions {
		actionLabels = append(actionLabels, a.Label)
	}

	reply, action := c.compose(ctx, llm.ComposeRequest{
		Message:      message,
		GraphAnswer:  baseAnswer,
		ActionLabels: actionLabels,
		OrderIntent:  orderIntent,
		Reason:       reason,
	}, baseAnswer, reason, orderIntent)

	if action == ActionTakeOrder {
		reply = ensureOrderFollowUp(reply)
	}

	return &ChatReply{Reply: reply, Action: action}, nil
}

func (c *Composer) compose(ctx context.Context, req llm.ComposeRequest, baseAnswer, reason string, orderIntent bool) (string, string) {
	result, err := c.model.ComposeReply(ctx, req)
	if err != nil {
		logger.Warn("reply composition failed, using graph answer", zap.Error(err))
		return fallbackText(baseAnswer, reason), defaultAction(orderIntent)
	}

	reply := result.Reply
	if reply == "" {
		reply = fallbackText(baseAnswer, reason)
	}

	action := result.Action
	switch action {
	case ActionTakeOrder, ActionBookPickup, ActionNone:
	default:
		action = defaultAction(orderIntent)
	}

	return reply, action
}

func detectOrderIntent(message string) bool {
	low := strings.ToLower(message)
	for _, phrase := range orderPhrases {
		if strings.Contains(low, phrase) {
			return true
		}
	}
	return false
}

func fallbackText(baseAnswer, reason string) string {
	if baseAnswer != "" {
		return baseAnswer
	}
	if reason != "" {
		return reason
	}
	return fallbackReply
}

func defaultAction(orderIntent bool) string {
	if orderIntent {
		return ActionTakeOrder
	}
	return ActionNone
}

// ensureOrderFollowUp appends standard follow-up questions when a reply that
// should be moving an order forward looks too generic to do so.
func ensureOrderFollowUp(reply string) string {
	lower := strings.ToLower(reply)
	if strings.Count(reply, "?") >= 2 && (strings.Contains(lower, "what") || strings.Contains(lower, "when")) {
		return reply
	}

	reply = strings.TrimRight(reply, " ")
	if reply != "" && !strings.HasSuffix(reply, ".") && !strings.HasSuffix(reply, "?") {
		reply += "."
	}
	return reply + " To get this started, could you tell me what occasion it's for, and when you'd like the flowers delivered or picked up?"
}
