package dialogue

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sales-agent/backend/internal/llm"
	"github.com/sales-agent/backend/internal/query"
)

type stubAnswerer struct {
	resolution *query.Resolution
	err        error
}

func (s *stubAnswerer) Ask(context.Context, string) (*query.Resolution, error) {
	return s.resolution, s.err
}

type stubModel struct {
	result  *llm.ComposeResult
	err     error
	lastReq llm.ComposeRequest
}

func (s *stubModel) ComposeReply(_ context.Context, req llm.ComposeRequest) (*llm.ComposeResult, error) {
	s.lastReq = req
	return s.result, s.err
}

func answered(text string, labels ...string) *query.Resolution {
	actions := make([]query.Action, 0, len(labels))
	for _, l := range labels {
		actions = append(actions, query.Action{ID: "a", Label: l})
	}
	return &query.Resolution{Answer: &text, Confidence: 0.7, Actions: actions}
}

func TestRespondPassesGraphFacts(t *testing.T) {
	model := &stubModel{result: &llm.ComposeResult{Reply: "We ship nationwide, happy to help!", Action: ActionNone}}
	c := NewComposer(&stubAnswerer{resolution: answered("Yes, we ship nationwide", "Take order")}, model)

	reply, err := c.Respond(context.Background(), "do you ship?")

	require.NoError(t, err)
	assert.Equal(t, "We ship nationwide, happy to help!", reply.Reply)
	assert.Equal(t, ActionNone, reply.Action)
	assert.Equal(t, "Yes, we ship nationwide", model.lastReq.GraphAnswer)
	assert.Equal(t, []string{"Take order"}, model.lastReq.ActionLabels)
}

func TestRespondScrubsRouterMiss(t *testing.T) {
	model := &stubModel{result: &llm.ComposeResult{Reply: "Happy to help anyway.", Action: ActionNone}}
	c := NewComposer(&stubAnswerer{resolution: &query.Resolution{Reason: query.ReasonRouterNoMatch}}, model)

	_, err := c.Respond(context.Background(), "something unknown")

	require.NoError(t, err)
	assert.Empty(t, model.lastReq.Reason, "routing misses never reach the prompt")
}

func TestRespondDetectsOrderIntent(t *testing.T) {
	model := &stubModel{result: &llm.ComposeResult{Reply: "Of course! What occasion is it for? When do you need them?", Action: ActionTakeOrder}}
	c := NewComposer(&stubAnswerer{resolution: &query.Resolution{}}, model)

	reply, err := c.Respond(context.Background(), "I would like to place an order please")

	require.NoError(t, err)
	assert.True(t, model.lastReq.OrderIntent)
	assert.Equal(t, ActionTakeOrder, reply.Action)
}

func TestRespondModelFailureFallsBackToGraphAnswer(t *testing.T) {
	model := &stubModel{err: errors.New("rate limited")}
	c := NewComposer(&stubAnswerer{resolution: answered("Yes, we ship nationwide")}, model)

	reply, err := c.Respond(context.Background(), "do you ship?")

	require.NoError(t, err)
	assert.Equal(t, "Yes, we ship nationwide", reply.Reply)
	assert.Equal(t, ActionNone, reply.Action)
}

func TestRespondModelFailureWithOrderIntent(t *testing.T) {
	model := &stubModel{err: errors.New("rate limited")}
	c := NewComposer(&stubAnswerer{resolution: &query.Resolution{}}, model)

	reply, err := c.Respond(context.Background(), "can i place an order")

	require.NoError(t, err)
	assert.Equal(t, ActionTakeOrder, reply.Action)
	assert.Contains(t, reply.Reply, "To get this started", "generic fallback gets the order follow-up")
}

func TestRespondInvalidActionNormalized(t *testing.T) {
	model := &stubModel{result: &llm.ComposeResult{Reply: "Sure!", Action: "SHIP_IT"}}
	c := NewComposer(&stubAnswerer{resolution: &query.Resolution{}}, model)

	reply, err := c.Respond(context.Background(), "hello there")

	require.NoError(t, err)
	assert.Equal(t, ActionNone, reply.Action)
}

func TestRespondAnswererErrorStillReplies(t *testing.T) {
	model := &stubModel{result: &llm.ComposeResult{Reply: "Let me check on that.", Action: ActionNone}}
	c := NewComposer(&stubAnswerer{err: errors.New("store offline")}, model)

	reply, err := c.Respond(context.Background(), "do you ship?")

	require.NoError(t, err)
	assert.Equal(t, "Let me check on that.", reply.Reply)
	assert.Empty(t, model.lastReq.GraphAnswer)
}

func TestEnsureOrderFollowUp(t *testing.T) {
	appended := ensureOrderFollowUp("I can take your order")
	assert.True(t, strings.HasPrefix(appended, "I can take your order."))
	assert.Contains(t, appended, "what occasion")

	complete := "Wonderful! What occasion is it for? When would you like pickup?"
	assert.Equal(t, complete, ensureOrderFollowUp(complete))
}
