package builder

import "strings"

// topicRule maps keyword substrings to a topic label. Rules are evaluated
// top to bottom and the first hit wins, so order is load-bearing.
type topicRule struct {
	keywords []string
	label    string
}

var topicRules = []topicRule{
	{keywords: []string{"deliver", "ship"}, label: "Delivery & shipping"},
	{keywords: []string{"price", "cost", "discount"}, label: "Pricing & discounts"},
	{keywords: []string{"refund", "return", "warranty"}, label: "Refunds & warranty"},
	{keywords: []string{"custom", "bespoke"}, label: "Custom orders"},
}

// GeneralOfferingLabel is the transcript-mode topic for questions no rule
// matches. FallbackTopicLabel is the shared low-confidence topic used in
// extraction mode and by repair.
const (
	GeneralOfferingLabel = "General offering"
	FallbackTopicLabel   = "General"
)

// InferTopic classifies text against the rules table. ok is false when no
// rule matched; the caller decides which fallback applies.
func InferTopic(text string) (label string, ok bool) {
	lower := strings.ToLower(text)
	for _, rule := range topicRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.label, true
			}
		}
	}
	return "", false
}
