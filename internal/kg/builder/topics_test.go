package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferTopic(t *testing.T) {
	cases := []struct {
		text  string
		label string
		ok    bool
	}{
		{"Do you offer same-day delivery?", "Delivery & shipping", true},
		{"Do you deliver?", "Delivery & shipping", true},
		{"How long does shipping take?", "Delivery & shipping", true},
		{"What does a bouquet cost?", "Pricing & discounts", true},
		{"Any discount for bulk orders?", "Pricing & discounts", true},
		{"Can I return a wilted arrangement?", "Refunds & warranty", true},
		{"Is there a warranty on planters?", "Refunds & warranty", true},
		{"Do you make bespoke arrangements?", "Custom orders", true},
		{"What are your opening hours?", "", false},
		{"", "", false},
	}

	for _, tc := range cases {
		label, ok := InferTopic(tc.text)
		assert.Equal(t, tc.ok, ok, tc.text)
		assert.Equal(t, tc.label, label, tc.text)
	}
}

func TestInferTopicOrderMatters(t *testing.T) {
	// "shipping cost" hits both the delivery and pricing rules; the earlier
	// rule must win.
	label, ok := InferTopic("What does shipping cost?")
	assert.True(t, ok)
	assert.Equal(t, "Delivery & shipping", label)
}

func TestInferTopicCaseInsensitive(t *testing.T) {
	label, ok := InferTopic("REFUND policy?")
	assert.True(t, ok)
	assert.Equal(t, "Refunds & warranty", label)
}
