package graph

// NodeKind classifies a vertex in the sales knowledge graph.
type NodeKind string

const (
	KindIntent   NodeKind = "intent"
	KindTopic    NodeKind = "topic"
	KindQuestion NodeKind = "question"
	KindAnswer   NodeKind = "answer"
	KindAction   NodeKind = "action"
)

// Edge types that QA resolution depends on. The type field is an open string;
// these three carry the topic -> question -> answer -> action path.
const (
	EdgeDescribesContext = "describes_context"
	EdgeAnswers          = "answers"
	EdgeNextStep         = "next_step"
)

// labelLimit bounds the display label derived from node text.
const labelLimit = 60

// Stats holds per-node feedback counters. They are zero-initialized at
// creation and reserved for future scoring; nothing in the core reads them.
type Stats struct {
	Pos   float64 `json:"pos"`
	Neg   float64 `json:"neg"`
	Views float64 `json:"views"`
}

type Node struct {
	ID       string         `json:"id"`
	Kind     NodeKind       `json:"type"`
	Label    string         `json:"label"`
	Text     string         `json:"text"`
	IntentID string         `json:"intent_id,omitempty"`
	Metadata map[string]any `json:"metadata"`
	Stats    Stats          `json:"stats"`
}

type Edge struct {
	ID         string         `json:"id"`
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Type       string         `json:"type"`
	Weight     float64        `json:"weight"`
	Confidence float64        `json:"confidence"`
	Metadata   map[string]any `json:"metadata"`
}

// truncateLabel derives a node label from full text.
func truncateLabel(text string) string {
	runes := []rune(text)
	if len(runes) <= labelLimit {
		return text
	}
	return string(runes[:labelLimit])
}
