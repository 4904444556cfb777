package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QADuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sales_graph_qa_duration_seconds",
			Help:    "QA resolution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"mode"},
	)

	QATotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sales_graph_qa_total",
			Help: "Total number of questions answered",
		},
		[]string{"status"},
	)

	QAConfidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sales_graph_qa_confidence",
			Help:    "Confidence of resolved answers",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	FeedbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sales_graph_feedback_total",
			Help: "Total feedback votes on answer edges",
		},
		[]string{"direction"},
	)

	BuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sales_graph_builds_total",
			Help: "Total graph build runs",
		},
		[]string{"source", "status"},
	)

	GraphNodesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sales_graph_nodes_total",
			Help: "Total nodes in the knowledge graph",
		},
	)

	GraphEdgesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sales_graph_edges_total",
			Help: "Total edges in the knowledge graph",
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sales_graph_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sales_graph_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sales_graph_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	PagesCrawled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sales_graph_pages_crawled_total",
			Help: "Total website pages crawled",
		},
	)

	ChatRepliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sales_graph_chat_replies_total",
			Help: "Total composed chat replies",
		},
		[]string{"action"},
	)
)

func Init() {
	prometheus.MustRegister(QADuration)
	prometheus.MustRegister(QATotal)
	prometheus.MustRegister(QAConfidence)
	prometheus.MustRegister(FeedbackTotal)
	prometheus.MustRegister(BuildsTotal)
	prometheus.MustRegister(GraphNodesTotal)
	prometheus.MustRegister(GraphEdgesTotal)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(PagesCrawled)
	prometheus.MustRegister(ChatRepliesTotal)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
