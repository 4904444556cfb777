package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	SQLite  SQLiteConfig
	Redis   RedisConfig
	Neo4j   Neo4jConfig
	Vector  VectorConfig
	LLM     LLMConfig
	Crawler CrawlerConfig
	Graph   GraphConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLSec   int
}

type Neo4jConfig struct {
	Enabled  bool
	URI      string
	Username string
	Password string
	Database string
}

type VectorConfig struct {
	Enabled        bool
	Endpoint       string
	CollectionName string
	VectorDim      int
	TopK           int
}

type LLMConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	TTSModel       string
	TTSVoice       string
	SpeechModel    string
	Temperature    float32
	MaxTokens      int
	TimeoutSec     int
}

type CrawlerConfig struct {
	MaxPages      int
	MaxDepth      int
	TimeoutSec    int
	UserAgent     string
	MaxCorpusSize int
}

type GraphConfig struct {
	DefaultIntentID string
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/sales-agent")

	viper.SetEnvPrefix("SALES_AGENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("sqlite.path", "./data/salesgraph.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlSec", 300)

	viper.SetDefault("neo4j.enabled", false)
	viper.SetDefault("neo4j.uri", "bolt://localhost:7687")
	viper.SetDefault("neo4j.username", "neo4j")
	viper.SetDefault("neo4j.password", "password")
	viper.SetDefault("neo4j.database", "neo4j")

	viper.SetDefault("vector.enabled", false)
	viper.SetDefault("vector.endpoint", "localhost:19530")
	viper.SetDefault("vector.collectionName", "question_embeddings")
	viper.SetDefault("vector.vectorDim", 1536)
	viper.SetDefault("vector.topK", 10)

	viper.SetDefault("llm.model", "gpt-4.1-mini")
	viper.SetDefault("llm.embeddingModel", "text-embedding-3-small")
	viper.SetDefault("llm.ttsModel", "gpt-4o-mini-tts")
	viper.SetDefault("llm.ttsVoice", "alloy")
	viper.SetDefault("llm.speechModel", "whisper-1")
	viper.SetDefault("llm.temperature", 0.3)
	viper.SetDefault("llm.maxTokens", 2048)
	viper.SetDefault("llm.timeoutSec", 60)

	viper.SetDefault("crawler.maxPages", 100)
	viper.SetDefault("crawler.maxDepth", 5)
	viper.SetDefault("crawler.timeoutSec", 10)
	viper.SetDefault("crawler.userAgent", "sales-agent-crawler/1.0")
	viper.SetDefault("crawler.maxCorpusSize", 12000)

	viper.SetDefault("graph.defaultIntentId", "sales-agent")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
