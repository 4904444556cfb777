package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/sales-agent/backend/internal/api/handlers"
	"github.com/sales-agent/backend/internal/cache/redis"
	"github.com/sales-agent/backend/internal/crawl"
	"github.com/sales-agent/backend/internal/dialogue"
	"github.com/sales-agent/backend/internal/kg/builder"
	"github.com/sales-agent/backend/internal/kg/neo4j"
	"github.com/sales-agent/backend/internal/kg/service"
	"github.com/sales-agent/backend/internal/llm"
	"github.com/sales-agent/backend/internal/metrics"
	"github.com/sales-agent/backend/internal/middleware/ratelimit"
	"github.com/sales-agent/backend/internal/middleware/security"
	"github.com/sales-agent/backend/internal/middleware/validation"
	"github.com/sales-agent/backend/internal/router"
	"github.com/sales-agent/backend/internal/storage/sqlite"
	"github.com/sales-agent/backend/internal/vector/milvus"
	"github.com/sales-agent/backend/pkg/config"
	appLogger "github.com/sales-agent/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Sales Agent API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var cacheClient *redis.Client
	if cfg.Redis.Enabled {
		cacheClient, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer cacheClient.Close()
	}

	var mirrorClient *neo4j.Client
	if cfg.Neo4j.Enabled {
		mirrorClient, err = neo4j.NewClient(
			cfg.Neo4j.URI,
			cfg.Neo4j.Username,
			cfg.Neo4j.Password,
			cfg.Neo4j.Database,
		)
		if err != nil {
			appLogger.Fatal("Failed to create Neo4j client", zap.Error(err))
		}
		defer mirrorClient.Close(context.Background())
	}

	llmClient := llm.NewClient(cfg.LLM)

	var vectorIndex *milvus.Index
	if cfg.Vector.Enabled {
		var embedder milvus.Embedder = llmClient
		if cacheClient != nil {
			embedder = milvus.NewCachedEmbedder(llmClient, cacheClient,
				time.Duration(cfg.Redis.TTLSec)*time.Second)
		}
		vectorIndex, err = milvus.NewIndex(
			cfg.Vector.Endpoint,
			cfg.Vector.CollectionName,
			cfg.Vector.VectorDim,
			embedder,
		)
		if err != nil {
			appLogger.Fatal("Failed to create Milvus index", zap.Error(err))
		}
		defer vectorIndex.Close()

		if err := vectorIndex.EnsureCollection(context.Background()); err != nil {
			appLogger.Fatal("Failed to create collection", zap.Error(err))
		}
	}

	kgBuilder := builder.NewBuilder(cfg.Graph.DefaultIntentID)

	var questionRouter router.Router
	if cfg.LLM.APIKey != "" {
		llmRouter := router.NewLLMRouter(llmClient)
		if vectorIndex != nil {
			llmRouter.WithIndex(vectorIndex, cfg.Vector.TopK)
		}
		questionRouter = llmRouter
	} else {
		appLogger.Warn("No LLM API key configured, using lexical routing")
		questionRouter = router.NewLexicalRouter()
	}

	svc := service.New(service.Options{
		Builder:  kgBuilder,
		Router:   questionRouter,
		DB:       sqliteClient,
		Cache:    cacheClient,
		CacheTTL: time.Duration(cfg.Redis.TTLSec) * time.Second,
		Mirror:   mirrorClient,
		Vector:   vectorIndex,
	})
	if err := svc.Load(); err != nil {
		appLogger.Fatal("Failed to load graph", zap.Error(err))
	}

	crawler := crawl.New(cfg.Crawler)
	composer := dialogue.NewComposer(svc, llmClient)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Session-ID",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Logging.Level == "debug",
	}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: 120,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	app.Use(validation.Middleware(validation.Config{
		Logger: appLogger.GetLogger(),
	}))

	graphHandler := handlers.NewGraphHandler(svc)
	sessionHandler := handlers.NewSessionHandler(svc)
	qaHandler := handlers.NewQAHandler(svc, llmClient)
	chatHandler := handlers.NewChatHandler(composer, svc)
	wsHandler := handlers.NewWebSocketHandler(composer, svc)
	ingestHandler := handlers.NewIngestHandler(crawler, llmClient, svc)

	api := app.Group("/api/v1")

	api.Get("/graph", graphHandler.GetGraph)
	api.Post("/graph/reset", graphHandler.ResetGraph)
	api.Post("/graph/feedback", graphHandler.ApplyFeedback)
	api.Get("/graph/feedback/:edgeID", graphHandler.GetFeedbackLog)
	api.Post("/graph/answer", graphHandler.UpdateAnswer)
	api.Get("/graph/tasks", graphHandler.GetTasks)
	api.Post("/graph/repair", graphHandler.RepairTopicLinks)

	api.Get("/sessions", sessionHandler.ListSessions)
	api.Post("/sessions/:sessionID/messages", sessionHandler.AppendMessage)
	api.Get("/sessions/:sessionID/messages", sessionHandler.GetMessages)
	api.Post("/sessions/:sessionID/build", sessionHandler.BuildGraph)

	api.Post("/qa", qaHandler.Ask)
	api.Post("/qa/tts", qaHandler.AskTTS)
	api.Post("/voice/qa", qaHandler.VoiceQA)

	api.Post("/chat", chatHandler.Chat)

	api.Post("/website/ingest", ingestHandler.IngestWebsite)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(wsHandler.HandleConnection))

	app.Get("/metrics", metrics.MetricsHandler())

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		if cacheClient != nil {
			if err := cacheClient.HealthCheck(c.Context()); err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"status": "degraded",
					"cache":  err.Error(),
				})
			}
		}
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
