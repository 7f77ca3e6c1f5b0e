package bootstrap

import (
	"context"
	"log"
	"time"

	"live-insights-be/internal/config"
	"live-insights-be/internal/controller"
	"live-insights-be/internal/handler"
	"live-insights-be/internal/pkg/logger"
	"live-insights-be/internal/repository/contract"
	"live-insights-be/internal/repository/implementation"
	"live-insights-be/internal/repository/memory"
	"live-insights-be/internal/service"
	"live-insights-be/internal/websocket"
	"live-insights-be/pkg/detector"
	"live-insights-be/pkg/embedding"
	"live-insights-be/pkg/llm/factory"
	"live-insights-be/pkg/resolver"

	pktNats "live-insights-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const resolveTopic = "insight_resolve"

type Container struct {
	// Controllers
	SessionController    controller.ISessionController
	TranscriptController controller.ITranscriptController
	InsightController    controller.IInsightController
	KnowledgeController  controller.IKnowledgeController

	// Background Services (Exposed for main.go to run)
	ResolutionWorker service.IResolutionWorker

	// WebSocket upgrade endpoint
	StreamHandler *handler.StreamHandler

	// WebSockets
	WebSocketHub *websocket.Hub

	// Exposed for main.go shutdown
	NatsPublisher *pktNats.Publisher
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. AI Providers
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Ai.GoogleGemini)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.GoogleGemini,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 3.5 Infrastructure
	// NATS
	var eventPublisher service.EventPublisher
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	} else {
		eventPublisher = natsPub
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/realtime.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 4. Repositories
	bufferWindow := time.Duration(cfg.Insights.BufferWindowSeconds) * time.Second
	bufferTTL := time.Duration(cfg.Insights.BufferTTLMinutes) * time.Minute

	var bufferRepo contract.ContextBufferRepository
	if cfg.Insights.BufferBackend == "memory" {
		bufferRepo = memory.NewContextBufferRepository(bufferWindow, cfg.Insights.BufferMaxSentences, bufferTTL)
		log.Printf("[INFO] Using Context Buffer: MEMORY")
	} else {
		bufferRepo = implementation.NewContextBufferRepository(rdb, bufferWindow, cfg.Insights.BufferMaxSentences, bufferTTL)
		log.Printf("[INFO] Using Context Buffer: REDIS")
	}

	insightRepo := implementation.NewInsightRepository(db)
	knowledgeRepo := implementation.NewKnowledgeRepository(db)
	sessionRepo := memory.NewSessionStateRepository()

	// 5. Domain Engines
	pipelineLog := log.Default()
	questionDetector := detector.NewDetector(llmProvider, pipelineLog)
	synthesizer := resolver.NewSynthesizer(llmProvider, pipelineLog)

	// 6. Services
	bufferService := service.NewBufferService(bufferRepo, sysLogger)
	searchService := service.NewSearchService(knowledgeRepo, embeddingProvider, sysLogger)

	answerResolver := resolver.NewResolver(
		searchService,
		bufferService, // live conversation tier reads the rolling buffer
		synthesizer,
		resolver.Config{
			RelevanceFloor:      cfg.Insights.RelevanceFloor,
			AcceptanceThreshold: cfg.Insights.AcceptanceThreshold,
			TopK:                cfg.Insights.SearchTopK,
			TierTimeout:         time.Duration(cfg.Insights.TierTimeoutSeconds) * time.Second,
		},
		pipelineLog,
	)

	insightService := service.NewInsightService(
		insightRepo,
		answerResolver,
		eventPublisher,
		sysLogger,
		time.Duration(cfg.Insights.ResolutionTimeoutSeconds)*time.Second,
	)

	sessionService := service.NewSessionService(
		sessionRepo,
		bufferService,
		eventPublisher,
		wsHub,
		time.Duration(cfg.Insights.SessionGraceMinutes)*time.Minute,
		sysLogger,
	)

	transcriptService := service.NewTranscriptService(
		bufferService,
		insightService,
		questionDetector,
		sessionRepo,
		pubSub,
		resolveTopic,
		wsHub,
		sysLogger,
	)

	knowledgeService := service.NewKnowledgeService(knowledgeRepo, embeddingProvider, sysLogger)

	resolutionWorker := service.NewResolutionWorker(
		pubSub,
		resolveTopic,
		insightService,
		sessionRepo,
		wsHub,
	)

	// 7. Controllers
	return &Container{
		SessionController:    controller.NewSessionController(sessionService, transcriptService),
		TranscriptController: controller.NewTranscriptController(transcriptService),
		InsightController:    controller.NewInsightController(insightService),
		KnowledgeController:  controller.NewKnowledgeController(knowledgeService),
		ResolutionWorker:     resolutionWorker,
		StreamHandler:        handler.NewStreamHandler(sessionService, wsHub, wsLogger),
		WebSocketHub:         wsHub,
		NatsPublisher:        natsPub,
	}
}
