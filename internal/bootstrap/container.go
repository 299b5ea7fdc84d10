package bootstrap

import (
	"context"
	"fmt"
	"time"

	"studymate-be/internal/config"
	"studymate-be/internal/controller"
	"studymate-be/internal/handler"
	"studymate-be/internal/pkg/logger"
	"studymate-be/internal/repository/contract"
	"studymate-be/internal/repository/implementation"
	"studymate-be/internal/repository/memory"
	"studymate-be/internal/service"
	"studymate-be/internal/websocket"
	"studymate-be/pkg/chat"
	"studymate-be/pkg/embedding"
	"studymate-be/pkg/events"
	"studymate-be/pkg/llm/factory"
	"studymate-be/pkg/loader"
	pktNats "studymate-be/pkg/nats"
	ragmemory "studymate-be/pkg/rag/memory"
	"studymate-be/pkg/rag/retrieval"
	"studymate-be/pkg/remotestore"
	"studymate-be/pkg/studytools"
	"studymate-be/pkg/textcache"
	"studymate-be/pkg/vectorstore"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	bootModule = "BOOTSTRAP"

	expirySweepInterval = time.Hour
)

type Container struct {
	// Controllers
	StudySessionController controller.IStudySessionController
	StudyToolsController   controller.IStudyToolsController
	ChatController         controller.IChatController

	// WebSockets
	ChatWsHandler *handler.ChatWsHandler
	WebSocketHub  *websocket.Hub

	// Background Services (started by Start)
	ConsumerService     service.IConsumerService
	CascadeService      *service.CascadeDeleteService
	StudySessionService service.IStudySessionService

	VectorStore *vectorstore.Store
	Logger      logger.ILogger

	pubSub  *gochannel.GoChannel
	rdb     *redis.Client
	natsPub *pktNats.Publisher
	natsSub *pktNats.Subscriber
}

// NewContainer wires every component. db may be nil, in which case the remote vector tier and
// the study session table run in memory.
func NewContainer(db *gorm.DB, cfg *config.Config) (*Container, error) {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	c := &Container{Logger: sysLogger}

	// Providers
	embeddingProvider, err := embedding.NewProvider(embedding.ProviderConfig{
		Provider:      cfg.Ai.EmbeddingProvider,
		GeminiAPIKey:  cfg.Keys.GoogleGemini,
		JinaAPIKey:    cfg.Keys.Jina,
		OpenAIAPIKey:  cfg.Keys.OpenAI,
		OpenAIBaseURL: cfg.Keys.OpenAIURL,
		OpenAIModel:   cfg.Ai.EmbeddingModel,
		OllamaBaseURL: cfg.Ai.OllamaBaseURL,
		OllamaModel:   cfg.Ai.OllamaModel,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	sysLogger.Info(bootModule, "Embedding provider ready", map[string]interface{}{"provider": cfg.Ai.EmbeddingProvider})

	llmBaseURL := cfg.Ai.LLMBaseURL
	if llmBaseURL == "" {
		switch cfg.Ai.LLMProvider {
		case "ollama":
			llmBaseURL = cfg.Ai.OllamaBaseURL
		case "openai":
			llmBaseURL = cfg.Keys.OpenAIURL
		}
	}
	llmProvider, err := factory.NewLLMProvider(factory.Config{
		Provider: cfg.Ai.LLMProvider,
		Model:    cfg.Ai.LLMModel,
		BaseURL:  llmBaseURL,
		APIKey:   cfg.Keys.OpenAI,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM provider: %w", err)
	}
	sysLogger.Info(bootModule, "LLM provider ready", map[string]interface{}{
		"provider": cfg.Ai.LLMProvider,
		"model":    cfg.Ai.LLMModel,
	})

	// Redis
	if cfg.Vector.CacheBackend == "redis" || cfg.Chat.HistoryBackend == "redis" {
		c.rdb = connectRedis(cfg.App.RedisURL, sysLogger)
	}

	var textCache textcache.Cache = textcache.NewMemoryCache(cfg.Vector.CacheTTL)
	if cfg.Vector.CacheBackend == "redis" && c.rdb != nil {
		textCache = textcache.NewRedisCache(c.rdb)
	}

	var history ragmemory.Store = ragmemory.NewMemoryStore(cfg.Chat.MaxHistory, cfg.Chat.HistoryTTL)
	if cfg.Chat.HistoryBackend == "redis" && c.rdb != nil {
		history = ragmemory.NewRedisStore(c.rdb, cfg.Chat.MaxHistory, cfg.Chat.HistoryTTL)
	}

	// Remote tier and study session table
	var remote remotestore.Store = remotestore.NewMemoryStore()
	var sessionRepo contract.StudySessionRepository = memory.NewStudySessionRepository()
	if db != nil {
		sessionRepo = implementation.NewStudySessionRepository(db)
		if cfg.Vector.RemoteBackend == "pgvector" {
			pg := remotestore.NewPgvectorStore(db)
			if err := pg.Migrate(context.Background()); err != nil {
				return nil, fmt.Errorf("migrate pgvector store: %w", err)
			}
			remote = pg
		}
	} else {
		sysLogger.Warn(bootModule, "No database configured, study sessions and remote vectors are in memory", nil)
	}
	sources := implementation.NewSourceRegistry(sessionRepo)

	// NATS
	var eventPublisher events.Publisher = events.NopPublisher{}
	if natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL); err != nil {
		sysLogger.Warn(bootModule, "NATS publisher unavailable, lifecycle events are dropped", map[string]interface{}{"error": err})
	} else {
		c.natsPub = natsPub
		eventPublisher = natsPub
	}
	if natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger); err != nil {
		sysLogger.Warn(bootModule, "NATS subscriber unavailable, cascade delete disabled", map[string]interface{}{"error": err})
	} else {
		c.natsSub = natsSub
	}

	// Vector store
	docLoader := loader.New(loader.WithMaxDownload(int64(cfg.App.MaxDownloadBytes)))
	store, err := vectorstore.Open(vectorstore.Config{
		Dimension:       cfg.Vector.Dimension,
		IndexPath:       cfg.Vector.IndexPath,
		MapPath:         cfg.Vector.MapPath,
		CacheTTL:        cfg.Vector.CacheTTL,
		UpsertBatchSize: cfg.Vector.UpsertBatchSize,
		RemoteTextMax:   cfg.Vector.RemoteTextMax,
		ProbeRange:      cfg.Vector.ProbeRange,
		EmbedTimeout:    cfg.Ai.EmbedTimeout,
		RemoteTimeout:   cfg.Ai.RemoteTimeout,
	}, vectorstore.Deps{
		Embedder: embeddingProvider,
		Cache:    textCache,
		Remote:   remote,
		Loader:   docLoader,
		Sources:  sources,
		Events:   eventPublisher,
		Logger:   sysLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	c.VectorStore = store

	// Retrieval and chat
	orchestrator := retrieval.NewOrchestrator(retrieval.Deps{
		Embedder:      store.Embedder(),
		Local:         store,
		Cache:         store.Cache(),
		Remote:        store.Remote(),
		Sources:       store.Sources(),
		Loader:        docLoader,
		Logger:        sysLogger,
		EmbedTimeout:  cfg.Ai.EmbedTimeout,
		RemoteTimeout: cfg.Ai.RemoteTimeout,
	})
	engine := chat.NewEngine(chat.Config{MaxHistory: cfg.Chat.MaxHistory, LLMTimeout: cfg.Ai.LLMTimeout}, chat.Deps{
		Retriever: orchestrator,
		Sessions:  store,
		History:   history,
		LLM:       llmProvider,
		Logger:    sysLogger,
	})

	// Event bus for ingestion jobs
	c.pubSub = gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	publisherService := service.NewPublisherService(cfg.Topics.Ingestion, c.pubSub)

	// WebSocket hub
	wsLogger := logger.NewIsolatedLogger(cfg.App.WsLogFilePath)
	var hubRedis redis.UniversalClient
	if c.rdb != nil {
		hubRedis = c.rdb
	}
	c.WebSocketHub = websocket.NewHub(hubRedis, wsLogger)

	// Services
	c.StudySessionService = service.NewStudySessionService(sessionRepo, store, publisherService, sysLogger)
	c.ConsumerService = service.NewIngestionConsumerService(c.pubSub, cfg.Topics.Ingestion, store, sessionRepo, c.WebSocketHub, sysLogger)
	chatService := service.NewChatService(sessionRepo, engine, history)
	studyToolsService := service.NewStudyToolsService(sessionRepo, studytools.New(llmProvider, docLoader, sources, sysLogger))
	if c.natsSub != nil {
		c.CascadeService = service.NewCascadeDeleteService(c.natsSub, c.StudySessionService, sysLogger)
	}

	// Controllers
	c.StudySessionController = controller.NewStudySessionController(c.StudySessionService, cfg.App.UploadDir)
	c.StudyToolsController = controller.NewStudyToolsController(studyToolsService)
	c.ChatController = controller.NewChatController(chatService)
	c.ChatWsHandler = handler.NewChatWsHandler(chatService, c.WebSocketHub, wsLogger, cfg.Ai.LLMTimeout+time.Minute)

	return c, nil
}

// Start launches the background workers; they stop when ctx is cancelled.
func (c *Container) Start(ctx context.Context) error {
	go c.WebSocketHub.Run(ctx)

	if err := c.ConsumerService.Consume(ctx); err != nil {
		return fmt.Errorf("start ingestion consumer: %w", err)
	}
	if c.CascadeService != nil {
		if err := c.CascadeService.Start(ctx); err != nil {
			c.Logger.Error(bootModule, "Cascade delete listener failed to start", map[string]interface{}{"error": err})
		}
	}

	go func() {
		ticker := time.NewTicker(expirySweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				n, err := c.StudySessionService.PurgeExpired(ctx, now)
				if err != nil {
					c.Logger.Error(bootModule, "Expiry sweep failed", map[string]interface{}{"error": err})
				} else if n > 0 {
					c.Logger.Info(bootModule, "Expired study sessions purged", map[string]interface{}{"count": n})
				}
			}
		}
	}()
	return nil
}

// Health reports the local tier size.
func (c *Container) Health() map[string]interface{} {
	stats := c.VectorStore.Stats()
	return map[string]interface{}{
		"vectors":  stats.Vectors,
		"sessions": len(stats.Sessions),
		"next_id":  stats.NextID,
	}
}

func (c *Container) Close() {
	if c.pubSub != nil {
		_ = c.pubSub.Close()
	}
	if c.natsSub != nil {
		c.natsSub.Close()
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if c.rdb != nil {
		_ = c.rdb.Close()
	}
	_ = c.Logger.Sync()
}

func connectRedis(url string, log logger.ILogger) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Warn(bootModule, "Failed to parse Redis URL, using it as an address", map[string]interface{}{"error": err})
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn(bootModule, "Redis unreachable, falling back to in-memory cache and history", map[string]interface{}{"error": err})
		_ = rdb.Close()
		return nil
	}
	return rdb
}
