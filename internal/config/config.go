package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Vector   VectorConfig
	Chat     ChatConfig
	Ai       AIConfig
	Keys     APIKeys
	Topics   TopicConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	WsLogFilePath      string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	UploadDir          string
	MaxDownloadBytes   int
	OtelEnabled        bool
	OtelEndpoint       string
}

type DatabaseConfig struct {
	Connection string
}

type VectorConfig struct {
	Dimension       int
	IndexPath       string
	MapPath         string
	RemoteBackend   string // "pgvector" or "memory"
	CacheBackend    string // "redis" or "memory"
	CacheTTL        time.Duration
	UpsertBatchSize int
	RemoteTextMax   int
	ProbeRange      int
}

type ChatConfig struct {
	MaxHistory     int
	HistoryBackend string // "redis" or "memory"
	HistoryTTL     time.Duration
}

type AIConfig struct {
	EmbeddingProvider string // "gemini", "ollama", "jina" or "openai"
	EmbeddingModel    string
	OllamaBaseURL     string
	OllamaModel       string
	LLMProvider       string // "ollama" or "openai"
	LLMModel          string
	LLMBaseURL        string
	EmbedTimeout      time.Duration
	RemoteTimeout     time.Duration
	LLMTimeout        time.Duration
}

type APIKeys struct {
	GoogleGemini string
	Jina         string
	OpenAI       string
	OpenAIURL    string
	JwtSecret    string
}

type TopicConfig struct {
	Ingestion string
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			WsLogFilePath:      getEnv("WS_LOG_FILE_PATH", "logs/chat_ws.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			UploadDir:          getEnv("UPLOAD_DIR", "uploads"),
			MaxDownloadBytes:   getEnvAsInt("MAX_DOWNLOAD_BYTES", 50<<20),
			OtelEnabled:        getEnvAsBool("OTEL_ENABLED", false),
			OtelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Vector: VectorConfig{
			Dimension:       getEnvAsInt("VECTOR_DIMENSION", 768),
			IndexPath:       getEnv("VECTOR_INDEX_PATH", "data/local.index"),
			MapPath:         getEnv("VECTOR_MAP_PATH", "data/session_map.json"),
			RemoteBackend:   getEnv("VECTOR_REMOTE_BACKEND", "pgvector"),
			CacheBackend:    getEnv("TEXT_CACHE_BACKEND", "redis"),
			CacheTTL:        getEnvAsDuration("TEXT_CACHE_TTL", 30*24*time.Hour),
			UpsertBatchSize: getEnvAsInt("VECTOR_UPSERT_BATCH_SIZE", 100),
			RemoteTextMax:   getEnvAsInt("VECTOR_REMOTE_TEXT_MAX", 1000),
			ProbeRange:      getEnvAsInt("VECTOR_PROBE_RANGE", 1000),
		},
		Chat: ChatConfig{
			MaxHistory:     getEnvAsInt("CHAT_MAX_HISTORY", 10),
			HistoryBackend: getEnv("CHAT_HISTORY_BACKEND", "redis"),
			HistoryTTL:     getEnvAsDuration("CHAT_HISTORY_TTL", 7*24*time.Hour),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "gemini"),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
			LLMBaseURL:        getEnv("LLM_BASE_URL", ""),
			EmbedTimeout:      getEnvAsDuration("EMBED_TIMEOUT", 60*time.Second),
			RemoteTimeout:     getEnvAsDuration("REMOTE_TIMEOUT", 15*time.Second),
			LLMTimeout:        getEnvAsDuration("LLM_TIMEOUT", 2*time.Minute),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
			Jina:         getEnv("JINA_API_KEY", ""),
			OpenAI:       getEnv("OPENAI_API_KEY", ""),
			OpenAIURL:    getEnv("OPENAI_BASE_URL", ""),
			JwtSecret:    getEnv("JWT_SECRET", ""),
		},
		Topics: TopicConfig{
			Ingestion: getEnv("INGEST_STUDY_SESSION_TOPIC_NAME", "INGEST_STUDY_SESSION"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings ("90s", "720h").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
