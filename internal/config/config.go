package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Ai       AIConfig
	Insights InsightsConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type AIConfig struct {
	EmbeddingProvider string // "gemini" or "ollama"
	OllamaBaseURL     string
	OllamaModel       string
	LLMProvider       string // "ollama" or "gemini"
	LLMModel          string // e.g. "llama3", "gemini-1.5-flash"
	GoogleGemini      string // API key
}

// InsightsConfig carries the tuning knobs of the insight pipeline.
type InsightsConfig struct {
	BufferBackend            string // "redis" or "memory"
	BufferWindowSeconds      int
	BufferMaxSentences       int
	BufferTTLMinutes         int
	SessionGraceMinutes      int
	RelevanceFloor           float64
	AcceptanceThreshold      float64
	SearchTopK               int
	TierTimeoutSeconds       int
	ResolutionTimeoutSeconds int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "gemini"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
			GoogleGemini:      getEnv("GOOGLE_GEMINI_API_KEY", ""),
		},
		Insights: InsightsConfig{
			BufferBackend:            getEnv("BUFFER_BACKEND", "redis"),
			BufferWindowSeconds:      getEnvAsInt("BUFFER_WINDOW_SECONDS", 300),
			BufferMaxSentences:       getEnvAsInt("BUFFER_MAX_SENTENCES", 200),
			BufferTTLMinutes:         getEnvAsInt("BUFFER_TTL_MINUTES", 30),
			SessionGraceMinutes:      getEnvAsInt("SESSION_GRACE_MINUTES", 5),
			RelevanceFloor:           getEnvAsFloat("RELEVANCE_FLOOR", 0.7),
			AcceptanceThreshold:      getEnvAsFloat("ACCEPTANCE_THRESHOLD", 0.7),
			SearchTopK:               getEnvAsInt("SEARCH_TOP_K", 5),
			TierTimeoutSeconds:       getEnvAsInt("TIER_TIMEOUT_SECONDS", 8),
			ResolutionTimeoutSeconds: getEnvAsInt("RESOLUTION_TIMEOUT_SECONDS", 25),
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

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}
