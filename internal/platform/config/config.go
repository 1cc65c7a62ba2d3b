package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する
type Config struct {
	// Database設定
	Database DatabaseConfig

	// OpenAI設定（チャット補完 + Embeddings）
	OpenAI OpenAIConfig

	// 仕様書ドキュメント設定
	Document DocumentConfig

	// RAGパイプライン設定
	RAG RAGConfig

	// HTTPサーバー設定
	HTTP HTTPConfig

	// ロガー設定
	Log LogConfig
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// OpenAIConfig はOpenAI API設定
type OpenAIConfig struct {
	APIKey             string
	LLMModel           string
	Temperature        float64
	EmbeddingModel     string
	EmbeddingDimension int
}

// DocumentConfig はインデックス対象の仕様書ドキュメント設定
type DocumentConfig struct {
	Path   string // 仕様書Markdownファイルのパス
	Source string // チャンクに付与するソース識別子
}

// RAGConfig はチャンク化・検索・回答生成のパラメータ
type RAGConfig struct {
	ChunkSize           int
	ChunkOverlap        int
	MaxContextLength    int
	SimilarityThreshold float64
	MaxResults          int
	HistoryFetchLimit   int
	HistoryRenderLimit  int
}

// HTTPConfig はHTTPサーバー設定
type HTTPConfig struct {
	Port int
}

// LogConfig はロガー設定
type LogConfig struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json" or "text"
}

// Load は環境変数または.envファイルから設定を読み込む
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "gamespec"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "gamespec"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		OpenAI: OpenAIConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			LLMModel:           getEnv("OPENAI_LLM_MODEL", "gpt-4o-mini"),
			Temperature:        getEnvAsFloat("OPENAI_LLM_TEMPERATURE", 0.3),
			EmbeddingModel:     getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: getEnvAsInt("OPENAI_EMBEDDING_DIMENSION", 1536),
		},
		Document: DocumentConfig{
			Path:   getEnv("SPEC_DOCUMENT_PATH", "docs/game_spec.md"),
			Source: getEnv("SPEC_DOCUMENT_SOURCE", "game_spec"),
		},
		RAG: RAGConfig{
			ChunkSize:           getEnvAsInt("RAG_CHUNK_SIZE", 1000),
			ChunkOverlap:        getEnvAsInt("RAG_CHUNK_OVERLAP", 200),
			MaxContextLength:    getEnvAsInt("RAG_MAX_CONTEXT_LENGTH", 4000),
			SimilarityThreshold: getEnvAsFloat("RAG_SIMILARITY_THRESHOLD", 0.35),
			MaxResults:          getEnvAsInt("RAG_MAX_RESULTS", 3),
			HistoryFetchLimit:   getEnvAsInt("RAG_HISTORY_FETCH_LIMIT", 20),
			HistoryRenderLimit:  getEnvAsInt("RAG_HISTORY_RENDER_LIMIT", 10),
		},
		HTTP: HTTPConfig{
			Port: getEnvAsInt("HTTP_PORT", 8080),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返す
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得する
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得する
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
