package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pkoukk/tiktoken-go"

	"github.com/jinford/gamespec-rag/internal/core/chat"
	"github.com/jinford/gamespec-rag/internal/core/chunk"
	"github.com/jinford/gamespec-rag/internal/core/conversation"
	"github.com/jinford/gamespec-rag/internal/core/index"
	"github.com/jinford/gamespec-rag/internal/core/retrieval"
	"github.com/jinford/gamespec-rag/internal/infra/openai"
	"github.com/jinford/gamespec-rag/internal/infra/postgres"
	"github.com/jinford/gamespec-rag/internal/platform/config"
	"github.com/jinford/gamespec-rag/internal/platform/database"
)

// Embedder は単発とバッチ両方のEmbedding生成を提供する
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkStore はチャンクの書き込みと近傍検索をまとめたインターフェース
type ChunkStore interface {
	index.Repository
	retrieval.NearestNeighborProvider
}

// ServiceContainer はアプリケーションの依存関係を保持する
type ServiceContainer struct {
	ChatService  *chat.Service
	IndexService *index.Service
	SearchEngine *retrieval.Engine
	Store        conversation.Store

	logger   *slog.Logger
	database *database.DB
}

type containerOptions struct {
	logger       *slog.Logger
	embedder     Embedder
	llmClient    chat.CompletionClient
	store        conversation.Store
	chunkStore   ChunkStore
	tokenCounter index.TokenCounter
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerEmbedder はカスタム Embedder を注入する
func WithContainerEmbedder(embedder Embedder) ContainerOption {
	return func(opts *containerOptions) {
		opts.embedder = embedder
	}
}

// WithContainerLLMClient は LLM クライアントを差し替える
func WithContainerLLMClient(client chat.CompletionClient) ContainerOption {
	return func(opts *containerOptions) {
		opts.llmClient = client
	}
}

// WithContainerStore は会話ストアを差し替える
func WithContainerStore(store conversation.Store) ContainerOption {
	return func(opts *containerOptions) {
		opts.store = store
	}
}

// WithContainerChunkStore はチャンクストアを差し替える
func WithContainerChunkStore(store ChunkStore) ContainerOption {
	return func(opts *containerOptions) {
		opts.chunkStore = store
	}
}

// WithContainerTokenCounter は TokenCounter を差し替える
func WithContainerTokenCounter(counter index.TokenCounter) ContainerOption {
	return func(opts *containerOptions) {
		opts.tokenCounter = counter
	}
}

// NewContainer は設定からコンテナを生成する。データベース接続とスキーマの
// マイグレーションもここで行う。
func NewContainer(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	db, err := database.New(ctx, database.ConnectionParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("データベース初期化に失敗しました: %w", err)
	}

	if err := postgres.Migrate(ctx, db.Pool, cfg.OpenAI.EmbeddingDimension); err != nil {
		db.Close()
		return nil, fmt.Errorf("スキーママイグレーションに失敗しました: %w", err)
	}

	container, err := NewContainerWithDB(cfg, db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return container, nil
}

// NewContainerWithDB は既存の DB を受け取りコンテナを生成する。
// スキーマは適用済みであることを前提とする。
func NewContainerWithDB(cfg *config.Config, db *database.DB, opts ...ContainerOption) (*ServiceContainer, error) {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	// Embedder (OpenAI)
	embedder := options.embedder
	if embedder == nil {
		embedder = openai.NewEmbedder(
			cfg.OpenAI.APIKey,
			openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
			openai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
		)
	}

	// LLMClient (OpenAI)
	llmClient := options.llmClient
	if llmClient == nil {
		client, err := openai.NewClientWithAPIKey(cfg.OpenAI.APIKey, cfg.OpenAI.LLMModel)
		if err != nil {
			return nil, fmt.Errorf("OpenAI LLMクライアント初期化に失敗しました: %w", err)
		}
		client.SetTemperature(cfg.OpenAI.Temperature)
		llmClient = client
	}

	// TokenCounter (tiktoken)
	tokenCounter := options.tokenCounter
	if tokenCounter == nil {
		var err error
		tokenCounter, err = newTokenCounter()
		if err != nil {
			return nil, fmt.Errorf("TokenCounter 初期化に失敗しました: %w", err)
		}
	}

	// Repository (PostgreSQL)
	var chunkStore ChunkStore = options.chunkStore
	if chunkStore == nil {
		chunkStore = postgres.NewChunkRepository(db.Pool)
	}

	store := options.store
	if store == nil {
		store = postgres.NewConversationStore(db.Pool)
	}

	// IndexService
	chunker := chunk.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	indexService := index.NewService(
		chunker,
		embedder,
		chunkStore,
		tokenCounter,
		index.WithIndexLogger(options.logger),
	)

	// SearchEngine
	engine := retrieval.NewEngine(
		chunkStore,
		embedder,
		cfg.RAG.SimilarityThreshold,
		retrieval.WithEngineLogger(options.logger),
	)

	// ChatService
	memory := conversation.NewMemory(store, cfg.RAG.HistoryFetchLimit)
	chatService := chat.NewService(
		engine,
		store,
		memory,
		llmClient,
		chat.WithChatLogger(options.logger),
		chat.WithMaxContextLength(cfg.RAG.MaxContextLength),
		chat.WithHistoryRenderLimit(cfg.RAG.HistoryRenderLimit),
		chat.WithDefaultMaxResults(cfg.RAG.MaxResults),
	)

	return &ServiceContainer{
		ChatService:  chatService,
		IndexService: indexService,
		SearchEngine: engine,
		Store:        store,
		logger:       options.logger,
		database:     db,
	}, nil
}

// Close は内部リソースを解放する。
func (c *ServiceContainer) Close() {
	if c != nil && c.database != nil {
		c.database.Close()
	}
}

// Logger はロガーを返す。
func (c *ServiceContainer) Logger() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

// Database はデータベースを返す。
func (c *ServiceContainer) Database() *database.DB {
	if c == nil {
		return nil
	}
	return c.database
}

// tokenCounter は tiktoken を利用した TokenCounter 実装。
type tokenCounter struct {
	encoding *tiktoken.Tiktoken
}

func newTokenCounter() (*tokenCounter, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding: %w", err)
	}
	return &tokenCounter{encoding: enc}, nil
}

func (t *tokenCounter) CountTokens(text string) int {
	if t.encoding == nil {
		return 0
	}
	return len(t.encoding.Encode(text, nil, nil))
}
