package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/jinford/gamespec-rag/internal/core/chunk"
)

// ErrDocumentNotFound は仕様書ドキュメントが存在しない場合のエラー
var ErrDocumentNotFound = errors.New("specification document not found")

// embedBatchSize はEmbedding生成の1バッチあたりの最大件数（OpenAI APIの上限）
const embedBatchSize = 100

// Embedder はテキストのEmbedding生成インターフェース
type Embedder interface {
	// BatchEmbed はバッチでEmbeddingを生成する
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)
}

// TokenCounter はテキストのトークン数を数えるインターフェース
type TokenCounter interface {
	CountTokens(text string) int
}

// Record はベクトルインデックスに登録する1チャンクを表す
type Record struct {
	Chunk     chunk.Chunk
	Embedding []float32
	Tokens    int
}

// Repository はベクトルインデックスの書き込みインターフェース
type Repository interface {
	// ReplaceChunks は同一ソースの既存チャンクを破棄して登録し直す
	ReplaceChunks(ctx context.Context, source string, records []*Record) error

	// Count は登録済みチャンク数を返す
	Count(ctx context.Context) (int, error)
}

// Service は仕様書ドキュメントの読み込みからベクトルインデックス構築までを
// 提供する。インデックス構築は起動時に1度だけ実行される。
type Service struct {
	chunker  *chunk.Chunker
	embedder Embedder
	repo     Repository
	tokens   TokenCounter
	logger   *slog.Logger
}

type ServiceOption func(*Service)

// WithIndexLogger は Service にロガーを設定する
func WithIndexLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService は新しいServiceを作成する
func NewService(
	chunker *chunk.Chunker,
	embedder Embedder,
	repo Repository,
	tokens TokenCounter,
	opts ...ServiceOption,
) *Service {
	svc := &Service{
		chunker:  chunker,
		embedder: embedder,
		repo:     repo,
		tokens:   tokens,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(svc)
	}

	if svc.logger == nil {
		svc.logger = slog.Default()
	}

	return svc
}

// BuildParams はインデックス構築のパラメータを表す
type BuildParams struct {
	DocumentPath string // 仕様書ファイルのパス
	Source       string // チャンクに付与するソース識別子
}

// Build は仕様書を読み込み、チャンク化・ベクトル化してインデックスに登録する。
// 登録したチャンク数を返す。
func (s *Service) Build(ctx context.Context, params BuildParams) (int, error) {
	data, err := os.ReadFile(params.DocumentPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrDocumentNotFound, params.DocumentPath)
		}
		return 0, fmt.Errorf("failed to read document: %w", err)
	}

	source := params.Source
	if source == "" {
		source = params.DocumentPath
	}

	chunks := s.chunker.Chunk(string(data), source)
	chunks = s.chunker.SplitOversized(chunks)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("document produced no chunks: %s", params.DocumentPath)
	}

	s.logger.Info("chunking completed",
		"document", params.DocumentPath,
		"chunks", len(chunks),
	)

	records := make([]*Record, 0, len(chunks))
	totalTokens := 0

	// Embedding生成はAPIのバッチ上限に合わせて分割する
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, 0, len(batch))
		for _, ch := range batch {
			texts = append(texts, ch.Content)
		}

		embeddings, err := s.embedder.BatchEmbed(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("failed to embed chunks: %w", err)
		}
		if len(embeddings) != len(batch) {
			return 0, fmt.Errorf("embedding count mismatch: got %d, want %d", len(embeddings), len(batch))
		}

		for i, ch := range batch {
			tokens := s.tokens.CountTokens(ch.Content)
			totalTokens += tokens
			records = append(records, &Record{
				Chunk:     *ch,
				Embedding: embeddings[i],
				Tokens:    tokens,
			})
		}
	}

	if err := s.repo.ReplaceChunks(ctx, source, records); err != nil {
		return 0, fmt.Errorf("failed to store chunks: %w", err)
	}

	s.logger.Info("index build completed",
		"source", source,
		"chunks", len(records),
		"totalTokens", totalTokens,
	)

	return len(records), nil
}

// Ready はインデックスが検索可能な状態かどうかを返す
func (s *Service) Ready(ctx context.Context) (bool, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count > 0, nil
}
