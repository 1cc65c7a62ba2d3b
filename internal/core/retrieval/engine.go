package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// ErrIndexNotReady はベクトルインデックスが未構築の状態で検索が呼ばれた場合のエラー
var ErrIndexNotReady = errors.New("vector index is not ready")

// Embedder はテキストのEmbedding生成インターフェース
type Embedder interface {
	// Embed は単一テキストのEmbeddingを生成する
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NearestNeighborProvider は近傍検索インデックスへの問い合わせインターフェース
type NearestNeighborProvider interface {
	// QueryNearest はクエリベクトルに類似度が高い順で上位k件を返す
	QueryNearest(ctx context.Context, vector []float32, k int) ([]*SearchResult, error)

	// Ready はインデックスが検索可能な状態かどうかを返す
	Ready(ctx context.Context) (bool, error)
}

// Engine は類似度しきい値によるフィルタリング付きのベクトル検索を提供する
type Engine struct {
	provider  NearestNeighborProvider
	embedder  Embedder
	threshold float64
	logger    *slog.Logger
}

type EngineOption func(*Engine)

// WithEngineLogger は Engine にロガーを設定する
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine は新しいEngineを作成する
func NewEngine(provider NearestNeighborProvider, embedder Embedder, threshold float64, opts ...EngineOption) *Engine {
	e := &Engine{
		provider:  provider,
		embedder:  embedder,
		threshold: threshold,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}

	return e
}

// Search はクエリに関連するチャンクを検索する。結果は類似度の降順で、
// しきい値以上のスコアを持つものだけを返す。該当がなければ空スライスを返す。
func (e *Engine) Search(ctx context.Context, query string, maxResults int) ([]*SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if maxResults <= 0 {
		maxResults = 3
	}

	ready, err := e.provider.Ready(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check index readiness: %w", err)
	}
	if !ready {
		return nil, ErrIndexNotReady
	}

	vector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := e.provider.QueryNearest(ctx, vector, maxResults)
	if err != nil {
		return nil, fmt.Errorf("nearest neighbor query failed: %w", err)
	}

	// プロバイダは類似度降順を前提とするが、信頼度計算が先頭要素に依存するため
	// ここでも並び順を保証しておく
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	filtered := make([]*SearchResult, 0, len(results))
	scores := make([]float64, 0, len(results))
	for _, r := range results {
		scores = append(scores, r.Score)
		if r.Score >= e.threshold {
			filtered = append(filtered, r)
		}
	}

	e.logger.Info("vector search completed",
		"query", query,
		"rawCount", len(results),
		"filteredCount", len(filtered),
		"threshold", e.threshold,
		"scores", scores,
	)

	return filtered, nil
}
