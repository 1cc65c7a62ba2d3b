package retrieval

import "github.com/jinford/gamespec-rag/internal/core/chunk"

// SearchResult はベクトル検索の結果を表す。Scoreは類似度（大きいほど近い）。
type SearchResult struct {
	Chunk chunk.Chunk `json:"chunk"`
	Score float64     `json:"score"`
}
