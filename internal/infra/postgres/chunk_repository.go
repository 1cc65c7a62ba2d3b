package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/jinford/gamespec-rag/internal/core/chunk"
	"github.com/jinford/gamespec-rag/internal/core/index"
	"github.com/jinford/gamespec-rag/internal/core/retrieval"
)

// ChunkRepository は仕様書チャンクとEmbeddingをpgvectorで永続化するリポジトリ
type ChunkRepository struct {
	pool *pgxpool.Pool
}

// NewChunkRepository は新しいChunkRepositoryを作成する
func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{pool: pool}
}

// コンパイル時の型チェック
var (
	_ index.Repository                  = (*ChunkRepository)(nil)
	_ retrieval.NearestNeighborProvider = (*ChunkRepository)(nil)
)

// ReplaceChunks は同一ソースの既存チャンクを削除し、新しいチャンク群を
// 登録し直す。削除と登録は同一トランザクションで行う。
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, source string, records []*index.Record) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM spec_chunks WHERE source = $1`, source); err != nil {
		return fmt.Errorf("failed to delete existing chunks: %w", err)
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(
			`INSERT INTO spec_chunks (id, source, section, subsection, content, tokens, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.New(),
			source,
			rec.Chunk.Section,
			rec.Chunk.Subsection,
			rec.Chunk.Content,
			rec.Tokens,
			pgvector.NewVector(rec.Embedding),
		)
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < len(records); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert chunk at index %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Count は登録済みチャンク数を返す
func (r *ChunkRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM spec_chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// QueryNearest はコサイン類似度が高い順に上位k件のチャンクを返す。
// スコアは 1 - コサイン距離 として算出する。
func (r *ChunkRepository) QueryNearest(ctx context.Context, vector []float32, k int) ([]*retrieval.SearchResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT content, section, subsection, source, 1 - (embedding <=> $1) AS score
		 FROM spec_chunks
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearest chunks: %w", err)
	}
	defer rows.Close()

	results := make([]*retrieval.SearchResult, 0, k)
	for rows.Next() {
		var ch chunk.Chunk
		var score float64
		if err := rows.Scan(&ch.Content, &ch.Section, &ch.Subsection, &ch.Source, &score); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		results = append(results, &retrieval.SearchResult{
			Chunk: ch,
			Score: score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chunk rows: %w", err)
	}

	return results, nil
}

// Ready はインデックスが検索可能な状態かどうかを返す
func (r *ChunkRepository) Ready(ctx context.Context) (bool, error) {
	count, err := r.Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
