package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate は拡張とテーブルを作成する。冪等なので起動のたびに実行してよい。
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimension int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY,
			session_id UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session_created
			ON messages (session_id, created_at)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS spec_chunks (
			id UUID PRIMARY KEY,
			source TEXT NOT NULL,
			section TEXT NOT NULL DEFAULT '',
			subsection TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			tokens INTEGER NOT NULL DEFAULT 0,
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, embeddingDimension),
		`CREATE INDEX IF NOT EXISTS idx_spec_chunks_source ON spec_chunks (source)`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}
