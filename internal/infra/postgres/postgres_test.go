package postgres

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/gamespec-rag/internal/core/chunk"
	"github.com/jinford/gamespec-rag/internal/core/conversation"
	"github.com/jinford/gamespec-rag/internal/core/index"
	"github.com/jinford/gamespec-rag/internal/platform/database"
)

const testEmbeddingDimension = 3

// setupDatabase はpgvector入りのPostgreSQLコンテナを起動し、スキーマを適用する
func setupDatabase(t *testing.T) *database.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("short モードではDocker統合テストをスキップ")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("Dockerに接続できないためスキップ: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("Dockerに接続できないためスキップ: %v", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "pgvector/pgvector",
		Tag:        "pg16",
		Env: []string{
			"POSTGRES_USER=gamespec",
			"POSTGRES_PASSWORD=gamespec",
			"POSTGRES_DB=gamespec_test",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Purge(resource) })

	port, err := strconv.Atoi(resource.GetPort("5432/tcp"))
	require.NoError(t, err)

	var db *database.DB
	err = pool.Retry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var err error
		db, err = database.New(ctx, database.ConnectionParams{
			Host:     "localhost",
			Port:     port,
			User:     "gamespec",
			Password: "gamespec",
			DBName:   "gamespec_test",
			SSLMode:  "disable",
		})
		return err
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, Migrate(context.Background(), db.Pool, testEmbeddingDimension))

	return db
}

func testRecord(content, section string, embedding []float32) *index.Record {
	return &index.Record{
		Chunk: chunk.Chunk{
			Content:    content,
			Section:    section,
			Subsection: "",
			Source:     "game_spec",
		},
		Embedding: embedding,
		Tokens:    10,
	}
}

func TestChunkRepository_RoundTrip(t *testing.T) {
	db := setupDatabase(t)
	ctx := context.Background()
	repo := NewChunkRepository(db.Pool)

	ready, err := repo.Ready(ctx)
	require.NoError(t, err)
	assert.False(t, ready)

	records := []*index.Record{
		testRecord("戦闘はターン制である", "## **2. 戦闘**", []float32{1, 0, 0}),
		testRecord("大陸スゲリスを舞台とする", "## **1. 概要**", []float32{0, 1, 0}),
	}
	require.NoError(t, repo.ReplaceChunks(ctx, "game_spec", records))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	ready, err = repo.Ready(ctx)
	require.NoError(t, err)
	assert.True(t, ready)

	// クエリベクトルに一致するチャンクが類似度1.0で先頭に来る
	results, err := repo.QueryNearest(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "戦闘はターン制である", results[0].Chunk.Content)
	assert.Equal(t, "## **2. 戦闘**", results[0].Chunk.Section)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Greater(t, results[0].Score, results[1].Score)

	// 同一ソースの再登録は既存チャンクを置き換える
	require.NoError(t, repo.ReplaceChunks(ctx, "game_spec", records[:1]))
	count, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestConversationStore_RoundTrip(t *testing.T) {
	db := setupDatabase(t)
	ctx := context.Background()
	store := NewConversationStore(db.Pool)

	session, err := store.CreateSession(ctx, "テスト会話")
	require.NoError(t, err)
	assert.Equal(t, "テスト会話", session.Title)
	assert.False(t, session.CreatedAt.IsZero())

	got, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.True(t, got.IsPresent())

	// メッセージ追記
	userMsg, err := store.AppendMessage(ctx, session.ID, conversation.RoleUser, "HPとは何ですか", nil)
	require.NoError(t, err)
	require.True(t, userMsg.IsPresent())

	assistantMsg, err := store.AppendMessage(ctx, session.ID, conversation.RoleAssistant, "ヒットポイントの略です", map[string]any{
		"confidence": 0.7,
	})
	require.NoError(t, err)
	require.True(t, assistantMsg.IsPresent())

	messages, err := store.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, conversation.RoleUser, messages[0].Role)
	assert.Equal(t, conversation.RoleAssistant, messages[1].Role)
	assert.InDelta(t, 0.7, messages[1].Metadata["confidence"], 1e-9)

	recent, err := store.RecentMessages(ctx, session.ID, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, conversation.RoleAssistant, recent[0].Role)

	// タイトル更新
	updated, err := store.UpdateSessionTitle(ctx, session.ID, "改名後")
	require.NoError(t, err)
	assert.True(t, updated)

	// 存在しないセッションへの追記は None
	missing, err := store.AppendMessage(ctx, uuid.New(), conversation.RoleUser, "どこへ", nil)
	require.NoError(t, err)
	assert.True(t, missing.IsAbsent())

	// 削除でメッセージも消える
	deleted, err := store.DeleteSession(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	gone, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, gone.IsAbsent())

	messages, err = store.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}
