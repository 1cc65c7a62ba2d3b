package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/mo"

	"github.com/jinford/gamespec-rag/internal/core/conversation"
)

// ConversationStore は conversation.Store インターフェースを実装する
// PostgreSQLストア
type ConversationStore struct {
	pool *pgxpool.Pool
}

// NewConversationStore は新しいConversationStoreを作成する
func NewConversationStore(pool *pgxpool.Pool) *ConversationStore {
	return &ConversationStore{pool: pool}
}

// コンパイル時の型チェック
var _ conversation.Store = (*ConversationStore)(nil)

func (s *ConversationStore) CreateSession(ctx context.Context, title string) (*conversation.Session, error) {
	session := &conversation.Session{
		ID:    uuid.New(),
		Title: title,
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO sessions (id, title) VALUES ($1, $2)
		 RETURNING created_at, updated_at`,
		session.ID, session.Title,
	).Scan(&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

func (s *ConversationStore) GetSession(ctx context.Context, id uuid.UUID) (mo.Option[*conversation.Session], error) {
	session := &conversation.Session{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, created_at, updated_at FROM sessions WHERE id = $1`,
		id,
	).Scan(&session.ID, &session.Title, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mo.None[*conversation.Session](), nil
		}
		return mo.None[*conversation.Session](), fmt.Errorf("failed to get session: %w", err)
	}

	return mo.Some(session), nil
}

func (s *ConversationStore) ListSessions(ctx context.Context) ([]*conversation.Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, created_at, updated_at FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*conversation.Session, 0)
	for rows.Next() {
		session := &conversation.Session{}
		if err := rows.Scan(&session.ID, &session.Title, &session.CreatedAt, &session.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}

	return sessions, nil
}

func (s *ConversationStore) UpdateSessionTitle(ctx context.Context, id uuid.UUID, title string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET title = $2, updated_at = now() WHERE id = $1`,
		id, title)
	if err != nil {
		return false, fmt.Errorf("failed to update session title: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *ConversationStore) DeleteSession(ctx context.Context, id uuid.UUID) (bool, error) {
	// messages は ON DELETE CASCADE で一緒に削除される
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// AppendMessage はセッションの更新日時を進めつつメッセージを追記する。
// 更新対象のセッション行が存在しなければ何も書き込まず None を返す。
func (s *ConversationStore) AppendMessage(ctx context.Context, sessionID uuid.UUID, role conversation.Role, content string, metadata map[string]any) (mo.Option[*conversation.Message], error) {
	none := mo.None[*conversation.Message]()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return none, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE sessions SET updated_at = now() WHERE id = $1`, sessionID)
	if err != nil {
		return none, fmt.Errorf("failed to touch session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return none, nil
	}

	var metadataParam any
	if metadata != nil {
		data, err := json.Marshal(metadata)
		if err != nil {
			return none, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadataParam = string(data)
	}

	message := &conversation.Message{
		ID:        uuid.New(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Metadata:  metadata,
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO messages (id, session_id, role, content, metadata)
		 VALUES ($1, $2, $3, $4, $5::jsonb)
		 RETURNING created_at`,
		message.ID, message.SessionID, string(message.Role), message.Content, metadataParam,
	).Scan(&message.CreatedAt)
	if err != nil {
		return none, fmt.Errorf("failed to insert message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return none, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return mo.Some(message), nil
}

func (s *ConversationStore) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]*conversation.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, role, content, metadata, created_at
		 FROM messages
		 WHERE session_id = $1
		 ORDER BY created_at ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	return collectMessages(rows)
}

func (s *ConversationStore) RecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]*conversation.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, role, content, metadata, created_at
		 FROM messages
		 WHERE session_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent messages: %w", err)
	}
	defer rows.Close()

	return collectMessages(rows)
}

func collectMessages(rows pgx.Rows) ([]*conversation.Message, error) {
	messages := make([]*conversation.Message, 0)
	for rows.Next() {
		message := &conversation.Message{}
		var role string
		var metadataRaw []byte

		if err := rows.Scan(&message.ID, &message.SessionID, &role, &message.Content, &metadataRaw, &message.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		message.Role = conversation.Role(role)

		if len(metadataRaw) > 0 {
			if err := json.Unmarshal(metadataRaw, &message.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}

		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}

	return messages, nil
}
