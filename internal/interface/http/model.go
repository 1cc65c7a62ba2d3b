package http

import (
	"time"

	"github.com/jinford/gamespec-rag/internal/core/chat"
	"github.com/jinford/gamespec-rag/internal/core/conversation"
)

// ChatRequest はチャットAPIのリクエストボディ
type ChatRequest struct {
	Question   string `json:"question"`
	SessionID  string `json:"session_id,omitempty"`
	MaxResults int    `json:"max_results,omitempty"`
}

// ChatResponse はチャットAPIのレスポンス
type ChatResponse struct {
	Answer     string                `json:"answer"`
	Sources    []chat.SourceDocument `json:"sources"`
	Confidence float64               `json:"confidence"`
	SessionID  string                `json:"session_id"`
}

// CreateSessionRequest はセッション作成のリクエストボディ
type CreateSessionRequest struct {
	Title string `json:"title,omitempty"`
}

// UpdateSessionRequest はセッションタイトル更新のリクエストボディ
type UpdateSessionRequest struct {
	Title string `json:"title"`
}

// SessionResponse はセッション1件のレスポンス
type SessionResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessageResponse はメッセージ1件のレスポンス
type MessageResponse struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	IndexReady bool   `json:"index_ready"`
}

// ErrorResponse はエラーレスポンス
type ErrorResponse struct {
	Error string `json:"error"`
}

func toSessionResponse(s *conversation.Session) SessionResponse {
	return SessionResponse{
		ID:        s.ID.String(),
		Title:     s.Title,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func toMessageResponse(m *conversation.Message) MessageResponse {
	return MessageResponse{
		ID:        m.ID.String(),
		SessionID: m.SessionID.String(),
		Role:      string(m.Role),
		Content:   m.Content,
		Metadata:  m.Metadata,
		CreatedAt: m.CreatedAt,
	}
}
