package conversation

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound はセッションが存在しない場合のエラー
var ErrSessionNotFound = errors.New("session not found")

// Role はメッセージの発話者種別を表す
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Session は会話セッションを表す
type Session struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message はセッション内の1発話を表す。作成後は変更されない。
type Message struct {
	ID        uuid.UUID      `json:"id"`
	SessionID uuid.UUID      `json:"sessionID"`
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// HistoryEntry は生成プロンプトに埋め込む会話履歴の1エントリを表す
type HistoryEntry struct {
	Role    Role
	Content string
}

// AutoTitle はタイトル未指定のセッションに付与する自動タイトルを返す
func AutoTitle(t time.Time) string {
	return fmt.Sprintf("新しい会話 - %s", t.Format("2006/01/02 15:04"))
}
