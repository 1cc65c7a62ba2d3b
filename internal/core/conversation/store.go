package conversation

import (
	"context"

	"github.com/google/uuid"
	"github.com/samber/mo"
)

// Store はセッションとメッセージの永続化インターフェース。
// 各操作は独立した短命のトランザクションで完結し、呼び出し間でロックを
// 保持しない。
type Store interface {
	// CreateSession は新規セッションを作成する
	CreateSession(ctx context.Context, title string) (*Session, error)

	// GetSession はIDでセッションを取得する。存在しなければ None を返す
	GetSession(ctx context.Context, id uuid.UUID) (mo.Option[*Session], error)

	// ListSessions は更新日時の降順で全セッションを返す
	ListSessions(ctx context.Context) ([]*Session, error)

	// UpdateSessionTitle はタイトルを更新する。セッションが存在しなければ false を返す
	UpdateSessionTitle(ctx context.Context, id uuid.UUID, title string) (bool, error)

	// DeleteSession はセッションを配下のメッセージごと削除する。
	// セッションが存在しなければ false を返す
	DeleteSession(ctx context.Context, id uuid.UUID) (bool, error)

	// AppendMessage はセッションの存在を確認したうえでメッセージを追記し、
	// セッションの更新日時を進める。セッションが存在しなければ None を返す
	AppendMessage(ctx context.Context, sessionID uuid.UUID, role Role, content string, metadata map[string]any) (mo.Option[*Message], error)

	// ListMessages はセッションの全メッセージを作成日時の昇順で返す
	ListMessages(ctx context.Context, sessionID uuid.UUID) ([]*Message, error)

	// RecentMessages は直近のメッセージを作成日時の降順で最大limit件返す
	RecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]*Message, error)
}
