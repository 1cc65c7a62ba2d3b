package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DefaultFetchLimit は履歴取得件数のデフォルト値
const DefaultFetchLimit = 20

// Memory は Store をラップし、セッションの直近の会話履歴を
// 時系列順（古い順）のウィンドウとして提供する
type Memory struct {
	store      Store
	fetchLimit int
}

// NewMemory は新しいMemoryを作成する
func NewMemory(store Store, fetchLimit int) *Memory {
	if fetchLimit <= 0 {
		fetchLimit = DefaultFetchLimit
	}
	return &Memory{
		store:      store,
		fetchLimit: fetchLimit,
	}
}

// HistoryFor はセッションの直近 fetchLimit 件の履歴を古い順で返す
func (m *Memory) HistoryFor(ctx context.Context, sessionID uuid.UUID) ([]HistoryEntry, error) {
	messages, err := m.store.RecentMessages(ctx, sessionID, m.fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent messages: %w", err)
	}

	// 新しい順で取得したものを古い順に並び替える
	entries := make([]HistoryEntry, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		entries = append(entries, HistoryEntry{
			Role:    messages[i].Role,
			Content: messages[i].Content,
		})
	}
	return entries, nil
}

// RenderHistory は履歴の末尾 limit 件を「ROLE: 内容」形式の行として描画する。
// limit が 0 以下の場合は全件を描画する。
func RenderHistory(entries []HistoryEntry, limit int) string {
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(string(e.Role)), e.Content))
	}
	return strings.Join(lines, "\n")
}
