package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	recent    []*Message
	lastLimit int
}

func (s *stubStore) CreateSession(ctx context.Context, title string) (*Session, error) {
	return nil, nil
}

func (s *stubStore) GetSession(ctx context.Context, id uuid.UUID) (mo.Option[*Session], error) {
	return mo.None[*Session](), nil
}

func (s *stubStore) ListSessions(ctx context.Context) ([]*Session, error) {
	return nil, nil
}

func (s *stubStore) UpdateSessionTitle(ctx context.Context, id uuid.UUID, title string) (bool, error) {
	return false, nil
}

func (s *stubStore) DeleteSession(ctx context.Context, id uuid.UUID) (bool, error) {
	return false, nil
}

func (s *stubStore) AppendMessage(ctx context.Context, sessionID uuid.UUID, role Role, content string, metadata map[string]any) (mo.Option[*Message], error) {
	return mo.None[*Message](), nil
}

func (s *stubStore) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]*Message, error) {
	return nil, nil
}

func (s *stubStore) RecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]*Message, error) {
	s.lastLimit = limit
	return s.recent, nil
}

func TestMemory_HistoryForReversesToChronologicalOrder(t *testing.T) {
	// RecentMessages は新しい順で返す
	store := &stubStore{
		recent: []*Message{
			{Role: RoleAssistant, Content: "3番目"},
			{Role: RoleUser, Content: "2番目"},
			{Role: RoleUser, Content: "1番目"},
		},
	}
	memory := NewMemory(store, 20)

	entries, err := memory.HistoryFor(context.Background(), uuid.New())
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, "1番目", entries[0].Content)
	assert.Equal(t, "2番目", entries[1].Content)
	assert.Equal(t, "3番目", entries[2].Content)
	assert.Equal(t, 20, store.lastLimit)
}

func TestMemory_DefaultFetchLimit(t *testing.T) {
	store := &stubStore{}
	memory := NewMemory(store, 0)

	_, err := memory.HistoryFor(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, DefaultFetchLimit, store.lastLimit)
}

func TestRenderHistory_FormatsRoleLines(t *testing.T) {
	entries := []HistoryEntry{
		{Role: RoleUser, Content: "HPとは何ですか"},
		{Role: RoleAssistant, Content: "ヒットポイントの略です"},
	}

	rendered := RenderHistory(entries, 10)
	assert.Equal(t, "USER: HPとは何ですか\nASSISTANT: ヒットポイントの略です", rendered)
}

func TestRenderHistory_KeepsOnlyLastEntries(t *testing.T) {
	entries := make([]HistoryEntry, 0, 12)
	for i := 0; i < 12; i++ {
		entries = append(entries, HistoryEntry{Role: RoleUser, Content: string(rune('a' + i))})
	}

	rendered := RenderHistory(entries, 10)
	assert.NotContains(t, rendered, "USER: a")
	assert.NotContains(t, rendered, "USER: b")
	assert.Contains(t, rendered, "USER: c")
	assert.Contains(t, rendered, "USER: l")
}

func TestAutoTitle(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 5, 0, 0, time.UTC)
	assert.Equal(t, "新しい会話 - 2025/03/01 09:05", AutoTitle(at))
}
