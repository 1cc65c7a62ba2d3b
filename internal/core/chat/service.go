package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/gamespec-rag/internal/core/chunk"
	"github.com/jinford/gamespec-rag/internal/core/conversation"
	"github.com/jinford/gamespec-rag/internal/core/retrieval"
)

// CompletionClient はLLM通信インターフェース
type CompletionClient interface {
	// Complete はシステム指示とユーザープロンプトから回答テキストを生成する
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Retriever はベクトル検索インターフェース
type Retriever interface {
	Search(ctx context.Context, query string, maxResults int) ([]*retrieval.SearchResult, error)
}

// HistoryProvider はセッションの会話履歴を時系列順で提供する
type HistoryProvider interface {
	HistoryFor(ctx context.Context, sessionID uuid.UUID) ([]conversation.HistoryEntry, error)
}

// Service はチャット1ターンのオーケストレーションを提供する。
// セッション解決 → 履歴取得 → ユーザー発話の永続化 → 検索 → 回答生成 →
// アシスタント発話の永続化、の順に処理する。
type Service struct {
	retriever Retriever
	store     conversation.Store
	history   HistoryProvider
	llm       CompletionClient

	maxContextLength   int
	historyRenderLimit int
	defaultMaxResults  int

	logger *slog.Logger
	now    func() time.Time
}

type ServiceOption func(*Service)

// WithChatLogger は Service にロガーを設定する
func WithChatLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMaxContextLength はコンテキストの最大文字数を上書きする
func WithMaxContextLength(length int) ServiceOption {
	return func(s *Service) {
		if length > 0 {
			s.maxContextLength = length
		}
	}
}

// WithHistoryRenderLimit はプロンプトに描画する履歴件数の上限を上書きする
func WithHistoryRenderLimit(limit int) ServiceOption {
	return func(s *Service) {
		if limit > 0 {
			s.historyRenderLimit = limit
		}
	}
}

// WithDefaultMaxResults は検索件数のデフォルト値を上書きする
func WithDefaultMaxResults(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.defaultMaxResults = n
		}
	}
}

// WithClock は現在時刻の取得関数を差し替える（テスト用）
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService は新しいServiceを作成する
func NewService(
	retriever Retriever,
	store conversation.Store,
	history HistoryProvider,
	llm CompletionClient,
	opts ...ServiceOption,
) *Service {
	svc := &Service{
		retriever:          retriever,
		store:              store,
		history:            history,
		llm:                llm,
		maxContextLength:   DefaultMaxContextLength,
		historyRenderLimit: DefaultHistoryRenderLimit,
		defaultMaxResults:  DefaultMaxResults,
		logger:             slog.Default(),
		now:                time.Now,
	}

	for _, opt := range opts {
		opt(svc)
	}

	if svc.logger == nil {
		svc.logger = slog.Default()
	}

	return svc
}

// Chat はユーザーの質問に対してRAGベースで回答を生成し、会話として永続化する
func (s *Service) Chat(ctx context.Context, params Params) (*Result, error) {
	question := strings.TrimSpace(params.Question)
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = s.defaultMaxResults
	}

	// 1. セッション解決。未指定なら自動タイトルで新規作成する
	var sessionID uuid.UUID
	if id, ok := params.SessionID.Get(); ok {
		sessionID = id
	} else {
		session, err := s.store.CreateSession(ctx, conversation.AutoTitle(s.now()))
		if err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
		sessionID = session.ID
		s.logger.Info("created new session", "sessionID", sessionID.String())
	}

	// 2. 履歴取得。今回の質問を含めないよう、ユーザー発話の永続化より先に取得する
	history, err := s.history.HistoryFor(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch conversation history: %w", err)
	}

	// 3. ユーザー発話の永続化。セッションが消えていた場合は新規セッションで
	//    1回だけやり直す（取得済みの履歴は破棄する）
	appended, err := s.store.AppendMessage(ctx, sessionID, conversation.RoleUser, question, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}
	if appended.IsAbsent() {
		s.logger.Warn("session not found on append, creating a new session", "sessionID", sessionID.String())

		session, err := s.store.CreateSession(ctx, conversation.AutoTitle(s.now()))
		if err != nil {
			return nil, fmt.Errorf("failed to recreate session: %w", err)
		}
		sessionID = session.ID
		history = nil

		retried, err := s.store.AppendMessage(ctx, sessionID, conversation.RoleUser, question, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to persist user message: %w", err)
		}
		if retried.IsAbsent() {
			return nil, fmt.Errorf("failed to persist user message: %w", conversation.ErrSessionNotFound)
		}
	}

	// 4. 関連チャンクを検索
	results, err := s.retriever.Search(ctx, question, maxResults)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	// 5. 検索結果が0件なら生成をスキップして固定メッセージを返す
	if len(results) == 0 {
		return s.finishTurn(ctx, sessionID, NoResultsMessage, []SourceDocument{}, 0.0)
	}

	// 6. 回答生成。履歴があれば履歴込みのプロンプトを使う
	chunks := make([]chunk.Chunk, 0, len(results))
	for _, r := range results {
		chunks = append(chunks, r.Chunk)
	}

	var system, human string
	if len(history) > 0 {
		system, human = BuildPromptWithHistory(question, chunks, history, s.historyRenderLimit, s.maxContextLength)
	} else {
		system, human = BuildPrompt(question, chunks, s.maxContextLength)
	}

	answer, err := s.llm.Complete(ctx, system, human)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}
	answer = strings.TrimSpace(answer)

	// 7. ソース情報と信頼度を整形。信頼度は最上位スコアから算出する
	sources := formatSources(results)
	confidence := clampConfidence(1.0 - results[0].Score)

	return s.finishTurn(ctx, sessionID, answer, sources, confidence)
}

// finishTurn はアシスタント発話を永続化し、結果を組み立てる
func (s *Service) finishTurn(ctx context.Context, sessionID uuid.UUID, answer string, sources []SourceDocument, confidence float64) (*Result, error) {
	metadata := map[string]any{
		"sources":    sources,
		"confidence": confidence,
	}

	appended, err := s.store.AppendMessage(ctx, sessionID, conversation.RoleAssistant, answer, metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to persist assistant message: %w", err)
	}
	if appended.IsAbsent() {
		return nil, fmt.Errorf("failed to persist assistant message: %w", conversation.ErrSessionNotFound)
	}

	s.logger.Info("chat turn completed",
		"sessionID", sessionID.String(),
		"sources", len(sources),
		"confidence", confidence,
	)

	return &Result{
		Answer:     answer,
		Sources:    sources,
		Confidence: confidence,
		SessionID:  sessionID,
	}, nil
}

// formatSources は検索結果をレスポンス用のソース情報に整形する。
// 本文は300文字で切り詰め、生のスコアをメタデータに残す。
func formatSources(results []*retrieval.SearchResult) []SourceDocument {
	sources := make([]SourceDocument, 0, len(results))
	for _, r := range results {
		content := r.Chunk.Content
		if runes := []rune(content); len(runes) > sourcePreviewLength {
			content = string(runes[:sourcePreviewLength]) + ellipsis
		}
		sources = append(sources, SourceDocument{
			Content: content,
			Section: r.Chunk.Section,
			Metadata: map[string]any{
				"score": r.Score,
			},
		})
	}
	return sources
}

// clampConfidence は信頼度を [0.0, 1.0] に収める
func clampConfidence(v float64) float64 {
	if v < 0.0 {
		return 0.0
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}
