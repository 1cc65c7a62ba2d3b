package chat

import (
	"github.com/google/uuid"
	"github.com/samber/mo"
)

const (
	// DefaultMaxResults は検索結果件数のデフォルト値
	DefaultMaxResults = 3

	// DefaultMaxContextLength はプロンプトに埋め込むコンテキストの最大文字数
	DefaultMaxContextLength = 4000

	// DefaultHistoryRenderLimit はプロンプトに描画する履歴の最大件数
	DefaultHistoryRenderLimit = 10

	// sourcePreviewLength はレスポンスに含めるソース本文の最大文字数
	sourcePreviewLength = 300
)

// Params はチャット1ターンの入力を表す
type Params struct {
	SessionID  mo.Option[uuid.UUID] // 継続するセッション（未指定なら新規作成）
	Question   string               // ユーザーの質問文
	MaxResults int                  // 検索結果の最大件数（デフォルト: 3）
}

// SourceDocument は回答の根拠となったソース情報を表す
type SourceDocument struct {
	Content  string         `json:"content"`
	Section  string         `json:"section"`
	Metadata map[string]any `json:"metadata"`
}

// Result はチャット1ターンの出力を表す
type Result struct {
	Answer     string           `json:"answer"`
	Sources    []SourceDocument `json:"sources"`
	Confidence float64          `json:"confidence"`
	SessionID  uuid.UUID        `json:"sessionID"`
}
