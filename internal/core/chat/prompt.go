package chat

import (
	"fmt"
	"strings"

	"github.com/jinford/gamespec-rag/internal/core/chunk"
	"github.com/jinford/gamespec-rag/internal/core/conversation"
)

const (
	// systemPrompt は回答生成の基本指示
	systemPrompt = `あなたはゲーム「スゲリス・サーガ」の仕様書に詳しいアシスタントです。
与えられたコンテキスト情報を基に、ユーザーの質問に正確かつ簡潔に回答してください。

以下の点に注意してください：
1. コンテキストに含まれる情報のみを使用して回答すること
2. 推測や憶測は避け、確実な情報のみを提供すること
3. コンテキストに情報がない場合は、その旨を明確に伝えること
4. 日本語で自然な文章で回答すること`

	// historyBlockFormat は会話履歴をシステム指示に組み込むためのブロック
	historyBlockFormat = `

## これまでの会話履歴
以下はこのセッションの直近のやり取りです。回答の一貫性を保つため、前の質問と回答の内容を踏まえて回答してください。
%s`

	// humanPromptFormat はコンテキストと質問を埋め込むユーザープロンプト
	humanPromptFormat = `コンテキスト:
%s

質問: %s

回答:`

	// contextSectionFormat はチャンク1件をコンテキストに整形するテンプレート
	contextSectionFormat = "【%s】\n%s"

	// unknownSection はセクション情報がないチャンクに使うプレースホルダ
	unknownSection = "不明"

	// ellipsis は切り詰めの目印
	ellipsis = "..."
)

// NoResultsMessage は検索結果が0件だった場合の固定回答
const NoResultsMessage = "申し訳ございません。お尋ねの内容に関する情報が仕様書内で見つかりませんでした。"

// BuildContext は検索で得たチャンクをプロンプト用コンテキストに整形する。
// 整形結果が maxLength 文字を超える場合は maxLength 文字で切り詰め、
// 末尾に省略記号を付ける（結果は最大で maxLength+3 文字になる）。
func BuildContext(chunks []chunk.Chunk, maxLength int) string {
	sections := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		section := ch.Section
		if section == "" {
			section = unknownSection
		}
		sections = append(sections, fmt.Sprintf(contextSectionFormat, section, ch.Content))
	}
	return truncate(strings.Join(sections, "\n\n"), maxLength)
}

// BuildPrompt は履歴なしの生成用プロンプトを構築する
func BuildPrompt(question string, chunks []chunk.Chunk, maxContextLength int) (system, human string) {
	context := BuildContext(chunks, maxContextLength)
	return systemPrompt, fmt.Sprintf(humanPromptFormat, context, question)
}

// BuildPromptWithHistory は会話履歴をシステム指示に織り込んだプロンプトを
// 構築する。履歴は末尾 renderLimit 件だけを描画し、コンテキストの予算は
// 履歴の文字数ぶん減らして全体が maxContextLength に収まるようにする。
func BuildPromptWithHistory(question string, chunks []chunk.Chunk, history []conversation.HistoryEntry, renderLimit, maxContextLength int) (system, human string) {
	historyText := conversation.RenderHistory(history, renderLimit)

	budget := maxContextLength - len([]rune(historyText))
	if budget < 0 {
		budget = 0
	}
	context := BuildContext(chunks, budget)

	system = systemPrompt + fmt.Sprintf(historyBlockFormat, historyText)
	human = fmt.Sprintf(humanPromptFormat, context, question)
	return system, human
}

// truncate は文字数（rune数）ベースで max 文字に切り詰める
func truncate(s string, max int) string {
	if max < 0 {
		max = 0
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + ellipsis
}
