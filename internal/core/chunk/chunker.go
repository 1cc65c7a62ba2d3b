package chunk

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Chunk は仕様書ドキュメントから切り出した検索単位を表す
type Chunk struct {
	Content    string // チャンク本文
	Section    string // 所属するレベル1セクションの見出し行（未出現なら空）
	Subsection string // 所属するレベル2サブセクションの見出し行（未出現なら空）
	Source     string // 元ドキュメントの識別子
}

// 見出し検出パターン。太字の章番号を伴う ## / ### のみをセクションとして扱う。
// 「# タイトル」「## 概要」「#### **4.1.1」のような行は対象外。
var (
	sectionPattern    = regexp.MustCompile(`^## \*\*\d+`)
	subsectionPattern = regexp.MustCompile(`^### \*\*\d+`)
)

const (
	// DefaultTargetSize はチャンクの目標文字数
	DefaultTargetSize = 1000

	// DefaultOverlap は再分割時に前チャンクと重複させる文字数
	DefaultOverlap = 200
)

// Chunker はドキュメント本文をセクション情報付きチャンクに分割します
type Chunker struct {
	targetSize int // 目標文字数（rune単位）
	overlap    int // 再分割時のオーバーラップ文字数（rune単位）
}

// NewChunker は新しいChunkerを作成します
func NewChunker(targetSize, overlap int) *Chunker {
	if targetSize <= 0 {
		targetSize = DefaultTargetSize
	}
	if overlap <= 0 {
		overlap = DefaultOverlap
	}
	return &Chunker{
		targetSize: targetSize,
		overlap:    overlap,
	}
}

// Chunk はドキュメント本文を行単位で走査し、見出しを跨いでセクション情報を
// 引き継ぎながらチャンクに分割します。行を追加した結果が目標文字数を超えた
// 場合、直前までの行を1チャンクとして閉じ、その行から新しいチャンクを開始
// します。閉じたチャンクには超過行を処理する前のセクション情報を付与します。
func (c *Chunker) Chunk(text, source string) []*Chunk {
	lines := strings.Split(text, "\n")

	var (
		chunks     []*Chunk
		buffer     []string
		section    string
		subsection string
	)

	for _, line := range lines {
		prevSection := section
		prevSubsection := subsection

		// セクション情報を更新。新しいセクションはサブセクションをリセットする
		if sectionPattern.MatchString(line) {
			section = strings.TrimSpace(line)
			subsection = ""
		} else if subsectionPattern.MatchString(line) {
			subsection = strings.TrimSpace(line)
		}

		buffer = append(buffer, line)

		if runeLen(strings.Join(buffer, "\n")) > c.targetSize {
			content := strings.Join(buffer[:len(buffer)-1], "\n")
			if strings.TrimSpace(content) != "" {
				chunks = append(chunks, &Chunk{
					Content:    content,
					Section:    prevSection,
					Subsection: prevSubsection,
					Source:     source,
				})
			}
			buffer = []string{line}
		}
	}

	// 最後のバッファを処理
	if len(buffer) > 0 {
		content := strings.Join(buffer, "\n")
		if strings.TrimSpace(content) != "" {
			chunks = append(chunks, &Chunk{
				Content:    content,
				Section:    section,
				Subsection: subsection,
				Source:     source,
			})
		}
	}

	return chunks
}

// SplitOversized は目標文字数を超えたままのチャンクを固定幅ウィンドウで
// 再分割します。見出しベースの分割では1行が目標文字数を超える場合にのみ
// 超過チャンクが残るため、その場合の後処理として呼び出し側が適用します。
// 分割後の各チャンクは元のセクション情報を引き継ぎます。
func (c *Chunker) SplitOversized(chunks []*Chunk) []*Chunk {
	step := c.targetSize - c.overlap
	if step <= 0 {
		step = c.targetSize
	}

	result := make([]*Chunk, 0, len(chunks))
	for _, ch := range chunks {
		runes := []rune(ch.Content)
		if len(runes) <= c.targetSize {
			result = append(result, ch)
			continue
		}

		for start := 0; start < len(runes); start += step {
			end := start + c.targetSize
			if end > len(runes) {
				end = len(runes)
			}
			window := string(runes[start:end])
			if strings.TrimSpace(window) != "" {
				result = append(result, &Chunk{
					Content:    window,
					Section:    ch.Section,
					Subsection: ch.Subsection,
					Source:     ch.Source,
				})
			}
			if end == len(runes) {
				break
			}
		}
	}
	return result
}

// runeLen は文字数（rune数）を返します。仕様書は日本語主体のためバイト長は使わない。
func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
