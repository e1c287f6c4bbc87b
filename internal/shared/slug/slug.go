// Package slug provides deterministic slug generation for category names.
package slug

import (
	"strings"
	"unicode"
)

// Make は表示用のカテゴリ名から安定したスラッグIDを生成します。
// 例: "Layer 1 (L1)" -> "layer-1"
//
// 変換ルール:
//   - 括弧書きの補足（"(L1)" など）を除去
//   - 小文字化
//   - 英数字以外の連続を単一の "-" に置換
//   - 先頭・末尾の "-" を除去
func Make(name string) string {
	name = stripParenthetical(name)
	name = strings.ToLower(strings.TrimSpace(name))

	var b strings.Builder
	lastDash := true // 先頭のダッシュを抑制
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// stripParenthetical はネストしていない括弧書きの区間を取り除きます。
func stripParenthetical(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
