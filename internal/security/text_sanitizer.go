// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService はWebhook経由で届く外部入力（リポジトリ名、課題タイトル）を
// サニタイズし、カレンダーイベントの件名・説明に埋め込まれるHTML断片を除去する。
// Googleカレンダーの説明欄はHTMLとして描画されるため、外部入力は
// プレーンテキストに落としてから使用する。
package security

import "github.com/microcosm-cc/bluemonday"

// TextSanitizerService は外部入力テキストのサニタイズ機能のインターフェースを定義する。
type TextSanitizerService interface {
	// Sanitize は入力からすべてのHTMLタグを除去したプレーンテキストを返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのStrictPolicy（全タグ除去）を保持し、スレッドセーフに動作する。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からすべてのHTMLタグを除去したプレーンテキストを返す。
func (s *textSanitizer) Sanitize(raw string) string {
	return s.policy.Sanitize(raw)
}
