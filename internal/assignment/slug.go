// Package assignment は課題一覧のキャッシュとリポジトリ名のマッチングを提供する。
package assignment

import "strings"

// Slugify は課題タイトルからスラグを導出する。
// 小文字化し、空白をハイフンに置換する。
func Slugify(title string) string {
	return strings.ReplaceAll(strings.ToLower(title), " ", "-")
}
