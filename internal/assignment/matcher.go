package assignment

import (
	"strings"

	"github.com/hitoshi/classcal/internal/model"
)

// Match はリポジトリ名に対応する課題を解決する。
// リポジトリ名を小文字化し、一覧順に走査して最初にスラグが前方一致した課題を返す。
// 一致する課題がない場合はnilを返す。
//
// 先勝ちのタイブレークのため、あるスラグが別のスラグの前方一致になっている場合
// （例: "hw1" と "hw1-extra"）、後者は決して選ばれない。これはClassroom側の
// スラグ設計に由来する既知の脆弱性であり、ここでは挙動として維持する。
// 未受諾課題（accepted_count < 1）の除外は呼び出し元で行う。
func Match(repoName string, assignments []*model.AssignmentDefinition) *model.AssignmentDefinition {
	name := strings.ToLower(repoName)
	for _, a := range assignments {
		if strings.HasPrefix(name, a.Slug) {
			return a
		}
	}
	return nil
}
