// Package sync はWebhookイベントと定期スイープによる締切同期の編成を提供する。
// オーケストレータ、学生ID抽出、スイープスケジューラを含む。
package sync

import (
	"fmt"
	"strings"

	"github.com/hitoshi/classcal/internal/config"
	"github.com/hitoshi/classcal/internal/model"
)

// IdentityExtractor はリポジトリイベントから学生IDを抽出するインターフェース。
// Classroomの構成（個人リポジトリかオーガニゼーション配下か）によって
// 学生IDの現れる場所が異なるため、抽出戦略を設定で切り替えられるようにする。
type IdentityExtractor interface {
	// Extract はイベントと一致した課題から学生IDを返す。
	// 抽出できない場合はInvalidEventPayloadErrorを返す。
	Extract(event *model.RepositoryEvent, a *model.AssignmentDefinition) (string, error)
}

// NewIdentityExtractor はIDENTITY_SOURCE設定に対応する抽出器を返す。
func NewIdentityExtractor(source string) (IdentityExtractor, error) {
	switch source {
	case config.IdentitySourceOwner:
		return &OwnerExtractor{}, nil
	case config.IdentitySourceRepoSuffix:
		return &RepoSuffixExtractor{}, nil
	default:
		return nil, fmt.Errorf("未知のIDENTITY_SOURCEです: %s", source)
	}
}

// OwnerExtractor はリポジトリのオーナーログインを学生IDとして使用する。
// 学生の個人アカウント配下にリポジトリが作られるClassroom構成向け。
type OwnerExtractor struct{}

// Extract はイベントのオーナーログインを返す。
func (e *OwnerExtractor) Extract(event *model.RepositoryEvent, _ *model.AssignmentDefinition) (string, error) {
	if event.OwnerLogin == "" {
		return "", model.NewInvalidEventPayloadError("owner login is empty")
	}
	return event.OwnerLogin, nil
}

// RepoSuffixExtractor はリポジトリ名の末尾（スラグの後ろ）を学生IDとして使用する。
// オーガニゼーション配下に「スラグ-学生名」形式でリポジトリが作られる構成向け。
type RepoSuffixExtractor struct{}

// Extract はリポジトリ名からスラグとハイフンを取り除いた残りを返す。
// リポジトリ名がスラグそのもの（テンプレートリポジトリ等）の場合は抽出失敗とする。
func (e *RepoSuffixExtractor) Extract(event *model.RepositoryEvent, a *model.AssignmentDefinition) (string, error) {
	name := strings.ToLower(event.RepoName)
	suffix := strings.TrimPrefix(name, a.Slug)
	suffix = strings.TrimPrefix(suffix, "-")
	if suffix == "" {
		return "", model.NewInvalidEventPayloadError(
			fmt.Sprintf("repository %s has no student suffix", event.RepoName))
	}
	return suffix, nil
}

// compile-time interface checks
var (
	_ IdentityExtractor = (*OwnerExtractor)(nil)
	_ IdentityExtractor = (*RepoSuffixExtractor)(nil)
)
