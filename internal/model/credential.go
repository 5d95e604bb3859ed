// Package model はドメインモデルを定義する。
package model

import "time"

// Credential は学生1人分のOAuthトークンペアを表す。
// 学生のGitHubユーザー名をキーとしてCredentialStoreが所有する。
// リフレッシュ時はトークンと有効期限がその場で更新される。
type Credential struct {
	Student      string // GitHubユーザー名
	AccessToken  string
	RefreshToken string
	Expiry       time.Time // ゼロ値は有効期限なしを意味する
	UpdatedAt    time.Time
}

// Expired は資格情報が指定時刻で期限切れかどうかを返す。
// 有効期限がゼロ値の場合は期限切れとしない。
func (c *Credential) Expired(now time.Time) bool {
	if c.Expiry.IsZero() {
		return false
	}
	return !c.Expiry.After(now)
}
