// Package store は同期状態の永続化インターフェースを定義する。
// デフォルトはプロセス内メモリ実装で、PostgreSQL実装と差し替え可能。
package store

import (
	"context"

	"github.com/hitoshi/classcal/internal/model"
)

// CredentialStore は学生のOAuth資格情報の永続化インターフェース。
type CredentialStore interface {
	// Find は指定学生の資格情報を取得する。見つからない場合はnilを返す。
	Find(ctx context.Context, student string) (*model.Credential, error)

	// Save は資格情報を保存する。同一学生の既存エントリは上書きされる。
	Save(ctx context.Context, cred *model.Credential) error

	// ListStudents は資格情報が登録されている学生の一覧を返す。
	// スイープの対象集合を定める。
	ListStudents(ctx context.Context) ([]string, error)
}

// MappingStore は（学生, 課題スラグ）とカレンダーイベントIDの対応の永続化インターフェース。
// 同一ペアに対するエントリは常に高々1件。
type MappingStore interface {
	// Find は指定ペアのマッピングを取得する。見つからない場合はnilを返す。
	Find(ctx context.Context, student, slug string) (*model.EventMapping, error)

	// Save はマッピングを保存する。同一ペアの既存エントリは上書きされる。
	Save(ctx context.Context, mapping *model.EventMapping) error

	// List は全マッピングを返す。デバッグ用の読み取り専用ビュー。
	List(ctx context.Context) ([]*model.EventMapping, error)
}
