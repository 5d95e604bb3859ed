// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, upstream, validation, webhook, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeNotAuthenticated    = "NOT_AUTHENTICATED"
	ErrCodeCredentialExpired   = "CREDENTIAL_EXPIRED"
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrCodeAssignmentNotFound  = "ASSIGNMENT_NOT_FOUND"
	ErrCodeInvalidDeadline     = "INVALID_DEADLINE"
	ErrCodeInvalidEventPayload = "INVALID_EVENT_PAYLOAD"
)

// NewNotAuthenticatedError は未認証エラーを生成する。
// 対象学生のGoogle資格情報が保存されていない場合に使用する。
func NewNotAuthenticatedError(student string) *APIError {
	return &APIError{
		Code:     ErrCodeNotAuthenticated,
		Message:  fmt.Sprintf("学生のGoogle資格情報が登録されていません: %s", student),
		Category: "auth",
		Action:   "/auth/login からGoogleカレンダーへのアクセスを許可してください。",
	}
}

// NewCredentialExpiredError は資格情報期限切れエラーを生成する。
// リフレッシュトークンがない、またはリフレッシュに失敗した場合に使用する。
func NewCredentialExpiredError(student string) *APIError {
	return &APIError{
		Code:     ErrCodeCredentialExpired,
		Message:  fmt.Sprintf("学生のGoogle資格情報が期限切れで更新できません: %s", student),
		Category: "auth",
		Action:   "/auth/login から再度Googleカレンダーへのアクセスを許可してください。",
	}
}

// NewUpstreamUnavailableError は上流API呼び出し失敗エラーを生成する。
// Classroom/Calendar APIの失敗およびタイムアウトに使用する。
func NewUpstreamUnavailableError(upstream, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamUnavailable,
		Message:  fmt.Sprintf("上流API（%s）の呼び出しに失敗しました: %s", upstream, reason),
		Category: "upstream",
		Action:   "しばらく待ってから再度お試しください。次回スイープで自動的に再試行されます。",
	}
}

// NewAssignmentNotFoundError は課題未検出エラーを生成する。
// リポジトリ名にスラグが前方一致する課題が存在しない場合に使用する。
func NewAssignmentNotFoundError(repoName string) *APIError {
	return &APIError{
		Code:     ErrCodeAssignmentNotFound,
		Message:  fmt.Sprintf("リポジトリ名に一致する課題が見つかりません: %s", repoName),
		Category: "validation",
		Action:   "課題一覧の同期を待つか、リポジトリ名と課題スラグの対応を確認してください。",
	}
}

// NewInvalidDeadlineError は締切文字列不正エラーを生成する。
// 締切は暗黙に補正せず、必ずエラーとして報告する。
func NewInvalidDeadlineError(deadline string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDeadline,
		Message:  fmt.Sprintf("締切の形式が不正です: %s", deadline),
		Category: "validation",
		Action:   "締切はISO-8601形式（YYYY-MM-DD または RFC3339）で指定してください。",
	}
}

// NewInvalidEventPayloadError はWebhookペイロード不正エラーを生成する。
func NewInvalidEventPayloadError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEventPayload,
		Message:  fmt.Sprintf("Webhookペイロードが不正です: %s", reason),
		Category: "webhook",
		Action:   "GitHub側のWebhook設定（Content-Type: application/json）を確認してください。",
	}
}
