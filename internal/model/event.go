package model

import "time"

// EventTimeRange は正規化済みのカレンダーイベント時間範囲を表す。
// AllDayがtrueの場合はDateのみ有効、falseの場合はStart/End/Timezoneが有効。
type EventTimeRange struct {
	AllDay   bool
	Date     string // 終日イベントの日付（YYYY-MM-DD）
	Start    time.Time
	End      time.Time
	Timezone string // IANAタイムゾーン名（例: America/New_York）
}

// EventMapping は（学生, 課題スラグ）ペアとカレンダーイベントIDの対応を表す。
// 同一ペアに対するエントリは常に高々1件であり、これが重複イベント作成を防ぐ。
type EventMapping struct {
	Student   string
	Slug      string
	EventID   string
	HTMLLink  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CalendarEventLink は作成・更新されたカレンダーイベントへの参照を表す。
type CalendarEventLink struct {
	EventID  string
	HTMLLink string
}

// RepositoryEvent はGitHub Webhookから抽出したリポジトリイベントを表す。
type RepositoryEvent struct {
	Action     string // "created" のみ同期対象
	RepoName   string
	OwnerLogin string
	CreatedAt  string // GitHubのタイムスタンプ（RFC3339）
}
