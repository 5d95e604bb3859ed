// Package deadline は課題締切の正規化を提供する。
// 不均質な締切表現をカレンダーイベントの時間範囲に変換する。
package deadline

import (
	"time"

	"github.com/hitoshi/classcal/internal/model"
)

const dateOnlyLayout = "2006-01-02"

// Normalizer は締切文字列を正規化済みの時間範囲に変換する。
//
// 変換規則（優先順）:
//  1. 締切なし → 対象タイムゾーンの「今日」の終日イベント。
//     過去の実装には23:59の時刻付きイベントとする変種も存在したが、
//     本実装では終日イベントに統一する。
//  2. 日付のみ（10文字、時刻なし） → その日付の終日イベント。
//  3. ISO-8601のインスタント → 対象タイムゾーンに変換した時刻付きイベント。
//     終了時刻は開始時刻と同じ（締切は時点であり作業時間ではない）。
//     目に見えるブロックが欲しい場合はdisplayDurationで明示的に指定する。
//
// 不正な締切文字列はInvalidDeadlineErrorとなり、暗黙の補正は行わない。
type Normalizer struct {
	loc             *time.Location
	displayDuration time.Duration // 0の場合は終了時刻 == 開始時刻

	now func() time.Time // テスト用に差し替え可能
}

// NewNormalizer はNormalizerを生成する。
// timezoneはIANAタイムゾーン名（例: America/New_York）。
func NewNormalizer(timezone string, displayDuration time.Duration) (*Normalizer, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	return &Normalizer{
		loc:             loc,
		displayDuration: displayDuration,
		now:             time.Now,
	}, nil
}

// Normalize は締切文字列を時間範囲に変換する。空文字列は締切なしとして扱う。
func (n *Normalizer) Normalize(deadline string) (model.EventTimeRange, error) {
	if deadline == "" {
		// 締切なし: 対象タイムゾーンの今日の終日イベント
		today := n.now().In(n.loc).Format(dateOnlyLayout)
		return model.EventTimeRange{
			AllDay:   true,
			Date:     today,
			Timezone: n.loc.String(),
		}, nil
	}

	if len(deadline) == len(dateOnlyLayout) {
		d, err := time.Parse(dateOnlyLayout, deadline)
		if err != nil {
			return model.EventTimeRange{}, model.NewInvalidDeadlineError(deadline)
		}
		return model.EventTimeRange{
			AllDay:   true,
			Date:     d.Format(dateOnlyLayout),
			Timezone: n.loc.String(),
		}, nil
	}

	// Zサフィックスまたはオフセット付きのフルタイムスタンプ
	t, err := time.Parse(time.RFC3339, deadline)
	if err != nil {
		return model.EventTimeRange{}, model.NewInvalidDeadlineError(deadline)
	}

	start := t.In(n.loc)
	return model.EventTimeRange{
		AllDay:   false,
		Start:    start,
		End:      start.Add(n.displayDuration),
		Timezone: n.loc.String(),
	}, nil
}

// Location は正規化に使用するタイムゾーンを返す。
func (n *Normalizer) Location() *time.Location {
	return n.loc
}
