// Package calendar はGoogleカレンダーとの連携機能を提供する。
// イベントの作成・更新APIの薄いラッパーを含む。
package calendar

import (
	"context"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// API はGoogleカレンダーAPIの呼び出しインターフェース。
// 生成されたクライアントを直接使わず、この狭いインターフェースを挟むことで
// ネットワークなしでの調停ロジックのテストを可能にする。
type API interface {
	// InsertEvent はイベントを作成する。
	InsertEvent(ctx context.Context, accessToken, calendarID string, event *gcal.Event) (*gcal.Event, error)
	// PatchEvent は既存イベントを部分更新する。
	PatchEvent(ctx context.Context, accessToken, calendarID, eventID string, event *gcal.Event) (*gcal.Event, error)
}

// GoogleAPI はAPIの本番実装。
// 呼び出しごとに学生のアクセストークンでcalendar.Serviceを構築する。
// トークンの鮮度はcredential.Serviceが事前に保証している。
type GoogleAPI struct{}

// NewGoogleAPI はGoogleAPIを生成する。
func NewGoogleAPI() *GoogleAPI {
	return &GoogleAPI{}
}

func (a *GoogleAPI) service(ctx context.Context, accessToken string) (*gcal.Service, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	return gcal.NewService(ctx, option.WithTokenSource(ts))
}

// InsertEvent はイベントを作成する。
func (a *GoogleAPI) InsertEvent(ctx context.Context, accessToken, calendarID string, event *gcal.Event) (*gcal.Event, error) {
	svc, err := a.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return svc.Events.Insert(calendarID, event).Context(ctx).Do()
}

// PatchEvent は既存イベントを部分更新する。
func (a *GoogleAPI) PatchEvent(ctx context.Context, accessToken, calendarID, eventID string, event *gcal.Event) (*gcal.Event, error) {
	svc, err := a.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return svc.Events.Patch(calendarID, eventID, event).Context(ctx).Do()
}

// compile-time interface check
var _ API = (*GoogleAPI)(nil)
