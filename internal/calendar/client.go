package calendar

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/hitoshi/classcal/internal/model"
)

// ErrEventNotFound は対象イベントがカレンダー上に存在しないことを示す。
// 学生がイベントを手動削除した場合に更新操作で発生しうる。
var ErrEventNotFound = errors.New("calendar event not found")

// Client はカレンダーイベントの作成・更新を提供する。
// ドメインの時間範囲をGoogleカレンダーのイベント表現に変換し、
// API呼び出しにはタイムアウトを課す。
type Client struct {
	api        API
	logger     *slog.Logger
	calendarID string
	timeout    time.Duration
}

// NewClient はClientを生成する。timeoutが0以下の場合はデフォルトの10秒を使用する。
func NewClient(api API, logger *slog.Logger, calendarID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		api:        api,
		logger:     logger,
		calendarID: calendarID,
		timeout:    timeout,
	}
}

// CreateEvent はカレンダーイベントを作成し、IDと共有リンクを返す。
func (c *Client) CreateEvent(ctx context.Context, cred *model.Credential, summary, description string, tr model.EventTimeRange) (*model.CalendarEventLink, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	event := buildEvent(summary, description, tr)
	created, err := c.api.InsertEvent(ctx, cred.AccessToken, c.calendarID, event)
	if err != nil {
		return nil, c.classifyError(err, "insert")
	}

	c.logger.Info("カレンダーイベントを作成しました",
		slog.String("student", cred.Student),
		slog.String("event_id", created.Id),
	)

	return &model.CalendarEventLink{
		EventID:  created.Id,
		HTMLLink: created.HtmlLink,
	}, nil
}

// UpdateEvent は既存イベントを新しい内容で更新し、IDと共有リンクを返す。
// イベントがカレンダー上に存在しない場合はErrEventNotFoundを返す。
func (c *Client) UpdateEvent(ctx context.Context, cred *model.Credential, eventID, summary, description string, tr model.EventTimeRange) (*model.CalendarEventLink, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	event := buildEvent(summary, description, tr)
	updated, err := c.api.PatchEvent(ctx, cred.AccessToken, c.calendarID, eventID, event)
	if err != nil {
		return nil, c.classifyError(err, "patch")
	}

	return &model.CalendarEventLink{
		EventID:  updated.Id,
		HTMLLink: updated.HtmlLink,
	}, nil
}

// buildEvent はドメインの時間範囲をGoogleカレンダーのイベント表現に変換する。
// 終日イベントはDate、時刻付きイベントはDateTime+TimeZoneを使用する。
func buildEvent(summary, description string, tr model.EventTimeRange) *gcal.Event {
	event := &gcal.Event{
		Summary:     summary,
		Description: description,
	}
	if tr.AllDay {
		event.Start = &gcal.EventDateTime{Date: tr.Date}
		event.End = &gcal.EventDateTime{Date: tr.Date}
		return event
	}
	event.Start = &gcal.EventDateTime{
		DateTime: tr.Start.Format(time.RFC3339),
		TimeZone: tr.Timezone,
	}
	event.End = &gcal.EventDateTime{
		DateTime: tr.End.Format(time.RFC3339),
		TimeZone: tr.Timezone,
	}
	return event
}

// classifyError はGoogleカレンダーAPIのエラーをドメインエラーに分類する。
func (c *Client) classifyError(err error, op string) error {
	var ae *googleapi.Error
	if errors.As(err, &ae) && ae.Code == http.StatusNotFound {
		return ErrEventNotFound
	}

	c.logger.Error("カレンダーAPIの呼び出しに失敗しました",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	return model.NewUpstreamUnavailableError("calendar", err.Error())
}
