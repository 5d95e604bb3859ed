// Package reconcile は締切同期の調停ロジックを提供する。
// （学生, 課題）ペアごとにカレンダーイベントの作成・更新・スキップを決定し、
// ペアとイベントIDの対応を維持する中心的なステートマシン。
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/classcal/internal/calendar"
	"github.com/hitoshi/classcal/internal/metrics"
	"github.com/hitoshi/classcal/internal/model"
	"github.com/hitoshi/classcal/internal/security"
	"github.com/hitoshi/classcal/internal/store"
)

// CredentialResolver は使用可能な資格情報の解決インターフェース。
type CredentialResolver interface {
	// EnsureValid は期限内の資格情報を返す。必要ならリフレッシュして永続化する。
	EnsureValid(ctx context.Context, student string) (*model.Credential, error)
}

// DeadlineNormalizer は締切文字列の正規化インターフェース。
type DeadlineNormalizer interface {
	// Normalize は締切文字列を時間範囲に変換する。空文字列は締切なしとして扱う。
	Normalize(deadline string) (model.EventTimeRange, error)
}

// CalendarService はカレンダーイベント操作のインターフェース。
type CalendarService interface {
	CreateEvent(ctx context.Context, cred *model.Credential, summary, description string, tr model.EventTimeRange) (*model.CalendarEventLink, error)
	UpdateEvent(ctx context.Context, cred *model.Credential, eventID, summary, description string, tr model.EventTimeRange) (*model.CalendarEventLink, error)
}

// Reconciler は（学生, 課題）ペアの調停を行う。
//
// ペアの状態は2つ: マッピングなし（未同期）とマッピングあり（同期済み）。
// 未同期ペアはイベント作成後にマッピングを保存して同期済みに遷移し、
// 同期済みペアは既存イベントIDに対する更新のみを行う。
// 「確認してから作成または更新」の列はペア単位のロックで直列化され、
// 同一ペアに対するマッピングが2件以上になることはない。
type Reconciler struct {
	creds      CredentialResolver
	normalizer DeadlineNormalizer
	cal        CalendarService
	mappings   store.MappingStore
	sanitizer  security.TextSanitizerService
	logger     *slog.Logger
	collector  metrics.MetricsCollector
	pairLocks  *KeyedMutex

	now func() time.Time // テスト用に差し替え可能
}

// NewReconciler はReconcilerを生成する。
func NewReconciler(
	creds CredentialResolver,
	normalizer DeadlineNormalizer,
	cal CalendarService,
	mappings store.MappingStore,
	sanitizer security.TextSanitizerService,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
) *Reconciler {
	return &Reconciler{
		creds:      creds,
		normalizer: normalizer,
		cal:        cal,
		mappings:   mappings,
		sanitizer:  sanitizer,
		logger:     logger,
		collector:  collector,
		pairLocks:  NewKeyedMutex(),
		now:        time.Now,
	}
}

// Reconcile は（学生, 課題）ペアのカレンダー状態を現在の締切に一致させる。
// 同一の締切で繰り返し呼び出しても同じイベントIDが返り、新しいイベントは作られない。
// カレンダーAPIのエラーはここでは再試行せず、呼び出し元にペア単位の失敗として返す。
func (r *Reconciler) Reconcile(ctx context.Context, student string, a *model.AssignmentDefinition) (*model.CalendarEventLink, error) {
	start := r.now()

	cred, err := r.creds.EnsureValid(ctx, student)
	if err != nil {
		r.recordFailure(err)
		return nil, err
	}

	timeRange, err := r.normalizer.Normalize(a.Deadline)
	if err != nil {
		r.recordFailure(err)
		return nil, err
	}

	summary, description := r.eventContent(a)

	key := student + "/" + a.Slug
	r.pairLocks.Lock(key)
	defer r.pairLocks.Unlock(key)

	mapping, err := r.mappings.Find(ctx, student, a.Slug)
	if err != nil {
		return nil, err
	}

	var link *model.CalendarEventLink
	if mapping != nil {
		link, err = r.cal.UpdateEvent(ctx, cred, mapping.EventID, summary, description, timeRange)
		if errors.Is(err, calendar.ErrEventNotFound) {
			// 学生がイベントを手動削除したケース。作り直してマッピングを差し替える。
			r.logger.Warn("カレンダーイベントが見つからないため作り直します",
				slog.String("student", student),
				slog.String("slug", a.Slug),
				slog.String("event_id", mapping.EventID),
			)
			link, err = r.cal.CreateEvent(ctx, cred, summary, description, timeRange)
		}
		if err != nil {
			r.recordFailure(err)
			return nil, err
		}

		mapping.EventID = link.EventID
		mapping.HTMLLink = link.HTMLLink
		mapping.UpdatedAt = r.now()
		if err := r.mappings.Save(ctx, mapping); err != nil {
			return nil, err
		}

		r.collector.RecordReconcileUpdate()
		r.collector.RecordUpstreamLatency(r.now().Sub(start))
		return link, nil
	}

	link, err = r.cal.CreateEvent(ctx, cred, summary, description, timeRange)
	if err != nil {
		r.recordFailure(err)
		return nil, err
	}

	newMapping := &model.EventMapping{
		Student:   student,
		Slug:      a.Slug,
		EventID:   link.EventID,
		HTMLLink:  link.HTMLLink,
		CreatedAt: r.now(),
		UpdatedAt: r.now(),
	}
	if err := r.mappings.Save(ctx, newMapping); err != nil {
		return nil, err
	}

	r.logger.Info("ペアを同期済みに遷移しました",
		slog.String("student", student),
		slog.String("slug", a.Slug),
		slog.String("event_id", link.EventID),
	)

	r.collector.RecordReconcileCreate()
	r.collector.RecordUpstreamLatency(r.now().Sub(start))
	return link, nil
}

// eventContent はカレンダーイベントの件名と説明を組み立てる。
// Webhook経由で届いたタイトルにHTML断片が含まれていても除去する。
func (r *Reconciler) eventContent(a *model.AssignmentDefinition) (summary, description string) {
	title := r.sanitizer.Sanitize(a.Title)
	if title == "" {
		title = a.Slug
	}
	summary = fmt.Sprintf("%s 提出締切", title)
	description = fmt.Sprintf("課題 %s の提出締切（classcalにより自動同期）", a.Slug)
	return summary, description
}

// recordFailure はペア単位の失敗をエラーコード別に記録する。
func (r *Reconciler) recordFailure(err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		r.collector.RecordReconcileFailure(apiErr.Code)
		return
	}
	r.collector.RecordReconcileFailure("UNKNOWN")
}
