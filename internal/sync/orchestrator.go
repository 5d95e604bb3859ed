package sync

import (
	"context"
	"log/slog"
	stdsync "sync"

	"github.com/hitoshi/classcal/internal/assignment"
	"github.com/hitoshi/classcal/internal/metrics"
	"github.com/hitoshi/classcal/internal/model"
	"github.com/hitoshi/classcal/internal/store"
)

// PairReconciler は（学生, 課題）ペアの調停インターフェース。
type PairReconciler interface {
	// Reconcile はペアのカレンダー状態を現在の締切に一致させる。
	Reconcile(ctx context.Context, student string, a *model.AssignmentDefinition) (*model.CalendarEventLink, error)
}

// WebhookOutcome はWebhook処理の結果区分。
type WebhookOutcome string

const (
	// OutcomeSynced はカレンダーイベントの作成または更新が行われたことを示す。
	OutcomeSynced WebhookOutcome = "synced"
	// OutcomeSkipped は同期対象外のイベントとして処理されなかったことを示す。
	OutcomeSkipped WebhookOutcome = "skipped"
)

// WebhookResult はWebhook処理1回の結果を表す。
// スキップ（同期対象外）と成功を呼び出し元が区別できるようにする。
type WebhookResult struct {
	Outcome  WebhookOutcome
	Reason   string // Outcome == OutcomeSkipped の場合のみ有効
	Student  string
	Slug     string
	EventID  string
	HTMLLink string
}

// Orchestrator はWebhookイベントと定期スイープの2つの同期経路を編成する。
// Webhook経路は単一ペアの即時同期、スイープ経路は
// 資格情報登録済みの全学生×受諾済み全課題の横断同期を行う。
type Orchestrator struct {
	cache          *assignment.Cache
	creds          store.CredentialStore
	reconciler     PairReconciler
	identity       IdentityExtractor
	logger         *slog.Logger
	collector      metrics.MetricsCollector
	maxConcurrency int
}

// NewOrchestrator はOrchestratorの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値4を使用する。
func NewOrchestrator(
	cache *assignment.Cache,
	creds store.CredentialStore,
	reconciler PairReconciler,
	identity IdentityExtractor,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
	maxConcurrency int,
) *Orchestrator {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &Orchestrator{
		cache:          cache,
		creds:          creds,
		reconciler:     reconciler,
		identity:       identity,
		logger:         logger,
		collector:      collector,
		maxConcurrency: maxConcurrency,
	}
}

// HandleWebhook はリポジトリ作成イベントを単一ペアの同期に変換する。
// 作成以外のアクションは同期せずスキップ結果を返す。
// リポジトリ名がどの課題とも一致しない場合はAssignmentNotFoundErrorを返す。
func (o *Orchestrator) HandleWebhook(ctx context.Context, event *model.RepositoryEvent) (*WebhookResult, error) {
	if event.Action != "created" {
		o.logger.Info("同期対象外のWebhookイベントをスキップします",
			slog.String("action", event.Action),
			slog.String("repo", event.RepoName),
		)
		o.collector.RecordWebhookDelivery("skipped")
		return &WebhookResult{
			Outcome: OutcomeSkipped,
			Reason:  "action is not created",
		}, nil
	}

	assignments, err := o.cache.GetAssignments(ctx)
	if err != nil {
		o.collector.RecordWebhookDelivery("error")
		return nil, err
	}

	a := assignment.Match(event.RepoName, assignments)
	if a == nil {
		o.logger.Warn("リポジトリ名に一致する課題がありません",
			slog.String("repo", event.RepoName),
		)
		o.collector.RecordWebhookDelivery("unmatched")
		return nil, model.NewAssignmentNotFoundError(event.RepoName)
	}

	if !a.Accepted() {
		// キャッシュ上の受諾数がまだ0の課題は次回スイープに委ねる
		o.logger.Info("未受諾の課題のためスキップします",
			slog.String("repo", event.RepoName),
			slog.String("slug", a.Slug),
		)
		o.collector.RecordWebhookDelivery("skipped")
		return &WebhookResult{
			Outcome: OutcomeSkipped,
			Reason:  "assignment has no accepted submissions",
			Slug:    a.Slug,
		}, nil
	}

	student, err := o.identity.Extract(event, a)
	if err != nil {
		o.collector.RecordWebhookDelivery("error")
		return nil, err
	}

	link, err := o.reconciler.Reconcile(ctx, student, a)
	if err != nil {
		o.collector.RecordWebhookDelivery("error")
		return nil, err
	}

	o.collector.RecordWebhookDelivery("synced")
	return &WebhookResult{
		Outcome:  OutcomeSynced,
		Student:  student,
		Slug:     a.Slug,
		EventID:  link.EventID,
		HTMLLink: link.HTMLLink,
	}, nil
}

// RunSweep は資格情報登録済みの全学生×受諾済み全課題を1回横断同期する。
// semaphoreパターンで最大並列数を制御し、ペア単位の失敗は記録して続行する
// （1ペアの失敗が他のペアの同期を妨げない）。
// 戻り値は処理したペア数。課題一覧や学生一覧の取得失敗のみエラーを返す。
func (o *Orchestrator) RunSweep(ctx context.Context) (int, error) {
	students, err := o.creds.ListStudents(ctx)
	if err != nil {
		return 0, err
	}

	assignments, err := o.cache.GetAssignments(ctx)
	if err != nil {
		return 0, err
	}

	accepted := make([]*model.AssignmentDefinition, 0, len(assignments))
	for _, a := range assignments {
		if a.Accepted() {
			accepted = append(accepted, a)
		}
	}

	pairCount := len(students) * len(accepted)
	o.collector.RecordSweepRun(pairCount)

	if pairCount == 0 {
		o.logger.Info("スイープ対象のペアはありません")
		return 0, nil
	}

	o.logger.Info("スイープを開始します",
		slog.Int("student_count", len(students)),
		slog.Int("assignment_count", len(accepted)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, o.maxConcurrency)
	var wg stdsync.WaitGroup

	for _, student := range students {
		for _, a := range accepted {
			wg.Add(1)
			sem <- struct{}{} // semaphore取得（ブロック）

			go func(student string, a *model.AssignmentDefinition) {
				defer wg.Done()
				defer func() { <-sem }() // semaphore解放

				if _, err := o.reconciler.Reconcile(ctx, student, a); err != nil {
					o.logger.Error("ペアの同期に失敗しました",
						slog.String("student", student),
						slog.String("slug", a.Slug),
						slog.String("error", err.Error()),
					)
				}
			}(student, a)
		}
	}

	wg.Wait()

	o.logger.Info("スイープが完了しました",
		slog.Int("pair_count", pairCount),
	)

	return pairCount, nil
}
