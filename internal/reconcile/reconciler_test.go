package reconcile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/classcal/internal/calendar"
	"github.com/hitoshi/classcal/internal/model"
	"github.com/hitoshi/classcal/internal/store"
)

// --- モック定義 ---

// mockCredResolver はCredentialResolverのテスト用モック。
type mockCredResolver struct {
	ensureValidFunc func(ctx context.Context, student string) (*model.Credential, error)
}

func (m *mockCredResolver) EnsureValid(ctx context.Context, student string) (*model.Credential, error) {
	if m.ensureValidFunc != nil {
		return m.ensureValidFunc(ctx, student)
	}
	return &model.Credential{Student: student, AccessToken: "token"}, nil
}

// mockNormalizer はDeadlineNormalizerのテスト用モック。
type mockNormalizer struct {
	normalizeFunc func(deadline string) (model.EventTimeRange, error)
}

func (m *mockNormalizer) Normalize(deadline string) (model.EventTimeRange, error) {
	if m.normalizeFunc != nil {
		return m.normalizeFunc(deadline)
	}
	return model.EventTimeRange{AllDay: true, Date: "2026-03-01"}, nil
}

// mockCalendar はCalendarServiceのテスト用モック。
type mockCalendar struct {
	createFunc func(ctx context.Context, cred *model.Credential, summary, description string, tr model.EventTimeRange) (*model.CalendarEventLink, error)
	updateFunc func(ctx context.Context, cred *model.Credential, eventID, summary, description string, tr model.EventTimeRange) (*model.CalendarEventLink, error)

	createCount int32
	updateCount int32
}

func (m *mockCalendar) CreateEvent(ctx context.Context, cred *model.Credential, summary, description string, tr model.EventTimeRange) (*model.CalendarEventLink, error) {
	n := atomic.AddInt32(&m.createCount, 1)
	if m.createFunc != nil {
		return m.createFunc(ctx, cred, summary, description, tr)
	}
	return &model.CalendarEventLink{EventID: fmt.Sprintf("evt-%d", n), HTMLLink: "https://calendar.example.com/evt"}, nil
}

func (m *mockCalendar) UpdateEvent(ctx context.Context, cred *model.Credential, eventID, summary, description string, tr model.EventTimeRange) (*model.CalendarEventLink, error) {
	atomic.AddInt32(&m.updateCount, 1)
	if m.updateFunc != nil {
		return m.updateFunc(ctx, cred, eventID, summary, description, tr)
	}
	return &model.CalendarEventLink{EventID: eventID, HTMLLink: "https://calendar.example.com/" + eventID}, nil
}

// mockSanitizer はTextSanitizerServiceのテスト用モック。
type mockSanitizer struct{}

func (m *mockSanitizer) Sanitize(raw string) string {
	return strings.ReplaceAll(strings.ReplaceAll(raw, "<", ""), ">", "")
}

// mockCollector はMetricsCollectorのテスト用モック。
type mockCollector struct {
	mu           sync.Mutex
	creates      int
	updates      int
	failureCodes []string
}

func (m *mockCollector) RecordReconcileCreate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
}

func (m *mockCollector) RecordReconcileUpdate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
}

func (m *mockCollector) RecordReconcileFailure(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failureCodes = append(m.failureCodes, code)
}

func (m *mockCollector) RecordUpstreamLatency(d time.Duration) {}
func (m *mockCollector) RecordWebhookDelivery(outcome string)  {}
func (m *mockCollector) RecordSweepRun(pairCount int)          {}
func (m *mockCollector) RecordCacheRefresh()                   {}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}

func newTestReconciler(cal *mockCalendar, mappings store.MappingStore) (*Reconciler, *mockCollector) {
	collector := &mockCollector{}
	r := NewReconciler(
		&mockCredResolver{}, &mockNormalizer{}, cal, mappings,
		&mockSanitizer{}, newTestLogger(), collector,
	)
	return r, collector
}

func testAssignment() *model.AssignmentDefinition {
	return &model.AssignmentDefinition{
		Slug:          "hw1",
		Title:         "Homework 1",
		Deadline:      "2026-03-01",
		AcceptedCount: 10,
	}
}

// --- Reconcileのテスト ---

func TestReconcile_CreatesEventAndMapping(t *testing.T) {
	cal := &mockCalendar{}
	mappings := store.NewMemoryMappingStore()
	r, collector := newTestReconciler(cal, mappings)

	link, err := r.Reconcile(context.Background(), "alice", testAssignment())
	if err != nil {
		t.Fatalf("Reconcile() がエラーを返した: %v", err)
	}
	if link.EventID == "" {
		t.Error("EventIDが返るべき")
	}

	m, _ := mappings.Find(context.Background(), "alice", "hw1")
	if m == nil {
		t.Fatal("マッピングが保存されるべき")
	}
	if m.EventID != link.EventID {
		t.Errorf("マッピングのEventID = %q, want %q", m.EventID, link.EventID)
	}
	if collector.creates != 1 {
		t.Errorf("作成メトリクス = %d, want 1", collector.creates)
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	cal := &mockCalendar{}
	mappings := store.NewMemoryMappingStore()
	r, collector := newTestReconciler(cal, mappings)

	first, err := r.Reconcile(context.Background(), "alice", testAssignment())
	if err != nil {
		t.Fatalf("1回目のReconcile() がエラーを返した: %v", err)
	}

	second, err := r.Reconcile(context.Background(), "alice", testAssignment())
	if err != nil {
		t.Fatalf("2回目のReconcile() がエラーを返した: %v", err)
	}

	if first.EventID != second.EventID {
		t.Errorf("同じ締切での再調停は同じイベントIDを返すべき: %q != %q", first.EventID, second.EventID)
	}
	if atomic.LoadInt32(&cal.createCount) != 1 {
		t.Errorf("イベント作成は1回だけであるべき: %d回", cal.createCount)
	}
	if atomic.LoadInt32(&cal.updateCount) != 1 {
		t.Errorf("2回目は更新になるべき: updateCount = %d", cal.updateCount)
	}
	if collector.creates != 1 || collector.updates != 1 {
		t.Errorf("メトリクス creates=%d updates=%d, want 1/1", collector.creates, collector.updates)
	}
}

func TestReconcile_AtMostOneMappingUnderConcurrency(t *testing.T) {
	cal := &mockCalendar{}
	mappings := store.NewMemoryMappingStore()
	r, _ := newTestReconciler(cal, mappings)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Reconcile(context.Background(), "alice", testAssignment()); err != nil {
				t.Errorf("Reconcile() がエラーを返した: %v", err)
			}
		}()
	}
	wg.Wait()

	all, _ := mappings.List(context.Background())
	if len(all) != 1 {
		t.Fatalf("同一ペアのマッピングは高々1件であるべき: %d件", len(all))
	}
	if atomic.LoadInt32(&cal.createCount) != 1 {
		t.Errorf("並行調停でもイベント作成は1回だけであるべき: %d回", cal.createCount)
	}
}

func TestReconcile_NotAuthenticated(t *testing.T) {
	cal := &mockCalendar{}
	mappings := store.NewMemoryMappingStore()
	collector := &mockCollector{}
	r := NewReconciler(
		&mockCredResolver{
			ensureValidFunc: func(ctx context.Context, student string) (*model.Credential, error) {
				return nil, model.NewNotAuthenticatedError(student)
			},
		},
		&mockNormalizer{}, cal, mappings,
		&mockSanitizer{}, newTestLogger(), collector,
	)

	_, err := r.Reconcile(context.Background(), "alice", testAssignment())
	if err == nil {
		t.Fatal("未認証の学生ではエラーを返すべき")
	}

	if atomic.LoadInt32(&cal.createCount) != 0 {
		t.Error("未認証の場合はカレンダーAPIを呼ばないべき")
	}
	if len(collector.failureCodes) != 1 || collector.failureCodes[0] != model.ErrCodeNotAuthenticated {
		t.Errorf("失敗メトリクスにエラーコードが記録されるべき: %v", collector.failureCodes)
	}
}

func TestReconcile_InvalidDeadline(t *testing.T) {
	cal := &mockCalendar{}
	mappings := store.NewMemoryMappingStore()
	collector := &mockCollector{}
	r := NewReconciler(
		&mockCredResolver{},
		&mockNormalizer{
			normalizeFunc: func(deadline string) (model.EventTimeRange, error) {
				return model.EventTimeRange{}, model.NewInvalidDeadlineError(deadline)
			},
		},
		cal, mappings,
		&mockSanitizer{}, newTestLogger(), collector,
	)

	if _, err := r.Reconcile(context.Background(), "alice", testAssignment()); err == nil {
		t.Fatal("不正な締切ではエラーを返すべき")
	}
	if atomic.LoadInt32(&cal.createCount) != 0 {
		t.Error("正規化失敗時はカレンダーAPIを呼ばないべき")
	}
}

func TestReconcile_RecreatesDeletedEvent(t *testing.T) {
	mappings := store.NewMemoryMappingStore()

	cal := &mockCalendar{
		updateFunc: func(ctx context.Context, cred *model.Credential, eventID, summary, description string, tr model.EventTimeRange) (*model.CalendarEventLink, error) {
			return nil, calendar.ErrEventNotFound
		},
		createFunc: func(ctx context.Context, cred *model.Credential, summary, description string, tr model.EventTimeRange) (*model.CalendarEventLink, error) {
			return &model.CalendarEventLink{EventID: "evt-new"}, nil
		},
	}

	r, _ := newTestReconciler(cal, mappings)

	// 既存マッピング（学生が手動削除したイベントを指している）
	_ = mappings.Save(context.Background(), &model.EventMapping{
		Student: "alice", Slug: "hw1", EventID: "evt-gone",
	})

	link, err := r.Reconcile(context.Background(), "alice", testAssignment())
	if err != nil {
		t.Fatalf("Reconcile() がエラーを返した: %v", err)
	}
	if link.EventID != "evt-new" {
		t.Errorf("削除済みイベントは作り直されるべき: EventID = %q", link.EventID)
	}

	m, _ := mappings.Find(context.Background(), "alice", "hw1")
	if m.EventID != "evt-new" {
		t.Errorf("マッピングが新しいイベントIDに差し替えられるべき: %q", m.EventID)
	}
}

func TestReconcile_CalendarFailureSurfacesPerPair(t *testing.T) {
	mappings := store.NewMemoryMappingStore()
	cal := &mockCalendar{
		createFunc: func(ctx context.Context, cred *model.Credential, summary, description string, tr model.EventTimeRange) (*model.CalendarEventLink, error) {
			return nil, model.NewUpstreamUnavailableError("calendar", "timeout")
		},
	}

	r, collector := newTestReconciler(cal, mappings)

	_, err := r.Reconcile(context.Background(), "alice", testAssignment())
	if err == nil {
		t.Fatal("カレンダーAPI失敗時はエラーを返すべき")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUpstreamUnavailable {
		t.Errorf("UpstreamUnavailableErrorが返るべき: %v", err)
	}

	// 作成に失敗した場合はマッピングを残さない
	m, _ := mappings.Find(context.Background(), "alice", "hw1")
	if m != nil {
		t.Errorf("失敗した作成のマッピングは保存されないべき: %+v", m)
	}
	if len(collector.failureCodes) != 1 {
		t.Errorf("失敗メトリクスが記録されるべき: %v", collector.failureCodes)
	}
}

func TestReconcile_SanitizesTitleInSummary(t *testing.T) {
	var gotSummary string
	cal := &mockCalendar{
		createFunc: func(ctx context.Context, cred *model.Credential, summary, description string, tr model.EventTimeRange) (*model.CalendarEventLink, error) {
			gotSummary = summary
			return &model.CalendarEventLink{EventID: "evt-1"}, nil
		},
	}

	r, _ := newTestReconciler(cal, store.NewMemoryMappingStore())

	a := testAssignment()
	a.Title = "<script>Homework 1</script>"
	if _, err := r.Reconcile(context.Background(), "alice", a); err != nil {
		t.Fatalf("Reconcile() がエラーを返した: %v", err)
	}
	if strings.Contains(gotSummary, "<") || strings.Contains(gotSummary, ">") {
		t.Errorf("件名にHTML断片が残ってはならない: %q", gotSummary)
	}
}
