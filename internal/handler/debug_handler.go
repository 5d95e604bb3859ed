package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/classcal/internal/model"
)

// AssignmentCacheInterface はデバッグハンドラーが必要とするキャッシュインターフェース。
type AssignmentCacheInterface interface {
	GetAssignments(ctx context.Context) ([]*model.AssignmentDefinition, error)
	Snapshot() ([]*model.AssignmentDefinition, time.Time)
	Invalidate()
}

// SweepTriggerInterface はスイープの手動起動インターフェース。
type SweepTriggerInterface interface {
	RunSweep(ctx context.Context) (int, error)
}

// MappingListerInterface はマッピング一覧の読み取りインターフェース。
type MappingListerInterface interface {
	List(ctx context.Context) ([]*model.EventMapping, error)
}

// StudentListerInterface は接続済み学生一覧の読み取りインターフェース。
type StudentListerInterface interface {
	ListStudents(ctx context.Context) ([]string, error)
}

// DebugHandler は運用・デバッグ用の読み取りと手動トリガーのHTTPハンドラー。
type DebugHandler struct {
	cache    AssignmentCacheInterface
	sweeper  SweepTriggerInterface
	mappings MappingListerInterface
	students StudentListerInterface
	logger   *slog.Logger
}

// NewDebugHandler はDebugHandlerを生成する。
func NewDebugHandler(
	cache AssignmentCacheInterface,
	sweeper SweepTriggerInterface,
	mappings MappingListerInterface,
	students StudentListerInterface,
	logger *slog.Logger,
) *DebugHandler {
	return &DebugHandler{
		cache:    cache,
		sweeper:  sweeper,
		mappings: mappings,
		students: students,
		logger:   logger,
	}
}

// assignmentView は課題のデバッグ表示。
type assignmentView struct {
	Slug          string `json:"slug"`
	Title         string `json:"title"`
	Deadline      string `json:"deadline"`
	AcceptedCount int    `json:"accepted_count"`
}

// ListAssignments はキャッシュ経由で課題一覧を返す。
// GET /debug/assignments
// 鮮度窓を過ぎている場合は上流を再取得する。
func (h *DebugHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.cache.GetAssignments(r.Context())
	if err != nil {
		writeAPIError(w, h.logger, err)
		return
	}

	_, fetchedAt := h.cache.Snapshot()

	views := make([]assignmentView, 0, len(assignments))
	for _, a := range assignments {
		views = append(views, assignmentView{
			Slug:          a.Slug,
			Title:         a.Title,
			Deadline:      a.Deadline,
			AcceptedCount: a.AcceptedCount,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"assignments": views,
		"fetched_at":  fetchedAt,
	})
}

// mappingView はマッピングのデバッグ表示。
type mappingView struct {
	Student   string    `json:"student"`
	Slug      string    `json:"slug"`
	EventID   string    `json:"event_id"`
	HTMLLink  string    `json:"html_link"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListMappings は全マッピングを返す。
// GET /debug/mappings
func (h *DebugHandler) ListMappings(w http.ResponseWriter, r *http.Request) {
	mappings, err := h.mappings.List(r.Context())
	if err != nil {
		writeAPIError(w, h.logger, err)
		return
	}

	views := make([]mappingView, 0, len(mappings))
	for _, m := range mappings {
		views = append(views, mappingView{
			Student:   m.Student,
			Slug:      m.Slug,
			EventID:   m.EventID,
			HTMLLink:  m.HTMLLink,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"mappings": views,
	})
}

// ListStudents は資格情報が登録されている学生一覧を返す。
// GET /debug/students
func (h *DebugHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.students.ListStudents(r.Context())
	if err != nil {
		writeAPIError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"students": students,
	})
}

// TriggerSync はスイープを同期的に1回実行する。
// POST /debug/sync
func (h *DebugHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	count, err := h.sweeper.RunSweep(r.Context())
	if err != nil {
		writeAPIError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"pair_count": count,
	})
}

// InvalidateCache は課題キャッシュを無効化する。
// POST /debug/cache/invalidate
func (h *DebugHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.cache.Invalidate()
	w.WriteHeader(http.StatusNoContent)
}
