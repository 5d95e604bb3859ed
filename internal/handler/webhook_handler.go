// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/classcal/internal/middleware"
	"github.com/hitoshi/classcal/internal/model"
	"github.com/hitoshi/classcal/internal/sync"
)

// WebhookOrchestratorInterface はWebhookハンドラーが必要とするサービスインターフェース。
type WebhookOrchestratorInterface interface {
	HandleWebhook(ctx context.Context, event *model.RepositoryEvent) (*sync.WebhookResult, error)
}

// WebhookHandler はGitHub Webhook受信のHTTPハンドラー。
type WebhookHandler struct {
	orchestrator WebhookOrchestratorInterface
	logger       *slog.Logger
}

// NewWebhookHandler はWebhookHandlerを生成する。
func NewWebhookHandler(orchestrator WebhookOrchestratorInterface, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// webhookPayload はGitHub Webhookペイロードのうち同期に必要な部分。
type webhookPayload struct {
	Action     string `json:"action"`
	Repository struct {
		Name  string `json:"name"`
		Owner struct {
			Login string `json:"login"`
		} `json:"owner"`
		CreatedAt string `json:"created_at"`
	} `json:"repository"`
}

// webhookResponse はWebhook処理結果のレスポンス。
type webhookResponse struct {
	Outcome  string `json:"outcome"`
	Reason   string `json:"reason,omitempty"`
	Student  string `json:"student,omitempty"`
	Slug     string `json:"slug,omitempty"`
	EventID  string `json:"event_id,omitempty"`
	HTMLLink string `json:"html_link,omitempty"`
}

// Receive はGitHub Webhookの配信を処理する。
// POST /webhook
// repositoryイベント以外はスキップとして200を返す（GitHub側の再送を避ける）。
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	eventType := r.Header.Get("X-GitHub-Event")
	if eventType != "repository" {
		h.logger.Info("対象外のWebhookイベント種別をスキップします",
			slog.String("event_type", eventType),
		)
		writeJSON(w, http.StatusOK, webhookResponse{
			Outcome: string(sync.OutcomeSkipped),
			Reason:  "event type is not repository",
		})
		return
	}

	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidEventPayloadError("failed to decode JSON body"))
		return
	}
	if payload.Repository.Name == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidEventPayloadError("repository name is empty"))
		return
	}

	event := &model.RepositoryEvent{
		Action:     payload.Action,
		RepoName:   payload.Repository.Name,
		OwnerLogin: payload.Repository.Owner.Login,
		CreatedAt:  payload.Repository.CreatedAt,
	}

	result, err := h.orchestrator.HandleWebhook(r.Context(), event)
	if err != nil {
		writeAPIError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse{
		Outcome:  string(result.Outcome),
		Reason:   result.Reason,
		Student:  result.Student,
		Slug:     result.Slug,
		EventID:  result.EventID,
		HTMLLink: result.HTMLLink,
	})
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeAPIError はエラーをHTTPステータスに対応付けて統一フォーマットで返す。
func writeAPIError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		logger.Error("予期しないエラーが発生しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	middleware.WriteErrorResponse(w, statusForCode(apiErr.Code), apiErr)
}

// statusForCode はエラーコードをHTTPステータスコードに対応付ける。
func statusForCode(code string) int {
	switch code {
	case model.ErrCodeNotAuthenticated, model.ErrCodeCredentialExpired:
		return http.StatusConflict
	case model.ErrCodeUpstreamUnavailable:
		return http.StatusBadGateway
	case model.ErrCodeAssignmentNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidDeadline:
		return http.StatusUnprocessableEntity
	case model.ErrCodeInvalidEventPayload:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
