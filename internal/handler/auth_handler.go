package handler

import (
	"context"
	"log/slog"
	"net/http"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(student string) (string, error)
	HandleCallback(ctx context.Context, state, code string) (string, error)
}

// AuthHandler はGoogle OAuth認可フローのHTTPハンドラー。
// セッションは扱わない。認可された資格情報はサーバー側に保存され、
// 以降の同期はバックグラウンドで行われる。
type AuthHandler struct {
	service AuthServiceInterface
	logger  *slog.Logger
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger,
	}
}

// Login はGoogle OAuthフローを開始する。
// GET /auth/login?student=xxx
// stateに学生識別子を紐付けるため、studentクエリパラメータが必須。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	student := r.URL.Query().Get("student")
	if student == "" {
		http.Error(w, "student query parameter is required", http.StatusBadRequest)
		return
	}

	url, err := h.service.GetLoginURL(student)
	if err != nil {
		h.logger.Error("failed to build login url", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /auth/callback?code=xxx&state=yyy
// stateはサーバー側で発行済みのものと照合される（CSRF対策）。
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" {
		http.Error(w, "missing state parameter", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	student, err := h.service.HandleCallback(r.Context(), state, code)
	if err != nil {
		h.logger.Error("oauth callback failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"student": student,
		"status":  "connected",
	})
}
