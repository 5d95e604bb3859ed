package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/classcal/internal/model"
)

// NewSignatureMiddleware はGitHub Webhook署名（X-Hub-Signature-256）を検証する
// ミドルウェアを返す。署名はリクエストボディのHMAC-SHA256。
// secretが空の場合は検証を行わずに素通しする（署名未設定のClassroom構成向け）。
func NewSignatureMiddleware(secret string, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				WriteErrorResponse(w, http.StatusBadRequest,
					model.NewInvalidEventPayloadError("failed to read request body"))
				return
			}
			r.Body.Close()

			signature := r.Header.Get("X-Hub-Signature-256")
			if !verifySignature(secret, body, signature) {
				logger.Warn("Webhook署名の検証に失敗しました",
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusUnauthorized,
					model.NewInvalidEventPayloadError("invalid webhook signature"))
				return
			}

			// 検証のために読み切ったボディをハンドラー用に復元する
			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}

// verifySignature は「sha256=<hex>」形式の署名をタイミング攻撃耐性のある比較で検証する。
func verifySignature(secret string, body []byte, signature string) bool {
	const prefix = "sha256="
	if len(signature) <= len(prefix) || signature[:len(prefix)] != prefix {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature[len(prefix):]))
}
