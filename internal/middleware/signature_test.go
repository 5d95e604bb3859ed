package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func signBody(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func newSignatureTestHandler(secret string) (http.Handler, *string) {
	var seenBody string
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seenBody = string(b)
		w.WriteHeader(http.StatusOK)
	})
	return NewSignatureMiddleware(secret, logger)(inner), &seenBody
}

func TestSignatureMiddleware_ValidSignature(t *testing.T) {
	body := `{"action": "created"}`
	h, seenBody := newSignatureTestHandler("secret")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", signBody("secret", body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	// 検証後もハンドラーがボディを読めること
	if *seenBody != body {
		t.Errorf("ハンドラーに渡るボディ = %q, want %q", *seenBody, body)
	}
}

func TestSignatureMiddleware_InvalidSignature(t *testing.T) {
	body := `{"action": "created"}`
	h, _ := newSignatureTestHandler("secret")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", signBody("wrong-secret", body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestSignatureMiddleware_MissingSignature(t *testing.T) {
	h, _ := newSignatureTestHandler("secret")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestSignatureMiddleware_TamperedBody(t *testing.T) {
	h, _ := newSignatureTestHandler("secret")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"action": "deleted"}`))
	req.Header.Set("X-Hub-Signature-256", signBody("secret", `{"action": "created"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestSignatureMiddleware_NoSecretSkipsVerification(t *testing.T) {
	h, seenBody := newSignatureTestHandler("")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("シークレット未設定では素通しすべき: status = %d", rec.Code)
	}
	if *seenBody != `{}` {
		t.Errorf("ボディ = %q", *seenBody)
	}
}
