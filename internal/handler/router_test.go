package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/classcal/internal/metrics"
	"github.com/hitoshi/classcal/internal/middleware"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	registry := prometheus.NewRegistry()
	_ = metrics.NewCollector(registry)

	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(120))
	t.Cleanup(rateLimiter.Stop)

	return NewRouter(&RouterDeps{
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rateLimiter,
		WebhookSecret:     "",
		Logger:            newTestLogger(),

		Orchestrator: &mockOrchestrator{},
		AuthService:  &mockAuthService{},

		Cache:    &mockCache{},
		Sweeper:  &mockSweeper{},
		Mappings: &mockMappingLister{},
		Students: &mockStudentLister{},

		Gatherer: registry,
	})
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("レスポンス = %s", rec.Body.String())
	}
}

func TestRouter_Metrics(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "classcal_") {
		t.Error("登録済みメトリクスが公開されるべき")
	}
}

func TestRouter_WebhookDispatch(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(repositoryPayload()))
	req.Header.Set("X-GitHub-Event", "repository")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_AuthLoginDispatch(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/login?student=alice", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want 307", rec.Code)
	}
}

func TestRouter_DebugRoutes(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		method string
		target string
		want   int
	}{
		{http.MethodGet, "/debug/assignments", http.StatusOK},
		{http.MethodGet, "/debug/mappings", http.StatusOK},
		{http.MethodGet, "/debug/students", http.StatusOK},
		{http.MethodPost, "/debug/sync", http.StatusOK},
		{http.MethodPost, "/debug/cache/invalidate", http.StatusNoContent},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.target, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("%s %s: status = %d, want %d", tt.method, tt.target, rec.Code, tt.want)
		}
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRouter_SecurityHeaders(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("セキュリティヘッダーが全ルートに適用されるべき")
	}
}
