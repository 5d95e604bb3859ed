package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/classcal/internal/metrics"
	"github.com/hitoshi/classcal/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	WebhookSecret     string
	Logger            *slog.Logger

	// Webhook
	Orchestrator WebhookOrchestratorInterface

	// 認証
	AuthService AuthServiceInterface

	// デバッグ
	Cache    AssignmentCacheInterface
	Sweeper  SweepTriggerInterface
	Mappings MappingListerInterface
	Students StudentListerInterface

	// メトリクス
	Gatherer prometheus.Gatherer
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → Recovery → SecurityHeaders → Logging → RateLimit
//
// Webhookルートには追加で署名検証ミドルウェアを適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(deps.RateLimiter.Middleware())

	webhookHandler := NewWebhookHandler(deps.Orchestrator, deps.Logger)
	authHandler := NewAuthHandler(deps.AuthService, deps.Logger)
	debugHandler := NewDebugHandler(deps.Cache, deps.Sweeper, deps.Mappings, deps.Students, deps.Logger)

	// Webhook受信（署名検証付き）
	r.With(middleware.NewSignatureMiddleware(deps.WebhookSecret, deps.Logger)).
		Post("/webhook", webhookHandler.Receive)

	// OAuthフロー
	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", authHandler.Login)
		r.Get("/callback", authHandler.Callback)
	})

	// 運用・デバッグ
	r.Route("/debug", func(r chi.Router) {
		r.Get("/assignments", debugHandler.ListAssignments)
		r.Get("/mappings", debugHandler.ListMappings)
		r.Get("/students", debugHandler.ListStudents)
		r.Post("/sync", debugHandler.TriggerSync)
		r.Post("/cache/invalidate", debugHandler.InvalidateCache)
	})

	// ヘルスチェック
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Prometheusスクレイプ
	r.Handle("/metrics", metrics.Handler(deps.Gatherer))

	return r
}
