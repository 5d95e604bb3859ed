// Package app はアプリケーションの起動とワイヤリングを提供する。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/classcal/internal/assignment"
	"github.com/hitoshi/classcal/internal/auth"
	"github.com/hitoshi/classcal/internal/calendar"
	"github.com/hitoshi/classcal/internal/classroom"
	"github.com/hitoshi/classcal/internal/config"
	"github.com/hitoshi/classcal/internal/credential"
	"github.com/hitoshi/classcal/internal/database"
	"github.com/hitoshi/classcal/internal/deadline"
	"github.com/hitoshi/classcal/internal/handler"
	"github.com/hitoshi/classcal/internal/logger"
	"github.com/hitoshi/classcal/internal/metrics"
	"github.com/hitoshi/classcal/internal/middleware"
	"github.com/hitoshi/classcal/internal/reconcile"
	"github.com/hitoshi/classcal/internal/security"
	"github.com/hitoshi/classcal/internal/store"
	syncpkg "github.com/hitoshi/classcal/internal/sync"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openStores はストアドライバ設定に応じて資格情報・マッピングストアを構築する。
// postgresドライバの場合はDB接続を開き、呼び出し元がCloseする。
func openStores(cfg *config.Config) (store.CredentialStore, store.MappingStore, *sql.DB, error) {
	if cfg.StoreDriver == config.StoreDriverPostgres {
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established")
		return store.NewPostgresCredentialStore(db), store.NewPostgresMappingStore(db), db, nil
	}

	slog.Info("using in-memory stores",
		slog.String("store_driver", cfg.StoreDriver),
	)
	return store.NewMemoryCredentialStore(), store.NewMemoryMappingStore(), nil, nil
}

// syncPipeline は同期経路の依存一式。runServeとrunWorkerで共用する。
type syncPipeline struct {
	credStore    store.CredentialStore
	mappingStore store.MappingStore
	cache        *assignment.Cache
	orchestrator *syncpkg.Orchestrator
	scheduler    *syncpkg.Scheduler
	authService  *auth.Service
	registry     *prometheus.Registry
}

// buildSyncPipeline は同期経路の全依存関係をワイヤリングする。
func buildSyncPipeline(cfg *config.Config, credStore store.CredentialStore, mappingStore store.MappingStore) (*syncPipeline, error) {
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// OAuthと資格情報
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	authService := auth.NewService(oauthProvider, credStore, auth.ServiceConfig{
		StateTTL: cfg.OAuthStateTTL,
	})
	credService := credential.NewService(credStore, oauthProvider)

	// 課題一覧（Classroom APIクライアント + キャッシュ）
	classroomClient := classroom.NewClient(
		&http.Client{Timeout: cfg.UpstreamTimeout},
		slog.Default(), collector,
		cfg.ClassroomAPIURL, cfg.ClassroomID, cfg.ClassroomToken,
	)
	cache := assignment.NewCache(classroomClient, cfg.AssignmentCacheTTL)

	// 締切の正規化
	normalizer, err := deadline.NewNormalizer(cfg.Timezone, cfg.EventDisplayDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to build deadline normalizer: %w", err)
	}

	// カレンダー
	calClient := calendar.NewClient(
		calendar.NewGoogleAPI(), slog.Default(),
		cfg.CalendarID, cfg.UpstreamTimeout,
	)

	// 調停とオーケストレーション
	sanitizer := security.NewTextSanitizer()
	reconciler := reconcile.NewReconciler(
		credService, normalizer, calClient, mappingStore,
		sanitizer, slog.Default(), collector,
	)

	identity, err := syncpkg.NewIdentityExtractor(cfg.IdentitySource)
	if err != nil {
		return nil, err
	}

	orchestrator := syncpkg.NewOrchestrator(
		cache, credStore, reconciler, identity,
		slog.Default(), collector, cfg.SyncMaxConcurrent,
	)
	scheduler := syncpkg.NewScheduler(orchestrator, slog.Default())

	return &syncPipeline{
		credStore:    credStore,
		mappingStore: mappingStore,
		cache:        cache,
		orchestrator: orchestrator,
		scheduler:    scheduler,
		authService:  authService,
		registry:     registry,
	}, nil
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーとスイープスケジューラを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	credStore, mappingStore, db, err := openStores(cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	pipeline, err := buildSyncPipeline(cfg, credStore, mappingStore)
	if err != nil {
		return err
	}

	// ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral))
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		WebhookSecret:     cfg.WebhookSecret,
		Logger:            slog.Default(),

		Orchestrator: pipeline.orchestrator,
		AuthService:  pipeline.authService,

		Cache:    pipeline.cache,
		Sweeper:  pipeline.orchestrator,
		Mappings: pipeline.mappingStore,
		Students: pipeline.credStore,

		Gatherer: pipeline.registry,
	}

	router := handler.NewRouter(deps)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// スイープスケジューラをバックグラウンドで起動
	go pipeline.scheduler.Start(ctx, cfg.SyncInterval)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// スイープスケジューラのみを実行する。サーバープロセスと状態を共有するため
// postgresストアドライバが必須となる。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	if cfg.StoreDriver != config.StoreDriverPostgres {
		return fmt.Errorf("worker mode requires STORE_DRIVER=postgres (in-memory state cannot be shared across processes)")
	}

	credStore, mappingStore, db, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	pipeline, err := buildSyncPipeline(cfg, credStore, mappingStore)
	if err != nil {
		return err
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("sync_interval", cfg.SyncInterval),
		slog.Int("max_concurrent", cfg.SyncMaxConcurrent),
	)

	// スイープスケジューラをメインgoroutineで実行（ブロッキング）
	pipeline.scheduler.Start(ctx, cfg.SyncInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for migrate")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
