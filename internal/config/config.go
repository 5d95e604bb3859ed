package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ストアドライバの種別。
const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
)

// 学生識別子の抽出元の種別。
const (
	IdentitySourceOwner      = "owner"
	IdentitySourceRepoSuffix = "repo_suffix"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	OAuthStateTTL      time.Duration

	// Classroom
	ClassroomAPIURL string
	ClassroomID     string
	ClassroomToken  string

	// Calendar
	CalendarID           string
	Timezone             string
	EventDisplayDuration time.Duration

	// Sync
	SyncInterval       time.Duration
	AssignmentCacheTTL time.Duration
	UpstreamTimeout    time.Duration
	SyncMaxConcurrent  int
	IdentitySource     string

	// Webhook
	WebhookSecret string

	// Store
	StoreDriver string
	DatabaseURL string

	// Rate Limit
	RateLimitGeneral int

	// Server
	ServerPort string
	BaseURL    string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// DATABASE_URLはSTORE_DRIVER=postgresの場合のみ必須となる。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	if cfg.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}

	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	if cfg.GoogleClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}

	cfg.GoogleRedirectURL = os.Getenv("GOOGLE_REDIRECT_URL")
	if cfg.GoogleRedirectURL == "" {
		missing = append(missing, "GOOGLE_REDIRECT_URL")
	}

	cfg.ClassroomAPIURL = os.Getenv("CLASSROOM_API_URL")
	if cfg.ClassroomAPIURL == "" {
		missing = append(missing, "CLASSROOM_API_URL")
	}

	cfg.ClassroomID = os.Getenv("CLASSROOM_ID")
	if cfg.ClassroomID == "" {
		missing = append(missing, "CLASSROOM_ID")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.ClassroomToken = getEnvString("CLASSROOM_TOKEN", "")
	cfg.OAuthStateTTL = getEnvDuration("OAUTH_STATE_TTL", 10*time.Minute)
	cfg.CalendarID = getEnvString("CALENDAR_ID", "primary")
	cfg.Timezone = getEnvString("TIMEZONE", "America/New_York")
	cfg.EventDisplayDuration = getEnvDuration("EVENT_DISPLAY_DURATION", 0)
	cfg.SyncInterval = getEnvDuration("SYNC_INTERVAL", 10*time.Minute)
	cfg.AssignmentCacheTTL = getEnvDuration("ASSIGNMENT_CACHE_TTL", 600*time.Second)
	cfg.UpstreamTimeout = getEnvDuration("UPSTREAM_TIMEOUT", 10*time.Second)
	cfg.SyncMaxConcurrent = getEnvInt("SYNC_MAX_CONCURRENT", 4)
	cfg.IdentitySource = getEnvString("IDENTITY_SOURCE", IdentitySourceOwner)
	cfg.WebhookSecret = getEnvString("WEBHOOK_SECRET", "")
	cfg.StoreDriver = getEnvString("STORE_DRIVER", StoreDriverMemory)
	cfg.DatabaseURL = getEnvString("DATABASE_URL", "")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	if cfg.StoreDriver != StoreDriverMemory && cfg.StoreDriver != StoreDriverPostgres {
		return nil, fmt.Errorf("invalid STORE_DRIVER: %s (must be %q or %q)", cfg.StoreDriver, StoreDriverMemory, StoreDriverPostgres)
	}
	if cfg.StoreDriver == StoreDriverPostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
	}
	if cfg.IdentitySource != IdentitySourceOwner && cfg.IdentitySource != IdentitySourceRepoSuffix {
		return nil, fmt.Errorf("invalid IDENTITY_SOURCE: %s (must be %q or %q)", cfg.IdentitySource, IdentitySourceOwner, IdentitySourceRepoSuffix)
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
