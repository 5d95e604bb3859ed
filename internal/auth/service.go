// Package auth はGoogleカレンダーへのアクセス許可フローを提供する。
// 学生識別子はOAuthのstateパラメータを通して往復させる。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/hitoshi/classcal/internal/model"
	"github.com/hitoshi/classcal/internal/store"
)

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// 本番実装はGoogleだが、テストでは差し替え可能。
type OAuthProvider interface {
	// AuthCodeURL はOAuth認証URLを生成する。
	AuthCodeURL(state, loginHint string) string
	// Exchange は認可コードをトークンペアに交換する。
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	// Refresh はリフレッシュトークンで新しいアクセストークンを取得する。
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// ServiceConfig は認可フローサービスの設定。
type ServiceConfig struct {
	StateTTL time.Duration // stateエントリの有効期間
}

// pendingState は発行済みstateと対応する学生識別子を表す。
type pendingState struct {
	student   string
	expiresAt time.Time
}

// Service はOAuth認可フローのビジネスロジックを提供する。
// 発行したstateをプロセス内で保持し、コールバック時に1回だけ消費する。
type Service struct {
	oauth  OAuthProvider
	creds  store.CredentialStore
	config ServiceConfig

	mu     sync.Mutex
	states map[string]pendingState

	now func() time.Time // テスト用に差し替え可能
}

// NewService はServiceを生成する。
func NewService(oauth OAuthProvider, creds store.CredentialStore, config ServiceConfig) *Service {
	if config.StateTTL <= 0 {
		config.StateTTL = 10 * time.Minute
	}
	return &Service{
		oauth:  oauth,
		creds:  creds,
		config: config,
		states: make(map[string]pendingState),
		now:    time.Now,
	}
}

// GetLoginURL は学生用のGoogle認証URLを生成する。
// stateには学生識別子を紐付けて保持し、コールバックで照合する。
func (s *Service) GetLoginURL(student string) (string, error) {
	if student == "" {
		return "", fmt.Errorf("student is required")
	}

	state := uuid.New().String()

	s.mu.Lock()
	s.pruneLocked()
	s.states[state] = pendingState{
		student:   student,
		expiresAt: s.now().Add(s.config.StateTTL),
	}
	s.mu.Unlock()

	return s.oauth.AuthCodeURL(state, student), nil
}

// HandleCallback はOAuthコールバックを処理し、資格情報を保存する。
// stateは1回だけ消費され、期限切れ・未発行のstateは拒否される。
// 学生が再認可した場合は既存の資格情報を上書きする。
func (s *Service) HandleCallback(ctx context.Context, state, code string) (string, error) {
	s.mu.Lock()
	pending, ok := s.states[state]
	if ok {
		delete(s.states, state)
	}
	s.mu.Unlock()

	if !ok || s.now().After(pending.expiresAt) {
		return "", fmt.Errorf("unknown or expired oauth state")
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	cred := &model.Credential{
		Student:      pending.student,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
		UpdatedAt:    s.now(),
	}
	if err := s.creds.Save(ctx, cred); err != nil {
		return "", fmt.Errorf("failed to save credential: %w", err)
	}

	slog.Info("student connected",
		slog.String("student", pending.student),
		slog.Bool("has_refresh_token", token.RefreshToken != ""),
	)

	return pending.student, nil
}

// pruneLocked は期限切れのstateエントリを削除する。呼び出し元がロックを保持する。
func (s *Service) pruneLocked() {
	now := s.now()
	for state, pending := range s.states {
		if now.After(pending.expiresAt) {
			delete(s.states, state)
		}
	}
}
