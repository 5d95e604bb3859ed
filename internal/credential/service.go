// Package credential は学生のOAuth資格情報の取得と期限切れ時の更新を提供する。
package credential

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/hitoshi/classcal/internal/model"
	"github.com/hitoshi/classcal/internal/store"
)

// TokenRefresher はリフレッシュトークンによるトークン更新のインターフェース。
// 本番実装はauth.GoogleOAuthProvider。
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// Service は使用可能な資格情報の解決を提供する。
// 期限切れの資格情報はリフレッシュトークンがあれば更新して永続化し、
// なければCredentialExpiredErrorで失敗する。
// 同一学生に対する更新と保存は相互排他で行う。
type Service struct {
	creds     store.CredentialStore
	refresher TokenRefresher

	mu    sync.Mutex
	locks map[string]*sync.Mutex // 学生ごとの排他ロック

	now func() time.Time // テスト用に差し替え可能
}

// NewService はServiceを生成する。
func NewService(creds store.CredentialStore, refresher TokenRefresher) *Service {
	return &Service{
		creds:     creds,
		refresher: refresher,
		locks:     make(map[string]*sync.Mutex),
		now:       time.Now,
	}
}

// EnsureValid は指定学生の期限内の資格情報を返す。
// 資格情報が存在しない場合はNotAuthenticatedError、
// 期限切れで更新できない場合はCredentialExpiredErrorを返す。
// 更新に成功した場合は新しいトークンをストアに書き戻してから返す。
func (s *Service) EnsureValid(ctx context.Context, student string) (*model.Credential, error) {
	lock := s.studentLock(student)
	lock.Lock()
	defer lock.Unlock()

	cred, err := s.creds.Find(ctx, student)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, model.NewNotAuthenticatedError(student)
	}

	if !cred.Expired(s.now()) {
		return cred, nil
	}

	if cred.RefreshToken == "" {
		return nil, model.NewCredentialExpiredError(student)
	}

	token, err := s.refresher.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		slog.Warn("トークンの更新に失敗しました",
			slog.String("student", student),
			slog.String("error", err.Error()),
		)
		return nil, model.NewCredentialExpiredError(student)
	}

	cred.AccessToken = token.AccessToken
	cred.Expiry = token.Expiry
	if token.RefreshToken != "" {
		// Googleはローテーション時のみ新しいリフレッシュトークンを返す
		cred.RefreshToken = token.RefreshToken
	}
	cred.UpdatedAt = s.now()

	if err := s.creds.Save(ctx, cred); err != nil {
		return nil, err
	}

	slog.Info("資格情報を更新しました", slog.String("student", student))
	return cred, nil
}

// studentLock は学生ごとの排他ロックを取得または作成する。
func (s *Service) studentLock(student string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[student]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[student] = lock
	}
	return lock
}
