package credential

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/hitoshi/classcal/internal/model"
)

// --- モック定義 ---

// mockCredStore はCredentialStoreのテスト用モック。
type mockCredStore struct {
	findFunc         func(ctx context.Context, student string) (*model.Credential, error)
	saveFunc         func(ctx context.Context, cred *model.Credential) error
	listStudentsFunc func(ctx context.Context) ([]string, error)
}

func (m *mockCredStore) Find(ctx context.Context, student string) (*model.Credential, error) {
	if m.findFunc != nil {
		return m.findFunc(ctx, student)
	}
	return nil, nil
}

func (m *mockCredStore) Save(ctx context.Context, cred *model.Credential) error {
	if m.saveFunc != nil {
		return m.saveFunc(ctx, cred)
	}
	return nil
}

func (m *mockCredStore) ListStudents(ctx context.Context) ([]string, error) {
	if m.listStudentsFunc != nil {
		return m.listStudentsFunc(ctx)
	}
	return nil, nil
}

// mockRefresher はTokenRefresherのテスト用モック。
type mockRefresher struct {
	refreshFunc func(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

func (m *mockRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if m.refreshFunc != nil {
		return m.refreshFunc(ctx, refreshToken)
	}
	return nil, errors.New("not implemented")
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIErrorが返るべき: %v", err)
	}
	if apiErr.Code != code {
		t.Errorf("エラーコード = %q, want %q", apiErr.Code, code)
	}
}

// --- EnsureValidのテスト ---

func TestEnsureValid_NotAuthenticated(t *testing.T) {
	store := &mockCredStore{}
	s := NewService(store, &mockRefresher{})

	_, err := s.EnsureValid(context.Background(), "alice")
	if err == nil {
		t.Fatal("資格情報が未登録の場合はエラーを返すべき")
	}
	assertCode(t, err, model.ErrCodeNotAuthenticated)
}

func TestEnsureValid_ReturnsUnexpiredCredential(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &mockCredStore{
		findFunc: func(ctx context.Context, student string) (*model.Credential, error) {
			return &model.Credential{
				Student:     "alice",
				AccessToken: "token",
				Expiry:      now.Add(time.Hour),
			}, nil
		},
	}

	refreshCalled := false
	refresher := &mockRefresher{
		refreshFunc: func(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
			refreshCalled = true
			return nil, errors.New("should not be called")
		},
	}

	s := NewService(store, refresher)
	s.now = func() time.Time { return now }

	cred, err := s.EnsureValid(context.Background(), "alice")
	if err != nil {
		t.Fatalf("EnsureValid() がエラーを返した: %v", err)
	}
	if cred.AccessToken != "token" {
		t.Errorf("AccessToken = %q, want %q", cred.AccessToken, "token")
	}
	if refreshCalled {
		t.Error("期限内の資格情報ではリフレッシュしないべき")
	}
}

func TestEnsureValid_ZeroExpiryNeverExpires(t *testing.T) {
	store := &mockCredStore{
		findFunc: func(ctx context.Context, student string) (*model.Credential, error) {
			return &model.Credential{Student: "alice", AccessToken: "token"}, nil
		},
	}

	s := NewService(store, &mockRefresher{})
	cred, err := s.EnsureValid(context.Background(), "alice")
	if err != nil {
		t.Fatalf("EnsureValid() がエラーを返した: %v", err)
	}
	if cred.AccessToken != "token" {
		t.Errorf("有効期限ゼロ値の資格情報はそのまま返るべき: %+v", cred)
	}
}

func TestEnsureValid_ExpiredWithoutRefreshToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &mockCredStore{
		findFunc: func(ctx context.Context, student string) (*model.Credential, error) {
			return &model.Credential{
				Student:     "alice",
				AccessToken: "token",
				Expiry:      now.Add(-time.Hour),
			}, nil
		},
	}

	s := NewService(store, &mockRefresher{})
	s.now = func() time.Time { return now }

	_, err := s.EnsureValid(context.Background(), "alice")
	if err == nil {
		t.Fatal("リフレッシュトークンなしの期限切れはエラーを返すべき")
	}
	assertCode(t, err, model.ErrCodeCredentialExpired)
}

func TestEnsureValid_RefreshSuccess(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var saved *model.Credential

	store := &mockCredStore{
		findFunc: func(ctx context.Context, student string) (*model.Credential, error) {
			return &model.Credential{
				Student:      "alice",
				AccessToken:  "old-token",
				RefreshToken: "refresh-1",
				Expiry:       now.Add(-time.Hour),
			}, nil
		},
		saveFunc: func(ctx context.Context, cred *model.Credential) error {
			saved = cred
			return nil
		},
	}

	refresher := &mockRefresher{
		refreshFunc: func(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
			if refreshToken != "refresh-1" {
				t.Errorf("refreshToken = %q, want %q", refreshToken, "refresh-1")
			}
			return &oauth2.Token{
				AccessToken: "new-token",
				Expiry:      now.Add(time.Hour),
			}, nil
		},
	}

	s := NewService(store, refresher)
	s.now = func() time.Time { return now }

	cred, err := s.EnsureValid(context.Background(), "alice")
	if err != nil {
		t.Fatalf("EnsureValid() がエラーを返した: %v", err)
	}
	if cred.AccessToken != "new-token" {
		t.Errorf("AccessToken = %q, want %q", cred.AccessToken, "new-token")
	}
	if saved == nil {
		t.Fatal("更新後の資格情報はストアに書き戻されるべき")
	}
	if saved.AccessToken != "new-token" {
		t.Errorf("保存されたAccessToken = %q, want %q", saved.AccessToken, "new-token")
	}
	// ローテーションされていない場合は既存のリフレッシュトークンを維持する
	if saved.RefreshToken != "refresh-1" {
		t.Errorf("保存されたRefreshToken = %q, want %q", saved.RefreshToken, "refresh-1")
	}
}

func TestEnsureValid_RefreshTokenRotation(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var saved *model.Credential

	store := &mockCredStore{
		findFunc: func(ctx context.Context, student string) (*model.Credential, error) {
			return &model.Credential{
				Student:      "alice",
				RefreshToken: "refresh-1",
				Expiry:       now.Add(-time.Hour),
			}, nil
		},
		saveFunc: func(ctx context.Context, cred *model.Credential) error {
			saved = cred
			return nil
		},
	}

	refresher := &mockRefresher{
		refreshFunc: func(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
			return &oauth2.Token{
				AccessToken:  "new-token",
				RefreshToken: "refresh-2",
				Expiry:       now.Add(time.Hour),
			}, nil
		},
	}

	s := NewService(store, refresher)
	s.now = func() time.Time { return now }

	if _, err := s.EnsureValid(context.Background(), "alice"); err != nil {
		t.Fatalf("EnsureValid() がエラーを返した: %v", err)
	}
	if saved.RefreshToken != "refresh-2" {
		t.Errorf("ローテーションされたRefreshTokenが保存されるべき: %q", saved.RefreshToken)
	}
}

func TestEnsureValid_RefreshFailure(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &mockCredStore{
		findFunc: func(ctx context.Context, student string) (*model.Credential, error) {
			return &model.Credential{
				Student:      "alice",
				RefreshToken: "refresh-1",
				Expiry:       now.Add(-time.Hour),
			}, nil
		},
	}

	refresher := &mockRefresher{
		refreshFunc: func(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
			return nil, errors.New("invalid_grant")
		},
	}

	s := NewService(store, refresher)
	s.now = func() time.Time { return now }

	_, err := s.EnsureValid(context.Background(), "alice")
	if err == nil {
		t.Fatal("リフレッシュ失敗時はエラーを返すべき")
	}
	assertCode(t, err, model.ErrCodeCredentialExpired)
}
