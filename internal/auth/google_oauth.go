package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// calendarScope はカレンダーイベントの作成・更新に必要なスコープ。
const calendarScope = "https://www.googleapis.com/auth/calendar.events"

// GoogleOAuthConfig はGoogle OAuthプロバイダーの設定。
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なエンドポイント
	Endpoint oauth2.Endpoint
}

// GoogleOAuthProvider はGoogle OAuth 2.0によるカレンダーアクセス許可を提供する。
// 認可コード交換とリフレッシュトークンによるトークン更新を行う。
type GoogleOAuthProvider struct {
	config *oauth2.Config
}

// NewGoogleOAuthProvider はGoogleOAuthProviderを生成する。
func NewGoogleOAuthProvider(cfg GoogleOAuthConfig) *GoogleOAuthProvider {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = google.Endpoint
	}
	return &GoogleOAuthProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{calendarScope},
			Endpoint:     endpoint,
		},
	}
}

// AuthCodeURL はGoogle OAuthの認証URLを生成する。
// リフレッシュトークンを得るためaccess_type=offlineを指定し、
// 学生のGoogleアカウント選択を補助するためlogin_hintを付与する。
func (p *GoogleOAuthProvider) AuthCodeURL(state, loginHint string) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	}
	if loginHint != "" {
		opts = append(opts, oauth2.SetAuthURLParam("login_hint", loginHint))
	}
	return p.config.AuthCodeURL(state, opts...)
}

// Exchange は認可コードをトークンペアに交換する。
func (p *GoogleOAuthProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return token, nil
}

// Refresh はリフレッシュトークンで新しいアクセストークンを取得する。
func (p *GoogleOAuthProvider) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	ts := p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	return token, nil
}

// compile-time interface check
var _ OAuthProvider = (*GoogleOAuthProvider)(nil)
