package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	googleRegistrationID     = "google"
	defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
)

// GoogleOAuthConfig はGoogle OAuthプロバイダーの設定。
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL     string
	TokenURL    string
	UserInfoURL string

	// HTTPClient はトークン交換とユーザー情報取得に使うクライアント。nilの場合はhttp.DefaultClient。
	HTTPClient *http.Client
}

// GoogleOAuthProvider はGoogle OAuth 2.0（認可コード + PKCE）による認証を提供する。
type GoogleOAuthProvider struct {
	oauth2Config *oauth2.Config
	userInfoURL  string
	httpClient   *http.Client
}

// NewGoogleOAuthProvider はGoogleOAuthProviderを生成する。
func NewGoogleOAuthProvider(config GoogleOAuthConfig) *GoogleOAuthProvider {
	endpoint := endpoints.Google
	if config.AuthURL != "" {
		endpoint.AuthURL = config.AuthURL
	}
	if config.TokenURL != "" {
		// 差し替えたエンドポイントではクライアント認証方式を自動判別させない
		endpoint.TokenURL = config.TokenURL
		endpoint.AuthStyle = oauth2.AuthStyleInParams
	}
	if config.UserInfoURL == "" {
		config.UserInfoURL = defaultGoogleUserInfoURL
	}

	return &GoogleOAuthProvider{
		oauth2Config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: config.UserInfoURL,
		httpClient:  config.HTTPClient,
	}
}

// NewAuthorizationRequest は新しいログイン試行用の認可リクエストを生成する。
// state、nonce、PKCEのcode_verifierは毎回ランダムに生成する。
func (p *GoogleOAuthProvider) NewAuthorizationRequest() (*AuthorizationRequest, error) {
	state, err := randomString(16)
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}
	nonce, err := randomString(16)
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	scopes := make([]string, len(p.oauth2Config.Scopes))
	copy(scopes, p.oauth2Config.Scopes)

	return &AuthorizationRequest{
		AuthorizationURI: p.oauth2Config.Endpoint.AuthURL,
		ClientID:         p.oauth2Config.ClientID,
		RedirectURI:      p.oauth2Config.RedirectURL,
		Scopes:           scopes,
		State:            state,
		CodeVerifier:     oauth2.GenerateVerifier(),
		Nonce:            nonce,
		RegistrationID:   googleRegistrationID,
		AdditionalParameters: map[string]string{
			"access_type": "online",
		},
		Attributes: map[string]string{
			"registration_id": googleRegistrationID,
		},
	}, nil
}

// AuthCodeURL は認可リクエストに対応するGoogleの認可URLを返す。
func (p *GoogleOAuthProvider) AuthCodeURL(req *AuthorizationRequest) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.S256ChallengeOption(req.CodeVerifier),
		oauth2.SetAuthURLParam("nonce", req.Nonce),
	}
	for k, v := range req.AdditionalParameters {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	return p.configFor(req).AuthCodeURL(req.State, opts...)
}

// googleUserInfo はGoogleのユーザー情報エンドポイントのレスポンス。
type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、ユーザー情報を取得する。
func (p *GoogleOAuthProvider) ExchangeCode(ctx context.Context, code string, req *AuthorizationRequest) (*OAuthUserInfo, error) {
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}

	cfg := p.configFor(req)
	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(req.CodeVerifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	userInfo, err := p.fetchUserInfo(ctx, cfg.Client(ctx, tok))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}

	return &OAuthUserInfo{
		ProviderUserID: userInfo.Sub,
		Email:          userInfo.Email,
		Name:           userInfo.Name,
		Provider:       googleRegistrationID,
	}, nil
}

// configFor は認可リクエストに記録したリダイレクトURIを使う設定を返す。
func (p *GoogleOAuthProvider) configFor(req *AuthorizationRequest) *oauth2.Config {
	if req == nil || req.RedirectURI == "" || req.RedirectURI == p.oauth2Config.RedirectURL {
		return p.oauth2Config
	}
	cfg := *p.oauth2Config
	cfg.RedirectURL = req.RedirectURI
	return &cfg
}

// fetchUserInfo はトークン付きクライアントでGoogleのユーザー情報を取得する。
func (p *GoogleOAuthProvider) fetchUserInfo(ctx context.Context, client *http.Client) (*googleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read user info response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var userInfo googleUserInfo
	if err := json.Unmarshal(body, &userInfo); err != nil {
		return nil, fmt.Errorf("failed to parse user info response: %w", err)
	}

	if userInfo.Sub == "" {
		return nil, fmt.Errorf("empty sub in user info response")
	}
	if userInfo.Email == "" {
		return nil, fmt.Errorf("empty email in user info response")
	}

	return &userInfo, nil
}

// randomString は暗号的に安全なランダム文字列（16進）を生成する。
func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// compile-time interface check
var _ OAuthProvider = (*GoogleOAuthProvider)(nil)
