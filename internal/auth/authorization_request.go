package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/blogman/internal/cookie"
)

const (
	// AuthorizationRequestCookieName は進行中の認可リクエストを保持するCookie名。
	AuthorizationRequestCookieName = "oauth2_auth_request"
	// authorizationRequestExpireSeconds は認可リクエストCookieの有効期間（5時間）。
	authorizationRequestExpireSeconds = 18000

	// LoginPath は認可リクエストが見つからない場合のリダイレクト先。
	LoginPath = "/login"
)

// AuthorizationRequest はOAuth2ログインをプロバイダーへのリダイレクト越しに
// 再開するために必要な状態。サーバー側には保存せず、Cookieでのみ往復する。
type AuthorizationRequest struct {
	AuthorizationURI     string
	ClientID             string
	RedirectURI          string
	Scopes               []string
	State                string
	CodeVerifier         string
	Nonce                string
	RegistrationID       string
	AdditionalParameters map[string]string
	Attributes           map[string]string
}

// AuthorizationRequestRepository は進行中の認可リクエストの保存・取得・削除を行う。
type AuthorizationRequestRepository interface {
	// TryLoad は認可リクエストを読み出す。存在しない場合はnil, nilを返す。
	TryLoad(r *http.Request) (*AuthorizationRequest, error)
	// Save は認可リクエストを保存する。nilの場合は削除する。
	Save(w http.ResponseWriter, r *http.Request, req *AuthorizationRequest) error
	// Remove は読み出した認可リクエストを返してから削除する。
	Remove(w http.ResponseWriter, r *http.Request) (*AuthorizationRequest, error)
	// RemoveCookies は読み出しを行わずに削除する。
	RemoveCookies(w http.ResponseWriter, r *http.Request)
}

// CookieAuthorizationRequestRepository は認可リクエストをCookieに保存する実装。
// 署名キーを指定した場合、Cookie値にHMACを付与して改ざんを検出する。
type CookieAuthorizationRequestRepository struct {
	codec  cookie.Codec[AuthorizationRequest]
	policy cookie.Policy
}

// NewCookieAuthorizationRequestRepository はCookieAuthorizationRequestRepositoryを生成する。
// signingKeyが空の場合は署名しない。
func NewCookieAuthorizationRequestRepository(signingKey []byte, policy cookie.Policy) *CookieAuthorizationRequestRepository {
	codec := cookie.NewCodec[AuthorizationRequest]()
	if len(signingKey) > 0 {
		codec = cookie.NewSignedCodec[AuthorizationRequest](signingKey)
	}
	return &CookieAuthorizationRequestRepository{codec: codec, policy: policy}
}

// TryLoad はCookieから認可リクエストを復元する。
// Cookieが無い場合はnil, nil、壊れている場合は*cookie.DecodeErrorを返す。
func (s *CookieAuthorizationRequestRepository) TryLoad(r *http.Request) (*AuthorizationRequest, error) {
	c, err := r.Cookie(AuthorizationRequestCookieName)
	if errors.Is(err, http.ErrNoCookie) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read authorization request cookie: %w", err)
	}

	req, err := s.codec.DecodeCookie(c)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// Load はTryLoadで読み出し、認可リクエストが無い場合は/loginへリダイレクトする。
// nil, nilが返った場合はレスポンスが書き込み済みなので、呼び出し側はそのまま戻ること。
func (s *CookieAuthorizationRequestRepository) Load(w http.ResponseWriter, r *http.Request) (*AuthorizationRequest, error) {
	req, err := s.TryLoad(r)
	if err != nil {
		return nil, err
	}
	if req == nil {
		RedirectToLogin(w, r)
		return nil, nil
	}
	return req, nil
}

// Save は認可リクエストをCookieに保存する。reqがnilの場合はCookieを削除する。
func (s *CookieAuthorizationRequestRepository) Save(w http.ResponseWriter, r *http.Request, req *AuthorizationRequest) error {
	if req == nil {
		s.RemoveCookies(w, r)
		return nil
	}

	value, err := s.codec.Encode(*req)
	if err != nil {
		return fmt.Errorf("failed to encode authorization request: %w", err)
	}
	s.policy.Add(w, AuthorizationRequestCookieName, value, authorizationRequestExpireSeconds)
	return nil
}

// Remove は破棄する認可リクエストを返してからCookieを削除する。
// 復号に失敗した場合もCookieは削除し、エラーを返す。
func (s *CookieAuthorizationRequestRepository) Remove(w http.ResponseWriter, r *http.Request) (*AuthorizationRequest, error) {
	req, err := s.TryLoad(r)
	s.RemoveCookies(w, r)
	return req, err
}

// RemoveCookies は認可リクエストCookieを削除する。
func (s *CookieAuthorizationRequestRepository) RemoveCookies(w http.ResponseWriter, r *http.Request) {
	s.policy.Delete(r, w, AuthorizationRequestCookieName)
}

// RedirectToLogin は/loginへ302リダイレクトする。このリクエストへの最後の書き込みになる。
func RedirectToLogin(w http.ResponseWriter, r *http.Request) {
	slog.Debug("no authorization request in flight, redirecting to login",
		slog.String("path", r.URL.Path),
	)
	http.Redirect(w, r, LoginPath, http.StatusFound)
}

// compile-time interface check
var _ AuthorizationRequestRepository = (*CookieAuthorizationRequestRepository)(nil)
