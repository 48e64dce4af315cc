// Package auth はOAuth2ログインフロー、トークン発行、認可チェックを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/blogman/internal/cookie"
	"github.com/hitoshi/blogman/internal/metrics"
	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/repository"
	"github.com/hitoshi/blogman/internal/token"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Provider       string // "google" 等
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// NewAuthorizationRequest は新しいログイン試行の認可リクエストを生成する。
	NewAuthorizationRequest() (*AuthorizationRequest, error)
	// AuthCodeURL はプロバイダーの認可画面のURLを返す。
	AuthCodeURL(req *AuthorizationRequest) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string, req *AuthorizationRequest) (*OAuthUserInfo, error)
}

// TokenProvider はトークンの発行と検証を行う。
type TokenProvider interface {
	GenerateToken(user *model.User, kind token.Kind, expiry time.Duration) (string, error)
	ParseToken(tokenString string) (*token.Claims, error)
}

// UserProvisioner はログインしたユーザーのレコードを用意する。
type UserProvisioner interface {
	Provision(ctx context.Context, email, nickname string) (*model.User, error)
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth         OAuthProvider
	authRequests  AuthorizationRequestRepository
	users         repository.UserRepository
	refreshTokens repository.RefreshTokenRepository
	tokens        TokenProvider
	provisioner   UserProvisioner
	success       *LoginSuccessHandler
	failure       *LoginFailureHandler
	metrics       metrics.MetricsCollector
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	authRequests AuthorizationRequestRepository,
	users repository.UserRepository,
	refreshTokens repository.RefreshTokenRepository,
	tokens TokenProvider,
	provisioner UserProvisioner,
	policy cookie.Policy,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		oauth:         oauth,
		authRequests:  authRequests,
		users:         users,
		refreshTokens: refreshTokens,
		tokens:        tokens,
		provisioner:   provisioner,
		success:       NewLoginSuccessHandler(users, refreshTokens, tokens, authRequests, policy, collector),
		failure:       NewLoginFailureHandler(authRequests, policy, collector),
		metrics:       collector,
	}
}

// BeginLogin は認可リクエストをCookieに保存し、プロバイダーの認可画面へリダイレクトする。
func (s *Service) BeginLogin(w http.ResponseWriter, r *http.Request) error {
	req, err := s.oauth.NewAuthorizationRequest()
	if err != nil {
		return fmt.Errorf("failed to create authorization request: %w", err)
	}
	if err := s.authRequests.Save(w, r, req); err != nil {
		return err
	}
	http.Redirect(w, r, s.oauth.AuthCodeURL(req), http.StatusFound)
	return nil
}

// CompleteLogin はプロバイダーからのコールバックを処理する。
//
// 認可リクエストが無ければ/loginへ、失敗時は/login?errorへリダイレクトする。
// エラーを返すのは成功処理が失敗した場合のみで、そのときレスポンスは未書き込み。
func (s *Service) CompleteLogin(w http.ResponseWriter, r *http.Request) error {
	req, err := s.authRequests.TryLoad(r)
	if err != nil {
		var de *cookie.DecodeError
		if errors.As(err, &de) {
			s.metrics.RecordCookieDecodeError(de.Name)
		}
		s.failure.OnAuthenticationFailure(w, r, err)
		return nil
	}
	if req == nil {
		RedirectToLogin(w, r)
		return nil
	}

	q := r.URL.Query()
	if q.Get("state") == "" || q.Get("state") != req.State {
		s.failure.OnAuthenticationFailure(w, r, ErrStateMismatch)
		return nil
	}
	if e := q.Get("error"); e != "" {
		s.failure.OnAuthenticationFailure(w, r, fmt.Errorf("%w: %s", ErrProviderDenied, e))
		return nil
	}
	code := q.Get("code")
	if code == "" {
		s.failure.OnAuthenticationFailure(w, r, ErrMissingCode)
		return nil
	}

	info, err := s.oauth.ExchangeCode(r.Context(), code, req)
	if err != nil {
		s.failure.OnAuthenticationFailure(w, r, fmt.Errorf("%w: %v", ErrCodeExchange, err))
		return nil
	}

	if s.provisioner != nil {
		if _, err := s.provisioner.Provision(r.Context(), info.Email, info.Name); err != nil {
			return fmt.Errorf("failed to provision user: %w", err)
		}
	}

	return s.success.OnAuthenticationSuccess(w, r, info)
}

// IssueAccessToken はリフレッシュトークンを検証し、新しいアクセストークンを発行する。
// 保存済みのトークンと一致しない場合はINVALID_TOKENエラーを返す。
func (s *Service) IssueAccessToken(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", model.NewInvalidTokenError()
	}

	claims, err := s.tokens.ParseToken(refreshToken)
	if err != nil {
		slog.Debug("refresh token rejected", slog.String("error", err.Error()))
		return "", model.NewInvalidTokenError()
	}
	if err := claims.Expect(token.KindRefresh); err != nil {
		slog.Debug("refresh token rejected", slog.String("error", err.Error()))
		return "", model.NewInvalidTokenError()
	}
	userID, err := claims.UserID()
	if err != nil {
		return "", model.NewInvalidTokenError()
	}

	stored, err := s.refreshTokens.FindByToken(ctx, refreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to find refresh token: %w", err)
	}
	if stored == nil || stored.UserID != userID {
		return "", model.NewInvalidTokenError()
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return "", model.NewUserNotFoundError()
	}

	accessToken, err := s.tokens.GenerateToken(user, token.KindAccess, AccessTokenDuration)
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}
	s.metrics.RecordTokenIssued("access")
	return accessToken, nil
}

// Authenticate はアクセストークンを検証して主体を返す。
// リフレッシュトークンはAPIの資格情報として受け付けない。
func (s *Service) Authenticate(accessToken string) (model.Principal, error) {
	claims, err := s.tokens.ParseToken(accessToken)
	if err != nil {
		return model.Principal{}, err
	}
	if err := claims.Expect(token.KindAccess); err != nil {
		return model.Principal{}, err
	}
	return claims.Principal()
}

// Logout はユーザーのリフレッシュトークンを破棄する。
func (s *Service) Logout(ctx context.Context, principal model.Principal) error {
	if err := s.refreshTokens.DeleteByUserID(ctx, principal.UserID); err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	slog.Info("user logged out", slog.Int64("user_id", principal.UserID))
	return nil
}
