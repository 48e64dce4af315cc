package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/blogman/internal/cookie"
	"github.com/hitoshi/blogman/internal/metrics"
	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/repository"
	"github.com/hitoshi/blogman/internal/token"
)

const (
	// RefreshTokenCookieName はリフレッシュトークンを保持するCookie名。
	RefreshTokenCookieName = "refresh_token"
	// RefreshTokenDuration はリフレッシュトークンの有効期間。
	RefreshTokenDuration = 14 * 24 * time.Hour
	// AccessTokenDuration はアクセストークンの有効期間。
	AccessTokenDuration = 24 * time.Hour
	// RedirectPath はログイン成功後のリダイレクト先。
	RedirectPath = "/articles"

	// oauthStateCookieName はプロバイダー連携中に使うセッション属性のCookie名。
	oauthStateCookieName = "oauth_state"
)

// loginState はログイン成功処理の進行状態。
type loginState string

const (
	stateAuthenticated    loginState = "AUTHENTICATED"
	stateRefreshIssued    loginState = "REFRESH_ISSUED"
	stateRefreshPersisted loginState = "REFRESH_PERSISTED"
	stateAccessIssued     loginState = "ACCESS_ISSUED"
	stateCleaned          loginState = "CLEANED"
	stateRedirected       loginState = "REDIRECTED"
)

// LoginSuccessHandler は外部IdPでの認証成功後に、トークン発行からリダイレクトまでを行う。
type LoginSuccessHandler struct {
	users         repository.UserRepository
	refreshTokens repository.RefreshTokenRepository
	tokens        TokenProvider
	authRequests  AuthorizationRequestRepository
	policy        cookie.Policy
	metrics       metrics.MetricsCollector
	now           func() time.Time
}

// NewLoginSuccessHandler はLoginSuccessHandlerを生成する。
func NewLoginSuccessHandler(
	users repository.UserRepository,
	refreshTokens repository.RefreshTokenRepository,
	tokens TokenProvider,
	authRequests AuthorizationRequestRepository,
	policy cookie.Policy,
	collector metrics.MetricsCollector,
) *LoginSuccessHandler {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &LoginSuccessHandler{
		users:         users,
		refreshTokens: refreshTokens,
		tokens:        tokens,
		authRequests:  authRequests,
		policy:        policy,
		metrics:       collector,
		now:           time.Now,
	}
}

// OnAuthenticationSuccess は認証済みのユーザー情報からトークンを発行し、
// /articles?token=<アクセストークン> へリダイレクトする。
//
// トークン発行とリダイレクトURL構築が終わるまで認可リクエストCookieは削除しない。
// エラーを返した場合、ステータスとボディは未書き込み。ただしアクセストークンの発行で
// 失敗したときは、保存済みのリフレッシュトークンのSet-Cookieヘッダーが既に積まれている。
func (h *LoginSuccessHandler) OnAuthenticationSuccess(w http.ResponseWriter, r *http.Request, principal *OAuthUserInfo) error {
	if principal == nil || principal.Email == "" {
		return model.NewUserNotFoundError()
	}
	ctx := r.Context()
	h.trace(stateAuthenticated, slog.String("email", principal.Email))

	user, err := h.users.FindByEmail(ctx, principal.Email)
	if err != nil {
		return fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	refreshToken, err := h.tokens.GenerateToken(user, token.KindRefresh, RefreshTokenDuration)
	if err != nil {
		return fmt.Errorf("failed to generate refresh token: %w", err)
	}
	h.metrics.RecordTokenIssued("refresh")
	h.trace(stateRefreshIssued, slog.Int64("user_id", user.ID))

	if err := h.refreshTokens.Upsert(ctx, user.ID, refreshToken, h.now().Add(RefreshTokenDuration)); err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}
	h.metrics.RecordRefreshTokenUpserted()
	h.trace(stateRefreshPersisted, slog.Int64("user_id", user.ID))

	h.policy.Delete(r, w, RefreshTokenCookieName)
	h.policy.Add(w, RefreshTokenCookieName, refreshToken, int(RefreshTokenDuration/time.Second))

	accessToken, err := h.tokens.GenerateToken(user, token.KindAccess, AccessTokenDuration)
	if err != nil {
		return fmt.Errorf("failed to generate access token: %w", err)
	}
	h.metrics.RecordTokenIssued("access")
	h.trace(stateAccessIssued, slog.Int64("user_id", user.ID))

	target := TargetURL(accessToken)

	h.clearAuthenticationAttributes(w, r)
	h.trace(stateCleaned, slog.Int64("user_id", user.ID))

	http.Redirect(w, r, target, http.StatusFound)
	h.metrics.RecordLoginSuccess()
	h.trace(stateRedirected, slog.Int64("user_id", user.ID))

	slog.Info("user logged in",
		slog.Int64("user_id", user.ID),
		slog.String("provider", principal.Provider),
	)
	return nil
}

// TargetURL はアクセストークンをクエリに付与したリダイレクト先を返す。
func TargetURL(accessToken string) string {
	return RedirectPath + "?" + url.Values{"token": {accessToken}}.Encode()
}

// clearAuthenticationAttributes はログインフローで使った一時的なCookieを削除する。
func (h *LoginSuccessHandler) clearAuthenticationAttributes(w http.ResponseWriter, r *http.Request) {
	h.policy.Delete(r, w, oauthStateCookieName)
	h.authRequests.RemoveCookies(w, r)
}

func (h *LoginSuccessHandler) trace(state loginState, attrs ...any) {
	slog.Debug("login state transition", append([]any{slog.String("state", string(state))}, attrs...)...)
}
