// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/blogman/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// principalContextKey はリクエストコンテキストに認証主体を格納するためのキー。
var principalContextKey = contextKey("principal")

// PrincipalAuthenticator はアクセストークンから認証主体を取り出す。
// auth.Serviceの部分集合として定義する。
type PrincipalAuthenticator interface {
	Authenticate(accessToken string) (model.Principal, error)
}

// NewBearerAuthMiddleware は Authorization: Bearer <アクセストークン> を検証し、
// 認証主体をリクエストコンテキストに注入するミドルウェアを返す。
// ヘッダーが無い場合はUNAUTHORIZED、トークンが無効な場合はINVALID_TOKENで401を返す。
func NewBearerAuthMiddleware(authenticator PrincipalAuthenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := BearerToken(r)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			principal, err := authenticator.Authenticate(raw)
			if err != nil {
				slog.Debug("access token rejected",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidTokenError())
				return
			}

			if rl := requestLogFrom(r.Context()); rl != nil {
				rl.userID = principal.UserID
			}
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// BearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// PrincipalFromContext はリクエストコンテキストから認証主体を取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func PrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(model.Principal)
	if !ok || p.UserID == 0 {
		return model.Principal{}, false
	}
	return p, true
}

// ContextWithPrincipal はコンテキストに認証主体を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithPrincipal(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}
