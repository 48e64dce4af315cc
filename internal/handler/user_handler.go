package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/blogman/internal/auth"
	"github.com/hitoshi/blogman/internal/cookie"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Withdraw はユーザーの退会処理を実行する。
	// リフレッシュトークンを削除してからユーザーを削除する。記事は残す。
	Withdraw(ctx context.Context, userID int64) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	policy  cookie.Policy
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, policy cookie.Policy) *UserHandler {
	return &UserHandler{
		service: service,
		policy:  policy,
	}
}

// Withdraw はユーザーの退会処理を実行する。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	if err := h.service.Withdraw(r.Context(), principal.UserID); err != nil {
		handleServiceError(w, err)
		return
	}

	h.policy.Delete(r, w, auth.RefreshTokenCookieName)
	w.WriteHeader(http.StatusNoContent)
}
