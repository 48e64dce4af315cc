package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/blogman/internal/auth"
	"github.com/hitoshi/blogman/internal/cookie"
	"github.com/hitoshi/blogman/internal/model"
)

// maxTokenRequestBytes はPOST /api/tokenのボディ上限。
const maxTokenRequestBytes = 4 << 10

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	BeginLogin(w http.ResponseWriter, r *http.Request) error
	CompleteLogin(w http.ResponseWriter, r *http.Request) error
	IssueAccessToken(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, principal model.Principal) error
}

// AuthHandler はOAuthログインとトークン関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	policy  cookie.Policy
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, policy cookie.Policy) *AuthHandler {
	return &AuthHandler{
		service: service,
		policy:  policy,
	}
}

type tokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// Login はGoogle OAuthフローを開始する。
// GET /oauth2/authorization/google
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := h.service.BeginLogin(w, r); err != nil {
		slog.Error("failed to begin login", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewAuthenticationFailedError())
	}
}

// Callback はOAuthコールバックを処理する。
// GET /login/oauth2/code/google?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	err := h.service.CompleteLogin(w, r)
	if err == nil {
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeUserNotFound {
		slog.Warn("oauth callback for unknown user")
		writeAPIErrorResponse(w, http.StatusUnauthorized, apiErr)
		return
	}

	slog.Error("oauth callback failed", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewAuthenticationFailedError())
}

// Token はリフレッシュトークンから新しいアクセストークンを発行する。
// POST /api/token
// リフレッシュトークンはCookieを優先し、無ければJSONボディから読む。
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	refreshToken, ok := readRefreshToken(w, r)
	if !ok {
		return
	}

	accessToken, err := h.service.IssueAccessToken(r.Context(), refreshToken)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, tokenResponse{AccessToken: accessToken})
}

// Logout はリフレッシュトークンを破棄し、Cookieを失効させる。
// POST /api/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	if err := h.service.Logout(r.Context(), principal); err != nil {
		handleServiceError(w, err)
		return
	}

	h.policy.Delete(r, w, auth.RefreshTokenCookieName)
	w.WriteHeader(http.StatusNoContent)
}

// readRefreshToken はCookieまたはボディからリフレッシュトークンを読む。
// ボディが解析できない場合は400を書き込んでfalseを返す。
func readRefreshToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	if c, err := r.Cookie(auth.RefreshTokenCookieName); err == nil && c.Value != "" {
		return c.Value, true
	}

	var req tokenRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTokenRequestBytes)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return "", false
	}
	return req.RefreshToken, true
}
