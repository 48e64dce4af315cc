package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/blogman/internal/cookie"
	"github.com/hitoshi/blogman/internal/metrics"
)

// ログイン失敗の原因を表すエラー。
var (
	ErrStateMismatch  = errors.New("oauth state mismatch")
	ErrProviderDenied = errors.New("identity provider returned an error")
	ErrMissingCode    = errors.New("missing authorization code")
	ErrCodeExchange   = errors.New("authorization code exchange failed")
)

// LoginFailureHandler はOAuthログイン失敗時に進行中の認可リクエストを破棄し、
// /login?error へリダイレクトする。
type LoginFailureHandler struct {
	authRequests AuthorizationRequestRepository
	policy       cookie.Policy
	metrics      metrics.MetricsCollector
}

// NewLoginFailureHandler はLoginFailureHandlerを生成する。
func NewLoginFailureHandler(authRequests AuthorizationRequestRepository, policy cookie.Policy, collector metrics.MetricsCollector) *LoginFailureHandler {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &LoginFailureHandler{
		authRequests: authRequests,
		policy:       policy,
		metrics:      collector,
	}
}

// OnAuthenticationFailure は失敗原因をログに残し、ログイン画面へ戻す。
func (h *LoginFailureHandler) OnAuthenticationFailure(w http.ResponseWriter, r *http.Request, cause error) {
	reason := FailureReason(cause)

	attrs := []any{
		slog.String("reason", reason),
		slog.String("error", cause.Error()),
	}
	discarded, err := h.authRequests.Remove(w, r)
	if discarded != nil {
		attrs = append(attrs, slog.String("registration_id", discarded.RegistrationID))
	}
	if err != nil {
		attrs = append(attrs, slog.String("remove_error", err.Error()))
	}
	h.policy.Delete(r, w, oauthStateCookieName)

	slog.Warn("oauth login failed", attrs...)
	h.metrics.RecordLoginFailure(reason)

	http.Redirect(w, r, LoginPath+"?error", http.StatusFound)
}

// FailureReason はメトリクスのラベルに使う失敗理由を返す。
func FailureReason(err error) string {
	var de *cookie.DecodeError
	switch {
	case errors.As(err, &de):
		return "decode_error"
	case errors.Is(err, ErrStateMismatch):
		return "state_mismatch"
	case errors.Is(err, ErrProviderDenied):
		return "provider_error"
	case errors.Is(err, ErrMissingCode):
		return "missing_code"
	case errors.Is(err, ErrCodeExchange):
		return "exchange_failed"
	default:
		return "other"
	}
}
