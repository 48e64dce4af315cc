package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/blogman/internal/auth"
	"github.com/hitoshi/blogman/internal/cookie"
	"github.com/hitoshi/blogman/internal/metrics"
	"github.com/hitoshi/blogman/internal/middleware"
)

// healthCheckTimeout は/healthでのDB疎通確認のタイムアウト。
const healthCheckTimeout = 2 * time.Second

// HealthChecker はDBの疎通確認を行う。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	CookiePolicy      cookie.Policy
	Authenticator     middleware.PrincipalAuthenticator

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	AuthService    AuthServiceInterface
	ArticleService ArticleServiceInterface
	UserService    UserServiceInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// 全ルート共通のミドルウェア:
//
//	Logging → Recovery → SecurityHeaders → CORS
//
// 認証が必要なAPIは Bearer → RateLimit(General) を通す。
// POST /api/token はリフレッシュトークンCookieを伴う場合のみCSRF検証を行う。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.CookiePolicy)
	articleHandler := NewArticleHandler(deps.ArticleService)
	userHandler := NewUserHandler(deps.UserService, deps.CookiePolicy)
	pageHandler := NewPageHandler(deps.ArticleService)

	tokenCSRF := deps.CSRFConfig
	tokenCSRF.CredentialCookie = auth.RefreshTokenCookieName

	// --- 運用エンドポイント ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- HTMLページ ---
	r.Get(auth.LoginPath, pageHandler.Login)
	r.Get(auth.RedirectPath, pageHandler.Articles)

	// --- OAuthフロー ---
	r.With(deps.RateLimiter.LoginMiddleware()).Get(loginStartPath, authHandler.Login)
	r.Get("/login/oauth2/code/google", authHandler.Callback)

	r.Route("/api", func(r chi.Router) {
		// 認証不要
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Get("/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)
			r.With(middleware.NewCSRFMiddleware(tokenCSRF)).Post("/token", authHandler.Token)

			r.Get("/articles", articleHandler.ListArticles)
			r.Get("/articles/{id}", articleHandler.GetArticle)
		})

		// 認証が必要
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewBearerAuthMiddleware(deps.Authenticator))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Post("/articles", articleHandler.CreateArticle)
			r.Put("/articles/{id}", articleHandler.UpdateArticle)
			r.Delete("/articles/{id}", articleHandler.DeleteArticle)

			r.Post("/logout", authHandler.Logout)
			r.Delete("/users/me", userHandler.Withdraw)
		})
	})

	return r
}

// healthHandler はDB疎通を確認して200または503を返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
