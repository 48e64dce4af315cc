package middleware

import "net/http"

// securityHeaders は全レスポンスに付与するヘッダー。
// ログイン成功後の /articles はURLにアクセストークンを含むため、Refererは送らせない。
var securityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Content-Security-Policy", "frame-ancestors 'none'; base-uri 'none'; form-action 'self'"},
	{"Permissions-Policy", "camera=(), microphone=(), geolocation=()"},
}

// NewSecurityHeadersMiddleware はAPIとHTMLページ共通のセキュリティヘッダーを付与する。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range securityHeaders {
				h.Set(kv[0], kv[1])
			}
			next.ServeHTTP(w, r)
		})
	}
}
