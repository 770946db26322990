package middleware

import "net/http"

// corsAllowedHeaders はフロントエンドが送信するヘッダーの一覧。
// CSRF二重送信トークンとベアラートークンの両方を許可する。
const corsAllowedHeaders = "Content-Type, Authorization, X-CSRF-Token"

// NewCORSMiddleware は単一オリジン向けのCORSミドルウェアを返す。
// セッションCookieをクロスオリジンで送信するためcredentialsを許可し、
// その制約からAllow-Originにワイルドカード(*)は使えない。
// OPTIONSプリフライトはここで打ち切り、204を返す。
func NewCORSMiddleware(allowedOrigin string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowedOrigin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", corsAllowedHeaders)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
