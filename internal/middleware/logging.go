package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// identityRecorder は下流の認証ミドルウェアが解決したユーザーIDを
// ロギングミドルウェアへ運ぶ入れ物。認証ミドルウェアは派生コンテキストに
// ユーザーを注入するため、next.ServeHTTPの後にr.Context()から読むことは
// できない。ポインタ共有で逆方向に伝搬させる。
type identityRecorder struct {
	userID string
}

var identityRecorderKey = contextKey("identity_recorder")

// statusRecorder はhttp.ResponseWriterをラップし、最初に書き込まれた
// ステータスコードとレスポンスサイズを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	bytes      int
	written    bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はWriteHeaderが未呼び出しなら暗黙の200として記録する。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

// NewLoggingMiddleware は全リクエストをJSON構造化ログとして出力するミドルウェアを返す。
// method、path、status、duration_ms、bytesに加え、認証済みリクエストでは
// user_idを含める。4xxはWARN、5xxはERRORに昇格する。
func NewLoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			identity := &identityRecorder{}
			r = r.WithContext(context.WithValue(r.Context(), identityRecorderKey, identity))

			next.ServeHTTP(rec, r)

			durationMs := float64(time.Since(start).Nanoseconds()) / float64(time.Millisecond)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", durationMs),
				slog.Int("bytes", rec.bytes),
			}
			userID := identity.userID
			if userID == "" {
				// 認証ミドルウェアより前に注入されたコンテキストへのフォールバック
				if id, err := UserIDFromContext(r.Context()); err == nil {
					userID = id
				}
			}
			if userID != "" {
				attrs = append(attrs, slog.String("user_id", userID))
			}

			level := slog.LevelInfo
			switch {
			case rec.statusCode >= 500:
				level = slog.LevelError
			case rec.statusCode >= 400:
				level = slog.LevelWarn
			}

			logger.LogAttrs(r.Context(), level, "http_request", attrs...)
		})
	}
}
