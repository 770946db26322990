package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonathan/fastcapital/internal/model"
)

func decodeLogEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("ログ出力がJSONではない: %v\nraw: %s", err, buf.String())
	}
	return entry
}

func TestLoggingMiddleware_LogsRequestFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	mw := NewLoggingMiddleware(logger)

	body := `{"id":"p-1"}`
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(body))
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/purchases", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	entry := decodeLogEntry(t, &buf)
	if entry["msg"] != "http_request" {
		t.Errorf("msg = %q, want %q", entry["msg"], "http_request")
	}
	if entry["method"] != "POST" {
		t.Errorf("method = %q, want POST", entry["method"])
	}
	if entry["path"] != "/api/purchases" {
		t.Errorf("path = %q, want /api/purchases", entry["path"])
	}
	if entry["status"] != float64(201) {
		t.Errorf("status = %v, want 201", entry["status"])
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Error("duration_msフィールドがない")
	}
	if entry["bytes"] != float64(len(body)) {
		t.Errorf("bytes = %v, want %d", entry["bytes"], len(body))
	}
}

// WriteHeaderを呼ばずにWriteだけした場合は暗黙の200が記録されること
func TestLoggingMiddleware_ImplicitStatus200(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	mw := NewLoggingMiddleware(logger)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	entry := decodeLogEntry(t, &buf)
	if entry["status"] != float64(200) {
		t.Errorf("status = %v, want 200", entry["status"])
	}
}

func TestLoggingMiddleware_IncludesUserIDWhenAuthenticated(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	mw := NewLoggingMiddleware(logger)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/purchases", nil)
	user := &model.PublicUser{ID: "user-42", Email: "test@example.com"}
	req = req.WithContext(ContextWithUser(context.Background(), user))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	entry := decodeLogEntry(t, &buf)
	if entry["user_id"] != "user-42" {
		t.Errorf("user_id = %q, want user-42", entry["user_id"])
	}
}

// 認証ミドルウェアはロギングより後段で派生コンテキストにユーザーを注入する。
// その場合でもログにuser_idが含まれること
func TestLoggingMiddleware_UserIDFromDownstreamAuth(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	mw := NewLoggingMiddleware(logger)

	// 本番のAuthenticator.Required()と同じく、ContextWithUserで
	// 派生コンテキストを作ってから内側のハンドラーを呼ぶ
	authLike := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := &model.PublicUser{ID: "user-7", Email: "taro@example.com"}
			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}

	handler := mw(authLike(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/purchases", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	entry := decodeLogEntry(t, &buf)
	if entry["user_id"] != "user-7" {
		t.Errorf("user_id = %q, want user-7", entry["user_id"])
	}
}

func TestLoggingMiddleware_OmitsUserIDWhenAnonymous(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	mw := NewLoggingMiddleware(logger)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/offerings", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	entry := decodeLogEntry(t, &buf)
	if _, ok := entry["user_id"]; ok {
		t.Error("匿名リクエストのログにuser_idが含まれている")
	}
}

func TestLoggingMiddleware_LevelEscalation(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{"2xx_info", http.StatusOK, "INFO"},
		{"4xx_warn", http.StatusForbidden, "WARN"},
		{"5xx_error", http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))
			mw := NewLoggingMiddleware(logger)

			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/offerings", nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			entry := decodeLogEntry(t, &buf)
			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %q, want %q", entry["level"], tt.wantLevel)
			}
		})
	}
}

// 二重にWriteHeaderが呼ばれても最初のステータスだけが記録されること
func TestStatusRecorder_FirstWriteHeaderWins(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}

	rec.WriteHeader(http.StatusNotFound)
	rec.WriteHeader(http.StatusOK)

	if rec.statusCode != http.StatusNotFound {
		t.Errorf("statusCode = %d, want %d", rec.statusCode, http.StatusNotFound)
	}
}
