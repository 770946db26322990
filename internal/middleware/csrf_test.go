package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonathan/fastcapital/internal/model"
)

func csrfTestConfig() CSRFConfig {
	return CSRFConfig{
		CookieSecure: false,
		CookieDomain: "",
		ExemptRoutes: DefaultCSRFExemptRoutes(),
	}
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestCSRFMiddleware_GETRequest_PassesThroughWithoutToken(t *testing.T) {
	mw := NewCSRFMiddleware(csrfTestConfig())

	called := false
	handler := mw(okHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/api/offerings", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Error("GETリクエストが拒否された")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("ステータスコードが不正: got %d", rec.Code)
	}
}

func TestCSRFMiddleware_GETRequest_SetsCSRFCookie(t *testing.T) {
	mw := NewCSRFMiddleware(csrfTestConfig())

	called := false
	handler := mw(okHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/api/offerings", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var csrfCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "csrf_token" {
			csrfCookie = c
		}
	}
	if csrfCookie == nil {
		t.Fatal("CSRFトークンCookieが設定されていない")
	}
	if csrfCookie.Value == "" {
		t.Error("CSRFトークンが空")
	}
	// フロントエンドがJavaScriptで読み取れること
	if csrfCookie.HttpOnly {
		t.Error("CSRFトークンCookieがHttpOnlyになっている")
	}
}

func TestCSRFMiddleware_POST_MissingTokens_Returns403(t *testing.T) {
	mw := NewCSRFMiddleware(csrfTestConfig())

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("トークンなしのPOSTがハンドラーに到達した")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/purchases", nil)
	// ブラウザからのリクエストを模してセッションCookieだけ付ける
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "whatever"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("ステータスコードが不正: got %d, want %d", rec.Code, http.StatusForbidden)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("エラーレスポンスの解析に失敗: %v", err)
	}
	if body.Code != model.ErrCodeCSRFRejected {
		t.Errorf("エラーコードが不正: got %s, want %s", body.Code, model.ErrCodeCSRFRejected)
	}
}

func TestCSRFMiddleware_POST_TokenMismatch_Returns403(t *testing.T) {
	mw := NewCSRFMiddleware(csrfTestConfig())

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("トークン不一致のPOSTがハンドラーに到達した")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/purchases", nil)
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "token-a"})
	req.Header.Set("X-CSRF-Token", "token-b")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("ステータスコードが不正: got %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestCSRFMiddleware_POST_MatchingTokens_PassesThrough(t *testing.T) {
	mw := NewCSRFMiddleware(csrfTestConfig())

	called := false
	handler := mw(okHandler(&called))

	req := httptest.NewRequest(http.MethodPost, "/api/purchases", nil)
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "matching-token"})
	req.Header.Set("X-CSRF-Token", "matching-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Error("トークン一致のPOSTが拒否された")
	}
}

// ログイン・サインアップ・ログアウトはCookieペアを持てないため免除されること
func TestCSRFMiddleware_ExemptRoutes_SkipValidation(t *testing.T) {
	mw := NewCSRFMiddleware(csrfTestConfig())

	for _, path := range []string{"/api/login", "/api/signup", "/api/logout"} {
		t.Run(path, func(t *testing.T) {
			called := false
			handler := mw(okHandler(&called))

			req := httptest.NewRequest(http.MethodPost, path, nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if !called {
				t.Errorf("免除ルート %s が拒否された", path)
			}
		})
	}
}

// 免除はMETHODとパスの完全一致のみ。プレフィックス一致では免除されないこと
func TestCSRFMiddleware_ExemptionIsExactMatch(t *testing.T) {
	mw := NewCSRFMiddleware(csrfTestConfig())

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("免除対象外のルートが検証をスキップした")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/login/extra", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "whatever"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("ステータスコードが不正: got %d, want %d", rec.Code, http.StatusForbidden)
	}
}

// Cookieを一切持たないベアラー認証のリクエストは検証対象外であること
func TestCSRFMiddleware_BearerOnlyRequest_Bypasses(t *testing.T) {
	mw := NewCSRFMiddleware(csrfTestConfig())

	called := false
	handler := mw(okHandler(&called))

	req := httptest.NewRequest(http.MethodPost, "/api/purchases", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Error("ベアラーのみのリクエストが拒否された")
	}
}

// Cookieが1つでもあればベアラーを併用していても検証されること
func TestCSRFMiddleware_BearerWithCookies_StillValidated(t *testing.T) {
	mw := NewCSRFMiddleware(csrfTestConfig())

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Cookie持ちのベアラーリクエストが検証をスキップした")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/purchases", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "whatever"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("ステータスコードが不正: got %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestCSRFTokenHandler_IssuesToken(t *testing.T) {
	handler := NewCSRFTokenHandler(csrfTestConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ステータスコードが不正: got %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("レスポンスの解析に失敗: %v", err)
	}
	if body["token"] == "" {
		t.Error("トークンが空")
	}

	// レスポンスのCookieとトークンが一致すること
	var cookieValue string
	for _, c := range rec.Result().Cookies() {
		if c.Name == "csrf_token" {
			cookieValue = c.Value
		}
	}
	if cookieValue != body["token"] {
		t.Errorf("Cookie値とレスポンストークンが一致しない: cookie=%q body=%q", cookieValue, body["token"])
	}
}

func TestCSRFTokenHandler_ReusesExistingToken(t *testing.T) {
	handler := NewCSRFTokenHandler(csrfTestConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "existing-token"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("レスポンスの解析に失敗: %v", err)
	}
	if body["token"] != "existing-token" {
		t.Errorf("既存トークンが再利用されていない: got %q", body["token"])
	}
}
