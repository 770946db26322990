// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jonathan/fastcapital/internal/middleware"
	"github.com/jonathan/fastcapital/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (string, error)
	Validate(ctx context.Context, email, token string) *model.User
	Invalidate(ctx context.Context, email, token string)
}

// BearerCodec はベアラートークンの発行・解析インターフェース。
type BearerCodec interface {
	Encode(email, sessionToken string) (string, error)
	Decode(blob string) (email, sessionToken string, ok bool)
}

// SignupServiceInterface はサインアップハンドラーが必要とするサービスインターフェース。
type SignupServiceInterface interface {
	Signup(ctx context.Context, name, email, password string) (*model.PublicUser, error)
}

// LoginRecorder はログイン結果のメトリクス記録インターフェース。
type LoginRecorder interface {
	RecordLoginSuccess()
	RecordLoginFailure()
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain string
	CookieSecure bool
	SessionTTL   time.Duration // セッションCookieの有効期間
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service   AuthServiceInterface
	signupSvc SignupServiceInterface
	codec     BearerCodec
	metrics   LoginRecorder
	config    AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。metricsはnilでもよい。
func NewAuthHandler(
	service AuthServiceInterface,
	signupSvc SignupServiceInterface,
	codec BearerCodec,
	metrics LoginRecorder,
	config AuthHandlerConfig,
) *AuthHandler {
	return &AuthHandler{
		service:   service,
		signupSvc: signupSvc,
		codec:     codec,
		metrics:   metrics,
		config:    config,
	}
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup は新規アカウントを作成する。
// POST /api/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	user, err := h.signupSvc.Signup(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login はメールアドレスとパスワードを検証し、セッションを発行する。
// セッション資格情報はHTTP Only Cookieとして設定し、
// Cookieを保持できないクライアント向けにベアラートークンも返す。
// POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))

	token, err := h.service.Login(r.Context(), email, req.Password)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordLoginFailure()
		}
		var apiErr *model.APIError
		// 認証失敗はログインでは401にマッピングする
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeAuthInvalid {
			writeAPIErrorResponse(w, http.StatusUnauthorized, apiErr)
			return
		}
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordLoginSuccess()
	}

	h.setSessionCookie(w, middleware.EncodeSessionCookie(email, token), int(h.config.SessionTTL.Seconds()))

	bearer, err := h.codec.Encode(email, token)
	if err != nil {
		slog.Error("failed to issue bearer token", slog.String("error", err.Error()))
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":      true,
		"access_token": bearer,
		"token_type":   "bearer",
	})
}

// Logout はセッションを無効化し、Cookieをクリアする。
// Cookieがない場合はベアラートークンからセッションを特定する。
// 無効化後は元のセッショントークンも、それを埋め込んだベアラートークンも
// 二度と検証を通らない。
// POST /api/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	email, token := h.extractCredentials(r)
	if email != "" && token != "" {
		h.service.Invalidate(r.Context(), email, token)
	}

	// ブラウザにCookieを破棄させる
	h.setSessionCookie(w, "", -1)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

// Token は現在のセッションに紐づく新しいベアラートークンを発行する。
// セッションCookieを保持するクライアントが、Cookieを送信できない経路
// （モバイルアプリ等）用の資格情報を得るために使う。
// セッションの検証はルーターのRequired()ミドルウェアで完了しているため、
// ここでは埋め込むセッショントークンを資格情報から取り出すだけでよい。
// POST /api/token
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	email, token := h.extractCredentials(r)
	if email == "" || token == "" {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}
	// 検証済みユーザーと資格情報のメールが食い違う場合は発行しない
	if email != user.Email {
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewAuthInvalidError())
		return
	}

	bearer, err := h.codec.Encode(email, token)
	if err != nil {
		slog.Error("failed to issue bearer token", slog.String("error", err.Error()))
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"access_token": bearer,
		"token_type":   "bearer",
	})
}

// Me は現在のログインユーザー情報を返す。未認証の場合はnullを返す。
// GET /api/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		json.NewEncoder(w).Encode(nil)
		return
	}
	json.NewEncoder(w).Encode(user)
}

// Secret は認証済みユーザーのみがアクセスできる確認用エンドポイント。
// GET /api/secret
func (h *AuthHandler) Secret(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"secret": "info"})
}

// extractCredentials はCookie優先・ベアラー次点で資格情報を取り出す。
func (h *AuthHandler) extractCredentials(r *http.Request) (email, token string) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if e, t, err := middleware.DecodeSessionCookie(cookie.Value); err == nil {
			return e, t
		}
	}

	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, prefix) {
		if e, t, ok := h.codec.Decode(strings.TrimPrefix(header, prefix)); ok {
			return e, t
		}
	}

	return "", ""
}

// setSessionCookie はセッションCookieを設定またはクリアする。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
