// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/jonathan/fastcapital/internal/model"
)

// SessionCookieName はセッション資格情報を運ぶCookieの名前。
const SessionCookieName = "session"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var userContextKey = contextKey("user")

// SessionValidator はセッション検証に必要なインターフェース。
// auth.Serviceの部分集合として定義する。
type SessionValidator interface {
	Validate(ctx context.Context, email, token string) *model.User
}

// BearerDecoder はベアラートークンのデコードに必要なインターフェース。
// auth.TokenCodecの部分集合として定義する。
type BearerDecoder interface {
	Decode(blob string) (email, sessionToken string, ok bool)
}

// credentials はリクエストから抽出した認証候補のペア。
type credentials struct {
	email string
	token string
}

// extractor はリクエストから資格情報を取り出す1つの戦略。
type extractor func(r *http.Request) (credentials, bool)

// Authenticator はリクエストから呼び出し元の身元を解決する。
// 抽出戦略は順序付きリストとして保持し、先に見つかったものを採用する。
// Cookieセッションがベアラートークンより優先される（古いベアラートークンと
// 新しいCookieセッションを同時に持つクライアントのため）。
type Authenticator struct {
	validator  SessionValidator
	extractors []extractor
}

// NewAuthenticator はAuthenticatorを生成する。
func NewAuthenticator(validator SessionValidator, decoder BearerDecoder) *Authenticator {
	return &Authenticator{
		validator: validator,
		extractors: []extractor{
			cookieCredentials,
			bearerCredentials(decoder),
		},
	}
}

// resolve は抽出戦略を順に試し、見つかった資格情報を検証する。
// 戻り値: (ユーザー, 資格情報が提示されたか)。
// ユーザーがnilで提示済みの場合は「提示されたが無効」を意味する。
func (a *Authenticator) resolve(r *http.Request) (*model.User, bool) {
	for _, extract := range a.extractors {
		creds, found := extract(r)
		if !found {
			continue
		}
		return a.validator.Validate(r.Context(), creds.email, creds.token), true
	}
	return nil, false
}

// Required は認証必須ルート用のミドルウェアを返す。
// 資格情報が見つからない場合は401（AUTH_REQUIRED）、
// 見つかったが検証に失敗した場合は403（AUTH_INVALID）を返す。
// 認証済みユーザーをリクエストコンテキストに注入する。
func (a *Authenticator) Required() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, presented := a.resolve(r)
			if user == nil {
				if !presented {
					WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
				} else {
					WriteErrorResponse(w, http.StatusForbidden, model.NewAuthInvalidError())
				}
				return
			}

			ctx := ContextWithUser(r.Context(), user.Public())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Optional は匿名アクセスを許可するルート用のミドルウェアを返す。
// 検証に成功した場合のみユーザーをコンテキストに注入し、
// いかなる失敗経路でもリクエストを拒否しない。
func (a *Authenticator) Optional() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user, _ := a.resolve(r); user != nil {
				r = r.WithContext(ContextWithUser(r.Context(), user.Public()))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// cookieCredentials はセッションCookieから資格情報を抽出する。
func cookieCredentials(r *http.Request) (credentials, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return credentials{}, false
	}
	email, token, err := DecodeSessionCookie(cookie.Value)
	if err != nil {
		return credentials{}, false
	}
	return credentials{email: email, token: token}, true
}

// bearerCredentials はAuthorizationヘッダーのベアラートークンから資格情報を抽出する。
// デコード失敗は「資格情報なし」と同一に扱う（クラッシュも拒否もしない）。
func bearerCredentials(decoder BearerDecoder) extractor {
	return func(r *http.Request) (credentials, bool) {
		header := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			return credentials{}, false
		}
		email, token, ok := decoder.Decode(strings.TrimPrefix(header, prefix))
		if !ok {
			return credentials{}, false
		}
		return credentials{email: email, token: token}, true
	}
}

// EncodeSessionCookie はメールアドレスとセッショントークンをCookie値に符号化する。
// 形式: base64url(email) + "." + token。
func EncodeSessionCookie(email, token string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(email)) + "." + token
}

// DecodeSessionCookie はCookie値からメールアドレスとセッショントークンを復元する。
func DecodeSessionCookie(value string) (email, token string, err error) {
	encoded, token, found := strings.Cut(value, ".")
	if !found || encoded == "" || token == "" {
		return "", "", fmt.Errorf("malformed session cookie")
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", fmt.Errorf("malformed session cookie email: %w", err)
	}
	return string(raw), token, nil
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.PublicUser, error) {
	user, ok := ctx.Value(userContextKey).(*model.PublicUser)
	if !ok || user == nil {
		return nil, fmt.Errorf("user not found in context")
	}
	return user, nil
}

// UserIDFromContext はリクエストコンテキストから認証済みユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	user, err := UserFromContext(ctx)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// ContextWithUser はコンテキストにユーザーを注入する。
// 上流のロギングミドルウェアが入れ物を仕込んでいる場合は、
// 解決したユーザーIDをそちらにも記録する。
func ContextWithUser(ctx context.Context, user *model.PublicUser) context.Context {
	if rec, ok := ctx.Value(identityRecorderKey).(*identityRecorder); ok && user != nil {
		rec.userID = user.ID
	}
	return context.WithValue(ctx, userContextKey, user)
}
