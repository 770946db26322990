package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// bearerClaims はベアラートークンに埋め込むクレームセット。
// sub: メールアドレス、sid: DBに保存されたセッショントークン。
// sidを埋め込むことで、ログアウト（セッション無効化）が発行済みの
// ベアラートークンも即座に失効させる。失効リストは不要。
type bearerClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// TokenCodec はCookieを保持できないクライアント向けの
// 署名付きベアラートークンのエンコード・デコードを提供する。
type TokenCodec struct {
	secret    []byte
	expiresIn time.Duration
}

// NewTokenCodec はTokenCodecを生成する。
// expiresInはセッションTTLより短い値を想定している（デフォルト30分）。
func NewTokenCodec(secret string, expiresIn time.Duration) *TokenCodec {
	return &TokenCodec{
		secret:    []byte(secret),
		expiresIn: expiresIn,
	}
}

// Encode はHS256署名付きのコンパクトなトークンを生成する。
// 有効期限はセッションのスライディング延長とは独立した固定値。
func (c *TokenCodec) Encode(email, sessionToken string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, bearerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.expiresIn)),
		},
		SessionID: sessionToken,
	})
	return token.SignedString(c.secret)
}

// Decode は署名と有効期限を検証し、埋め込まれたメールアドレスと
// セッショントークンを返す。検証失敗（署名不正・構造不正・期限切れ）は
// すべてok=falseで表現し、エラーとしては扱わない。
func (c *TokenCodec) Decode(blob string) (email, sessionToken string, ok bool) {
	claims := &bearerClaims{}
	token, err := jwt.ParseWithClaims(blob, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", "", false
	}
	if claims.Subject == "" || claims.SessionID == "" {
		return "", "", false
	}
	return claims.Subject, claims.SessionID, true
}
