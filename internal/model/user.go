// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// セッション関連フィールド（SessionToken, SessionExpiresAt）はログイン時に設定され、
// 検証成功のたびに有効期限がスライドする。
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string

	// SessionToken は現在有効なセッショントークン。未ログイン時は空文字列。
	// 無効化後は "expired-" プレフィックス付きの値が入り、二度と検証を通らない。
	SessionToken string

	// SessionExpiresAt はセッションの有効期限。SessionTokenが空の場合はゼロ値。
	SessionExpiresAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PublicUser は外部に公開してよいユーザー情報のみを持つ。
// パスワードハッシュとセッションフィールドは含まない。
type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Public はUserからPublicUserへの射影を返す。
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
	}
}
