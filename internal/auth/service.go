// Package auth はパスワード認証、セッションライフサイクル管理、ベアラートークンを提供する。
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/jonathan/fastcapital/internal/model"
	"github.com/jonathan/fastcapital/internal/repository"
)

// invalidatedPrefix は無効化済みトークンに付与するプレフィックス。
// issueが生成するトークンはhexのみで構成されるため、このプレフィックス付きの値が
// 将来のissue出力や過去のトークンと一致することはない。
const invalidatedPrefix = "expired-"

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionTTL time.Duration // セッション有効期間。検証成功のたびにこの長さで延長される。
}

// Service はセッションライフサイクルの単一の権威。
// トークンの発行・検証・スライディング延長・無効化を担う。
type Service struct {
	userRepo repository.UserRepository
	config   ServiceConfig
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, config ServiceConfig) *Service {
	return &Service{
		userRepo: userRepo,
		config:   config,
	}
}

// Login はメールアドレスとパスワードを検証し、新しいセッショントークンを発行する。
// 既存のセッションがあれば新しいトークンで上書きする（ユーザーあたり単一セッション）。
// 認証失敗時はAPIError（AUTH_INVALID）を返す。
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user == nil {
		// ユーザーの存在有無を漏らさないため、パスワード不一致と同じエラーを返す
		return "", model.NewAuthInvalidError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", model.NewAuthInvalidError()
	}

	token, err := generateSessionToken()
	if err != nil {
		return "", err
	}

	expiresAt := time.Now().Add(s.config.SessionTTL)
	if err := s.userRepo.UpdateSession(ctx, user.ID, token, expiresAt); err != nil {
		return "", err
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	return token, nil
}

// Validate はセッショントークンを検証する。
// 検証成功時は有効期限を now + SessionTTL にスライドさせ、ユーザーを返す。
// 失敗時はnilを返す。この操作は全域的であり、DB障害を含むあらゆる失敗を
// 「未認証」として扱う（呼び出し側にシステムエラーを伝播しない）。
func (s *Service) Validate(ctx context.Context, email, token string) *model.User {
	if email == "" || token == "" {
		return nil
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		slog.Error("session validation failed to load user", slog.String("error", err.Error()))
		return nil
	}
	if user == nil || user.SessionToken == "" {
		return nil
	}

	// タイミング攻撃対策として固定時間比較を使う
	if subtle.ConstantTimeCompare([]byte(user.SessionToken), []byte(token)) != 1 {
		return nil
	}

	if !time.Now().Before(user.SessionExpiresAt) {
		return nil
	}

	// スライディング延長: 利用がある限りセッションは生き続ける
	expiresAt := time.Now().Add(s.config.SessionTTL)
	if err := s.userRepo.SlideSessionExpiry(ctx, user.ID, expiresAt); err != nil {
		slog.Error("failed to slide session expiry", slog.String("error", err.Error()))
		return nil
	}
	user.SessionExpiresAt = expiresAt

	return user
}

// Invalidate はセッションを無効化する。
// トークンをnullにするのではなく、二度と検証を通らない一意な値で上書きする。
// これにより、古いトークンを保持した並行リクエストが再検証に成功する余地をなくす。
// この操作は全域的であり、エラーはログに記録するのみで呼び出し側には伝播しない。
func (s *Service) Invalidate(ctx context.Context, email, token string) {
	if email == "" || token == "" {
		return
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		slog.Error("session invalidation failed to load user", slog.String("error", err.Error()))
		return
	}
	if user == nil {
		return
	}

	// 提示されたトークンが現在のセッションと一致する場合のみ無効化する
	if subtle.ConstantTimeCompare([]byte(user.SessionToken), []byte(token)) != 1 {
		return
	}

	fresh, err := generateSessionToken()
	if err != nil {
		slog.Error("failed to generate invalidation token", slog.String("error", err.Error()))
		return
	}

	if err := s.userRepo.UpdateSession(ctx, user.ID, invalidatedPrefix+fresh, time.Now()); err != nil {
		slog.Error("failed to invalidate session", slog.String("error", err.Error()))
		return
	}

	slog.Info("user logged out", slog.String("user_id", user.ID))
}

// HashPassword はbcryptでパスワードをハッシュ化する。
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// IsInvalidated は無効化済みトークン値かどうかを返す。テスト用の補助関数。
func IsInvalidated(token string) bool {
	return strings.HasPrefix(token, invalidatedPrefix)
}

// generateSessionToken は暗号的に安全な256ビットのセッショントークンを生成する。
// hex表現のためURLセーフ。
func generateSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
