// Package user はユーザー登録のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/fastcapital/internal/auth"
	"github.com/jonathan/fastcapital/internal/model"
	"github.com/jonathan/fastcapital/internal/repository"
)

// minPasswordLength はサインアップ時に要求するパスワードの最小文字数。
const minPasswordLength = 8

// Service はユーザー登録のサービス層。
type Service struct {
	userRepo repository.UserRepository
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository) *Service {
	return &Service{userRepo: userRepo}
}

// Signup は新しいユーザーアカウントを作成する。
// パスワードはbcryptでハッシュ化して保存し、平文は保持しない。
// メールアドレス重複時はEMAIL_TAKENのAPIErrorを返す。
func (s *Service) Signup(ctx context.Context, name, email, password string) (*model.PublicUser, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))

	if name == "" {
		return nil, model.NewValidationError("名前は必須です")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, model.NewValidationError("有効なメールアドレスを入力してください")
	}
	if len(password) < minPasswordLength {
		return nil, model.NewValidationError(fmt.Sprintf("パスワードは%d文字以上である必要があります", minPasswordLength))
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	newUser := &model.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, newUser); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewEmailTakenError(email)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("new user created",
		slog.String("user_id", newUser.ID),
		slog.String("email", email),
	)

	return newUser.Public(), nil
}
