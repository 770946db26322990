package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/jonathan/fastcapital/internal/model"
	"github.com/jonathan/fastcapital/internal/repository"
)

// fakeUserRepo はUserRepositoryのテスト用フェイク。
type fakeUserRepo struct {
	createFn func(ctx context.Context, user *model.User) error
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func (f *fakeUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return nil, nil
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, nil
}

func (f *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	return f.createFn(ctx, user)
}

func (f *fakeUserRepo) UpdateSession(ctx context.Context, userID, token string, expiresAt time.Time) error {
	return nil
}

func (f *fakeUserRepo) SlideSessionExpiry(ctx context.Context, userID string, expiresAt time.Time) error {
	return nil
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("検証エラーが返されなかった")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIErrorではない: %v", err)
	}
	if apiErr.Code != model.ErrCodeValidation {
		t.Errorf("エラーコードが不正: got %s, want %s", apiErr.Code, model.ErrCodeValidation)
	}
}

func TestSignup_Success(t *testing.T) {
	var created *model.User
	repo := &fakeUserRepo{
		createFn: func(_ context.Context, user *model.User) error {
			created = user
			return nil
		},
	}
	svc := NewService(repo)

	public, err := svc.Signup(context.Background(), "Taro Yamada", "taro@example.com", "password123")
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	if created == nil {
		t.Fatal("ユーザーが作成されていない")
	}
	if created.ID == "" {
		t.Error("IDが生成されていない")
	}
	if public.ID != created.ID {
		t.Errorf("返却されたユーザーIDが不一致: got %s, want %s", public.ID, created.ID)
	}
	if public.Email != "taro@example.com" {
		t.Errorf("メールアドレスが不正: got %s", public.Email)
	}
}

// パスワードは平文で保存されず、bcryptハッシュとして検証可能であること
func TestSignup_PasswordIsHashed(t *testing.T) {
	var created *model.User
	repo := &fakeUserRepo{
		createFn: func(_ context.Context, user *model.User) error {
			created = user
			return nil
		},
	}
	svc := NewService(repo)

	if _, err := svc.Signup(context.Background(), "Taro", "taro@example.com", "password123"); err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}

	if created.PasswordHash == "password123" {
		t.Fatal("パスワードが平文で保存されている")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("password123")); err != nil {
		t.Errorf("bcryptハッシュとして検証できない: %v", err)
	}
}

// メールアドレスは小文字・前後空白除去で正規化されること
func TestSignup_NormalizesEmail(t *testing.T) {
	var created *model.User
	repo := &fakeUserRepo{
		createFn: func(_ context.Context, user *model.User) error {
			created = user
			return nil
		},
	}
	svc := NewService(repo)

	if _, err := svc.Signup(context.Background(), "Taro", "  Taro@Example.COM ", "password123"); err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	if created.Email != "taro@example.com" {
		t.Errorf("メールアドレスが正規化されていない: got %q", created.Email)
	}
}

func TestSignup_ValidationFailures(t *testing.T) {
	repo := &fakeUserRepo{
		createFn: func(_ context.Context, _ *model.User) error {
			t.Error("検証に失敗した入力でユーザーが作成された")
			return nil
		},
	}
	svc := NewService(repo)

	tests := []struct {
		name     string
		userName string
		email    string
		password string
	}{
		{"empty_name", "", "taro@example.com", "password123"},
		{"whitespace_name", "   ", "taro@example.com", "password123"},
		{"empty_email", "Taro", "", "password123"},
		{"email_without_at", "Taro", "taro.example.com", "password123"},
		{"short_password", "Taro", "taro@example.com", "short"},
		{"password_7_chars", "Taro", "taro@example.com", "1234567"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Signup(context.Background(), tt.userName, tt.email, tt.password)
			assertValidationError(t, err)
		})
	}
}

func TestSignup_DuplicateEmail_ReturnsEmailTaken(t *testing.T) {
	repo := &fakeUserRepo{
		createFn: func(_ context.Context, _ *model.User) error {
			return repository.ErrDuplicateEmail
		},
	}
	svc := NewService(repo)

	_, err := svc.Signup(context.Background(), "Taro", "taro@example.com", "password123")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIErrorではない: %v", err)
	}
	if apiErr.Code != model.ErrCodeEmailTaken {
		t.Errorf("エラーコードが不正: got %s, want %s", apiErr.Code, model.ErrCodeEmailTaken)
	}
}

func TestSignup_RepoError_PropagatesAsPlainError(t *testing.T) {
	boom := errors.New("db down")
	repo := &fakeUserRepo{
		createFn: func(_ context.Context, _ *model.User) error {
			return boom
		},
	}
	svc := NewService(repo)

	_, err := svc.Signup(context.Background(), "Taro", "taro@example.com", "password123")
	if !errors.Is(err, boom) {
		t.Errorf("元のエラーが伝播していない: %v", err)
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		t.Error("インフラ障害がAPIErrorに変換された")
	}
}
