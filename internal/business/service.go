// Package business は事業者管理のドメインロジックを提供する。
package business

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/fastcapital/internal/model"
	"github.com/jonathan/fastcapital/internal/repository"
)

// Service は事業者と財務レコードのサービス層。
type Service struct {
	businessRepo  repository.BusinessRepository
	financialRepo repository.FinancialRecordRepository
}

// NewService はServiceを生成する。
func NewService(
	businessRepo repository.BusinessRepository,
	financialRepo repository.FinancialRecordRepository,
) *Service {
	return &Service{
		businessRepo:  businessRepo,
		financialRepo: financialRepo,
	}
}

// List は全事業者を取得する。
func (s *Service) List(ctx context.Context) ([]*model.Business, error) {
	return s.businessRepo.List(ctx)
}

// Get は指定IDの事業者を取得する。見つからない場合はBUSINESS_NOT_FOUNDを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Business, error) {
	b, err := s.businessRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, model.NewBusinessNotFoundError(id)
	}
	return b, nil
}

// CreateInput は事業者作成の入力。
type CreateInput struct {
	Name       string
	WebsiteURL string
	Address1   string
	Address2   string
	City       string
	State      string
	PostalCode string
}

// Create は事業者を作成する。ownerIDは認証済みユーザーのID。
func (s *Service) Create(ctx context.Context, ownerID string, input CreateInput) (*model.Business, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, model.NewValidationError("事業者名は必須です")
	}

	now := time.Now()
	b := &model.Business{
		ID:         uuid.New().String(),
		OwnerID:    ownerID,
		Name:       strings.TrimSpace(input.Name),
		WebsiteURL: input.WebsiteURL,
		Address1:   input.Address1,
		Address2:   input.Address2,
		City:       input.City,
		State:      input.State,
		PostalCode: input.PostalCode,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.businessRepo.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to create business: %w", err)
	}
	return b, nil
}

// PatchInput は事業者更新の入力。nilのフィールドは変更しない。
type PatchInput struct {
	Name       *string
	WebsiteURL *string
	Address1   *string
	Address2   *string
	City       *string
	State      *string
	PostalCode *string
}

// Patch は事業者情報を部分更新する。
func (s *Service) Patch(ctx context.Context, id string, input PatchInput) (*model.Business, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, model.NewValidationError("事業者名は空にできません")
		}
		b.Name = strings.TrimSpace(*input.Name)
	}
	if input.WebsiteURL != nil {
		b.WebsiteURL = *input.WebsiteURL
	}
	if input.Address1 != nil {
		b.Address1 = *input.Address1
	}
	if input.Address2 != nil {
		b.Address2 = *input.Address2
	}
	if input.City != nil {
		b.City = *input.City
	}
	if input.State != nil {
		b.State = *input.State
	}
	if input.PostalCode != nil {
		b.PostalCode = *input.PostalCode
	}

	if err := s.businessRepo.Update(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to update business: %w", err)
	}
	return b, nil
}

// ListFinancials は指定事業者の財務レコードを取得する。
func (s *Service) ListFinancials(ctx context.Context, businessID string) ([]*model.FinancialRecord, error) {
	if _, err := s.Get(ctx, businessID); err != nil {
		return nil, err
	}
	return s.financialRepo.ListByBusinessID(ctx, businessID)
}

// AddFinancial は財務レコードを追加する。集計は行わない（保管のみ）。
func (s *Service) AddFinancial(ctx context.Context, businessID string, date time.Time, amount float64, recordType model.FinancialType) (*model.FinancialRecord, error) {
	if _, err := s.Get(ctx, businessID); err != nil {
		return nil, err
	}

	switch recordType {
	case model.FinancialTypeIncome, model.FinancialTypeExpense, model.FinancialTypeAsset, model.FinancialTypeLiability:
	default:
		return nil, model.NewValidationError("typeにはincome、expense、asset、liabilityのいずれかを指定してください")
	}

	rec := &model.FinancialRecord{
		ID:         uuid.New().String(),
		BusinessID: businessID,
		Date:       date,
		Amount:     amount,
		Type:       recordType,
	}
	if err := s.financialRepo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to create financial record: %w", err)
	}
	return rec, nil
}
