// Package offering は募集（投資ラウンド）管理のドメインロジックを提供する。
package offering

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/fastcapital/internal/model"
	"github.com/jonathan/fastcapital/internal/repository"
)

// Service は募集のサービス層。
// 株式の引き当てはledger.Serviceが担い、ここでは作成と参照のみを扱う。
type Service struct {
	offeringRepo repository.OfferingRepository
	businessRepo repository.BusinessRepository
	purchaseRepo repository.PurchaseRepository
}

// NewService はServiceを生成する。
func NewService(
	offeringRepo repository.OfferingRepository,
	businessRepo repository.BusinessRepository,
	purchaseRepo repository.PurchaseRepository,
) *Service {
	return &Service{
		offeringRepo: offeringRepo,
		businessRepo: businessRepo,
		purchaseRepo: purchaseRepo,
	}
}

// List は全募集を取得する。
func (s *Service) List(ctx context.Context) ([]*model.Offering, error) {
	return s.offeringRepo.List(ctx)
}

// Get は指定IDの募集を取得する。見つからない場合はOFFERING_NOT_FOUNDを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Offering, error) {
	o, err := s.offeringRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, model.NewOfferingNotFoundError(id)
	}
	return o, nil
}

// GetWithPurchases は募集とその全購入を取得する。
func (s *Service) GetWithPurchases(ctx context.Context, id string) (*model.Offering, []*model.Purchase, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	purchases, err := s.purchaseRepo.ListByOfferingID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return o, purchases, nil
}

// CreateInput は募集作成の入力。
type CreateInput struct {
	BusinessID      string
	SharesAvailable int64
	PricePerShare   float64
	MinInvestment   int64
	StartDate       time.Time
	ExpirationDate  time.Time
	Featured        bool
}

// Create は募集を作成する。供給量の設定は作成時のみ許可される
// （以後shares_availableは引き当てによってのみ減少する）。
func (s *Service) Create(ctx context.Context, input CreateInput) (*model.Offering, error) {
	if input.SharesAvailable <= 0 {
		return nil, model.NewValidationError("供給株式数は1以上である必要があります")
	}
	if input.PricePerShare <= 0 {
		return nil, model.NewValidationError("1株あたりの価格は正の値である必要があります")
	}
	if !input.ExpirationDate.After(input.StartDate) {
		return nil, model.NewValidationError("募集終了日は開始日より後である必要があります")
	}

	b, err := s.businessRepo.FindByID(ctx, input.BusinessID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, model.NewBusinessNotFoundError(input.BusinessID)
	}

	now := time.Now()
	o := &model.Offering{
		ID:              uuid.New().String(),
		BusinessID:      input.BusinessID,
		SharesAvailable: input.SharesAvailable,
		PricePerShare:   input.PricePerShare,
		MinInvestment:   input.MinInvestment,
		StartDate:       input.StartDate,
		ExpirationDate:  input.ExpirationDate,
		Featured:        input.Featured,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.offeringRepo.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("failed to create offering: %w", err)
	}
	return o, nil
}
