// Package ledger はファンディングレジャー（株式購入の引き当てエンジン）を提供する。
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonathan/fastcapital/internal/model"
	"github.com/jonathan/fastcapital/internal/repository"
)

// maxAllocateRetries は直列化失敗時の内部リトライ上限。
// 上限を超えた場合はCONCURRENCY_CONFLICTとして呼び出し側に返す。
const maxAllocateRetries = 3

// timeNow はテストで時刻を固定するためのフック。
var timeNow = time.Now

// MetricsRecorder はレジャーが記録するメトリクスのインターフェース。
// metrics.Collectorの部分集合として定義する。
type MetricsRecorder interface {
	RecordAllocation(shares int64)
	RecordInsufficientSupply()
	RecordAllocationConflict()
}

// Service はファンディングレジャーのサービス層。
// 入力検証・募集状態の確認・引き当てトランザクションのリトライを担う。
// 残数チェックと減算の直列化はrepository.LedgerRepositoryの行ロックが保証する。
type Service struct {
	offeringRepo repository.OfferingRepository
	purchaseRepo repository.PurchaseRepository
	ledgerRepo   repository.LedgerRepository
	metrics      MetricsRecorder
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(
	offeringRepo repository.OfferingRepository,
	purchaseRepo repository.PurchaseRepository,
	ledgerRepo repository.LedgerRepository,
	metrics MetricsRecorder,
) *Service {
	return &Service{
		offeringRepo: offeringRepo,
		purchaseRepo: purchaseRepo,
		ledgerRepo:   ledgerRepo,
		metrics:      metrics,
	}
}

// Allocate は募集の残り株式から指定株数を引き当て、購入を作成する。
//
// エラーの分類:
//   - OFFERING_NOT_FOUND: 募集が存在しない（終端）
//   - OFFERING_CLOSED: 募集期間が終了している（終端）
//   - VALIDATION_ERROR: 株数が不正、または最低投資額未満（終端）
//   - INSUFFICIENT_SUPPLY: 残数不足（終端。株数を減らせばリトライ可能）
//   - CONCURRENCY_CONFLICT: 直列化失敗がリトライ上限まで解消しなかった（一時的）
//
// 残数不足と競合は常に区別して返し、汎用エラーに丸めない。
func (s *Service) Allocate(ctx context.Context, offeringID, userID string, shares int64) (*model.Purchase, error) {
	if shares <= 0 {
		return nil, model.NewValidationError("購入株数は1以上である必要があります")
	}

	offering, err := s.offeringRepo.FindByID(ctx, offeringID)
	if err != nil {
		return nil, err
	}
	if offering == nil {
		return nil, model.NewOfferingNotFoundError(offeringID)
	}

	if isClosed(offering) {
		return nil, model.NewOfferingClosedError(offeringID)
	}

	if offering.MinInvestment > 0 && float64(shares)*offering.PricePerShare < float64(offering.MinInvestment) {
		return nil, model.NewValidationError("投資額が最低投資額を下回っています")
	}

	// 行ロック下の引き当てを有限回リトライする。
	// 同一募集への同時リクエストはDB側で直列化されるため、
	// ここでのリトライはデッドロック検出・直列化失敗の回復のみを担う。
	var lastErr error
	for attempt := 1; attempt <= maxAllocateRetries; attempt++ {
		purchase, err := s.ledgerRepo.AllocateShares(ctx, offeringID, userID, shares)
		if err == nil {
			if s.metrics != nil {
				s.metrics.RecordAllocation(shares)
			}
			slog.Info("shares allocated",
				slog.String("offering_id", offeringID),
				slog.String("user_id", userID),
				slog.Int64("shares", shares),
				slog.String("status", string(purchase.Status)),
			)
			return purchase, nil
		}

		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			if apiErr.Code == model.ErrCodeInsufficientSupply && s.metrics != nil {
				s.metrics.RecordInsufficientSupply()
			}
			return nil, apiErr
		}

		if !repository.IsSerializationFailure(err) {
			return nil, err
		}

		if s.metrics != nil {
			s.metrics.RecordAllocationConflict()
		}
		slog.Warn("allocation serialization failure, retrying",
			slog.String("offering_id", offeringID),
			slog.Int("attempt", attempt),
		)
		lastErr = err
	}

	slog.Error("allocation retries exhausted",
		slog.String("offering_id", offeringID),
		slog.String("error", lastErr.Error()),
	)
	return nil, model.NewConcurrencyConflictError()
}

// ListPurchases は指定ユーザーの購入を事業者情報付きで取得する。
// statusが空の場合はpendingを既定とする。
func (s *Service) ListPurchases(ctx context.Context, userID string, status model.PurchaseStatus) ([]*model.EnrichedPurchase, error) {
	if status == "" {
		status = model.PurchaseStatusPending
	}
	if !status.IsValid() {
		return nil, model.NewValidationError("statusにはpending、completed、expiredのいずれかを指定してください")
	}
	return s.purchaseRepo.ListByUserAndStatus(ctx, userID, status)
}

// isClosed は募集期間が終了しているかどうかを返す。
func isClosed(offering *model.Offering) bool {
	if offering.ExpirationDate.IsZero() {
		return false
	}
	return !timeNow().Before(offering.ExpirationDate)
}
