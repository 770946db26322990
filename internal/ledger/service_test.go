package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jonathan/fastcapital/internal/model"
	"github.com/jonathan/fastcapital/internal/repository"
)

// fakeOfferingRepo はOfferingRepositoryのテスト用フェイク。
type fakeOfferingRepo struct {
	findByIDFn func(ctx context.Context, id string) (*model.Offering, error)
}

var _ repository.OfferingRepository = (*fakeOfferingRepo)(nil)

func (f *fakeOfferingRepo) FindByID(ctx context.Context, id string) (*model.Offering, error) {
	return f.findByIDFn(ctx, id)
}

func (f *fakeOfferingRepo) List(ctx context.Context) ([]*model.Offering, error) {
	return nil, nil
}

func (f *fakeOfferingRepo) Create(ctx context.Context, offering *model.Offering) error {
	return nil
}

// fakePurchaseRepo はPurchaseRepositoryのテスト用フェイク。
type fakePurchaseRepo struct {
	listByUserAndStatusFn func(ctx context.Context, userID string, status model.PurchaseStatus) ([]*model.EnrichedPurchase, error)
}

var _ repository.PurchaseRepository = (*fakePurchaseRepo)(nil)

func (f *fakePurchaseRepo) ListByOfferingID(ctx context.Context, offeringID string) ([]*model.Purchase, error) {
	return nil, nil
}

func (f *fakePurchaseRepo) ListByUserAndStatus(ctx context.Context, userID string, status model.PurchaseStatus) ([]*model.EnrichedPurchase, error) {
	return f.listByUserAndStatusFn(ctx, userID, status)
}

// fakeLedgerRepo はLedgerRepositoryのテスト用フェイク。
type fakeLedgerRepo struct {
	allocateFn func(ctx context.Context, offeringID, userID string, shares int64) (*model.Purchase, error)
}

var _ repository.LedgerRepository = (*fakeLedgerRepo)(nil)

func (f *fakeLedgerRepo) AllocateShares(ctx context.Context, offeringID, userID string, shares int64) (*model.Purchase, error) {
	return f.allocateFn(ctx, offeringID, userID, shares)
}

func (f *fakeLedgerRepo) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

// fakeMetrics はMetricsRecorderのテスト用フェイク。並行テストでも使うためロックする。
type fakeMetrics struct {
	mu                 sync.Mutex
	allocatedShares    int64
	insufficientSupply int
	conflicts          int
}

var _ MetricsRecorder = (*fakeMetrics)(nil)

func (f *fakeMetrics) RecordAllocation(shares int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allocatedShares += shares
}

func (f *fakeMetrics) RecordInsufficientSupply() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insufficientSupply++
}

func (f *fakeMetrics) RecordAllocationConflict() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conflicts++
}

func openOffering() *model.Offering {
	return &model.Offering{
		ID:              "off-1",
		BusinessID:      "biz-1",
		SharesAvailable: 100,
		PricePerShare:   10.0,
		ExpirationDate:  time.Now().Add(24 * time.Hour),
	}
}

func offeringRepoReturning(offering *model.Offering) *fakeOfferingRepo {
	return &fakeOfferingRepo{
		findByIDFn: func(_ context.Context, _ string) (*model.Offering, error) {
			return offering, nil
		},
	}
}

func pendingPurchase(offeringID, userID string, shares int64) *model.Purchase {
	return &model.Purchase{
		ID:              uuid.New().String(),
		OfferingID:      offeringID,
		UserID:          userID,
		SharesPurchased: shares,
		CostPerShare:    10.0,
		PurchaseDate:    time.Now(),
		Status:          model.PurchaseStatusPending,
	}
}

func assertErrorCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	if err == nil {
		t.Fatalf("エラーが返されなかった: want %s", wantCode)
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIErrorではない: %v", err)
	}
	if apiErr.Code != wantCode {
		t.Errorf("エラーコードが不正: got %s, want %s", apiErr.Code, wantCode)
	}
}

func TestAllocate_Success(t *testing.T) {
	metrics := &fakeMetrics{}
	ledgerRepo := &fakeLedgerRepo{
		allocateFn: func(_ context.Context, offeringID, userID string, shares int64) (*model.Purchase, error) {
			return pendingPurchase(offeringID, userID, shares), nil
		},
	}
	svc := NewService(offeringRepoReturning(openOffering()), &fakePurchaseRepo{}, ledgerRepo, metrics)

	purchase, err := svc.Allocate(context.Background(), "off-1", "user-1", 25)
	if err != nil {
		t.Fatalf("Allocate returned error: %v", err)
	}
	if purchase.SharesPurchased != 25 {
		t.Errorf("株数が不正: got %d, want 25", purchase.SharesPurchased)
	}
	if purchase.Status != model.PurchaseStatusPending {
		t.Errorf("ステータスが不正: got %s", purchase.Status)
	}
	if metrics.allocatedShares != 25 {
		t.Errorf("引き当てメトリクスが不正: got %d, want 25", metrics.allocatedShares)
	}
}

func TestAllocate_ZeroOrNegativeShares_ValidationError(t *testing.T) {
	offeringRepo := &fakeOfferingRepo{
		findByIDFn: func(_ context.Context, _ string) (*model.Offering, error) {
			t.Error("検証前に募集が参照された")
			return nil, nil
		},
	}
	svc := NewService(offeringRepo, &fakePurchaseRepo{}, &fakeLedgerRepo{}, nil)

	for _, shares := range []int64{0, -5} {
		_, err := svc.Allocate(context.Background(), "off-1", "user-1", shares)
		assertErrorCode(t, err, model.ErrCodeValidation)
	}
}

func TestAllocate_UnknownOffering_NotFound(t *testing.T) {
	svc := NewService(offeringRepoReturning(nil), &fakePurchaseRepo{}, &fakeLedgerRepo{}, nil)

	_, err := svc.Allocate(context.Background(), "no-such", "user-1", 10)
	assertErrorCode(t, err, model.ErrCodeOfferingNotFound)
}

func TestAllocate_ExpiredOffering_Closed(t *testing.T) {
	offering := openOffering()
	offering.ExpirationDate = time.Now().Add(-time.Hour)

	ledgerRepo := &fakeLedgerRepo{
		allocateFn: func(_ context.Context, _, _ string, _ int64) (*model.Purchase, error) {
			t.Error("終了した募集への引き当てが実行された")
			return nil, nil
		},
	}
	svc := NewService(offeringRepoReturning(offering), &fakePurchaseRepo{}, ledgerRepo, nil)

	_, err := svc.Allocate(context.Background(), "off-1", "user-1", 10)
	assertErrorCode(t, err, model.ErrCodeOfferingClosed)
}

// 期限がちょうど今の募集も終了扱いであること
func TestAllocate_ExpirationBoundary_IsClosed(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	timeNow = func() time.Time { return now }
	defer func() { timeNow = time.Now }()

	offering := openOffering()
	offering.ExpirationDate = now

	svc := NewService(offeringRepoReturning(offering), &fakePurchaseRepo{}, &fakeLedgerRepo{}, nil)

	_, err := svc.Allocate(context.Background(), "off-1", "user-1", 10)
	assertErrorCode(t, err, model.ErrCodeOfferingClosed)
}

// 期限未設定の募集は無期限に開いていること
func TestAllocate_ZeroExpiration_NeverCloses(t *testing.T) {
	offering := openOffering()
	offering.ExpirationDate = time.Time{}

	ledgerRepo := &fakeLedgerRepo{
		allocateFn: func(_ context.Context, offeringID, userID string, shares int64) (*model.Purchase, error) {
			return pendingPurchase(offeringID, userID, shares), nil
		},
	}
	svc := NewService(offeringRepoReturning(offering), &fakePurchaseRepo{}, ledgerRepo, nil)

	if _, err := svc.Allocate(context.Background(), "off-1", "user-1", 10); err != nil {
		t.Fatalf("Allocate returned error: %v", err)
	}
}

func TestAllocate_BelowMinInvestment_ValidationError(t *testing.T) {
	offering := openOffering()
	offering.PricePerShare = 10.0
	offering.MinInvestment = 500

	svc := NewService(offeringRepoReturning(offering), &fakePurchaseRepo{}, &fakeLedgerRepo{}, nil)

	// 10株 × 10.0 = 100 < 500
	_, err := svc.Allocate(context.Background(), "off-1", "user-1", 10)
	assertErrorCode(t, err, model.ErrCodeValidation)

	// 50株 × 10.0 = 500 はちょうど最低額なので許可
	ledgerRepo := &fakeLedgerRepo{
		allocateFn: func(_ context.Context, offeringID, userID string, shares int64) (*model.Purchase, error) {
			return pendingPurchase(offeringID, userID, shares), nil
		},
	}
	svc = NewService(offeringRepoReturning(offering), &fakePurchaseRepo{}, ledgerRepo, nil)
	if _, err := svc.Allocate(context.Background(), "off-1", "user-1", 50); err != nil {
		t.Fatalf("最低投資額ちょうどの購入が拒否された: %v", err)
	}
}

func TestAllocate_InsufficientSupply_NotRetried(t *testing.T) {
	metrics := &fakeMetrics{}
	calls := 0
	ledgerRepo := &fakeLedgerRepo{
		allocateFn: func(_ context.Context, _, _ string, shares int64) (*model.Purchase, error) {
			calls++
			return nil, model.NewInsufficientSupplyError(shares, 3)
		},
	}
	svc := NewService(offeringRepoReturning(openOffering()), &fakePurchaseRepo{}, ledgerRepo, metrics)

	_, err := svc.Allocate(context.Background(), "off-1", "user-1", 10)
	assertErrorCode(t, err, model.ErrCodeInsufficientSupply)

	// 残数不足は終端エラー。リトライしても解消しない
	if calls != 1 {
		t.Errorf("残数不足がリトライされた: calls = %d", calls)
	}
	if metrics.insufficientSupply != 1 {
		t.Errorf("残数不足メトリクスが不正: got %d, want 1", metrics.insufficientSupply)
	}
}

func TestAllocate_SerializationFailure_RetriesAndSucceeds(t *testing.T) {
	metrics := &fakeMetrics{}
	calls := 0
	ledgerRepo := &fakeLedgerRepo{
		allocateFn: func(_ context.Context, offeringID, userID string, shares int64) (*model.Purchase, error) {
			calls++
			if calls < 3 {
				return nil, fmt.Errorf("allocate: %w", &pq.Error{Code: "40001"})
			}
			return pendingPurchase(offeringID, userID, shares), nil
		},
	}
	svc := NewService(offeringRepoReturning(openOffering()), &fakePurchaseRepo{}, ledgerRepo, metrics)

	purchase, err := svc.Allocate(context.Background(), "off-1", "user-1", 10)
	if err != nil {
		t.Fatalf("リトライ後の成功が返されなかった: %v", err)
	}
	if purchase == nil {
		t.Fatal("購入がnil")
	}
	if calls != 3 {
		t.Errorf("試行回数が不正: got %d, want 3", calls)
	}
	if metrics.conflicts != 2 {
		t.Errorf("競合メトリクスが不正: got %d, want 2", metrics.conflicts)
	}
}

func TestAllocate_SerializationFailure_ExhaustsRetries(t *testing.T) {
	calls := 0
	ledgerRepo := &fakeLedgerRepo{
		allocateFn: func(_ context.Context, _, _ string, _ int64) (*model.Purchase, error) {
			calls++
			return nil, fmt.Errorf("allocate: %w", &pq.Error{Code: "40P01"})
		},
	}
	svc := NewService(offeringRepoReturning(openOffering()), &fakePurchaseRepo{}, ledgerRepo, nil)

	_, err := svc.Allocate(context.Background(), "off-1", "user-1", 10)
	assertErrorCode(t, err, model.ErrCodeConcurrencyConflict)

	if calls != maxAllocateRetries {
		t.Errorf("試行回数が不正: got %d, want %d", calls, maxAllocateRetries)
	}
}

func TestAllocate_PlainError_NotRetried(t *testing.T) {
	boom := errors.New("connection reset")
	calls := 0
	ledgerRepo := &fakeLedgerRepo{
		allocateFn: func(_ context.Context, _, _ string, _ int64) (*model.Purchase, error) {
			calls++
			return nil, boom
		},
	}
	svc := NewService(offeringRepoReturning(openOffering()), &fakePurchaseRepo{}, ledgerRepo, nil)

	_, err := svc.Allocate(context.Background(), "off-1", "user-1", 10)
	if !errors.Is(err, boom) {
		t.Errorf("元のエラーが返されなかった: %v", err)
	}
	if calls != 1 {
		t.Errorf("直列化失敗以外のエラーがリトライされた: calls = %d", calls)
	}
}

// countingLedgerRepo は残数管理を模したロック付きフェイク。
// 並行引き当てで供給超過が起きないことの検証に使う。
type countingLedgerRepo struct {
	mu        sync.Mutex
	available int64
}

func (c *countingLedgerRepo) AllocateShares(_ context.Context, offeringID, userID string, shares int64) (*model.Purchase, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if shares > c.available {
		return nil, model.NewInsufficientSupplyError(shares, c.available)
	}
	c.available -= shares
	return pendingPurchase(offeringID, userID, shares), nil
}

func (c *countingLedgerRepo) ExpirePending(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func TestAllocate_ConcurrentRequests_NoOversell(t *testing.T) {
	const supply = 10
	const requests = 50

	ledgerRepo := &countingLedgerRepo{available: supply}
	offering := openOffering()
	offering.SharesAvailable = supply
	svc := NewService(offeringRepoReturning(offering), &fakePurchaseRepo{}, ledgerRepo, &fakeMetrics{})

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	insufficient := 0

	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Allocate(context.Background(), "off-1", "user-1", 1)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			var apiErr *model.APIError
			if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeInsufficientSupply {
				insufficient++
				return
			}
			t.Errorf("予期しないエラー: %v", err)
		}()
	}
	wg.Wait()

	if succeeded != supply {
		t.Errorf("成功数が供給量と一致しない: got %d, want %d", succeeded, supply)
	}
	if insufficient != requests-supply {
		t.Errorf("残数不足の件数が不正: got %d, want %d", insufficient, requests-supply)
	}
	if ledgerRepo.available != 0 {
		t.Errorf("残数が不正: got %d, want 0", ledgerRepo.available)
	}
}

func TestListPurchases_DefaultsToPending(t *testing.T) {
	purchaseRepo := &fakePurchaseRepo{
		listByUserAndStatusFn: func(_ context.Context, userID string, status model.PurchaseStatus) ([]*model.EnrichedPurchase, error) {
			if status != model.PurchaseStatusPending {
				t.Errorf("既定ステータスが不正: got %s, want pending", status)
			}
			return []*model.EnrichedPurchase{}, nil
		},
	}
	svc := NewService(&fakeOfferingRepo{}, purchaseRepo, &fakeLedgerRepo{}, nil)

	if _, err := svc.ListPurchases(context.Background(), "user-1", ""); err != nil {
		t.Fatalf("ListPurchases returned error: %v", err)
	}
}

func TestListPurchases_InvalidStatus_ValidationError(t *testing.T) {
	purchaseRepo := &fakePurchaseRepo{
		listByUserAndStatusFn: func(_ context.Context, _ string, _ model.PurchaseStatus) ([]*model.EnrichedPurchase, error) {
			t.Error("不正なステータスでリポジトリが参照された")
			return nil, nil
		},
	}
	svc := NewService(&fakeOfferingRepo{}, purchaseRepo, &fakeLedgerRepo{}, nil)

	_, err := svc.ListPurchases(context.Background(), "user-1", model.PurchaseStatus("cancelled"))
	assertErrorCode(t, err, model.ErrCodeValidation)
}

func TestListPurchases_PassesThroughExplicitStatus(t *testing.T) {
	purchaseRepo := &fakePurchaseRepo{
		listByUserAndStatusFn: func(_ context.Context, _ string, status model.PurchaseStatus) ([]*model.EnrichedPurchase, error) {
			if status != model.PurchaseStatusCompleted {
				t.Errorf("ステータスが不正: got %s, want completed", status)
			}
			return []*model.EnrichedPurchase{
				{Purchase: model.Purchase{ID: "p-1"}, BusinessName: "Best Burgers"},
			}, nil
		},
	}
	svc := NewService(&fakeOfferingRepo{}, purchaseRepo, &fakeLedgerRepo{}, nil)

	purchases, err := svc.ListPurchases(context.Background(), "user-1", model.PurchaseStatusCompleted)
	if err != nil {
		t.Fatalf("ListPurchases returned error: %v", err)
	}
	if len(purchases) != 1 || purchases[0].BusinessName != "Best Burgers" {
		t.Errorf("事業者情報付きの購入が返されなかった: %+v", purchases)
	}
}
