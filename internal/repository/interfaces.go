// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/jonathan/fastcapital/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。メールアドレス重複時はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateSession はセッショントークンと有効期限を更新する。
	// ログイン・ログアウト時のトークン差し替えに使用する。
	UpdateSession(ctx context.Context, userID, token string, expiresAt time.Time) error

	// SlideSessionExpiry はセッション有効期限のみを前方に更新する。
	// 検証成功時のスライディング延長に使用する。
	SlideSessionExpiry(ctx context.Context, userID string, expiresAt time.Time) error
}

// BusinessRepository は事業者データの永続化インターフェース。
type BusinessRepository interface {
	// FindByID は指定IDの事業者を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Business, error)

	// List は全事業者を名前順で取得する。
	List(ctx context.Context) ([]*model.Business, error)

	// Create は事業者を作成する。
	Create(ctx context.Context, business *model.Business) error

	// Update は事業者情報を更新する。
	Update(ctx context.Context, business *model.Business) error
}

// FinancialRecordRepository は財務レコードの永続化インターフェース。
type FinancialRecordRepository interface {
	// ListByBusinessID は指定事業者の財務レコードを日付順で取得する。
	ListByBusinessID(ctx context.Context, businessID string) ([]*model.FinancialRecord, error)

	// Create は財務レコードを作成する。
	Create(ctx context.Context, record *model.FinancialRecord) error
}

// OfferingRepository は募集データの永続化インターフェース。
type OfferingRepository interface {
	// FindByID は指定IDの募集を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Offering, error)

	// List は全募集をID順で取得する。
	List(ctx context.Context) ([]*model.Offering, error)

	// Create は募集を作成する。
	Create(ctx context.Context, offering *model.Offering) error
}

// PurchaseRepository は購入データの読み取りインターフェース。
// 購入の作成はLedgerRepository.AllocateSharesを通じてのみ行う。
type PurchaseRepository interface {
	// ListByOfferingID は指定募集の購入を作成順で取得する。
	ListByOfferingID(ctx context.Context, offeringID string) ([]*model.Purchase, error)

	// ListByUserAndStatus は指定ユーザーの購入を事業者情報付きで取得する。
	ListByUserAndStatus(ctx context.Context, userID string, status model.PurchaseStatus) ([]*model.EnrichedPurchase, error)
}

// LedgerRepository はファンディングレジャーのトランザクション境界。
type LedgerRepository interface {
	// AllocateShares は募集の残り株式から指定株数を引き当て、pending状態の購入を作成する。
	// 残数チェック・減算・購入作成・（残数ゼロ時の）pending一括completed化を
	// 単一トランザクションで実行する。行ロックにより同一募集への同時実行は直列化される。
	// 募集が存在しない場合はmodel.ErrCodeOfferingNotFound、
	// 残数不足の場合はmodel.ErrCodeInsufficientSupplyのAPIErrorを返す。
	AllocateShares(ctx context.Context, offeringID, userID string, shares int64) (*model.Purchase, error)

	// ExpirePending は募集期間が終了した募集のpending購入をexpiredに遷移させ、
	// 遷移した件数を返す。
	ExpirePending(ctx context.Context, now time.Time) (int64, error)
}
