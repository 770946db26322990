package model

import "time"

// PurchaseStatus は購入の状態を表す。
// 遷移は前方のみ: pending → completed、pending → expired。
type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusCompleted PurchaseStatus = "completed"
	PurchaseStatusExpired   PurchaseStatus = "expired"
)

// IsValid は既知のステータス値かどうかを返す。
func (s PurchaseStatus) IsValid() bool {
	switch s {
	case PurchaseStatusPending, PurchaseStatusCompleted, PurchaseStatusExpired:
		return true
	default:
		return false
	}
}

// Purchase はユーザーによる株式購入を表す。
// ファンディングレジャーのAllocateを通じてのみ作成され、
// 作成後はstatus以外イミュータブルとして扱う。
type Purchase struct {
	ID              string
	OfferingID      string
	UserID          string
	SharesPurchased int64
	CostPerShare    float64
	PurchaseDate    time.Time
	Status          PurchaseStatus
}

// EnrichedPurchase は購入一覧表示用に事業者情報を結合したビュー。
type EnrichedPurchase struct {
	Purchase
	BusinessName       string
	BusinessCity       string
	BusinessState      string
	BusinessWebsiteURL string
}
