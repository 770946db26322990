package model

import "time"

// Business は出資を募る事業者を表す。
type Business struct {
	ID         string
	OwnerID    string // 事業者を登録したユーザーのID
	Name       string
	WebsiteURL string
	Address1   string
	Address2   string
	City       string
	State      string
	PostalCode string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FinancialType は財務レコードの種別を表す。
type FinancialType string

const (
	FinancialTypeIncome    FinancialType = "income"
	FinancialTypeExpense   FinancialType = "expense"
	FinancialTypeAsset     FinancialType = "asset"
	FinancialTypeLiability FinancialType = "liability"
)

// FinancialRecord は事業者の財務レコードを表す。
// 集計は行わず生データの保管のみを担う。
type FinancialRecord struct {
	ID         string
	BusinessID string
	Date       time.Time
	Amount     float64
	Type       FinancialType
}
