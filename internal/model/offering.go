package model

import "time"

// Offering は事業者が募集する投資ラウンド（株式の小口販売）を表す。
// SharesAvailable は作成時の供給量から単調減少し、負になることはない。
type Offering struct {
	ID              string
	BusinessID      string
	SharesAvailable int64
	PricePerShare   float64
	MinInvestment   int64 // 最低投資額（通貨単位）
	StartDate       time.Time
	ExpirationDate  time.Time
	Featured        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
