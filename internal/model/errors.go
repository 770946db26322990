package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, ledger, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthRequired        = "AUTH_REQUIRED"
	ErrCodeAuthInvalid         = "AUTH_INVALID"
	ErrCodeCSRFRejected        = "CSRF_REJECTED"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeEmailTaken          = "EMAIL_TAKEN"
	ErrCodeBusinessNotFound    = "BUSINESS_NOT_FOUND"
	ErrCodeOfferingNotFound    = "OFFERING_NOT_FOUND"
	ErrCodeOfferingClosed      = "OFFERING_CLOSED"
	ErrCodeInsufficientSupply  = "INSUFFICIENT_SUPPLY"
	ErrCodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	ErrCodeValidation          = "VALIDATION_ERROR"
)

// NewAuthRequiredError は認証情報が提示されていない場合のエラーを生成する。
func NewAuthRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthRequired,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewAuthInvalidError は認証情報が提示されたがセッションが無効な場合のエラーを生成する。
func NewAuthInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthInvalid,
		Message:  "セッションが無効または期限切れです。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewCSRFRejectedError はCSRF検証失敗エラーを生成する。
func NewCSRFRejectedError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFRejected,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みして、再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewEmailTakenError はメールアドレスが既に登録済みの場合のエラーを生成する。
func NewEmailTakenError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  fmt.Sprintf("このメールアドレスは既に登録されています: %s", email),
		Category: "validation",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewBusinessNotFoundError は事業者が見つからない場合のエラーを生成する。
func NewBusinessNotFoundError(businessID string) *APIError {
	return &APIError{
		Code:     ErrCodeBusinessNotFound,
		Message:  fmt.Sprintf("指定された事業者が見つかりません: %s", businessID),
		Category: "validation",
		Action:   "事業者IDを確認してください。",
	}
}

// NewOfferingNotFoundError は募集が見つからない場合のエラーを生成する。
func NewOfferingNotFoundError(offeringID string) *APIError {
	return &APIError{
		Code:     ErrCodeOfferingNotFound,
		Message:  fmt.Sprintf("指定された募集が見つかりません: %s", offeringID),
		Category: "ledger",
		Action:   "募集IDを確認してください。",
	}
}

// NewOfferingClosedError は募集期間が終了している場合のエラーを生成する。
func NewOfferingClosedError(offeringID string) *APIError {
	return &APIError{
		Code:     ErrCodeOfferingClosed,
		Message:  fmt.Sprintf("この募集は終了しています: %s", offeringID),
		Category: "ledger",
		Action:   "募集中の投資ラウンドを選択してください。",
	}
}

// NewInsufficientSupplyError は残り株式数が不足している場合のエラーを生成する。
func NewInsufficientSupplyError(requested, available int64) *APIError {
	return &APIError{
		Code:     ErrCodeInsufficientSupply,
		Message:  fmt.Sprintf("残り株式数が不足しています: 要求 %d, 残り %d", requested, available),
		Category: "ledger",
		Action:   "購入株数を減らして再度お試しください。",
	}
}

// NewConcurrencyConflictError は購入処理の競合が解消できなかった場合のエラーを生成する。
func NewConcurrencyConflictError() *APIError {
	return &APIError{
		Code:     ErrCodeConcurrencyConflict,
		Message:  "購入処理が競合しました。",
		Category: "ledger",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewValidationError は入力値が不正な場合のエラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}
