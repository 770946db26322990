package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonathan/fastcapital/internal/middleware"
	"github.com/jonathan/fastcapital/internal/model"
)

// LedgerServiceInterface は購入ハンドラーが必要とするサービスインターフェース。
type LedgerServiceInterface interface {
	Allocate(ctx context.Context, offeringID, userID string, shares int64) (*model.Purchase, error)
	ListPurchases(ctx context.Context, userID string, status model.PurchaseStatus) ([]*model.EnrichedPurchase, error)
}

// PurchaseHandler は株式購入のHTTPハンドラー。
type PurchaseHandler struct {
	service LedgerServiceInterface
}

// NewPurchaseHandler はPurchaseHandlerを生成する。
func NewPurchaseHandler(service LedgerServiceInterface) *PurchaseHandler {
	return &PurchaseHandler{service: service}
}

type createPurchaseRequest struct {
	OfferingID string `json:"offering_id"`
	Shares     int64  `json:"shares"`
}

type purchaseResponse struct {
	ID              string    `json:"id"`
	OfferingID      string    `json:"offering_id"`
	UserID          string    `json:"user_id"`
	SharesPurchased int64     `json:"shares_purchased"`
	CostPerShare    float64   `json:"cost_per_share"`
	PurchaseDate    time.Time `json:"purchase_date"`
	Status          string    `json:"status"`
}

func toPurchaseResponse(p *model.Purchase) purchaseResponse {
	return purchaseResponse{
		ID:              p.ID,
		OfferingID:      p.OfferingID,
		UserID:          p.UserID,
		SharesPurchased: p.SharesPurchased,
		CostPerShare:    p.CostPerShare,
		PurchaseDate:    p.PurchaseDate,
		Status:          string(p.Status),
	}
}

// CreatePurchase は募集から株式を購入する。
// 残数の確認と減算は単一トランザクションで行われ、超過販売は発生しない。
// POST /api/purchases
func (h *PurchaseHandler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createPurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}
	if req.OfferingID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("offering_idは必須です"))
		return
	}

	purchase, err := h.service.Allocate(r.Context(), req.OfferingID, userID, req.Shares)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toPurchaseResponse(purchase))
}

type enrichedPurchaseResponse struct {
	purchaseResponse
	BusinessName       string `json:"business_name"`
	BusinessCity       string `json:"business_city"`
	BusinessState      string `json:"business_state"`
	BusinessWebsiteURL string `json:"business_website_url"`
}

// ListPurchases はログインユーザーの購入を事業者情報付きで返す。
// statusクエリパラメータ未指定時はpendingを返す。
// GET /api/purchases?status=pending|completed|expired
func (h *PurchaseHandler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	status := model.PurchaseStatus(r.URL.Query().Get("status"))

	purchases, err := h.service.ListPurchases(r.Context(), userID, status)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]enrichedPurchaseResponse, 0, len(purchases))
	for _, p := range purchases {
		resp = append(resp, enrichedPurchaseResponse{
			purchaseResponse:   toPurchaseResponse(&p.Purchase),
			BusinessName:       p.BusinessName,
			BusinessCity:       p.BusinessCity,
			BusinessState:      p.BusinessState,
			BusinessWebsiteURL: p.BusinessWebsiteURL,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// requireUserID はコンテキストから認証済みユーザーIDを取り出す。
// 認証ミドルウェアを通過していないルートで使われた場合は401を返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return "", false
	}
	return userID, true
}

// writeAPIErrorResponse は統一エラーフォーマットでレスポンスを書き出す。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
// APIError以外のエラーは詳細を漏らさず500に丸める。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	slog.Error("unexpected service error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はエラーコードからHTTPステータスを決める。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeAuthRequired:
		return http.StatusUnauthorized
	case model.ErrCodeAuthInvalid, model.ErrCodeCSRFRejected:
		return http.StatusForbidden
	case model.ErrCodeUserNotFound, model.ErrCodeBusinessNotFound, model.ErrCodeOfferingNotFound:
		return http.StatusNotFound
	case model.ErrCodeEmailTaken, model.ErrCodeConcurrencyConflict:
		return http.StatusConflict
	case model.ErrCodeOfferingClosed, model.ErrCodeInsufficientSupply, model.ErrCodeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
