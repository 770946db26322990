package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jonathan/fastcapital/internal/model"
	"github.com/jonathan/fastcapital/internal/offering"
)

// OfferingServiceInterface は募集ハンドラーが必要とするサービスインターフェース。
type OfferingServiceInterface interface {
	List(ctx context.Context) ([]*model.Offering, error)
	Get(ctx context.Context, id string) (*model.Offering, error)
	GetWithPurchases(ctx context.Context, id string) (*model.Offering, []*model.Purchase, error)
	Create(ctx context.Context, input offering.CreateInput) (*model.Offering, error)
}

// OfferingHandler は募集（投資ラウンド）のHTTPハンドラー。
type OfferingHandler struct {
	service OfferingServiceInterface
}

// NewOfferingHandler はOfferingHandlerを生成する。
func NewOfferingHandler(service OfferingServiceInterface) *OfferingHandler {
	return &OfferingHandler{service: service}
}

type offeringResponse struct {
	ID              string    `json:"id"`
	BusinessID      string    `json:"business_id"`
	SharesAvailable int64     `json:"shares_available"`
	PricePerShare   float64   `json:"price_per_share"`
	MinInvestment   int64     `json:"min_investment"`
	StartDate       time.Time `json:"start_date"`
	ExpirationDate  time.Time `json:"expiration_date"`
	Featured        bool      `json:"featured"`
}

func toOfferingResponse(o *model.Offering) offeringResponse {
	return offeringResponse{
		ID:              o.ID,
		BusinessID:      o.BusinessID,
		SharesAvailable: o.SharesAvailable,
		PricePerShare:   o.PricePerShare,
		MinInvestment:   o.MinInvestment,
		StartDate:       o.StartDate,
		ExpirationDate:  o.ExpirationDate,
		Featured:        o.Featured,
	}
}

// ListOfferings は全募集を返す。
// GET /api/offerings
func (h *OfferingHandler) ListOfferings(w http.ResponseWriter, r *http.Request) {
	offerings, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]offeringResponse, 0, len(offerings))
	for _, o := range offerings {
		resp = append(resp, toOfferingResponse(o))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

type offeringDetailResponse struct {
	offeringResponse
	Purchases []purchaseResponse `json:"purchases"`
}

// GetOffering は募集詳細を購入一覧付きで返す。
// GET /api/offerings/{id}
func (h *OfferingHandler) GetOffering(w http.ResponseWriter, r *http.Request) {
	o, purchases, err := h.service.GetWithPurchases(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := offeringDetailResponse{
		offeringResponse: toOfferingResponse(o),
		Purchases:        make([]purchaseResponse, 0, len(purchases)),
	}
	for _, p := range purchases {
		resp.Purchases = append(resp.Purchases, toPurchaseResponse(p))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

type createOfferingRequest struct {
	BusinessID      string    `json:"business_id"`
	SharesAvailable int64     `json:"shares_available"`
	PricePerShare   float64   `json:"price_per_share"`
	MinInvestment   int64     `json:"min_investment"`
	StartDate       time.Time `json:"start_date"`
	ExpirationDate  time.Time `json:"expiration_date"`
	Featured        bool      `json:"featured"`
}

// CreateOffering は募集を作成する。
// POST /api/offerings
func (h *OfferingHandler) CreateOffering(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	var req createOfferingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	o, err := h.service.Create(r.Context(), offering.CreateInput{
		BusinessID:      req.BusinessID,
		SharesAvailable: req.SharesAvailable,
		PricePerShare:   req.PricePerShare,
		MinInvestment:   req.MinInvestment,
		StartDate:       req.StartDate,
		ExpirationDate:  req.ExpirationDate,
		Featured:        req.Featured,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toOfferingResponse(o))
}
